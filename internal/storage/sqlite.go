package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding completed profiles, recovery plans
// and the background job queue.
type Store struct {
	db *sql.DB
}

// Connection pragmas, applied by the driver to every new connection.
const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Open opens (or creates) upskill.db in dataDir and applies pending
// migrations. dataDir ":memory:" gives a private in-memory database.
func Open(dataDir string) (*Store, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = "file:" + filepath.Join(dataDir, "upskill.db") + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle for tests and diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// --- Profiles ---

const profileColumns = `id, full_name, target_role, data_json, created_at, updated_at`

func (s *Store) SaveProfile(p ProfileRecord) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	_, err := s.db.Exec(`
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.FullName, p.TargetRole, p.DataJSON,
		p.CreatedAt.UTC().Format(time.RFC3339), p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// UpdateProfile replaces the stored profile data and bumps updated_at.
func (s *Store) UpdateProfile(p ProfileRecord) error {
	res, err := s.db.Exec(`
		UPDATE profiles SET full_name = ?, target_role = ?, data_json = ?, updated_at = ?
		WHERE id = ?`,
		p.FullName, p.TargetRole, p.DataJSON, timestamp(), p.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) GetProfile(id string) (ProfileRecord, error) {
	p, err := scanProfile(s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return ProfileRecord{}, ErrNotFound
	}
	return p, err
}

// ListProfiles returns profiles newest first.
func (s *Store) ListProfiles(limit, offset int) ([]ProfileRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+profileColumns+`
		FROM profiles ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ProfileRecord
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *Store) DeleteProfile(id string) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (ProfileRecord, error) {
	var p ProfileRecord
	var createdAt, updatedAt string
	if err := r.Scan(&p.ID, &p.FullName, &p.TargetRole, &p.DataJSON, &createdAt, &updatedAt); err != nil {
		return ProfileRecord{}, err
	}
	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return ProfileRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return ProfileRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

// --- Recovery Plans ---

const planColumns = `id, profile_id, target_role, weak_skills_json, status, plan_text, fallback, reason, created_at, updated_at`

func (s *Store) SavePlan(p RecoveryPlan) error {
	now := time.Now().UTC().Format(time.RFC3339)
	status := p.Status
	if status == "" {
		status = PlanPending
	}
	weak := p.WeakSkillsJSON
	if weak == "" {
		weak = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO recovery_plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProfileID, p.TargetRole, weak, status, p.Text, p.Fallback, p.Reason, now, now,
	)
	return err
}

// CompletePlan records the generated text (or fallback) for a plan.
func (s *Store) CompletePlan(id, text string, fallback bool, reason string) error {
	res, err := s.db.Exec(`
		UPDATE recovery_plans SET status = ?, plan_text = ?, fallback = ?, reason = ?, updated_at = ?
		WHERE id = ?`,
		PlanCompleted, text, fallback, reason, timestamp(), id,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) GetPlan(id string) (RecoveryPlan, error) {
	var p RecoveryPlan
	var createdAt, updatedAt string
	err := s.db.QueryRow(`SELECT `+planColumns+` FROM recovery_plans WHERE id = ?`, id).Scan(
		&p.ID, &p.ProfileID, &p.TargetRole, &p.WeakSkillsJSON, &p.Status, &p.Text, &p.Fallback, &p.Reason,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return RecoveryPlan{}, ErrNotFound
	}
	if err != nil {
		return RecoveryPlan{}, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return RecoveryPlan{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return RecoveryPlan{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
