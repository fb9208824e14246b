package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigBackend is the persistent store behind `upskill config set`. Keys are
// the dotted names listed in specs; secrets never go through it.
//
// GetX reports ok=false for a key that was never set. A present but
// malformed value returns ok=true with an error so the caller can warn and
// keep the default.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// parseIntValue parses a stored integer setting.
func parseIntValue(key, s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, nil
}
