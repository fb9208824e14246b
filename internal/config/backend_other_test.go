//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	b := newPlatformBackend()
	if err := b.SetInt("server.port", 5050); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("recovery.backend", "ollama"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	if _, err := os.Stat(configFilePath()); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	reloaded := newPlatformBackend()
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 5050 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	backend, ok, _ := reloaded.GetString("recovery.backend")
	if !ok || backend != "ollama" {
		t.Errorf("GetString = %q, %v", backend, ok)
	}

	if err := reloaded.Delete("server.port"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newPlatformBackend().GetInt("server.port"); ok {
		t.Error("deleted key still present")
	}
}

func TestKeychain_SecretsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	kc := NewKeychain()
	if _, err := kc.Get("upskill", "gemini_api_key"); err == nil {
		t.Fatal("expected error before any secret is stored")
	}
	if err := kc.Set("upskill", "gemini_api_key", "g-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kc.Get("upskill", "gemini_api_key")
	if err != nil || got != "g-key" {
		t.Errorf("Get = %q, %v", got, err)
	}

	info, err := os.Stat(filepath.Join(dir, "upskill", "secrets.json"))
	if err != nil {
		t.Fatalf("secrets file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}
