//go:build darwin

package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Settings live in the user defaults domain below; secrets in the login
// keychain under service "upskill".
const defaultsDomain = "com.upskill.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "upskill-data"
	}
	return filepath.Join(home, "Library", "Application Support", "upskill")
}

// SecretHint names the platform secret store for user-facing messages.
func SecretHint() string {
	return "macOS Keychain (service: " + secretService + ")"
}

// defaultsBackend stores config with the `defaults` tool.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend{domain: defaultsDomain}
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	return runLookup("defaults", "read", b.domain, key)
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := parseIntValue(key, s)
	return i, true, err
}

func (b defaultsBackend) SetString(key, val string) error {
	return runTool("defaults", "write", b.domain, key, "-string", val)
}

func (b defaultsBackend) SetInt(key string, val int) error {
	return runTool("defaults", "write", b.domain, key, "-int", strconv.Itoa(val))
}

func (b defaultsBackend) Delete(key string) error {
	return runTool("defaults", "delete", b.domain, key)
}
