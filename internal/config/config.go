package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Session  SessionConfig
	Recovery RecoveryConfig
	Ollama   OllamaConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type SessionConfig struct {
	TTL time.Duration
}

// RecoveryConfig selects the LLM backend for recovery plans. An empty Model
// means the backend's default.
type RecoveryConfig struct {
	Backend          string
	Model            string
	Timeout          time.Duration
	PollInterval     time.Duration
	GeminiAPIKey     string
	OpenRouterAPIKey string
}

type OllamaConfig struct {
	BaseURL string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Session: SessionConfig{
			TTL: 30 * time.Minute,
		},
		Recovery: RecoveryConfig{
			Backend:      "gemini",
			Timeout:      30 * time.Second,
			PollInterval: 2 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.upskill.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/upskill/config.json
// and secrets fall back to $XDG_DATA_HOME/upskill/secrets.json.
//
// Environment variables (UPSKILL_*) override backend values on all platforms.
// Missing LLM credentials are not an error: recovery plans fall back to a
// fixed message.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b ConfigBackend, kc SecretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Recovery.Backend {
	case "gemini", "openrouter", "ollama":
	default:
		return fmt.Errorf("invalid recovery.backend %q: want gemini, openrouter or ollama", c.Recovery.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	}
	return nil
}
