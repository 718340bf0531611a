package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for fv.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Vault    VaultConfig    `toml:"vault"`
	Session  SessionConfig  `toml:"session"`
	Database DatabaseConfig `toml:"database"`
}

// VaultConfig holds vault directory overrides. Empty values mean the
// defaults under base_dir.
type VaultConfig struct {
	VaultDir   string `toml:"vault_dir,omitempty"`
	RestoreDir string `toml:"restore_dir,omitempty"`
}

// SessionConfig holds the inactivity timeout and the unlock lockout
// schedule.
type SessionConfig struct {
	// InactivityTimeoutSeconds is how long the unlocked session survives
	// without interaction while a sensitive view is active.
	InactivityTimeoutSeconds int `toml:"inactivity_timeout_seconds"`

	// Lockout is the cooldown schedule applied to consecutive failed
	// unlock attempts, in ascending failure order.
	Lockout []LockoutTier `toml:"lockout"`
}

// LockoutTier maps a consecutive-failure count to a cooldown.
type LockoutTier struct {
	Failures        int `toml:"failures"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

// DatabaseConfig holds the settings/history database location. Empty means
// <base_dir>/fv.db.
type DatabaseConfig struct {
	Path string `toml:"path,omitempty"`
}

// NewConfig creates a Config with defaults rooted at baseDir: a 60 second
// inactivity timeout and the 5/10/20-failure cooldown schedule.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Session: SessionConfig{
			InactivityTimeoutSeconds: 60,
			Lockout: []LockoutTier{
				{Failures: 5, CooldownSeconds: 30},
				{Failures: 10, CooldownSeconds: 300},
				{Failures: 20, CooldownSeconds: 1800},
			},
		},
	}
}

// InactivityTimeout returns the session timeout as a duration. A missing or
// non-positive setting falls back to the default so a sparse config file
// cannot produce a session that expires immediately.
func (c *Config) InactivityTimeout() time.Duration {
	if c.Session.InactivityTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Session.InactivityTimeoutSeconds) * time.Second
}

// DatabasePath returns the configured database path or the default.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.BaseDir, "fv.db")
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
