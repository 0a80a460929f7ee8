package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides.
const (
	HostEnv      = "FOOOCUS_HOST"
	SentryDSNEnv = "SENTRY_DSN"
)

// Loader handles loading the configuration.
type Loader struct {
	Version      string // Build version, used to determine dev mode
	OverridePath string // Set at compile time if needed
	// EnvFiles are loaded with godotenv before the environment is read.
	// Missing files are skipped.
	EnvFiles []string
}

// NewLoader creates a new Loader.
func NewLoader(version string, overridePath string) *Loader {
	return &Loader{
		Version:      version,
		OverridePath: overridePath,
		EnvFiles:     []string{".env"},
	}
}

// Load reads the config file, if any, and applies environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.loadFile()
	if err != nil {
		return nil, err
	}
	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// Defaults returns the built-in config with .env files and environment
// overrides applied. It is used when the config file cannot be read.
func (l *Loader) Defaults() (*Config, error) {
	cfg := New()
	err := l.loadEnvFiles()
	ApplyEnv(cfg)
	return cfg, err
}

func (l *Loader) loadFile() (*Config, error) {
	path := l.GetConfigPath()
	if path == "" {
		return New(), nil // No config file found, return defaults
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

func (l *Loader) loadEnvFiles() error {
	var present []string
	for _, p := range l.EnvFiles {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if len(present) == 0 {
		return nil
	}
	// existing variables win over .env entries
	return godotenv.Load(present...)
}

// ApplyEnv copies environment overrides into cfg.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(HostEnv)); v != "" {
		cfg.Host = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv(SentryDSNEnv)); v != "" {
		cfg.SentryDSN = v
	}
}

// GetConfigPath returns the path to the configuration file, or empty string if not found.
func (l *Loader) GetConfigPath() string {
	// 1. Variable override path
	if l.OverridePath != "" {
		if _, err := os.Stat(l.OverridePath); err == nil {
			return l.OverridePath
		}
	}

	// 2. Local run directory (dev mode)
	if l.Version == "dev" {
		wd, _ := os.Getwd()
		localPath := filepath.Join(wd, ".fooocanvasrc")
		if _, err := os.Stat(localPath); err == nil {
			return localPath
		}
	}

	// 3. XDG Config Path
	if path := UserConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// UserConfigPath is where `config save` writes.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fooocanvas", "config.rc")
}

// Save writes cfg to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(cfg.String()), 0o644)
}
