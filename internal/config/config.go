package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	ResultsDB  string `toml:"results_db"`
}

// Staging contains configuration for per-file staging directories.
type Staging struct {
	// StaleAfterHours is the age after which leftover run directories are
	// removed at startup. Zero disables stale cleanup.
	StaleAfterHours int `toml:"stale_after_hours"`
}

// SignatureEngine configures the signature database matcher.
type SignatureEngine struct {
	Enabled bool `toml:"enabled"`
	// Path points at a TOML signature database. Empty uses the built-in set.
	Path string `toml:"path"`
}

// SniffEngine configures the content sniffer.
type SniffEngine struct {
	Enabled bool `toml:"enabled"`
}

// FidoEngine configures the external classification process.
type FidoEngine struct {
	Enabled        bool     `toml:"enabled"`
	Binary         string   `toml:"binary"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Engines groups identification engine settings.
type Engines struct {
	// Concurrency bounds how many engines run at once for a single file.
	Concurrency int             `toml:"concurrency"`
	Signature   SignatureEngine `toml:"signature"`
	Sniff       SniffEngine     `toml:"sniff"`
	Fido        FidoEngine      `toml:"fido"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for medialog.
//
// Configuration sections by subsystem:
//   - Paths: staging root, log directory, and results database
//   - Staging: stale run directory cleanup
//   - Engines: identification engines and per-file concurrency
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Staging Staging `toml:"staging"`
	Engines Engines `toml:"engines"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/medialog/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("medialog.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a scan needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.LogDir}
	if c.Paths.ResultsDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.ResultsDB))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FidoTimeout returns the per-file timeout for the external classifier.
func (c *Config) FidoTimeout() time.Duration {
	return time.Duration(c.Engines.Fido.TimeoutSeconds) * time.Second
}

// StaleAfter returns the staging cleanup age, or zero when disabled.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Staging.StaleAfterHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
