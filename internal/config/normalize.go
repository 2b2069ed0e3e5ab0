package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEngines(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ResultsDB) == "" {
		c.Paths.ResultsDB = defaultResultsDB
	}
	if c.Paths.ResultsDB, err = expandPath(c.Paths.ResultsDB); err != nil {
		return fmt.Errorf("paths.results_db: %w", err)
	}
	if c.Staging.StaleAfterHours < 0 {
		c.Staging.StaleAfterHours = 0
	}
	return nil
}

func (c *Config) normalizeEngines() error {
	if c.Engines.Concurrency <= 0 {
		c.Engines.Concurrency = defaultConcurrency
	}

	c.Engines.Signature.Path = strings.TrimSpace(c.Engines.Signature.Path)
	if c.Engines.Signature.Path == "" {
		if value, ok := os.LookupEnv("MEDIALOG_SIGNATURE_FILE"); ok {
			c.Engines.Signature.Path = strings.TrimSpace(value)
		}
	}
	if c.Engines.Signature.Path != "" {
		var err error
		if c.Engines.Signature.Path, err = expandPath(c.Engines.Signature.Path); err != nil {
			return fmt.Errorf("engines.signature.path: %w", err)
		}
	}

	if value, ok := os.LookupEnv("MEDIALOG_FIDO_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Engines.Fido.Binary = strings.TrimSpace(value)
	}
	c.Engines.Fido.Binary = strings.TrimSpace(c.Engines.Fido.Binary)
	if c.Engines.Fido.Binary == "" {
		c.Engines.Fido.Binary = defaultFidoBinary
	}
	args := make([]string, 0, len(c.Engines.Fido.Args))
	for _, arg := range c.Engines.Fido.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Engines.Fido.Args = args
	if c.Engines.Fido.TimeoutSeconds <= 0 {
		c.Engines.Fido.TimeoutSeconds = defaultFidoTimeout
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
