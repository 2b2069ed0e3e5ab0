package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ResultsDB) == "" {
		return errors.New("paths.results_db must be set")
	}
	return nil
}

func (c *Config) validateEngines() error {
	if !c.Engines.Signature.Enabled && !c.Engines.Sniff.Enabled && !c.Engines.Fido.Enabled {
		return errors.New("at least one identification engine must be enabled (engines.signature, engines.sniff, engines.fido)")
	}
	if c.Engines.Concurrency <= 0 {
		return errors.New("engines.concurrency must be positive")
	}
	if c.Engines.Fido.Enabled {
		if strings.TrimSpace(c.Engines.Fido.Binary) == "" {
			return errors.New("engines.fido.binary must be set when engines.fido.enabled is true")
		}
		if c.Engines.Fido.TimeoutSeconds <= 0 {
			return errors.New("engines.fido.timeout_seconds must be positive")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
