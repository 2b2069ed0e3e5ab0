package main

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"medialog/internal/config"
	"medialog/internal/logging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// JSONMode reports whether --json was given.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	return logging.NewFromConfig(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// writeJSON renders v for --json consumers.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
