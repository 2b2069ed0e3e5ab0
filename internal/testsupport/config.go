package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"medialog/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ResultsDB = filepath.Join(base, "results", "results.db")
	cfgVal.Engines.Fido.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFido enables the external engine using the given binary.
func WithFido(binary string, args ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engines.Fido.Enabled = true
		b.cfg.Engines.Fido.Binary = binary
		b.cfg.Engines.Fido.Args = args
	}
}

// WithSignatureDatabase points the signature engine at a database file.
func WithSignatureDatabase(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engines.Signature.Enabled = true
		b.cfg.Engines.Signature.Path = path
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each stub prints output and exits 0. If names is
// empty, a fido stub is written.
func WithStubbedBinaries(output string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"fido"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\ncat <<'STUB'\n" + output + "\nSTUB\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
