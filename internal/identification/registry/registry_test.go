package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medialog/internal/config"
	"medialog/internal/services"
)

func TestBuildDefaultEngines(t *testing.T) {
	cfg := config.Default()
	set, err := Build(&cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := strings.Join(set.Names(), ","); got != "signature,sniff" {
		t.Fatalf("engines = %s", got)
	}
	if set.SignatureVersion == "" {
		t.Fatal("expected signature version")
	}
}

func TestBuildWithFido(t *testing.T) {
	cfg := config.Default()
	cfg.Engines.Fido.Enabled = true
	cfg.Engines.Fido.Binary = "fido"
	cfg.Engines.Fido.TimeoutSeconds = 10
	set, err := Build(&cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := strings.Join(set.Names(), ","); got != "signature,sniff,fido" {
		t.Fatalf("engines = %s", got)
	}
}

func TestBuildFailsOnBadSignatureDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigs.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Engines.Signature.Path = path
	if _, err := Build(&cfg); !errors.Is(err, services.ErrEngineInit) {
		t.Fatalf("expected ErrEngineInit, got %v", err)
	}
}

func TestBuildRequiresAnEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Engines.Signature.Enabled = false
	cfg.Engines.Sniff.Enabled = false
	if _, err := Build(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
