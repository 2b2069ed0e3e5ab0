package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output: %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[engines.fido]") {
		t.Fatalf("sample config missing engines section:\n%s", data)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, env.cfg.Paths.ResultsDB) || !strings.Contains(out, "[engines.signature]") {
		t.Fatalf("unexpected config show output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}
