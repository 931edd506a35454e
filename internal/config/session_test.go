package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lume.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}
	return path
}

func TestDefaultSession(t *testing.T) {
	s := DefaultSession()
	if s.Mode != ModeBuild {
		t.Errorf("mode = %q, want build", s.Mode)
	}
	if s.MaxSteps != DefaultMaxSteps || s.MaxPasses != DefaultMaxPasses || s.Workers != DefaultWorkers {
		t.Errorf("budgets not defaulted: %+v", s)
	}
	if s.Sandbox.Read != "execute" || s.Sandbox.Network != "deny" || s.Sandbox.Shell != "deny" {
		t.Errorf("sandbox defaults wrong: %+v", s.Sandbox)
	}
}

func TestLoadSession(t *testing.T) {
	path := writeConfig(t, `
mode: lsp-sandbox
max_steps: 5000
workers: 2
cache_dir: /tmp/lume-cache
sandbox:
  network: noop
`)
	s, err := LoadSession(path)
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if s.Mode != ModeLSPSandbox || s.MaxSteps != 5000 || s.Workers != 2 {
		t.Errorf("loaded session wrong: %+v", s)
	}
	if s.MaxPasses != DefaultMaxPasses {
		t.Errorf("unset field must default: %d", s.MaxPasses)
	}
	if s.Sandbox.Network != "noop" || s.Sandbox.Shell != "deny" {
		t.Errorf("sandbox merge wrong: %+v", s.Sandbox)
	}
	if s.CacheDir != "/tmp/lume-cache" {
		t.Errorf("cache dir = %q", s.CacheDir)
	}
}

func TestLoadSessionRejectsBadMode(t *testing.T) {
	path := writeConfig(t, "mode: watch\n")
	if _, err := LoadSession(path); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestLoadSessionRejectsBadPolicy(t *testing.T) {
	path := writeConfig(t, "mode: lsp-sandbox\nsandbox:\n  shell: maybe\n")
	if _, err := LoadSession(path); err == nil {
		t.Fatalf("expected error for unknown sandbox policy")
	}
}

func TestLoadSessionMissingFile(t *testing.T) {
	if _, err := LoadSession(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
