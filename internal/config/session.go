package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Session carries the per-build engine configuration. It is read once at
// startup and never mutated afterwards; the driver derives the capability
// policy and budgets from it.
type Session struct {
	// Mode selects the capability policy: "build" or "lsp-sandbox".
	Mode string `yaml:"mode"`

	// MaxSteps bounds a single comptime evaluation. 0 means the default.
	MaxSteps int `yaml:"max_steps"`

	// MaxPasses bounds the insertion fixpoint. 0 means the default.
	MaxPasses int `yaml:"max_passes"`

	// Workers is the number of concurrent call-site evaluations.
	Workers int `yaml:"workers"`

	// CacheDir, when set, enables the on-disk incremental cache.
	CacheDir string `yaml:"cache_dir"`

	// Sandbox tunes the non-write effect classes in lsp-sandbox mode.
	// Write is always no-op in the sandbox and cannot be configured.
	Sandbox SandboxPolicy `yaml:"sandbox"`
}

// SandboxPolicy holds the configurable effect decisions for sandbox mode.
// Valid values: "execute", "noop", "deny".
type SandboxPolicy struct {
	Read    string `yaml:"read"`
	Network string `yaml:"network"`
	Shell   string `yaml:"shell"`
}

const (
	ModeBuild      = "build"
	ModeLSPSandbox = "lsp-sandbox"
)

// DefaultSession returns a build-mode session with default budgets.
func DefaultSession() *Session {
	s := &Session{Mode: ModeBuild}
	s.applyDefaults()
	return s
}

// LoadSession reads a YAML session file and applies defaults.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session config: %w", err)
	}
	s := &Session{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing session config %s: %w", path, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) applyDefaults() {
	if s.Mode == "" {
		s.Mode = ModeBuild
	}
	if s.MaxSteps <= 0 {
		s.MaxSteps = DefaultMaxSteps
	}
	if s.MaxPasses <= 0 {
		s.MaxPasses = DefaultMaxPasses
	}
	if s.Workers <= 0 {
		s.Workers = DefaultWorkers
	}
	// Sandbox defaults: reads execute so analysis stays accurate, the
	// rest is denied until explicitly opened up.
	if s.Sandbox.Read == "" {
		s.Sandbox.Read = "execute"
	}
	if s.Sandbox.Network == "" {
		s.Sandbox.Network = "deny"
	}
	if s.Sandbox.Shell == "" {
		s.Sandbox.Shell = "deny"
	}
}

func (s *Session) Validate() error {
	if s.Mode != ModeBuild && s.Mode != ModeLSPSandbox {
		return fmt.Errorf("invalid session mode %q (want %q or %q)", s.Mode, ModeBuild, ModeLSPSandbox)
	}
	for _, p := range []string{s.Sandbox.Read, s.Sandbox.Network, s.Sandbox.Shell} {
		switch p {
		case "execute", "noop", "deny":
		default:
			return fmt.Errorf("invalid sandbox policy %q (want execute, noop or deny)", p)
		}
	}
	return nil
}
