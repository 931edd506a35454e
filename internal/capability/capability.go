// Package capability decides what effectful intrinsics may do in the
// current session. Every effect boundary consults one immutable policy
// table; adding a new execution mode means adding a table, not branches.
package capability

import (
	"fmt"

	"github.com/lumelang/lume/internal/config"
)

// EffectClass classifies an effectful intrinsic.
type EffectClass uint8

const (
	EffectRead EffectClass = iota
	EffectWrite
	EffectNetwork
	EffectShell

	numEffects
)

func (e EffectClass) String() string {
	switch e {
	case EffectRead:
		return "read"
	case EffectWrite:
		return "write"
	case EffectNetwork:
		return "network"
	case EffectShell:
		return "shell"
	}
	return "effect?"
}

// Decision is the policy outcome for one effect class.
type Decision uint8

const (
	// Execute performs the real host operation.
	Execute Decision = iota
	// NoOpSucceed skips the operation but returns a success result with
	// the same shape a real success would have. Code that branches only
	// on success/failure behaves identically in both modes.
	NoOpSucceed
	// Deny aborts the evaluation with a CapabilityDenied error.
	Deny
)

func (d Decision) String() string {
	switch d {
	case Execute:
		return "execute"
	case NoOpSucceed:
		return "noop"
	case Deny:
		return "deny"
	}
	return "decision?"
}

// Mode is the session execution mode.
type Mode uint8

const (
	ModeBuild Mode = iota
	ModeLSPSandbox
)

func (m Mode) String() string {
	if m == ModeBuild {
		return "build"
	}
	return "lsp-sandbox"
}

// Context is the per-session capability policy. It is fixed at
// construction and never mutated mid-evaluation, so two evaluations of the
// same function in one session always observe identical decisions — the
// cache and the sandbox parity tests depend on that.
type Context struct {
	mode   Mode
	policy [numEffects]Decision
}

// NewBuildContext maps every effect class to Execute.
func NewBuildContext() *Context {
	return &Context{mode: ModeBuild}
}

// NewSandboxContext builds the LSP sandbox policy. Write is always
// NoOpSucceed — the sandbox never mutates developer state — while the
// remaining classes follow the session configuration.
func NewSandboxContext(read, network, shell Decision) *Context {
	c := &Context{mode: ModeLSPSandbox}
	c.policy[EffectRead] = read
	c.policy[EffectWrite] = NoOpSucceed
	c.policy[EffectNetwork] = network
	c.policy[EffectShell] = shell
	return c
}

// FromSession derives a context from session configuration.
func FromSession(s *config.Session) (*Context, error) {
	switch s.Mode {
	case config.ModeBuild:
		return NewBuildContext(), nil
	case config.ModeLSPSandbox:
		read, err := parseDecision(s.Sandbox.Read)
		if err != nil {
			return nil, err
		}
		network, err := parseDecision(s.Sandbox.Network)
		if err != nil {
			return nil, err
		}
		shell, err := parseDecision(s.Sandbox.Shell)
		if err != nil {
			return nil, err
		}
		return NewSandboxContext(read, network, shell), nil
	}
	return nil, fmt.Errorf("unknown session mode %q", s.Mode)
}

func parseDecision(s string) (Decision, error) {
	switch s {
	case "execute":
		return Execute, nil
	case "noop":
		return NoOpSucceed, nil
	case "deny":
		return Deny, nil
	}
	return Deny, fmt.Errorf("unknown capability decision %q", s)
}

func (c *Context) Mode() Mode {
	return c.mode
}

// Check returns the decision for an effect class. Effectful intrinsics
// must route through here before touching the host.
func (c *Context) Check(e EffectClass) Decision {
	if e >= numEffects {
		return Deny
	}
	return c.policy[e]
}
