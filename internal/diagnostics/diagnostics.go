package diagnostics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Code is a stable diagnostic identifier. C-codes are comptime evaluation
// failures, I-codes come from the insertion pipeline, X-codes are internal
// defensive checks that should be unreachable on well-typed input.
type Code string

const (
	ErrComptimeRequired    Code = "C001" // ordinary call to a comptime-only function
	ErrComptimeEval        Code = "C002" // arithmetic fault, failed assert, explicit panic
	ErrCapabilityDenied    Code = "C003" // effect class denied by the active policy
	ErrBudgetExceeded      Code = "C004" // step or wall-clock budget exhausted
	ErrMatchExhaustion     Code = "C005" // no match arm accepted the scrutinee
	ErrInsertionParse      Code = "I001" // generated code failed to parse or validate
	ErrInsertionDivergence Code = "I002" // insertion fixpoint did not stabilize
	ErrUnknownType         Code = "X001" // type handle does not resolve in the table
	ErrInternal            Code = "X002" // engine invariant violated
)

// Diagnostic is a structured compilation error. Origin, when set, maps a
// span inside generated code back to the #insert call site that produced it.
type Diagnostic struct {
	Code   Code
	Span   Span
	Origin *Span
	Msg    string
	Notes  []string
}

func New(code Code, span Span, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Code: code, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// WithOrigin records the #insert call site a generated-code span maps to.
func (d *Diagnostic) WithOrigin(origin Span) *Diagnostic {
	o := origin
	d.Origin = &o
	return d
}

func (d *Diagnostic) WithNote(format string, args ...interface{}) *Diagnostic {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
	return d
}

// Error makes a Diagnostic usable as a Go error.
func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(d.Span.String())
	sb.WriteString(": error[")
	sb.WriteString(string(d.Code))
	sb.WriteString("]: ")
	sb.WriteString(d.Msg)
	if d.Origin != nil {
		sb.WriteString(" (generated from ")
		sb.WriteString(d.Origin.String())
		sb.WriteString(")")
	}
	return sb.String()
}

// Internal reports whether the diagnostic belongs to the internal-error
// class. These are surfaced, never swallowed.
func (d *Diagnostic) Internal() bool {
	return d.Code == ErrUnknownType || d.Code == ErrInternal
}

// Bag collects diagnostics from concurrent evaluations. All() returns them
// sorted by (span, code, message) so emission order never depends on
// scheduling.
type Bag struct {
	mu   sync.Mutex
	list []*Diagnostic
}

func NewBag() *Bag {
	return &Bag{}
}

func (b *Bag) Add(ds ...*Diagnostic) {
	b.mu.Lock()
	for _, d := range ds {
		if d != nil {
			b.list = append(b.list, d)
		}
	}
	b.mu.Unlock()
}

func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.list)
}

func (b *Bag) All() []*Diagnostic {
	b.mu.Lock()
	out := make([]*Diagnostic, len(b.list))
	copy(out, b.list)
	b.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span != out[j].Span {
			return out[i].Span.Before(out[j].Span)
		}
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Msg < out[j].Msg
	})
	return out
}
