package mir

import (
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/typesystem"
)

// CallSite is one top-level function invocation the driver may have to
// evaluate during compilation. The resolver records every call site that is
// either explicitly marked `comptime` or targets a function suspected of
// being comptime-only; the eligibility analysis settles which is which.
type CallSite struct {
	// ID orders call sites deterministically. IDs are assigned in source
	// order by the resolver and extended monotonically for sites found in
	// generated code.
	ID int

	Func typesystem.FuncID

	// Args are the compile-time constant arguments at the site.
	Args []Constant

	Span diagnostics.Span

	// Marked is true when the site carries the comptime-request marker.
	// Comptime-ness is a property of the call, not of the function: a
	// marked call to an untainted function is legal.
	Marked bool

	// Scope names the lexical scope (module or impl) that insertions
	// produced by this site are spliced into.
	Scope string
}
