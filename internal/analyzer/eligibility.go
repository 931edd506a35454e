// Package analyzer computes the comptime-only attribute: a function is
// comptime-only when its body uses a compiler intrinsic, or transitively
// calls a function that does. The computation is a least fixpoint over the
// call graph — monotone taint propagation, so termination is guaranteed by
// graph finiteness even with recursion.
package analyzer

import (
	"fmt"

	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/typesystem"
)

// taintingIntrinsics are the intrinsics that make a function comptime-only.
// assert and panic are ordinary runtime-expressible operations and do not
// taint.
var taintingIntrinsics = map[string]bool{
	config.IntrinsicTypeInfo:  true,
	config.IntrinsicSizeOf:    true,
	config.IntrinsicAlignOf:   true,
	config.IntrinsicTypeName:  true,
	config.IntrinsicInsert:    true,
	config.IntrinsicFileRead:  true,
	config.IntrinsicFileWrite: true,
	config.IntrinsicNetFetch:  true,
	config.IntrinsicShellExec: true,
}

// origin records why a function is tainted: either a direct intrinsic use
// or a call to an already-tainted function.
type origin struct {
	intrinsic string
	span      diagnostics.Span
	via       typesystem.FuncID // 0 when the taint is direct
}

// Analysis is the populated attribute table. Read-only after Run; the
// driver extends it with Extend after each insertion round.
type Analysis struct {
	tainted map[typesystem.FuncID]origin
	edges   map[typesystem.FuncID][]edge
}

type edge struct {
	callee typesystem.FuncID
	span   diagnostics.Span
}

func New() *Analysis {
	return &Analysis{
		tainted: make(map[typesystem.FuncID]origin),
		edges:   make(map[typesystem.FuncID][]edge),
	}
}

// Run analyzes the whole program: seed direct intrinsic users, then
// propagate along call edges until no attribute changes. Read-only over
// the call graph; the only side effect is the attribute table itself.
func (a *Analysis) Run(prog *mir.Program) {
	for _, fn := range prog.Sorted() {
		a.scan(fn)
	}
	a.propagate()
}

// Extend incorporates functions committed by an insertion round. Taint is
// monotone, so re-propagating over the grown graph only adds attributes.
func (a *Analysis) Extend(prog *mir.Program, added []typesystem.FuncID) {
	for _, id := range added {
		if fn, ok := prog.Func(id); ok {
			a.scan(fn)
		}
	}
	a.propagate()
}

// scan seeds direct taint and records the function's outgoing call edges.
// Any function reference counts as an edge, not just callee position:
// a closure over a comptime-only function is itself comptime-only.
func (a *Analysis) scan(fn *mir.Function) {
	a.edges[fn.ID] = nil
	for _, b := range fn.Blocks {
		for _, s := range b.Stmts {
			if assign, ok := s.(*mir.Assign); ok {
				a.scanRvalue(fn, assign.Rvalue, fn.Span)
			}
		}
		if call, ok := b.Term.(*mir.Call); ok {
			a.scanOperand(fn, call.Func, call.Span)
			for _, arg := range call.Args {
				a.scanOperand(fn, arg, call.Span)
			}
		}
	}
}

func (a *Analysis) scanRvalue(fn *mir.Function, r mir.Rvalue, span diagnostics.Span) {
	switch r := r.(type) {
	case *mir.Use:
		a.scanOperand(fn, r.X, span)
	case *mir.BinaryOp:
		a.scanOperand(fn, r.L, span)
		a.scanOperand(fn, r.R, span)
	case *mir.UnaryOp:
		a.scanOperand(fn, r.X, span)
	case *mir.Aggregate:
		for _, op := range r.Ops {
			a.scanOperand(fn, op, span)
		}
	case *mir.Cast:
		a.scanOperand(fn, r.X, span)
	}
}

func (a *Analysis) scanOperand(fn *mir.Function, op mir.Operand, span diagnostics.Span) {
	c, ok := op.(*mir.ConstOp)
	if !ok {
		return
	}
	switch c := c.C.(type) {
	case *mir.IntrinsicConst:
		if taintingIntrinsics[c.Name] {
			if _, already := a.tainted[fn.ID]; !already {
				a.tainted[fn.ID] = origin{intrinsic: c.Name, span: span}
			}
		}
	case *mir.FnConst:
		a.edges[fn.ID] = append(a.edges[fn.ID], edge{callee: c.Func, span: span})
	}
}

// propagate iterates until no function's attribute changes.
func (a *Analysis) propagate() {
	for changed := true; changed; {
		changed = false
		for caller, es := range a.edges {
			if _, done := a.tainted[caller]; done {
				continue
			}
			for _, e := range es {
				if _, ok := a.tainted[e.callee]; ok {
					a.tainted[caller] = origin{via: e.callee, span: e.span}
					changed = true
					break
				}
			}
		}
	}
}

// ComptimeOnly reports the attribute for one function.
func (a *Analysis) ComptimeOnly(id typesystem.FuncID) bool {
	_, ok := a.tainted[id]
	return ok
}

// CheckSite enforces the call-site rule: an ordinary call to a
// comptime-only function is a compile error pointing at both the call
// site and the tainting intrinsic. Marked sites are always legal,
// whether or not the callee is tainted.
func (a *Analysis) CheckSite(prog *mir.Program, site mir.CallSite) *diagnostics.Diagnostic {
	if site.Marked {
		return nil
	}
	if !a.ComptimeOnly(site.Func) {
		return nil
	}
	name := fmt.Sprintf("fn#%d", site.Func)
	if fn, ok := prog.Func(site.Func); ok {
		name = fn.Name
	}
	d := diagnostics.New(diagnostics.ErrComptimeRequired, site.Span,
		"function %q is comptime-only and must be called with a comptime request", name)
	for _, note := range a.explain(prog, site.Func) {
		d.WithNote("%s", note)
	}
	return d
}

// explain walks the taint chain down to the intrinsic that started it.
func (a *Analysis) explain(prog *mir.Program, id typesystem.FuncID) []string {
	var notes []string
	seen := make(map[typesystem.FuncID]bool)
	for !seen[id] {
		seen[id] = true
		o, ok := a.tainted[id]
		if !ok {
			break
		}
		name := fmt.Sprintf("fn#%d", id)
		if fn, ok := prog.Func(id); ok {
			name = fn.Name
		}
		if o.intrinsic != "" {
			notes = append(notes, fmt.Sprintf("%q uses intrinsic #%s at %s", name, o.intrinsic, o.span))
			break
		}
		callee := fmt.Sprintf("fn#%d", o.via)
		if fn, ok := prog.Func(o.via); ok {
			callee = fn.Name
		}
		notes = append(notes, fmt.Sprintf("%q calls comptime-only %q at %s", name, callee, o.span))
		id = o.via
	}
	return notes
}
