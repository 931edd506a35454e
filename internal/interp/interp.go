// Package interp evaluates MIR function bodies at compile time. Execution
// is a stack of call frames over local slots; values leaving the
// interpreter are immutable ComptimeValues, and in-frame mutation of
// aggregates rebuilds the spine copy-on-write. One Evaluate call is
// strictly single-threaded and owns no state beyond its own run.
package interp

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/hostio"
	"github.com/lumelang/lume/internal/insert"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/reflection"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

// Interp holds the per-session collaborators. It is safe for concurrent
// Evaluate calls: everything mutable lives in the per-call state.
type Interp struct {
	prog     *mir.Program
	types    *typesystem.Table
	refl     *reflection.Provider
	host     *hostio.Host
	maxSteps int
	log      *zap.Logger
}

func New(prog *mir.Program, types *typesystem.Table, refl *reflection.Provider, host *hostio.Host, maxSteps int, log *zap.Logger) *Interp {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interp{prog: prog, types: types, refl: refl, host: host, maxSteps: maxSteps, log: log}
}

// Retarget points the interpreter at refreshed tables after an insertion
// round commits. The driver guarantees no evaluation is in flight.
func (in *Interp) Retarget(prog *mir.Program, types *typesystem.Table) {
	in.prog = prog
	in.types = types
}

// Outcome is one finished evaluation.
type Outcome struct {
	Value value.Value

	// Pendings are the #insert requests captured during the run, in
	// execution order.
	Pendings []*insert.Pending

	// Reads are the external inputs observed, for cache invalidation.
	Reads []hostio.ReadRecord
}

// frame is one call on the evaluation stack. Slot 0 is the return place,
// slots 1..NumParams the arguments. dest and target say where the result
// goes in the caller when this frame returns.
type frame struct {
	fn     *mir.Function
	locals []value.Value
	block  int
	stmt   int
	dest   mir.Place
	target int
}

// state is the mutable part of one Evaluate call.
type state struct {
	in      *Interp
	site    mir.CallSite
	frames  []*frame
	steps   int
	readLog *hostio.ReadLog
	pending []*insert.Pending
}

// Evaluate runs one function to completion with concrete argument values.
// The returned diagnostic, when non-nil, is fatal for the call site.
func (in *Interp) Evaluate(site mir.CallSite, args []value.Value) (*Outcome, *diagnostics.Diagnostic) {
	fn, ok := in.prog.Func(site.Func)
	if !ok {
		return nil, diagnostics.New(diagnostics.ErrInternal, site.Span,
			"call site references unknown function #%d", site.Func)
	}

	st := &state{in: in, site: site, readLog: hostio.NewReadLog()}
	if diag := st.push(fn, args, mir.Place{}, 0); diag != nil {
		return nil, diag
	}

	ret, diag := st.run()
	if diag != nil {
		return nil, diag
	}
	return &Outcome{Value: ret, Pendings: st.pending, Reads: st.readLog.Records()}, nil
}

// ConstValue lowers a MIR constant to a comptime value. The driver uses it
// to materialize call-site arguments.
func ConstValue(c mir.Constant) (value.Value, error) {
	switch c := c.(type) {
	case *mir.IntConst:
		return value.NewInt(c.Type, c.Bits), nil
	case *mir.FloatConst:
		return value.NewFloat(c.Type.Width(), c.Val), nil
	case *mir.BoolConst:
		return &value.Bool{Val: c.Val}, nil
	case *mir.CharConst:
		return &value.Char{Val: c.Val}, nil
	case *mir.StrConst:
		return &value.Str{Val: c.Val}, nil
	case *mir.UnitConst:
		return &value.Unit{}, nil
	case *mir.FnConst:
		return &value.Closure{Func: c.Func}, nil
	case *mir.TypeConst:
		return &value.TypeHandle{ID: c.ID}, nil
	}
	return nil, fmt.Errorf("constant %T has no value form", c)
}

func (st *state) push(fn *mir.Function, args []value.Value, dest mir.Place, target int) *diagnostics.Diagnostic {
	if len(args) != fn.NumParams {
		return st.internal("function %q expects %d arguments, got %d", fn.Name, fn.NumParams, len(args))
	}
	if len(fn.Locals) < fn.NumParams+1 {
		return st.internal("function %q declares %d locals for %d params", fn.Name, len(fn.Locals), fn.NumParams)
	}
	f := &frame{
		fn:     fn,
		locals: make([]value.Value, len(fn.Locals)),
		dest:   dest,
		target: target,
	}
	f.locals[0] = &value.Unit{}
	for i, a := range args {
		f.locals[i+1] = a
	}
	st.frames = append(st.frames, f)
	return nil
}

// run drives the frame stack to completion.
func (st *state) run() (value.Value, *diagnostics.Diagnostic) {
	for {
		if st.steps >= st.in.maxSteps {
			return nil, diagnostics.New(diagnostics.ErrBudgetExceeded, st.site.Span,
				"comptime evaluation exceeded the step budget (%d steps)", st.in.maxSteps)
		}
		st.steps++

		f := st.frames[len(st.frames)-1]
		if f.block >= len(f.fn.Blocks) {
			return nil, st.internal("fell off block %d of %q", f.block, f.fn.Name)
		}
		b := &f.fn.Blocks[f.block]

		if f.stmt < len(b.Stmts) {
			if diag := st.execStmt(f, b.Stmts[f.stmt]); diag != nil {
				return nil, diag
			}
			f.stmt++
			continue
		}

		done, ret, diag := st.execTerm(f, b.Term)
		if diag != nil {
			return nil, diag
		}
		if done {
			return ret, nil
		}
	}
}

func (st *state) execStmt(f *frame, s mir.Statement) *diagnostics.Diagnostic {
	switch s := s.(type) {
	case *mir.Assign:
		v, diag := st.evalRvalue(f, s.Rvalue)
		if diag != nil {
			return diag
		}
		return st.writePlace(f, s.Place, v)
	case *mir.StorageLive, *mir.StorageDead:
		// Slot liveness matters to codegen; evaluation resets nothing
		// because StorageLive is always followed by an initializing
		// assignment in well-formed MIR.
		return nil
	case *mir.Nop:
		return nil
	}
	return st.internal("unknown statement %T", s)
}

// execTerm executes a block terminator. done is true when the outermost
// frame returned and ret carries the final value.
func (st *state) execTerm(f *frame, t mir.Terminator) (done bool, ret value.Value, diag *diagnostics.Diagnostic) {
	switch t := t.(type) {
	case *mir.Goto:
		f.block, f.stmt = t.Target, 0
		return false, nil, nil

	case *mir.SwitchInt:
		d, diag := st.evalOperand(f, t.Discr)
		if diag != nil {
			return false, nil, diag
		}
		var key int64
		switch d := d.(type) {
		case *value.Int:
			key = d.Int64()
		case *value.Bool:
			if d.Val {
				key = 1
			}
		default:
			return false, nil, st.internal("switchInt on non-integer %s", d.Kind())
		}
		target := t.Otherwise
		for i, v := range t.Values {
			if v == key {
				target = t.Targets[i]
				break
			}
		}
		f.block, f.stmt = target, 0
		return false, nil, nil

	case *mir.Return:
		ret := f.locals[0]
		if ret == nil {
			return false, nil, st.internal("return slot of %q never assigned", f.fn.Name)
		}
		st.frames = st.frames[:len(st.frames)-1]
		if len(st.frames) == 0 {
			return true, ret, nil
		}
		caller := st.frames[len(st.frames)-1]
		if diag := st.writePlace(caller, f.dest, ret); diag != nil {
			return false, nil, diag
		}
		caller.block, caller.stmt = f.target, 0
		return false, nil, nil

	case *mir.Call:
		return false, nil, st.execCall(f, t)

	case *mir.Unreachable:
		return false, nil, diagnostics.New(diagnostics.ErrMatchExhaustion, st.spanOf(f),
			"no match arm accepted the value; evaluation reached an unreachable block in %q", f.fn.Name)
	}
	return false, nil, st.internal("unknown terminator %T", t)
}

func (st *state) execCall(f *frame, c *mir.Call) *diagnostics.Diagnostic {
	args := make([]value.Value, len(c.Args))
	for i, a := range c.Args {
		v, diag := st.evalOperand(f, a)
		if diag != nil {
			return diag
		}
		args[i] = v
	}

	span := c.Span
	if span.IsZero() {
		span = st.site.Span
	}

	// Intrinsic callee: dispatch without a frame.
	if co, ok := c.Func.(*mir.ConstOp); ok {
		if intr, ok := co.C.(*mir.IntrinsicConst); ok {
			res, diag := st.callIntrinsic(intr.Name, args, span)
			if diag != nil {
				return diag
			}
			if diag := st.writePlace(f, c.Dest, res); diag != nil {
				return diag
			}
			f.block, f.stmt = c.Target, 0
			return nil
		}
	}

	// Direct or closure call: resolve to a function identity plus any
	// captured values, which are appended after the declared arguments.
	callee, diag := st.evalOperand(f, c.Func)
	if diag != nil {
		return diag
	}
	cl, ok := callee.(*value.Closure)
	if !ok {
		return st.internal("call to non-function value %s", callee.Kind())
	}
	fn, ok := st.in.prog.Func(cl.Func)
	if !ok {
		return st.internal("call to unknown function #%d", cl.Func)
	}
	full := args
	if len(cl.Captured) > 0 {
		full = append(append([]value.Value{}, args...), cl.Captured...)
	}

	// Advance the caller past the call before pushing, so the return
	// lands in the right place and resumes at the right block.
	return st.push(fn, full, c.Dest, c.Target)
}

// spanOf picks the best span for an error inside a frame: the function's
// own span when known, else the evaluated call site.
func (st *state) spanOf(f *frame) diagnostics.Span {
	if !f.fn.Span.IsZero() {
		return f.fn.Span
	}
	return st.site.Span
}

func (st *state) internal(format string, args ...interface{}) *diagnostics.Diagnostic {
	return diagnostics.New(diagnostics.ErrInternal, st.site.Span, format, args...)
}
