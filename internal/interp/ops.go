package interp

import (
	"math"

	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

// Arithmetic follows the fixed-width semantics of the corresponding
// runtime types exactly: integers wrap at their declared width, shifts
// mask the shift amount by the width, f32 rounds through single
// precision. A pure function must evaluate identically at compile time
// and at runtime.

func (st *state) binOp(f *frame, op mir.BinOp, l, r value.Value) (value.Value, *diagnostics.Diagnostic) {
	switch l := l.(type) {
	case *value.Int:
		ri, ok := r.(*value.Int)
		if !ok || ri.Width != l.Width || ri.Signed != l.Signed {
			return nil, st.internal("integer op %s on mismatched operands", op)
		}
		return st.intBinOp(f, op, l, ri)
	case *value.Float:
		rf, ok := r.(*value.Float)
		if !ok || rf.Width != l.Width {
			return nil, st.internal("float op %s on mismatched operands", op)
		}
		return st.floatBinOp(f, op, l, rf)
	case *value.Bool:
		rb, ok := r.(*value.Bool)
		if !ok {
			return nil, st.internal("bool op %s on mismatched operands", op)
		}
		return boolBinOp(op, l.Val, rb.Val, st)
	case *value.Char:
		rc, ok := r.(*value.Char)
		if !ok {
			return nil, st.internal("char op %s on mismatched operands", op)
		}
		return orderedBinOp(op, int64(l.Val), int64(rc.Val), st)
	case *value.Str:
		rs, ok := r.(*value.Str)
		if !ok {
			return nil, st.internal("string op %s on mismatched operands", op)
		}
		return strBinOp(op, l.Val, rs.Val, st)
	}
	return nil, st.internal("binary op %s on %s", op, l.Kind())
}

func (st *state) intBinOp(f *frame, op mir.BinOp, l, r *value.Int) (value.Value, *diagnostics.Diagnostic) {
	mask := value.Mask(l.Width)
	wrap := func(bits uint64) value.Value {
		return &value.Int{Width: l.Width, Signed: l.Signed, Bits: bits & mask}
	}

	switch op {
	case mir.OpAdd:
		return wrap(l.Bits + r.Bits), nil
	case mir.OpSub:
		return wrap(l.Bits - r.Bits), nil
	case mir.OpMul:
		return wrap(l.Bits * r.Bits), nil

	case mir.OpDiv, mir.OpRem:
		if r.Bits == 0 {
			return nil, diagnostics.New(diagnostics.ErrComptimeEval, st.spanOf(f),
				"division by zero in comptime evaluation")
		}
		if l.Signed {
			a, b := l.Int64(), r.Int64()
			if op == mir.OpDiv {
				return wrap(uint64(a / b)), nil
			}
			return wrap(uint64(a % b)), nil
		}
		if op == mir.OpDiv {
			return wrap(l.Bits / r.Bits), nil
		}
		return wrap(l.Bits % r.Bits), nil

	case mir.OpBitAnd:
		return wrap(l.Bits & r.Bits), nil
	case mir.OpBitOr:
		return wrap(l.Bits | r.Bits), nil
	case mir.OpBitXor:
		return wrap(l.Bits ^ r.Bits), nil

	case mir.OpShl:
		return wrap(l.Bits << (r.Bits & uint64(l.Width-1))), nil
	case mir.OpShr:
		sh := r.Bits & uint64(l.Width-1)
		if l.Signed {
			return wrap(uint64(l.Int64() >> sh)), nil
		}
		return wrap(l.Bits >> sh), nil

	case mir.OpEq:
		return &value.Bool{Val: l.Bits == r.Bits}, nil
	case mir.OpNe:
		return &value.Bool{Val: l.Bits != r.Bits}, nil
	case mir.OpLt, mir.OpLe, mir.OpGt, mir.OpGe:
		var lt, eq bool
		if l.Signed {
			lt, eq = l.Int64() < r.Int64(), l.Bits == r.Bits
		} else {
			lt, eq = l.Bits < r.Bits, l.Bits == r.Bits
		}
		return cmpResult(op, lt, eq), nil
	}
	return nil, st.internal("integer op %s not defined", op)
}

func (st *state) floatBinOp(f *frame, op mir.BinOp, l, r *value.Float) (value.Value, *diagnostics.Diagnostic) {
	switch op {
	case mir.OpAdd:
		return value.NewFloat(l.Width, l.Val+r.Val), nil
	case mir.OpSub:
		return value.NewFloat(l.Width, l.Val-r.Val), nil
	case mir.OpMul:
		return value.NewFloat(l.Width, l.Val*r.Val), nil
	case mir.OpDiv:
		// Float division by zero yields inf/NaN, same as at runtime.
		return value.NewFloat(l.Width, l.Val/r.Val), nil
	case mir.OpEq:
		return &value.Bool{Val: l.Val == r.Val}, nil
	case mir.OpNe:
		return &value.Bool{Val: l.Val != r.Val}, nil
	case mir.OpLt, mir.OpLe, mir.OpGt, mir.OpGe:
		return cmpResult(op, l.Val < r.Val, l.Val == r.Val), nil
	}
	return nil, st.internal("float op %s not defined", op)
}

func boolBinOp(op mir.BinOp, l, r bool, st *state) (value.Value, *diagnostics.Diagnostic) {
	switch op {
	case mir.OpAnd, mir.OpBitAnd:
		return &value.Bool{Val: l && r}, nil
	case mir.OpOr, mir.OpBitOr:
		return &value.Bool{Val: l || r}, nil
	case mir.OpBitXor:
		return &value.Bool{Val: l != r}, nil
	case mir.OpEq:
		return &value.Bool{Val: l == r}, nil
	case mir.OpNe:
		return &value.Bool{Val: l != r}, nil
	}
	return nil, st.internal("bool op %s not defined", op)
}

func orderedBinOp(op mir.BinOp, l, r int64, st *state) (value.Value, *diagnostics.Diagnostic) {
	switch op {
	case mir.OpEq:
		return &value.Bool{Val: l == r}, nil
	case mir.OpNe:
		return &value.Bool{Val: l != r}, nil
	case mir.OpLt, mir.OpLe, mir.OpGt, mir.OpGe:
		return cmpResult(op, l < r, l == r), nil
	}
	return nil, st.internal("char op %s not defined", op)
}

func strBinOp(op mir.BinOp, l, r string, st *state) (value.Value, *diagnostics.Diagnostic) {
	switch op {
	case mir.OpAdd:
		return &value.Str{Val: l + r}, nil
	case mir.OpEq:
		return &value.Bool{Val: l == r}, nil
	case mir.OpNe:
		return &value.Bool{Val: l != r}, nil
	case mir.OpLt, mir.OpLe, mir.OpGt, mir.OpGe:
		return cmpResult(op, l < r, l == r), nil
	}
	return nil, st.internal("string op %s not defined", op)
}

func cmpResult(op mir.BinOp, lt, eq bool) value.Value {
	var v bool
	switch op {
	case mir.OpLt:
		v = lt
	case mir.OpLe:
		v = lt || eq
	case mir.OpGt:
		v = !lt && !eq
	case mir.OpGe:
		v = !lt
	}
	return &value.Bool{Val: v}
}

func (st *state) unOp(f *frame, op mir.UnOp, x value.Value) (value.Value, *diagnostics.Diagnostic) {
	switch x := x.(type) {
	case *value.Int:
		if op == mir.OpNeg {
			return &value.Int{Width: x.Width, Signed: x.Signed, Bits: (-x.Bits) & value.Mask(x.Width)}, nil
		}
		return &value.Int{Width: x.Width, Signed: x.Signed, Bits: (^x.Bits) & value.Mask(x.Width)}, nil
	case *value.Float:
		if op == mir.OpNeg {
			return value.NewFloat(x.Width, -x.Val), nil
		}
	case *value.Bool:
		if op == mir.OpNot {
			return &value.Bool{Val: !x.Val}, nil
		}
	}
	return nil, st.internal("unary op %s on %s", op, x.Kind())
}

// cast converts between primitive types with runtime-identical semantics:
// int-to-int truncates or sign-extends, float-to-int truncates toward
// zero, int-to-float rounds to the target width.
func (st *state) cast(f *frame, x value.Value, to typesystem.Type) (value.Value, *diagnostics.Diagnostic) {
	switch x := x.(type) {
	case *value.Int:
		switch {
		case to.IsInteger():
			// Reinterpret through the source signedness, then mask to
			// the target width.
			var raw uint64
			if x.Signed {
				raw = uint64(x.Int64())
			} else {
				raw = x.Bits
			}
			return value.NewInt(to, raw), nil
		case to.IsFloat():
			if x.Signed {
				return value.NewFloat(to.Width(), float64(x.Int64())), nil
			}
			return value.NewFloat(to.Width(), float64(x.Bits)), nil
		case to.Kind == typesystem.KindChar:
			return &value.Char{Val: rune(uint32(x.Bits))}, nil
		case to.Kind == typesystem.KindBool:
			return &value.Bool{Val: x.Bits != 0}, nil
		}
	case *value.Float:
		switch {
		case to.IsFloat():
			return value.NewFloat(to.Width(), x.Val), nil
		case to.IsInteger():
			return value.NewInt(to, floatToIntBits(x.Val, to)), nil
		}
	case *value.Bool:
		if to.IsInteger() {
			var b uint64
			if x.Val {
				b = 1
			}
			return value.NewInt(to, b), nil
		}
	case *value.Char:
		if to.IsInteger() {
			return value.NewInt(to, uint64(uint32(x.Val))), nil
		}
	}
	return nil, st.internal("cast from %s to %s not defined", x.Kind(), to)
}

// floatToIntBits truncates toward zero with saturation at the target
// range; NaN converts to zero. Go's native float-to-int conversion is
// implementation-defined for out-of-range inputs, so a direct
// uint64(int64(f)) would make the result depend on the build host.
func floatToIntBits(f float64, to typesystem.Type) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	w := to.Width()
	t := math.Trunc(f)
	if to.IsSigned() {
		// 2^(w-1) is exactly representable in float64 for every width.
		bound := math.Ldexp(1, int(w)-1)
		switch {
		case t >= bound:
			return uint64(1)<<(w-1) - 1
		case t < -bound:
			return uint64(1) << (w - 1) & value.Mask(w)
		}
		return uint64(int64(t)) & value.Mask(w)
	}
	switch {
	case t >= math.Ldexp(1, int(w)):
		return value.Mask(w)
	case t < 0:
		return 0
	}
	return uint64(t) & value.Mask(w)
}
