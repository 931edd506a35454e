package interp

import (
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/value"
)

func (st *state) evalRvalue(f *frame, r mir.Rvalue) (value.Value, *diagnostics.Diagnostic) {
	switch r := r.(type) {
	case *mir.Use:
		return st.evalOperand(f, r.X)

	case *mir.BinaryOp:
		l, diag := st.evalOperand(f, r.L)
		if diag != nil {
			return nil, diag
		}
		rv, diag := st.evalOperand(f, r.R)
		if diag != nil {
			return nil, diag
		}
		return st.binOp(f, r.Op, l, rv)

	case *mir.UnaryOp:
		x, diag := st.evalOperand(f, r.X)
		if diag != nil {
			return nil, diag
		}
		return st.unOp(f, r.Op, x)

	case *mir.Aggregate:
		ops := make([]value.Value, len(r.Ops))
		for i, op := range r.Ops {
			v, diag := st.evalOperand(f, op)
			if diag != nil {
				return nil, diag
			}
			ops[i] = v
		}
		switch r.Kind {
		case mir.AggArray:
			return &value.Array{Elems: ops}, nil
		case mir.AggStruct:
			return &value.Struct{Type: r.Type.ID, Fields: ops}, nil
		case mir.AggEnum:
			return &value.Enum{Type: r.Type.ID, Variant: r.Variant, Payload: ops}, nil
		}
		return nil, st.internal("unknown aggregate kind %d", r.Kind)

	case *mir.Discriminant:
		v, diag := st.readPlace(f, r.X)
		if diag != nil {
			return nil, diag
		}
		e, ok := v.(*value.Enum)
		if !ok {
			return nil, st.internal("discriminant of non-enum %s", v.Kind())
		}
		return &value.Int{Width: 64, Signed: true, Bits: uint64(int64(e.Variant))}, nil

	case *mir.Cast:
		x, diag := st.evalOperand(f, r.X)
		if diag != nil {
			return nil, diag
		}
		return st.cast(f, x, r.To)
	}
	return nil, st.internal("unknown rvalue %T", r)
}

func (st *state) evalOperand(f *frame, op mir.Operand) (value.Value, *diagnostics.Diagnostic) {
	switch op := op.(type) {
	case *mir.CopyOp:
		return st.readPlace(f, op.P)
	case *mir.MoveOp:
		// Moves copy at comptime; values are immutable snapshots and
		// borrowck already validated the move upstream.
		return st.readPlace(f, op.P)
	case *mir.ConstOp:
		v, err := ConstValue(op.C)
		if err != nil {
			return nil, st.internal("%v", err)
		}
		return v, nil
	}
	return nil, st.internal("unknown operand %T", op)
}

func (st *state) readPlace(f *frame, p mir.Place) (value.Value, *diagnostics.Diagnostic) {
	if p.Local >= len(f.locals) {
		return nil, st.internal("local _%d out of range in %q", p.Local, f.fn.Name)
	}
	v := f.locals[p.Local]
	if v == nil {
		return nil, st.internal("use of unassigned local _%d in %q", p.Local, f.fn.Name)
	}
	for _, proj := range p.Proj {
		var diag *diagnostics.Diagnostic
		v, diag = st.project(f, v, proj)
		if diag != nil {
			return nil, diag
		}
	}
	return v, nil
}

func (st *state) project(f *frame, v value.Value, proj mir.Projection) (value.Value, *diagnostics.Diagnostic) {
	switch proj := proj.(type) {
	case *mir.FieldProj:
		s, ok := v.(*value.Struct)
		if !ok {
			return nil, st.internal("field access on non-struct %s", v.Kind())
		}
		if proj.Index >= len(s.Fields) {
			return nil, st.internal("field index %d out of range", proj.Index)
		}
		return s.Fields[proj.Index], nil

	case *mir.IndexProj:
		idx, diag := st.indexValue(f, proj.Local)
		if diag != nil {
			return nil, diag
		}
		a, ok := v.(*value.Array)
		if !ok {
			return nil, st.internal("index access on non-array %s", v.Kind())
		}
		if idx < 0 || idx >= int64(len(a.Elems)) {
			return nil, diagnostics.New(diagnostics.ErrComptimeEval, st.spanOf(f),
				"array index %d out of bounds (len %d)", idx, len(a.Elems))
		}
		return a.Elems[idx], nil

	case *mir.DerefProj:
		// References do not exist as comptime values; deref is identity.
		return v, nil
	}
	return nil, st.internal("unknown projection %T", proj)
}

func (st *state) indexValue(f *frame, local int) (int64, *diagnostics.Diagnostic) {
	if local >= len(f.locals) || f.locals[local] == nil {
		return 0, st.internal("index local _%d unassigned", local)
	}
	iv, ok := f.locals[local].(*value.Int)
	if !ok {
		return 0, st.internal("index local _%d is %s, want integer", local, f.locals[local].Kind())
	}
	return iv.Int64(), nil
}

// writePlace stores v at the place. Projected writes rebuild the
// containing aggregates copy-on-write, so a value that already escaped
// this frame (argument, cache entry) is never mutated in place.
func (st *state) writePlace(f *frame, p mir.Place, v value.Value) *diagnostics.Diagnostic {
	if p.Local >= len(f.locals) {
		return st.internal("local _%d out of range in %q", p.Local, f.fn.Name)
	}
	if len(p.Proj) == 0 {
		f.locals[p.Local] = v
		return nil
	}
	cur := f.locals[p.Local]
	if cur == nil {
		return st.internal("projected write into unassigned local _%d", p.Local)
	}
	updated, diag := st.writeProjected(f, cur, p.Proj, v)
	if diag != nil {
		return diag
	}
	f.locals[p.Local] = updated
	return nil
}

func (st *state) writeProjected(f *frame, cur value.Value, projs []mir.Projection, v value.Value) (value.Value, *diagnostics.Diagnostic) {
	if len(projs) == 0 {
		return v, nil
	}
	switch proj := projs[0].(type) {
	case *mir.FieldProj:
		s, ok := cur.(*value.Struct)
		if !ok {
			return nil, st.internal("field write into non-struct %s", cur.Kind())
		}
		if proj.Index >= len(s.Fields) {
			return nil, st.internal("field index %d out of range", proj.Index)
		}
		inner, diag := st.writeProjected(f, s.Fields[proj.Index], projs[1:], v)
		if diag != nil {
			return nil, diag
		}
		return s.WithField(proj.Index, inner), nil

	case *mir.IndexProj:
		a, ok := cur.(*value.Array)
		if !ok {
			return nil, st.internal("index write into non-array %s", cur.Kind())
		}
		idx, diag := st.indexValue(f, proj.Local)
		if diag != nil {
			return nil, diag
		}
		if idx < 0 || idx >= int64(len(a.Elems)) {
			return nil, diagnostics.New(diagnostics.ErrComptimeEval, st.spanOf(f),
				"array index %d out of bounds (len %d)", idx, len(a.Elems))
		}
		inner, diag := st.writeProjected(f, a.Elems[idx], projs[1:], v)
		if diag != nil {
			return nil, diag
		}
		return a.WithElem(int(idx), inner), nil

	case *mir.DerefProj:
		return st.writeProjected(f, cur, projs[1:], v)
	}
	return nil, st.internal("unknown projection %T", projs[0])
}
