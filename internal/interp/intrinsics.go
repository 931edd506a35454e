package interp

import (
	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/insert"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

// callIntrinsic dispatches a compiler intrinsic. Reflection goes to the
// provider, effects go through the host (which consults the capability
// policy), and #insert only packages its argument — splicing is the
// insertion pipeline's job.
func (st *state) callIntrinsic(name string, args []value.Value, span diagnostics.Span) (value.Value, *diagnostics.Diagnostic) {
	switch name {
	case config.IntrinsicTypeInfo:
		id, diag := st.typeArg(name, args, span)
		if diag != nil {
			return nil, diag
		}
		info, diag := st.in.refl.TypeInfo(id)
		if diag != nil {
			return nil, at(diag, span)
		}
		return info.AsValue(), nil

	case config.IntrinsicSizeOf:
		id, diag := st.typeArg(name, args, span)
		if diag != nil {
			return nil, diag
		}
		n, diag := st.in.refl.SizeOf(id)
		if diag != nil {
			return nil, at(diag, span)
		}
		return &value.Int{Width: 64, Bits: uint64(n)}, nil

	case config.IntrinsicAlignOf:
		id, diag := st.typeArg(name, args, span)
		if diag != nil {
			return nil, diag
		}
		n, diag := st.in.refl.AlignOf(id)
		if diag != nil {
			return nil, at(diag, span)
		}
		return &value.Int{Width: 64, Bits: uint64(n)}, nil

	case config.IntrinsicTypeName:
		id, diag := st.typeArg(name, args, span)
		if diag != nil {
			return nil, diag
		}
		s, diag := st.in.refl.TypeName(id)
		if diag != nil {
			return nil, at(diag, span)
		}
		return &value.Str{Val: s}, nil

	case config.IntrinsicInsert:
		if len(args) != 1 {
			return nil, st.arity(name, 1, len(args), span)
		}
		var code *value.Code
		switch a := args[0].(type) {
		case *value.Code:
			code = a
		case *value.Str:
			// Raw source text is a Code value that has not been built
			// structurally; the pipeline parses it.
			code = &value.Code{Text: a.Val}
		default:
			return nil, st.internal("#insert expects a code value, got %s", a.Kind())
		}
		st.pending = append(st.pending, &insert.Pending{
			Origin: span,
			Scope:  st.site.Scope,
			SiteID: st.site.ID,
			Code:   code,
		})
		return &value.Unit{}, nil

	case config.IntrinsicFileRead:
		path, diag := st.strArg(name, args, 0, 1, span)
		if diag != nil {
			return nil, diag
		}
		return st.in.host.FileRead(path, st.readLog, span)

	case config.IntrinsicFileWrite:
		if len(args) != 2 {
			return nil, st.arity(name, 2, len(args), span)
		}
		path, ok1 := args[0].(*value.Str)
		data, ok2 := args[1].(*value.Str)
		if !ok1 || !ok2 {
			return nil, st.internal("#file_write expects (str, str)")
		}
		return st.in.host.FileWrite(path.Val, data.Val, span)

	case config.IntrinsicNetFetch:
		url, diag := st.strArg(name, args, 0, 1, span)
		if diag != nil {
			return nil, diag
		}
		return st.in.host.NetFetch(url, span)

	case config.IntrinsicShellExec:
		cmd, diag := st.strArg(name, args, 0, 1, span)
		if diag != nil {
			return nil, diag
		}
		return st.in.host.ShellExec(cmd, span)

	case config.IntrinsicAssert:
		if len(args) < 1 || len(args) > 2 {
			return nil, st.arity(name, 1, len(args), span)
		}
		cond, ok := args[0].(*value.Bool)
		if !ok {
			return nil, st.internal("#assert expects a bool condition")
		}
		if !cond.Val {
			msg := "assertion failed"
			if len(args) == 2 {
				if s, ok := args[1].(*value.Str); ok {
					msg = "assertion failed: " + s.Val
				}
			}
			return nil, diagnostics.New(diagnostics.ErrComptimeEval, span, "%s", msg)
		}
		return &value.Unit{}, nil

	case config.IntrinsicPanic:
		msg := "explicit panic"
		if len(args) >= 1 {
			if s, ok := args[0].(*value.Str); ok {
				msg = "panic: " + s.Val
			}
		}
		return nil, diagnostics.New(diagnostics.ErrComptimeEval, span, "%s", msg)
	}
	return nil, st.internal("unknown intrinsic #%s", name)
}

func (st *state) typeArg(name string, args []value.Value, span diagnostics.Span) (typesystem.TypeID, *diagnostics.Diagnostic) {
	if len(args) != 1 {
		return 0, st.arity(name, 1, len(args), span)
	}
	h, ok := args[0].(*value.TypeHandle)
	if !ok {
		return 0, st.internal("#%s expects a type handle, got %s", name, args[0].Kind())
	}
	return h.ID, nil
}

func (st *state) strArg(name string, args []value.Value, idx, want int, span diagnostics.Span) (string, *diagnostics.Diagnostic) {
	if len(args) != want {
		return "", st.arity(name, want, len(args), span)
	}
	s, ok := args[idx].(*value.Str)
	if !ok {
		return "", st.internal("#%s expects a string argument, got %s", name, args[idx].Kind())
	}
	return s.Val, nil
}

func (st *state) arity(name string, want, got int, span diagnostics.Span) *diagnostics.Diagnostic {
	return diagnostics.New(diagnostics.ErrInternal, span,
		"intrinsic #%s expects %d argument(s), got %d", name, want, got)
}

// at pins a collaborator diagnostic to the intrinsic call span when it
// carries no location of its own.
func at(d *diagnostics.Diagnostic, span diagnostics.Span) *diagnostics.Diagnostic {
	if d.Span.IsZero() {
		d.Span = span
	}
	return d
}
