package driver

import (
	"github.com/lumelang/lume/internal/ast"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/insert"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/typesystem"
)

// StructuralFrontend commits pre-built items straight into the program
// and type tables. It backs the standalone bundle runner and the engine
// tests, where generated code arrives structurally; raw source text needs
// the full compiler frontend and is rejected here.
type StructuralFrontend struct {
	Prog  *mir.Program
	Types *typesystem.Table
}

func (fe *StructuralFrontend) ParseItems(src string, origin diagnostics.Span, scope string) ([]ast.Item, *diagnostics.Diagnostic) {
	return nil, diagnostics.New(diagnostics.ErrInsertionParse, origin,
		"textual generated code requires the compiler frontend; emit structured items instead").
		WithOrigin(origin)
}

func (fe *StructuralFrontend) Commit(items []ast.Item, scope string, origin diagnostics.Span) (*insert.CommitResult, *diagnostics.Diagnostic) {
	res := &insert.CommitResult{}
	for _, item := range items {
		switch item := item.(type) {
		case *ast.FuncItem:
			fn := item.Func
			if fn.ID == 0 {
				fn.ID = fe.Prog.AllocFuncID()
			}
			if existing, ok := fe.Prog.ByName(fn.Name); ok && existing.ID != fn.ID {
				return nil, diagnostics.New(diagnostics.ErrInsertionParse, origin,
					"generated function %q collides with an existing definition", fn.Name).
					WithOrigin(origin)
			}
			if fn.Span.IsZero() {
				fn.Span = origin
			}
			fe.Prog.Add(fn)
			res.NewFuncs = append(res.NewFuncs, fn.ID)
			for _, site := range item.Sites {
				if site.Func == 0 {
					site.Func = fn.ID
				}
				if site.Span.IsZero() {
					site.Span = origin
				}
				res.NewSites = append(res.NewSites, site)
			}

		case *ast.StructItem:
			def := item.Def
			if def.ID == 0 {
				def.ID = fe.Types.AllocID()
			}
			fe.Types.AddStruct(def)

		case *ast.EnumItem:
			def := item.Def
			if def.ID == 0 {
				def.ID = fe.Types.AllocID()
			}
			fe.Types.AddEnum(def)

		case *ast.RawItem:
			return nil, diagnostics.New(diagnostics.ErrInsertionParse, origin,
				"textual generated code requires the compiler frontend").
				WithOrigin(origin)
		}
	}
	return res, nil
}
