package driver

import (
	"testing"

	"github.com/lumelang/lume/internal/ast"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/typesystem"
)

func TestStructuralFrontendCommitsFunc(t *testing.T) {
	prog := mir.NewProgram()
	types := typesystem.NewTable()
	fe := &StructuralFrontend{Prog: prog, Types: types}

	res, diag := fe.Commit([]ast.Item{&ast.FuncItem{
		Func:  constFn(0, "gen", 7),
		Sites: []mir.CallSite{{Marked: true}},
	}}, "main", insertSpan)
	if diag != nil {
		t.Fatalf("commit error: %s", diag.Error())
	}
	if len(res.NewFuncs) != 1 {
		t.Fatalf("new funcs = %d, want 1", len(res.NewFuncs))
	}
	fn, ok := prog.ByName("gen")
	if !ok || fn.ID == 0 {
		t.Fatalf("function not committed with a fresh id")
	}
	if fn.Span != insertSpan {
		t.Errorf("zero function span must fall back to the insertion origin")
	}
	if len(res.NewSites) != 1 || res.NewSites[0].Func != fn.ID {
		t.Errorf("site must be bound to the committed function, got %+v", res.NewSites)
	}
}

func TestStructuralFrontendCommitsTypes(t *testing.T) {
	prog := mir.NewProgram()
	types := typesystem.NewTable()
	fe := &StructuralFrontend{Prog: prog, Types: types}

	_, diag := fe.Commit([]ast.Item{
		&ast.StructItem{Def: &typesystem.StructDef{
			Name:   "Generated",
			Fields: []typesystem.Field{{Name: "n", Type: typesystem.I64}},
		}},
		&ast.EnumItem{Def: &typesystem.EnumDef{
			Name:     "GenFlag",
			Variants: []typesystem.Variant{{Name: "A"}},
		}},
	}, "main", insertSpan)
	if diag != nil {
		t.Fatalf("commit error: %s", diag.Error())
	}

	found := false
	for _, def := range types.AllStructs() {
		if def.Name == "Generated" && def.ID >= 16 {
			found = true
		}
	}
	if !found {
		t.Errorf("struct not committed with an allocated id")
	}
	if len(types.AllEnums()) != 1 {
		t.Errorf("enum not committed")
	}
}

func TestStructuralFrontendRejectsCollision(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(constFn(1, "taken", 1))
	fe := &StructuralFrontend{Prog: prog, Types: typesystem.NewTable()}

	_, diag := fe.Commit([]ast.Item{&ast.FuncItem{Func: constFn(0, "taken", 2)}}, "main", insertSpan)
	if diag == nil || diag.Code != diagnostics.ErrInsertionParse {
		t.Fatalf("expected collision diagnostic, got %+v", diag)
	}
}

func TestStructuralFrontendRejectsText(t *testing.T) {
	fe := &StructuralFrontend{Prog: mir.NewProgram(), Types: typesystem.NewTable()}

	_, diag := fe.ParseItems("fn x() {}", insertSpan, "main")
	if diag == nil || diag.Code != diagnostics.ErrInsertionParse {
		t.Fatalf("expected parse rejection, got %+v", diag)
	}

	_, diag = fe.Commit([]ast.Item{&ast.RawItem{Source: "fn x() {}"}}, "main", insertSpan)
	if diag == nil || diag.Code != diagnostics.ErrInsertionParse {
		t.Fatalf("expected raw item rejection, got %+v", diag)
	}
}
