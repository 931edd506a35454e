package driver

import (
	"strings"
	"testing"

	"github.com/lumelang/lume/internal/ast"
	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/insert"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

var (
	siteSpan   = diagnostics.Span{File: "main.lm", Line: 10, Col: 1}
	insertSpan = diagnostics.Span{File: "main.lm", Line: 20, Col: 5}
)

func i64Const(n int64) mir.Operand {
	return &mir.ConstOp{C: &mir.IntConst{Type: typesystem.I64, Bits: uint64(n)}}
}

// constFn returns a fixed i64.
func constFn(id typesystem.FuncID, name string, n int64) *mir.Function {
	return &mir.Function{
		ID:        id,
		Name:      name,
		NumParams: 0,
		Locals:    []mir.Local{{Name: "ret", Type: typesystem.I64}},
		Result:    typesystem.I64,
		Blocks: []mir.Block{{
			Stmts: []mir.Statement{&mir.Assign{Place: mir.LocalPlace(0), Rvalue: &mir.Use{X: i64Const(n)}}},
			Term:  &mir.Return{},
		}},
	}
}

// doubleFn doubles its i64 argument.
func doubleFn(id typesystem.FuncID, name string) *mir.Function {
	return &mir.Function{
		ID:        id,
		Name:      name,
		NumParams: 1,
		Locals: []mir.Local{
			{Name: "ret", Type: typesystem.I64},
			{Name: "n", Type: typesystem.I64},
		},
		Result: typesystem.I64,
		Blocks: []mir.Block{{
			Stmts: []mir.Statement{&mir.Assign{
				Place: mir.LocalPlace(0),
				Rvalue: &mir.BinaryOp{
					Op: mir.OpMul,
					L:  &mir.CopyOp{P: mir.LocalPlace(1)},
					R:  i64Const(2),
				},
			}},
			Term: &mir.Return{},
		}},
	}
}

// divFn divides its first argument by its second.
func divFn(id typesystem.FuncID, name string) *mir.Function {
	fn := doubleFn(id, name)
	fn.NumParams = 2
	fn.Locals = append(fn.Locals, mir.Local{Name: "d", Type: typesystem.I64})
	fn.Blocks[0].Stmts[0] = &mir.Assign{
		Place: mir.LocalPlace(0),
		Rvalue: &mir.BinaryOp{
			Op: mir.OpDiv,
			L:  &mir.CopyOp{P: mir.LocalPlace(1)},
			R:  &mir.CopyOp{P: mir.LocalPlace(2)},
		},
	}
	return fn
}

// insertFn calls #insert with the given source text.
func insertFn(id typesystem.FuncID, name, src string) *mir.Function {
	return &mir.Function{
		ID:        id,
		Name:      name,
		NumParams: 0,
		Locals:    []mir.Local{{Name: "ret", Type: typesystem.Unit}},
		Result:    typesystem.Unit,
		Span:      insertSpan,
		Blocks: []mir.Block{
			{Term: &mir.Call{
				Func:   &mir.ConstOp{C: &mir.IntrinsicConst{Name: config.IntrinsicInsert}},
				Args:   []mir.Operand{&mir.ConstOp{C: &mir.StrConst{Val: src}}},
				Dest:   mir.LocalPlace(0),
				Target: 1,
				Span:   insertSpan,
			}},
			{Term: &mir.Return{}},
		},
	}
}

// shellFn calls #shell_exec and returns its result struct.
func shellFn(id typesystem.FuncID) *mir.Function {
	return &mir.Function{
		ID:        id,
		Name:      "probe_toolchain",
		NumParams: 0,
		Locals:    []mir.Local{{Name: "ret", Type: typesystem.StructType(config.ExecResultTypeID)}},
		Result:    typesystem.StructType(config.ExecResultTypeID),
		Blocks: []mir.Block{
			{Term: &mir.Call{
				Func:   &mir.ConstOp{C: &mir.IntrinsicConst{Name: config.IntrinsicShellExec}},
				Args:   []mir.Operand{&mir.ConstOp{C: &mir.StrConst{Val: "true"}}},
				Dest:   mir.LocalPlace(0),
				Target: 1,
				Span:   siteSpan,
			}},
			{Term: &mir.Return{}},
		},
	}
}

// testFrontend interprets generated text as directives:
//
//	"value NAME N"  -> a function returning N plus a marked site calling it
//	"recurse NAME"  -> a function that inserts again, plus a site calling it
//	anything else   -> parse error
type testFrontend struct {
	prog *mir.Program
}

func (fe *testFrontend) ParseItems(src string, origin diagnostics.Span, scope string) ([]ast.Item, *diagnostics.Diagnostic) {
	fields := strings.Fields(src)
	switch {
	case len(fields) == 3 && fields[0] == "value":
		n := int64(len(fields[2])) // length stands in for a parsed literal
		return []ast.Item{&ast.FuncItem{
			Func:  constFn(0, fields[1], n),
			Sites: []mir.CallSite{{Marked: true}},
		}}, nil
	case len(fields) == 2 && fields[0] == "recurse":
		return []ast.Item{&ast.FuncItem{
			Func:  insertFn(0, fields[1], "recurse "+fields[1]+"x"),
			Sites: []mir.CallSite{{Marked: true}},
		}}, nil
	}
	return nil, diagnostics.New(diagnostics.ErrInsertionParse, origin,
		"unexpected token %q in generated code", src)
}

func (fe *testFrontend) Commit(items []ast.Item, scope string, origin diagnostics.Span) (*insert.CommitResult, *diagnostics.Diagnostic) {
	res := &insert.CommitResult{}
	for _, item := range items {
		fi, ok := item.(*ast.FuncItem)
		if !ok {
			continue
		}
		fi.Func.ID = fe.prog.AllocFuncID()
		fe.prog.Add(fi.Func)
		res.NewFuncs = append(res.NewFuncs, fi.Func.ID)
		for _, site := range fi.Sites {
			site.Func = fi.Func.ID
			site.Span = fi.Func.Span
			res.NewSites = append(res.NewSites, site)
		}
	}
	return res, nil
}

func session(workers int) *config.Session {
	s := config.DefaultSession()
	s.Workers = workers
	s.MaxPasses = 8
	return s
}

func newDriver(t *testing.T, prog *mir.Program, sites []mir.CallSite, s *config.Session, fe insert.Frontend) *Driver {
	t.Helper()
	if s == nil {
		s = session(2)
	}
	if fe == nil {
		fe = &testFrontend{prog: prog}
	}
	d, err := New(prog, typesystem.NewTable(), sites, Options{Session: s, Frontend: fe})
	if err != nil {
		t.Fatalf("driver setup: %s", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func wantValue(t *testing.T, res *Result, site int, expected int64) {
	t.Helper()
	v, ok := res.Values[site]
	if !ok {
		t.Fatalf("site %d has no value. diags=%+v", site, res.Diags)
	}
	iv, ok := v.(*value.Int)
	if !ok {
		t.Fatalf("site %d value is not Int. got=%T (%+v)", site, v, v)
	}
	if iv.Int64() != expected {
		t.Errorf("site %d = %d, want %d", site, iv.Int64(), expected)
	}
}

func TestRunEvaluatesMarkedSites(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(doubleFn(1, "double"))

	sites := []mir.CallSite{
		{ID: 1, Func: 1, Args: []mir.Constant{&mir.IntConst{Type: typesystem.I64, Bits: 21}}, Span: siteSpan, Marked: true},
		{ID: 2, Func: 1, Args: []mir.Constant{&mir.IntConst{Type: typesystem.I64, Bits: 4}}, Span: siteSpan, Marked: true},
	}
	d := newDriver(t, prog, sites, nil, nil)

	res := d.Run()
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Diags)
	}
	wantValue(t, res, 1, 42)
	wantValue(t, res, 2, 8)
	if res.Passes != 0 {
		t.Errorf("passes = %d, want 0", res.Passes)
	}
	if d.Phase() != PhaseTypeChecked {
		t.Errorf("phase = %s, want TypeChecked", d.Phase())
	}
}

func TestRunSkipsUnmarkedCleanSites(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(doubleFn(1, "double"))

	sites := []mir.CallSite{{ID: 1, Func: 1, Span: siteSpan}}
	d := newDriver(t, prog, sites, nil, nil)

	res := d.Run()
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Diags)
	}
	if len(res.Values) != 0 {
		t.Errorf("unmarked site must not be evaluated, got %d values", len(res.Values))
	}
}

func TestRunRejectsOrdinaryCallToComptimeOnly(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(insertFn(1, "gen", "value a x"))

	sites := []mir.CallSite{{ID: 1, Func: 1, Span: siteSpan}}
	d := newDriver(t, prog, sites, nil, nil)

	res := d.Run()
	if !res.Failed() {
		t.Fatalf("expected ComptimeRequired failure")
	}
	if res.Diags[0].Code != diagnostics.ErrComptimeRequired {
		t.Errorf("wrong code: %s", res.Diags[0].Code)
	}
	if res.Phase != PhaseFailed {
		t.Errorf("phase = %s, want Failed", res.Phase)
	}
}

func TestInsertionFixpoint(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(insertFn(1, "gen", "value answer xxxxxx"))

	sites := []mir.CallSite{{ID: 1, Func: 1, Span: siteSpan, Marked: true, Scope: "main"}}
	d := newDriver(t, prog, sites, nil, nil)

	res := d.Run()
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Diags)
	}
	if res.Passes != 1 {
		t.Errorf("passes = %d, want 1", res.Passes)
	}
	if len(res.Generated) != 1 {
		t.Fatalf("generated = %d funcs, want 1", len(res.Generated))
	}
	if _, ok := prog.ByName("answer"); !ok {
		t.Fatalf("generated function not committed to the program")
	}
	// The discovered site got a fresh ID past the existing ones and was
	// evaluated in the follow-up round ("xxxxxx" has length 6).
	wantValue(t, res, 2, 6)
}

func TestInsertionDivergence(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(insertFn(1, "gen", "recurse g"))

	s := session(2)
	s.MaxPasses = 3
	sites := []mir.CallSite{{ID: 1, Func: 1, Span: siteSpan, Marked: true}}
	d := newDriver(t, prog, sites, s, nil)

	res := d.Run()
	if !res.Failed() {
		t.Fatalf("expected divergence failure")
	}
	var found *diagnostics.Diagnostic
	for _, diag := range res.Diags {
		if diag.Code == diagnostics.ErrInsertionDivergence {
			found = diag
		}
	}
	if found == nil {
		t.Fatalf("no InsertionDivergence diagnostic in %+v", res.Diags)
	}
	if len(found.Notes) == 0 || !strings.Contains(found.Notes[0], "site#") {
		t.Errorf("divergence must name the offending chain, got %+v", found.Notes)
	}
	if res.Passes != s.MaxPasses+1 {
		t.Errorf("passes = %d, want %d", res.Passes, s.MaxPasses+1)
	}
}

func TestInsertionParseErrorMapsToOrigin(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(insertFn(1, "gen", "garbage ! tokens"))

	sites := []mir.CallSite{{ID: 1, Func: 1, Span: siteSpan, Marked: true}}
	d := newDriver(t, prog, sites, nil, nil)

	res := d.Run()
	if !res.Failed() {
		t.Fatalf("expected parse failure")
	}
	diag := res.Diags[0]
	if diag.Code != diagnostics.ErrInsertionParse {
		t.Fatalf("wrong code: %s", diag.Code)
	}
	if diag.Origin == nil || *diag.Origin != insertSpan {
		t.Errorf("parse error must map to the #insert origin, got %+v", diag.Origin)
	}
}

func TestErrorsAreCollectedNotShortCircuited(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(divFn(1, "ratio"))

	args := func(a, b uint64) []mir.Constant {
		return []mir.Constant{
			&mir.IntConst{Type: typesystem.I64, Bits: a},
			&mir.IntConst{Type: typesystem.I64, Bits: b},
		}
	}
	sites := []mir.CallSite{
		{ID: 1, Func: 1, Args: args(10, 0), Span: diagnostics.Span{File: "main.lm", Line: 1, Col: 1}, Marked: true},
		{ID: 2, Func: 1, Args: args(10, 2), Span: diagnostics.Span{File: "main.lm", Line: 2, Col: 1}, Marked: true},
		{ID: 3, Func: 1, Args: args(9, 0), Span: diagnostics.Span{File: "main.lm", Line: 3, Col: 1}, Marked: true},
	}
	d := newDriver(t, prog, sites, nil, nil)

	res := d.Run()
	if len(res.Diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d: %+v", len(res.Diags), res.Diags)
	}
	wantValue(t, res, 2, 5)
	for _, diag := range res.Diags {
		if diag.Code != diagnostics.ErrComptimeEval {
			t.Errorf("wrong code: %s", diag.Code)
		}
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	build := func(workers int) *Result {
		prog := mir.NewProgram()
		prog.Add(doubleFn(1, "double"))
		prog.Add(divFn(2, "ratio"))
		prog.Add(insertFn(3, "gen", "value extra xxx"))

		var sites []mir.CallSite
		for i := 0; i < 20; i++ {
			sites = append(sites, mir.CallSite{
				ID:     i + 1,
				Func:   1,
				Args:   []mir.Constant{&mir.IntConst{Type: typesystem.I64, Bits: uint64(i)}},
				Span:   diagnostics.Span{File: "main.lm", Line: i + 1, Col: 1},
				Marked: true,
			})
		}
		sites = append(sites,
			mir.CallSite{ID: 21, Func: 2, Args: []mir.Constant{
				&mir.IntConst{Type: typesystem.I64, Bits: 1},
				&mir.IntConst{Type: typesystem.I64, Bits: 0},
			}, Span: diagnostics.Span{File: "main.lm", Line: 21, Col: 1}, Marked: true},
			mir.CallSite{ID: 22, Func: 3, Span: diagnostics.Span{File: "main.lm", Line: 22, Col: 1}, Marked: true},
		)

		d := newDriver(t, prog, sites, session(workers), nil)
		return d.Run()
	}

	a := build(1)
	b := build(8)

	if len(a.Values) != len(b.Values) {
		t.Fatalf("value counts differ: %d vs %d", len(a.Values), len(b.Values))
	}
	for id, av := range a.Values {
		bv, ok := b.Values[id]
		if !ok || !value.Equal(av, bv) {
			t.Errorf("site %d differs across worker counts", id)
		}
	}
	if len(a.Diags) != len(b.Diags) {
		t.Fatalf("diag counts differ: %d vs %d", len(a.Diags), len(b.Diags))
	}
	for i := range a.Diags {
		if a.Diags[i].Error() != b.Diags[i].Error() {
			t.Errorf("diag %d differs: %q vs %q", i, a.Diags[i].Error(), b.Diags[i].Error())
		}
	}
	if len(a.Generated) != len(b.Generated) {
		t.Errorf("generated counts differ: %d vs %d", len(a.Generated), len(b.Generated))
	}
}

func TestSandboxDeniesShellEffect(t *testing.T) {
	runWith := func(mode string) *Result {
		prog := mir.NewProgram()
		prog.Add(shellFn(1))
		s := session(2)
		s.Mode = mode
		d := newDriver(t, prog, []mir.CallSite{{ID: 1, Func: 1, Span: siteSpan, Marked: true}}, s, nil)
		return d.Run()
	}

	if res := runWith(config.ModeBuild); res.Failed() {
		t.Fatalf("build mode must execute the shell probe: %+v", res.Diags)
	}

	res := runWith(config.ModeLSPSandbox)
	if !res.Failed() {
		t.Fatalf("sandbox must deny the shell probe")
	}
	if res.Diags[0].Code != diagnostics.ErrCapabilityDenied {
		t.Errorf("wrong code: %s", res.Diags[0].Code)
	}
}

func TestMemoizationSharesEvaluations(t *testing.T) {
	prog := mir.NewProgram()
	prog.Add(doubleFn(1, "double"))

	// Ten identical sites; the cache collapses them to one evaluation.
	// One worker keeps the hit count exact.
	var sites []mir.CallSite
	for i := 0; i < 10; i++ {
		sites = append(sites, mir.CallSite{
			ID:     i + 1,
			Func:   1,
			Args:   []mir.Constant{&mir.IntConst{Type: typesystem.I64, Bits: 3}},
			Span:   siteSpan,
			Marked: true,
		})
	}
	d := newDriver(t, prog, sites, session(1), nil)

	res := d.Run()
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Diags)
	}
	for i := 1; i <= 10; i++ {
		wantValue(t, res, i, 6)
	}
	hits, misses := d.memo.Stats()
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
	if hits != 9 {
		t.Errorf("hits = %d, want 9", hits)
	}
}
