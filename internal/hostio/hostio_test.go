package hostio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lumelang/lume/internal/capability"
	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/value"
)

var testSpan = diagnostics.Span{File: "main.lm", Line: 1, Col: 1}

func buildHost() *Host {
	return NewHost(capability.NewBuildContext(), nil)
}

func sandboxHost(read, network, shell capability.Decision) *Host {
	return NewHost(capability.NewSandboxContext(read, network, shell), nil)
}

func TestFileReadRecordsHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %s", err)
	}

	rl := NewReadLog()
	v, diag := buildHost().FileRead(path, rl, testSpan)
	if diag != nil {
		t.Fatalf("read error: %s", diag.Error())
	}
	s, ok := v.(*value.Str)
	if !ok || s.Val != "hello" {
		t.Fatalf("wrong content. got=%T (%+v)", v, v)
	}

	recs := rl.Records()
	if len(recs) != 1 {
		t.Fatalf("expected one read record, got %d", len(recs))
	}
	want, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash: %s", err)
	}
	if recs[0].Path != path || recs[0].Hash != want {
		t.Errorf("record = %+v, want hash %s", recs[0], want)
	}
}

func TestReadLogFirstHashWins(t *testing.T) {
	rl := NewReadLog()
	rl.Record("a.txt", "h1")
	rl.Record("a.txt", "h2")
	rl.Record("b.txt", "h3")

	recs := rl.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Hash != "h1" {
		t.Errorf("first hash must win, got %s", recs[0].Hash)
	}
}

func TestFileReadMissing(t *testing.T) {
	_, diag := buildHost().FileRead(filepath.Join(t.TempDir(), "absent"), NewReadLog(), testSpan)
	if diag == nil || diag.Code != diagnostics.ErrComptimeEval {
		t.Fatalf("expected ComptimeEval diagnostic, got %+v", diag)
	}
}

func TestFileReadDenied(t *testing.T) {
	h := sandboxHost(capability.Deny, capability.Deny, capability.Deny)
	_, diag := h.FileRead("anything", NewReadLog(), testSpan)
	if diag == nil || diag.Code != diagnostics.ErrCapabilityDenied {
		t.Fatalf("expected CapabilityDenied, got %+v", diag)
	}
}

func TestFileWriteNoOpShapesLikeSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	h := sandboxHost(capability.Execute, capability.Deny, capability.Deny)

	v, diag := h.FileWrite(path, "payload", testSpan)
	if diag != nil {
		t.Fatalf("write error: %s", diag.Error())
	}
	res, ok := v.(*value.Struct)
	if !ok || res.Type != config.WriteResultTypeID {
		t.Fatalf("wrong result value. got=%T (%+v)", v, v)
	}
	okField := res.Fields[0].(*value.Bool)
	nField := res.Fields[1].(*value.Int)
	if !okField.Val || nField.Bits != uint64(len("payload")) {
		t.Errorf("noop result = (%t, %d), want (true, %d)", okField.Val, nField.Bits, len("payload"))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("sandbox write must not touch the disk")
	}
}

func TestFileWriteBuildMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	v, diag := buildHost().FileWrite(path, "data", testSpan)
	if diag != nil {
		t.Fatalf("write error: %s", diag.Error())
	}
	res := v.(*value.Struct)
	if !res.Fields[0].(*value.Bool).Val {
		t.Fatalf("write reported failure")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "data" {
		t.Errorf("file content = %q, %v", data, err)
	}
}

func TestFileWriteFailureIsResultNotError(t *testing.T) {
	// Writing into a missing directory fails, but as a result value the
	// program can branch on, not a diagnostic.
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "out.txt")
	v, diag := buildHost().FileWrite(path, "data", testSpan)
	if diag != nil {
		t.Fatalf("write must not produce a diagnostic: %s", diag.Error())
	}
	res := v.(*value.Struct)
	if res.Fields[0].(*value.Bool).Val {
		t.Fatalf("failed write reported success")
	}
}

func TestShellExecDenied(t *testing.T) {
	h := sandboxHost(capability.Execute, capability.Deny, capability.Deny)
	_, diag := h.ShellExec("true", testSpan)
	if diag == nil || diag.Code != diagnostics.ErrCapabilityDenied {
		t.Fatalf("expected CapabilityDenied, got %+v", diag)
	}
}

func TestShellExecNoOp(t *testing.T) {
	h := sandboxHost(capability.Execute, capability.Deny, capability.NoOpSucceed)
	v, diag := h.ShellExec("definitely-not-a-command", testSpan)
	if diag != nil {
		t.Fatalf("noop exec error: %s", diag.Error())
	}
	res, ok := v.(*value.Struct)
	if !ok || res.Type != config.ExecResultTypeID {
		t.Fatalf("wrong result value. got=%T (%+v)", v, v)
	}
	if res.Fields[0].(*value.Int).Int64() != 0 {
		t.Errorf("noop exec status must be 0")
	}
}

func TestShellExecCapturesStatus(t *testing.T) {
	v, diag := buildHost().ShellExec("exit 3", testSpan)
	if diag != nil {
		t.Fatalf("exec error: %s", diag.Error())
	}
	res := v.(*value.Struct)
	if got := res.Fields[0].(*value.Int).Int64(); got != 3 {
		t.Errorf("status = %d, want 3", got)
	}
}

func TestNetFetchDenied(t *testing.T) {
	h := sandboxHost(capability.Execute, capability.Deny, capability.Deny)
	_, diag := h.NetFetch("http://localhost/", testSpan)
	if diag == nil || diag.Code != diagnostics.ErrCapabilityDenied {
		t.Fatalf("expected CapabilityDenied, got %+v", diag)
	}
}

func TestNetFetchNoOp(t *testing.T) {
	h := sandboxHost(capability.Execute, capability.NoOpSucceed, capability.Deny)
	v, diag := h.NetFetch("http://localhost/", testSpan)
	if diag != nil {
		t.Fatalf("noop fetch error: %s", diag.Error())
	}
	if s, ok := v.(*value.Str); !ok || s.Val != "" {
		t.Fatalf("noop fetch must return an empty string, got %T (%+v)", v, v)
	}
}
