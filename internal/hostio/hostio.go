// Package hostio implements the host effect operations comptime code can
// reach: file read/write, network fetch and shell execution. Every
// operation routes through the capability context first; the operation
// itself never inspects the session mode.
package hostio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/lumelang/lume/internal/capability"
	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/value"
)

// ReadRecord is one external input observed during an evaluation: the
// path and the content hash at read time. The cache replays these to
// decide whether a stored result is still valid.
type ReadRecord struct {
	Path string
	Hash string
}

// ReadLog collects the external inputs of a single evaluation. It is
// worker-local; no locking.
type ReadLog struct {
	records []ReadRecord
	seen    map[string]bool
}

func NewReadLog() *ReadLog {
	return &ReadLog{seen: make(map[string]bool)}
}

// Record notes a read. The first hash for a path wins: the evaluation saw
// that content, and a later change within the same build is the next
// build's problem.
func (rl *ReadLog) Record(path, hash string) {
	if rl == nil || rl.seen[path] {
		return
	}
	rl.seen[path] = true
	rl.records = append(rl.records, ReadRecord{Path: path, Hash: hash})
}

func (rl *ReadLog) Records() []ReadRecord {
	if rl == nil {
		return nil
	}
	return rl.records
}

// Host performs the real operations. One instance per session; stateless
// apart from the capability context and the HTTP client.
type Host struct {
	caps   *capability.Context
	client *http.Client
	log    *zap.Logger
}

func NewHost(caps *capability.Context, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{
		caps:   caps,
		client: &http.Client{Timeout: config.DefaultNetTimeoutMs * time.Millisecond},
		log:    log,
	}
}

// FileRead returns the file contents as a string value and records the
// content hash into the read log.
func (h *Host) FileRead(path string, rl *ReadLog, span diagnostics.Span) (value.Value, *diagnostics.Diagnostic) {
	switch h.caps.Check(capability.EffectRead) {
	case capability.Deny:
		return nil, denied(capability.EffectRead, span)
	case capability.NoOpSucceed:
		return &value.Str{Val: ""}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diagnostics.New(diagnostics.ErrComptimeEval, span, "file_read %q: %v", path, err)
	}
	rl.Record(path, hashBytes(data))
	h.log.Debug("comptime file read", zap.String("path", path), zap.Int("bytes", len(data)))
	return &value.Str{Val: string(data)}, nil
}

// FileWrite writes data and returns the builtin write-result struct
// (ok, bytes_written). Under NoOpSucceed the result is shaped exactly like
// a real success but nothing touches the disk.
func (h *Host) FileWrite(path, data string, span diagnostics.Span) (value.Value, *diagnostics.Diagnostic) {
	switch h.caps.Check(capability.EffectWrite) {
	case capability.Deny:
		return nil, denied(capability.EffectWrite, span)
	case capability.NoOpSucceed:
		return writeResult(true, len(data)), nil
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		h.log.Debug("comptime file write failed", zap.String("path", path), zap.Error(err))
		return writeResult(false, 0), nil
	}
	h.log.Debug("comptime file write", zap.String("path", path), zap.Int("bytes", len(data)))
	return writeResult(true, len(data)), nil
}

// NetFetch performs an HTTP GET and returns the body as a string value.
// Responses are not tracked as cache inputs; a function that wants
// reproducible builds should not fetch the network, and the session can
// deny the class outright.
func (h *Host) NetFetch(url string, span diagnostics.Span) (value.Value, *diagnostics.Diagnostic) {
	switch h.caps.Check(capability.EffectNetwork) {
	case capability.Deny:
		return nil, denied(capability.EffectNetwork, span)
	case capability.NoOpSucceed:
		return &value.Str{Val: ""}, nil
	}
	resp, err := h.client.Get(url)
	if err != nil {
		return nil, diagnostics.New(diagnostics.ErrComptimeEval, span, "net_fetch %q: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, diagnostics.New(diagnostics.ErrComptimeEval, span, "net_fetch %q: reading body: %v", url, err)
	}
	h.log.Debug("comptime net fetch", zap.String("url", url), zap.Int("status", resp.StatusCode))
	return &value.Str{Val: string(body)}, nil
}

// ShellExec runs a command through the shell and returns the builtin
// exec-result struct (status, output).
func (h *Host) ShellExec(command string, span diagnostics.Span) (value.Value, *diagnostics.Diagnostic) {
	switch h.caps.Check(capability.EffectShell) {
	case capability.Deny:
		return nil, denied(capability.EffectShell, span)
	case capability.NoOpSucceed:
		return execResult(0, ""), nil
	}
	cmd := exec.Command("sh", "-c", command)
	out, err := cmd.CombinedOutput()
	status := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		} else {
			return nil, diagnostics.New(diagnostics.ErrComptimeEval, span, "shell_exec %q: %v", command, err)
		}
	}
	h.log.Debug("comptime shell exec", zap.String("command", command), zap.Int("status", status))
	return execResult(status, string(out)), nil
}

func denied(e capability.EffectClass, span diagnostics.Span) *diagnostics.Diagnostic {
	return diagnostics.New(diagnostics.ErrCapabilityDenied, span,
		"effect class %q denied by the current capability policy", e)
}

func writeResult(ok bool, n int) *value.Struct {
	return &value.Struct{
		Type: config.WriteResultTypeID,
		Fields: []value.Value{
			&value.Bool{Val: ok},
			&value.Int{Width: 64, Bits: uint64(n)},
		},
	}
}

func execResult(status int, output string) *value.Struct {
	return &value.Struct{
		Type: config.ExecResultTypeID,
		Fields: []value.Value{
			&value.Int{Width: 32, Signed: true, Bits: uint64(uint32(int32(status)))},
			&value.Str{Val: output},
		},
	}
}

// HashFile hashes current file contents; the cache probes recorded reads
// with it on lookup.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
