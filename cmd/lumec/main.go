package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/driver"
	"github.com/lumelang/lume/internal/mir"
)

const usage = `Usage: lumec <command> [options] <bundle>

Commands:
  comptime <bundle>   run the comptime phase over a lowered bundle
  mir <bundle>        dump the bundle's MIR
  info <bundle>       print a bundle summary

Options for comptime:
  -config <file>      session config (YAML)
  -cache <dir>        enable the on-disk comptime cache
  -sandbox            run under the lsp-sandbox capability policy
  -v                  verbose engine logging
`

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "comptime":
		runComptime(os.Args[2:])
	case "mir":
		runDump(os.Args[2:])
	case "info":
		runInfo(os.Args[2:])
	case "help", "-help", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func runComptime(args []string) {
	var (
		configPath string
		cacheDir   string
		sandbox    bool
		verbose    bool
		bundlePath string
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			i++
			if i >= len(args) {
				fatal("missing value for -config")
			}
			configPath = args[i]
		case "-cache", "--cache":
			i++
			if i >= len(args) {
				fatal("missing value for -cache")
			}
			cacheDir = args[i]
		case "-sandbox", "--sandbox":
			sandbox = true
		case "-v", "--verbose":
			verbose = true
		default:
			if strings.HasPrefix(args[i], "-") {
				fatal("unknown flag: %s", args[i])
			}
			if bundlePath != "" {
				fatal("multiple bundle paths given")
			}
			bundlePath = args[i]
		}
	}
	if bundlePath == "" {
		fatal("comptime: missing bundle path")
	}

	session := config.DefaultSession()
	if configPath != "" {
		loaded, err := config.LoadSession(configPath)
		if err != nil {
			fatal("%v", err)
		}
		session = loaded
	}
	if cacheDir != "" {
		session.CacheDir = cacheDir
	}
	if sandbox {
		session.Mode = config.ModeLSPSandbox
	}

	bundle, err := mir.ReadBundle(bundlePath)
	if err != nil {
		fatal("%v", err)
	}
	prog, types := bundle.Restore()

	d, err := driver.New(prog, types, bundle.Sites, driver.Options{
		Session:  session,
		Frontend: &driver.StructuralFrontend{Prog: prog, Types: types},
		Logger:   newLogger(verbose),
	})
	if err != nil {
		fatal("%v", err)
	}
	defer d.Close()

	res := d.Run()

	color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	diagnostics.RenderAll(os.Stderr, res.Diags, color)

	ids := make([]int, 0, len(res.Values))
	for id := range res.Values {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Printf("site #%d = %s\n", id, res.Values[id].Inspect())
	}
	if res.Passes > 0 {
		fmt.Printf("insertion passes: %d, generated functions: %d\n", res.Passes, len(res.Generated))
	}

	if res.Failed() {
		os.Exit(1)
	}
}

func runDump(args []string) {
	if len(args) != 1 {
		fatal("mir: expected exactly one bundle path")
	}
	bundle, err := mir.ReadBundle(args[0])
	if err != nil {
		fatal("%v", err)
	}
	prog, _ := bundle.Restore()
	fmt.Print(prog.Dump())
}

func runInfo(args []string) {
	if len(args) != 1 {
		fatal("info: expected exactly one bundle path")
	}
	bundle, err := mir.ReadBundle(args[0])
	if err != nil {
		fatal("%v", err)
	}

	marked := 0
	for _, s := range bundle.Sites {
		if s.Marked {
			marked++
		}
	}
	fmt.Printf("source:     %s\n", bundle.SourceFile)
	fmt.Printf("functions:  %d\n", len(bundle.Funcs))
	fmt.Printf("call sites: %d (%d comptime)\n", len(bundle.Sites), marked)
	fmt.Printf("structs:    %d\n", len(bundle.Structs))
	fmt.Printf("enums:      %d\n", len(bundle.Enums))
}

// newLogger builds the engine logger. Default output is warnings only so
// diagnostics stay readable; -v turns on the full debug stream.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
