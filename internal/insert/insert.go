// Package insert splices generated code back into the program. Each
// pending insertion is consumed exactly once: its Code value is normalized
// to AST items (parsing raw text, validating pre-built structures) and
// committed to the frontend's incremental resolve/typecheck pass. The
// driver loops rounds of this until no insertion remains.
package insert

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lumelang/lume/internal/ast"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

// Pending is one #insert request captured during evaluation. The
// interpreter only packages it; splicing happens here.
type Pending struct {
	// Origin is the #insert call site, the anchor for secondary span
	// mapping of any diagnostic produced inside the generated code.
	Origin diagnostics.Span

	// Scope is the lexical scope the items are spliced into.
	Scope string

	// SiteID is the evaluated call site that produced the insertion,
	// used to report divergence chains.
	SiteID int

	Code *value.Code
}

// Frontend is the engine's narrow interface to the out-of-scope
// resolver/typechecker. Commit must be called only by the driver's
// insertion rounds — the driver owns the table extension point.
type Frontend interface {
	// ParseItems parses raw generated source text into items.
	ParseItems(src string, origin diagnostics.Span, scope string) ([]ast.Item, *diagnostics.Diagnostic)

	// Commit runs the incremental resolve+typecheck pass over new items
	// and publishes them to the program and type tables. It returns the
	// identities of the committed functions and any comptime call sites
	// discovered inside them.
	Commit(items []ast.Item, scope string, origin diagnostics.Span) (*CommitResult, *diagnostics.Diagnostic)
}

// CommitResult is what one committed batch contributed.
type CommitResult struct {
	NewFuncs []typesystem.FuncID
	NewSites []mir.CallSite
}

// NewSite pairs a discovered call site with the origin of the insertion
// that generated it, so later failures still map back to real source.
type NewSite struct {
	Site   mir.CallSite
	Origin diagnostics.Span
}

// RoundResult is the outcome of resolving one batch of pendings.
type RoundResult struct {
	NewFuncs []typesystem.FuncID
	NewSites []NewSite
}

// Pipeline drives insertion rounds against a frontend.
type Pipeline struct {
	fe  Frontend
	log *zap.Logger
}

func NewPipeline(fe Frontend, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{fe: fe, log: log}
}

// Round consumes one batch of pendings. Failures are collected into the
// bag with origin mapping attached; the round keeps going so one build
// reports every insertion failure it can find.
func (p *Pipeline) Round(pendings []*Pending, bag *diagnostics.Bag) *RoundResult {
	res := &RoundResult{}
	for _, pd := range pendings {
		items, diag := p.normalize(pd)
		if diag != nil {
			bag.Add(diag)
			continue
		}
		if len(items) == 0 {
			continue
		}
		commit, diag := p.fe.Commit(items, pd.Scope, pd.Origin)
		if diag != nil {
			if diag.Origin == nil {
				diag.WithOrigin(pd.Origin)
			}
			bag.Add(diag)
			continue
		}
		res.NewFuncs = append(res.NewFuncs, commit.NewFuncs...)
		for _, site := range commit.NewSites {
			site.Scope = pd.Scope
			res.NewSites = append(res.NewSites, NewSite{Site: site, Origin: pd.Origin})
		}
		p.log.Debug("insertion committed",
			zap.Int("site", pd.SiteID),
			zap.Int("items", len(items)),
			zap.Int("new_funcs", len(commit.NewFuncs)),
			zap.Int("new_sites", len(commit.NewSites)))
	}
	return res
}

// normalize turns a Code value into validated items. Raw text goes
// through the frontend parser; structured items are validated in place so
// the textual-vs-structural representation never leaks past this point.
func (p *Pipeline) normalize(pd *Pending) ([]ast.Item, *diagnostics.Diagnostic) {
	items := make([]ast.Item, 0, len(pd.Code.Items)+1)
	for _, item := range pd.Code.Items {
		if diag := validateItem(item, pd.Origin); diag != nil {
			return nil, diag
		}
		if raw, ok := item.(*ast.RawItem); ok {
			parsed, diag := p.parseText(raw.Source, pd)
			if diag != nil {
				return nil, diag
			}
			items = append(items, parsed...)
			continue
		}
		items = append(items, item)
	}
	if text := pd.Code.Text; strings.TrimSpace(text) != "" {
		parsed, diag := p.parseText(text, pd)
		if diag != nil {
			return nil, diag
		}
		items = append(items, parsed...)
	}
	return items, nil
}

func (p *Pipeline) parseText(src string, pd *Pending) ([]ast.Item, *diagnostics.Diagnostic) {
	parsed, diag := p.fe.ParseItems(src, pd.Origin, pd.Scope)
	if diag != nil {
		if diag.Origin == nil {
			diag.WithOrigin(pd.Origin)
		}
		return nil, diag
	}
	return parsed, nil
}

func validateItem(item ast.Item, origin diagnostics.Span) *diagnostics.Diagnostic {
	switch item := item.(type) {
	case *ast.FuncItem:
		if item.Func == nil || len(item.Func.Blocks) == 0 {
			return parseErr(origin, "generated function item has no body")
		}
	case *ast.StructItem:
		if item.Def == nil || item.Def.Name == "" {
			return parseErr(origin, "generated struct item has no definition")
		}
	case *ast.EnumItem:
		if item.Def == nil || item.Def.Name == "" {
			return parseErr(origin, "generated enum item has no definition")
		}
	case *ast.RawItem:
		// Raw text inside the item list gets parsed like Code text.
		if strings.TrimSpace(item.Source) == "" {
			return parseErr(origin, "generated raw item is empty")
		}
	default:
		return parseErr(origin, "unknown generated item %T", item)
	}
	return nil
}

func parseErr(origin diagnostics.Span, format string, args ...interface{}) *diagnostics.Diagnostic {
	d := diagnostics.New(diagnostics.ErrInsertionParse, origin, format, args...)
	return d.WithOrigin(origin)
}

// DescribeChain renders the offending call-site chain for an
// InsertionDivergence report.
func DescribeChain(pendings []*Pending) string {
	parts := make([]string, 0, len(pendings))
	for _, pd := range pendings {
		parts = append(parts, fmt.Sprintf("site#%d (%s)", pd.SiteID, pd.Origin))
	}
	return strings.Join(parts, " -> ")
}
