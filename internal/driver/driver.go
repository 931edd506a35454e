// Package driver orchestrates the comptime phase: eligibility analysis,
// call-site evaluation, and the insertion fixpoint. It is the only
// component allowed to commit new items to the program and type tables.
package driver

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumelang/lume/internal/analyzer"
	"github.com/lumelang/lume/internal/cache"
	"github.com/lumelang/lume/internal/capability"
	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/hostio"
	"github.com/lumelang/lume/internal/insert"
	"github.com/lumelang/lume/internal/interp"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/reflection"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

// Phase is the compilation pipeline state. The driver owns the segment
// from ComptimeExecuting through the Reinjecting loop; the phases on
// either side belong to the frontend and the backend.
type Phase int

const (
	PhaseParsed Phase = iota
	PhaseResolved
	PhaseTypeChecked
	PhaseComptimeExecuting
	PhaseReinjecting
	PhaseMIRLowered
	PhaseCodeGenerated
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseParsed:            "Parsed",
	PhaseResolved:          "Resolved",
	PhaseTypeChecked:       "TypeChecked",
	PhaseComptimeExecuting: "ComptimeExecuting",
	PhaseReinjecting:       "Reinjecting",
	PhaseMIRLowered:        "MIRLowered",
	PhaseCodeGenerated:     "CodeGenerated",
	PhaseFailed:            "Failed",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "Phase?"
}

// Options configures a driver.
type Options struct {
	Session  *config.Session
	Frontend insert.Frontend
	Logger   *zap.Logger

	// Prober overrides external-input probing in tests.
	Prober cache.Prober
}

// Driver runs the comptime phase for one compilation session.
type Driver struct {
	prog    *mir.Program
	types   *typesystem.Table
	sites   []mir.CallSite
	session *config.Session
	fe      insert.Frontend
	log     *zap.Logger

	sessionID string
	caps      *capability.Context
	refl      *reflection.Provider
	memo      *cache.Cache
	store     *cache.Store
	interp    *interp.Interp
	analysis  *analyzer.Analysis
	pipeline  *insert.Pipeline

	phase      Phase
	nextSiteID int
}

// Result is the settled comptime phase.
type Result struct {
	// Values maps call-site ID to the evaluated ComptimeValue.
	Values map[int]value.Value

	// Generated lists every function committed by insertion rounds, in
	// commit order. The order is deterministic for a fixed input
	// regardless of worker count.
	Generated []typesystem.FuncID

	Diags []*diagnostics.Diagnostic
	Phase Phase

	// Passes is the number of insertion rounds that ran.
	Passes int
}

// Failed reports whether compilation must abort.
func (r *Result) Failed() bool {
	return len(r.Diags) > 0
}

// New wires a driver from a program snapshot. The session policy is fixed
// here and never changes afterwards.
func New(prog *mir.Program, types *typesystem.Table, sites []mir.CallSite, opts Options) (*Driver, error) {
	if opts.Session == nil {
		opts.Session = config.DefaultSession()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	caps, err := capability.FromSession(opts.Session)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		prog:      prog,
		types:     types,
		sites:     sites,
		session:   opts.Session,
		fe:        opts.Frontend,
		log:       log,
		sessionID: uuid.NewString(),
		caps:      caps,
		refl:      reflection.NewProvider(types),
		analysis:  analyzer.New(),
		phase:     PhaseTypeChecked,
	}

	if opts.Session.CacheDir != "" {
		store, err := cache.OpenStore(opts.Session.CacheDir, d.sessionID)
		if err != nil {
			return nil, fmt.Errorf("opening comptime cache: %w", err)
		}
		d.store = store
	}
	d.memo = cache.New(d.store, opts.Prober, log)

	host := hostio.NewHost(caps, log)
	d.interp = interp.New(prog, types, d.refl, host, opts.Session.MaxSteps, log)
	d.pipeline = insert.NewPipeline(opts.Frontend, log)

	for _, s := range sites {
		if s.ID >= d.nextSiteID {
			d.nextSiteID = s.ID + 1
		}
	}
	return d, nil
}

// Close releases the on-disk cache, if any.
func (d *Driver) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Driver) Phase() Phase {
	return d.phase
}

// Run executes ComptimeExecuting and the Reinjecting fixpoint, then
// settles in the final TypeChecked state (or Failed). Errors from
// independent call sites are collected, not short-circuited: one build
// reports every comptime failure it can discover.
func (d *Driver) Run() *Result {
	d.phase = PhaseComptimeExecuting
	d.log.Info("comptime phase starting",
		zap.String("session", d.sessionID),
		zap.String("mode", d.caps.Mode().String()),
		zap.Int("call_sites", len(d.sites)),
		zap.Int("workers", d.session.Workers))

	bag := diagnostics.NewBag()
	res := &Result{Values: make(map[int]value.Value)}

	d.analysis.Run(d.prog)

	for _, site := range d.sites {
		bag.Add(d.analysis.CheckSite(d.prog, site))
	}

	pendings := d.evaluateRound(d.markedSites(d.sites), nil, res, bag)

	for len(pendings) > 0 {
		res.Passes++
		if res.Passes > d.session.MaxPasses {
			bag.Add(diagnostics.New(diagnostics.ErrInsertionDivergence, pendings[0].Origin,
				"insertion did not stabilize after %d passes", d.session.MaxPasses).
				WithNote("offending chain: %s", insert.DescribeChain(pendings)))
			break
		}
		d.phase = PhaseReinjecting
		d.log.Debug("insertion round", zap.Int("pass", res.Passes), zap.Int("pending", len(pendings)))

		round := d.pipeline.Round(pendings, bag)
		res.Generated = append(res.Generated, round.NewFuncs...)

		// The tables grew; refresh every reader before evaluating
		// anything from the new items.
		d.analysis.Extend(d.prog, round.NewFuncs)
		d.refl.Reset(d.types)
		d.interp.Retarget(d.prog, d.types)

		newSites, origins := d.adoptSites(round.NewSites)
		for _, site := range newSites {
			if diag := d.analysis.CheckSite(d.prog, site); diag != nil {
				if o, ok := origins[site.ID]; ok {
					diag.WithOrigin(o)
				}
				bag.Add(diag)
			}
		}
		pendings = d.evaluateRound(d.markedSites(newSites), origins, res, bag)
	}

	res.Diags = bag.All()
	if res.Failed() {
		d.phase = PhaseFailed
	} else {
		d.phase = PhaseTypeChecked
	}
	res.Phase = d.phase

	hits, misses := d.memo.Stats()
	d.log.Info("comptime phase finished",
		zap.String("phase", d.phase.String()),
		zap.Int("passes", res.Passes),
		zap.Int("diagnostics", len(res.Diags)),
		zap.Int64("cache_hits", hits),
		zap.Int64("cache_misses", misses))
	return res
}

func (d *Driver) markedSites(sites []mir.CallSite) []mir.CallSite {
	out := make([]mir.CallSite, 0, len(sites))
	for _, s := range sites {
		if s.Marked {
			out = append(out, s)
		}
	}
	return out
}

// adoptSites assigns fresh IDs to sites discovered inside generated code
// and remembers their insertion origins for error attribution.
func (d *Driver) adoptSites(found []insert.NewSite) ([]mir.CallSite, map[int]diagnostics.Span) {
	sites := make([]mir.CallSite, 0, len(found))
	origins := make(map[int]diagnostics.Span, len(found))
	for _, ns := range found {
		site := ns.Site
		site.ID = d.nextSiteID
		d.nextSiteID++
		origins[site.ID] = ns.Origin
		sites = append(sites, site)
	}
	return sites, origins
}
