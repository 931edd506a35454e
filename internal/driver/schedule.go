package driver

import (
	"sync"

	"go.uber.org/zap"

	"github.com/lumelang/lume/internal/cache"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/insert"
	"github.com/lumelang/lume/internal/interp"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/value"
)

// outcome is one settled call site.
type outcome struct {
	site     mir.CallSite
	val      value.Value
	pendings []*insert.Pending
	diag     *diagnostics.Diagnostic
}

// evaluateRound evaluates independent call sites across the worker pool
// and gathers the results. Workers write into a slice indexed by site
// order, and pendings are collected from that slice afterwards, so the
// round's output is identical for any worker count.
func (d *Driver) evaluateRound(sites []mir.CallSite, origins map[int]diagnostics.Span, res *Result, bag *diagnostics.Bag) []*insert.Pending {
	if len(sites) == 0 {
		return nil
	}

	results := make([]outcome, len(sites))
	sem := make(chan struct{}, d.session.Workers)
	var wg sync.WaitGroup
	for i := range sites {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = d.evaluateOne(sites[i])
		}(i)
	}
	wg.Wait()

	var pendings []*insert.Pending
	for _, out := range results {
		if out.diag != nil {
			if o, ok := origins[out.site.ID]; ok && out.diag.Origin == nil {
				out.diag.WithOrigin(o)
			}
			bag.Add(out.diag)
			continue
		}
		res.Values[out.site.ID] = out.val
		pendings = append(pendings, out.pendings...)
	}
	return pendings
}

// evaluateOne runs a single call site through the cache and interpreter.
func (d *Driver) evaluateOne(site mir.CallSite) outcome {
	args := make([]value.Value, len(site.Args))
	for i, c := range site.Args {
		v, err := interp.ConstValue(c)
		if err != nil {
			return outcome{site: site, diag: diagnostics.New(diagnostics.ErrInternal, site.Span,
				"call-site argument %d: %v", i, err)}
		}
		args[i] = v
	}

	argsHash, err := value.Hash(args...)
	if err != nil {
		return outcome{site: site, diag: diagnostics.New(diagnostics.ErrInternal, site.Span,
			"hashing call-site arguments: %v", err)}
	}

	if entry, ok := d.memo.Lookup(site.Func, argsHash); ok {
		d.log.Debug("comptime cache hit", zap.Int("site", site.ID), zap.Uint32("func", uint32(site.Func)))
		if entry.Diag != nil {
			cached := *entry.Diag
			if cached.Span.IsZero() {
				cached.Span = site.Span
			}
			return outcome{site: site, diag: &cached}
		}
		return outcome{site: site, val: entry.Value}
	}

	out, diag := d.interp.Evaluate(site, args)
	if diag != nil {
		// Error records are cached like values: re-evaluating a failed
		// call with unchanged inputs reports the same failure.
		d.memo.Store(site.Func, argsHash, &cache.Entry{Diag: diag})
		return outcome{site: site, diag: diag}
	}

	// Insertion-producing evaluations are not memoized: a cache hit
	// would have to replay the pending insertions too, and re-running
	// the evaluation is the simpler way to guarantee that.
	if len(out.Pendings) == 0 {
		entry := d.memo.Store(site.Func, argsHash, &cache.Entry{Value: out.Value, Reads: out.Reads})
		return outcome{site: site, val: entry.Value}
	}
	return outcome{site: site, val: out.Value, pendings: out.Pendings}
}
