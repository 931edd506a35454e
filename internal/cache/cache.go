// Package cache memoizes comptime evaluations. The key is the function
// identity plus a structural hash of the argument values; validity further
// depends on every external input the evaluation read keeping its content
// hash. A hit must be indistinguishable from re-running the evaluation.
package cache

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/hostio"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

const numShards = 16

// Key identifies one memoized evaluation.
type Key struct {
	Func     typesystem.FuncID
	ArgsHash string
}

// Entry is a finished evaluation: the produced value or the error record,
// plus the external inputs observed while producing it.
type Entry struct {
	Value value.Value
	Diag  *diagnostics.Diagnostic
	Reads []hostio.ReadRecord
}

// Prober returns the current content hash for an external input path.
// Lookup replays an entry's read set through it; any mismatch, or a
// vanished input, turns the lookup into a miss.
type Prober func(path string) (string, error)

type shard struct {
	mu sync.Mutex
	m  map[Key]*Entry
}

// Cache is the only state shared across evaluation workers. Sharded
// mutexes keep concurrent lookups cheap; stores are insert-if-absent, so
// the first finished evaluation wins and duplicates are discarded (the
// determinism contract makes the duplicates equal anyway).
type Cache struct {
	shards [numShards]shard
	store  *Store
	probe  Prober
	log    *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New builds a cache. store may be nil (in-process memoization only);
// probe defaults to hashing files on disk.
func New(store *Store, probe Prober, log *zap.Logger) *Cache {
	if probe == nil {
		probe = hostio.HashFile
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{store: store, probe: probe, log: log}
	for i := range c.shards {
		c.shards[i].m = make(map[Key]*Entry)
	}
	return c
}

func (c *Cache) shardFor(k Key) *shard {
	h := uint64(k.Func)
	for i := 0; i < len(k.ArgsHash) && i < 8; i++ {
		h = h*31 + uint64(k.ArgsHash[i])
	}
	return &c.shards[h%numShards]
}

// Lookup returns a valid entry or a miss. Entries whose recorded external
// inputs changed are dropped and reported as misses so the caller
// recomputes them.
func (c *Cache) Lookup(fn typesystem.FuncID, argsHash string) (*Entry, bool) {
	k := Key{Func: fn, ArgsHash: argsHash}
	s := c.shardFor(k)

	s.mu.Lock()
	e, ok := s.m[k]
	s.mu.Unlock()

	if !ok && c.store != nil {
		var err error
		e, ok, err = c.store.Get(fn, argsHash)
		if err != nil {
			c.log.Warn("disk cache read failed", zap.Error(err))
			ok = false
		}
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if !c.validate(e) {
		s.mu.Lock()
		delete(s.m, k)
		s.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	// Promote disk hits into memory.
	s.mu.Lock()
	if _, present := s.m[k]; !present {
		s.m[k] = e
	} else {
		e = s.m[k]
	}
	s.mu.Unlock()

	c.hits.Add(1)
	return e, true
}

// validate replays the entry's read set against current content hashes.
func (c *Cache) validate(e *Entry) bool {
	for _, r := range e.Reads {
		cur, err := c.probe(r.Path)
		if err != nil || cur != r.Hash {
			c.log.Debug("cache entry invalidated",
				zap.String("path", r.Path), zap.Bool("missing", err != nil))
			return false
		}
	}
	return true
}

// Store records an evaluation result. Insert-if-absent: the returned
// entry is the canonical one, which may be an earlier winner.
func (c *Cache) Store(fn typesystem.FuncID, argsHash string, e *Entry) *Entry {
	k := Key{Func: fn, ArgsHash: argsHash}
	s := c.shardFor(k)

	s.mu.Lock()
	if prev, ok := s.m[k]; ok {
		s.mu.Unlock()
		return prev
	}
	s.m[k] = e
	s.mu.Unlock()

	if c.store != nil {
		if err := c.store.Put(fn, argsHash, e); err != nil {
			c.log.Warn("disk cache write failed", zap.Error(err))
		}
	}
	return e
}

// Stats returns hit/miss counters for end-of-build logging.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
