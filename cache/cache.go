package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/blockcache/internal/util"
)

var (
	// ErrHandlesOutstanding is returned by Close when callers still hold
	// handles that were never released.
	ErrHandlesOutstanding = errors.New("cache: handles outstanding")

	// ErrNilLoader is returned by GetOrLoad when load is nil.
	ErrNilLoader = errors.New("cache: nil loader")
)

// lastID backs NewID. It is shared by every cache in the process so ids
// never collide between caches.
var lastID atomic.Uint64

// NewID returns a new process-wide unique id. The first id is 1.
func NewID() uint64 { return lastID.Add(1) }

// shardedCache partitions the key space across independently locked
// shards selected by the top bits of the key hash.
type shardedCache[V any] struct {
	shards    []*shard[V]
	shardBits uint
	log       *slog.Logger

	// coalesces concurrent GetOrLoad misses per key
	sf singleflight.Group
}

// New constructs a sharded LRU cache.
func New[V any](opt Options) Cache[V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	bits := util.ShardBits(opt.Shards)
	c := &shardedCache[V]{
		shards:    make([]*shard[V], 1<<bits),
		shardBits: bits,
		log:       opt.Logger,
	}
	for i := range c.shards {
		c.shards[i] = newShard[V](i, 0, opt.Metrics)
	}
	c.SetCapacity(opt.Capacity)

	c.log.Debug("cache: created", "shards", len(c.shards), "capacity", opt.Capacity)
	return c
}

// ---- Cache[V] implementation ----

func (c *shardedCache[V]) Insert(key []byte, value V, charge int64, deleter Deleter[V]) *Handle[V] {
	if charge < 0 {
		charge = 0
	}
	hash := util.Hash32(key)
	return c.shardFor(hash).Insert(key, hash, value, charge, deleter)
}

func (c *shardedCache[V]) Lookup(key []byte) *Handle[V] {
	hash := util.Hash32(key)
	return c.shardFor(hash).Lookup(key, hash)
}

func (c *shardedCache[V]) Release(h *Handle[V]) {
	if h == nil {
		return
	}
	c.shardFor(h.hash).Release(h)
}

// Value is safe without a lock: an entry's value never changes after
// Insert, and the caller's reference keeps the entry alive.
func (c *shardedCache[V]) Value(h *Handle[V]) V { return h.value }

func (c *shardedCache[V]) Erase(key []byte) {
	hash := util.Hash32(key)
	c.shardFor(hash).Erase(key, hash)
}

func (c *shardedCache[V]) NewID() uint64 { return NewID() }

func (c *shardedCache[V]) Prune() {
	for _, s := range c.shards {
		s.Prune()
	}
}

func (c *shardedCache[V]) TotalCharge() int64 {
	var total int64
	for _, s := range c.shards {
		total += s.TotalCharge()
	}
	return total
}

// SetCapacity splits capacity evenly; the first capacity%shards shards
// get one extra unit.
func (c *shardedCache[V]) SetCapacity(capacity int64) {
	if capacity < 0 {
		capacity = 0
	}
	n := int64(len(c.shards))
	per, rem := capacity/n, capacity%n
	for i, s := range c.shards {
		sc := per
		if int64(i) < rem {
			sc++
		}
		s.SetCapacity(sc)
	}
	c.log.Debug("cache: capacity set", "capacity", capacity, "per_shard", per)
}

func (c *shardedCache[V]) Capacity() int64 {
	var total int64
	for _, s := range c.shards {
		total += s.Capacity()
	}
	return total
}

func (c *shardedCache[V]) PinnedCharge() int64 {
	var total int64
	for _, s := range c.shards {
		total += s.PinnedCharge()
	}
	return total
}

func (c *shardedCache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

func (c *shardedCache[V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
	}
	return st
}

// GetOrLoad returns a handle for key; on a miss it calls load, sharing one
// call among concurrent misses for the same key. Waiters return ctx.Err()
// if ctx is done first; the shared load itself runs with the leader's ctx.
func (c *shardedCache[V]) GetOrLoad(ctx context.Context, key []byte, load LoadFunc[V]) (*Handle[V], error) {
	if h := c.Lookup(key); h != nil {
		return h, nil
	}
	if load == nil {
		return nil, ErrNilLoader
	}
	if c.shardFor(util.Hash32(key)).Capacity() <= 0 {
		// The key's shard retains nothing, so waiters would find nothing.
		return c.loadAndInsert(ctx, key, load)
	}

	ch := c.sf.DoChan(string(key), func() (any, error) {
		// double-check after joining the flight
		if h := c.Lookup(key); h != nil {
			c.Release(h)
			return nil, nil
		}
		h, err := c.loadAndInsert(ctx, key, load)
		if err != nil {
			return nil, err
		}
		c.Release(h)
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
	}

	if h := c.Lookup(key); h != nil {
		return h, nil
	}
	// Evicted or erased between the shared load and our Lookup.
	return c.loadAndInsert(ctx, key, load)
}

func (c *shardedCache[V]) loadAndInsert(ctx context.Context, key []byte, load LoadFunc[V]) (*Handle[V], error) {
	v, charge, deleter, err := load(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.Insert(key, v, charge, deleter), nil
}

// Close prunes every shard, running the deleters of idle entries. Entries
// still pinned by callers stay alive and are reported as an error.
func (c *shardedCache[V]) Close() error {
	pinned := 0
	for _, s := range c.shards {
		pinned += s.drain()
	}
	if pinned > 0 {
		c.log.Warn("cache: closed with outstanding handles", "pinned", pinned)
		return fmt.Errorf("%w: %d entries", ErrHandlesOutstanding, pinned)
	}
	return nil
}

// ---- helpers ----

// shardFor picks the shard from the top bits of hash.
func (c *shardedCache[V]) shardFor(hash uint32) *shard[V] {
	return c.shards[util.ShardIndex(hash, c.shardBits)]
}
