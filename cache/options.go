package cache

import "log/slog"

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictCapacity — removed by Insert to bring usage back under capacity.
	EvictCapacity EvictReason = iota
	// EvictReplaced — superseded by an Insert of the same key.
	EvictReplaced
	// EvictErased — removed by an explicit Erase.
	EvictErased
	// EvictPruned — removed by Prune or Close.
	EvictPruned
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictReplaced:
		return "replaced"
	case EvictErased:
		return "erased"
	case EvictPruned:
		return "pruned"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// All hooks are called with a shard lock held; keep them cheap.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Evict reports an entry leaving the table. The entry may still be
	// pinned by callers; its deleter runs when they release it.
	Evict(reason EvictReason)
	// Size reports a shard's resident entry count and total charge.
	Size(shard int, entries int, charge int64)
}

// Options configures a cache. Zero values are safe;
// defaults are applied in New():
//   - Shards <= 0  => 16 (otherwise rounded up to a power of two, max 256)
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => discard
type Options struct {
	// Capacity is the total charge budget, split evenly across shards.
	// A value <= 0 disables caching: Insert still returns a usable handle
	// but nothing is retained.
	Capacity int64

	// Shards is the number of independently locked partitions.
	Shards int

	Metrics Metrics
	Logger  *slog.Logger
}
