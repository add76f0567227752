package cache

import "context"

// Cache maps byte-string keys to reference-counted values with a per-entry
// charge. All methods are safe for concurrent use by multiple goroutines.
//
// Entries are pinned while any caller holds a Handle to them; only idle
// entries are evicted, oldest-idle first.
type Cache[V any] interface {
	// Insert maps key to value with the given charge and returns a handle
	// to the new entry. Any existing entry for key is replaced (it stays
	// alive until its outstanding handles are released). deleter, if not
	// nil, is called once when the entry is no longer referenced.
	Insert(key []byte, value V, charge int64, deleter Deleter[V]) *Handle[V]

	// Lookup returns a handle to the entry for key, or nil.
	Lookup(key []byte) *Handle[V]

	// Release drops a handle returned by Insert, Lookup or GetOrLoad.
	// Releasing the same handle twice panics. Release(nil) is a no-op.
	Release(h *Handle[V])

	// Value returns the value held by a live handle.
	Value(h *Handle[V]) V

	// Erase removes the entry for key from the cache. Outstanding handles
	// remain valid until released.
	Erase(key []byte)

	// NewID returns a new numeric id, unique across the process. Clients
	// sharing one cache use it to partition the key space.
	NewID() uint64

	// Prune drops every entry not pinned by a handle.
	Prune()

	// TotalCharge returns the combined charge of all resident entries.
	TotalCharge() int64

	// SetCapacity changes the charge budget. Eviction happens lazily on
	// the next Insert into each shard.
	SetCapacity(capacity int64)

	// Capacity returns the current charge budget.
	Capacity() int64

	// PinnedCharge returns the charge of resident entries held by callers.
	PinnedCharge() int64

	// Len returns the number of resident entries.
	Len() int

	// Stats returns lookup hit/miss counters.
	Stats() Stats

	// GetOrLoad returns a handle for key, calling load on a miss.
	// Concurrent misses on the same key share one load, unless the key's
	// shard has no capacity: then each caller loads a private entry.
	GetOrLoad(ctx context.Context, key []byte, load LoadFunc[V]) (*Handle[V], error)

	// Close prunes the cache and reports handles that were never released.
	Close() error
}

// LoadFunc produces the value, charge and deleter for a missing key.
type LoadFunc[V any] func(ctx context.Context, key []byte) (value V, charge int64, deleter Deleter[V], err error)

// Stats holds lookup counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}
