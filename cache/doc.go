// Package cache provides the block cache of an embedded key-value storage
// engine: a sharded, reference-counted LRU cache from byte-string keys to
// values, with a caller-assigned charge per entry and a deleter that runs
// when an entry is no longer referenced.
//
// Design
//
//   - Concurrency: the key space is split into 16 shards (Options.Shards
//     overrides), chosen by the top bits of a 32-bit xxhash of the key. Each
//     shard has one mutex held for the whole of every operation, including
//     the eviction loop inside Insert. No call path holds two shard locks.
//
//   - Storage: each shard keeps its own separate-chaining hash table of
//     entries (low hash bits pick the bucket) and two intrusive circular
//     lists: idle entries oldest-first, and entries pinned by handles.
//
//   - Ownership: Insert and Lookup return a *Handle holding one reference;
//     the cache holds one more while the entry is resident. An entry leaves
//     the idle list when a handle is taken and returns to its tail when the
//     last handle is released. The deleter runs when the count reaches zero,
//     which may be inside Insert (eviction), Release or Erase.
//
//   - Eviction: when usage exceeds capacity, Insert evicts idle entries
//     from the head of the idle list. Pinned entries are never evicted, so
//     usage can exceed capacity while handles are held.
//
//   - Misuse (double Release, corrupt bookkeeping) panics.
//
// Basic usage
//
//	c := cache.New[[]byte](cache.Options{Capacity: 8 << 20})
//	h := c.Insert(key, block, int64(len(block)), nil)
//	c.Release(h)
//	if h := c.Lookup(key); h != nil {
//	    use(c.Value(h))
//	    c.Release(h)
//	}
//
// Namespacing keys per table file
//
//	id := c.NewID()
//	key := binary.BigEndian.AppendUint64(binary.BigEndian.AppendUint64(nil, id), offset)
//
// Loading on miss
//
//	h, err := c.GetOrLoad(ctx, key, func(ctx context.Context, k []byte) ([]byte, int64, cache.Deleter[[]byte], error) {
//	    b, err := readBlock(ctx, k)
//	    return b, int64(len(b)), nil, err
//	})
//
// Exporting metrics
//
//	m := prom.New(nil, "engine", "block_cache", nil) // implements Metrics
//	c := cache.New[[]byte](cache.Options{Capacity: 8 << 20, Metrics: m})
package cache
