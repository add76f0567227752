package cache

import (
	"sync"

	"github.com/IvanBrykalov/blockcache/internal/util"
)

// shard is one independently locked LRU partition.
//
// Every resident entry (inCache == true) is on exactly one list:
//   - lru:   refs == 1, only the cache holds it; evictable, oldest at lru.next.
//   - inUse: refs >= 2, pinned by callers.
//
// Entries that were evicted or erased while still referenced are on no list;
// they only live on through the callers' handles.
type shard[V any] struct {
	// ---- guarded by mu ----
	mu       sync.Mutex
	capacity int64
	usage    int64
	lru      Handle[V] // sentinel
	inUse    Handle[V] // sentinel
	table    handleTable[V]

	idx     int
	metrics Metrics

	_      util.CacheLinePad
	hits   util.PaddedCounter
	misses util.PaddedCounter
}

func newShard[V any](idx int, capacity int64, m Metrics) *shard[V] {
	s := &shard[V]{
		capacity: capacity,
		table:    newHandleTable[V](),
		idx:      idx,
		metrics:  m,
	}
	s.lru.initSentinel()
	s.inUse.initSentinel()
	return s
}

// SetCapacity changes the budget; eviction waits for the next Insert.
func (s *shard[V]) SetCapacity(capacity int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = capacity
}

func (s *shard[V]) Capacity() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Insert creates an entry and returns it holding one caller reference.
func (s *shard[V]) Insert(key []byte, hash uint32, value V, charge int64, deleter Deleter[V]) *Handle[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &Handle[V]{
		key:     append([]byte(nil), key...),
		value:   value,
		deleter: deleter,
		charge:  charge,
		hash:    hash,
		refs:    1, // for the returned handle
	}

	if s.capacity > 0 {
		e.refs++ // for the cache
		e.inCache = true
		listAppend(&s.inUse, e)
		s.usage += charge
		s.finishErase(s.table.Insert(e), EvictReplaced)
	} // else: caching is off, the entry is never linked

	for s.usage > s.capacity && !s.lru.empty() {
		old := s.lru.next
		if old.refs != 1 {
			panic("cache: evictable entry is referenced")
		}
		if !s.finishErase(s.table.Remove(old.key, old.hash), EvictCapacity) {
			panic("cache: evictable entry missing from table")
		}
	}

	s.metrics.Size(s.idx, s.table.elems, s.usage)
	return e
}

// Lookup returns a new reference to the entry for key, or nil.
func (s *shard[V]) Lookup(key []byte, hash uint32) *Handle[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.table.Lookup(key, hash)
	if e == nil {
		s.misses.Add(1)
		s.metrics.Miss()
		return nil
	}
	s.ref(e)
	s.hits.Add(1)
	s.metrics.Hit()
	return e
}

// Release drops one caller reference.
func (s *shard[V]) Release(e *Handle[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unref(e)
}

// Erase removes the entry for key from the table and drops the cache's
// reference to it.
func (s *shard[V]) Erase(key []byte, hash uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishErase(s.table.Remove(key, hash), EvictErased) {
		s.metrics.Size(s.idx, s.table.elems, s.usage)
	}
}

// Prune evicts every idle entry regardless of capacity.
func (s *shard[V]) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
}

// TotalCharge returns the charge of all resident entries.
func (s *shard[V]) TotalCharge() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// PinnedCharge returns the charge of resident entries on inUse.
func (s *shard[V]) PinnedCharge() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for e := s.inUse.next; e != &s.inUse; e = e.next {
		total += e.charge
	}
	return total
}

// Len returns the number of resident entries.
func (s *shard[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.elems
}

// drain prunes the shard and returns how many resident entries are still
// pinned by callers.
func (s *shard[V]) drain() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	n := 0
	for e := s.inUse.next; e != &s.inUse; e = e.next {
		n++
	}
	return n
}

// -------------------- internals (mu held) --------------------

func (s *shard[V]) pruneLocked() {
	pruned := false
	for !s.lru.empty() {
		e := s.lru.next
		if e.refs != 1 {
			panic("cache: evictable entry is referenced")
		}
		if !s.finishErase(s.table.Remove(e.key, e.hash), EvictPruned) {
			panic("cache: evictable entry missing from table")
		}
		pruned = true
	}
	if pruned {
		s.metrics.Size(s.idx, s.table.elems, s.usage)
	}
}

// ref adds a caller reference, pinning the entry if it was idle.
func (s *shard[V]) ref(e *Handle[V]) {
	if e.refs == 1 && e.inCache {
		listRemove(e)
		listAppend(&s.inUse, e)
	}
	e.refs++
}

// unref drops a reference. The last one runs the deleter; dropping back to
// only the cache's reference makes the entry evictable again.
func (s *shard[V]) unref(e *Handle[V]) {
	if e.refs == 0 {
		panic("cache: release of unreferenced handle")
	}
	e.refs--
	switch {
	case e.refs == 0:
		if e.inCache {
			panic("cache: unreferenced entry still in cache")
		}
		if e.deleter != nil {
			e.deleter(e.key, e.value)
		}
	case e.inCache && e.refs == 1:
		listRemove(e)
		listAppend(&s.lru, e)
	}
}

// finishErase completes the removal of an entry that was just unlinked from
// the table. It reports whether e was non-nil.
func (s *shard[V]) finishErase(e *Handle[V], reason EvictReason) bool {
	if e == nil {
		return false
	}
	if !e.inCache {
		panic("cache: erased entry was not in cache")
	}
	listRemove(e)
	e.inCache = false
	s.usage -= e.charge
	s.metrics.Evict(reason)
	s.unref(e)
	return true
}
