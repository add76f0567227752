package cache

// Deleter finalizes an entry's value. It runs exactly once, when the last
// reference to the entry is dropped, on the goroutine that dropped it and
// while that entry's shard lock is held: it must be fast and must not call
// back into the same cache.
type Deleter[V any] func(key []byte, value V)

// Handle is an opaque reference to a cache entry, returned by Insert and
// Lookup. Every handle must be passed to Release exactly once.
//
// Internally a Handle is also the entry itself: it is linked into its
// shard's hash table (nextHash) and into exactly one of the shard's two
// lists (next/prev).
type Handle[V any] struct {
	key     []byte // owned copy
	value   V
	deleter Deleter[V]
	charge  int64
	hash    uint32

	// refs counts the caller handles plus one for the cache itself while
	// inCache is true.
	refs    uint32
	inCache bool

	nextHash *Handle[V]
	next     *Handle[V]
	prev     *Handle[V]
}

// Charge returns the cost the entry was inserted with.
func (h *Handle[V]) Charge() int64 { return h.charge }

// -------------------- intrusive lists --------------------

// initSentinel makes h an empty circular list head.
func (h *Handle[V]) initSentinel() {
	h.next = h
	h.prev = h
}

// empty reports whether the list headed by sentinel h has no entries.
func (h *Handle[V]) empty() bool { return h.next == h }

// listRemove unlinks e from whichever list it is on.
func listRemove[V any](e *Handle[V]) {
	e.next.prev = e.prev
	e.prev.next = e.next
	e.next, e.prev = nil, nil
}

// listAppend makes e the newest entry of the list headed by sentinel list.
// list.next is the oldest entry, list.prev the newest.
func listAppend[V any](list, e *Handle[V]) {
	e.next = list
	e.prev = list.prev
	e.prev.next = e
	e.next.prev = e
}
