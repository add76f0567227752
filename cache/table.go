package cache

import "bytes"

// minTableBuckets is the smallest bucket array a table grows to.
const minTableBuckets = 4

// handleTable is a separate-chaining hash table of entries keyed by
// (hash, key). It does not own the entries; the shard does.
//
// The bucket array length is always a power of two and is grown so that
// the average chain length stays <= 1.
type handleTable[V any] struct {
	list  []*Handle[V]
	elems int
}

func newHandleTable[V any]() handleTable[V] {
	t := handleTable[V]{}
	t.resize()
	return t
}

// Lookup returns the entry for (key, hash) or nil.
func (t *handleTable[V]) Lookup(key []byte, hash uint32) *Handle[V] {
	return *t.findPointer(key, hash)
}

// Insert links h into the table and returns the entry it replaced, if any.
// The caller must finish removing the returned entry.
func (t *handleTable[V]) Insert(h *Handle[V]) *Handle[V] {
	ptr := t.findPointer(h.key, h.hash)
	old := *ptr
	if old == nil {
		h.nextHash = nil
	} else {
		h.nextHash = old.nextHash
	}
	*ptr = h
	if old == nil {
		t.elems++
		if t.elems > len(t.list) {
			t.resize()
		}
	}
	return old
}

// Remove unlinks and returns the entry for (key, hash), or nil.
func (t *handleTable[V]) Remove(key []byte, hash uint32) *Handle[V] {
	ptr := t.findPointer(key, hash)
	result := *ptr
	if result != nil {
		*ptr = result.nextHash
		result.nextHash = nil
		t.elems--
	}
	return result
}

// findPointer returns the slot that points at the matching entry, or the
// trailing nil slot of the bucket chain if there is no match.
func (t *handleTable[V]) findPointer(key []byte, hash uint32) **Handle[V] {
	ptr := &t.list[hash&uint32(len(t.list)-1)]
	for *ptr != nil && ((*ptr).hash != hash || !bytes.Equal(key, (*ptr).key)) {
		ptr = &(*ptr).nextHash
	}
	return ptr
}

// resize rehashes every entry into a bucket array of at least elems
// buckets. Every bucket of the old array is drained before it is dropped.
func (t *handleTable[V]) resize() {
	newLength := minTableBuckets
	for newLength < t.elems {
		newLength *= 2
	}
	newList := make([]*Handle[V], newLength)
	count := 0
	for _, h := range t.list {
		for h != nil {
			next := h.nextHash
			ptr := &newList[h.hash&uint32(newLength-1)]
			h.nextHash = *ptr
			*ptr = h
			h = next
			count++
		}
	}
	if count != t.elems {
		panic("cache: handle table lost entries during resize")
	}
	t.list = newList
}
