package cache

import (
	"encoding/binary"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func encodeKey(k int) []byte { return binary.LittleEndian.AppendUint32(nil, uint32(k)) }
func decodeKey(b []byte) int { return int(binary.LittleEndian.Uint32(b)) }

// cacheTest wraps a single-shard cache so eviction order is global, and
// records every deleter call.
type cacheTest struct {
	t *testing.T
	c Cache[int]

	deletedKeys   []int
	deletedValues []int
}

func newCacheTest(t *testing.T, capacity int64) *cacheTest {
	t.Helper()
	return &cacheTest{t: t, c: New[int](Options{Capacity: capacity, Shards: 1})}
}

func (ct *cacheTest) deleter(key []byte, v int) {
	ct.deletedKeys = append(ct.deletedKeys, decodeKey(key))
	ct.deletedValues = append(ct.deletedValues, v)
}

// lookup returns the value for key or -1, releasing the handle.
func (ct *cacheTest) lookup(key int) int {
	h := ct.c.Lookup(encodeKey(key))
	if h == nil {
		return -1
	}
	v := ct.c.Value(h)
	ct.c.Release(h)
	return v
}

func (ct *cacheTest) insert(key, value int, charge int64) {
	ct.c.Release(ct.insertAndReturnHandle(key, value, charge))
}

func (ct *cacheTest) insertAndReturnHandle(key, value int, charge int64) *Handle[int] {
	return ct.c.Insert(encodeKey(key), value, charge, ct.deleter)
}

func (ct *cacheTest) erase(key int) { ct.c.Erase(encodeKey(key)) }

func TestCache_HitAndMiss(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 1000)

	assert.Equal(t, -1, ct.lookup(100))

	ct.insert(100, 101, 1)
	assert.Equal(t, 101, ct.lookup(100))
	assert.Equal(t, -1, ct.lookup(200))
	assert.Equal(t, -1, ct.lookup(300))

	ct.insert(200, 201, 1)
	assert.Equal(t, 101, ct.lookup(100))
	assert.Equal(t, 201, ct.lookup(200))
	assert.Equal(t, -1, ct.lookup(300))

	ct.insert(100, 102, 1)
	assert.Equal(t, 102, ct.lookup(100))
	assert.Equal(t, 201, ct.lookup(200))

	assert.Equal(t, []int{100}, ct.deletedKeys)
	assert.Equal(t, []int{101}, ct.deletedValues)

	st := ct.c.Stats()
	assert.Equal(t, uint64(5), st.Hits)
	assert.Equal(t, uint64(4), st.Misses)
}

func TestCache_Erase(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 1000)

	ct.erase(200)
	assert.Empty(t, ct.deletedKeys)

	ct.insert(100, 101, 1)
	ct.insert(200, 201, 1)
	ct.erase(100)
	assert.Equal(t, -1, ct.lookup(100))
	assert.Equal(t, 201, ct.lookup(200))
	assert.Equal(t, []int{100}, ct.deletedKeys)
	assert.Equal(t, []int{101}, ct.deletedValues)

	ct.erase(100)
	assert.Equal(t, -1, ct.lookup(100))
	assert.Equal(t, 201, ct.lookup(200))
	assert.Len(t, ct.deletedKeys, 1)
	assert.Equal(t, int64(1), ct.c.TotalCharge())
}

// A replaced or erased entry stays readable through handles taken earlier
// and is finalized exactly once, by the last Release.
func TestCache_EntriesArePinned(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 1000)

	ct.insert(100, 101, 1)
	h1 := ct.c.Lookup(encodeKey(100))
	require.NotNil(t, h1)
	assert.Equal(t, 101, ct.c.Value(h1))

	ct.insert(100, 102, 1)
	h2 := ct.c.Lookup(encodeKey(100))
	require.NotNil(t, h2)
	assert.Equal(t, 102, ct.c.Value(h2))
	assert.Empty(t, ct.deletedKeys)

	ct.c.Release(h1)
	assert.Equal(t, []int{100}, ct.deletedKeys)
	assert.Equal(t, []int{101}, ct.deletedValues)

	ct.erase(100)
	assert.Equal(t, -1, ct.lookup(100))
	assert.Len(t, ct.deletedKeys, 1)
	assert.Equal(t, 102, ct.c.Value(h2), "erased entry must stay usable while referenced")

	ct.c.Release(h2)
	assert.Equal(t, []int{100, 100}, ct.deletedKeys)
	assert.Equal(t, []int{101, 102}, ct.deletedValues)
}

// capacity 100; A, B, C of charge 40 each, released right after insert:
// inserting C evicts A and leaves B and C.
func TestCache_EvictsOldestIdle(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 100)

	ct.insert(1, 10, 40)
	ct.insert(2, 20, 40)
	ct.insert(3, 30, 40)

	assert.Equal(t, []int{1}, ct.deletedKeys)
	assert.Equal(t, -1, ct.lookup(1))
	assert.Equal(t, 20, ct.lookup(2))
	assert.Equal(t, 30, ct.lookup(3))
	assert.Equal(t, int64(80), ct.c.TotalCharge())
}

// A Lookup that is released moves the entry to the young end of the idle
// list; eviction order follows release order, not lookup count.
func TestCache_ReleaseOrderDrivesEviction(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 100)

	ct.insert(1, 10, 40)
	ct.insert(2, 20, 40)
	assert.Equal(t, 10, ct.lookup(1)) // 1 becomes the youngest idle entry

	ct.insert(3, 30, 40)
	assert.Equal(t, []int{2}, ct.deletedKeys)
	assert.Equal(t, 10, ct.lookup(1))
	assert.Equal(t, 30, ct.lookup(3))
}

func TestCache_PinnedEntriesAreNeverEvicted(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 100)

	ha := ct.insertAndReturnHandle(1, 10, 60)
	hb := ct.insertAndReturnHandle(2, 20, 60)
	assert.Equal(t, int64(120), ct.c.TotalCharge(), "pinned entries may exceed capacity")
	assert.Equal(t, int64(120), ct.c.PinnedCharge())
	assert.Empty(t, ct.deletedKeys)

	ct.c.Release(hb)
	assert.Empty(t, ct.deletedKeys, "eviction waits for the next insert")

	ct.insert(3, 30, 10)
	assert.Equal(t, []int{2}, ct.deletedKeys)
	assert.Equal(t, 10, ct.c.Value(ha))
	assert.Equal(t, int64(70), ct.c.TotalCharge())
	assert.Equal(t, int64(60), ct.c.PinnedCharge())

	ct.c.Release(ha)
	assert.Equal(t, int64(0), ct.c.PinnedCharge())
}

func TestCache_HeavyEntries(t *testing.T) {
	t.Parallel()
	const capacity = 1000
	ct := newCacheTest(t, capacity)

	// Alternate light and heavy entries; lots get evicted.
	const light, heavy = 1, 10
	added, index := 0, 0
	for added < 2*capacity {
		weight := int64(light)
		if index&1 == 1 {
			weight = heavy
		}
		ct.insert(index, 1000+index, weight)
		added += int(weight)
		index++
	}

	var cached int64
	for i := 0; i < index; i++ {
		weight := int64(light)
		if i&1 == 1 {
			weight = heavy
		}
		if r := ct.lookup(i); r >= 0 {
			cached += weight
			assert.Equal(t, 1000+i, r)
		}
	}
	assert.LessOrEqual(t, cached, int64(capacity+capacity/10))
	assert.Equal(t, ct.c.TotalCharge(), cached)
}

func TestCache_Prune(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 1000)

	ct.insert(1, 100, 5)
	ct.insert(2, 200, 7)

	h := ct.c.Lookup(encodeKey(1))
	require.NotNil(t, h)
	ct.c.Prune()
	assert.Equal(t, []int{2}, ct.deletedKeys)
	assert.Equal(t, int64(5), ct.c.TotalCharge(), "only pinned entries remain")
	ct.c.Release(h)

	assert.Equal(t, 100, ct.lookup(1))
	assert.Equal(t, -1, ct.lookup(2))

	ct.c.Prune()
	assert.Equal(t, 0, ct.c.Len())
	assert.Equal(t, int64(0), ct.c.TotalCharge())
}

// With capacity 0 nothing is retained but Insert still hands out a
// working handle.
func TestCache_ZeroCapacity(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 0)

	h := ct.insertAndReturnHandle(1, 100, 1)
	assert.Equal(t, 100, ct.c.Value(h))
	assert.Equal(t, int64(1), h.Charge())
	assert.Equal(t, -1, ct.lookup(1))
	assert.Equal(t, 0, ct.c.Len())
	assert.Equal(t, int64(0), ct.c.TotalCharge())
	assert.Empty(t, ct.deletedKeys)

	ct.c.Release(h)
	assert.Equal(t, []int{1}, ct.deletedKeys)
}

// Raising capacity later turns caching on; lowering it evicts lazily.
func TestCache_SetCapacity(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 0)

	ct.c.SetCapacity(100)
	assert.Equal(t, int64(100), ct.c.Capacity())
	ct.insert(1, 10, 50)
	ct.insert(2, 20, 50)
	assert.Equal(t, int64(100), ct.c.TotalCharge())

	ct.c.SetCapacity(50)
	assert.Empty(t, ct.deletedKeys)
	assert.Equal(t, int64(100), ct.c.TotalCharge())

	ct.insert(3, 30, 10)
	assert.Equal(t, []int{1, 2}, ct.deletedKeys)
	assert.Equal(t, int64(10), ct.c.TotalCharge())
}

func TestCache_ReleaseTwicePanics(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 0)

	h := ct.insertAndReturnHandle(1, 100, 1)
	ct.c.Release(h)
	require.Panics(t, func() { ct.c.Release(h) })

	// Release(nil) is allowed.
	require.NotPanics(t, func() { ct.c.Release(nil) })
}

func TestCache_NewIDUnique(t *testing.T) {
	t.Parallel()

	c := New[int](Options{Capacity: 1})
	const workers, perWorker = 8, 1000

	var mu sync.Mutex
	var all []uint64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			ids := make([]uint64, perWorker)
			for i := range ids {
				ids[i] = c.NewID()
				if i > 0 && ids[i] <= ids[i-1] {
					return errors.New("ids not increasing")
				}
			}
			mu.Lock()
			all = append(all, ids...)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i := 1; i < len(all); i++ {
		require.NotEqual(t, all[i-1], all[i], "duplicate id")
	}
	assert.NotZero(t, all[0])
}

// Capacity is divided evenly; the remainder goes to the first shards.
func TestCache_CapacitySplit(t *testing.T) {
	t.Parallel()

	c := New[int](Options{Capacity: 100}).(*shardedCache[int])
	require.Len(t, c.shards, 16)
	for i, s := range c.shards {
		want := int64(6)
		if i < 4 {
			want = 7
		}
		assert.Equal(t, want, s.Capacity(), "shard %d", i)
	}
	assert.Equal(t, int64(100), c.Capacity())
}

func TestCache_KeysStayOnTheirShard(t *testing.T) {
	t.Parallel()

	c := New[int](Options{Capacity: 1 << 20}).(*shardedCache[int])
	for i := 0; i < 1000; i++ {
		c.Release(c.Insert(encodeKey(i), i, 1, nil))
	}
	nonEmpty := 0
	for _, s := range c.shards {
		if s.Len() > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, len(c.shards), nonEmpty)

	for i := 0; i < 1000; i++ {
		h := c.Lookup(encodeKey(i))
		require.NotNil(t, h)
		assert.Equal(t, i, c.Value(h))
		c.Release(h)
	}
	assert.Equal(t, 1000, c.Len())
}

func TestCache_Close(t *testing.T) {
	t.Parallel()
	ct := newCacheTest(t, 1000)

	ct.insert(1, 10, 1)
	h := ct.insertAndReturnHandle(2, 20, 1)

	err := ct.c.Close()
	require.ErrorIs(t, err, ErrHandlesOutstanding)
	assert.Equal(t, []int{1}, ct.deletedKeys)

	ct.c.Release(h)
	require.NoError(t, ct.c.Close())
	assert.Equal(t, []int{1, 2}, ct.deletedKeys)
}
