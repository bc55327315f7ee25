package addrbook

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"source.monogon.dev/actor/addr"
)

// shardCount is the number of mutexes striping writes across the slab's
// index space. Reads never take these locks; they load the per-slot atomic
// fields directly. Chosen to match the dump pipeline's shard count (§4.4)
// purely for symmetry — the two shard counts are otherwise unrelated.
const shardCount = 16

// slotEntry is one cell of the slab. occupied/generation/obj are read
// lock-free; only mutation goes through the owning shard's mutex.
type slotEntry struct {
	occupied   atomic.Bool
	generation atomic.Uint32
	obj        atomic.Pointer[storedObject]

	// refCount and removeRequested back GetOwned/Release: a Remove that
	// races with an outstanding handle clears occupied immediately (so new
	// lookups miss) but defers returning the index to the freelist until
	// the last handle releases it.
	refCount        atomic.Int32
	removeRequested atomic.Bool
}

type storedObject struct {
	object Object
	addr   addr.Addr
}

// slab is a growable, lock-striped slot table. Growth publishes a brand new
// backing slice via an atomic pointer swap so that readers never observe a
// torn append; only the freelist and the decision to grow are protected by
// growMu.
type slab struct {
	growMu   sync.Mutex
	slotsPtr atomic.Pointer[[]*slotEntry]
	free     []uint32
	capacity uint32 // 0 means unbounded

	shardMu [shardCount]sync.Mutex
}

func newSlab(capacity uint32) *slab {
	s := &slab{capacity: capacity}
	empty := make([]*slotEntry, 0)
	s.slotsPtr.Store(&empty)
	return s
}

func shardFor(index uint32) uint32 {
	var buf [4]byte
	buf[0] = byte(index)
	buf[1] = byte(index >> 8)
	buf[2] = byte(index >> 16)
	buf[3] = byte(index >> 24)
	return uint32(xxhash.Sum64(buf[:]) % shardCount)
}

func (s *slab) slots() []*slotEntry {
	return *s.slotsPtr.Load()
}

// reserve pops a free index or grows the slab, without marking it occupied.
func (s *slab) reserve() (uint32, *slotEntry, bool) {
	s.growMu.Lock()
	defer s.growMu.Unlock()

	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		return idx, s.slots()[idx], true
	}

	cur := s.slots()
	if s.capacity != 0 && uint32(len(cur)) >= s.capacity {
		return 0, nil, false
	}

	idx := uint32(len(cur))
	grown := make([]*slotEntry, len(cur)+1)
	copy(grown, cur)
	grown[idx] = &slotEntry{}
	s.slotsPtr.Store(&grown)
	return idx, grown[idx], true
}

// abandon returns a reserved-but-never-inserted index to the freelist
// without touching its generation (no address referencing this index ever
// escaped to a caller who could observe the reuse).
func (s *slab) abandon(index uint32) {
	s.growMu.Lock()
	s.free = append(s.free, index)
	s.growMu.Unlock()
}

func (s *slab) insert(index uint32, entry *slotEntry, object Object, a addr.Addr) {
	shard := shardFor(index)
	s.shardMu[shard].Lock()
	entry.obj.Store(&storedObject{object: object, addr: a})
	entry.occupied.Store(true)
	s.shardMu[shard].Unlock()
}

func (s *slab) get(index uint32, generation uint16) (*storedObject, bool) {
	cur := s.slots()
	if int(index) >= len(cur) {
		return nil, false
	}
	entry := cur[index]
	if entry == nil || !entry.occupied.Load() {
		return nil, false
	}
	if uint16(entry.generation.Load()) != generation {
		return nil, false
	}
	so := entry.obj.Load()
	if so == nil {
		return nil, false
	}
	return so, true
}

func (s *slab) remove(index uint32, generation uint16) bool {
	cur := s.slots()
	if int(index) >= len(cur) {
		return false
	}
	entry := cur[index]
	if entry == nil {
		return false
	}

	shard := shardFor(index)
	s.shardMu[shard].Lock()
	ok := entry.occupied.Load() && uint16(entry.generation.Load()) == generation
	freeNow := false
	if ok {
		entry.occupied.Store(false)
		entry.obj.Store(nil)
		entry.generation.Store(uint32(generation + 1))
		if entry.refCount.Load() == 0 {
			freeNow = true
		} else {
			entry.removeRequested.Store(true)
		}
	}
	s.shardMu[shard].Unlock()

	if freeNow {
		s.growMu.Lock()
		s.free = append(s.free, index)
		s.growMu.Unlock()
	}
	return ok
}

// retain resolves index/generation the same way get does, but additionally
// increments the slot's refcount, keeping it out of the freelist even
// across a concurrent remove until a matching release call.
func (s *slab) retain(index uint32, generation uint16) (*storedObject, bool) {
	cur := s.slots()
	if int(index) >= len(cur) {
		return nil, false
	}
	entry := cur[index]
	if entry == nil {
		return nil, false
	}

	shard := shardFor(index)
	s.shardMu[shard].Lock()
	ok := entry.occupied.Load() && uint16(entry.generation.Load()) == generation
	if ok {
		entry.refCount.Add(1)
	}
	s.shardMu[shard].Unlock()
	if !ok {
		return nil, false
	}
	return entry.obj.Load(), true
}

// release drops one reference taken by retain, finalizing a pending remove
// (returning index to the freelist) once the last reference is gone.
func (s *slab) release(index uint32) {
	cur := s.slots()
	if int(index) >= len(cur) {
		return
	}
	entry := cur[index]
	if entry == nil {
		return
	}

	shard := shardFor(index)
	s.shardMu[shard].Lock()
	remaining := entry.refCount.Add(-1)
	freeNow := remaining == 0 && entry.removeRequested.Load()
	if freeNow {
		entry.removeRequested.Store(false)
	}
	s.shardMu[shard].Unlock()

	if freeNow {
		s.growMu.Lock()
		s.free = append(s.free, index)
		s.growMu.Unlock()
	}
}
