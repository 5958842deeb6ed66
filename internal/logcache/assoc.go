package logcache

import (
	"math"
	"sort"
	"sync/atomic"
)

type assocEntry struct {
	address uint64
	page    []byte
	stamp   atomic.Uint64
}

// assocSegmentSlots is the allocation unit of an assocStore's slot array.
const assocSegmentSlots = 4096

type assocSegment [assocSegmentSlots]atomic.Pointer[assocEntry]

// assocStore is a set-associative cache of atomic pointers. An address maps
// to one set of ways; lookups and fills touch only that set and never lock.
// A fill into a full set replaces the way with the oldest access stamp.
// Concurrent fills of the same set may overwrite each other; the loser's page
// is simply not cached.
//
// Slots live in segments allocated on first fill, so a large capacity costs
// nothing until pages arrive.
type assocStore struct {
	ways     int
	sets     uint64
	segments []atomic.Pointer[assocSegment]
	clock    atomic.Uint64
	stats    stats
}

func newAssocStore(capacity, ways int) *assocStore {
	if ways > capacity {
		ways = capacity
	}
	sets := capacity / ways
	slots := sets * ways
	return &assocStore{
		ways:     ways,
		sets:     uint64(sets),
		segments: make([]atomic.Pointer[assocSegment], (slots+assocSegmentSlots-1)/assocSegmentSlots),
	}
}

// set returns the first slot index of the set for address.
func (s *assocStore) set(address uint64) int {
	h := address * 0x9E3779B97F4A7C15
	return int((h>>32)%s.sets) * s.ways
}

// slot returns slot i. Without create it returns nil when the slot's segment
// was never allocated.
func (s *assocStore) slot(i int, create bool) *atomic.Pointer[assocEntry] {
	sp := &s.segments[i/assocSegmentSlots]
	seg := sp.Load()
	if seg == nil {
		if !create {
			return nil
		}
		sp.CompareAndSwap(nil, new(assocSegment))
		seg = sp.Load()
	}
	return &seg[i%assocSegmentSlots]
}

// each calls fn for every slot of the allocated segments.
func (s *assocStore) each(fn func(slot *atomic.Pointer[assocEntry])) {
	for i := range s.segments {
		seg := s.segments[i].Load()
		if seg == nil {
			continue
		}
		for j := range seg {
			fn(&seg[j])
		}
	}
}

func (s *assocStore) TryKey(address uint64) ([]byte, bool) {
	page, ok := s.Get(address)
	s.stats.record(ok)
	return page, ok
}

func (s *assocStore) Get(address uint64) ([]byte, bool) {
	base := s.set(address)
	for w := 0; w < s.ways; w++ {
		slot := s.slot(base+w, false)
		if slot == nil {
			continue
		}
		if e := slot.Load(); e != nil && e.address == address {
			e.stamp.Store(s.clock.Add(1))
			return e.page, true
		}
	}
	return nil, false
}

func (s *assocStore) Put(address uint64, page []byte) {
	e := &assocEntry{address: address, page: page}
	e.stamp.Store(s.clock.Add(1))

	base := s.set(address)
	var (
		victim      *atomic.Pointer[assocEntry]
		victimEntry *assocEntry
		oldest      = uint64(math.MaxUint64)
	)
	for w := 0; w < s.ways; w++ {
		slot := s.slot(base+w, true)
		cur := slot.Load()
		if cur == nil {
			if slot.CompareAndSwap(nil, e) {
				return
			}
			continue
		}
		if cur.address == address {
			slot.CompareAndSwap(cur, e)
			return
		}
		if st := cur.stamp.Load(); st < oldest {
			victim, oldest, victimEntry = slot, st, cur
		}
	}
	if victim != nil {
		victim.CompareAndSwap(victimEntry, e)
	}
}

func (s *assocStore) Remove(address uint64) {
	base := s.set(address)
	for w := 0; w < s.ways; w++ {
		slot := s.slot(base+w, false)
		if slot == nil {
			continue
		}
		if cur := slot.Load(); cur != nil && cur.address == address {
			slot.CompareAndSwap(cur, nil)
		}
	}
}

func (s *assocStore) Clear() {
	s.each(func(slot *atomic.Pointer[assocEntry]) { slot.Store(nil) })
}

func (s *assocStore) HitRate() float64 { return s.stats.hitRate() }

func (s *assocStore) Len() int {
	n := 0
	s.each(func(slot *atomic.Pointer[assocEntry]) {
		if slot.Load() != nil {
			n++
		}
	})
	return n
}

// softAssocStore adds Reclaim to the set-associative store.
type softAssocStore struct {
	*assocStore
}

// Reclaim drops the entries with the oldest access stamps. Entries touched
// while it runs may survive.
func (s *softAssocStore) Reclaim(fraction float64) int {
	type live struct {
		slot  *atomic.Pointer[assocEntry]
		e     *assocEntry
		stamp uint64
	}
	var entries []live
	s.each(func(slot *atomic.Pointer[assocEntry]) {
		if e := slot.Load(); e != nil {
			entries = append(entries, live{slot: slot, e: e, stamp: e.stamp.Load()})
		}
	})
	n := int(math.Ceil(fraction * float64(len(entries))))
	switch {
	case n < 0:
		n = 0
	case n > len(entries):
		n = len(entries)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].stamp < entries[j].stamp })
	dropped := 0
	for _, l := range entries[:n] {
		if l.slot.CompareAndSwap(l.e, nil) {
			dropped++
		}
	}
	return dropped
}
