package logcache

import (
	"math"
	"sync"
)

type clockSlot struct {
	address uint64
	page    []byte
	used    bool
	ref     bool
}

// clockStore is a second-chance cache. Get only sets a reference bit, so the
// eviction order costs no list manipulation on hits. Slots are appended as
// pages arrive until capacity is reached.
type clockStore struct {
	mu       sync.Mutex
	capacity int
	slots    []clockSlot
	index    map[uint64]int
	free     []int
	hand     int
	stats    stats
}

func newClockStore(capacity int) *clockStore {
	return &clockStore{
		capacity: capacity,
		index:    make(map[uint64]int),
	}
}

func (s *clockStore) TryKey(address uint64) ([]byte, bool) {
	page, ok := s.Get(address)
	s.stats.record(ok)
	return page, ok
}

func (s *clockStore) Get(address uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[address]
	if !ok {
		return nil, false
	}
	s.slots[i].ref = true
	return s.slots[i].page, true
}

func (s *clockStore) Put(address uint64, page []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[address]; ok {
		s.slots[i].page = page
		s.slots[i].ref = true
		return
	}
	var i int
	switch n := len(s.free); {
	case n > 0:
		i = s.free[n-1]
		s.free = s.free[:n-1]
	case len(s.slots) < s.capacity:
		i = len(s.slots)
		s.slots = append(s.slots, clockSlot{})
	default:
		i = s.victim()
		delete(s.index, s.slots[i].address)
	}
	s.slots[i] = clockSlot{address: address, page: page, used: true}
	s.index[address] = i
}

// victim advances the hand to the next slot without a reference bit. Must be
// called with mu held and at least one used slot.
func (s *clockStore) victim() int {
	for {
		i := s.hand
		s.hand = (s.hand + 1) % len(s.slots)
		sl := &s.slots[i]
		if !sl.used {
			continue
		}
		if sl.ref {
			sl.ref = false
			continue
		}
		return i
	}
}

func (s *clockStore) drop(i int) {
	delete(s.index, s.slots[i].address)
	s.slots[i] = clockSlot{}
	s.free = append(s.free, i)
}

func (s *clockStore) Remove(address uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[address]; ok {
		s.drop(i)
	}
}

func (s *clockStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		if s.slots[i].used {
			s.drop(i)
		}
	}
}

func (s *clockStore) Reclaim(fraction float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int(math.Ceil(fraction * float64(len(s.index))))
	switch {
	case n < 0:
		n = 0
	case n > len(s.index):
		n = len(s.index)
	}
	for k := 0; k < n; k++ {
		s.drop(s.victim())
	}
	return n
}

func (s *clockStore) HitRate() float64 { return s.stats.hitRate() }

func (s *clockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}
