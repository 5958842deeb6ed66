package logcache

import (
	"container/list"
	"sync"
)

type lruEntry struct {
	address uint64
	page    []byte
}

// lruStore evicts the least recently used page. One mutex guards it.
type lruStore struct {
	mu       sync.Mutex
	capacity int
	pages    map[uint64]*list.Element
	order    *list.List // front = most recent
	stats    stats
}

func newLRUStore(capacity int) *lruStore {
	return &lruStore{
		capacity: capacity,
		pages:    make(map[uint64]*list.Element),
		order:    list.New(),
	}
}

func (s *lruStore) TryKey(address uint64) ([]byte, bool) {
	page, ok := s.Get(address)
	s.stats.record(ok)
	return page, ok
}

func (s *lruStore) Get(address uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.pages[address]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*lruEntry).page, true
}

func (s *lruStore) Put(address uint64, page []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.pages[address]; ok {
		el.Value.(*lruEntry).page = page
		s.order.MoveToFront(el)
		return
	}
	if s.order.Len() >= s.capacity {
		if back := s.order.Back(); back != nil {
			delete(s.pages, back.Value.(*lruEntry).address)
			s.order.Remove(back)
		}
	}
	s.pages[address] = s.order.PushFront(&lruEntry{address: address, page: page})
}

func (s *lruStore) Remove(address uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.pages[address]; ok {
		delete(s.pages, address)
		s.order.Remove(el)
	}
}

func (s *lruStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[uint64]*list.Element)
	s.order.Init()
}

func (s *lruStore) HitRate() float64 { return s.stats.hitRate() }

func (s *lruStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
