package logcache

import (
	"errors"
	"testing"
)

func TestNewPageStoreSelectsVariant(t *testing.T) {
	cases := []struct {
		nonBlocking, soft bool
		check             func(PageStore) bool
	}{
		{false, false, func(s PageStore) bool { _, ok := s.(*lruStore); return ok }},
		{false, true, func(s PageStore) bool { _, ok := s.(*clockStore); return ok }},
		{true, false, func(s PageStore) bool { _, ok := s.(*assocStore); return ok }},
		{true, true, func(s PageStore) bool { _, ok := s.(*softAssocStore); return ok }},
	}
	for _, c := range cases {
		s, err := NewPageStore(Options{PageSize: 4096, Budget: Bytes(1 << 20), NonBlocking: c.nonBlocking, Soft: c.soft})
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		if !c.check(s) {
			t.Fatalf("nonBlocking=%v soft=%v built %T", c.nonBlocking, c.soft, s)
		}
		_, reclaimable := s.(Reclaimer)
		if reclaimable != c.soft {
			t.Fatalf("%T reclaimable=%v", s, reclaimable)
		}
	}
}

func TestOptionsValidation(t *testing.T) {
	bad := []Options{
		{PageSize: 0},
		{PageSize: 1000},
		{PageSize: 1024, Budget: Percent(150)},
		{PageSize: 1024, GenerationCount: -1},
	}
	for _, o := range bad {
		if _, err := NewPageStore(o); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("%+v: expected ErrInvalidOptions, got %v", o, err)
		}
	}
}

func TestPageCount(t *testing.T) {
	if got := PageCount(0, false, 4096, false); got != DefaultPageCount {
		t.Fatalf("unbounded = %d", got)
	}
	if got := PageCount(10*(4096+80), true, 4096, false); got != 10 {
		t.Fatalf("strong = %d", got)
	}
	if got := PageCount(10*(4096+144), true, 4096, true); got != 10 {
		t.Fatalf("soft = %d", got)
	}
	if got := PageCount(1, true, 4096, false); got != 1 {
		t.Fatalf("tiny budget = %d", got)
	}
}

func TestPercentBudgetResolvesOnce(t *testing.T) {
	n, ok := Percent(10).Resolve()
	if total, known := ResolveMemory(); known {
		if !ok || n == 0 || n > total {
			t.Fatalf("10%% of %d resolved to %d (ok=%v)", total, n, ok)
		}
	} else if ok {
		t.Fatalf("unknown memory resolved to a bound")
	}
	if _, ok := Bytes(0).Resolve(); ok {
		t.Fatalf("zero budget should be unbounded")
	}
}

func TestLRUEvictsLeastRecent(t *testing.T) {
	s := newLRUStore(2)
	s.Put(1, []byte{1})
	s.Put(2, []byte{2})
	s.Get(1)
	s.Put(3, []byte{3})
	if _, ok := s.Get(2); ok {
		t.Fatalf("2 should have been evicted")
	}
	if _, ok := s.Get(1); !ok {
		t.Fatalf("1 should survive")
	}
}

func TestClockGivesSecondChance(t *testing.T) {
	s := newClockStore(2)
	s.Put(1, []byte{1})
	s.Put(2, []byte{2})
	s.Get(1)
	s.Put(3, []byte{3})
	if _, ok := s.Get(1); !ok {
		t.Fatalf("referenced entry 1 should survive")
	}
	if _, ok := s.Get(2); ok {
		t.Fatalf("2 should have been evicted")
	}
	if n := s.Reclaim(1); n != 2 || s.Len() != 0 {
		t.Fatalf("reclaim dropped %d, len %d", n, s.Len())
	}
}

func TestAssocStoreReplacesOldestWay(t *testing.T) {
	s := newAssocStore(2, 2) // one set, two ways
	s.Put(10, []byte{10})
	s.Put(20, []byte{20})
	s.Get(10)
	s.Put(30, []byte{30})
	if _, ok := s.Get(20); ok {
		t.Fatalf("20 should have been replaced")
	}
	if _, ok := s.Get(10); !ok {
		t.Fatalf("10 should survive")
	}
	s.Remove(10)
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("len after clear = %d", s.Len())
	}
}

func TestStoresAllocateOnDemand(t *testing.T) {
	c := newClockStore(1 << 20)
	if len(c.slots) != 0 || len(c.free) != 0 {
		t.Fatalf("clock preallocated %d slots", len(c.slots))
	}
	c.Put(1, []byte{1})
	if len(c.slots) != 1 {
		t.Fatalf("clock slots = %d after one put", len(c.slots))
	}

	a := newAssocStore(1<<20, 8)
	allocated := func() int {
		n := 0
		for i := range a.segments {
			if a.segments[i].Load() != nil {
				n++
			}
		}
		return n
	}
	if n := allocated(); n != 0 {
		t.Fatalf("assoc allocated %d segments up front", n)
	}
	if _, ok := a.Get(7); ok {
		t.Fatalf("empty store hit")
	}
	a.Put(7, []byte{7})
	if n := allocated(); n != 1 {
		t.Fatalf("assoc segments = %d after one put", n)
	}
	if page, ok := a.Get(7); !ok || page[0] != 7 {
		t.Fatalf("get after put = %v, %v", page, ok)
	}
	if a.Len() != 1 {
		t.Fatalf("len = %d", a.Len())
	}
}

func TestHitRate(t *testing.T) {
	s := newLRUStore(4)
	if s.HitRate() != 0 {
		t.Fatalf("empty hit rate")
	}
	s.Put(1, []byte{1})
	s.TryKey(1)
	s.TryKey(2)
	if s.HitRate() != 0.5 {
		t.Fatalf("hit rate = %v", s.HitRate())
	}
}
