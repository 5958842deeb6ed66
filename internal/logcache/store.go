package logcache

import "sync/atomic"

// PageStore holds pages keyed by address. Implementations are safe for
// concurrent use.
type PageStore interface {
	// TryKey looks up a page and counts the lookup towards HitRate.
	TryKey(address uint64) ([]byte, bool)
	// Get looks up a page without touching the statistics.
	Get(address uint64) ([]byte, bool)
	// Put stores page under address, evicting another entry when full.
	Put(address uint64, page []byte)
	// Remove drops the entry for address, if any.
	Remove(address uint64)
	// Clear drops every entry.
	Clear()
	// HitRate is hits/(hits+misses) over all TryKey calls.
	HitRate() float64
	// Len returns the number of stored pages.
	Len() int
}

// Reclaimer is implemented by soft stores. Reclaim drops about fraction of
// the stored pages, least recently used first, and returns how many it
// dropped.
type Reclaimer interface {
	Reclaim(fraction float64) int
}

// Options selects and sizes a page store.
type Options struct {
	// PageSize is the size of a full page; it must be a power of two.
	PageSize int
	// Budget bounds the memory used by cached pages.
	Budget Budget
	// NonBlocking selects the lock-free set-associative store.
	NonBlocking bool
	// Soft makes entries reclaimable through Reclaim.
	Soft bool
	// GenerationCount is the number of ways per set of a non-blocking store.
	// Zero means DefaultGenerationCount.
	GenerationCount int
}

func (o Options) validate() error {
	if o.PageSize <= 0 || o.PageSize&(o.PageSize-1) != 0 {
		return invalidOptions("page size %d is not a power of two", o.PageSize)
	}
	if o.Budget.percent > 100 {
		return invalidOptions("budget of %d%% exceeds available memory", o.Budget.percent)
	}
	if o.GenerationCount < 0 {
		return invalidOptions("negative generation count %d", o.GenerationCount)
	}
	return nil
}

// Capacity returns the number of pages a store built from o holds.
func (o Options) Capacity() int {
	n, bounded := o.Budget.Resolve()
	return PageCount(n, bounded, o.PageSize, o.Soft)
}

// NewPageStore builds the store variant o selects.
func NewPageStore(o Options) (PageStore, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	capacity := o.Capacity()
	ways := o.GenerationCount
	if ways == 0 {
		ways = DefaultGenerationCount
	}
	switch {
	case o.NonBlocking && o.Soft:
		return &softAssocStore{newAssocStore(capacity, ways)}, nil
	case o.NonBlocking:
		return newAssocStore(capacity, ways), nil
	case o.Soft:
		return newClockStore(capacity), nil
	default:
		return newLRUStore(capacity), nil
	}
}

type stats struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (s *stats) record(hit bool) {
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
}

func (s *stats) hitRate() float64 {
	h, m := s.hits.Load(), s.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}
