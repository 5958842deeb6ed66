package logcache

// LogCache is the page-cache contract shared by every cache strategy. All
// read paths consult src.HighPage before durable storage and never store the
// tail.
type LogCache interface {
	// CachePage stores a full durable page. Short pages and pages still in
	// the tail are ignored.
	CachePage(src PageSource, address uint64, page []byte)
	// GetPage returns the page at address from the store, the tail, or
	// durable storage, in that order. Durable pages are stored on the way
	// out. The returned slice must not be modified.
	GetPage(src PageSource, address uint64) ([]byte, error)
	// GetPageIterable is GetPage returning only the page's valid bytes.
	GetPageIterable(src PageSource, address uint64) (PageView, error)
	// GetCachedPage consults the store and the tail only. It never performs
	// durable I/O.
	GetCachedPage(src PageSource, address uint64) ([]byte, bool)
	// RemovePage drops the stored page at address.
	RemovePage(src PageSource, address uint64)
	// Clear drops every stored page.
	Clear()
	// HitRate is the store's lookup hit ratio.
	HitRate() float64
}

// SeparateCache is a LogCache over one PageStore. It may be shared by several
// logs with distinct address spaces only if their page addresses never
// collide; in practice each log owns one.
type SeparateCache struct {
	opts  Options
	store PageStore
}

var _ LogCache = (*SeparateCache)(nil)

// New builds a SeparateCache with the store variant opts selects. A
// percentage budget is resolved here, once.
func New(opts Options) (*SeparateCache, error) {
	store, err := NewPageStore(opts)
	if err != nil {
		return nil, err
	}
	return &SeparateCache{opts: opts, store: store}, nil
}

// NewWithStore wraps an existing store.
func NewWithStore(pageSize int, store PageStore) *SeparateCache {
	return &SeparateCache{opts: Options{PageSize: pageSize}, store: store}
}

// PageSize returns the page size the cache was built for.
func (c *SeparateCache) PageSize() int { return c.opts.PageSize }

// Store exposes the backing store.
func (c *SeparateCache) Store() PageStore { return c.store }

func (c *SeparateCache) CachePage(src PageSource, address uint64, page []byte) {
	if p, ok := c.postProcessTailPage(src, address, page, false); ok {
		c.store.Put(address, p)
	}
}

func (c *SeparateCache) GetPage(src PageSource, address uint64) ([]byte, error) {
	if address%uint64(src.PageSize()) != 0 {
		return nil, ErrUnaligned
	}
	if !src.Contains(address) {
		return nil, outOfRange(src, address)
	}
	if page, ok := c.store.TryKey(address); ok {
		return page, nil
	}
	if page, ok := src.HighPage(address); ok {
		return page, nil
	}
	page, err := src.ReadPage(address)
	if err != nil {
		return nil, err
	}
	if p, ok := c.postProcessTailPage(src, address, page, true); ok {
		c.store.Put(address, p)
	}
	return page, nil
}

func (c *SeparateCache) GetPageIterable(src PageSource, address uint64) (PageView, error) {
	page, err := c.GetPage(src, address)
	if err != nil {
		return PageView{}, err
	}
	if high := src.HighAddress(); address+uint64(len(page)) > high {
		page = page[:high-address]
	}
	return PageView{Address: address, Bytes: page}, nil
}

func (c *SeparateCache) GetCachedPage(src PageSource, address uint64) ([]byte, bool) {
	if !src.Contains(address) {
		return nil, false
	}
	if page, ok := c.store.Get(address); ok {
		return page, true
	}
	return src.HighPage(address)
}

func (c *SeparateCache) RemovePage(_ PageSource, address uint64) {
	c.store.Remove(address)
}

func (c *SeparateCache) Clear() { c.store.Clear() }

func (c *SeparateCache) HitRate() float64 { return c.store.HitRate() }

// Len returns the number of stored pages.
func (c *SeparateCache) Len() int { return c.store.Len() }

// ReleaseMemory asks a soft store to drop fraction of its pages. It returns
// the number dropped, or zero for strong stores.
func (c *SeparateCache) ReleaseMemory(fraction float64) int {
	if r, ok := c.store.(Reclaimer); ok {
		return r.Reclaim(fraction)
	}
	return 0
}

// postProcessTailPage decides whether page may be stored and returns the
// bytes to store. Only full pages outside the tail qualify. Pages that were
// not freshly allocated for this call may alias the writer's tail buffer and
// are copied.
func (c *SeparateCache) postProcessTailPage(src PageSource, address uint64, page []byte, owned bool) ([]byte, bool) {
	size := src.PageSize()
	if len(page) != size || address%uint64(size) != 0 {
		return nil, false
	}
	if address+uint64(size) > src.HighAddress() {
		return nil, false
	}
	if src.InTail(address) {
		return nil, false
	}
	if owned {
		return page, true
	}
	return append(make([]byte, 0, size), page...), true
}
