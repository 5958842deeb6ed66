package pagelog

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rzbill/pagelog/internal/blockio"
	"github.com/rzbill/pagelog/internal/logcache"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

// Options configures Open.
type Options struct {
	// PageSize is the unit of caching; a power of two.
	PageSize int
	// FileSize is the block rotation size; a positive multiple of PageSize.
	FileSize uint64
	// Reader lists and reads blocks. Required.
	Reader blockio.Reader
	// Writer appends blocks. A nil Writer opens a read-only follower.
	Writer blockio.Writer
	// Cache memoizes pages. Nil builds an unbounded-budget LRU cache.
	Cache logcache.LogCache
	// Logger receives lifecycle logs. Nil discards them.
	Logger logpkg.Logger
	// Listeners are registered before the log is used.
	Listeners []BlockListener
}

func (o Options) validate() error {
	if o.PageSize <= 0 || o.PageSize&(o.PageSize-1) != 0 {
		return fmt.Errorf("pagelog: page size %d is not a power of two", o.PageSize)
	}
	if o.FileSize == 0 || o.FileSize%uint64(o.PageSize) != 0 {
		return fmt.Errorf("pagelog: file size %d is not a positive multiple of page size %d", o.FileSize, o.PageSize)
	}
	if o.Reader == nil {
		return errors.New("pagelog: Options.Reader is required")
	}
	return nil
}

// Log is a page-aligned append-only log. Reads are safe from any number of
// goroutines; Append, Sync and deletions come from one writer.
type Log struct {
	id       uuid.UUID
	pageSize int
	fileSize uint64
	reader   blockio.Reader
	writer   blockio.Writer
	cache    logcache.LogCache
	logger   logpkg.Logger

	tip    atomic.Pointer[Tip]
	closed atomic.Bool

	// writeMu serialises the writer: appends, syncs, deletions, close.
	writeMu sync.Mutex
	open    bool
	pending []pendingEvent

	// tailMu guards the tail page against concurrent HighPage copies.
	tailMu   sync.RWMutex
	tailAddr uint64
	tail     []byte
	flushed  int

	updateMu sync.Mutex

	notifyMu sync.Mutex
	notifyCh chan struct{}

	listenersMu sync.RWMutex
	listeners   []BlockListener
}

type pendingEvent struct {
	ev    Event
	block blockio.Block
}

// Open scans the medium and returns a log positioned at its end. With a
// writer, the last block is resumed and its partial page reloaded.
func Open(opts Options) (*Log, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cache := opts.Cache
	if cache == nil {
		c, err := logcache.New(logcache.Options{PageSize: opts.PageSize})
		if err != nil {
			return nil, err
		}
		cache = c
	}
	l := &Log{
		id:        uuid.New(),
		pageSize:  opts.PageSize,
		fileSize:  opts.FileSize,
		reader:    opts.Reader,
		writer:    opts.Writer,
		cache:     cache,
		notifyCh:  make(chan struct{}),
		listeners: append([]BlockListener(nil), opts.Listeners...),
	}
	l.logger = logpkg.OrNop(opts.Logger).WithComponent("pagelog").With(logpkg.Str(logpkg.LogIDKey, l.id.String()))

	blocks, err := opts.Reader.ListBlocks()
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	if err := checkLayout(blocks); err != nil {
		return nil, err
	}
	tip := newTip(blocks)
	l.tip.Store(tip)

	if l.writer != nil && len(blocks) > 0 {
		if err := l.resume(blocks[len(blocks)-1]); err != nil {
			return nil, err
		}
	}
	l.logger.Info("log opened",
		logpkg.Int("blocks", len(blocks)),
		logpkg.Uint64("low", tip.LowAddress()),
		logpkg.Uint64("high", tip.HighAddress()),
		logpkg.Bool("read_only", l.writer == nil))
	return l, nil
}

func checkLayout(blocks []blockio.Block) error {
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Address != blocks[i-1].End() {
			return fmt.Errorf("%w: block %016x ends at %d, next starts at %d",
				ErrCorrupt, blocks[i-1].Address, blocks[i-1].End(), blocks[i].Address)
		}
	}
	return nil
}

// resume reopens the last block and reloads its partial final page.
func (l *Log) resume(last blockio.Block) error {
	if err := l.writer.Resume(last.Address); err != nil {
		return fmt.Errorf("resume block %016x: %w", last.Address, err)
	}
	l.open = true
	high := last.End()
	tailAddr := high
	if high > last.Address {
		tailAddr = l.pageStart(high - 1)
	}
	tail := make([]byte, high-tailAddr, l.pageSize)
	if len(tail) > 0 {
		if _, err := l.reader.ReadBlock(last.Address, tailAddr-last.Address, tail); err != nil {
			return fmt.Errorf("reload tail page %d: %w", tailAddr, err)
		}
	}
	l.tailAddr, l.tail, l.flushed = tailAddr, tail, len(tail)
	return nil
}

// Close hands the tail to the medium and releases the writer.
func (l *Log) Close() error {
	if l.writer == nil {
		if !l.closed.Swap(true) {
			l.notify()
		}
		return nil
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.closed.Swap(true) {
		return nil
	}
	err := l.handOff()
	if err == nil {
		err = l.writer.Sync()
	}
	if rerr := l.writer.Release(); rerr != nil && err == nil {
		err = rerr
	}
	l.notify()
	if lerr := l.firePending(); lerr != nil && err == nil {
		err = lerr
	}
	l.logger.Info("log closed", logpkg.Uint64("high", l.HighAddress()))
	return err
}

// ID identifies this open instance in logs.
func (l *Log) ID() uuid.UUID { return l.id }

// Cache returns the log's page cache.
func (l *Log) Cache() logcache.LogCache { return l.cache }

// ReadOnly reports whether the log was opened without a writer.
func (l *Log) ReadOnly() bool { return l.writer == nil }

// FileSize is the block rotation size.
func (l *Log) FileSize() uint64 { return l.fileSize }

// Tip returns the current snapshot.
func (l *Log) Tip() *Tip { return l.tip.Load() }

// HighAddress is the first address past the visible bytes.
func (l *Log) HighAddress() uint64 { return l.tip.Load().HighAddress() }

// LowAddress is the first visible address.
func (l *Log) LowAddress() uint64 { return l.tip.Load().LowAddress() }

func (l *Log) pageStart(address uint64) uint64 {
	return address &^ uint64(l.pageSize-1)
}

// PageSize is the log's page size.
func (l *Log) PageSize() int { return l.pageSize }

// Contains reports whether address is visible.
func (l *Log) Contains(address uint64) bool { return l.tip.Load().Contains(address) }

// InTail reports whether address lies in the in-memory tail page.
func (l *Log) InTail(address uint64) bool {
	if l.writer == nil {
		return false
	}
	l.tailMu.RLock()
	defer l.tailMu.RUnlock()
	return len(l.tail) > 0 && address >= l.tailAddr && address < l.tailAddr+uint64(len(l.tail))
}

// HighPage returns a copy of the tail page when address is its start.
func (l *Log) HighPage(address uint64) ([]byte, bool) {
	if l.writer == nil {
		return nil, false
	}
	l.tailMu.RLock()
	defer l.tailMu.RUnlock()
	if len(l.tail) == 0 || address != l.tailAddr {
		return nil, false
	}
	return append([]byte(nil), l.tail...), true
}

// ReadPage reads the page at address from the medium. The page is short only
// when the medium holds fewer bytes past address.
func (l *Log) ReadPage(address uint64) ([]byte, error) {
	tip := l.tip.Load()
	b, ok := tip.BlockFor(address)
	if !ok {
		return nil, &blockio.RangeError{Address: address, Length: uint64(l.pageSize), High: tip.HighAddress()}
	}
	n := uint64(l.pageSize)
	if rest := tip.HighAddress() - address; rest < n {
		n = rest
	}
	page := make([]byte, n)
	if _, err := l.reader.ReadBlock(b.Address, address-b.Address, page); err != nil {
		return nil, err
	}
	return page, nil
}

// Read returns exactly length bytes at address. Reads may span pages and
// blocks.
func (l *Log) Read(address, length uint64) ([]byte, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	tip := l.tip.Load()
	high := tip.HighAddress()
	if address < tip.LowAddress() || length > high || address > high-length {
		return nil, &blockio.RangeError{Address: address, Length: length, High: tip.HighAddress()}
	}
	p := make([]byte, length)
	if _, err := l.readAt(p, address); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadAt implements io.ReaderAt over the visible bytes. A read crossing the
// high address returns the bytes before it and io.EOF.
func (l *Log) ReadAt(p []byte, off int64) (int, error) {
	if l.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("pagelog: negative offset %d", off)
	}
	address := uint64(off)
	tip := l.tip.Load()
	if address < tip.LowAddress() {
		return 0, &blockio.RangeError{Address: address, Length: uint64(len(p)), High: tip.HighAddress()}
	}
	if address >= tip.HighAddress() {
		return 0, io.EOF
	}
	want := p
	if rest := tip.HighAddress() - address; uint64(len(p)) > rest {
		want = p[:rest]
	}
	n, err := l.readAt(want, address)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (l *Log) readAt(p []byte, address uint64) (int, error) {
	end := address + uint64(len(p))
	n := 0
	for n < len(p) {
		at := address + uint64(n)
		view, err := l.cache.GetPageIterable(l, l.pageStart(at))
		if err != nil {
			return n, err
		}
		chunk := view.Slice(at, end)
		if len(chunk) == 0 {
			return n, &blockio.RangeError{Address: at, Length: end - at, High: l.HighAddress()}
		}
		n += copy(p[n:], chunk)
	}
	return n, nil
}

// PageView returns the valid bytes of the page holding address.
func (l *Log) PageView(address uint64) (logcache.PageView, error) {
	return l.cache.GetPageIterable(l, l.pageStart(address))
}

// CachedPage checks the cache and the tail for the page holding address
// without touching the medium.
func (l *Log) CachedPage(address uint64) ([]byte, bool) {
	return l.cache.GetCachedPage(l, l.pageStart(address))
}
