package pagelog

import (
	"sync"
	"testing"

	"github.com/rzbill/pagelog/internal/blockio"
	"github.com/rzbill/pagelog/internal/blockio/memstore"
)

func pattern(start uint64, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte((start + uint64(i)) % 251)
	}
	return p
}

// countingReader counts medium reads per (block, offset).
type countingReader struct {
	blockio.Reader
	mu    sync.Mutex
	reads map[[2]uint64]int
}

func newCountingReader(r blockio.Reader) *countingReader {
	return &countingReader{Reader: r, reads: map[[2]uint64]int{}}
}

func (c *countingReader) ReadBlock(address, offset uint64, p []byte) (int, error) {
	c.mu.Lock()
	c.reads[[2]uint64{address, offset}]++
	c.mu.Unlock()
	return c.Reader.ReadBlock(address, offset, p)
}

func (c *countingReader) count(address, offset uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[[2]uint64{address, offset}]
}

// recorder logs every event it sees as a short string.
type recorder struct {
	mu     sync.Mutex
	events []string
	fail   map[Event]error
}

func (r *recorder) add(ev Event, address uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(ev)+":"+itoa(address))
	return r.fail[ev]
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return string(b[i:])
}

func (r *recorder) BlockCreated(ev BlockEvent) error {
	return r.add(EventBlockCreated, ev.Block.Address)
}
func (r *recorder) BeforeBlockDeleted(ev BlockEvent) error {
	return r.add(EventBeforeBlockDeleted, ev.Block.Address)
}
func (r *recorder) AfterBlockDeleted(address uint64) error {
	return r.add(EventAfterBlockDeleted, address)
}
func (r *recorder) BlockModified(ev BlockEvent) error {
	return r.add(EventBlockModified, ev.Block.Address)
}

func (r *recorder) only(ev Event) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	prefix := string(ev) + ":"
	for _, e := range r.events {
		if len(e) > len(prefix) && e[:len(prefix)] == prefix {
			out = append(out, e[len(prefix):])
		}
	}
	return out
}

func openWriter(t *testing.T, store *memstore.Store, pageSize int, fileSize uint64, listeners ...BlockListener) (*Log, *countingReader) {
	t.Helper()
	w, err := store.Writer()
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	r := newCountingReader(store.Reader())
	l, err := Open(Options{
		PageSize:  pageSize,
		FileSize:  fileSize,
		Reader:    r,
		Writer:    w,
		Listeners: listeners,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return l, r
}

func openFollower(t *testing.T, store *memstore.Store, pageSize int, fileSize uint64, listeners ...BlockListener) (*Log, *countingReader) {
	t.Helper()
	r := newCountingReader(store.Reader())
	l, err := Open(Options{PageSize: pageSize, FileSize: fileSize, Reader: r, Listeners: listeners})
	if err != nil {
		t.Fatalf("open follower: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, r
}

func mustAppend(t *testing.T, l *Log, p []byte) uint64 {
	t.Helper()
	addr, err := l.Append(p)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return addr
}
