package pagelog

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/rzbill/pagelog/internal/blockio"
	"github.com/rzbill/pagelog/internal/blockio/memstore"
)

func TestTryUpdateIsIdempotent(t *testing.T) {
	store := memstore.New()
	src, _ := openWriter(t, store, 256, 512)
	defer src.Close()
	rec := &recorder{}
	dst, _ := openFollower(t, store, 256, 512, rec)

	mustAppend(t, src, pattern(0, 1000))
	if err := src.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	updated, err := dst.TryUpdate()
	if err != nil || !updated {
		t.Fatalf("first TryUpdate = %v, %v", updated, err)
	}
	tip := dst.Tip()
	if tip.HighAddress() != 1000 {
		t.Fatalf("follower high = %d", tip.HighAddress())
	}
	if got := rec.only(EventBlockCreated); len(got) != 2 || got[0] != "0" || got[1] != "512" {
		t.Fatalf("follower created events = %v", got)
	}

	updated, err = dst.TryUpdate()
	if err != nil || updated {
		t.Fatalf("second TryUpdate = %v, %v", updated, err)
	}
	if dst.Tip() != tip {
		t.Fatalf("tip changed without an update")
	}

	got, err := dst.Read(0, 1000)
	if err != nil || !bytes.Equal(got, pattern(0, 1000)) {
		t.Fatalf("follower read: %v", err)
	}
}

func TestTryUpdateKeepsCachedPages(t *testing.T) {
	store := memstore.New()
	src, _ := openWriter(t, store, 256, 1024)
	defer src.Close()
	dst, reader := openFollower(t, store, 256, 1024)

	mustAppend(t, src, pattern(0, 600))
	_ = src.Sync()
	if _, err := dst.TryUpdate(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := dst.Read(0, 600); err != nil {
		t.Fatalf("read: %v", err)
	}
	// the final page at 512 is short on the medium and must not be cached
	if _, ok := dst.CachedPage(512); ok {
		t.Fatalf("short final page was cached")
	}

	mustAppend(t, src, pattern(600, 600))
	_ = src.Sync()
	if updated, err := dst.TryUpdate(); err != nil || !updated {
		t.Fatalf("update 2 = %v, %v", updated, err)
	}
	got, err := dst.Read(0, 1200)
	if err != nil || !bytes.Equal(got, pattern(0, 1200)) {
		t.Fatalf("read after update: %v", err)
	}
	if n := reader.count(0, 0); n != 1 {
		t.Fatalf("page 0 read %d times from the medium", n)
	}
	if n := reader.count(0, 256); n != 1 {
		t.Fatalf("page 256 read %d times from the medium", n)
	}
	if n := reader.count(0, 512); n != 2 {
		t.Fatalf("short page 512 read %d times, want 2", n)
	}
}

func TestTryUpdatePrunesDeletedBlocks(t *testing.T) {
	store := memstore.New()
	src, _ := openWriter(t, store, 256, 512)
	defer src.Close()
	rec := &recorder{}
	dst, _ := openFollower(t, store, 256, 512, rec)

	mustAppend(t, src, pattern(0, 1100))
	_ = src.Sync()
	_, _ = dst.TryUpdate()
	if _, err := dst.Read(0, 512); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := src.DeleteBlock(0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if updated, err := dst.TryUpdate(); err != nil || !updated {
		t.Fatalf("update after delete = %v, %v", updated, err)
	}
	if got := rec.only(EventAfterBlockDeleted); len(got) != 1 || got[0] != "0" {
		t.Fatalf("after-deleted events = %v", got)
	}
	if _, ok := dst.CachedPage(0); ok {
		t.Fatalf("follower still serves a pruned page")
	}
	if dst.LowAddress() != 512 {
		t.Fatalf("follower low = %d", dst.LowAddress())
	}
}

// forgettingReader records Forget calls.
type forgettingReader struct {
	blockio.Reader
	mu        sync.Mutex
	forgotten []uint64
}

func (r *forgettingReader) Forget(address uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, address)
	return nil
}

func TestTryUpdateForgetsPrunedBlocks(t *testing.T) {
	store := memstore.New()
	src, _ := openWriter(t, store, 256, 512)
	defer src.Close()
	r := &forgettingReader{Reader: store.Reader()}
	dst, err := Open(Options{PageSize: 256, FileSize: 512, Reader: r})
	if err != nil {
		t.Fatalf("open follower: %v", err)
	}
	defer dst.Close()

	mustAppend(t, src, pattern(0, 1600))
	_ = src.Sync()
	if _, err := dst.TryUpdate(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := src.DeleteBlocksBefore(1024); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := dst.TryUpdate(); err != nil {
		t.Fatalf("update after delete: %v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.forgotten) != 2 || r.forgotten[0] != 0 || r.forgotten[1] != 512 {
		t.Fatalf("forgotten = %v, want [0 512]", r.forgotten)
	}
}

// shrinkingReader reports whatever blocks it is told to.
type shrinkingReader struct {
	blockio.Reader
	mu     sync.Mutex
	blocks []blockio.Block
}

func (r *shrinkingReader) ListBlocks() ([]blockio.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]blockio.Block(nil), r.blocks...), nil
}

func TestTryUpdateReportsRegression(t *testing.T) {
	r := &shrinkingReader{Reader: memstore.New().Reader()}
	dst, err := Open(Options{PageSize: 256, FileSize: 512, Reader: r})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	r.blocks = []blockio.Block{{Address: 0, Length: 512, Sealed: true}, {Address: 512, Length: 100}}
	if _, err := dst.TryUpdate(); err != nil {
		t.Fatalf("update: %v", err)
	}
	r.blocks = []blockio.Block{{Address: 0, Length: 512, Sealed: true}, {Address: 512, Length: 50}}
	_, err = dst.TryUpdate()
	var rerr *RegressionError
	if !errors.As(err, &rerr) || !errors.Is(err, ErrReplicationRegression) {
		t.Fatalf("expected RegressionError, got %v", err)
	}
	if rerr.Known != 612 || rerr.Found != 562 {
		t.Fatalf("regression = %+v", rerr)
	}
	if errors.Is(err, blockio.ErrOutOfRange) {
		t.Fatalf("regression must be distinct from ErrOutOfRange")
	}
	if dst.HighAddress() != 612 {
		t.Fatalf("tip moved on regression")
	}
}

func TestTryUpdateRejectsWriter(t *testing.T) {
	store := memstore.New()
	src, _ := openWriter(t, store, 256, 512)
	defer src.Close()
	if _, err := src.TryUpdate(); !errors.Is(err, ErrWritable) {
		t.Fatalf("expected ErrWritable, got %v", err)
	}
	dst, _ := openFollower(t, store, 256, 512)
	if _, err := dst.Append([]byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestConcurrentTryUpdateAndReads(t *testing.T) {
	store := memstore.New()
	src, _ := openWriter(t, store, 256, 512)
	defer src.Close()
	dst, _ := openFollower(t, store, 256, 512)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for g := 0; g < 3; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := dst.TryUpdate(); err != nil {
					t.Errorf("update: %v", err)
					return
				}
				high := dst.HighAddress()
				if high == 0 {
					continue
				}
				got, err := dst.Read(0, high)
				if err != nil || !bytes.Equal(got, pattern(0, int(high))) {
					t.Errorf("follower read [0,%d): %v", high, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		mustAppend(t, src, pattern(src.HighAddress(), 53))
		if err := src.Sync(); err != nil {
			t.Fatalf("sync: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
