package kvstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rzbill/pagelog/internal/blockio"
	pebblestore "github.com/rzbill/pagelog/internal/storage/pebble"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Dir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAcrossChunks(t *testing.T) {
	s := newTestStore(t)
	w, err := s.Writer()
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	defer w.Release()

	if err := w.Create(1024); err != nil {
		t.Fatalf("create: %v", err)
	}
	var want []byte
	for i := 0; i < 5; i++ {
		chunk := bytes.Repeat([]byte{byte('a' + i)}, 10+i)
		want = append(want, chunk...)
		if err := w.Append(chunk); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	blocks, err := s.ListBlocks()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Address != 1024 || blocks[0].Length != uint64(len(want)) || blocks[0].Sealed {
		t.Fatalf("blocks = %+v", blocks)
	}

	// a read that starts mid-chunk and spans three chunks
	p := make([]byte, 25)
	if _, err := s.ReadBlock(1024, 5, p); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(p, want[5:30]) {
		t.Fatalf("read %q want %q", p, want[5:30])
	}
	if _, err := s.ReadBlock(1024, uint64(len(want))-1, make([]byte, 2)); !errors.Is(err, blockio.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestSealRemoveAndLock(t *testing.T) {
	s := newTestStore(t)
	w, err := s.Writer()
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if _, err := s.Writer(); !errors.Is(err, blockio.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	_ = w.Create(0)
	_ = w.Append([]byte("first"))
	if err := w.Seal(); err != nil {
		t.Fatalf("seal: %v", err)
	}
	_ = w.Create(5)
	_ = w.Append([]byte("second"))

	if err := w.Remove(5); !errors.Is(err, blockio.ErrBlockOpen) {
		t.Fatalf("expected ErrBlockOpen, got %v", err)
	}
	if err := w.Remove(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.ReadBlock(0, 0, make([]byte, 1)); !errors.Is(err, blockio.ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
	if err := w.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := w.Append([]byte("x")); !errors.Is(err, blockio.ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}

	w2, err := s.Writer()
	if err != nil {
		t.Fatalf("writer after release: %v", err)
	}
	defer w2.Release()
	if err := w2.Resume(5); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := w2.Append([]byte("!")); err != nil {
		t.Fatalf("append: %v", err)
	}
	p := make([]byte, 7)
	if _, err := s.ReadBlock(5, 0, p); err != nil || string(p) != "second!" {
		t.Fatalf("read %q err %v", p, err)
	}
	blocks, _ := s.ListBlocks()
	if len(blocks) != 1 || blocks[0].Address != 5 {
		t.Fatalf("blocks = %+v", blocks)
	}
}
