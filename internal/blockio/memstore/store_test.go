package memstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rzbill/pagelog/internal/blockio"
)

func TestAppendListRead(t *testing.T) {
	s := New()
	w, err := s.Writer()
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if err := w.Create(0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Append([]byte("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Seal(); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := w.Create(5); err != nil {
		t.Fatalf("create 2: %v", err)
	}
	if err := w.Append([]byte("world")); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	blocks, err := s.Reader().ListBlocks()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []blockio.Block{{Address: 0, Length: 5, Sealed: true}, {Address: 5, Length: 5}}
	if len(blocks) != len(want) {
		t.Fatalf("blocks = %+v", blocks)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Fatalf("block %d = %+v want %+v", i, blocks[i], want[i])
		}
	}

	p := make([]byte, 3)
	if _, err := s.Reader().ReadBlock(5, 1, p); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(p, []byte("orl")) {
		t.Fatalf("read %q", p)
	}
	if _, err := s.Reader().ReadBlock(5, 3, p); !errors.Is(err, blockio.ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestSingleWriter(t *testing.T) {
	s := New()
	w, err := s.Writer()
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if _, err := s.Writer(); !errors.Is(err, blockio.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := w.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := w.Create(0); !errors.Is(err, blockio.ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	if _, err := s.Writer(); err != nil {
		t.Fatalf("writer after release: %v", err)
	}
}

func TestRemoveOpenBlockRefused(t *testing.T) {
	s := New()
	w, _ := s.Writer()
	_ = w.Create(0)
	if err := w.Remove(0); !errors.Is(err, blockio.ErrBlockOpen) {
		t.Fatalf("expected ErrBlockOpen, got %v", err)
	}
	_ = w.Seal()
	if err := w.Remove(0); err != nil {
		t.Fatalf("remove sealed: %v", err)
	}
	if err := w.Remove(0); !errors.Is(err, blockio.ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}
