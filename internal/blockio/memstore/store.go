// Package memstore keeps blocks in memory. A Store can hand out one writer and
// any number of readers at a time, so two logs can share it the way two
// processes share a directory.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzbill/pagelog/internal/blockio"
)

type memBlock struct {
	data   []byte
	sealed bool
}

// Store is an in-memory medium.
type Store struct {
	mu     sync.RWMutex
	blocks map[uint64]*memBlock
	open   uint64
	isOpen bool
	locked bool
}

var _ blockio.Medium = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{blocks: make(map[uint64]*memBlock)}
}

// Reader returns a reader over the store.
func (s *Store) Reader() blockio.Reader { return (*reader)(s) }

// Writer returns the store's writer, or ErrLocked while another writer has
// not been released.
func (s *Store) Writer() (blockio.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return nil, blockio.ErrLocked
	}
	s.locked = true
	return &writer{s: s}, nil
}

// Close is a no-op; memory is reclaimed with the Store.
func (s *Store) Close() error { return nil }

type reader Store

func (r *reader) ListBlocks() ([]blockio.Block, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blockio.Block, 0, len(s.blocks))
	for addr, b := range s.blocks {
		out = append(out, blockio.Block{Address: addr, Length: uint64(len(b.data)), Sealed: b.sealed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (r *reader) ReadBlock(address, offset uint64, p []byte) (int, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[address]
	if !ok {
		return 0, &blockio.ReadError{Op: "read", Address: address, Err: blockio.ErrBlockNotFound}
	}
	if offset+uint64(len(p)) > uint64(len(b.data)) {
		return 0, &blockio.RangeError{Address: address + offset, Length: uint64(len(p)), High: address + uint64(len(b.data))}
	}
	return copy(p, b.data[offset:]), nil
}

type writer struct {
	s        *Store
	released bool
}

func (w *writer) Create(address uint64) error {
	if w.released {
		return blockio.ErrReleased
	}
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.isOpen {
		return fmt.Errorf("create %016x: block %016x still open", address, w.s.open)
	}
	if _, exists := w.s.blocks[address]; exists {
		return fmt.Errorf("create %016x: block exists", address)
	}
	w.s.blocks[address] = &memBlock{}
	w.s.open, w.s.isOpen = address, true
	return nil
}

func (w *writer) Append(p []byte) error {
	if w.released {
		return blockio.ErrReleased
	}
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if !w.s.isOpen {
		return blockio.ErrNoOpenBlock
	}
	b := w.s.blocks[w.s.open]
	b.data = append(b.data, p...)
	return nil
}

func (w *writer) Sync() error {
	if w.released {
		return blockio.ErrReleased
	}
	return nil
}

func (w *writer) Seal() error {
	if w.released {
		return blockio.ErrReleased
	}
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if !w.s.isOpen {
		return blockio.ErrNoOpenBlock
	}
	w.s.blocks[w.s.open].sealed = true
	w.s.isOpen = false
	return nil
}

// Resume reopens the last block for appending; used when a log is reopened
// over a medium whose final block was left open.
func (w *writer) Resume(address uint64) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	b, ok := w.s.blocks[address]
	if !ok {
		return blockio.ErrBlockNotFound
	}
	b.sealed = false
	w.s.open, w.s.isOpen = address, true
	return nil
}

func (w *writer) Remove(address uint64) error {
	if w.released {
		return blockio.ErrReleased
	}
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.isOpen && w.s.open == address {
		return blockio.ErrBlockOpen
	}
	if _, ok := w.s.blocks[address]; !ok {
		return blockio.ErrBlockNotFound
	}
	delete(w.s.blocks, address)
	return nil
}

func (w *writer) Release() error {
	if w.released {
		return nil
	}
	w.released = true
	w.s.mu.Lock()
	w.s.locked = false
	w.s.isOpen = false
	w.s.mu.Unlock()
	return nil
}
