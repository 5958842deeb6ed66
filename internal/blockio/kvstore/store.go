// Package kvstore stores blocks in Pebble. Each append becomes one chunk key
// written together with the block's metadata, so a block is always durable up
// to a chunk boundary.
package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/pagelog/internal/blockio"
	pebblestore "github.com/rzbill/pagelog/internal/storage/pebble"
)

var (
	metaPrefix = []byte("m/")
	dataPrefix = []byte("d/")
)

func metaKey(address uint64) []byte {
	k := make([]byte, 0, len(metaPrefix)+8)
	k = append(k, metaPrefix...)
	return binary.BigEndian.AppendUint64(k, address)
}

func blockDataPrefix(address uint64) []byte {
	k := make([]byte, 0, len(dataPrefix)+9)
	k = append(k, dataPrefix...)
	k = binary.BigEndian.AppendUint64(k, address)
	return append(k, '/')
}

func chunkKey(address, offset uint64) []byte {
	return binary.BigEndian.AppendUint64(blockDataPrefix(address), offset)
}

type meta struct {
	length uint64
	sealed bool
}

func encodeMeta(m meta) []byte {
	v := binary.BigEndian.AppendUint64(make([]byte, 0, 9), m.length)
	if m.sealed {
		return append(v, 1)
	}
	return append(v, 0)
}

func decodeMeta(v []byte) (meta, error) {
	if len(v) != 9 {
		return meta{}, fmt.Errorf("kvstore: corrupt block metadata (%d bytes)", len(v))
	}
	return meta{length: binary.BigEndian.Uint64(v), sealed: v[8] == 1}, nil
}

// Store is a block medium inside a Pebble database.
type Store struct {
	db    *pebblestore.DB
	owned bool

	mu     sync.Mutex
	locked bool
}

var _ blockio.Medium = (*Store)(nil)

// Options configures Open.
type Options struct {
	Dir   string
	Fsync pebblestore.FsyncMode
}

// Open opens a Pebble database dedicated to the store.
func Open(opts Options) (*Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.Dir, Fsync: opts.Fsync})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", opts.Dir, err)
	}
	return &Store{db: db, owned: true}, nil
}

// New keeps blocks in an existing database. Close leaves db open.
func New(db *pebblestore.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database.
func (s *Store) DB() *pebblestore.DB { return s.db }

// Reader returns the store itself.
func (s *Store) Reader() blockio.Reader { return s }

// Writer returns the store's single writer. Pebble's own directory lock keeps
// other processes out; this guards against a second writer in-process.
func (s *Store) Writer() (blockio.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return nil, blockio.ErrLocked
	}
	s.locked = true
	return &writer{s: s}, nil
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ListBlocks() ([]blockio.Block, error) {
	var (
		out     []blockio.Block
		scanErr error
	)
	err := s.db.ScanPrefix(metaPrefix, func(k, v []byte) bool {
		m, err := decodeMeta(v)
		if err != nil {
			scanErr = err
			return false
		}
		out = append(out, blockio.Block{
			Address: binary.BigEndian.Uint64(k[len(metaPrefix):]),
			Length:  m.length,
			Sealed:  m.sealed,
		})
		return true
	})
	if err != nil {
		return nil, &blockio.ReadError{Op: "list", Err: err}
	}
	return out, scanErr
}

func (s *Store) meta(address uint64) (meta, error) {
	v, err := s.db.Get(metaKey(address))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return meta{}, blockio.ErrBlockNotFound
		}
		return meta{}, err
	}
	return decodeMeta(v)
}

func (s *Store) ReadBlock(address, offset uint64, p []byte) (int, error) {
	m, err := s.meta(address)
	if err != nil {
		return 0, &blockio.ReadError{Op: "read", Address: address, Err: err}
	}
	if offset+uint64(len(p)) > m.length {
		return 0, &blockio.RangeError{Address: address + offset, Length: uint64(len(p)), High: address + m.length}
	}
	if len(p) == 0 {
		return 0, nil
	}

	prefix := blockDataPrefix(address)
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: pebblestore.PrefixEnd(prefix),
	})
	if err != nil {
		return 0, &blockio.ReadError{Op: "read", Address: address, Err: err}
	}
	defer it.Close()

	// The chunk holding offset is the last one starting at or before it.
	n := 0
	for ok := it.SeekLT(chunkKey(address, offset+1)); ok && n < len(p); ok = it.Next() {
		start := binary.BigEndian.Uint64(it.Key()[len(prefix):])
		chunk := it.Value()
		pos := offset + uint64(n)
		if start > pos || start+uint64(len(chunk)) <= pos {
			break
		}
		n += copy(p[n:], chunk[pos-start:])
	}
	if err := it.Error(); err != nil {
		return n, &blockio.ReadError{Op: "read", Address: address, Err: err}
	}
	if n < len(p) {
		return n, &blockio.ReadError{Op: "read", Address: address, Err: fmt.Errorf("missing chunk at offset %d", offset+uint64(n))}
	}
	return n, nil
}

type writer struct {
	s        *Store
	open     bool
	addr     uint64
	length   uint64
	released bool
}

func (w *writer) check() error {
	if w.released {
		return blockio.ErrReleased
	}
	return nil
}

func (w *writer) Create(address uint64) error {
	if err := w.check(); err != nil {
		return err
	}
	if w.open {
		return fmt.Errorf("create %016x: block %016x still open", address, w.addr)
	}
	if _, err := w.s.meta(address); err == nil {
		return fmt.Errorf("create %016x: block exists", address)
	} else if !errors.Is(err, blockio.ErrBlockNotFound) {
		return err
	}
	if err := w.s.db.Set(metaKey(address), encodeMeta(meta{})); err != nil {
		return fmt.Errorf("create block %016x: %w", address, err)
	}
	w.open, w.addr, w.length = true, address, 0
	return nil
}

func (w *writer) Resume(address uint64) error {
	if err := w.check(); err != nil {
		return err
	}
	if w.open {
		return fmt.Errorf("resume %016x: block %016x still open", address, w.addr)
	}
	m, err := w.s.meta(address)
	if err != nil {
		return err
	}
	if m.sealed {
		if err := w.s.db.Set(metaKey(address), encodeMeta(meta{length: m.length})); err != nil {
			return fmt.Errorf("resume block %016x: %w", address, err)
		}
	}
	w.open, w.addr, w.length = true, address, m.length
	return nil
}

func (w *writer) Append(p []byte) error {
	if err := w.check(); err != nil {
		return err
	}
	if !w.open {
		return blockio.ErrNoOpenBlock
	}
	if len(p) == 0 {
		return nil
	}
	b := w.s.db.NewBatch()
	defer b.Close()
	if err := b.Set(chunkKey(w.addr, w.length), p, nil); err != nil {
		return err
	}
	next := w.length + uint64(len(p))
	if err := b.Set(metaKey(w.addr), encodeMeta(meta{length: next}), nil); err != nil {
		return err
	}
	if err := w.s.db.CommitBatch(context.Background(), b); err != nil {
		return fmt.Errorf("append block %016x: %w", w.addr, err)
	}
	w.length = next
	return nil
}

func (w *writer) Sync() error {
	if err := w.check(); err != nil {
		return err
	}
	return w.s.db.SyncWAL()
}

func (w *writer) Seal() error {
	if err := w.check(); err != nil {
		return err
	}
	if !w.open {
		return blockio.ErrNoOpenBlock
	}
	b := w.s.db.NewBatch()
	defer b.Close()
	if err := b.Set(metaKey(w.addr), encodeMeta(meta{length: w.length, sealed: true}), nil); err != nil {
		return err
	}
	if err := w.s.db.CommitBatchSync(context.Background(), b); err != nil {
		return fmt.Errorf("seal block %016x: %w", w.addr, err)
	}
	w.open = false
	return nil
}

func (w *writer) Remove(address uint64) error {
	if err := w.check(); err != nil {
		return err
	}
	if w.open && w.addr == address {
		return blockio.ErrBlockOpen
	}
	if _, err := w.s.meta(address); err != nil {
		return err
	}
	prefix := blockDataPrefix(address)
	b := w.s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(metaKey(address), nil); err != nil {
		return err
	}
	if err := b.DeleteRange(prefix, pebblestore.PrefixEnd(prefix), nil); err != nil {
		return err
	}
	if err := w.s.db.CommitBatchSync(context.Background(), b); err != nil {
		return fmt.Errorf("remove block %016x: %w", address, err)
	}
	return nil
}

func (w *writer) Release() error {
	if w.released {
		return nil
	}
	w.released = true
	w.open = false
	w.s.mu.Lock()
	w.s.locked = false
	w.s.mu.Unlock()
	return w.s.db.SyncWAL()
}
