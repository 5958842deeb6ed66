// Package filestore keeps blocks as files in a directory. File names encode
// the block address as 16 hex digits with an ".xd" suffix. A writer holds an
// exclusive flock on the directory's lock file; readers take no lock, so a
// second process can follow a live writer.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rzbill/pagelog/internal/blockio"
)

const (
	blockSuffix  = ".xd"
	lockFileName = "xd.lck"
)

// Options configures a Store.
type Options struct {
	// Dir holds the block files. It is created when missing.
	Dir string
	// UseMmap serves reads through read-only memory maps.
	UseMmap bool
}

// Store is a directory-backed medium.
type Store struct {
	dir     string
	useMmap bool

	mu    sync.RWMutex
	files map[uint64]*os.File
	maps  map[uint64][]byte
}

var _ blockio.Forgetter = (*Store)(nil)

var _ blockio.Medium = (*Store)(nil)

// Open prepares dir for use.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("filestore: Options.Dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create block dir: %w", err)
	}
	return &Store{
		dir:     opts.Dir,
		useMmap: opts.UseMmap,
		files:   make(map[uint64]*os.File),
		maps:    make(map[uint64][]byte),
	}, nil
}

// BlockPath returns the file path of the block at address.
func BlockPath(dir string, address uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%016x%s", address, blockSuffix))
}

func parseBlockName(name string) (uint64, bool) {
	if !strings.HasSuffix(name, blockSuffix) {
		return 0, false
	}
	hex := strings.TrimSuffix(name, blockSuffix)
	if len(hex) != 16 {
		return 0, false
	}
	addr, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, false
	}
	return addr, true
}

// Dir returns the block directory.
func (s *Store) Dir() string { return s.dir }

// Reader returns the store itself; reads are safe for concurrent use.
func (s *Store) Reader() blockio.Reader { return s }

// ListBlocks scans the directory. Every block but the last is sealed.
func (s *Store) ListBlocks() ([]blockio.Block, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &blockio.ReadError{Op: "list", Err: err}
	}
	blocks := make([]blockio.Block, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		addr, ok := parseBlockName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, &blockio.ReadError{Op: "stat", Address: addr, Err: err}
		}
		blocks = append(blocks, blockio.Block{Address: addr, Length: uint64(info.Size()), Sealed: true})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Address < blocks[j].Address })
	if n := len(blocks); n > 0 {
		blocks[n-1].Sealed = false
	}
	return blocks, nil
}

// ReadBlock reads from the block file at address.
func (s *Store) ReadBlock(address, offset uint64, p []byte) (int, error) {
	if s.useMmap {
		if n, ok := s.copyMapped(address, offset, p); ok {
			return n, nil
		}
	}
	f, err := s.handle(address)
	if err != nil {
		return 0, err
	}
	n, err := f.ReadAt(p, int64(offset))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, &blockio.RangeError{Address: address + offset, Length: uint64(len(p)), High: address + offset + uint64(n)}
		}
		return n, &blockio.ReadError{Op: "read", Address: address, Err: err}
	}
	return n, nil
}

func (s *Store) handle(address uint64) (*os.File, error) {
	s.mu.RLock()
	f, ok := s.files[address]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[address]; ok {
		return f, nil
	}
	f, err := os.Open(BlockPath(s.dir, address))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &blockio.ReadError{Op: "open", Address: address, Err: blockio.ErrBlockNotFound}
		}
		return nil, &blockio.ReadError{Op: "open", Address: address, Err: err}
	}
	s.files[address] = f
	return f, nil
}

// copyMapped copies from the block's map. The read lock is held across the
// copy so evict and Close cannot unmap it underneath.
func (s *Store) copyMapped(address, offset uint64, p []byte) (int, bool) {
	if _, err := s.mapping(address); err != nil {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.maps[address]
	if !ok || offset > uint64(len(m)) || uint64(len(p)) > uint64(len(m))-offset {
		return 0, false
	}
	return copy(p, m[offset:]), true
}

// mapping returns a read-only map of the block. A map taken while the block
// was still growing is replaced once the file is longer than the map.
func (s *Store) mapping(address uint64) ([]byte, error) {
	f, err := s.handle(address)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, blockio.ErrOutOfRange
	}

	s.mu.RLock()
	m, ok := s.maps[address]
	s.mu.RUnlock()
	if ok && int64(len(m)) >= size {
		return m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[address]; ok {
		if int64(len(m)) >= size {
			return m, nil
		}
		// readers copy under the read lock, so nobody is using m now
		if err := unix.Munmap(m); err != nil {
			return nil, fmt.Errorf("unmap block %016x: %w", address, err)
		}
		delete(s.maps, address)
	}
	m, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		delete(s.maps, address)
		return nil, err
	}
	s.maps[address] = m
	return m, nil
}

// Forget drops the read handle and map of the block at address. Followers
// call it for blocks another process removed.
func (s *Store) Forget(address uint64) error { return s.evict(address) }

func (s *Store) evict(address uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if m, ok := s.maps[address]; ok {
		if err := unix.Munmap(m); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmap block %016x: %w", address, err)
		}
		delete(s.maps, address)
	}
	if f, ok := s.files[address]; ok {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close block %016x: %w", address, err)
		}
		delete(s.files, address)
	}
	return firstErr
}

// Close releases read handles and maps.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for addr, m := range s.maps {
		if err := unix.Munmap(m); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmap block %016x: %w", addr, err)
		}
	}
	for addr, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close block %016x: %w", addr, err)
		}
	}
	s.maps = make(map[uint64][]byte)
	s.files = make(map[uint64]*os.File)
	return firstErr
}
