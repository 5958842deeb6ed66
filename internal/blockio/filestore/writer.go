package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/rzbill/pagelog/internal/blockio"
)

type fileWriter struct {
	s        *Store
	lock     *os.File
	cur      *os.File
	addr     uint64
	released bool
}

// Writer takes the directory lock and returns the medium's writer. It fails
// with ErrLocked while another writer, in this or another process, holds it.
func (s *Store) Writer() (blockio.Writer, error) {
	lf, err := os.OpenFile(filepath.Join(s.dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lf.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, blockio.ErrLocked
		}
		return nil, fmt.Errorf("lock %s: %w", s.dir, err)
	}
	return &fileWriter{s: s, lock: lf}, nil
}

func (w *fileWriter) Create(address uint64) error {
	if w.released {
		return blockio.ErrReleased
	}
	if w.cur != nil {
		return fmt.Errorf("create %016x: block %016x still open", address, w.addr)
	}
	f, err := os.OpenFile(BlockPath(w.s.dir, address), os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create block %016x: %w", address, err)
	}
	w.cur, w.addr = f, address
	return nil
}

func (w *fileWriter) Resume(address uint64) error {
	if w.released {
		return blockio.ErrReleased
	}
	if w.cur != nil {
		return fmt.Errorf("resume %016x: block %016x still open", address, w.addr)
	}
	f, err := os.OpenFile(BlockPath(w.s.dir, address), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return blockio.ErrBlockNotFound
		}
		return fmt.Errorf("resume block %016x: %w", address, err)
	}
	w.cur, w.addr = f, address
	return nil
}

func (w *fileWriter) Append(p []byte) error {
	if w.released {
		return blockio.ErrReleased
	}
	if w.cur == nil {
		return blockio.ErrNoOpenBlock
	}
	if _, err := w.cur.Write(p); err != nil {
		return fmt.Errorf("append block %016x: %w", w.addr, err)
	}
	return nil
}

func (w *fileWriter) Sync() error {
	if w.released {
		return blockio.ErrReleased
	}
	if w.cur == nil {
		return nil
	}
	return w.cur.Sync()
}

func (w *fileWriter) Seal() error {
	if w.released {
		return blockio.ErrReleased
	}
	if w.cur == nil {
		return blockio.ErrNoOpenBlock
	}
	if err := w.cur.Sync(); err != nil {
		return fmt.Errorf("sync block %016x: %w", w.addr, err)
	}
	err := w.cur.Close()
	w.cur = nil
	return err
}

func (w *fileWriter) Remove(address uint64) error {
	if w.released {
		return blockio.ErrReleased
	}
	if w.cur != nil && w.addr == address {
		return blockio.ErrBlockOpen
	}
	if err := w.s.evict(address); err != nil {
		return err
	}
	if err := os.Remove(BlockPath(w.s.dir, address)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return blockio.ErrBlockNotFound
		}
		return fmt.Errorf("remove block %016x: %w", address, err)
	}
	return nil
}

// Release syncs and closes the open block and drops the directory lock. The
// block stays unsealed on disk; a later writer resumes it.
func (w *fileWriter) Release() error {
	if w.released {
		return nil
	}
	w.released = true
	var firstErr error
	if w.cur != nil {
		if err := w.cur.Sync(); err != nil {
			firstErr = err
		}
		if err := w.cur.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.cur = nil
	}
	if err := unix.Flock(int(w.lock.Fd()), unix.LOCK_UN); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("unlock %s: %w", w.s.dir, err)
	}
	if err := w.lock.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
