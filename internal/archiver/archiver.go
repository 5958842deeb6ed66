// Package archiver keeps an xz-compressed copy of every block a log deletes.
// An Archiver is a pagelog.BlockListener: it copies the block out in
// BeforeBlockDeleted, while the bytes are still readable, and a failed copy
// vetoes the deletion.
package archiver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/rzbill/pagelog/internal/blockio"
	"github.com/rzbill/pagelog/internal/pagelog"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

const archiveSuffix = ".xd.xz"

// Archiver writes {dir}/{address:016x}.xd.xz files.
type Archiver struct {
	dir    string
	logger logpkg.Logger
}

var _ pagelog.BlockListener = (*Archiver)(nil)

// New creates dir if needed and returns an Archiver writing into it.
func New(dir string, logger logpkg.Logger) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archiver{dir: dir, logger: logpkg.OrNop(logger).WithComponent("archiver")}, nil
}

// Dir returns the archive directory.
func (a *Archiver) Dir() string { return a.dir }

// Path returns the archive path of the block at address.
func (a *Archiver) Path(address uint64) string {
	return filepath.Join(a.dir, fmt.Sprintf("%016x%s", address, archiveSuffix))
}

// Archive compresses block b read from r. The archive appears atomically.
func (a *Archiver) Archive(r blockio.Reader, b blockio.Block) (err error) {
	tmp, err := os.CreateTemp(a.dir, ".archive-*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	xw, err := xz.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}
	n, err := io.Copy(xw, blockio.NewSectionReader(r, b))
	if err != nil {
		return fmt.Errorf("compress block %016x: %w", b.Address, err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("finish xz stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), a.Path(b.Address)); err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}
	a.logger.Info("block archived",
		logpkg.Uint64("address", b.Address),
		logpkg.Int64("bytes", n),
		logpkg.Str("path", a.Path(b.Address)))
	return nil
}

// Open returns a reader of the archived block at address.
func (a *Archiver) Open(address uint64) (io.ReadCloser, error) {
	f, err := os.Open(a.Path(address))
	if err != nil {
		return nil, err
	}
	xr, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open xz stream: %w", err)
	}
	return struct {
		io.Reader
		io.Closer
	}{xr, f}, nil
}

// Restore decompresses the archived block at address.
func (a *Archiver) Restore(address uint64) ([]byte, error) {
	rc, err := a.Open(address)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// List returns the archived block addresses in order.
func (a *Archiver) List() ([]uint64, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		addr, err := strconv.ParseUint(strings.TrimSuffix(name, archiveSuffix), 16, 64)
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (a *Archiver) BeforeBlockDeleted(ev pagelog.BlockEvent) error {
	return a.Archive(ev.Reader, ev.Block)
}

func (a *Archiver) BlockCreated(pagelog.BlockEvent) error  { return nil }
func (a *Archiver) AfterBlockDeleted(uint64) error         { return nil }
func (a *Archiver) BlockModified(pagelog.BlockEvent) error { return nil }
