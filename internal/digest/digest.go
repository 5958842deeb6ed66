// Package digest records a blake3 digest of every sealed block in Pebble and
// verifies blocks against them.
//
// A Tracker is a pagelog.BlockListener. When a block is created its
// predecessor has just been sealed, so the predecessor is hashed then. On a
// follower, TryUpdate announces new blocks the same way.
package digest

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/rzbill/pagelog/internal/blockio"
	"github.com/rzbill/pagelog/internal/pagelog"
	pebblestore "github.com/rzbill/pagelog/internal/storage/pebble"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

var keyPrefix = []byte("digest/")

func key(address uint64) []byte {
	k := make([]byte, 0, len(keyPrefix)+8)
	k = append(k, keyPrefix...)
	return binary.BigEndian.AppendUint64(k, address)
}

// Digest is the recorded hash of one sealed block.
type Digest struct {
	Address uint64
	Length  uint64
	Sum     [32]byte
}

// String returns the hex-encoded sum.
func (d Digest) String() string { return hex.EncodeToString(d.Sum[:]) }

func (d Digest) encode() []byte {
	v := make([]byte, 0, 40)
	v = binary.BigEndian.AppendUint64(v, d.Length)
	return append(v, d.Sum[:]...)
}

func decode(address uint64, v []byte) (Digest, error) {
	if len(v) != 40 {
		return Digest{}, fmt.Errorf("digest %016x: corrupt value (%d bytes)", address, len(v))
	}
	d := Digest{Address: address, Length: binary.BigEndian.Uint64(v)}
	copy(d.Sum[:], v[8:])
	return d, nil
}

// Sum hashes block b read from r.
func Sum(r blockio.Reader, b blockio.Block) (Digest, error) {
	h := blake3.New()
	if _, err := io.Copy(h, blockio.NewSectionReader(r, b)); err != nil {
		return Digest{}, fmt.Errorf("hash block %016x: %w", b.Address, err)
	}
	d := Digest{Address: b.Address, Length: b.Length}
	copy(d.Sum[:], h.Sum(nil))
	return d, nil
}

// Tracker keeps block digests in a Pebble database.
type Tracker struct {
	db     *pebblestore.DB
	logger logpkg.Logger
}

var _ pagelog.BlockListener = (*Tracker)(nil)

// NewTracker returns a Tracker storing digests in db.
func NewTracker(db *pebblestore.DB, logger logpkg.Logger) *Tracker {
	return &Tracker{db: db, logger: logpkg.OrNop(logger).WithComponent("digest")}
}

// Record hashes b and stores its digest.
func (t *Tracker) Record(r blockio.Reader, b blockio.Block) (Digest, error) {
	d, err := Sum(r, b)
	if err != nil {
		return Digest{}, err
	}
	if err := t.db.Set(key(b.Address), d.encode()); err != nil {
		return Digest{}, fmt.Errorf("store digest %016x: %w", b.Address, err)
	}
	t.logger.Debug("digest recorded", logpkg.Uint64("address", b.Address), logpkg.Str("blake3", d.String()))
	return d, nil
}

// Get returns the digest recorded for the block at address.
func (t *Tracker) Get(address uint64) (Digest, bool, error) {
	v, err := t.db.Get(key(address))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Digest{}, false, nil
		}
		return Digest{}, false, err
	}
	d, err := decode(address, v)
	return d, err == nil, err
}

// Forget drops the digest of the block at address.
func (t *Tracker) Forget(address uint64) error {
	return t.db.Delete(key(address))
}

// All returns every recorded digest in address order.
func (t *Tracker) All() ([]Digest, error) {
	var (
		out       []Digest
		decodeErr error
	)
	err := t.db.ScanPrefix(keyPrefix, func(k, v []byte) bool {
		d, err := decode(binary.BigEndian.Uint64(k[len(keyPrefix):]), v)
		if err != nil {
			decodeErr = err
			return false
		}
		out = append(out, d)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}

// BlockCreated records the digest of the block preceding ev.Block.
func (t *Tracker) BlockCreated(ev pagelog.BlockEvent) error {
	if ev.Log == nil {
		return nil
	}
	blocks := ev.Log.Tip().Blocks()
	i := sort.Search(len(blocks), func(i int) bool { return blocks[i].Address >= ev.Block.Address })
	if i == 0 || !blocks[i-1].Sealed {
		return nil
	}
	prev := blocks[i-1]
	if _, ok, err := t.Get(prev.Address); err != nil || ok {
		return err
	}
	_, err := t.Record(ev.Reader, prev)
	return err
}

func (t *Tracker) AfterBlockDeleted(address uint64) error {
	return t.Forget(address)
}

func (t *Tracker) BeforeBlockDeleted(pagelog.BlockEvent) error { return nil }
func (t *Tracker) BlockModified(pagelog.BlockEvent) error      { return nil }

// Mismatch describes a block that no longer matches its digest.
type Mismatch struct {
	Address  uint64
	Expected Digest
	Actual   Digest
	Err      error
}

// Report is the result of Verify.
type Report struct {
	Checked    int
	Mismatches []Mismatch
}

// OK reports whether every block matched.
func (r Report) OK() bool { return len(r.Mismatches) == 0 }

// Verify re-hashes every recorded block concurrently. Blocks that cannot be
// read are reported as mismatches with Err set. The error result is reserved
// for failures of the digest store and cancellation.
func (t *Tracker) Verify(ctx context.Context, r blockio.Reader) (Report, error) {
	digests, err := t.All()
	if err != nil {
		return Report{}, err
	}
	var (
		mu  sync.Mutex
		rep = Report{Checked: len(digests)}
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, want := range digests {
		want := want
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			got, err := Sum(r, blockio.Block{Address: want.Address, Length: want.Length})
			if err == nil && got.Sum == want.Sum {
				return nil
			}
			mu.Lock()
			rep.Mismatches = append(rep.Mismatches, Mismatch{Address: want.Address, Expected: want, Actual: got, Err: err})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	sort.Slice(rep.Mismatches, func(i, j int) bool { return rep.Mismatches[i].Address < rep.Mismatches[j].Address })
	if !rep.OK() {
		t.logger.Warn("digest verification failed", logpkg.Int("mismatches", len(rep.Mismatches)), logpkg.Int("checked", rep.Checked))
	}
	return rep, nil
}
