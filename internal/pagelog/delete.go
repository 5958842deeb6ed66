package pagelog

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/pagelog/internal/blockio"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

// DeleteBlock removes the oldest block. BeforeBlockDeleted runs while the
// block is readable and may veto; the block then leaves the tip, its cached
// pages are dropped, the medium removes it and AfterBlockDeleted runs.
func (l *Log) DeleteBlock(address uint64) error {
	if l.writer == nil {
		return ErrReadOnly
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.closed.Load() {
		return ErrClosed
	}
	return l.deleteOldest(address)
}

func (l *Log) deleteOldest(address uint64) error {
	tip := l.tip.Load()
	if tip.BlockCount() == 0 {
		return blockio.ErrBlockNotFound
	}
	first := tip.block(0)
	if first.Address != address {
		if _, ok := tip.BlockFor(address); ok {
			return ErrNotOldest
		}
		return blockio.ErrBlockNotFound
	}
	if !first.Sealed {
		return blockio.ErrBlockOpen
	}

	if err := l.fire(EventBeforeBlockDeleted, first); err != nil {
		return err
	}
	l.tip.Store(tip.withoutFirst())
	l.dropPages(first)
	if err := l.writer.Remove(address); err != nil {
		return fmt.Errorf("remove block %016x: %w", address, err)
	}
	l.logger.Info("block deleted",
		logpkg.Uint64("address", address),
		logpkg.Uint64("length", first.Length))
	return l.fire(EventAfterBlockDeleted, first)
}

// dropPages removes every cached page of b.
func (l *Log) dropPages(b blockio.Block) {
	for a := l.pageStart(b.Address); a < b.End(); a += uint64(l.pageSize) {
		l.cache.RemovePage(l, a)
	}
}

// DeleteBlocksBefore deletes the oldest blocks that end at or before
// address. The open block is never deleted. It returns how many blocks were
// removed.
func (l *Log) DeleteBlocksBefore(address uint64) (int, error) {
	if l.writer == nil {
		return 0, ErrReadOnly
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.closed.Load() {
		return 0, ErrClosed
	}
	deleted := 0
	for {
		tip := l.tip.Load()
		if tip.BlockCount() < 2 {
			return deleted, nil
		}
		first := tip.block(0)
		if first.End() > address {
			return deleted, nil
		}
		if err := l.deleteOldest(first.Address); err != nil {
			return deleted, err
		}
		deleted++
	}
}

// TrimToMaxBytes deletes the oldest sealed blocks until the visible size is
// at most maxBytes or only the open block remains. A positive throttle pauses
// between deletions. It returns the number of deleted blocks.
func (l *Log) TrimToMaxBytes(ctx context.Context, maxBytes uint64, throttle time.Duration) (int, error) {
	if l.writer == nil {
		return 0, ErrReadOnly
	}
	deleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		l.writeMu.Lock()
		if l.closed.Load() {
			l.writeMu.Unlock()
			return deleted, ErrClosed
		}
		tip := l.tip.Load()
		if tip.Size() <= maxBytes || tip.BlockCount() < 2 {
			l.writeMu.Unlock()
			return deleted, nil
		}
		err := l.deleteOldest(tip.LowAddress())
		l.writeMu.Unlock()
		if err != nil {
			return deleted, err
		}
		deleted++
		if throttle > 0 {
			select {
			case <-ctx.Done():
				return deleted, ctx.Err()
			case <-time.After(throttle):
			}
		}
	}
}
