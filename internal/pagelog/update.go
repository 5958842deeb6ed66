package pagelog

import (
	"fmt"

	"github.com/rzbill/pagelog/internal/blockio"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

// TryUpdate re-lists the medium and extends a follower's view to the bytes a
// writer has handed to it since. It reports whether the tip changed. Cached
// pages stay valid; pages the medium no longer holds are dropped and
// announced through AfterBlockDeleted, new blocks through BlockCreated. A
// medium shorter than the current tip is a *RegressionError.
//
// Concurrent callers are serialised; readers never wait for it.
func (l *Log) TryUpdate() (bool, error) {
	if l.writer != nil {
		return false, ErrWritable
	}
	if l.closed.Load() {
		return false, ErrClosed
	}
	l.updateMu.Lock()
	defer l.updateMu.Unlock()

	blocks, err := l.reader.ListBlocks()
	if err != nil {
		return false, fmt.Errorf("list blocks: %w", err)
	}
	if err := checkLayout(blocks); err != nil {
		return false, err
	}
	cur := l.tip.Load()
	next := newTip(blocks)
	if next.HighAddress() < cur.HighAddress() {
		l.logger.Error("replication source regressed",
			logpkg.Uint64("known", cur.HighAddress()),
			logpkg.Uint64("found", next.HighAddress()))
		return false, &RegressionError{Known: cur.HighAddress(), Found: next.HighAddress()}
	}
	if next.HighAddress() == cur.HighAddress() && next.LowAddress() == cur.LowAddress() {
		return false, nil
	}

	var removed []blockio.Block
	for i := 0; i < cur.BlockCount() && cur.blocks[i] < next.LowAddress(); i++ {
		removed = append(removed, cur.block(i))
	}
	lastKnown, hadBlocks := cur.last()

	l.tip.Store(next)
	forgetter, _ := l.reader.(blockio.Forgetter)
	for _, b := range removed {
		l.dropPages(b)
		if forgetter == nil {
			continue
		}
		if err := forgetter.Forget(b.Address); err != nil {
			l.logger.Warn("release pruned block", logpkg.Uint64("address", b.Address), logpkg.Err(err))
		}
	}
	l.notify()
	l.logger.Debug("caught up",
		logpkg.Uint64("previous_high", cur.HighAddress()),
		logpkg.Uint64("high", next.HighAddress()),
		logpkg.Int("pruned", len(removed)))

	for _, b := range removed {
		if err := l.fire(EventAfterBlockDeleted, b); err != nil {
			return true, err
		}
	}
	for i := range next.blocks {
		if hadBlocks && next.blocks[i] <= lastKnown {
			continue
		}
		if err := l.fire(EventBlockCreated, next.block(i)); err != nil {
			return true, err
		}
	}
	return true, nil
}
