package pagelog

import (
	"fmt"

	"github.com/rzbill/pagelog/internal/blockio"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

// Append adds p to the log and returns the address of its first byte. Bytes
// stay in the tail page until the next page starts or Sync runs. Listener
// events caused by the append are delivered after all of p is visible; a
// listener error is returned with the append already applied.
func (l *Log) Append(p []byte) (uint64, error) {
	if l.writer == nil {
		return 0, ErrReadOnly
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.closed.Load() {
		return 0, ErrClosed
	}

	start := l.tip.Load().HighAddress()
	if len(p) == 0 {
		return start, nil
	}
	if !l.open {
		if err := l.createBlock(start); err != nil {
			return start, err
		}
	}
	for len(p) > 0 {
		if len(l.tail) == l.pageSize {
			if err := l.rollPage(); err != nil {
				return start, err
			}
		}
		n := l.pageSize - len(l.tail)
		if n > len(p) {
			n = len(p)
		}
		l.tailMu.Lock()
		l.tail = append(l.tail, p[:n]...)
		l.tailMu.Unlock()
		p = p[n:]

		tip := l.tip.Load()
		l.tip.Store(tip.withHigh(tip.HighAddress() + uint64(n)))
	}
	l.notify()
	return start, l.firePending()
}

// Sync hands the tail's pending bytes to the medium and flushes it.
func (l *Log) Sync() error {
	if l.writer == nil {
		return ErrReadOnly
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.closed.Load() {
		return ErrClosed
	}
	if err := l.handOff(); err != nil {
		return err
	}
	if err := l.writer.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return l.firePending()
}

// createBlock starts a block at address and makes it the tail's block.
func (l *Log) createBlock(address uint64) error {
	if err := l.writer.Create(address); err != nil {
		return fmt.Errorf("create block %016x: %w", address, err)
	}
	l.open = true
	l.tip.Store(l.tip.Load().withBlock(address))
	l.tailMu.Lock()
	l.tailAddr, l.tail, l.flushed = address, make([]byte, 0, l.pageSize), 0
	l.tailMu.Unlock()
	l.logger.Debug("block created", logpkg.Uint64("address", address))
	l.queue(EventBlockCreated, blockio.Block{Address: address})
	return nil
}

// rollPage hands the full tail page to the medium and starts the next page,
// rotating to a new block at a block boundary. The medium holds the page
// before the tail moves, so readers always find it in one place or the
// other.
func (l *Log) rollPage() error {
	if err := l.handOff(); err != nil {
		return err
	}
	next := l.tailAddr + uint64(l.pageSize)
	blockStart, _ := l.tip.Load().last()
	if next == blockStart+l.fileSize {
		if err := l.writer.Seal(); err != nil {
			return fmt.Errorf("seal block %016x: %w", blockStart, err)
		}
		l.open = false
		return l.createBlock(next)
	}
	l.tailMu.Lock()
	l.tailAddr, l.tail, l.flushed = next, l.tail[:0], 0
	l.tailMu.Unlock()
	return nil
}

// handOff appends the tail bytes the medium has not seen yet.
func (l *Log) handOff() error {
	if !l.open || l.flushed == len(l.tail) {
		return nil
	}
	if err := l.writer.Append(l.tail[l.flushed:]); err != nil {
		return fmt.Errorf("append to block: %w", err)
	}
	l.flushed = len(l.tail)
	blockStart, _ := l.tip.Load().last()
	l.queue(EventBlockModified, blockio.Block{
		Address: blockStart,
		Length:  l.tailAddr + uint64(l.flushed) - blockStart,
	})
	return nil
}

// queue records an event for delivery once the writer's state is
// consistent. Consecutive modifications of one block collapse into one.
func (l *Log) queue(ev Event, b blockio.Block) {
	if n := len(l.pending); n > 0 && ev == EventBlockModified {
		last := &l.pending[n-1]
		if last.ev == EventBlockModified && last.block.Address == b.Address {
			last.block = b
			return
		}
	}
	l.pending = append(l.pending, pendingEvent{ev: ev, block: b})
}

// firePending delivers queued events in order. Undelivered events are
// dropped when a listener fails.
func (l *Log) firePending() error {
	events := l.pending
	l.pending = nil
	for _, pe := range events {
		if err := l.fire(pe.ev, pe.block); err != nil {
			return err
		}
	}
	return nil
}
