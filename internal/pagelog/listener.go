package pagelog

import (
	"github.com/rzbill/pagelog/internal/blockio"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

// Event names a block lifecycle callback.
type Event string

const (
	EventBlockCreated       Event = "BlockCreated"
	EventBeforeBlockDeleted Event = "BeforeBlockDeleted"
	EventAfterBlockDeleted  Event = "AfterBlockDeleted"
	EventBlockModified      Event = "BlockModified"
)

// BlockEvent describes the block a callback is about. Reader can read the
// block's bytes for as long as the block exists.
type BlockEvent struct {
	Log    *Log
	Block  blockio.Block
	Reader blockio.Reader
}

// ReadAll reads the whole block.
func (e BlockEvent) ReadAll() ([]byte, error) {
	p := make([]byte, e.Block.Length)
	if len(p) == 0 {
		return p, nil
	}
	if _, err := e.Reader.ReadBlock(e.Block.Address, 0, p); err != nil {
		return nil, err
	}
	return p, nil
}

// BlockListener observes block lifecycle events. Callbacks run on the
// goroutine performing the triggering operation.
type BlockListener interface {
	// BlockCreated fires when a new block becomes the append target, or, on a
	// follower, when TryUpdate discovers it. The previous block is sealed.
	BlockCreated(ev BlockEvent) error
	// BeforeBlockDeleted fires while the block is still readable. An error
	// aborts the deletion.
	BeforeBlockDeleted(ev BlockEvent) error
	// AfterBlockDeleted fires once the block is gone and no cached page of
	// it can be served.
	AfterBlockDeleted(address uint64) error
	// BlockModified fires when bytes are handed to an open block.
	BlockModified(ev BlockEvent) error
}

// ListenerFuncs adapts optional functions to BlockListener. Use it by
// pointer so it can be removed again.
type ListenerFuncs struct {
	OnCreated       func(BlockEvent) error
	OnBeforeDeleted func(BlockEvent) error
	OnAfterDeleted  func(uint64) error
	OnModified      func(BlockEvent) error
}

func (f *ListenerFuncs) BlockCreated(ev BlockEvent) error {
	if f.OnCreated == nil {
		return nil
	}
	return f.OnCreated(ev)
}

func (f *ListenerFuncs) BeforeBlockDeleted(ev BlockEvent) error {
	if f.OnBeforeDeleted == nil {
		return nil
	}
	return f.OnBeforeDeleted(ev)
}

func (f *ListenerFuncs) AfterBlockDeleted(address uint64) error {
	if f.OnAfterDeleted == nil {
		return nil
	}
	return f.OnAfterDeleted(address)
}

func (f *ListenerFuncs) BlockModified(ev BlockEvent) error {
	if f.OnModified == nil {
		return nil
	}
	return f.OnModified(ev)
}

// LoggingListener logs every lifecycle event.
type LoggingListener struct {
	Logger logpkg.Logger
}

// NewLoggingListener returns a listener logging through logger.
func NewLoggingListener(logger logpkg.Logger) *LoggingListener {
	return &LoggingListener{Logger: logpkg.OrNop(logger).WithComponent("blocks")}
}

func blockFields(b blockio.Block) []logpkg.Field {
	return []logpkg.Field{
		logpkg.Uint64("address", b.Address),
		logpkg.Uint64("length", b.Length),
		logpkg.Bool("sealed", b.Sealed),
	}
}

func (l *LoggingListener) BlockCreated(ev BlockEvent) error {
	l.Logger.Info("block created", blockFields(ev.Block)...)
	return nil
}

func (l *LoggingListener) BeforeBlockDeleted(ev BlockEvent) error {
	l.Logger.Info("deleting block", blockFields(ev.Block)...)
	return nil
}

func (l *LoggingListener) AfterBlockDeleted(address uint64) error {
	l.Logger.Info("block deleted", logpkg.Uint64("address", address))
	return nil
}

func (l *LoggingListener) BlockModified(ev BlockEvent) error {
	l.Logger.Debug("block modified", blockFields(ev.Block)...)
	return nil
}

// AddBlockListener registers ls after the existing listeners.
func (l *Log) AddBlockListener(ls BlockListener) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	next := make([]BlockListener, len(l.listeners), len(l.listeners)+1)
	copy(next, l.listeners)
	l.listeners = append(next, ls)
}

// RemoveBlockListener unregisters ls. It reports whether ls was registered.
func (l *Log) RemoveBlockListener(ls BlockListener) bool {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	for i, cur := range l.listeners {
		if cur == ls {
			next := make([]BlockListener, 0, len(l.listeners)-1)
			next = append(next, l.listeners[:i]...)
			l.listeners = append(next, l.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Log) snapshotListeners() []BlockListener {
	l.listenersMu.RLock()
	defer l.listenersMu.RUnlock()
	return l.listeners
}

func (l *Log) event(b blockio.Block) BlockEvent {
	return BlockEvent{Log: l, Block: b, Reader: l.reader}
}

// fire delivers one event to every listener, stopping at the first error.
func (l *Log) fire(ev Event, b blockio.Block) error {
	for _, ls := range l.snapshotListeners() {
		var err error
		switch ev {
		case EventBlockCreated:
			err = ls.BlockCreated(l.event(b))
		case EventBeforeBlockDeleted:
			err = ls.BeforeBlockDeleted(l.event(b))
		case EventAfterBlockDeleted:
			err = ls.AfterBlockDeleted(b.Address)
		case EventBlockModified:
			err = ls.BlockModified(l.event(b))
		}
		if err != nil {
			l.logger.Warn("block listener failed",
				logpkg.Str("event", string(ev)),
				logpkg.Uint64("address", b.Address),
				logpkg.Err(err))
			return &ListenerError{Event: ev, Address: b.Address, Err: err}
		}
	}
	return nil
}
