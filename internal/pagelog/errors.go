package pagelog

import (
	"errors"
	"fmt"
)

var (
	// ErrReadOnly reports a write or delete on a log opened without a writer.
	ErrReadOnly = errors.New("log is read-only")
	// ErrWritable reports TryUpdate on a log that owns the writer.
	ErrWritable = errors.New("log owns the writer")
	// ErrClosed reports use of a closed log.
	ErrClosed = errors.New("log is closed")
	// ErrNotOldest reports deletion of a block that is not the first one.
	ErrNotOldest = errors.New("only the oldest block can be deleted")
	// ErrCorrupt reports a block listing with gaps or overlaps.
	ErrCorrupt = errors.New("block layout is not contiguous")
	// ErrReplicationRegression reports a medium that became shorter than a
	// follower's tip.
	ErrReplicationRegression = errors.New("replication source regressed")
)

// RegressionError carries the follower's known high address and the shorter
// one found on the medium.
type RegressionError struct {
	Known uint64
	Found uint64
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("replication source regressed: high address %d, previously %d", e.Found, e.Known)
}

func (e *RegressionError) Unwrap() error { return ErrReplicationRegression }

// ListenerError wraps the first error returned by a BlockListener.
type ListenerError struct {
	Event   Event
	Address uint64
	Err     error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("block listener %s(%016x): %v", e.Event, e.Address, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }
