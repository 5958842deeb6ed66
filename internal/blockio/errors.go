package blockio

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange reports an address or length outside any durable block.
	ErrOutOfRange = errors.New("address out of range")
	// ErrNoOpenBlock reports an append or seal without a prior Create.
	ErrNoOpenBlock = errors.New("no open block")
	// ErrBlockNotFound reports a missing block.
	ErrBlockNotFound = errors.New("block not found")
	// ErrBlockOpen reports an operation that needs a sealed block.
	ErrBlockOpen = errors.New("block is open")
	// ErrLocked reports that another writer owns the medium.
	ErrLocked = errors.New("medium is locked by another writer")
	// ErrReleased reports use of a writer after Release.
	ErrReleased = errors.New("writer released")
)

// RangeError describes an out-of-range access.
type RangeError struct {
	Address uint64
	Length  uint64
	High    uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("read [%d, %d) outside log range (high %d)", e.Address, e.Address+e.Length, e.High)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// ReadError wraps a failure of the underlying medium.
type ReadError struct {
	Op      string
	Address uint64
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s block %016x: %v", e.Op, e.Address, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
