package records

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Source is what a Cursor reads from.
type Source interface {
	io.ReaderAt
	HighAddress() uint64
	LowAddress() uint64
}

// Cursor iterates records from an address up to the log's high address at
// each call to Next. A frame that is not fully visible yet ends iteration
// without an error; calling Next again after the log grows resumes there.
type Cursor struct {
	src  Source
	pos  uint64
	addr uint64
	rec  Record
	err  error
	hdr  [binary.MaxVarintLen64]byte
}

// NewCursor returns a cursor positioned at from, which must be a frame
// boundary.
func NewCursor(src Source, from uint64) *Cursor {
	return &Cursor{src: src, pos: from}
}

// Next advances to the next record.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if low := c.src.LowAddress(); c.pos < low {
		c.err = fmt.Errorf("cursor at %d: position was deleted, log starts at %d", c.pos, low)
		return false
	}
	for {
		high := c.src.HighAddress()
		if c.pos >= high {
			return false
		}
		n := uint64(len(c.hdr))
		if high-c.pos < n {
			n = high - c.pos
		}
		if _, err := c.src.ReadAt(c.hdr[:n], int64(c.pos)); err != nil && err != io.EOF {
			c.err = err
			return false
		}
		blen, vn := binary.Uvarint(c.hdr[:n])
		if vn == 0 {
			// length prefix not fully written yet
			return false
		}
		if vn < 0 {
			c.err = fmt.Errorf("%w: bad length at %d", ErrMalformed, c.pos)
			return false
		}
		if blen == 0 {
			c.pos++
			continue
		}
		if blen > MaxBodySize {
			c.err = fmt.Errorf("%w: length %d at %d", ErrMalformed, blen, c.pos)
			return false
		}
		if blen > high-c.pos-uint64(vn) {
			// body not fully written yet
			return false
		}
		end := c.pos + uint64(vn) + blen
		body := make([]byte, blen)
		if _, err := c.src.ReadAt(body, int64(c.pos)+int64(vn)); err != nil && err != io.EOF {
			c.err = err
			return false
		}
		rec, err := DecodeBody(body)
		if err != nil {
			c.err = fmt.Errorf("record at %d: %w", c.pos, err)
			return false
		}
		c.addr, c.rec, c.pos = c.pos, rec, end
		return true
	}
}

// Key returns the current record's key.
func (c *Cursor) Key() []byte { return c.rec.Key }

// Value returns the current record's value.
func (c *Cursor) Value() []byte { return c.rec.Value }

// Record returns the current record.
func (c *Cursor) Record() Record { return c.rec }

// Address returns the current record's frame address.
func (c *Cursor) Address() uint64 { return c.addr }

// Position returns the address the next call to Next reads from.
func (c *Cursor) Position() uint64 { return c.pos }

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Count returns the number of records visible in src.
func Count(src Source) (int, error) {
	c := NewCursor(src, src.LowAddress())
	n := 0
	for c.Next() {
		n++
	}
	return n, c.Err()
}
