package records

import (
	"fmt"
	"io"
)

// Log is the part of a pagelog.Log records need.
type Log interface {
	io.ReaderAt
	Append(p []byte) (uint64, error)
	HighAddress() uint64
	LowAddress() uint64
	FileSize() uint64
}

// Writer appends records to a log. It is not safe for concurrent use.
type Writer struct {
	log Log
}

// NewWriter returns a Writer for log.
func NewWriter(log Log) *Writer { return &Writer{log: log} }

// Append writes one record and returns its frame address.
func (w *Writer) Append(key, value []byte) (uint64, error) {
	if size := len(key) + len(value) + 4 + 10; size > MaxBodySize {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return w.appendFrame(EncodeFrame(key, value))
}

// AppendBatch writes records in order and returns their frame addresses.
func (w *Writer) AppendBatch(recs []Record) ([]uint64, error) {
	addrs := make([]uint64, 0, len(recs))
	for _, r := range recs {
		a, err := w.Append(r.Key, r.Value)
		if err != nil {
			return addrs, err
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func (w *Writer) appendFrame(frame []byte) (uint64, error) {
	fileSize := w.log.FileSize()
	high := w.log.HighAddress()
	if rest := fileSize - high%fileSize; uint64(len(frame)) <= fileSize && uint64(len(frame)) > rest {
		if _, err := w.log.Append(make([]byte, rest)); err != nil {
			return 0, fmt.Errorf("pad block at %d: %w", high, err)
		}
	}
	addr, err := w.log.Append(frame)
	if err != nil {
		return addr, fmt.Errorf("append record: %w", err)
	}
	return addr, nil
}
