package logcache

// PageSource is what the cache needs from a log.
type PageSource interface {
	// PageSize is the log's page size in bytes.
	PageSize() int
	// HighAddress is the first address past the log's visible bytes.
	HighAddress() uint64
	// Contains reports whether address is inside the log's live range.
	Contains(address uint64) bool
	// InTail reports whether address lies in the mutable tail.
	InTail(address uint64) bool
	// HighPage returns a copy of the tail page starting at address, truncated
	// to the high address, when address lies in the mutable tail.
	HighPage(address uint64) ([]byte, bool)
	// ReadPage reads the durable page at address. The result is shorter than
	// PageSize only for a final page that is not complete on durable storage.
	ReadPage(address uint64) ([]byte, error)
}

// PageView is a page as returned by GetPageIterable: the valid bytes of the
// page at Address.
type PageView struct {
	Address uint64
	Bytes   []byte
}

// Len returns the number of valid bytes.
func (v PageView) Len() int { return len(v.Bytes) }

// End returns the address after the last valid byte.
func (v PageView) End() uint64 { return v.Address + uint64(len(v.Bytes)) }

// Slice returns the bytes in [from, to) given as log addresses, clamped to the
// view.
func (v PageView) Slice(from, to uint64) []byte {
	if from < v.Address {
		from = v.Address
	}
	if to > v.End() {
		to = v.End()
	}
	if from >= to {
		return nil
	}
	return v.Bytes[from-v.Address : to-v.Address]
}
