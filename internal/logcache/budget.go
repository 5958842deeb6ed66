package logcache

import (
	"math"
	"runtime/debug"
)

const (
	// DefaultPageCount sizes a store whose budget resolves to unbounded.
	DefaultPageCount = 8192
	// DefaultGenerationCount is the associativity of non-blocking stores.
	DefaultGenerationCount = 2

	strongEntryOverhead = 80
	softEntryOverhead   = 144
)

// Budget is the memory a page store may use: an absolute byte count or a
// percentage of the memory available to the process.
type Budget struct {
	bytes   uint64
	percent uint8
}

// Bytes returns an absolute budget. Zero means unbounded.
func Bytes(n uint64) Budget { return Budget{bytes: n} }

// Percent returns a budget relative to available memory, resolved once by
// Resolve.
func Percent(p uint8) Budget { return Budget{percent: p} }

// IsPercent reports whether b is relative.
func (b Budget) IsPercent() bool { return b.percent > 0 }

// Resolve returns the budget in bytes. ok is false when the budget is
// unbounded: a zero absolute budget, or a percentage of an unknown total.
func (b Budget) Resolve() (n uint64, ok bool) {
	if !b.IsPercent() {
		return b.bytes, b.bytes > 0
	}
	total, known := ResolveMemory()
	if !known {
		return 0, false
	}
	if total > math.MaxUint64/100 {
		return total / 100 * uint64(b.percent), true
	}
	return total * uint64(b.percent) / 100, true
}

// ResolveMemory returns the memory available to the process: the Go memory
// limit when one is set, else total physical memory.
func ResolveMemory() (uint64, bool) {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		return uint64(limit), true
	}
	return totalMemory()
}

// PageCount returns how many pages of pageSize fit a budget of n bytes.
func PageCount(n uint64, bounded bool, pageSize int, soft bool) int {
	if !bounded {
		return DefaultPageCount
	}
	overhead := uint64(strongEntryOverhead)
	if soft {
		overhead = softEntryOverhead
	}
	count := n / (uint64(pageSize) + overhead)
	switch {
	case count < 1:
		return 1
	case count > math.MaxInt32:
		return math.MaxInt32
	}
	return int(count)
}
