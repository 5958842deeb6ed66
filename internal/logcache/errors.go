package logcache

import (
	"errors"
	"fmt"

	"github.com/rzbill/pagelog/internal/blockio"
)

var (
	// ErrInvalidOptions reports an unusable cache configuration.
	ErrInvalidOptions = errors.New("invalid cache options")
	// ErrUnaligned reports a page address that is not a multiple of the page size.
	ErrUnaligned = errors.New("page address not aligned")
)

func outOfRange(src PageSource, address uint64) error {
	return &blockio.RangeError{Address: address, Length: uint64(src.PageSize()), High: src.HighAddress()}
}

func invalidOptions(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}
