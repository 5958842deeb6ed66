package blockio

import "io"

// Block describes one rotation unit of the log.
type Block struct {
	Address uint64
	Length  uint64
	Sealed  bool
}

// End returns the address of the first byte after the block.
func (b Block) End() uint64 { return b.Address + b.Length }

// Contains reports whether address falls inside the block's bytes.
func (b Block) Contains(address uint64) bool {
	return address >= b.Address && address < b.End()
}

// Reader enumerates and reads blocks. Implementations must be safe for
// concurrent use.
type Reader interface {
	// ListBlocks returns all blocks ordered by address.
	ListBlocks() ([]Block, error)
	// ReadBlock reads len(p) bytes starting at offset within the block at
	// address. Reading past the block's durable end fails with ErrOutOfRange.
	ReadBlock(address, offset uint64, p []byte) (int, error)
}

// Writer appends to the open block. A Writer is used by a single goroutine.
type Writer interface {
	// Create starts a new open block at address.
	Create(address uint64) error
	// Resume reopens the existing block at address for appending. Only the
	// last block of the medium may be resumed.
	Resume(address uint64) error
	// Append appends p to the open block.
	Append(p []byte) error
	// Sync forces appended bytes to the durable medium.
	Sync() error
	// Seal finalizes the open block; no block is open afterwards.
	Seal() error
	// Remove physically deletes a sealed block.
	Remove(address uint64) error
	// Release gives up the writer's exclusive ownership of the medium.
	Release() error
}

// Forgetter is implemented by readers that cache per-block resources. A
// follower calls Forget for blocks it learns were removed by the writer.
type Forgetter interface {
	Forget(address uint64) error
}

// Medium is a store that hands out readers and writers over the same blocks.
type Medium interface {
	Reader() Reader
	Writer() (Writer, error)
	Close() error
}

// Total sums block lengths.
func Total(blocks []Block) uint64 {
	var n uint64
	for _, b := range blocks {
		n += b.Length
	}
	return n
}

// End returns the address after the last block, or 0 when there are none.
func End(blocks []Block) uint64 {
	if len(blocks) == 0 {
		return 0
	}
	return blocks[len(blocks)-1].End()
}

type blockReaderAt struct {
	r       Reader
	address uint64
}

func (b blockReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return b.r.ReadBlock(b.address, uint64(off), p)
}

// NewSectionReader streams the bytes of b from r.
func NewSectionReader(r Reader, b Block) *io.SectionReader {
	return io.NewSectionReader(blockReaderAt{r: r, address: b.Address}, 0, int64(b.Length))
}
