package pagelog

import (
	"sort"

	"github.com/rzbill/pagelog/internal/blockio"
)

// Tip is an immutable snapshot of a log's blocks and high address. Block
// lengths are derived from the next block's address and, for the last
// block, from the high address.
type Tip struct {
	blocks []uint64
	high   uint64
}

func newTip(blocks []blockio.Block) *Tip {
	addrs := make([]uint64, len(blocks))
	for i, b := range blocks {
		addrs[i] = b.Address
	}
	return &Tip{blocks: addrs, high: blockio.End(blocks)}
}

// HighAddress is the first address past the visible bytes.
func (t *Tip) HighAddress() uint64 { return t.high }

// LowAddress is the first visible address, or HighAddress for an empty log.
func (t *Tip) LowAddress() uint64 {
	if len(t.blocks) == 0 {
		return t.high
	}
	return t.blocks[0]
}

// Size is the number of visible bytes.
func (t *Tip) Size() uint64 { return t.high - t.LowAddress() }

// BlockCount returns the number of blocks.
func (t *Tip) BlockCount() int { return len(t.blocks) }

// Contains reports whether address is a visible byte.
func (t *Tip) Contains(address uint64) bool {
	return address >= t.LowAddress() && address < t.high
}

func (t *Tip) block(i int) blockio.Block {
	b := blockio.Block{Address: t.blocks[i], Sealed: i < len(t.blocks)-1}
	if b.Sealed {
		b.Length = t.blocks[i+1] - b.Address
	} else {
		b.Length = t.high - b.Address
	}
	return b
}

// Blocks returns the blocks in address order. All but the last are sealed.
func (t *Tip) Blocks() []blockio.Block {
	out := make([]blockio.Block, len(t.blocks))
	for i := range t.blocks {
		out[i] = t.block(i)
	}
	return out
}

// BlockFor returns the block holding address.
func (t *Tip) BlockFor(address uint64) (blockio.Block, bool) {
	if !t.Contains(address) {
		return blockio.Block{}, false
	}
	i := sort.Search(len(t.blocks), func(i int) bool { return t.blocks[i] > address }) - 1
	return t.block(i), true
}

// last returns the last block's address.
func (t *Tip) last() (uint64, bool) {
	if len(t.blocks) == 0 {
		return 0, false
	}
	return t.blocks[len(t.blocks)-1], true
}

func (t *Tip) withHigh(high uint64) *Tip {
	return &Tip{blocks: t.blocks, high: high}
}

func (t *Tip) withBlock(address uint64) *Tip {
	blocks := make([]uint64, len(t.blocks), len(t.blocks)+1)
	copy(blocks, t.blocks)
	return &Tip{blocks: append(blocks, address), high: t.high}
}

func (t *Tip) withoutFirst() *Tip {
	return &Tip{blocks: t.blocks[1:], high: t.high}
}
