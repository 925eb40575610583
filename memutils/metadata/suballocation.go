package metadata

import "math"

// BlockHandle identifies a block record in a BlockMetadata arena. Handles are never reused while
// the metadata lives.
type BlockHandle uint64

const (
	NoBlock BlockHandle = math.MaxUint64
)

// BlockState records which list a block belongs to. It is the only place membership is recorded;
// the free and used lists are derived bookkeeping that Validate checks against it.
type BlockState uint32

const (
	BlockFree BlockState = iota
	BlockUsed
)

var blockStateMapping = map[BlockState]string{
	BlockFree: "Free",
	BlockUsed: "Used",
}

func (s BlockState) String() string {
	return blockStateMapping[s]
}

// Block is a read-only view of one block record
type Block struct {
	Handle BlockHandle
	State  BlockState
	// Address is the payload virtual address handed to the user. The header sits at
	// Address-BlockHeaderSize.
	Address uint64
	Size    int
	// Page is the index, in mapping order, of the heap page that holds the block
	Page int
}
