package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/pke/memutils"
)

// BlockHeaderSize is the size in bytes of the header that precedes every block payload in a heap page.
// It matches the four 8-byte words (used, size, next, va) of the header the user runtime expects to
// find below each pointer it receives.
const BlockHeaderSize int = 32

// BlockMetadata manages the blocks carved out of a growth-only set of equally-sized heap pages. Pages
// are added by the consumer as they are mapped, allocations are requested and committed in two steps,
// and allocations are freed by handle.
type BlockMetadata interface {
	// PageSize returns the size in bytes of every page added to the metadata
	PageSize() int
	// MaxAllocationSize is the largest request a single page can serve: the page minus one header
	MaxAllocationSize() int
	// PageCount returns the number of pages added with AddPage
	PageCount() int

	// Validate performs internal consistency checks on the metadata. These checks walk every block
	// and should only be used for diagnostics and tests.
	Validate() error
	// AllocationCount returns the number of blocks currently on the used list
	AllocationCount() int
	// FreeRegionsCount returns the number of blocks on the free list. Adjacent free blocks are not
	// merged, so this can be larger than the number of contiguous free ranges.
	FreeRegionsCount() int
	// SumFreeSize returns the total capacity in bytes of the blocks on the free list
	SumFreeSize() int
	// IsEmpty returns true if the free list has no blocks at all
	IsEmpty() bool

	// AddPage registers a freshly-mapped page at pageAddress and appends a single free block
	// spanning the page (minus its header) to the tail of the free list.
	AddPage(pageAddress uint64) (BlockHandle, error)
	// CreateAllocationRequest walks the free list from its head and selects the first block with
	// enough capacity for size bytes. size must already be rounded to memutils.WordAlignment.
	// It returns false if no block on the free list is large enough.
	CreateAllocationRequest(size int) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest, splitting the selected block if the remainder can hold
	// a header and a payload, and returns the payload address of the new allocation.
	Alloc(request AllocationRequest) (uint64, error)
	// FindAllocation walks the used list from its head and returns the block whose payload range
	// contains address.
	FindAllocation(address uint64) (BlockHandle, error)
	// Free moves an allocated block to the head of the free list. No coalescing is performed.
	Free(handle BlockHandle) error

	// BlockInfo returns a view of a live block record
	BlockInfo(handle BlockHandle) (Block, error)
	// VisitAllBlocks calls the provided callback for every block, free list first and then used list,
	// in list order.
	VisitAllBlocks(visit func(block Block) error) error

	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	AddStatistics(stats *memutils.Statistics)

	// BlockJsonData populates a json object with information about the heap
	BlockJsonData(json *jwriter.ObjectState)
}

// BlockMetadataBase provides the page geometry shared by BlockMetadata implementations.
type BlockMetadataBase struct {
	pageSize  int
	pageCount int
}

func NewBlockMetadata(pageSize int) BlockMetadataBase {
	return BlockMetadataBase{
		pageSize: pageSize,
	}
}

// PageSize returns the size of each heap page in bytes
func (m *BlockMetadataBase) PageSize() int { return m.pageSize }

func (m *BlockMetadataBase) PageCount() int { return m.pageCount }

func (m *BlockMetadataBase) MaxAllocationSize() int { return m.pageSize - BlockHeaderSize }

// BlockJsonData populates a json object with the summary fields common to all heap metadata
func (m *BlockMetadataBase) BlockJsonData(json *jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("PageSize").Int(m.pageSize)
	json.Name("Pages").Int(m.pageCount)
	json.Name("TotalBytes").Int(m.pageSize * m.pageCount)
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
