package metadata

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/pke/memutils"
	"golang.org/x/exp/slices"
)

type firstFitBlock struct {
	handle  BlockHandle
	state   BlockState
	address uint64
	size    int
	page    int
}

func (b *firstFitBlock) view() Block {
	return Block{
		Handle:  b.handle,
		State:   b.state,
		Address: b.address,
		Size:    b.size,
		Page:    b.page,
	}
}

// headerAddress is the first byte of the header that precedes the payload
func (b *firstFitBlock) headerAddress() uint64 {
	return b.address - uint64(BlockHeaderSize)
}

func (b *firstFitBlock) endAddress() uint64 {
	return b.address + uint64(b.size)
}

// FirstFitMetadata is a BlockMetadata that serves requests from the first free block large enough to
// hold them. Blocks live in an arena keyed by handle; the free and used lists are ordered slices of
// handles with the list head at index 0. Freed blocks are pushed onto the free list head and are never
// merged with their neighbors.
type FirstFitMetadata struct {
	BlockMetadataBase

	nextHandle BlockHandle
	blocks     *swiss.Map[BlockHandle, *firstFitBlock]
	pages      []uint64

	freeList []BlockHandle
	usedList []BlockHandle

	sumFreeSize int
	sumUsedSize int
}

var _ BlockMetadata = &FirstFitMetadata{}

func NewFirstFitMetadata(pageSize int) *FirstFitMetadata {
	memutils.DebugCheckPow2(pageSize, "pageSize")

	return &FirstFitMetadata{
		BlockMetadataBase: NewBlockMetadata(pageSize),
		blocks:            swiss.NewMap[BlockHandle, *firstFitBlock](42),
	}
}

func (m *FirstFitMetadata) allocateBlock() *firstFitBlock {
	b := &firstFitBlock{handle: m.nextHandle}
	m.nextHandle++
	m.blocks.Put(b.handle, b)
	return b
}

func (m *FirstFitMetadata) getBlock(handle BlockHandle) (*firstFitBlock, error) {
	block, ok := m.blocks.Get(handle)
	if !ok {
		return nil, errors.Newf("received handle %d that was incompatible with this metadata", handle)
	}
	return block, nil
}

func (m *FirstFitMetadata) AllocationCount() int {
	return len(m.usedList)
}

func (m *FirstFitMetadata) FreeRegionsCount() int {
	return len(m.freeList)
}

func (m *FirstFitMetadata) SumFreeSize() int {
	return m.sumFreeSize
}

func (m *FirstFitMetadata) IsEmpty() bool {
	return len(m.freeList) == 0
}

func (m *FirstFitMetadata) AddPage(pageAddress uint64) (BlockHandle, error) {
	err := memutils.CheckAligned(pageAddress, uint64(m.pageSize), "pageAddress")
	if err != nil {
		return NoBlock, err
	}
	if slices.Contains(m.pages, pageAddress) {
		return NoBlock, errors.Newf("page at %#x was already added to the heap", pageAddress)
	}

	page := len(m.pages)
	m.pages = append(m.pages, pageAddress)
	m.pageCount++

	block := m.allocateBlock()
	block.state = BlockFree
	block.address = pageAddress + uint64(BlockHeaderSize)
	block.size = m.MaxAllocationSize()
	block.page = page

	m.freeList = append(m.freeList, block.handle)
	m.sumFreeSize += block.size

	memutils.DebugValidate(m)
	return block.handle, nil
}

func (m *FirstFitMetadata) CreateAllocationRequest(size int) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if size < 1 {
		return false, allocRequest, errors.Errorf("invalid allocation size: %d", size)
	}
	err := memutils.CheckAligned(size, int(memutils.WordAlignment), "size")
	if err != nil {
		return false, allocRequest, err
	}
	if size > m.MaxAllocationSize() {
		return false, allocRequest, errors.Errorf("allocation size %d is larger than the %d bytes a single page can hold", size, m.MaxAllocationSize())
	}

	for index, handle := range m.freeList {
		block, err := m.getBlock(handle)
		if err != nil {
			return false, allocRequest, err
		}

		if block.size >= size {
			allocRequest.BlockHandle = handle
			allocRequest.Size = size
			allocRequest.FreeListIndex = index
			return true, allocRequest, nil
		}
	}

	return false, allocRequest, nil
}

func (m *FirstFitMetadata) Alloc(req AllocationRequest) (uint64, error) {
	block, err := m.getBlock(req.BlockHandle)
	if err != nil {
		return 0, err
	}

	if block.state != BlockFree {
		return 0, errors.Newf("block %d selected by the allocation request is not free", req.BlockHandle)
	}

	index := req.FreeListIndex
	if index < 0 || index >= len(m.freeList) || m.freeList[index] != req.BlockHandle {
		return 0, errors.New("allocation request does not match the current free list")
	}

	if block.size < req.Size {
		return 0, errors.Newf("block %d has %d bytes, too small for a request of %d bytes", req.BlockHandle, block.size, req.Size)
	}

	m.sumFreeSize -= block.size

	if block.size-req.Size > BlockHeaderSize {
		// The remainder gets its own header directly after the new allocation's payload
		remainder := m.allocateBlock()
		remainder.state = BlockFree
		remainder.address = block.address + uint64(req.Size) + uint64(BlockHeaderSize)
		remainder.size = block.size - req.Size - BlockHeaderSize
		remainder.page = block.page

		m.freeList[index] = remainder.handle
		m.sumFreeSize += remainder.size
	} else {
		m.freeList = slices.Delete(m.freeList, index, index+1)
	}

	block.size = req.Size
	block.state = BlockUsed
	m.usedList = slices.Insert(m.usedList, 0, block.handle)
	m.sumUsedSize += block.size

	memutils.DebugValidate(m)
	return block.address, nil
}

func (m *FirstFitMetadata) FindAllocation(address uint64) (BlockHandle, error) {
	for _, handle := range m.usedList {
		block, err := m.getBlock(handle)
		if err != nil {
			return NoBlock, err
		}

		if address >= block.address && address <= block.endAddress() {
			return handle, nil
		}
	}

	return NoBlock, errors.Newf("no allocation contains address %#x", address)
}

func (m *FirstFitMetadata) Free(handle BlockHandle) error {
	block, err := m.getBlock(handle)
	if err != nil {
		return err
	}

	if block.state != BlockUsed {
		return errors.New("block is already free")
	}

	index := slices.Index(m.usedList, handle)
	if index < 0 {
		return errors.Newf("block %d is marked used but is not in the used list", handle)
	}

	m.usedList = slices.Delete(m.usedList, index, index+1)
	m.sumUsedSize -= block.size

	block.state = BlockFree
	m.freeList = slices.Insert(m.freeList, 0, handle)
	m.sumFreeSize += block.size

	memutils.DebugValidate(m)
	return nil
}

func (m *FirstFitMetadata) BlockInfo(handle BlockHandle) (Block, error) {
	block, err := m.getBlock(handle)
	if err != nil {
		return Block{}, err
	}

	return block.view(), nil
}

func (m *FirstFitMetadata) validateList(list []BlockHandle, state BlockState, seen map[BlockHandle]struct{}) (int, error) {
	var sum int

	for _, handle := range list {
		block, err := m.getBlock(handle)
		if err != nil {
			return 0, err
		}

		if _, duplicate := seen[handle]; duplicate {
			return 0, errors.Errorf("block %d is reachable from more than one list position", handle)
		}
		seen[handle] = struct{}{}

		if block.state != state {
			return 0, errors.Errorf("block at %#x is in the %s list but is marked %s", block.address, state, block.state)
		}

		if block.size%int(memutils.WordAlignment) != 0 {
			return 0, errors.Errorf("block at %#x has size %d, which is not a multiple of %d", block.address, block.size, memutils.WordAlignment)
		}

		if block.size > m.MaxAllocationSize() {
			return 0, errors.Errorf("block at %#x has size %d, larger than a page can hold", block.address, block.size)
		}

		if block.page < 0 || block.page >= len(m.pages) {
			return 0, errors.Errorf("block at %#x belongs to unknown page %d", block.address, block.page)
		}

		pageStart := m.pages[block.page]
		if block.headerAddress() < pageStart || block.endAddress() > pageStart+uint64(m.pageSize) {
			return 0, errors.Errorf("block at %#x with size %d does not fit inside its page at %#x", block.address, block.size, pageStart)
		}

		sum += block.size
	}

	return sum, nil
}

func (m *FirstFitMetadata) Validate() error {
	if m.pageCount != len(m.pages) {
		return errors.Errorf("the metadata has %d pages recorded but a page count of %d", len(m.pages), m.pageCount)
	}

	seen := make(map[BlockHandle]struct{}, m.blocks.Count())

	freeSize, err := m.validateList(m.freeList, BlockFree, seen)
	if err != nil {
		return err
	}

	usedSize, err := m.validateList(m.usedList, BlockUsed, seen)
	if err != nil {
		return err
	}

	if len(seen) != m.blocks.Count() {
		return errors.Errorf("the arena holds %d blocks but only %d are reachable from the free and used lists", m.blocks.Count(), len(seen))
	}

	if freeSize != m.sumFreeSize {
		return errors.Errorf("the free size of the metadata is %d, but the free blocks only added up to %d", m.sumFreeSize, freeSize)
	}

	if usedSize != m.sumUsedSize {
		return errors.Errorf("the used size of the metadata is %d, but the used blocks only added up to %d", m.sumUsedSize, usedSize)
	}

	// No two blocks, headers included, may overlap
	starts := make([]uint64, 0, len(seen))
	ends := make(map[uint64]uint64, len(seen))
	m.blocks.Iter(func(_ BlockHandle, block *firstFitBlock) bool {
		starts = append(starts, block.headerAddress())
		ends[block.headerAddress()] = block.endAddress()
		return false
	})

	if len(ends) != len(starts) {
		return errors.New("two blocks share the same header address")
	}

	slices.Sort(starts)
	for i := 1; i < len(starts); i++ {
		if ends[starts[i-1]] > starts[i] {
			return errors.Errorf("block with header at %#x overlaps the block with header at %#x", starts[i-1], starts[i])
		}
	}

	return nil
}

func (m *FirstFitMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.PageCount += m.pageCount
	stats.PageBytes += m.pageCount * m.pageSize
	stats.AllocationCount += len(m.usedList)
	stats.AllocationBytes += m.sumUsedSize
}

// PageStatistics returns one DetailedStatistics per heap page, in mapping order
func (m *FirstFitMetadata) PageStatistics() []memutils.DetailedStatistics {
	pageStats := make([]memutils.DetailedStatistics, len(m.pages))
	for i := range pageStats {
		pageStats[i].Clear()
		pageStats[i].PageCount = 1
		pageStats[i].PageBytes = m.pageSize
	}

	_ = m.VisitAllBlocks(func(block Block) error {
		page := &pageStats[block.Page]
		page.HeaderBytes += BlockHeaderSize

		if block.State == BlockFree {
			page.AddUnusedRange(block.Size)
		} else {
			page.AddAllocation(block.Size)
		}
		return nil
	})

	return pageStats
}

func (m *FirstFitMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	pageStats := m.PageStatistics()
	for i := range pageStats {
		stats.AddDetailedStatistics(&pageStats[i])
	}
}

func (m *FirstFitMetadata) VisitAllBlocks(visit func(block Block) error) error {
	for _, list := range [][]BlockHandle{m.freeList, m.usedList} {
		for _, handle := range list {
			block, err := m.getBlock(handle)
			if err != nil {
				return err
			}

			err = visit(block.view())
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *FirstFitMetadata) BlockJsonData(json *jwriter.ObjectState) {
	m.BlockMetadataBase.BlockJsonData(json, m.sumFreeSize, len(m.usedList), len(m.freeList))

	pages := json.Name("PageAddresses").Array()
	for _, page := range m.pages {
		pages.String(fmt.Sprintf("%#x", page))
	}
	pages.End()

	blocks := json.Name("Blocks").Array()
	defer blocks.End()

	_ = m.VisitAllBlocks(func(block Block) error {
		obj := blocks.Object()
		defer obj.End()

		obj.Name("Address").String(fmt.Sprintf("%#x", block.Address))
		obj.Name("Type").String(block.State.String())
		obj.Name("Size").Int(block.Size)
		obj.Name("Page").Int(block.Page)
		return nil
	})
}
