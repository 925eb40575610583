package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/pke/heap/internal/utils"
	"github.com/vkngwrapper/pke/memutils"
	"github.com/vkngwrapper/pke/memutils/metadata"
	"github.com/vkngwrapper/pke/vm"
	"golang.org/x/exp/slog"
)

var (
	// ErrInvalidSize is returned from Allocate for requests of zero or negative size
	ErrInvalidSize = errors.New("allocation size must be positive")
	// ErrOversizedRequest is returned from Allocate when a request does not fit in a single page
	ErrOversizedRequest = errors.New("allocation size must be smaller than a page")
	// ErrInvalidFree is returned from Release when no live allocation contains the address. This covers
	// both pointers that were never returned by Allocate and double frees.
	ErrInvalidFree = errors.New("address does not belong to a live allocation")
)

// Allocator is the user heap of a single process. It maps pages at a growth-only cursor and carves
// them into blocks with first-fit placement. Pages are never unmapped and freed blocks are never
// merged.
type Allocator struct {
	mutex        utils.OptionalMutex
	logger       *slog.Logger
	pages        PageProvider
	addressSpace AddressSpace

	createFlags     CreateFlags
	pageSize        int
	protection      vm.Protection
	heapBase        uint64
	nextPageAddress uint64

	metadata metadata.BlockMetadata
}

// PageSize is the size of every page mapped by the heap
func (a *Allocator) PageSize() int { return a.pageSize }

// MaxAllocationSize is the largest request Allocate will accept
func (a *Allocator) MaxAllocationSize() int { return a.metadata.MaxAllocationSize() }

// HeapBase is the virtual address of the first heap page
func (a *Allocator) HeapBase() uint64 { return a.heapBase }

// NextPageAddress is the virtual address the next heap page will be mapped at
func (a *Allocator) NextPageAddress() uint64 {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.nextPageAddress
}

// growHeap requests one physical page, maps it at the heap cursor and adds it to the tail of the
// free list.
func (a *Allocator) growHeap() error {
	pa, err := a.pages.AllocPage()
	if err != nil {
		return errors.Wrap(err, "could not obtain a page for the user heap")
	}

	va := a.nextPageAddress
	err = a.addressSpace.Map(va, a.pageSize, pa, a.protection)
	if err != nil {
		return errors.Wrapf(err, "could not map heap page %#x", va)
	}
	a.nextPageAddress += uint64(a.pageSize)

	_, err = a.metadata.AddPage(va)
	if err != nil {
		return err
	}

	a.logger.Debug("    Mapped heap page", slog.String("VirtualAddress", hex(va)), slog.String("PhysicalAddress", hex(pa)))
	return nil
}

// Allocate reserves size bytes of user heap and returns the virtual address of the payload. size is
// rounded up to a multiple of 8 and must fit in one page after the block header.
func (a *Allocator) Allocate(size int) (uint64, error) {
	a.logger.Debug("Allocator::Allocate", slog.Int("Size", size))

	if size < 1 {
		return 0, errors.Wrapf(ErrInvalidSize, "requested %d bytes", size)
	}

	// Reject before rounding so sizes near the top of int cannot wrap
	if size > a.metadata.MaxAllocationSize() {
		return 0, errors.Wrapf(ErrOversizedRequest, "requested %d bytes, but a page can hold at most %d", size, a.metadata.MaxAllocationSize())
	}

	size = memutils.AlignUp(size, memutils.WordAlignment)
	if size > a.metadata.MaxAllocationSize() {
		return 0, errors.Wrapf(ErrOversizedRequest, "requested %d bytes, but a page can hold at most %d", size, a.metadata.MaxAllocationSize())
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.metadata.IsEmpty() {
		err := a.growHeap()
		if err != nil {
			return 0, err
		}
	}

	success, request, err := a.metadata.CreateAllocationRequest(size)
	if err != nil {
		return 0, err
	}

	if !success {
		// Nothing on the free list fits, so the new page becomes the free list tail
		err = a.growHeap()
		if err != nil {
			return 0, err
		}

		success, request, err = a.metadata.CreateAllocationRequest(size)
		if err != nil {
			return 0, err
		}
		if !success {
			return 0, errors.Newf("a fresh heap page could not serve a request of %d bytes", size)
		}
	}

	address, err := a.metadata.Alloc(request)
	if err != nil {
		return 0, err
	}

	a.logger.Debug("    Allocated heap block", slog.String("Address", hex(address)), slog.Int("Size", size))
	return address, nil
}

// Release returns the allocation containing address to the free list
func (a *Allocator) Release(address uint64) error {
	a.logger.Debug("Allocator::Release", slog.String("Address", hex(address)))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	handle, err := a.metadata.FindAllocation(address)
	if err != nil {
		return errors.Wrapf(ErrInvalidFree, "could not free %#x: %v", address, err)
	}

	return a.metadata.Free(handle)
}

// AllocationSize returns the recorded size of the live allocation containing address
func (a *Allocator) AllocationSize(address uint64) (int, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	handle, err := a.metadata.FindAllocation(address)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidFree, "%#x: %v", address, err)
	}

	block, err := a.metadata.BlockInfo(handle)
	if err != nil {
		return 0, err
	}

	return block.Size, nil
}

// Validate runs the consistency checks of the underlying block metadata
func (a *Allocator) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.metadata.Validate()
}

// Statistics adds the page and allocation totals of the heap to stats
func (a *Allocator) Statistics(stats *memutils.Statistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.metadata.AddStatistics(stats)
}

// CalculateStatistics sums the state of the heap into stats
func (a *Allocator) CalculateStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.Clear()
	a.metadata.AddDetailedStatistics(stats)
}

// BuildStatsString produces a JSON document describing the heap. When detailedMap is true, every
// block on the free and used lists is included.
func (a *Allocator) BuildStatsString(detailedMap bool) string {
	var stats memutils.DetailedStatistics
	a.CalculateStatistics(&stats)

	a.mutex.Lock()
	defer a.mutex.Unlock()

	writer := jwriter.NewWriter()
	rootObj := writer.Object()

	rootObj.Name("Flags").String(a.createFlags.String())
	rootObj.Name("HeapBase").String(hex(a.heapBase))
	rootObj.Name("NextPageAddress").String(hex(a.nextPageAddress))

	totalObj := rootObj.Name("Total").Object()
	totalObj.Name("PageCount").Int(stats.PageCount)
	totalObj.Name("PageBytes").Int(stats.PageBytes)
	totalObj.Name("HeaderBytes").Int(stats.HeaderBytes)
	totalObj.Name("AllocationCount").Int(stats.AllocationCount)
	totalObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	totalObj.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)
	totalObj.Name("UnusedBytes").Int(stats.UnusedBytes)
	if stats.AllocationCount > 0 {
		totalObj.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		totalObj.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 0 {
		totalObj.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		totalObj.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
	totalObj.End()

	if detailedMap {
		mapObj := rootObj.Name("DetailedMap").Object()
		a.metadata.BlockJsonData(&mapObj)
		mapObj.End()
	}

	rootObj.End()

	return string(writer.Bytes())
}
