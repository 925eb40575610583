package heap_test

import (
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/pke/heap"
	"github.com/vkngwrapper/pke/heap/mocks"
	"github.com/vkngwrapper/pke/memutils"
	"github.com/vkngwrapper/pke/memutils/metadata"
	"github.com/vkngwrapper/pke/vm"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

const physicalBase = uint64(0x80000000)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readyMockAllocator(t *testing.T, ctrl *gomock.Controller) (*mocks.MockPageProvider, *mocks.MockAddressSpace, *heap.Allocator) {
	pages := mocks.NewMockPageProvider(ctrl)
	addressSpace := mocks.NewMockAddressSpace(ctrl)

	allocator, err := heap.New(discardLogger(), pages, addressSpace, heap.CreateOptions{})
	require.NoError(t, err)

	return pages, addressSpace, allocator
}

func readyAllocator(t *testing.T, pageCount int) (*vm.PhysicalMemory, *vm.PageTable, *heap.Allocator) {
	memory, err := vm.NewPhysicalMemory(physicalBase, pageCount)
	require.NoError(t, err)

	table, err := vm.NewPageTable(memory)
	require.NoError(t, err)

	allocator, err := heap.New(discardLogger(), memory, table, heap.CreateOptions{
		Flags: heap.AllocatorCreateExternallySynchronized,
	})
	require.NoError(t, err)

	return memory, table, allocator
}

func TestNewRejectsBadOptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	pages := mocks.NewMockPageProvider(ctrl)
	addressSpace := mocks.NewMockAddressSpace(ctrl)

	_, err := heap.New(discardLogger(), pages, addressSpace, heap.CreateOptions{PageSize: 3000})
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	_, err = heap.New(discardLogger(), pages, addressSpace, heap.CreateOptions{PageSize: 32})
	require.Error(t, err)

	_, err = heap.New(discardLogger(), pages, addressSpace, heap.CreateOptions{HeapBase: heap.DefaultHeapBase + 8})
	require.True(t, errors.Is(err, memutils.AlignmentError))
}

func TestAllocateMapsFirstPageLazily(t *testing.T) {
	ctrl := gomock.NewController(t)
	pages, addressSpace, allocator := readyMockAllocator(t, ctrl)

	require.Equal(t, heap.DefaultHeapBase, allocator.NextPageAddress())

	pages.EXPECT().AllocPage().Return(physicalBase, nil)
	addressSpace.EXPECT().Map(heap.DefaultHeapBase, vm.PageSize, physicalBase, vm.ProtRead|vm.ProtWrite).Return(nil)

	address, err := allocator.Allocate(16)
	require.NoError(t, err)
	require.Equal(t, heap.DefaultHeapBase+uint64(metadata.BlockHeaderSize), address)
	require.Equal(t, heap.DefaultHeapBase+uint64(vm.PageSize), allocator.NextPageAddress())

	// The remainder of the first page serves the second request without a new page
	address, err = allocator.Allocate(24)
	require.NoError(t, err)
	require.Equal(t, heap.DefaultHeapBase+uint64(2*metadata.BlockHeaderSize+16), address)
	require.NoError(t, allocator.Validate())
}

func TestAllocateGrowsWhenNothingFits(t *testing.T) {
	ctrl := gomock.NewController(t)
	pages, addressSpace, allocator := readyMockAllocator(t, ctrl)

	secondPage := heap.DefaultHeapBase + uint64(vm.PageSize)

	gomock.InOrder(
		pages.EXPECT().AllocPage().Return(physicalBase, nil),
		addressSpace.EXPECT().Map(heap.DefaultHeapBase, vm.PageSize, physicalBase, vm.ProtRead|vm.ProtWrite).Return(nil),
		pages.EXPECT().AllocPage().Return(physicalBase+0x3000, nil),
		addressSpace.EXPECT().Map(secondPage, vm.PageSize, physicalBase+0x3000, vm.ProtRead|vm.ProtWrite).Return(nil),
	)

	_, err := allocator.Allocate(4000)
	require.NoError(t, err)

	address, err := allocator.Allocate(200)
	require.NoError(t, err)
	require.Equal(t, secondPage+uint64(metadata.BlockHeaderSize), address)

	var stats memutils.DetailedStatistics
	allocator.CalculateStatistics(&stats)
	require.Equal(t, 2, stats.PageCount)
	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 4200, stats.AllocationBytes)
	require.Equal(t, 2, stats.UnusedRangeCount)

	var summary memutils.Statistics
	allocator.Statistics(&summary)
	require.Equal(t, memutils.Statistics{
		PageCount:       2,
		AllocationCount: 2,
		PageBytes:       2 * vm.PageSize,
		AllocationBytes: 4200,
	}, summary)
	require.NoError(t, allocator.Validate())
}

func TestAllocatePropagatesPageFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	pages, addressSpace, allocator := readyMockAllocator(t, ctrl)

	pages.EXPECT().AllocPage().Return(uint64(0), vm.ErrOutOfMemory)

	_, err := allocator.Allocate(64)
	require.True(t, errors.Is(err, vm.ErrOutOfMemory))
	require.Equal(t, heap.DefaultHeapBase, allocator.NextPageAddress())

	mapErr := errors.New("page already mapped")
	pages.EXPECT().AllocPage().Return(physicalBase, nil)
	addressSpace.EXPECT().Map(heap.DefaultHeapBase, vm.PageSize, physicalBase, vm.ProtRead|vm.ProtWrite).Return(mapErr)

	_, err = allocator.Allocate(64)
	require.True(t, errors.Is(err, mapErr))
	require.Equal(t, heap.DefaultHeapBase, allocator.NextPageAddress())
}

func TestAllocateInvalidSizes(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, allocator := readyMockAllocator(t, ctrl)

	_, err := allocator.Allocate(0)
	require.True(t, errors.Is(err, heap.ErrInvalidSize))

	_, err = allocator.Allocate(-8)
	require.True(t, errors.Is(err, heap.ErrInvalidSize))

	_, err = allocator.Allocate(vm.PageSize)
	require.True(t, errors.Is(err, heap.ErrOversizedRequest))

	// Rounding to the word size pushes this just past the largest payload
	_, err = allocator.Allocate(vm.PageSize - metadata.BlockHeaderSize + 1)
	require.True(t, errors.Is(err, heap.ErrOversizedRequest))
	require.Equal(t, vm.PageSize-metadata.BlockHeaderSize, allocator.MaxAllocationSize())
}

func TestAllocateLargestPayload(t *testing.T) {
	_, table, allocator := readyAllocator(t, 8)

	address, err := allocator.Allocate(allocator.MaxAllocationSize())
	require.NoError(t, err)
	require.Equal(t, heap.DefaultHeapBase+uint64(metadata.BlockHeaderSize), address)

	payload := make([]byte, allocator.MaxAllocationSize())
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, table.Write(address, payload))
}

func TestReleaseAndReuse(t *testing.T) {
	_, table, allocator := readyAllocator(t, 8)

	a1, err := allocator.Allocate(16)
	require.NoError(t, err)
	require.Equal(t, heap.DefaultHeapBase+32, a1)

	a2, err := allocator.Allocate(16)
	require.NoError(t, err)
	require.Equal(t, heap.DefaultHeapBase+80, a2)

	require.NoError(t, table.Write(a2, []byte("second block")))

	require.NoError(t, allocator.Release(a1))

	a3, err := allocator.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, a1, a3)

	size, err := allocator.AllocationSize(a3)
	require.NoError(t, err)
	require.Equal(t, 8, size)

	require.NoError(t, table.Write(a3, []byte("abcdefgh")))

	readBack := make([]byte, len("second block"))
	require.NoError(t, table.Read(a2, readBack))
	require.Equal(t, "second block", string(readBack))
	require.Equal(t, 1, table.MappedPageCount())
	require.NoError(t, allocator.Validate())
}

func TestReleaseInvalidAddresses(t *testing.T) {
	_, _, allocator := readyAllocator(t, 8)

	err := allocator.Release(0x1234)
	require.True(t, errors.Is(err, heap.ErrInvalidFree))

	address, err := allocator.Allocate(40)
	require.NoError(t, err)

	// An address inside the payload identifies the same block
	require.NoError(t, allocator.Release(address+16))

	err = allocator.Release(address)
	require.True(t, errors.Is(err, heap.ErrInvalidFree))
	require.NoError(t, allocator.Validate())
}

func TestAllocationsNeverOverlap(t *testing.T) {
	_, table, allocator := readyAllocator(t, 64)

	type live struct {
		address uint64
		size    int
		fill    byte
	}

	random := rand.New(rand.NewSource(1337))
	var allocations []live

	for i := 0; i < 500; i++ {
		if len(allocations) > 0 && random.Intn(3) == 0 {
			index := random.Intn(len(allocations))
			require.NoError(t, allocator.Release(allocations[index].address))
			allocations = append(allocations[:index], allocations[index+1:]...)
			continue
		}

		size := random.Intn(600) + 1
		address, err := allocator.Allocate(size)
		require.NoError(t, err)
		require.Zero(t, address%8)

		fill := byte(i)
		payload := make([]byte, size)
		for j := range payload {
			payload[j] = fill
		}
		require.NoError(t, table.Write(address, payload))

		for _, other := range allocations {
			require.False(t, address < other.address+uint64(other.size) && other.address < address+uint64(size),
				"allocation %#x+%d overlaps %#x+%d", address, size, other.address, other.size)
		}

		allocations = append(allocations, live{address: address, size: size, fill: fill})
	}

	for _, allocation := range allocations {
		readBack := make([]byte, allocation.size)
		require.NoError(t, table.Read(allocation.address, readBack))
		for _, b := range readBack {
			require.Equal(t, allocation.fill, b)
		}
	}

	require.NoError(t, allocator.Validate())
}

func TestBuildStatsString(t *testing.T) {
	_, _, allocator := readyAllocator(t, 8)

	_, err := allocator.Allocate(100)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(allocator.BuildStatsString(false)), &doc))
	require.Equal(t, "AllocatorCreateExternallySynchronized", doc["Flags"])
	require.Equal(t, "0x400000", doc["HeapBase"])
	require.Equal(t, "0x401000", doc["NextPageAddress"])
	require.NotContains(t, doc, "DetailedMap")

	total := doc["Total"].(map[string]any)
	require.Equal(t, float64(1), total["PageCount"])
	require.Equal(t, float64(104), total["AllocationBytes"])

	doc = nil
	require.NoError(t, json.Unmarshal([]byte(allocator.BuildStatsString(true)), &doc))
	require.Contains(t, doc, "DetailedMap")
}

func TestAllocateOversizedLeavesHeapUntouched(t *testing.T) {
	memory, table, allocator := readyAllocator(t, 8)
	freePages := memory.FreePageCount()

	for _, size := range []int{math.MaxInt, math.MaxInt - 3, vm.PageSize * 2} {
		_, err := allocator.Allocate(size)
		require.True(t, errors.Is(err, heap.ErrOversizedRequest))
	}

	require.Equal(t, 0, table.MappedPageCount())
	require.Equal(t, freePages, memory.FreePageCount())
	require.Equal(t, heap.DefaultHeapBase, allocator.NextPageAddress())
	require.NoError(t, allocator.Validate())
}
