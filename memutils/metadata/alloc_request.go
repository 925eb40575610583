package metadata

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which indicates which
// free block the metadata intends to carve the allocation from. It can be committed with BlockMetadata.Alloc
// as long as the free list has not been modified in between.
type AllocationRequest struct {
	// BlockHandle is the free block selected by the first-fit walk
	BlockHandle BlockHandle
	// Size is the rounded size in bytes of the allocation
	Size int
	// FreeListIndex is the position of the selected block in the free list at the time of the walk
	FreeListIndex int
}
