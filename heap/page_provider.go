package heap

//go:generate mockgen -source page_provider.go -destination mocks/page_provider.go -package mocks

import "github.com/vkngwrapper/pke/vm"

// PageProvider hands out raw physical pages. The heap never returns pages to it.
type PageProvider interface {
	AllocPage() (uint64, error)
}

// AddressSpace installs mappings into the page table of the process that owns the heap
type AddressSpace interface {
	Map(va uint64, size int, pa uint64, prot vm.Protection) error
}

var _ PageProvider = &vm.PhysicalMemory{}
var _ AddressSpace = &vm.PageTable{}
