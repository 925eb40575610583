package vm

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pke/memutils"
)

// PageSize is the size in bytes of a physical frame and of a virtual page (Sv39 base pages)
const PageSize int = 4096

// ErrOutOfMemory is returned from AllocPage when every frame is in use
var ErrOutOfMemory = errors.New("out of physical memory")

// PhysicalMemory is a pool of page frames starting at a fixed physical base address. Frames are handed
// out lowest address first and returned frames are reused before untouched ones.
type PhysicalMemory struct {
	base      uint64
	memory    []byte
	free      []uint64
	allocated []bool
}

func NewPhysicalMemory(base uint64, pageCount int) (*PhysicalMemory, error) {
	err := memutils.CheckAligned(base, uint64(PageSize), "base")
	if err != nil {
		return nil, err
	}
	if pageCount < 1 {
		return nil, errors.Errorf("physical memory needs at least one page, but %d were requested", pageCount)
	}

	m := &PhysicalMemory{
		base:      base,
		memory:    make([]byte, pageCount*PageSize),
		free:      make([]uint64, 0, pageCount),
		allocated: make([]bool, pageCount),
	}

	// The free list is a stack, so push the highest frame first
	for frame := pageCount - 1; frame >= 0; frame-- {
		m.free = append(m.free, base+uint64(frame*PageSize))
	}

	return m, nil
}

func (m *PhysicalMemory) Base() uint64 { return m.base }

func (m *PhysicalMemory) PageCount() int { return len(m.allocated) }

func (m *PhysicalMemory) FreePageCount() int { return len(m.free) }

func (m *PhysicalMemory) frameIndex(pa uint64) (int, error) {
	err := memutils.CheckAligned(pa, uint64(PageSize), "physical address")
	if err != nil {
		return 0, err
	}
	if pa < m.base || pa >= m.base+uint64(len(m.memory)) {
		return 0, errors.Errorf("physical address %#x is outside of memory [%#x, %#x)", pa, m.base, m.base+uint64(len(m.memory)))
	}

	return int((pa - m.base) / uint64(PageSize)), nil
}

// AllocPage removes a zeroed frame from the pool and returns its physical address
func (m *PhysicalMemory) AllocPage() (uint64, error) {
	if len(m.free) == 0 {
		return 0, ErrOutOfMemory
	}

	pa := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]

	index := int((pa - m.base) / uint64(PageSize))
	m.allocated[index] = true

	frame := m.memory[index*PageSize : (index+1)*PageSize]
	for i := range frame {
		frame[i] = 0
	}

	return pa, nil
}

// FreePage returns a frame obtained from AllocPage to the pool
func (m *PhysicalMemory) FreePage(pa uint64) error {
	index, err := m.frameIndex(pa)
	if err != nil {
		return err
	}
	if !m.allocated[index] {
		return errors.Errorf("physical page %#x is not allocated", pa)
	}

	m.allocated[index] = false
	m.free = append(m.free, pa)
	return nil
}

// Frame returns the bytes of an allocated frame. The returned slice aliases physical memory.
func (m *PhysicalMemory) Frame(pa uint64) ([]byte, error) {
	index, err := m.frameIndex(pa)
	if err != nil {
		return nil, err
	}
	if !m.allocated[index] {
		return nil, errors.Errorf("physical page %#x is not allocated", pa)
	}

	return m.memory[index*PageSize : (index+1)*PageSize : (index+1)*PageSize], nil
}
