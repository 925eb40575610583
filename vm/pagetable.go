package vm

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/pke/memutils"
)

type pageMapping struct {
	frame uint64
	flags PTEFlags
}

// PageTable is a user address space. Only leaf mappings are kept, keyed by virtual page number;
// the root frame exists so the table has a physical address to load into satp.
type PageTable struct {
	memory  *PhysicalMemory
	root    uint64
	entries *swiss.Map[uint64, pageMapping]
}

func NewPageTable(memory *PhysicalMemory) (*PageTable, error) {
	root, err := memory.AllocPage()
	if err != nil {
		return nil, errors.Wrap(err, "could not allocate the root page table frame")
	}

	return &PageTable{
		memory:  memory,
		root:    root,
		entries: swiss.NewMap[uint64, pageMapping](64),
	}, nil
}

// Root is the physical address of the root page table frame
func (t *PageTable) Root() uint64 { return t.root }

func (t *PageTable) MappedPageCount() int { return t.entries.Count() }

// Map installs user mappings for [va, va+size) onto consecutive frames starting at pa. va and pa must
// be page aligned; size is rounded up to whole pages. Mapping over an existing page is an error.
func (t *PageTable) Map(va uint64, size int, pa uint64, prot Protection) error {
	err := memutils.CheckAligned(va, uint64(PageSize), "virtual address")
	if err != nil {
		return err
	}
	err = memutils.CheckAligned(pa, uint64(PageSize), "physical address")
	if err != nil {
		return err
	}
	if size < 1 {
		return errors.Errorf("cannot map %d bytes", size)
	}

	pageCount := memutils.AlignUp(size, uint(PageSize)) / PageSize
	for i := 0; i < pageCount; i++ {
		if _, mapped := t.entries.Get((va / uint64(PageSize)) + uint64(i)); mapped {
			return errors.Errorf("remap of virtual page %#x", va+uint64(i*PageSize))
		}
	}

	flags := prot.PTEFlags(true) | PTEValid
	for i := 0; i < pageCount; i++ {
		t.entries.Put((va/uint64(PageSize))+uint64(i), pageMapping{
			frame: pa + uint64(i*PageSize),
			flags: flags,
		})
	}

	return nil
}

// Translate returns the physical address and entry flags that va maps to
func (t *PageTable) Translate(va uint64) (uint64, PTEFlags, bool) {
	entry, ok := t.entries.Get(va / uint64(PageSize))
	if !ok {
		return 0, 0, false
	}

	return entry.frame + (va - memutils.AlignDownAddress(va, uint64(PageSize))), entry.flags, true
}

// access walks [va, va+len(buf)) one page at a time, handing each physical chunk to copyFunc
func (t *PageTable) access(va uint64, buf []byte, kind AccessKind, required PTEFlags, copyFunc func(frame []byte, chunk []byte)) error {
	for len(buf) > 0 {
		entry, ok := t.entries.Get(va / uint64(PageSize))
		if !ok || entry.flags&required != required {
			return errors.WithStack(&AccessFault{Kind: kind, Address: va, Flags: entry.flags})
		}

		frame, err := t.memory.Frame(entry.frame)
		if err != nil {
			return err
		}

		offset := int(va % uint64(PageSize))
		chunk := len(buf)
		if chunk > PageSize-offset {
			chunk = PageSize - offset
		}

		copyFunc(frame[offset:offset+chunk], buf[:chunk])
		buf = buf[chunk:]
		va += uint64(chunk)
	}

	return nil
}

// Read copies len(buf) bytes of user memory starting at va into buf
func (t *PageTable) Read(va uint64, buf []byte) error {
	return t.access(va, buf, AccessLoad, PTEValid|PTERead, func(frame []byte, chunk []byte) {
		copy(chunk, frame)
	})
}

// Write copies data into user memory starting at va
func (t *PageTable) Write(va uint64, data []byte) error {
	return t.access(va, data, AccessStore, PTEValid|PTEWrite, func(frame []byte, chunk []byte) {
		copy(frame, chunk)
	})
}

// ReadUint64 loads a little-endian doubleword from user memory
func (t *PageTable) ReadUint64(va uint64) (uint64, error) {
	var word [8]byte
	err := t.Read(va, word[:])
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(word[:]), nil
}

// WriteUint64 stores a little-endian doubleword to user memory
func (t *PageTable) WriteUint64(va uint64, value uint64) error {
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], value)
	return t.Write(va, word[:])
}
