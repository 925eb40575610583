package heap

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pke/heap/internal/utils"
	"github.com/vkngwrapper/pke/memutils"
	"github.com/vkngwrapper/pke/memutils/metadata"
	"github.com/vkngwrapper/pke/vm"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one thread at a time, which is
	// always true for a kernel driving one process on one hart.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	AllocatorCreateExternallySynchronized: "AllocatorCreateExternallySynchronized",
}

func (f CreateFlags) String() string {
	var names []string
	for flag, name := range createFlagsMapping {
		if f&flag != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, "|")
}

const (
	// DefaultHeapBase is the first virtual address handed to the heap when none is provided
	// via CreateOptions: 1024 pages above zero, clear of the user program image.
	DefaultHeapBase uint64 = 0x00000000 + uint64(vm.PageSize)*1024

	defaultProtection = vm.ProtRead | vm.ProtWrite
)

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// PageSize is the size of the pages obtained from the PageProvider. It must be a power of two
	// and larger than a block header. Defaults to vm.PageSize.
	PageSize int
	// HeapBase is the virtual address the first heap page is mapped at. Defaults to DefaultHeapBase.
	HeapBase uint64
	// Protection is used for every heap page mapping. Defaults to read/write.
	Protection vm.Protection
}

// New creates a new Allocator for one process. The heap starts out empty: no page is requested
// until the first allocation.
//
// pages - the source of physical pages
//
// addressSpace - the page table of the process that owns the heap
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, pages PageProvider, addressSpace AddressSpace, options CreateOptions) (*Allocator, error) {
	pageSize := options.PageSize
	if pageSize == 0 {
		pageSize = vm.PageSize
	}

	err := memutils.CheckPow2(pageSize, "PageSize")
	if err != nil {
		return nil, err
	}
	if pageSize <= metadata.BlockHeaderSize {
		return nil, errors.Errorf("PageSize %d cannot hold a %d byte block header", pageSize, metadata.BlockHeaderSize)
	}

	heapBase := options.HeapBase
	if heapBase == 0 {
		heapBase = DefaultHeapBase
	}
	err = memutils.CheckAligned(heapBase, uint64(pageSize), "HeapBase")
	if err != nil {
		return nil, err
	}

	protection := options.Protection
	if protection == 0 {
		protection = defaultProtection
	}

	logger.Debug("Allocator::New",
		slog.Int("PageSize", pageSize),
		slog.String("HeapBase", hex(heapBase)),
		slog.String("Flags", options.Flags.String()),
		slog.Bool("DebugValidation", memutils.DebugValidation),
	)

	return &Allocator{
		mutex: utils.OptionalMutex{
			UseMutex: options.Flags&AllocatorCreateExternallySynchronized == 0,
		},
		logger:          logger,
		pages:           pages,
		addressSpace:    addressSpace,
		createFlags:     options.Flags,
		pageSize:        pageSize,
		protection:      protection,
		heapBase:        heapBase,
		nextPageAddress: heapBase,
		metadata:        metadata.NewFirstFitMetadata(pageSize),
	}, nil
}
