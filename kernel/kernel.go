package kernel

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pke/debugline"
	"github.com/vkngwrapper/pke/heap"
	"github.com/vkngwrapper/pke/memutils"
	"github.com/vkngwrapper/pke/riscv"
	"github.com/vkngwrapper/pke/symtab"
	"github.com/vkngwrapper/pke/syscalls"
	"github.com/vkngwrapper/pke/trap"
	"github.com/vkngwrapper/pke/vm"
	"golang.org/x/exp/slog"
)

// DefaultUserStackTop is the address just above the user stack page
const DefaultUserStackTop uint64 = 0x7ffff000

// ReturnToUserFunc restores the registers in frame, installs satp and executes sret
type ReturnToUserFunc func(frame *riscv.Trapframe, satp uint64)

// CreateOptions contains optional settings when creating a kernel
type CreateOptions struct {
	// TimerInterval is the number of mtime ticks between timer interrupts. Defaults to
	// trap.DefaultTimerInterval.
	TimerInterval uint64
	// HeapBase is the virtual address of the first user heap page. Defaults to heap.DefaultHeapBase.
	HeapBase uint64
	// UserStackTop is the initial user stack pointer. Defaults to DefaultUserStackTop.
	UserStackTop uint64
	// TrapVector is written to stvec before returning to user mode
	TrapVector uint64
	// KernelTrap is the supervisor trap handler the trap vector calls
	KernelTrap uint64
	// ReturnToUser is called at the end of SwitchTo. When it is nil, SwitchTo only prepares the
	// hart and the trapframe.
	ReturnToUser ReturnToUserFunc
}

// ProcessInfo describes a loaded user program
type ProcessInfo struct {
	// Entry is the first user instruction
	Entry uint64
	// Lines is the line table used to report illegal instructions. May be nil.
	Lines *debugline.Table
	// Sources holds the source files named by Lines
	Sources fs.FS
	// Symbols is used by the backtrace syscall. May be nil.
	Symbols *symtab.Table
}

// Kernel owns the hart and physical memory and converts every unrecoverable error into a halt of
// the machine
type Kernel struct {
	logger   *slog.Logger
	console  io.Writer
	hart     riscv.Hart
	platform syscalls.Platform
	memory   *vm.PhysicalMemory

	options CreateOptions

	machineTraps    *trap.MachineTrapHandler
	supervisorTraps *trap.SupervisorTrapHandler

	nextPID  int
	halted   bool
	exitCode int
}

func New(logger *slog.Logger, console io.Writer, hart riscv.Hart, platform syscalls.Platform, memory *vm.PhysicalMemory, options CreateOptions) (*Kernel, error) {
	if options.HeapBase == 0 {
		options.HeapBase = heap.DefaultHeapBase
	}
	if options.UserStackTop == 0 {
		options.UserStackTop = DefaultUserStackTop
	}

	err := memutils.CheckAligned(options.HeapBase, uint64(vm.PageSize), "HeapBase")
	if err != nil {
		return nil, err
	}
	err = memutils.CheckAligned(options.UserStackTop, uint64(vm.PageSize), "UserStackTop")
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		logger:   logger,
		console:  console,
		hart:     hart,
		platform: platform,
		memory:   memory,
		options:  options,
	}

	k.machineTraps = trap.NewMachineTrapHandler(logger, console, hart, trap.Options{
		TimerInterval: options.TimerInterval,
	})
	dispatcher := syscalls.NewDispatcher(logger, console, k)
	k.supervisorTraps = trap.NewSupervisorTrapHandler(logger, console, hart, dispatcher)

	return k, nil
}

// Halted reports whether the machine has been shut down
func (k *Kernel) Halted() bool { return k.halted }

// ExitCode is the code the machine was shut down with
func (k *Kernel) ExitCode() int { return k.exitCode }

// Ticks is the number of timer interrupts delivered to supervisor mode
func (k *Kernel) Ticks() uint64 { return k.supervisorTraps.Ticks() }

// Shutdown halts the machine with code. Only the first call reaches the platform.
func (k *Kernel) Shutdown(code int) {
	if k.halted {
		return
	}

	k.halted = true
	k.exitCode = code
	k.platform.Shutdown(code)
}

// Panic prints err to the console and halts the machine with -1
func (k *Kernel) Panic(err error) {
	if k.halted {
		return
	}

	k.logger.Error("kernel panic", slog.Any("Error", err))
	fmt.Fprintf(k.console, "panic: %v\n", err)
	k.Shutdown(-1)
}

// InitTimer arms the first timer interrupt interval ticks after now and enables timer delivery
func (k *Kernel) InitTimer(now uint64) {
	k.hart.SetTimeCmp(now + k.machineTraps.TimerInterval())
	riscv.SetCSRBits(k.hart, riscv.CSRMIE, riscv.MIEMTIE)
	riscv.SetCSRBits(k.hart, riscv.CSRSIE, riscv.SIESSIE)
}

// NewProcess builds the process record for a loaded program: its page table, kernel stack, user
// stack and an empty heap. On failure every frame it took is returned to physical memory.
func (k *Kernel) NewProcess(info ProcessInfo) (proc *Process, err error) {
	var frames []uint64
	defer func() {
		if err == nil {
			return
		}
		// Hand back every frame taken so far
		for _, frame := range frames {
			_ = k.memory.FreePage(frame)
		}
	}()

	pageTable, err := vm.NewPageTable(k.memory)
	if err != nil {
		return nil, errors.Wrap(err, "could not create the user page table")
	}
	frames = append(frames, pageTable.Root())

	kernelStack, err := k.memory.AllocPage()
	if err != nil {
		return nil, errors.Wrap(err, "could not allocate the kernel stack")
	}
	frames = append(frames, kernelStack)

	userStack, err := k.memory.AllocPage()
	if err != nil {
		return nil, errors.Wrap(err, "could not allocate the user stack")
	}
	frames = append(frames, userStack)

	err = pageTable.Map(k.options.UserStackTop-uint64(vm.PageSize), vm.PageSize, userStack, vm.ProtRead|vm.ProtWrite)
	if err != nil {
		return nil, errors.Wrap(err, "could not map the user stack")
	}

	userHeap, err := heap.New(k.logger, k.memory, pageTable, heap.CreateOptions{
		Flags:    heap.AllocatorCreateExternallySynchronized,
		HeapBase: k.options.HeapBase,
	})
	if err != nil {
		return nil, err
	}

	proc = &Process{
		ID:          k.nextPID,
		KernelStack: kernelStack + uint64(vm.PageSize),
		PageTable:   pageTable,
		Heap:        userHeap,
		symbols:     info.Symbols,
	}
	k.nextPID++

	if info.Lines != nil {
		proc.resolver = debugline.NewResolver(info.Lines, info.Sources)
	}

	proc.trapframe.EPC = info.Entry
	proc.trapframe.Regs.SP = k.options.UserStackTop

	k.logger.Debug("Kernel::NewProcess", slog.Int("ID", proc.ID), slog.Any("Trapframe", &proc.trapframe))
	return proc, nil
}

// SwitchTo prepares the hart to enter proc in user mode and hands control to ReturnToUser
func (k *Kernel) SwitchTo(proc *Process) {
	if k.halted {
		return
	}

	frame := proc.Trapframe()

	k.hart.WriteCSR(riscv.CSRSTVec, k.options.TrapVector)

	frame.KernelSP = proc.KernelStack
	frame.KernelTrap = k.options.KernelTrap
	frame.KernelSATP = k.hart.ReadCSR(riscv.CSRSATP)

	// sret drops to user mode with interrupts enabled
	riscv.ClearCSRBits(k.hart, riscv.CSRSStatus, riscv.SStatusSPP)
	riscv.SetCSRBits(k.hart, riscv.CSRSStatus, riscv.SStatusSPIE)

	k.hart.WriteCSR(riscv.CSRSEPC, frame.EPC)

	satp := riscv.MakeSATP(proc.PageTable.Root())
	k.logger.Debug("Kernel::SwitchTo", slog.Int("ID", proc.ID), slog.Any("Trapframe", frame))

	if k.options.ReturnToUser != nil {
		k.options.ReturnToUser(frame, satp)
	}
}

// Malloc allocates size bytes of user heap for proc. Any failure halts the machine and 0 is
// returned.
func (k *Kernel) Malloc(proc *Process, size int) uint64 {
	if k.halted {
		return 0
	}

	address, err := proc.Heap.Allocate(size)
	if err != nil {
		k.Panic(errors.Wrap(err, "malloc"))
		return 0
	}

	return address
}

// Free releases a user heap allocation of proc. Any failure halts the machine.
func (k *Kernel) Free(proc *Process, address uint64) {
	if k.halted {
		return
	}

	err := proc.Heap.Release(address)
	if err != nil {
		k.Panic(errors.Wrap(err, "free"))
	}
}

// HandleMachineTrap services the pending machine trap. Faults halt the machine.
func (k *Kernel) HandleMachineTrap(proc *Process) {
	if k.halted {
		return
	}

	var resolver trap.SourceResolver
	if proc.resolver != nil {
		resolver = proc.resolver
	}

	err := k.machineTraps.Handle(resolver)
	if err != nil {
		k.logger.Error("fatal machine trap", slog.Any("Trapframe", proc.Trapframe()))
		k.Panic(err)
	}
}

// HandleSupervisorTrap services the pending supervisor trap of proc and returns to it. Faults halt
// the machine.
func (k *Kernel) HandleSupervisorTrap(proc *Process) {
	if k.halted {
		return
	}

	err := k.supervisorTraps.Handle(proc)
	if err != nil {
		k.logger.Error("fatal supervisor trap", slog.Any("Trapframe", proc.Trapframe()))
		k.Panic(err)
		return
	}

	k.SwitchTo(proc)
}
