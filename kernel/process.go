package kernel

import (
	"github.com/vkngwrapper/pke/debugline"
	"github.com/vkngwrapper/pke/heap"
	"github.com/vkngwrapper/pke/riscv"
	"github.com/vkngwrapper/pke/symtab"
	"github.com/vkngwrapper/pke/syscalls"
	"github.com/vkngwrapper/pke/vm"
)

// Process is the kernel's record of the single user program
type Process struct {
	ID int
	// KernelStack is the top of the page the trap vector switches to
	KernelStack uint64
	PageTable   *vm.PageTable
	Heap        *heap.Allocator

	trapframe riscv.Trapframe
	resolver  *debugline.Resolver
	symbols   *symtab.Table
}

var _ syscalls.Process = &Process{}

func (p *Process) Trapframe() *riscv.Trapframe { return &p.trapframe }

// Symbols returns the function symbols of the program. When the program was loaded without a
// symbol table every lookup fails.
func (p *Process) Symbols() syscalls.SymbolTable {
	if p.symbols == nil {
		return symtab.NewTable(nil)
	}
	return p.symbols
}

// Resolver returns the line resolver of the program, or nil when it carries no line information
func (p *Process) Resolver() *debugline.Resolver { return p.resolver }

func (p *Process) ReadUser(va uint64, buf []byte) error {
	return p.PageTable.Read(va, buf)
}

func (p *Process) ReadUserUint64(va uint64) (uint64, error) {
	return p.PageTable.ReadUint64(va)
}

func (p *Process) WriteUser(va uint64, data []byte) error {
	return p.PageTable.Write(va, data)
}
