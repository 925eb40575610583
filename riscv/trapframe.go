package riscv

import (
	"strconv"

	"golang.org/x/exp/slog"
)

// Registers holds the 31 general purpose registers of a user context. x0 is hardwired to zero
// and is not stored.
type Registers struct {
	RA  uint64
	SP  uint64
	GP  uint64
	TP  uint64
	T0  uint64
	T1  uint64
	T2  uint64
	S0  uint64
	S1  uint64
	A0  uint64
	A1  uint64
	A2  uint64
	A3  uint64
	A4  uint64
	A5  uint64
	A6  uint64
	A7  uint64
	S2  uint64
	S3  uint64
	S4  uint64
	S5  uint64
	S6  uint64
	S7  uint64
	S8  uint64
	S9  uint64
	S10 uint64
	S11 uint64
	T3  uint64
	T4  uint64
	T5  uint64
	T6  uint64
}

// Args returns a1 through a7, the syscall arguments of the calling convention
func (r *Registers) Args() [7]uint64 {
	return [7]uint64{r.A1, r.A2, r.A3, r.A4, r.A5, r.A6, r.A7}
}

// Trapframe is the per-process save area the trap entry code spills user registers into. The
// kernel fields are filled in before every return to user mode so the trap vector can find its
// way back.
type Trapframe struct {
	Regs Registers
	// KernelSP is the top of the process kernel stack
	KernelSP uint64
	// KernelTrap is the address of the supervisor trap handler
	KernelTrap uint64
	// EPC is the user program counter to resume at
	EPC uint64
	// KernelSATP is the kernel page table
	KernelSATP uint64
}

func hex(value uint64) string {
	return "0x" + strconv.FormatUint(value, 16)
}

// LogValue summarizes the registers that matter when reporting a trap
func (t *Trapframe) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("epc", hex(t.EPC)),
		slog.String("ra", hex(t.Regs.RA)),
		slog.String("sp", hex(t.Regs.SP)),
		slog.String("s0", hex(t.Regs.S0)),
		slog.String("a0", hex(t.Regs.A0)),
	)
}
