package trap

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pke/riscv"
	"github.com/vkngwrapper/pke/syscalls"
	"golang.org/x/exp/slog"
)

// SyscallDispatcher runs the syscall a user ecall asked for
type SyscallDispatcher interface {
	Dispatch(proc syscalls.Process, id uint64, args [7]uint64) (int64, error)
}

var _ SyscallDispatcher = &syscalls.Dispatcher{}

// SupervisorTrapHandler services traps taken from user mode into supervisor mode: syscalls and the
// timer tick forwarded by the machine trap handler
type SupervisorTrapHandler struct {
	logger     *slog.Logger
	console    io.Writer
	hart       riscv.Hart
	dispatcher SyscallDispatcher

	ticks uint64
}

func NewSupervisorTrapHandler(logger *slog.Logger, console io.Writer, hart riscv.Hart, dispatcher SyscallDispatcher) *SupervisorTrapHandler {
	return &SupervisorTrapHandler{
		logger:     logger,
		console:    console,
		hart:       hart,
		dispatcher: dispatcher,
	}
}

// Ticks is the number of timer interrupts serviced so far
func (h *SupervisorTrapHandler) Ticks() uint64 { return h.ticks }

// Handle services the trap described by scause on behalf of proc. The user program counter is
// saved to the trapframe first; a syscall advances it past the ecall and stores its result in a0.
func (h *SupervisorTrapHandler) Handle(proc syscalls.Process) error {
	frame := proc.Trapframe()
	cause := riscv.Cause(h.hart.ReadCSR(riscv.CSRSCause))
	epc := h.hart.ReadCSR(riscv.CSRSEPC)

	h.logger.Debug("SupervisorTrapHandler::Handle", slog.String("Cause", cause.String()), slog.String("EPC", fmt.Sprintf("%#x", epc)))

	if h.hart.ReadCSR(riscv.CSRSStatus)&riscv.SStatusSPP != 0 {
		return newFault(cause, epc, h.hart.ReadCSR(riscv.CSRSTVal), "usertrap: not from user mode")
	}

	frame.EPC = epc

	switch cause {
	case riscv.CauseUserEcall:
		// Resume after the ecall instruction
		frame.EPC += 4

		ret, err := h.dispatcher.Dispatch(proc, frame.Regs.A0, frame.Regs.Args())
		if err != nil {
			return errors.Wrapf(err, "syscall %s", syscalls.ID(frame.Regs.A0))
		}
		frame.Regs.A0 = uint64(ret)
		return nil
	case riscv.CauseSupervisorSoftware:
		fmt.Fprintf(h.console, "Ticks %d\n", h.ticks)
		h.ticks++
		riscv.ClearCSRBits(h.hart, riscv.CSRSIP, riscv.SIPSSIP)
		return nil
	default:
		tval := h.hart.ReadCSR(riscv.CSRSTVal)
		fmt.Fprintf(h.console, "smode_trap_handler(): unexpected scause %#x\n", uint64(cause))
		fmt.Fprintf(h.console, "            sepc=%#x stval=%#x\n", epc, tval)
		return newFault(cause, epc, tval, "unexpected exception happened.")
	}
}
