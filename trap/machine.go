package trap

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pke/debugline"
	"github.com/vkngwrapper/pke/riscv"
	"golang.org/x/exp/slog"
)

// DefaultTimerInterval is the number of mtime ticks between timer interrupts
const DefaultTimerInterval uint64 = 1000000

// SourceResolver maps a faulting program counter to the line of source that produced it
type SourceResolver interface {
	Resolve(pc uint64) (debugline.Location, error)
	SourceLine(loc debugline.Location) (string, error)
}

var _ SourceResolver = &debugline.Resolver{}

// Options contains optional settings for the trap handlers
type Options struct {
	// TimerInterval is added to mtimecmp on every machine timer interrupt. Defaults to
	// DefaultTimerInterval.
	TimerInterval uint64
}

// MachineTrapHandler classifies traps taken into machine mode. The timer interrupt is forwarded
// to supervisor mode as a software interrupt; every exception is fatal.
type MachineTrapHandler struct {
	logger        *slog.Logger
	console       io.Writer
	hart          riscv.Hart
	timerInterval uint64
}

func NewMachineTrapHandler(logger *slog.Logger, console io.Writer, hart riscv.Hart, options Options) *MachineTrapHandler {
	interval := options.TimerInterval
	if interval == 0 {
		interval = DefaultTimerInterval
	}

	return &MachineTrapHandler{
		logger:        logger,
		console:       console,
		hart:          hart,
		timerInterval: interval,
	}
}

func (h *MachineTrapHandler) TimerInterval() uint64 { return h.timerInterval }

// Handle services the trap described by mcause. It returns nil when execution may continue and a
// *Fault when the machine must halt. resolver is only consulted for illegal instructions and may
// be nil.
func (h *MachineTrapHandler) Handle(resolver SourceResolver) error {
	cause := riscv.Cause(h.hart.ReadCSR(riscv.CSRMCause))
	h.logger.Debug("MachineTrapHandler::Handle", slog.String("Cause", cause.String()))

	switch cause {
	case riscv.CauseMachineTimer:
		h.handleTimer()
		return nil
	case riscv.CauseFetchAccess:
		return h.fault(cause, "Instruction access fault!")
	case riscv.CauseLoadAccess:
		return h.fault(cause, "Load access fault!")
	case riscv.CauseStoreAccess:
		return h.fault(cause, "Store/AMO access fault!")
	case riscv.CauseIllegalInstruction:
		return h.handleIllegalInstruction(resolver)
	case riscv.CauseMisalignedLoad:
		return h.fault(cause, "Misaligned Load!")
	case riscv.CauseMisalignedStore:
		return h.fault(cause, "Misaligned AMO!")
	default:
		epc := h.hart.ReadCSR(riscv.CSRMEPC)
		tval := h.hart.ReadCSR(riscv.CSRMTVal)
		fmt.Fprintf(h.console, "machine trap(): unexpected mscause %#x\n", uint64(cause))
		fmt.Fprintf(h.console, "            mepc=%#x mtval=%#x\n", epc, tval)
		return newFault(cause, epc, tval, "unexpected exception happened in M-mode.")
	}
}

func (h *MachineTrapHandler) handleTimer() {
	h.hart.SetTimeCmp(h.hart.TimeCmp() + h.timerInterval)
	// The supervisor sees the tick as a pending software interrupt
	h.hart.WriteCSR(riscv.CSRSIP, riscv.SIPSSIP)
}

func (h *MachineTrapHandler) fault(cause riscv.Cause, reason string) *Fault {
	return newFault(cause, h.hart.ReadCSR(riscv.CSRMEPC), h.hart.ReadCSR(riscv.CSRMTVal), reason)
}

func (h *MachineTrapHandler) resolverFault(epc, tval uint64, reason string, err error) *Fault {
	fault := newFault(riscv.CauseIllegalInstruction, epc, tval, reason)
	fault.Err = errors.Mark(err, ErrResolver)
	return fault
}

func (h *MachineTrapHandler) handleIllegalInstruction(resolver SourceResolver) error {
	epc := h.hart.ReadCSR(riscv.CSRMEPC)
	tval := h.hart.ReadCSR(riscv.CSRMTVal)

	if resolver == nil {
		return h.resolverFault(epc, tval, ErrResolver.Error(), errors.New("no line table is loaded"))
	}

	loc, err := resolver.Resolve(epc)
	if err != nil {
		return h.resolverFault(epc, tval, ErrResolver.Error(), err)
	}

	fmt.Fprintf(h.console, "Runtime error at %s:%d\n", loc.Path, loc.Line)

	line, err := resolver.SourceLine(loc)
	if err != nil {
		return h.resolverFault(epc, tval, "Fail on opening the error source file.", err)
	}

	fmt.Fprintf(h.console, "%s\n", line)
	return newFault(riscv.CauseIllegalInstruction, epc, tval, "Illegal instruction!")
}
