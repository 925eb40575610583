package syscalls

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pke/memutils"
	"github.com/vkngwrapper/pke/riscv"
	"github.com/vkngwrapper/pke/vm"
	"golang.org/x/exp/slog"
)

var (
	// ErrUnknownSyscall is returned from Dispatch for ids outside the syscall table
	ErrUnknownSyscall = errors.New("unknown syscall")
	// ErrUnknownReturnAddress is returned from a backtrace when a saved return address does not
	// belong to any function
	ErrUnknownReturnAddress = errors.New("return address does not belong to a known function")
)

// EntryFunction is the symbol a backtrace stops at
const EntryFunction = "main"

// SymbolTable resolves code addresses to function names
type SymbolTable interface {
	Lookup(address uint64) (string, bool)
}

// Process is the calling user context
type Process interface {
	Trapframe() *riscv.Trapframe
	// ReadUser copies user memory at va into buf through the process page table
	ReadUser(va uint64, buf []byte) error
	ReadUserUint64(va uint64) (uint64, error)
	Symbols() SymbolTable
}

// Platform is the machine the kernel runs on
type Platform interface {
	Shutdown(code int)
}

// Dispatcher routes syscalls from user mode to their implementations
type Dispatcher struct {
	logger   *slog.Logger
	console  io.Writer
	platform Platform
}

func NewDispatcher(logger *slog.Logger, console io.Writer, platform Platform) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		console:  console,
		platform: platform,
	}
}

// Dispatch runs syscall id with the arguments from a1 through a7. The returned value is written
// back to a0 by the caller.
func (d *Dispatcher) Dispatch(proc Process, id uint64, args [7]uint64) (int64, error) {
	d.logger.Debug("Dispatcher::Dispatch", slog.String("Syscall", ID(id).String()))

	switch ID(id) {
	case SysUserPrint:
		return d.print(proc, args[0], args[1])
	case SysUserExit:
		return d.exit(int64(args[0]))
	case SysUserBacktrace:
		return d.backtrace(proc, args[0])
	default:
		return 0, errors.Wrapf(ErrUnknownSyscall, "%d", id)
	}
}

// print writes the user string at buf to the console. At most length bytes are read, and the
// string ends early at a NUL.
func (d *Dispatcher) print(proc Process, buf uint64, length uint64) (int64, error) {
	var text []byte

	for length > 0 {
		// Never read across a page boundary in one go so the string may end just before an
		// unmapped page
		chunkSize := memutils.AlignDownAddress(buf, uint64(vm.PageSize)) + uint64(vm.PageSize) - buf
		if chunkSize > length {
			chunkSize = length
		}

		chunk := make([]byte, chunkSize)
		err := proc.ReadUser(buf, chunk)
		if err != nil {
			return 0, errors.Wrapf(err, "print of %#x", buf)
		}

		end := bytes.IndexByte(chunk, 0)
		if end >= 0 {
			text = append(text, chunk[:end]...)
			break
		}

		text = append(text, chunk...)
		buf += chunkSize
		length -= chunkSize
	}

	_, err := d.console.Write(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not write to the console")
	}

	return 0, nil
}

// exit shuts the machine down. Only one process ever exists, so its exit is the end of the run.
func (d *Dispatcher) exit(code int64) (int64, error) {
	_, err := fmt.Fprintf(d.console, "User exit with code:%d.\n", code)
	if err != nil {
		return 0, errors.Wrap(err, "could not write to the console")
	}

	d.logger.Info("user process exited", slog.Int64("Code", code))
	d.platform.Shutdown(int(code))
	return 0, nil
}

// backtrace prints the functions of up to depth frames, starting from the frame of the caller.
// Frame i saves its return address 16*i+8 bytes above the frame pointer in s0.
func (d *Dispatcher) backtrace(proc Process, depth uint64) (int64, error) {
	frame := proc.Trapframe()
	symbols := proc.Symbols()
	fp := frame.Regs.S0

	for i := uint64(0); i < depth; i++ {
		slot := fp + 16*i + 8
		ra, err := proc.ReadUserUint64(slot)
		if err != nil {
			return 0, errors.Wrapf(err, "could not read the return address of frame %d", i)
		}

		name, ok := symbols.Lookup(ra)
		if !ok {
			return 0, errors.Wrapf(ErrUnknownReturnAddress, "frame %d: %#x", i, ra)
		}

		_, err = fmt.Fprintf(d.console, "%s\n", name)
		if err != nil {
			return 0, errors.Wrap(err, "could not write to the console")
		}

		if name == EntryFunction {
			break
		}
	}

	return 0, nil
}
