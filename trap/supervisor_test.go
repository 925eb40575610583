package trap_test

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/pke/riscv"
	"github.com/vkngwrapper/pke/syscalls"
	"github.com/vkngwrapper/pke/trap"
)

type frameProcess struct {
	frame riscv.Trapframe
}

func (p *frameProcess) Trapframe() *riscv.Trapframe { return &p.frame }
func (p *frameProcess) ReadUser(va uint64, buf []byte) error {
	return errors.Newf("no memory at %#x", va)
}
func (p *frameProcess) ReadUserUint64(va uint64) (uint64, error) {
	return 0, errors.Newf("no memory at %#x", va)
}
func (p *frameProcess) Symbols() syscalls.SymbolTable { return nil }

type recordedSyscall struct {
	id   uint64
	args [7]uint64
}

type fakeDispatcher struct {
	calls  []recordedSyscall
	result int64
	err    error
}

func (d *fakeDispatcher) Dispatch(proc syscalls.Process, id uint64, args [7]uint64) (int64, error) {
	d.calls = append(d.calls, recordedSyscall{id: id, args: args})
	return d.result, d.err
}

func readySupervisorHandler(dispatcher trap.SyscallDispatcher) (*bytes.Buffer, *riscv.SimHart, *trap.SupervisorTrapHandler) {
	console := &bytes.Buffer{}
	hart := riscv.NewSimHart(0)
	return console, hart, trap.NewSupervisorTrapHandler(discardLogger(), console, hart, dispatcher)
}

func TestUserEcallDispatchesSyscall(t *testing.T) {
	dispatcher := &fakeDispatcher{result: 42}
	_, hart, handler := readySupervisorHandler(dispatcher)

	proc := &frameProcess{}
	proc.frame.Regs.A0 = uint64(syscalls.SysUserPrint)
	proc.frame.Regs.A1 = 0x7ffff000
	proc.frame.Regs.A2 = 12
	proc.frame.Regs.A7 = 7

	hart.RaiseSupervisorTrap(riscv.CauseUserEcall, 0x81000100, 0)
	require.NoError(t, handler.Handle(proc))

	require.Equal(t, []recordedSyscall{
		{id: 64, args: [7]uint64{0x7ffff000, 12, 0, 0, 0, 0, 7}},
	}, dispatcher.calls)
	require.Equal(t, uint64(0x81000104), proc.frame.EPC)
	require.Equal(t, uint64(42), proc.frame.Regs.A0)
}

func TestUserEcallFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{err: syscalls.ErrUnknownSyscall}
	_, hart, handler := readySupervisorHandler(dispatcher)

	proc := &frameProcess{}
	proc.frame.Regs.A0 = 99

	hart.RaiseSupervisorTrap(riscv.CauseUserEcall, 0x81000100, 0)
	err := handler.Handle(proc)
	require.True(t, errors.Is(err, syscalls.ErrUnknownSyscall))
	require.Equal(t, uint64(99), proc.frame.Regs.A0)
}

func TestUserEcallThroughDispatcher(t *testing.T) {
	console := &bytes.Buffer{}
	platform := &shutdownRecorder{}
	dispatcher := syscalls.NewDispatcher(discardLogger(), console, platform)
	_, hart, handler := readySupervisorHandler(dispatcher)

	proc := &frameProcess{}
	proc.frame.Regs.A0 = uint64(syscalls.SysUserExit)
	proc.frame.Regs.A1 = 3

	hart.RaiseSupervisorTrap(riscv.CauseUserEcall, 0x81000100, 0)
	require.NoError(t, handler.Handle(proc))
	require.Equal(t, "User exit with code:3.\n", console.String())
	require.Equal(t, []int{3}, platform.codes)
	require.Zero(t, proc.frame.Regs.A0)
}

type shutdownRecorder struct {
	codes []int
}

func (r *shutdownRecorder) Shutdown(code int) {
	r.codes = append(r.codes, code)
}

func TestSoftwareInterruptCountsTicks(t *testing.T) {
	console, hart, handler := readySupervisorHandler(&fakeDispatcher{})
	proc := &frameProcess{}

	for i := 0; i < 3; i++ {
		hart.WriteCSR(riscv.CSRSIP, riscv.SIPSSIP)
		hart.RaiseSupervisorTrap(riscv.CauseSupervisorSoftware, 0x81000200, 0)

		require.NoError(t, handler.Handle(proc))
		require.Zero(t, hart.ReadCSR(riscv.CSRSIP)&riscv.SIPSSIP)
		require.Equal(t, uint64(0x81000200), proc.frame.EPC)
	}

	require.Equal(t, uint64(3), handler.Ticks())
	require.Equal(t, "Ticks 0\nTicks 1\nTicks 2\n", console.String())
}

func TestMachineTimerReachesSupervisor(t *testing.T) {
	console, hart, supervisor := readySupervisorHandler(&fakeDispatcher{})
	machine := trap.NewMachineTrapHandler(discardLogger(), console, hart, trap.Options{})

	hart.RaiseTrap(riscv.CauseMachineTimer, 0x81000300, 0)
	require.NoError(t, machine.Handle(nil))
	require.Equal(t, riscv.SIPSSIP, hart.ReadCSR(riscv.CSRSIP))

	hart.RaiseSupervisorTrap(riscv.CauseSupervisorSoftware, 0x81000300, 0)
	require.NoError(t, supervisor.Handle(&frameProcess{}))
	require.Equal(t, uint64(1), supervisor.Ticks())
	require.Zero(t, hart.ReadCSR(riscv.CSRSIP))
}

func TestUnexpectedSupervisorTrap(t *testing.T) {
	console, hart, handler := readySupervisorHandler(&fakeDispatcher{})

	hart.RaiseSupervisorTrap(riscv.CauseLoadPageFault, 0x81000010, 0x0)
	err := handler.Handle(&frameProcess{})

	var fault *trap.Fault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, "unexpected exception happened.", fault.Reason)
	require.Equal(t, riscv.CauseLoadPageFault, fault.Cause)
	require.Equal(t, "smode_trap_handler(): unexpected scause 0xd\n            sepc=0x81000010 stval=0x0\n", console.String())
}

func TestSupervisorTrapFromSupervisorMode(t *testing.T) {
	_, hart, handler := readySupervisorHandler(&fakeDispatcher{})

	hart.WriteCSR(riscv.CSRSStatus, riscv.SStatusSPP)
	hart.RaiseSupervisorTrap(riscv.CauseUserEcall, 0x81000010, 0)

	var fault *trap.Fault
	require.True(t, errors.As(handler.Handle(&frameProcess{}), &fault))
	require.Equal(t, "usertrap: not from user mode", fault.Reason)
}
