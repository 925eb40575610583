package riscv

import "fmt"

// Cause is the value of mcause or scause. The top bit separates interrupts from exceptions.
type Cause uint64

// InterruptBit is set in a cause value when the trap was an interrupt
const InterruptBit Cause = 1 << 63

const (
	CauseMisalignedFetch    Cause = 0
	CauseFetchAccess        Cause = 1
	CauseIllegalInstruction Cause = 2
	CauseBreakpoint         Cause = 3
	CauseMisalignedLoad     Cause = 4
	CauseLoadAccess         Cause = 5
	CauseMisalignedStore    Cause = 6
	CauseStoreAccess        Cause = 7
	CauseUserEcall          Cause = 8
	CauseSupervisorEcall    Cause = 9
	CauseMachineEcall       Cause = 11
	CauseFetchPageFault     Cause = 12
	CauseLoadPageFault      Cause = 13
	CauseStorePageFault     Cause = 15

	CauseSupervisorSoftware Cause = InterruptBit | 1
	CauseMachineSoftware    Cause = InterruptBit | 3
	CauseSupervisorTimer    Cause = InterruptBit | 5
	CauseMachineTimer       Cause = InterruptBit | 7
	CauseSupervisorExternal Cause = InterruptBit | 9
	CauseMachineExternal    Cause = InterruptBit | 11
)

var causeMapping = map[Cause]string{
	CauseMisalignedFetch:    "CauseMisalignedFetch",
	CauseFetchAccess:        "CauseFetchAccess",
	CauseIllegalInstruction: "CauseIllegalInstruction",
	CauseBreakpoint:         "CauseBreakpoint",
	CauseMisalignedLoad:     "CauseMisalignedLoad",
	CauseLoadAccess:         "CauseLoadAccess",
	CauseMisalignedStore:    "CauseMisalignedStore",
	CauseStoreAccess:        "CauseStoreAccess",
	CauseUserEcall:          "CauseUserEcall",
	CauseSupervisorEcall:    "CauseSupervisorEcall",
	CauseMachineEcall:       "CauseMachineEcall",
	CauseFetchPageFault:     "CauseFetchPageFault",
	CauseLoadPageFault:      "CauseLoadPageFault",
	CauseStorePageFault:     "CauseStorePageFault",
	CauseSupervisorSoftware: "CauseSupervisorSoftware",
	CauseMachineSoftware:    "CauseMachineSoftware",
	CauseSupervisorTimer:    "CauseSupervisorTimer",
	CauseMachineTimer:       "CauseMachineTimer",
	CauseSupervisorExternal: "CauseSupervisorExternal",
	CauseMachineExternal:    "CauseMachineExternal",
}

func (c Cause) String() string {
	name, ok := causeMapping[c]
	if !ok {
		return fmt.Sprintf("Cause(%#x)", uint64(c))
	}
	return name
}

// IsInterrupt reports whether the cause is an asynchronous interrupt rather than an exception
func (c Cause) IsInterrupt() bool {
	return c&InterruptBit != 0
}

// Code is the cause value with the interrupt bit removed
func (c Cause) Code() uint64 {
	return uint64(c &^ InterruptBit)
}
