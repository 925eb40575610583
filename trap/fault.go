package trap

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/pke/riscv"
)

// ErrResolver marks faults raised because an illegal instruction could not be traced back to its
// source line
var ErrResolver = errors.New("Illegal instruction handle error!")

// Fault is a trap the kernel cannot recover from. Reason is the message the machine halts with.
type Fault struct {
	Cause  riscv.Cause
	EPC    uint64
	TVal   uint64
	Reason string
	// Err is the failure that led to the fault, if there was one
	Err error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return f.Reason
}

func (f *Fault) Unwrap() error { return f.Err }

func newFault(cause riscv.Cause, epc, tval uint64, reason string) *Fault {
	return &Fault{
		Cause:  cause,
		EPC:    epc,
		TVal:   tval,
		Reason: reason,
	}
}
