package riscv

import "sync"

const csrCount = 1 << 12

// SimHart is a Hart backed by an in-memory CSR file. mhartid always reads as the hart id and
// ignores writes.
type SimHart struct {
	lock    sync.Mutex
	id      int
	csrs    [csrCount]uint64
	timeCmp uint64
}

var _ Hart = &SimHart{}

func NewSimHart(id int) *SimHart {
	return &SimHart{id: id}
}

func (h *SimHart) ID() int { return h.id }

func (h *SimHart) ReadCSR(csr CSR) uint64 {
	if csr == CSRMHartID {
		return uint64(h.id)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	return h.csrs[csr%csrCount]
}

func (h *SimHart) WriteCSR(csr CSR, value uint64) {
	if csr == CSRMHartID {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	h.csrs[csr%csrCount] = value
}

func (h *SimHart) TimeCmp() uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.timeCmp
}

func (h *SimHart) SetTimeCmp(value uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.timeCmp = value
}

// RaiseTrap loads the machine trap registers as the hardware would on entry to the machine trap
// vector
func (h *SimHart) RaiseTrap(cause Cause, epc, tval uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.csrs[CSRMCause] = uint64(cause)
	h.csrs[CSRMEPC] = epc
	h.csrs[CSRMTVal] = tval
}

// RaiseSupervisorTrap loads the supervisor trap registers as the hardware would on entry to stvec
func (h *SimHart) RaiseSupervisorTrap(cause Cause, epc, tval uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.csrs[CSRSCause] = uint64(cause)
	h.csrs[CSRSEPC] = epc
	h.csrs[CSRSTVal] = tval
}
