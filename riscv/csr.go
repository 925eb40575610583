package riscv

import "fmt"

// CSR is the 12-bit address of a control and status register
type CSR uint16

const (
	CSRSStatus  CSR = 0x100
	CSRSIE      CSR = 0x104
	CSRSTVec    CSR = 0x105
	CSRSScratch CSR = 0x140
	CSRSEPC     CSR = 0x141
	CSRSCause   CSR = 0x142
	CSRSTVal    CSR = 0x143
	CSRSIP      CSR = 0x144
	CSRSATP     CSR = 0x180

	CSRMStatus  CSR = 0x300
	CSRMEDeleg  CSR = 0x302
	CSRMIDeleg  CSR = 0x303
	CSRMIE      CSR = 0x304
	CSRMTVec    CSR = 0x305
	CSRMScratch CSR = 0x340
	CSRMEPC     CSR = 0x341
	CSRMCause   CSR = 0x342
	CSRMTVal    CSR = 0x343
	CSRMIP      CSR = 0x344
	CSRMHartID  CSR = 0xF14
)

var csrMapping = map[CSR]string{
	CSRSStatus:  "sstatus",
	CSRSIE:      "sie",
	CSRSTVec:    "stvec",
	CSRSScratch: "sscratch",
	CSRSEPC:     "sepc",
	CSRSCause:   "scause",
	CSRSTVal:    "stval",
	CSRSIP:      "sip",
	CSRSATP:     "satp",
	CSRMStatus:  "mstatus",
	CSRMEDeleg:  "medeleg",
	CSRMIDeleg:  "mideleg",
	CSRMIE:      "mie",
	CSRMTVec:    "mtvec",
	CSRMScratch: "mscratch",
	CSRMEPC:     "mepc",
	CSRMCause:   "mcause",
	CSRMTVal:    "mtval",
	CSRMIP:      "mip",
	CSRMHartID:  "mhartid",
}

func (c CSR) String() string {
	name, ok := csrMapping[c]
	if !ok {
		return fmt.Sprintf("csr(%#x)", uint16(c))
	}
	return name
}

const (
	// SIPSSIP is the supervisor software interrupt pending bit of sip
	SIPSSIP uint64 = 1 << 1
	// SIESSIE enables supervisor software interrupts in sie
	SIESSIE uint64 = 1 << 1

	// SStatusSPIE is the interrupt enable that sret restores into SIE
	SStatusSPIE uint64 = 1 << 5
	// SStatusSPP is the previous privilege mode: 1 for supervisor, 0 for user
	SStatusSPP uint64 = 1 << 8

	// MIEMTIE enables machine timer interrupts in mie
	MIEMTIE uint64 = 1 << 7

	// SATPSv39 selects Sv39 translation in the satp mode field
	SATPSv39 uint64 = 8 << 60
)

// MakeSATP builds a satp value that enables Sv39 with the page table rooted at the physical
// address root
func MakeSATP(root uint64) uint64 {
	return SATPSv39 | root>>12
}
