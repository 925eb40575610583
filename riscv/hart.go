package riscv

//go:generate mockgen -source hart.go -destination mocks/hart.go -package mocks

// Hart is the privileged state of one hardware thread that the trap handlers manipulate
type Hart interface {
	ID() int
	ReadCSR(csr CSR) uint64
	WriteCSR(csr CSR, value uint64)
	// TimeCmp is this hart's CLINT mtimecmp register
	TimeCmp() uint64
	SetTimeCmp(value uint64)
}

// SetCSRBits ORs mask into a CSR
func SetCSRBits(hart Hart, csr CSR, mask uint64) {
	hart.WriteCSR(csr, hart.ReadCSR(csr)|mask)
}

// ClearCSRBits clears the bits of mask in a CSR
func ClearCSRBits(hart Hart, csr CSR, mask uint64) {
	hart.WriteCSR(csr, hart.ReadCSR(csr)&^mask)
}
