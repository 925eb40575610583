package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

// WordAlignment is the granularity of every heap request: RV64 general registers are 8 bytes wide
const WordAlignment uint = 8

type Number interface {
	~int | ~uint | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// CheckAligned returns AlignmentError if value is not a multiple of alignment. alignment must
// be a power of two.
func CheckAligned[T Number](value T, alignment T, name string) error {
	if value&(alignment-1) != 0 {
		return cerrors.Wrapf(AlignmentError, "%s is %#x, which is not a multiple of %d", name, value, alignment)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// AlignDownAddress rounds a virtual or physical address down to the provided power-of-two alignment
func AlignDownAddress(address uint64, alignment uint64) uint64 {
	return address &^ (alignment - 1)
}
