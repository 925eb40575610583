package memutils

import "github.com/pkg/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")
	// AlignmentError is the error returned from CheckAligned if a size or address is not a multiple
	// of the requested alignment
	AlignmentError error = errors.New("value is not aligned")
)
