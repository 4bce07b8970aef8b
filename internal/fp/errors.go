package fp

import "errors"

var (
	// ErrOverflow is returned when an operation's result cannot be represented
	// in the signed 128-bit two's-complement mantissa FP64.64 is built on.
	ErrOverflow = errors.New("fp: result overflows Q64.64 range")
	// ErrDivByZero is returned by div/divu when the divisor is zero.
	ErrDivByZero = errors.New("fp: division by zero")
	// ErrNegative is returned by ToUint when the value is negative.
	ErrNegative = errors.New("fp: cannot convert negative value to unsigned integer")
)
