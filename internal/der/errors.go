package der

import (
	"errors"
	"fmt"
)

// SyntaxError reports malformed DER at a byte offset of the decoded buffer.
type SyntaxError struct {
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("der: %v at offset %d", e.Err, e.Offset)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SyntaxError) Unwrap() error { return e.Err }

// Sentinel causes carried by SyntaxError.
var (
	// ErrTruncated indicates the input ends before the declared length.
	ErrTruncated = errors.New("truncated input")

	// ErrInvalidLength indicates a malformed or non-minimal length encoding.
	ErrInvalidLength = errors.New("invalid length encoding")

	// ErrIndefiniteLength indicates a BER indefinite length, which DER forbids.
	ErrIndefiniteLength = errors.New("indefinite length")

	// ErrHighTagNumber indicates a multi-octet identifier.
	ErrHighTagNumber = errors.New("high tag number form not supported")

	// ErrTrailingData indicates bytes after the decoded object.
	ErrTrailingData = errors.New("trailing data")

	// ErrNotConstructed indicates a primitive object used as a sequence.
	ErrNotConstructed = errors.New("object is not constructed")

	// ErrIndexOutOfRange indicates a sequence index past its length.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidOID indicates a malformed OBJECT IDENTIFIER.
	ErrInvalidOID = errors.New("invalid object identifier")

	// ErrInvalidInteger indicates a malformed or oversized INTEGER.
	ErrInvalidInteger = errors.New("invalid integer")
)

// OffsetOf returns the offset carried by a SyntaxError in err's chain.
func OffsetOf(err error) (int, bool) {
	var se *SyntaxError
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Offset, true
}
