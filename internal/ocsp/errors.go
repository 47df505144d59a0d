package ocsp

import (
	"errors"
	"fmt"

	"github.com/remiblancher/ocspreq/internal/der"
)

// Kind is a stable category for programmatic error handling.
// Callers should branch on Kind (or the matching sentinel) and Field, never
// on Error() strings.
type Kind string

const (
	KindDecoding         Kind = "decoding"
	KindLength           Kind = "length"
	KindMismatch         Kind = "mismatch"
	KindUnknownOID       Kind = "unknown_oid"
	KindUnknownExtension Kind = "unknown_extension"
	KindText             Kind = "text"
	KindUnsupported      Kind = "unsupported"
)

// Sentinel errors, one per Kind. Use errors.Is() to check for these errors
// through the error chain.
var (
	// ErrDecoding indicates the DER framing could not be parsed.
	ErrDecoding = errors.New("malformed DER")

	// ErrLength indicates a sequence has an unexpected number of elements.
	ErrLength = errors.New("unexpected element count")

	// ErrMismatch indicates an element carries an unexpected tag.
	ErrMismatch = errors.New("unexpected tag")

	// ErrUnknownOID indicates a well-formed OID absent from the registry.
	ErrUnknownOID = errors.New("unknown OID")

	// ErrUnknownExtension indicates an OID that is not an OCSP extension.
	ErrUnknownExtension = errors.New("unknown OCSP extension")

	// ErrText indicates a text field holds invalid characters.
	ErrText = errors.New("invalid text")

	// ErrUnsupported indicates a recognized construct this decoder does not
	// handle.
	ErrUnsupported = errors.New("recognized but unsupported")
)

var kindSentinels = map[Kind]error{
	KindDecoding:         ErrDecoding,
	KindLength:           ErrLength,
	KindMismatch:         ErrMismatch,
	KindUnknownOID:       ErrUnknownOID,
	KindUnknownExtension: ErrUnknownExtension,
	KindText:             ErrText,
	KindUnsupported:      ErrUnsupported,
}

// Error is the decoder's structured error.
//
// Field names the structure being validated when the error was raised.
// Offset is the byte offset of the offending element in the buffer given to
// the Parse function. Location is only populated in builds tagged
// ocsp_debug and never takes part in error identity.
type Error struct {
	Kind     Kind
	Field    string
	Offset   int
	Detail   string
	Err      error
	Location string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("ocsp: %s: %v at offset %d", e.Field, kindSentinels[e.Kind], e.Offset)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Location != "" {
		msg += " [" + e.Location + "]"
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's Kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// FieldOf returns the field label of a structured error, or "" if err is not
// an *Error.
func FieldOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Field
}

func newError(kind Kind, field string, offset int, detail string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Field:    field,
		Offset:   offset,
		Detail:   detail,
		Err:      cause,
		Location: callerLocation(),
	}
}

// decodingError wraps a primitive-layer failure, keeping its offset.
func decodingError(field string, err error) error {
	off, _ := der.OffsetOf(err)
	return newError(KindDecoding, field, off, "", err)
}

func lengthError(field string, seq der.Sequence, want string) error {
	detail := fmt.Sprintf("got %d elements, want %s", seq.Len(), want)
	return newError(KindLength, field, seq.Parent().Offset, detail, nil)
}

func mismatchError(field string, obj der.Object, want string) error {
	detail := fmt.Sprintf("got %s, want %s", der.TagName(obj.Tag), want)
	return newError(KindMismatch, field, obj.Offset, detail, nil)
}
