// Package der provides tag/length/value access to DER-encoded ASN.1 data.
//
// It covers the subset OCSP requests need: single-octet tags, definite
// lengths and indexed access to the immediate children of a constructed
// object. Every object keeps its absolute offset in the buffer handed to
// Decode so that errors point into the caller's message.
package der

import (
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Tag is a single-octet ASN.1 identifier (class, constructed bit and number).
type Tag = cbasn1.Tag

// Universal tags used by OCSP requests.
const (
	TagBoolean         = cbasn1.BOOLEAN
	TagInteger         = cbasn1.INTEGER
	TagBitString       = cbasn1.BIT_STRING
	TagOctetString     = cbasn1.OCTET_STRING
	TagNull            = cbasn1.NULL
	TagOID             = cbasn1.OBJECT_IDENTIFIER
	TagIA5String       = cbasn1.IA5String
	TagGeneralizedTime = cbasn1.GeneralizedTime
	TagSequence        = cbasn1.SEQUENCE
)

const (
	classContextSpecific = 0x80
	constructedBit       = 0x20
)

// Explicit returns the constructed context-specific tag [n] used by
// EXPLICIT tagging.
func Explicit(n uint8) Tag {
	return Tag(n).Constructed().ContextSpecific()
}

// IsExplicit reports whether t is a constructed context-specific tag, and
// returns its number.
func IsExplicit(t Tag) (uint8, bool) {
	if uint8(t)&0xe0 != classContextSpecific|constructedBit {
		return 0, false
	}
	return uint8(t) & 0x1f, true
}

// Object is one decoded DER element. Raw and Value alias the decoded buffer.
type Object struct {
	Tag    Tag
	Raw    []byte // full TLV
	Value  []byte // content octets
	Offset int    // offset of Raw in the top-level buffer
}

// HeaderLen returns the length of the identifier and length octets.
func (o Object) HeaderLen() int {
	return len(o.Raw) - len(o.Value)
}

// Constructed reports whether the object carries the constructed bit.
func (o Object) Constructed() bool {
	return uint8(o.Tag)&constructedBit != 0
}

// Decode reads exactly one DER object from b. Trailing bytes are rejected.
func Decode(b []byte) (Object, error) {
	return decodeAt(b, 0)
}

func decodeAt(b []byte, base int) (Object, error) {
	obj, rest, err := readObject(b, base)
	if err != nil {
		return Object{}, err
	}
	if len(rest) != 0 {
		return Object{}, &SyntaxError{Offset: base + len(obj.Raw), Err: ErrTrailingData}
	}
	return obj, nil
}

// readObject reads the first object of b and returns the unread remainder.
func readObject(b []byte, base int) (Object, []byte, error) {
	if err := checkHeader(b); err != nil {
		return Object{}, nil, &SyntaxError{Offset: base, Err: err}
	}

	s := cryptobyte.String(b)
	var elem cryptobyte.String
	var tag cbasn1.Tag
	if !s.ReadAnyASN1Element(&elem, &tag) {
		// checkHeader accepted the framing, so cryptobyte objected to the
		// DER minimality rules.
		return Object{}, nil, &SyntaxError{Offset: base, Err: ErrInvalidLength}
	}
	raw := elem

	var content cryptobyte.String
	if !elem.ReadAnyASN1(&content, &tag) {
		return Object{}, nil, &SyntaxError{Offset: base, Err: ErrInvalidLength}
	}

	return Object{
		Tag:    tag,
		Raw:    raw,
		Value:  content,
		Offset: base,
	}, s, nil
}

// checkHeader classifies framing problems that cryptobyte only reports as a
// boolean failure.
func checkHeader(b []byte) error {
	if len(b) < 2 {
		return ErrTruncated
	}
	if b[0]&0x1f == 0x1f {
		return ErrHighTagNumber
	}

	lenByte := b[1]
	if lenByte&0x80 == 0 {
		if len(b)-2 < int(lenByte) {
			return ErrTruncated
		}
		return nil
	}

	lenLen := int(lenByte & 0x7f)
	if lenLen == 0 {
		return ErrIndefiniteLength
	}
	if lenLen > 4 {
		return ErrInvalidLength
	}
	if len(b) < 2+lenLen {
		return ErrTruncated
	}

	var length uint64
	for _, c := range b[2 : 2+lenLen] {
		length = length<<8 | uint64(c)
	}
	if uint64(len(b)-2-lenLen) < length {
		return ErrTruncated
	}
	return nil
}

// Unwrap decodes the value of an EXPLICIT tagged object as its single inner
// object.
func (o Object) Unwrap() (Object, error) {
	return decodeAt(o.Value, o.Offset+o.HeaderLen())
}

// ObjectIdentifier parses o as an OBJECT IDENTIFIER.
func (o Object) ObjectIdentifier() (asn1.ObjectIdentifier, error) {
	var oid asn1.ObjectIdentifier
	s := cryptobyte.String(o.Raw)
	if o.Tag != TagOID || !s.ReadASN1ObjectIdentifier(&oid) {
		return nil, &SyntaxError{Offset: o.Offset, Err: ErrInvalidOID}
	}
	return oid, nil
}

// Int64 parses o as an INTEGER that fits in an int64.
func (o Object) Int64() (int64, error) {
	var v int64
	s := cryptobyte.String(o.Raw)
	if o.Tag != TagInteger || !s.ReadASN1Integer(&v) {
		return 0, &SyntaxError{Offset: o.Offset, Err: ErrInvalidInteger}
	}
	return v, nil
}

// TagName returns a short diagnostic name for t.
func TagName(t Tag) string {
	if n, ok := IsExplicit(t); ok {
		return fmt.Sprintf("[%d]", n)
	}
	switch t {
	case TagBoolean:
		return "BOOLEAN"
	case TagInteger:
		return "INTEGER"
	case TagBitString:
		return "BIT STRING"
	case TagOctetString:
		return "OCTET STRING"
	case TagNull:
		return "NULL"
	case TagOID:
		return "OBJECT IDENTIFIER"
	case TagIA5String:
		return "IA5String"
	case TagGeneralizedTime:
		return "GeneralizedTime"
	case TagSequence:
		return "SEQUENCE"
	}
	return fmt.Sprintf("tag 0x%02x", uint8(t))
}
