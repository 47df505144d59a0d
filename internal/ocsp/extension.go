package ocsp

import (
	"bytes"
	"fmt"

	"github.com/remiblancher/ocspreq/internal/der"
)

// Extension is a decoded OCSP request or single-request extension. The set
// of implementations is closed: *Nonce and *CRLReference.
//
// Extension ::= SEQUENCE {
//
//	extnID      OBJECT IDENTIFIER,
//	critical    BOOLEAN DEFAULT FALSE,
//	extnValue   OCTET STRING }
type Extension interface {
	// ExtensionID returns the registry entry the extension was selected by.
	ExtensionID() KnownOID
	// IsCritical reports the extension's critical flag.
	IsCritical() bool

	isExtension()
}

// Nonce is the id-pkix-ocsp-nonce extension (RFC 6960 §4.4.1, RFC 8954).
type Nonce struct {
	OID      KnownOID
	Critical bool
	Nonce    []byte
}

func (n *Nonce) ExtensionID() KnownOID { return n.OID }
func (n *Nonce) IsCritical() bool      { return n.Critical }
func (*Nonce) isExtension()            {}

// CRLReference is the id-pkix-ocsp-crl extension (RFC 6960 §4.4.2).
// A nil field was absent from the encoding. Field contents are kept
// whatever their inner tag.
//
// CrlID ::= SEQUENCE {
//
//	crlUrl   [0] EXPLICIT IA5String OPTIONAL,
//	crlNum   [1] EXPLICIT INTEGER OPTIONAL,
//	crlTime  [2] EXPLICIT GeneralizedTime OPTIONAL }
type CRLReference struct {
	OID      KnownOID
	Critical bool
	URL      []byte
	Number   []byte
	Time     []byte
}

func (c *CRLReference) ExtensionID() KnownOID { return c.OID }
func (c *CRLReference) IsCritical() bool      { return c.Critical }
func (*CRLReference) isExtension()            {}

// extensionDecoder decodes the elements of an extension entry that follow
// the extnID and the optional critical flag.
type extensionDecoder func(entry der.Object, k KnownOID, critical bool, rest []der.Object) (Extension, error)

var extensionDecoders = map[OIDID]extensionDecoder{
	ExtNonce:  decodeNonce,
	ExtCRLRef: decodeCRLReference,

	// Recognized, not decoded.
	ExtResponseType:   nil,
	ExtArchiveCutoff:  nil,
	ExtCRLReason:      nil,
	ExtInvalidDate:    nil,
	ExtServiceLocator: nil,
	ExtPrefSigAlgs:    nil,
	ExtExtendedRevoke: nil,
}

// ParseExtensions decodes a DER SEQUENCE OF Extension. Any failing entry
// fails the whole call.
func ParseExtensions(raw []byte) ([]Extension, error) {
	obj, err := der.Decode(raw)
	if err != nil {
		return nil, decodingError("Extensions", err)
	}
	return decodeExtensions(obj)
}

// ParseExtension decodes a single DER-encoded Extension.
func ParseExtension(entry []byte) (Extension, error) {
	obj, err := der.Decode(entry)
	if err != nil {
		return nil, decodingError("Extension", err)
	}
	return decodeExtension(obj)
}

func decodeExtensions(obj der.Object) ([]Extension, error) {
	s, err := obj.Sequence()
	if err != nil {
		return nil, decodingError("Extensions", err)
	}

	exts := make([]Extension, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		item, err := s.Get(i)
		if err != nil {
			return nil, decodingError("Extensions", err)
		}
		ext, err := decodeExtension(item)
		if err != nil {
			return nil, err
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

func decodeExtension(obj der.Object) (Extension, error) {
	s, err := obj.Sequence()
	if err != nil {
		return nil, decodingError("Extension", err)
	}

	id, err := s.Get(0)
	if err != nil {
		return nil, decodingError("Extension", err)
	}
	if id.Tag != der.TagOID {
		return nil, mismatchError("Extension OID", id, "OBJECT IDENTIFIER")
	}

	k, ok := ResolveOID(id.Value)
	if !ok {
		return nil, newError(KindUnknownOID, "Extension OID", id.Offset, OID{ID: id.Value}.String(), nil)
	}
	if k.Class != ClassExtension {
		return nil, newError(KindUnknownExtension, "Extension OID", id.Offset, k.String(), nil)
	}

	dec, ok := extensionDecoders[k.ID]
	if !ok {
		return nil, newError(KindUnknownExtension, "Extension OID", id.Offset, k.String(), nil)
	}
	if dec == nil {
		return nil, newError(KindUnsupported, "Extension", obj.Offset, k.Name, nil)
	}

	rest := make([]der.Object, 0, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		item, _ := s.Get(i)
		rest = append(rest, item)
	}

	critical := false
	if len(rest) > 0 && rest[0].Tag == der.TagBoolean {
		if len(rest[0].Value) != 1 || (rest[0].Value[0] != 0x00 && rest[0].Value[0] != 0xff) {
			return nil, newError(KindDecoding, "Extension critical", rest[0].Offset, "invalid BOOLEAN", nil)
		}
		critical = rest[0].Value[0] == 0xff
		rest = rest[1:]
	}

	return dec(obj, k, critical, rest)
}

func decodeNonce(entry der.Object, k KnownOID, critical bool, rest []der.Object) (Extension, error) {
	if len(rest) == 0 {
		return nil, newError(KindDecoding, "Nonce", entry.Offset, "missing extnValue", nil)
	}
	if len(rest) != 1 {
		return nil, newError(KindLength, "Nonce", rest[1].Offset, fmt.Sprintf("got %d values, want 1", len(rest)), nil)
	}
	v := rest[0]
	if v.Tag != der.TagOctetString {
		return nil, mismatchError("Nonce", v, "OCTET STRING")
	}

	// RFC 8954 wraps the nonce in a second OCTET STRING; accept both forms.
	nonce := v.Value
	if inner, err := v.Unwrap(); err == nil && inner.Tag == der.TagOctetString {
		nonce = inner.Value
	}

	return &Nonce{
		OID:      k,
		Critical: critical,
		Nonce:    bytes.Clone(nonce),
	}, nil
}

func decodeCRLReference(_ der.Object, k KnownOID, critical bool, rest []der.Object) (Extension, error) {
	// RFC 6960 carries the CrlID inside extnValue; older encoders place the
	// tagged fields directly in the extension entry.
	if len(rest) == 1 && rest[0].Tag == der.TagOctetString {
		crlID, err := rest[0].Unwrap()
		if err != nil {
			return nil, decodingError("CRLReference", err)
		}
		if crlID.Tag != der.TagSequence {
			return nil, mismatchError("CRLReference", crlID, "SEQUENCE")
		}
		s, err := crlID.Sequence()
		if err != nil {
			return nil, decodingError("CRLReference", err)
		}
		rest = rest[:0:0]
		for i := 0; i < s.Len(); i++ {
			item, _ := s.Get(i)
			rest = append(rest, item)
		}
	}

	ref := &CRLReference{OID: k, Critical: critical}
	for _, item := range rest {
		n, ok := der.IsExplicit(item.Tag)
		if !ok || n > 2 {
			return nil, mismatchError("CRLReference", item, "[0], [1] or [2]")
		}

		inner, err := item.Unwrap()
		if err != nil {
			return nil, decodingError("CRLReference", err)
		}

		// A repeated field replaces the earlier value.
		var dst *[]byte
		switch n {
		case 0:
			dst = &ref.URL
		case 1:
			dst = &ref.Number
		case 2:
			dst = &ref.Time
		}
		*dst = bytes.Clone(inner.Value)
		if *dst == nil {
			*dst = []byte{}
		}
	}

	return ref, nil
}
