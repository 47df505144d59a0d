package ocsp

import (
	"bytes"
	"fmt"

	"github.com/remiblancher/ocspreq/internal/der"
)

// OCSPRequest represents an OCSP request (RFC 6960 §4.1.1).
// OCSPRequest ::= SEQUENCE {
//
//	tbsRequest                  TBSRequest,
//	optionalSignature   [0]     EXPLICIT Signature OPTIONAL }
type OCSPRequest struct {
	TBSRequest TBSRequest
	// Signature is nil for unsigned requests.
	Signature *Signature
}

// TBSRequest is the to-be-signed part of an OCSP request.
// TBSRequest ::= SEQUENCE {
//
//	version             [0]     EXPLICIT Version DEFAULT v1,
//	requestorName       [1]     EXPLICIT GeneralName OPTIONAL,
//	requestList                 SEQUENCE OF Request,
//	requestExtensions   [2]     EXPLICIT Extensions OPTIONAL }
type TBSRequest struct {
	Version int
	// RequestorName holds the IA5String content, nil when absent.
	RequestorName []byte
	RequestList   []OneReq
	Extensions    []Extension
}

// OneReq represents a single certificate status request.
// Request ::= SEQUENCE {
//
//	reqCert                     CertID,
//	singleRequestExtensions     [0] EXPLICIT Extensions OPTIONAL }
type OneReq struct {
	CertID     CertID
	Extensions []Extension
}

// Signature represents an optional signature on the request.
// Signature ::= SEQUENCE {
//
//	signatureAlgorithm      AlgorithmIdentifier,
//	signature               BIT STRING,
//	certs               [0] EXPLICIT SEQUENCE OF Certificate OPTIONAL }
type Signature struct {
	Algorithm OID
	// Signature is the complete second element, tag and length included.
	Signature []byte
	// Certs holds the DER encoding of each certificate.
	Certs [][]byte
}

// ParseRequest parses a DER-encoded OCSP request.
func ParseRequest(data []byte) (*OCSPRequest, error) {
	obj, err := der.Decode(data)
	if err != nil {
		return nil, decodingError("OCSPRequest", err)
	}
	if obj.Tag != der.TagSequence {
		return nil, mismatchError("OCSPRequest", obj, "SEQUENCE")
	}

	s, err := obj.Sequence()
	if err != nil {
		return nil, decodingError("OCSPRequest", err)
	}
	tbs, err := s.Get(0)
	if err != nil {
		return nil, decodingError("OCSPRequest", err)
	}

	var req OCSPRequest
	req.TBSRequest, err = decodeTBSRequest(tbs)
	if err != nil {
		return nil, err
	}

	// Only the signed and unsigned shapes exist; longer sequences carry no
	// signature.
	if s.Len() == 2 {
		wrapped, _ := s.Get(1)
		if wrapped.Tag != der.Explicit(0) {
			return nil, mismatchError("Signature [0]", wrapped, "[0]")
		}
		inner, err := wrapped.Unwrap()
		if err != nil {
			return nil, decodingError("Signature [0]", err)
		}
		sig, err := decodeSignature(inner)
		if err != nil {
			return nil, err
		}
		req.Signature = &sig
	}

	return &req, nil
}

// ParseTBSRequest decodes a DER-encoded TBSRequest.
func ParseTBSRequest(raw []byte) (TBSRequest, error) {
	obj, err := der.Decode(raw)
	if err != nil {
		return TBSRequest{}, decodingError("TBSRequest", err)
	}
	return decodeTBSRequest(obj)
}

func decodeTBSRequest(obj der.Object) (TBSRequest, error) {
	if obj.Tag != der.TagSequence {
		return TBSRequest{}, mismatchError("TBSRequest", obj, "SEQUENCE")
	}
	s, err := obj.Sequence()
	if err != nil {
		return TBSRequest{}, decodingError("TBSRequest", err)
	}

	var tbs TBSRequest
	// A repeated tagged field replaces the earlier value; request lists
	// accumulate.
	for i := 0; i < s.Len(); i++ {
		item, _ := s.Get(i)
		switch item.Tag {
		case der.Explicit(0):
			if tbs.Version, err = decodeVersion(item); err != nil {
				return TBSRequest{}, err
			}
		case der.Explicit(1):
			if tbs.RequestorName, err = decodeRequestorName(item); err != nil {
				return TBSRequest{}, err
			}
		case der.Explicit(2):
			inner, err := item.Unwrap()
			if err != nil {
				return TBSRequest{}, decodingError("TBSRequest requestExtensions", err)
			}
			if tbs.Extensions, err = decodeExtensions(inner); err != nil {
				return TBSRequest{}, err
			}
		case der.TagSequence:
			list, err := decodeRequestList(item)
			if err != nil {
				return TBSRequest{}, err
			}
			tbs.RequestList = append(tbs.RequestList, list...)
		default:
			return TBSRequest{}, mismatchError("TBSRequest", item, "[0], [1], [2] or SEQUENCE")
		}
	}

	if tbs.RequestList == nil {
		tbs.RequestList = []OneReq{}
	}
	return tbs, nil
}

func decodeVersion(item der.Object) (int, error) {
	inner, err := item.Unwrap()
	if err != nil {
		return 0, decodingError("TBSRequest version", err)
	}
	if inner.Tag != der.TagInteger {
		return 0, mismatchError("TBSRequest version", inner, "INTEGER")
	}
	v, err := inner.Int64()
	if err != nil {
		return 0, decodingError("TBSRequest version", err)
	}
	if v != 0 {
		return 0, newError(KindUnsupported, "TBSRequest version", inner.Offset,
			fmt.Sprintf("version %d", v), nil)
	}
	return int(v), nil
}

func decodeRequestorName(item der.Object) ([]byte, error) {
	inner, err := item.Unwrap()
	if err != nil {
		return nil, decodingError("TBSRequest requestorName", err)
	}
	if inner.Tag != der.TagIA5String {
		return nil, mismatchError("TBSRequest requestorName", inner, "IA5String")
	}
	for i, c := range inner.Value {
		if c >= 0x80 {
			return nil, newError(KindText, "TBSRequest requestorName",
				inner.Offset+inner.HeaderLen()+i, fmt.Sprintf("non-ASCII byte 0x%02x", c), nil)
		}
	}
	return append([]byte{}, inner.Value...), nil
}

func decodeRequestList(item der.Object) ([]OneReq, error) {
	s, err := item.Sequence()
	if err != nil {
		return nil, decodingError("TBSRequest requestList", err)
	}

	list := make([]OneReq, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		child, _ := s.Get(i)
		one, err := decodeOneReq(child)
		if err != nil {
			return nil, err
		}
		list = append(list, one)
	}
	return list, nil
}

// ParseOneReq decodes a DER-encoded single Request.
func ParseOneReq(raw []byte) (OneReq, error) {
	obj, err := der.Decode(raw)
	if err != nil {
		return OneReq{}, decodingError("OneReq", err)
	}
	return decodeOneReq(obj)
}

func decodeOneReq(obj der.Object) (OneReq, error) {
	if obj.Tag != der.TagSequence {
		return OneReq{}, mismatchError("OneReq", obj, "SEQUENCE")
	}
	s, err := obj.Sequence()
	if err != nil {
		return OneReq{}, decodingError("OneReq", err)
	}
	if s.Len() != 1 && s.Len() != 2 {
		return OneReq{}, lengthError("OneReq", s, "1 or 2")
	}

	certID, _ := s.Get(0)
	var one OneReq
	if one.CertID, err = decodeCertID(certID); err != nil {
		return OneReq{}, err
	}

	if s.Len() == 2 {
		exts, _ := s.Get(1)
		switch exts.Tag {
		case der.Explicit(0):
			if exts, err = exts.Unwrap(); err != nil {
				return OneReq{}, decodingError("OneReq singleRequestExtensions", err)
			}
		case der.TagSequence:
		default:
			return OneReq{}, mismatchError("OneReq", exts, "[0] or SEQUENCE")
		}
		if one.Extensions, err = decodeExtensions(exts); err != nil {
			return OneReq{}, err
		}
	}

	return one, nil
}

// ParseSignature decodes a DER-encoded Signature.
func ParseSignature(raw []byte) (Signature, error) {
	obj, err := der.Decode(raw)
	if err != nil {
		return Signature{}, decodingError("Signature", err)
	}
	return decodeSignature(obj)
}

func decodeSignature(obj der.Object) (Signature, error) {
	s, err := obj.Sequence()
	if err != nil {
		return Signature{}, decodingError("Signature", err)
	}
	if s.Len() != 2 && s.Len() != 3 {
		return Signature{}, lengthError("Signature", s, "2 or 3")
	}

	alg, _ := s.Get(0)
	bits, _ := s.Get(1)
	if alg.Tag != der.TagSequence {
		return Signature{}, mismatchError("Signature", alg, "SEQUENCE")
	}

	var sig Signature
	if sig.Algorithm, err = decodeOID(alg); err != nil {
		return Signature{}, err
	}
	sig.Signature = bytes.Clone(bits.Raw)

	if s.Len() == 3 {
		certs, _ := s.Get(2)
		if sig.Certs, err = decodeCerts(certs); err != nil {
			return Signature{}, err
		}
	}

	return sig, nil
}

func decodeCerts(obj der.Object) ([][]byte, error) {
	if obj.Tag != der.Explicit(0) {
		return nil, mismatchError("Signature certs", obj, "[0]")
	}
	list, err := obj.Unwrap()
	if err != nil {
		return nil, decodingError("Signature certs", err)
	}
	if list.Tag != der.TagSequence {
		return nil, mismatchError("Signature certs", list, "SEQUENCE")
	}
	s, err := list.Sequence()
	if err != nil {
		return nil, decodingError("Signature certs", err)
	}

	certs := make([][]byte, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		cert, _ := s.Get(i)
		if cert.Tag != der.TagSequence {
			return nil, mismatchError("Signature certs", cert, "SEQUENCE")
		}
		certs = append(certs, bytes.Clone(cert.Raw))
	}
	return certs, nil
}

// GetNonce returns the value of the request's nonce extension, if present.
func (req *OCSPRequest) GetNonce() []byte {
	for _, ext := range req.TBSRequest.Extensions {
		if n, ok := ext.(*Nonce); ok {
			return n.Nonce
		}
	}
	return nil
}

// IsSigned reports whether the request carries a signature.
func (req *OCSPRequest) IsSigned() bool {
	return req.Signature != nil
}
