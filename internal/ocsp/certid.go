package ocsp

import (
	"bytes"
	"crypto"
	_ "crypto/sha1"   // register SHA-1 for crypto.Hash
	_ "crypto/sha256" // register SHA-224/256
	_ "crypto/sha512" // register SHA-384/512
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/remiblancher/ocspreq/internal/der"
)

// CertID identifies a certificate for which status is requested.
// CertID ::= SEQUENCE {
//
//	hashAlgorithm       AlgorithmIdentifier,
//	issuerNameHash      OCTET STRING,
//	issuerKeyHash       OCTET STRING,
//	serialNumber        CertificateSerialNumber }
type CertID struct {
	HashAlgorithm  OID
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	// SerialNumber holds the INTEGER content octets, big-endian.
	SerialNumber []byte
}

// ParseOID decodes an AlgorithmIdentifier whose parameters are NULL and
// returns its algorithm OID.
func ParseOID(raw []byte) (OID, error) {
	obj, err := der.Decode(raw)
	if err != nil {
		return OID{}, decodingError("OID", err)
	}
	return decodeOID(obj)
}

func decodeOID(obj der.Object) (OID, error) {
	s, err := obj.Sequence()
	if err != nil {
		return OID{}, decodingError("OID", err)
	}
	if s.Len() != 2 {
		return OID{}, lengthError("OID", s, "2")
	}

	id, _ := s.Get(0)
	nul, _ := s.Get(1)
	if id.Tag != der.TagOID {
		return OID{}, mismatchError("OID", id, "OBJECT IDENTIFIER")
	}
	if nul.Tag != der.TagNull {
		return OID{}, mismatchError("OID", nul, "NULL")
	}

	return OID{ID: bytes.Clone(id.Value)}, nil
}

// ParseCertID decodes a DER-encoded CertID.
func ParseCertID(raw []byte) (CertID, error) {
	obj, err := der.Decode(raw)
	if err != nil {
		return CertID{}, decodingError("CertID", err)
	}
	return decodeCertID(obj)
}

func decodeCertID(obj der.Object) (CertID, error) {
	s, err := obj.Sequence()
	if err != nil {
		return CertID{}, decodingError("CertID", err)
	}
	if s.Len() != 4 {
		return CertID{}, lengthError("CertID", s, "4")
	}

	want := [4]der.Tag{der.TagSequence, der.TagOctetString, der.TagOctetString, der.TagInteger}
	var items [4]der.Object
	for i := range items {
		items[i], _ = s.Get(i)
		if items[i].Tag != want[i] {
			return CertID{}, mismatchError("CertID", items[i], der.TagName(want[i]))
		}
	}

	alg, err := decodeOID(items[0])
	if err != nil {
		return CertID{}, err
	}

	return CertID{
		HashAlgorithm:  alg,
		IssuerNameHash: bytes.Clone(items[1].Value),
		IssuerKeyHash:  bytes.Clone(items[2].Value),
		SerialNumber:   bytes.Clone(items[3].Value),
	}, nil
}

// Hash returns the hash function named by HashAlgorithm, if it is a known
// hash algorithm.
func (id *CertID) Hash() (crypto.Hash, bool) {
	k, ok := id.HashAlgorithm.Known()
	if !ok || k.Class != ClassHash {
		return 0, false
	}
	return k.Hash, true
}

// Serial returns the serial number as a signed big integer.
func (id *CertID) Serial() *big.Int {
	n := new(big.Int).SetBytes(id.SerialNumber)
	if len(id.SerialNumber) > 0 && id.SerialNumber[0]&0x80 != 0 {
		// two's complement negative
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(id.SerialNumber))*8))
	}
	return n
}

// MatchesIssuer checks if the CertID's issuer hashes match the given issuer.
func (id *CertID) MatchesIssuer(issuer *x509.Certificate) bool {
	h, ok := id.Hash()
	if !ok {
		return false
	}

	nameHash, keyHash, err := IssuerHashes(h, issuer)
	if err != nil {
		return false
	}

	return bytes.Equal(id.IssuerNameHash, nameHash) &&
		bytes.Equal(id.IssuerKeyHash, keyHash)
}

// Matches checks if the CertID identifies serial issued by issuer.
func (id *CertID) Matches(issuer *x509.Certificate, serial *big.Int) bool {
	return id.MatchesIssuer(issuer) && id.Serial().Cmp(serial) == 0
}

// IssuerHashes computes the issuerNameHash and issuerKeyHash of a CertID for
// the given issuer.
func IssuerHashes(h crypto.Hash, issuer *x509.Certificate) (nameHash, keyHash []byte, err error) {
	if !h.Available() {
		return nil, nil, fmt.Errorf("unsupported hash algorithm: %v", h)
	}

	// RFC 6960: issuerKeyHash is the hash of the issuer's public key. The hash
	// shall be calculated over the value (excluding tag and length) of the
	// subject public key field in the issuer's certificate.
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(issuer.RawSubjectPublicKeyInfo, &spki); err != nil {
		return nil, nil, fmt.Errorf("failed to parse issuer SubjectPublicKeyInfo: %w", err)
	}

	hn := h.New()
	hn.Write(issuer.RawSubject)
	hk := h.New()
	hk.Write(spki.PublicKey.Bytes)

	return hn.Sum(nil), hk.Sum(nil), nil
}
