package ocsp

import (
	"crypto"
	"encoding/asn1"
	"fmt"

	"github.com/remiblancher/ocspreq/internal/der"
)

// OCSP OIDs per RFC 6960
var (
	// id-pkix-ocsp OBJECT IDENTIFIER ::= { id-ad-ocsp }
	// id-ad-ocsp OBJECT IDENTIFIER ::= { iso(1) identified-organization(3)
	//   dod(6) internet(1) security(5) mechanisms(5) pkix(7) ad(48) 1 }
	OIDPKIXOcsp = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}

	// id-pkix-ocsp-nonce OBJECT IDENTIFIER ::= { id-pkix-ocsp 2 }
	OIDOcspNonce = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 2}

	// id-pkix-ocsp-crl OBJECT IDENTIFIER ::= { id-pkix-ocsp 3 }
	OIDOcspCRL = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 3}

	// id-pkix-ocsp-response OBJECT IDENTIFIER ::= { id-pkix-ocsp 4 }
	OIDOcspResponse = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 4}

	// id-pkix-ocsp-archive-cutoff OBJECT IDENTIFIER ::= { id-pkix-ocsp 6 }
	OIDOcspArchiveCutoff = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 6}

	// id-pkix-ocsp-service-locator OBJECT IDENTIFIER ::= { id-pkix-ocsp 7 }
	OIDOcspServiceLocator = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 7}

	// id-pkix-ocsp-pref-sig-algs OBJECT IDENTIFIER ::= { id-pkix-ocsp 8 }
	OIDOcspPrefSigAlgs = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 8}

	// id-pkix-ocsp-extended-revoke OBJECT IDENTIFIER ::= { id-pkix-ocsp 9 }
	OIDOcspExtendedRevoke = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 9}

	// id-ce-cRLReasons and id-ce-invalidityDate (RFC 5280), reused by OCSP
	// single extensions.
	OIDCRLReason   = asn1.ObjectIdentifier{2, 5, 29, 21}
	OIDInvalidDate = asn1.ObjectIdentifier{2, 5, 29, 24}
)

// Hash algorithm OIDs
var (
	OIDMD5    = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 5}
	OIDSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA224 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}
	OIDSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// Signature algorithm OIDs
var (
	// RSA
	OIDSHA1WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	OIDSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDSHA384WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDSHA512WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}

	// ECDSA
	OIDECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	OIDECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	OIDECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}

	// Ed25519
	OIDEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

	// ML-DSA (FIPS 204)
	OIDMLDSA44 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 17}
	OIDMLDSA65 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18}
	OIDMLDSA87 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 19}
)

// OIDClass groups registry entries by the position they may appear in.
type OIDClass int

const (
	ClassHash OIDClass = iota + 1
	ClassExtension
	ClassSignature
)

// String returns the class name.
func (c OIDClass) String() string {
	switch c {
	case ClassHash:
		return "hash"
	case ClassExtension:
		return "extension"
	case ClassSignature:
		return "signature"
	}
	return "unknown"
}

// OIDID is a stable identifier for a registry entry.
type OIDID int

const (
	OIDIDUnknown OIDID = iota

	HashMD5
	HashSHA1
	HashSHA224
	HashSHA256
	HashSHA384
	HashSHA512

	ExtNonce
	ExtCRLRef
	ExtResponseType
	ExtArchiveCutoff
	ExtCRLReason
	ExtInvalidDate
	ExtServiceLocator
	ExtPrefSigAlgs
	ExtExtendedRevoke

	SigSHA1WithRSA
	SigSHA256WithRSA
	SigSHA384WithRSA
	SigSHA512WithRSA
	SigECDSAWithSHA256
	SigECDSAWithSHA384
	SigECDSAWithSHA512
	SigEd25519
	SigMLDSA44
	SigMLDSA65
	SigMLDSA87
)

// KnownOID is a registry entry. Raw holds the OID content octets exactly as
// they appear on the wire.
type KnownOID struct {
	ID    OIDID
	Class OIDClass
	Name  string
	OID   asn1.ObjectIdentifier
	Raw   []byte
	Hash  crypto.Hash
}

// String returns the registry name followed by the dotted form.
func (k KnownOID) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.OID)
}

var registry = map[string]KnownOID{}

func register(id OIDID, class OIDClass, name string, oid asn1.ObjectIdentifier, hash crypto.Hash) {
	raw := mustRawOID(oid)
	registry[string(raw)] = KnownOID{
		ID:    id,
		Class: class,
		Name:  name,
		OID:   oid,
		Raw:   raw,
		Hash:  hash,
	}
}

func mustRawOID(oid asn1.ObjectIdentifier) []byte {
	enc, err := asn1.Marshal(oid)
	if err != nil {
		panic(fmt.Sprintf("ocsp: cannot encode OID %s: %v", oid, err))
	}
	obj, err := der.Decode(enc)
	if err != nil {
		panic(fmt.Sprintf("ocsp: cannot decode OID %s: %v", oid, err))
	}
	return obj.Value
}

func init() {
	register(HashMD5, ClassHash, "md5", OIDMD5, crypto.MD5)
	register(HashSHA1, ClassHash, "sha1", OIDSHA1, crypto.SHA1)
	register(HashSHA224, ClassHash, "sha224", OIDSHA224, crypto.SHA224)
	register(HashSHA256, ClassHash, "sha256", OIDSHA256, crypto.SHA256)
	register(HashSHA384, ClassHash, "sha384", OIDSHA384, crypto.SHA384)
	register(HashSHA512, ClassHash, "sha512", OIDSHA512, crypto.SHA512)

	register(ExtNonce, ClassExtension, "nonce", OIDOcspNonce, 0)
	register(ExtCRLRef, ClassExtension, "crl-reference", OIDOcspCRL, 0)
	register(ExtResponseType, ClassExtension, "acceptable-responses", OIDOcspResponse, 0)
	register(ExtArchiveCutoff, ClassExtension, "archive-cutoff", OIDOcspArchiveCutoff, 0)
	register(ExtCRLReason, ClassExtension, "crl-reason", OIDCRLReason, 0)
	register(ExtInvalidDate, ClassExtension, "invalidity-date", OIDInvalidDate, 0)
	register(ExtServiceLocator, ClassExtension, "service-locator", OIDOcspServiceLocator, 0)
	register(ExtPrefSigAlgs, ClassExtension, "preferred-signature-algorithms", OIDOcspPrefSigAlgs, 0)
	register(ExtExtendedRevoke, ClassExtension, "extended-revoke", OIDOcspExtendedRevoke, 0)

	register(SigSHA1WithRSA, ClassSignature, "sha1WithRSAEncryption", OIDSHA1WithRSA, crypto.SHA1)
	register(SigSHA256WithRSA, ClassSignature, "sha256WithRSAEncryption", OIDSHA256WithRSA, crypto.SHA256)
	register(SigSHA384WithRSA, ClassSignature, "sha384WithRSAEncryption", OIDSHA384WithRSA, crypto.SHA384)
	register(SigSHA512WithRSA, ClassSignature, "sha512WithRSAEncryption", OIDSHA512WithRSA, crypto.SHA512)
	register(SigECDSAWithSHA256, ClassSignature, "ecdsa-with-SHA256", OIDECDSAWithSHA256, crypto.SHA256)
	register(SigECDSAWithSHA384, ClassSignature, "ecdsa-with-SHA384", OIDECDSAWithSHA384, crypto.SHA384)
	register(SigECDSAWithSHA512, ClassSignature, "ecdsa-with-SHA512", OIDECDSAWithSHA512, crypto.SHA512)
	register(SigEd25519, ClassSignature, "ed25519", OIDEd25519, 0)
	register(SigMLDSA44, ClassSignature, "ml-dsa-44", OIDMLDSA44, 0)
	register(SigMLDSA65, ClassSignature, "ml-dsa-65", OIDMLDSA65, 0)
	register(SigMLDSA87, ClassSignature, "ml-dsa-87", OIDMLDSA87, 0)
}

// ResolveOID looks up raw OID content octets in the registry.
func ResolveOID(raw []byte) (KnownOID, bool) {
	k, ok := registry[string(raw)]
	return k, ok
}

// OID is an OBJECT IDENTIFIER as raw content octets.
type OID struct {
	ID []byte
}

// Known resolves the OID against the registry.
func (o OID) Known() (KnownOID, bool) {
	return ResolveOID(o.ID)
}

// ObjectIdentifier returns the dotted-integer form. It fails only if ID is
// not a valid OID encoding.
func (o OID) ObjectIdentifier() (asn1.ObjectIdentifier, error) {
	enc := make([]byte, 0, len(o.ID)+4)
	enc = append(enc, byte(der.TagOID))
	enc = appendLength(enc, len(o.ID))
	enc = append(enc, o.ID...)
	obj, err := der.Decode(enc)
	if err != nil {
		return nil, err
	}
	return obj.ObjectIdentifier()
}

// String returns the dotted form, or hex when ID is not a valid OID.
func (o OID) String() string {
	oid, err := o.ObjectIdentifier()
	if err != nil {
		return fmt.Sprintf("%x", o.ID)
	}
	return oid.String()
}

func appendLength(b []byte, n int) []byte {
	if n < 0x80 {
		return append(b, byte(n))
	}
	var tmp []byte
	for v := n; v > 0; v >>= 8 {
		tmp = append([]byte{byte(v)}, tmp...)
	}
	b = append(b, 0x80|byte(len(tmp)))
	return append(b, tmp...)
}
