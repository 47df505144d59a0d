package dto

import (
	"crypto/x509"
	"encoding/hex"

	"github.com/remiblancher/ocspreq/internal/ocsp"
)

// DecodeRequest is the JSON body of POST /api/v1/requests/decode.
type DecodeRequest struct {
	// Request is the DER-encoded OCSP request.
	Request BinaryData `json:"request"`

	// IssuerCert, when set, is matched against every CertID.
	IssuerCert *BinaryData `json:"issuer_cert,omitempty"`
}

// DecodedRequest is the serialized view of a decoded OCSP request.
// Byte strings are hex encoded.
type DecodedRequest struct {
	// Fingerprint is the CIDv1 of the raw DER.
	Fingerprint string `json:"fingerprint"`

	Version       int             `json:"version"`
	RequestorName string          `json:"requestor_name,omitempty"`
	Requests      []CertIDInfo    `json:"requests"`
	Extensions    []ExtensionInfo `json:"extensions,omitempty"`

	// Nonce is the request nonce, if any.
	Nonce string `json:"nonce,omitempty"`

	Signature *SignatureInfo `json:"signature,omitempty"`
}

// CertIDInfo describes one requested certificate.
type CertIDInfo struct {
	HashAlgorithm  string `json:"hash_algorithm"`
	HashOID        string `json:"hash_oid"`
	IssuerNameHash string `json:"issuer_name_hash"`
	IssuerKeyHash  string `json:"issuer_key_hash"`
	Serial         string `json:"serial"`

	// IssuerMatch is set only when an issuer certificate was supplied.
	IssuerMatch *bool `json:"issuer_match,omitempty"`

	Extensions []ExtensionInfo `json:"extensions,omitempty"`
}

// ExtensionInfo describes a decoded extension.
type ExtensionInfo struct {
	Name     string   `json:"name"`
	OID      string   `json:"oid"`
	Critical bool     `json:"critical,omitempty"`
	Value    string   `json:"value,omitempty"`
	CRL      *CRLInfo `json:"crl,omitempty"`
}

// CRLInfo is the content of a CRL reference extension.
type CRLInfo struct {
	URL    string `json:"url,omitempty"`
	Number string `json:"number,omitempty"`
	Time   string `json:"time,omitempty"`
}

// SignatureInfo describes the optional request signature.
type SignatureInfo struct {
	Algorithm    string `json:"algorithm"`
	AlgorithmOID string `json:"algorithm_oid"`
	Value        string `json:"value"`
	Certificates int    `json:"certificates"`
}

// NewDecodedRequest builds the serialized view of req.
func NewDecodedRequest(req *ocsp.OCSPRequest, fingerprint string) *DecodedRequest {
	tbs := req.TBSRequest
	out := &DecodedRequest{
		Fingerprint:   fingerprint,
		Version:       tbs.Version,
		RequestorName: string(tbs.RequestorName),
		Requests:      make([]CertIDInfo, 0, len(tbs.RequestList)),
		Extensions:    extensionInfos(tbs.Extensions),
	}
	for _, one := range tbs.RequestList {
		info := certIDInfo(one.CertID)
		info.Extensions = extensionInfos(one.Extensions)
		out.Requests = append(out.Requests, info)
	}
	if nonce := req.GetNonce(); nonce != nil {
		out.Nonce = hex.EncodeToString(nonce)
	}
	if sig := req.Signature; sig != nil {
		out.Signature = &SignatureInfo{
			Algorithm:    oidName(sig.Algorithm),
			AlgorithmOID: sig.Algorithm.String(),
			Value:        hex.EncodeToString(sig.Signature),
			Certificates: len(sig.Certs),
		}
	}
	return out
}

// MatchIssuer sets IssuerMatch on every entry of d, which must have been
// built from req.
func (d *DecodedRequest) MatchIssuer(req *ocsp.OCSPRequest, issuer *x509.Certificate) {
	for i := range d.Requests {
		if i >= len(req.TBSRequest.RequestList) {
			return
		}
		match := req.TBSRequest.RequestList[i].CertID.MatchesIssuer(issuer)
		d.Requests[i].IssuerMatch = &match
	}
}

// Serials returns the hex serial of every requested certificate.
func (d *DecodedRequest) Serials() []string {
	serials := make([]string, len(d.Requests))
	for i, r := range d.Requests {
		serials[i] = r.Serial
	}
	return serials
}

func certIDInfo(id ocsp.CertID) CertIDInfo {
	return CertIDInfo{
		HashAlgorithm:  oidName(id.HashAlgorithm),
		HashOID:        id.HashAlgorithm.String(),
		IssuerNameHash: hex.EncodeToString(id.IssuerNameHash),
		IssuerKeyHash:  hex.EncodeToString(id.IssuerKeyHash),
		Serial:         id.Serial().Text(16),
	}
}

func extensionInfos(exts []ocsp.Extension) []ExtensionInfo {
	if len(exts) == 0 {
		return nil
	}
	out := make([]ExtensionInfo, 0, len(exts))
	for _, ext := range exts {
		k := ext.ExtensionID()
		info := ExtensionInfo{
			Name:     k.Name,
			OID:      k.OID.String(),
			Critical: ext.IsCritical(),
		}
		switch e := ext.(type) {
		case *ocsp.Nonce:
			info.Value = hex.EncodeToString(e.Nonce)
		case *ocsp.CRLReference:
			info.CRL = &CRLInfo{
				URL:    string(e.URL),
				Number: hex.EncodeToString(e.Number),
				Time:   string(e.Time),
			}
		}
		out = append(out, info)
	}
	return out
}

func oidName(o ocsp.OID) string {
	if k, ok := o.Known(); ok {
		return k.Name
	}
	return "unknown"
}
