package ocsp

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	xocsp "golang.org/x/crypto/ocsp"
)

// Scenario vectors: an OpenSSL request carrying one CertID and a nonce.
const (
	opensslRequestHex = "306e306c304530433041300906052b0e03021a05000414694d18a9be42f7802614d4844f23601478b788200414397be002a2f571fd80dceb52a17a7f8b632be75502086378e51d448ff46da2233021301f06092b0601050507300102041204101cfc8fa3f5e15ed760707bc46670559b"
	opensslCertIDHex  = "3041300906052b0e03021a05000414694d18a9be42f7802614d4844f23601478b788200414397be002a2f571fd80dceb52a17a7f8b632be75502086378e51d448ff46d"
	opensslNonceHex   = "1cfc8fa3f5e15ed760707bc46670559b"
	sha1AlgIDHex      = "300906052b0e03021a0500"
)

// mustHex decodes a hex string, ignoring spaces.
func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// tlv encodes one DER element with a single-octet tag.
func tlv(tag byte, parts ...[]byte) []byte {
	var v []byte
	for _, p := range parts {
		v = append(v, p...)
	}
	out := []byte{tag}
	return append(appendLength(out, len(v)), v...)
}

// assertKind fails unless err is an *Error of the given kind and field.
func assertKind(t *testing.T, err error, kind Kind, field string) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error on %q, got nil", kind, field)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Errorf("Kind = %s, want %s (%v)", e.Kind, kind, err)
	}
	if field != "" && e.Field != field {
		t.Errorf("Field = %q, want %q (%v)", e.Field, field, err)
	}
	return e
}

// testKeyPair holds a key pair for testing.
type testKeyPair struct {
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
}

// generateECDSAKeyPair generates an ECDSA key pair for testing.
func generateECDSAKeyPair(t *testing.T, curve elliptic.Curve) *testKeyPair {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	return &testKeyPair{
		PrivateKey: priv,
		PublicKey:  &priv.PublicKey,
	}
}

func randomSerial(t *testing.T) *big.Int {
	t.Helper()
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("Failed to generate serial number: %v", err)
	}
	return serialNumber
}

// generateTestCA creates a test CA certificate and key pair.
func generateTestCA(t *testing.T) (*x509.Certificate, crypto.Signer) {
	t.Helper()

	kp := generateECDSAKeyPair(t, elliptic.P256())
	template := &x509.Certificate{
		SerialNumber: randomSerial(t),
		Subject: pkix.Name{
			CommonName:   "Test CA",
			Organization: []string{"Test Org"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, kp.PublicKey, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Failed to create CA certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse CA certificate: %v", err)
	}
	return cert, kp.PrivateKey
}

// issueTestCertificate issues a certificate signed by a CA.
func issueTestCertificate(t *testing.T, caCert *x509.Certificate, caKey crypto.Signer) *x509.Certificate {
	t.Helper()

	kp := generateECDSAKeyPair(t, elliptic.P256())
	template := &x509.Certificate{
		SerialNumber: randomSerial(t),
		Subject: pkix.Name{
			CommonName:   "Test End Entity",
			Organization: []string{"Test Org"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, caCert, kp.PublicKey, caKey)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert
}

// createRequest encodes an unsigned request with golang.org/x/crypto/ocsp.
func createRequest(t *testing.T, cert, issuer *x509.Certificate, h crypto.Hash) []byte {
	t.Helper()
	der, err := xocsp.CreateRequest(cert, issuer, &xocsp.RequestOptions{Hash: h})
	if err != nil {
		t.Fatalf("ocsp.CreateRequest failed: %v", err)
	}
	return der
}

// signRequest wraps the TBSRequest of an unsigned request in a signed
// OCSPRequest carrying the signer's certificate chain.
func signRequest(t *testing.T, unsigned []byte, key crypto.Signer, chain ...*x509.Certificate) []byte {
	t.Helper()

	var outer struct {
		TBS asn1.RawValue
	}
	if _, err := asn1.Unmarshal(unsigned, &outer); err != nil {
		t.Fatalf("Failed to split request: %v", err)
	}

	digest := sha256.Sum256(outer.TBS.FullBytes)
	sig, err := key.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		t.Fatalf("Failed to sign request: %v", err)
	}

	type signature struct {
		Algorithm pkix.AlgorithmIdentifier
		Signature asn1.BitString
		Certs     []asn1.RawValue `asn1:"explicit,tag:0,optional"`
	}
	type signedRequest struct {
		TBS       asn1.RawValue
		Signature signature `asn1:"explicit,tag:0"`
	}

	var certs []asn1.RawValue
	for _, c := range chain {
		certs = append(certs, asn1.RawValue{FullBytes: c.Raw})
	}

	out, err := asn1.Marshal(signedRequest{
		TBS: outer.TBS,
		Signature: signature{
			Algorithm: pkix.AlgorithmIdentifier{
				Algorithm:  OIDECDSAWithSHA256,
				Parameters: asn1.NullRawValue,
			},
			Signature: asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
			Certs:     certs,
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal signed request: %v", err)
	}
	return out
}
