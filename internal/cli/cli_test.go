package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/remiblancher/ocspreq/internal/api/dto"
	"github.com/remiblancher/ocspreq/internal/ocsp"
)

// Generated with "openssl ocsp -issuer ca.pem -serial 0x6378e51d448ff46d -reqout".
const opensslRequestHex = "306e306c304530433041300906052b0e03021a05000414694d18a9be42f7802614d4844f23601478b788200414397be002a2f571fd80dceb52a17a7f8b632be75502086378e51d448ff46da2233021301f06092b0601050507300102041204101cfc8fa3f5e15ed760707bc46670559b"

func opensslDER(t *testing.T) []byte {
	t.Helper()
	data, err := hex.DecodeString(opensslRequestHex)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// =============================================================================
// Input Tests
// =============================================================================

func TestU_LoadRequest_Formats(t *testing.T) {
	raw := opensslDER(t)
	pemData := pem.EncodeToMemory(&pem.Block{Type: dto.PEMTypeRequest, Bytes: raw})
	b64 := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"[Unit] LoadRequest: der explicit", raw, FormatDER},
		{"[Unit] LoadRequest: der auto", raw, FormatAuto},
		{"[Unit] LoadRequest: pem auto", pemData, ""},
		{"[Unit] LoadRequest: hex auto", []byte(opensslRequestHex + "\n"), FormatAuto},
		{"[Unit] LoadRequest: hex wrapped", []byte(opensslRequestHex[:40] + "\n" + opensslRequestHex[40:]), FormatHex},
		{"[Unit] LoadRequest: base64 auto", []byte(b64[:30] + "\n" + b64[30:] + "\n"), FormatAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadRequest(tt.data, tt.format)
			if err != nil {
				t.Fatalf("LoadRequest() error = %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("LoadRequest() = %x", got)
			}
		})
	}
}

func TestU_LoadRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  string
		wantErr string
	}{
		{"[Unit] LoadRequest: bad hex", "zz", FormatHex, "invalid hex"},
		{"[Unit] LoadRequest: bad base64", "!!!", FormatBase64, "invalid base64"},
		{"[Unit] LoadRequest: no pem", "nothing", FormatPEM, "PEM block"},
		{"[Unit] LoadRequest: wrong pem type", "-----BEGIN CERTIFICATE-----\nMAA=\n-----END CERTIFICATE-----\n", FormatAuto, "unexpected PEM type"},
		{"[Unit] LoadRequest: unknown format", "3000", "asn1", "unknown input format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRequest([]byte(tt.data), tt.format)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadRequest() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestU_DetectFormat(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{"\x30\x00", FormatDER},
		{"  -----BEGIN OCSP REQUEST-----", FormatPEM},
		{"3000", FormatHex},
		{"020100", FormatHex},
		{"0AAA", FormatHex},
		{"0ABC=", FormatBase64},
		{"30 00\n", FormatHex},
		{"300", FormatBase64},
		{"MAA=", FormatBase64},
		{"", FormatBase64},
	}
	for _, tt := range tests {
		if got := DetectFormat([]byte(tt.data)); got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.data, got, tt.want)
		}
	}
}

func TestU_ReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.der")
	if err := os.WriteFile(path, []byte{0x30, 0x00}, 0600); err != nil {
		t.Fatal(err)
	}

	got, err := ReadInput(path, nil)
	if err != nil || !bytes.Equal(got, []byte{0x30, 0x00}) {
		t.Errorf("ReadInput(file) = %x, %v", got, err)
	}

	got, err = ReadInput("-", strings.NewReader("3000"))
	if err != nil || string(got) != "3000" {
		t.Errorf("ReadInput(-) = %q, %v", got, err)
	}

	if _, err := ReadInput(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("ReadInput() should fail for a missing file")
	}
}

func TestU_LoadCertFromPath_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadCertFromPath(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("LoadCertFromPath() should fail for a missing file")
	}

	bad := filepath.Join(dir, "bad.pem")
	_ = os.WriteFile(bad, []byte("not a certificate"), 0600)
	if _, err := LoadCertFromPath(bad); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("LoadCertFromPath() error = %v", err)
	}
}

// =============================================================================
// Render Tests
// =============================================================================

func TestU_RenderRequest(t *testing.T) {
	req, err := ocsp.ParseRequest(opensslDER(t))
	if err != nil {
		t.Fatal(err)
	}
	view := dto.NewDecodedRequest(req, "bafkreiexample")
	match := false
	view.Requests[0].IssuerMatch = &match

	var buf bytes.Buffer
	RenderRequest(&buf, view, Palette{})
	out := buf.String()

	for _, want := range []string{
		"OCSP Request Data:",
		"Version: 1 (0x0)",
		"Hash Algorithm: sha1 (1.3.14.3.2.26)",
		"Issuer Name Hash: 694D18A9BE42F7802614D4844F23601478B78820",
		"Serial Number: 6378E51D448FF46D",
		"Issuer: mismatch",
		"Request Extensions:",
		"nonce (1.3.6.1.5.5.7.48.1.2)",
		"1CFC8FA3F5E15ED760707BC46670559B",
		"Fingerprint: bafkreiexample",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("disabled palette should not emit escape codes")
	}
}

func TestU_RenderRequest_CRLAndSignature(t *testing.T) {
	view := &dto.DecodedRequest{
		Requests: []dto.CertIDInfo{{
			HashAlgorithm: "sha256",
			Extensions: []dto.ExtensionInfo{{
				Name: "crl-reference", OID: "1.3.6.1.5.5.7.48.1.3", Critical: true,
				CRL: &dto.CRLInfo{URL: "http://crl.example.com/ca.crl", Number: "0a"},
			}},
		}},
		Signature: &dto.SignatureInfo{Algorithm: "ecdsa-with-SHA256", AlgorithmOID: "1.2.840.10045.4.3.2", Certificates: 1},
	}

	var buf bytes.Buffer
	RenderRequest(&buf, view, Palette{Enabled: true})
	out := buf.String()

	for _, want := range []string{
		"crlUrl: http://crl.example.com/ca.crl",
		"crlNum: 0A",
		ColorYellow + "critical" + ColorReset,
		"Algorithm: ecdsa-with-SHA256",
		"Certificates: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "crlTime") {
		t.Error("absent crlTime should not be printed")
	}
}

func TestU_RenderError(t *testing.T) {
	data := []byte{0x02, 0x01, 0x00}
	_, err := ocsp.ParseRequest(data)
	if err == nil {
		t.Fatal("ParseRequest() should fail")
	}

	var buf bytes.Buffer
	RenderError(&buf, data, err, Palette{})
	out := buf.String()
	if !strings.Contains(out, "rejected: mismatch error in OCSPRequest at offset 0") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "0000: [02] 01 00") {
		t.Errorf("missing hex context:\n%s", out)
	}

	buf.Reset()
	RenderError(&buf, nil, errors.New("boom"), Palette{Enabled: true})
	if buf.String() != ColorRed+"rejected"+ColorReset+": boom\n" {
		t.Errorf("RenderError() = %q", buf.String())
	}
}

func TestU_HexContext(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	tests := []struct {
		offset, radius int
		want           string
	}{
		{0, 2, "0000: [00] 01 02"},
		{5, 2, "0003: 03 04 [05] 06 07"},
		{9, 1, "0008: 08 [09]"},
		{10, 1, "0009: 09 <end>"},
		{11, 1, ""},
		{-1, 1, ""},
	}
	for _, tt := range tests {
		if got := HexContext(data, tt.offset, tt.radius); got != tt.want {
			t.Errorf("HexContext(%d, %d) = %q, want %q", tt.offset, tt.radius, got, tt.want)
		}
	}
}

func TestU_Palette_Status(t *testing.T) {
	p := Palette{Enabled: true}
	if got := p.Status("match"); got != ColorGreen+"match"+ColorReset {
		t.Errorf("Status(match) = %q", got)
	}
	if got := p.Status("other"); got != "other" {
		t.Errorf("Status(other) = %q", got)
	}
	if got := (Palette{}).Status("mismatch"); got != "mismatch" {
		t.Errorf("disabled Status() = %q", got)
	}
}
