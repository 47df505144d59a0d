// Package cli holds helpers shared by the ocspreq commands: input loading
// and human-readable rendering.
package cli

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/remiblancher/ocspreq/internal/api/dto"
)

// Input formats accepted by LoadRequest.
const (
	FormatAuto   = "auto"
	FormatDER    = "der"
	FormatPEM    = "pem"
	FormatHex    = "hex"
	FormatBase64 = "base64"
)

// ReadInput reads path, or r when path is "" or "-".
func ReadInput(path string, r io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

// LoadRequest converts data in the given format to DER.
func LoadRequest(data []byte, format string) ([]byte, error) {
	if format == "" || format == FormatAuto {
		format = DetectFormat(data)
	}
	switch format {
	case FormatDER:
		return data, nil
	case FormatPEM:
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("failed to decode PEM block")
		}
		if block.Type != dto.PEMTypeRequest {
			return nil, fmt.Errorf("unexpected PEM type %q, want %q", block.Type, dto.PEMTypeRequest)
		}
		return block.Bytes, nil
	case FormatHex:
		out, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return out, nil
	case FormatBase64:
		out, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 input: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown input format %q (want auto, der, pem, hex or base64)", format)
	}
}

// DetectFormat guesses the encoding of data. A leading SEQUENCE tag with
// binary content means DER; text falls through PEM, hex and base64 in that
// order.
func DetectFormat(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(data) > 0 && data[0] == 0x30 && !isText(data):
		return FormatDER
	case bytes.HasPrefix(trimmed, []byte("-----BEGIN ")):
		return FormatPEM
	case isHex(trimmed):
		return FormatHex
	default:
		return FormatBase64
	}
}

func isText(data []byte) bool {
	for _, c := range data {
		if (c < 0x20 || c > 0x7e) && c != '\n' && c != '\r' && c != '\t' {
			return false
		}
	}
	return true
}

func isHex(data []byte) bool {
	n := 0
	for _, c := range data {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			n++
		case c == ' ', c == '\n', c == '\r', c == '\t':
		default:
			return false
		}
	}
	return n > 0 && n%2 == 0
}

// LoadCertFromPath loads a certificate from a PEM or DER file.
func LoadCertFromPath(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}

	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return cert, nil
}
