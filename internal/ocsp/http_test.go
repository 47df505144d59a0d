package ocsp

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// =============================================================================
// HTTP Parsing Tests
// =============================================================================

// TestU_ParseRequestFromHTTP_POST tests POST request parsing.
func TestU_ParseRequestFromHTTP_POST(t *testing.T) {
	data := mustHex(t, opensslRequestHex)

	httpReq := httptest.NewRequest(http.MethodPost, "/ocsp", bytes.NewReader(data))
	httpReq.Header.Set("Content-Type", ContentTypeRequest)

	parsed, raw, err := ParseRequestFromHTTP(httpReq, 0)
	if err != nil {
		t.Fatalf("ParseRequestFromHTTP failed: %v", err)
	}
	if !bytes.Equal(raw, data) {
		t.Error("Expected the raw request bytes to be returned")
	}
	if len(parsed.TBSRequest.RequestList) != 1 {
		t.Errorf("Expected 1 request, got %d", len(parsed.TBSRequest.RequestList))
	}
}

// TestU_ParseRequestFromHTTP_GET tests GET request parsing with the base64
// encodings clients use.
func TestU_ParseRequestFromHTTP_GET(t *testing.T) {
	data := mustHex(t, opensslRequestHex)

	paths := map[string]string{
		"std":         "/" + base64.StdEncoding.EncodeToString(data),
		"std escaped": "/" + url.PathEscape(base64.StdEncoding.EncodeToString(data)),
		"url":         "/" + base64.URLEncoding.EncodeToString(data),
		"raw url":     "/" + base64.RawURLEncoding.EncodeToString(data),
	}
	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			httpReq := httptest.NewRequest(http.MethodGet, path, nil)
			parsed, _, err := ParseRequestFromHTTP(httpReq, 0)
			if err != nil {
				t.Fatalf("ParseRequestFromHTTP GET failed: %v", err)
			}
			if !bytes.Equal(parsed.GetNonce(), mustHex(t, opensslNonceHex)) {
				t.Error("Nonce mismatch")
			}
		})
	}
}

// TestU_ParseRequestFromHTTP_DecodeErrorKeepsRaw tests that DER errors come
// back with the raw bytes.
func TestU_ParseRequestFromHTTP_DecodeErrorKeepsRaw(t *testing.T) {
	body := []byte{0x30, 0x03, 0x02, 0x01, 0x00}
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))

	_, raw, err := ParseRequestFromHTTP(httpReq, 0)
	if !bytes.Equal(raw, body) {
		t.Errorf("raw = %x, want %x", raw, body)
	}
	assertKind(t, err, KindMismatch, "TBSRequest")
}

// TestU_ParseRequestFromHTTP_UnsupportedMethodInvalid tests unsupported HTTP method.
func TestU_ParseRequestFromHTTP_UnsupportedMethodInvalid(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPut, "/ocsp", nil)

	_, _, err := ParseRequestFromHTTP(httpReq, 0)
	if !errors.Is(err, ErrMethodNotAllowed) {
		t.Errorf("Expected ErrMethodNotAllowed, got %v", err)
	}
}

// TestU_ParseRequestFromHTTP_EmptyPOSTMissing tests empty POST body.
func TestU_ParseRequestFromHTTP_EmptyPOSTMissing(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPost, "/ocsp", strings.NewReader(""))
	httpReq.Header.Set("Content-Type", ContentTypeRequest)

	_, _, err := ParseRequestFromHTTP(httpReq, 0)
	if !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("Expected ErrEmptyRequest, got %v", err)
	}
}

// TestU_ParseRequestFromHTTP_ContentTypeInvalid tests a non-binary body type.
func TestU_ParseRequestFromHTTP_ContentTypeInvalid(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPost, "/ocsp", strings.NewReader("x"))
	httpReq.Header.Set("Content-Type", "text/plain")

	_, _, err := ParseRequestFromHTTP(httpReq, 0)
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("Expected ErrInvalidContentType, got %v", err)
	}
}

// TestU_ParseRequestFromHTTP_TooLargeInvalid tests the body size limit.
func TestU_ParseRequestFromHTTP_TooLargeInvalid(t *testing.T) {
	data := mustHex(t, opensslRequestHex)
	httpReq := httptest.NewRequest(http.MethodPost, "/ocsp", bytes.NewReader(data))

	_, _, err := ParseRequestFromHTTP(httpReq, int64(len(data)-1))
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Errorf("Expected ErrRequestTooLarge, got %v", err)
	}

	httpReq = httptest.NewRequest(http.MethodPost, "/ocsp", bytes.NewReader(data))
	if _, _, err := ParseRequestFromHTTP(httpReq, int64(len(data))); err != nil {
		t.Errorf("Request at the limit failed: %v", err)
	}
}

// TestU_ParseRequestFromHTTP_EmptyGETMissing tests empty GET path.
func TestU_ParseRequestFromHTTP_EmptyGETMissing(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodGet, "/", nil)

	_, _, err := ParseRequestFromHTTP(httpReq, 0)
	if !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("Expected ErrEmptyRequest, got %v", err)
	}
}

// TestU_ParseRequestFromHTTP_InvalidBase64Invalid tests invalid base64 in GET.
func TestU_ParseRequestFromHTTP_InvalidBase64Invalid(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodGet, "/!!!not-valid-base64!!!", nil)

	_, _, err := ParseRequestFromHTTP(httpReq, 0)
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("Expected ErrInvalidEncoding, got %v", err)
	}
}

// TestU_ReadRequest_NoDecode tests that ReadRequest returns bytes that would
// fail to decode.
func TestU_ReadRequest_NoDecode(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte{0x30, 0x05}))
	httpReq.Header.Set("Content-Type", ContentTypeRequest)

	data, err := ReadRequest(httpReq, 0)
	if err != nil {
		t.Fatalf("ReadRequest failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0x30, 0x05}) {
		t.Errorf("ReadRequest = %x", data)
	}
}

// TestU_CheckSize tests the size limit helper.
func TestU_CheckSize(t *testing.T) {
	if err := CheckSize(make([]byte, 10), 10); err != nil {
		t.Errorf("CheckSize at limit = %v", err)
	}
	if err := CheckSize(make([]byte, 11), 10); !errors.Is(err, ErrRequestTooLarge) {
		t.Errorf("CheckSize over limit = %v, want ErrRequestTooLarge", err)
	}
	if err := CheckSize(make([]byte, 11), 0); err != nil {
		t.Errorf("CheckSize without limit = %v", err)
	}
}
