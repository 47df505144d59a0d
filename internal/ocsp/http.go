package ocsp

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ContentTypeRequest is the media type of a DER-encoded OCSP request.
const ContentTypeRequest = "application/ocsp-request"

// DefaultMaxRequestBytes bounds the size of an OCSP request read from HTTP.
const DefaultMaxRequestBytes = 64 << 10

// HTTP intake errors. These never wrap an *Error: they describe the
// transport, not the DER.
var (
	ErrMethodNotAllowed   = errors.New("unsupported HTTP method")
	ErrEmptyRequest       = errors.New("empty OCSP request")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidEncoding    = errors.New("invalid base64 encoding")
	ErrRequestTooLarge    = errors.New("OCSP request too large")
)

// ParseRequestFromHTTP parses an OCSP request from an HTTP request
// (RFC 6960 Appendix A). The raw DER is returned alongside decoder errors.
func ParseRequestFromHTTP(r *http.Request, maxBytes int64) (*OCSPRequest, []byte, error) {
	data, err := ReadRequest(r, maxBytes)
	if err != nil {
		return nil, nil, err
	}
	req, err := ParseRequest(data)
	if err != nil {
		return nil, data, err
	}
	return req, data, nil
}

// ReadRequest extracts the DER request from an HTTP request without decoding
// it. GET carries the URL-encoded base64 request as the request path; POST
// carries the DER in the body. maxBytes <= 0 selects DefaultMaxRequestBytes.
func ReadRequest(r *http.Request, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBytes
	}

	var (
		data []byte
		err  error
	)
	switch r.Method {
	case http.MethodGet:
		data, err = RequestFromPath(r.URL.EscapedPath())
	case http.MethodPost:
		data, err = requestFromBody(r, maxBytes)
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, r.Method)
	}
	if err != nil {
		return nil, err
	}
	if err := CheckSize(data, maxBytes); err != nil {
		return nil, err
	}
	return data, nil
}

// CheckSize returns ErrRequestTooLarge when data exceeds maxBytes.
func CheckSize(data []byte, maxBytes int64) error {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrRequestTooLarge, len(data), maxBytes)
	}
	return nil
}

// RequestFromPath decodes the DER request from the escaped path of a GET
// request. Routers mounting the responder under a prefix pass the remainder
// after the prefix.
func RequestFromPath(path string) ([]byte, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, fmt.Errorf("%w in GET path", ErrEmptyRequest)
	}

	// URL-decode the segment (handles %XX escapes)
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	// Try standard base64 first, then URL-safe, then URL-safe without padding
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if data, err := enc.DecodeString(decoded); err == nil {
			if len(data) == 0 {
				return nil, fmt.Errorf("%w in GET path", ErrEmptyRequest)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidEncoding, decoded)
}

func requestFromBody(r *http.Request, maxBytes int64) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, ContentTypeRequest) {
		// Be lenient - some clients might not set the header
		if contentType != "" && !strings.HasPrefix(contentType, "application/") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
		}
	}

	// One extra byte distinguishes "at the limit" from "over the limit".
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w body", ErrEmptyRequest)
	}
	return data, nil
}
