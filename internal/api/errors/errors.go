// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/remiblancher/ocspreq/internal/api/dto"
	"github.com/remiblancher/ocspreq/internal/ocsp"
)

// Error codes for API responses.
const (
	CodeDecoding         = "DECODING_ERROR"
	CodeLength           = "LENGTH_ERROR"
	CodeMismatch         = "MISMATCH_ERROR"
	CodeUnknownOID       = "UNKNOWN_OID"
	CodeUnknownExtension = "UNKNOWN_EXTENSION"
	CodeText             = "TEXT_ERROR"
	CodeUnsupported      = "UNSUPPORTED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	CodeInternal         = "INTERNAL_ERROR"
)

var kindCodes = map[ocsp.Kind]string{
	ocsp.KindDecoding:         CodeDecoding,
	ocsp.KindLength:           CodeLength,
	ocsp.KindMismatch:         CodeMismatch,
	ocsp.KindUnknownOID:       CodeUnknownOID,
	ocsp.KindUnknownExtension: CodeUnknownExtension,
	ocsp.KindText:             CodeText,
	ocsp.KindUnsupported:      CodeUnsupported,
}

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	// Decoder errors carry the structure and offset of the failure
	var decErr *ocsp.Error
	if errors.As(err, &decErr) {
		code, ok := kindCodes[decErr.Kind]
		if !ok {
			code = CodeInvalidRequest
		}
		status := http.StatusBadRequest
		if decErr.Kind == ocsp.KindUnsupported {
			status = http.StatusUnprocessableEntity
		}
		return status, &dto.APIError{
			Code:    code,
			Message: err.Error(),
			Details: map[string]string{
				"kind":   string(decErr.Kind),
				"field":  decErr.Field,
				"offset": strconv.Itoa(decErr.Offset),
			},
		}
	}

	// Transport errors
	switch {
	case errors.Is(err, ocsp.ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge, &dto.APIError{
			Code:    CodeRequestTooLarge,
			Message: err.Error(),
		}
	case errors.Is(err, ocsp.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, &dto.APIError{
			Code:    CodeMethodNotAllowed,
			Message: err.Error(),
		}
	case errors.Is(err, ocsp.ErrInvalidContentType):
		return http.StatusUnsupportedMediaType, &dto.APIError{
			Code:    CodeInvalidRequest,
			Message: err.Error(),
		}
	case errors.Is(err, ocsp.ErrEmptyRequest),
		errors.Is(err, ocsp.ErrInvalidEncoding),
		errors.Is(err, ErrBadInput):
		return http.StatusBadRequest, &dto.APIError{
			Code:    CodeInvalidRequest,
			Message: err.Error(),
		}
	}

	// Default internal error
	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// ErrBadInput marks client input rejected before decoding, such as a JSON
// body whose binary fields do not decode.
var ErrBadInput = errors.New("invalid input")
