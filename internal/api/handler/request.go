package handler

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/ocspreq/internal/api/dto"
	apierrors "github.com/remiblancher/ocspreq/internal/api/errors"
	"github.com/remiblancher/ocspreq/internal/api/middleware"
	"github.com/remiblancher/ocspreq/internal/api/service"
	"github.com/remiblancher/ocspreq/internal/ocsp"
)

// RequestHandler handles OCSP request decoding.
type RequestHandler struct {
	service *service.RequestService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requestService *service.RequestService) *RequestHandler {
	return &RequestHandler{service: requestService}
}

// DecodeGet handles GET /ocsp/{base64}.
func (h *RequestHandler) DecodeGet(w http.ResponseWriter, r *http.Request) {
	in := h.input(r, service.SourceHTTPGet)
	raw, err := ocsp.RequestFromPath(chi.URLParam(r, "*"))
	if err != nil {
		respondError(w, r, h.service.Reject(r.Context(), in, err))
		return
	}
	in.Raw = raw
	h.decode(w, r, in)
}

// DecodePost handles POST /ocsp with an application/ocsp-request body.
func (h *RequestHandler) DecodePost(w http.ResponseWriter, r *http.Request) {
	in := h.input(r, service.SourceHTTPPost)
	raw, err := ocsp.ReadRequest(r, h.service.MaxRequestBytes())
	if err != nil {
		respondError(w, r, h.service.Reject(r.Context(), in, err))
		return
	}
	in.Raw = raw
	h.decode(w, r, in)
}

// DecodeJSON handles POST /api/v1/requests/decode.
func (h *RequestHandler) DecodeJSON(w http.ResponseWriter, r *http.Request) {
	// base64 inflates by 4/3; leave room for the issuer certificate
	limit := h.service.MaxRequestBytes()*2 + 64<<10
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	in := h.input(r, service.SourceAPI)
	if err := h.readJSON(r, &in); err != nil {
		respondError(w, r, h.service.Reject(r.Context(), in, err))
		return
	}
	h.decode(w, r, in)
}

// readJSON fills in.Raw and in.Issuer from the JSON body. in.Raw is set as
// soon as the request decodes so a later rejection can be fingerprinted.
func (h *RequestHandler) readJSON(r *http.Request, in *service.Input) error {
	var req dto.DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: JSON body exceeds %d bytes", ocsp.ErrRequestTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: invalid JSON request body: %v", apierrors.ErrBadInput, err)
	}

	raw, err := req.Request.Decode()
	if err != nil {
		return fmt.Errorf("%w: request: %v", apierrors.ErrBadInput, err)
	}
	in.Raw = raw

	if req.IssuerCert != nil {
		certDER, err := req.IssuerCert.Decode()
		if err != nil {
			return fmt.Errorf("%w: issuer_cert: %v", apierrors.ErrBadInput, err)
		}
		if in.Issuer, err = x509.ParseCertificate(certDER); err != nil {
			return fmt.Errorf("%w: issuer_cert: %v", apierrors.ErrBadInput, err)
		}
	}
	return nil
}

func (h *RequestHandler) decode(w http.ResponseWriter, r *http.Request, in service.Input) {
	resp, err := h.service.Decode(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, resp)
}

func (h *RequestHandler) input(r *http.Request, source string) service.Input {
	return service.Input{
		Source:    source,
		Remote:    r.RemoteAddr,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}
}
