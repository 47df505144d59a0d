// Package service provides business logic for the REST API.
package service

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/remiblancher/ocspreq/internal/api/dto"
	"github.com/remiblancher/ocspreq/internal/audit"
	"github.com/remiblancher/ocspreq/internal/ocsp"
)

// Request sources recorded in logs, metrics and audit events.
const (
	SourceHTTPGet  = "http-get"
	SourceHTTPPost = "http-post"
	SourceAPI      = "api"
	SourceCLI      = "cli"
)

// Options configures a RequestService.
type Options struct {
	// MaxRequestBytes bounds the DER size; <= 0 selects
	// ocsp.DefaultMaxRequestBytes.
	MaxRequestBytes int64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Input is one request to decode.
type Input struct {
	Raw       []byte
	Source    string
	Remote    string
	RequestID string

	// Issuer, when set, is matched against every CertID.
	Issuer *x509.Certificate
}

// RequestService decodes OCSP requests and records every outcome.
type RequestService struct {
	maxBytes int64
	logger   *slog.Logger

	decodedCounter  metric.Int64Counter
	rejectedCounter metric.Int64Counter
	sizeHistogram   metric.Int64Histogram
}

// NewRequestService creates a new RequestService.
func NewRequestService(opts Options) (*RequestService, error) {
	s := &RequestService{
		maxBytes: opts.MaxRequestBytes,
		logger:   opts.Logger,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = ocsp.DefaultMaxRequestBytes
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	meter := otel.Meter("github.com/remiblancher/ocspreq/internal/api/service")
	var err error
	s.decodedCounter, err = meter.Int64Counter("ocspreq.requests.decoded",
		metric.WithDescription("OCSP requests decoded successfully"))
	if err != nil {
		return nil, fmt.Errorf("service: failed to create otel counter: %w", err)
	}
	s.rejectedCounter, err = meter.Int64Counter("ocspreq.requests.rejected",
		metric.WithDescription("OCSP requests rejected, by error kind"))
	if err != nil {
		return nil, fmt.Errorf("service: failed to create otel counter: %w", err)
	}
	s.sizeHistogram, err = meter.Int64Histogram("ocspreq.request.size",
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("service: failed to create otel histogram: %w", err)
	}
	return s, nil
}

// MaxRequestBytes returns the effective size limit.
func (s *RequestService) MaxRequestBytes() int64 {
	return s.maxBytes
}

// Decode decodes in.Raw. Every outcome is counted, logged and audited; an
// audit failure fails the call.
func (s *RequestService) Decode(ctx context.Context, in Input) (*dto.DecodedRequest, error) {
	if err := ocsp.CheckSize(in.Raw, s.maxBytes); err != nil {
		return nil, s.Reject(ctx, in, err)
	}
	s.sizeHistogram.Record(ctx, int64(len(in.Raw)), metric.WithAttributes(attribute.String("source", in.Source)))

	req, err := ocsp.ParseRequest(in.Raw)
	if err != nil {
		return nil, s.Reject(ctx, in, err)
	}

	fp, err := audit.Fingerprint(in.Raw)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	view := dto.NewDecodedRequest(req, fp)
	if in.Issuer != nil {
		view.MatchIssuer(req, in.Issuer)
	}

	s.decodedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", in.Source)))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "ocsp request decoded",
		slog.String("source", in.Source),
		slog.String("request_id", in.RequestID),
		slog.String("fingerprint", fp),
		slog.Int("requests", len(view.Requests)),
		slog.Bool("signed", req.IsSigned()),
	)

	if err := audit.LogRequest(audit.DecodeOutcome{
		Raw:       in.Raw,
		Source:    in.Source,
		Remote:    in.Remote,
		RequestID: in.RequestID,
		Serials:   view.Serials(),
		Requests:  len(view.Requests),
		Signed:    req.IsSigned(),
		Nonce:     req.GetNonce() != nil,
	}); err != nil {
		return nil, err
	}
	return view, nil
}

// Reject records a request that failed before or during decoding and returns
// cause, or the audit error if the rejection could not be audited.
func (s *RequestService) Reject(ctx context.Context, in Input, cause error) error {
	kind := "transport"
	outcome := audit.DecodeOutcome{
		Raw:       in.Raw,
		Source:    in.Source,
		Remote:    in.Remote,
		RequestID: in.RequestID,
		Reason:    cause.Error(),
	}
	var decErr *ocsp.Error
	if errors.As(cause, &decErr) {
		kind = string(decErr.Kind)
		outcome.Field = decErr.Field
		outcome.Offset = decErr.Offset
	}
	outcome.ErrorKind = kind

	// Oversized input is never hashed.
	if errors.Is(cause, ocsp.ErrRequestTooLarge) {
		outcome.Raw = nil
	}

	s.rejectedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", in.Source),
		attribute.String("kind", kind),
	))
	s.logger.LogAttrs(ctx, slog.LevelWarn, "ocsp request rejected",
		slog.String("source", in.Source),
		slog.String("request_id", in.RequestID),
		slog.String("kind", kind),
		slog.String("field", outcome.Field),
		slog.Int("offset", outcome.Offset),
		slog.Any("err", cause),
	)

	if err := audit.LogRequest(outcome); err != nil {
		return err
	}
	return cause
}
