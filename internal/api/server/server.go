package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"

	"github.com/remiblancher/ocspreq/internal/api/router"
	"github.com/remiblancher/ocspreq/internal/api/service"
	"github.com/remiblancher/ocspreq/internal/audit"
	"github.com/remiblancher/ocspreq/internal/tlswatch"
)

// Server runs the decode service over HTTP or HTTPS.
type Server struct {
	cfg     *Config
	version string
	logger  *slog.Logger
	out     io.Writer

	watcher *tlswatch.Watcher
}

// New creates a new Server.
func New(cfg *Config, version string) *Server {
	return &Server{
		cfg:     cfg,
		version: version,
		logger:  slog.Default(),
		out:     os.Stdout,
	}
}

// WithLogger sets the structured logger handed to the service and watcher.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// WithOutput redirects the startup banner.
func (s *Server) WithOutput(w io.Writer) *Server {
	s.out = w
	return s
}

// Start listens on the configured address and blocks until SIGINT/SIGTERM
// or a server error.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.cfg.Validate(); err != nil {
		_ = ln.Close()
		return fmt.Errorf("invalid config: %w", err)
	}

	svc, err := service.NewRequestService(service.Options{
		MaxRequestBytes: s.cfg.MaxRequestBytes,
		Logger:          s.logger,
	})
	if err != nil {
		_ = ln.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tlsConfig, err := s.configureTLS(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler: router.New(&router.Config{
			Services:       s.cfg.Services,
			Version:        s.version,
			RequestService: svc,
			Ready:          s.readyChecks,
		}),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		TLSConfig:    tlsConfig,
	}
	if tlsConfig != nil {
		if err := http2.ConfigureServer(srv, &http2.Server{IdleTimeout: s.cfg.IdleTimeout}); err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to configure http2: %w", err)
		}
		ln = tls.NewListener(ln, tlsConfig)
	}

	addr := ln.Addr().String()
	if err := audit.LogServeStarted(addr, tlsConfig != nil); err != nil {
		_ = ln.Close()
		return err
	}
	s.printStartupInfo(addr, tlsConfig != nil)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Printf("Shutting down %s...", addr)
		serveErr = s.shutdown(srv)
	}

	if err := audit.LogServeStopped(addr, serveErr); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// configureTLS starts the certificate watcher when TLS is configured.
func (s *Server) configureTLS(ctx context.Context) (*tls.Config, error) {
	if !s.cfg.TLSEnabled() {
		return nil, nil
	}
	cfg, w, err := tlswatch.Listen(ctx, s.cfg.TLS.Cert, s.cfg.TLS.Key, tlswatch.Options{
		Logger: s.logger,
		OnReload: func(certPath string, err error) {
			if auditErr := audit.LogTLSReloaded(certPath, err); auditErr != nil {
				s.logger.Error("failed to audit certificate reload", slog.Any("err", auditErr))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	s.watcher = w
	return cfg, nil
}

func (s *Server) readyChecks() map[string]bool {
	checks := map[string]bool{}
	if s.watcher != nil {
		checks["tls_certificate"] = s.watcher.Certificate() != nil
	}
	if audit.Enabled() {
		checks["audit_log"] = true
	}
	return checks
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	log.Println("Server stopped gracefully")
	return nil
}

// printStartupInfo prints server startup information.
func (s *Server) printStartupInfo(addr string, tlsEnabled bool) {
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "OCSP Request Decoder")
	fmt.Fprintln(s.out, "====================")
	fmt.Fprintf(s.out, "  Version:  %s\n", s.version)
	fmt.Fprintf(s.out, "  Address:  %s://%s\n", scheme, addr)
	fmt.Fprintf(s.out, "  Limit:    %d bytes per request\n", s.cfg.MaxRequestBytes)
	if tlsEnabled {
		fmt.Fprintln(s.out, "  TLS:      enabled (hot reload)")
	}
	if audit.Enabled() {
		fmt.Fprintf(s.out, "  Audit:    %s\n", s.cfg.AuditLog)
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Endpoints:")
	fmt.Fprintln(s.out, "  GET  /health               - Health check")
	fmt.Fprintln(s.out, "  GET  /ready                - Readiness check")
	if s.cfg.HasService("api") {
		fmt.Fprintln(s.out, "  POST /api/v1/requests/decode - JSON decode")
	}
	if s.cfg.HasService("ocsp") {
		fmt.Fprintln(s.out, "  POST /ocsp                 - RFC 6960 POST request")
		fmt.Fprintln(s.out, "  GET  /ocsp/{base64}        - RFC 6960 GET request")
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Use Ctrl+C to stop")
	fmt.Fprintln(s.out)
}
