package tlswatch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"golang.org/x/net/http2"
)

// ErrIncompletePair is returned when only one of cert and key is set.
var ErrIncompletePair = errors.New("tlswatch: cert and key must be set together")

// ServerConfig returns the listener TLS settings: HTTP/2 and HTTP/1.1 over
// ALPN, TLS 1.2 minimum, AEAD suites only.
func ServerConfig() *tls.Config {
	return &tls.Config{
		NextProtos: []string{http2.NextProtoTLS, "http/1.1"},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
	}
}

// Listen loads certPath/keyPath through a new Watcher, starts watching in
// the background until ctx ends, and returns a server config that always
// serves the latest certificate. Both paths empty returns nil, nil.
func Listen(ctx context.Context, certPath, keyPath string, options Options) (*tls.Config, *Watcher, error) {
	if certPath == "" && keyPath == "" {
		return nil, nil, nil
	}
	if certPath == "" || keyPath == "" {
		return nil, nil, ErrIncompletePair
	}

	w, err := New(options)
	if err != nil {
		return nil, nil, err
	}
	if err := w.Reconfigure(ctx, certPath, keyPath); err != nil {
		_ = w.fsWatcher.Close()
		return nil, nil, fmt.Errorf("tlswatch: initial load failed: %w", err)
	}
	go w.Start(ctx)

	cfg := ServerConfig()
	cfg.GetCertificate = w.GetCertificate
	return cfg, w, nil
}
