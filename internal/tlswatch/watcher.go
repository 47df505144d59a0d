// Package tlswatch reloads the serving TLS certificate when its files change
// on disk.
package tlswatch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// ErrNoCertificate is returned by GetCertificate before the first load.
var ErrNoCertificate = errors.New("tlswatch: no certificate loaded")

// Options controls a Watcher. Changes after New are ignored.
type Options struct {
	// Debounce is the quiet period after the last file event before a reload.
	// Values below 10ms fall back to 100ms.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnReload is called after every load attempt, including the first one.
	OnReload func(certPath string, err error)
}

// Watcher holds the current certificate and swaps it when the watched
// certificate or key file changes.
type Watcher struct {
	options  Options
	certPath string
	keyPath  string

	cert     atomic.Pointer[tls.Certificate]
	debounce debounced

	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger

	reloadTotal  metric.Int64Counter
	reloadErrors metric.Int64Counter
}

// New creates a Watcher. Call Reconfigure to load a certificate, then Start.
func New(options Options) (*Watcher, error) {
	d := options.Debounce
	if d < 10*time.Millisecond {
		d = 100 * time.Millisecond
	}
	w := &Watcher{
		options:  options,
		logger:   options.Logger,
		debounce: debounce(d),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	meter := otel.Meter("github.com/remiblancher/ocspreq/internal/tlswatch")
	var err error
	w.reloadTotal, err = meter.Int64Counter("ocspreq.tls.reload.total")
	if err != nil {
		return nil, fmt.Errorf("tlswatch: failed to create otel counter: %w", err)
	}
	w.reloadErrors, err = meter.Int64Counter("ocspreq.tls.reload.errors")
	if err != nil {
		return nil, fmt.Errorf("tlswatch: failed to create otel counter: %w", err)
	}
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tlswatch: failed to create fswatcher: %w", err)
	}
	return w, nil
}

// GetCertificate satisfies tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(_ *tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := w.cert.Load()
	if cert == nil {
		return nil, ErrNoCertificate
	}
	return cert, nil
}

// Certificate returns the certificate currently served, or nil.
func (w *Watcher) Certificate() *tls.Certificate {
	return w.cert.Load()
}

// Reconfigure loads certPath and keyPath and watches them for changes.
// On failure the previously loaded certificate stays in place.
func (w *Watcher) Reconfigure(ctx context.Context, certPath, keyPath string) error {
	err := w.load(ctx, certPath, keyPath)
	if w.options.OnReload != nil {
		w.options.OnReload(certPath, err)
	}
	if err != nil {
		return err
	}
	return w.configureFsWatcher(certPath, keyPath)
}

func (w *Watcher) load(ctx context.Context, certPath, keyPath string) error {
	w.reloadTotal.Add(ctx, 1)
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		w.reloadErrors.Add(ctx, 1)
		return fmt.Errorf("tlswatch: failed to load x509 key pair: %w", err)
	}
	if cert.Leaf == nil {
		cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			w.reloadErrors.Add(ctx, 1)
			return fmt.Errorf("tlswatch: failed to parse leaf certificate: %w", err)
		}
	}

	fields := []slog.Attr{
		slog.String("cert_path", certPath),
		slog.String("key_path", keyPath),
	}
	now := time.Now()
	if now.Before(cert.Leaf.NotBefore) {
		w.logger.LogAttrs(ctx, slog.LevelWarn, "certificate isn't valid yet", fields...)
	}
	if now.After(cert.Leaf.NotAfter) {
		w.logger.LogAttrs(ctx, slog.LevelWarn, "certificate has expired", fields...)
	}
	fields = append(fields,
		slog.String("not_before", cert.Leaf.NotBefore.Format(time.DateTime)),
		slog.String("not_after", cert.Leaf.NotAfter.Format(time.DateTime)),
	)

	if prev := w.cert.Swap(&cert); prev == nil {
		w.logger.LogAttrs(ctx, slog.LevelInfo, "certificate loaded", fields...)
	} else {
		w.logger.LogAttrs(ctx, slog.LevelInfo, "certificate reloaded", fields...)
	}
	return nil
}

// configureFsWatcher replaces the watched paths when they changed.
func (w *Watcher) configureFsWatcher(certPath, keyPath string) error {
	if w.certPath == certPath && w.keyPath == keyPath {
		return nil
	}
	for _, p := range w.fsWatcher.WatchList() {
		if err := w.fsWatcher.Remove(p); err != nil {
			return fmt.Errorf("tlswatch: failed to unwatch %s: %w", p, err)
		}
	}
	for _, p := range []string{certPath, keyPath} {
		if err := w.fsWatcher.Add(p); err != nil {
			return fmt.Errorf("tlswatch: failed to watch %s: %w", p, err)
		}
	}
	w.certPath = certPath
	w.keyPath = keyPath
	return nil
}

// Start processes file events until ctx is cancelled, then closes the
// underlying fsnotify watcher.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsWatcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogAttrs(ctx, slog.LevelError, "an error occurred while watching files", slog.Any("err", err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) {
		return
	}

	// Editors and secret mounts replace files; the old watch dies with them.
	if event.Has(fsnotify.Remove) {
		if err := w.fsWatcher.Add(event.Name); err != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "failed to re-watch file", slog.Any("err", err))
		}
	}

	certPath, keyPath := w.certPath, w.keyPath
	w.debounce(func() {
		w.logger.LogAttrs(ctx, slog.LevelInfo, "reloading...")
		err := w.load(ctx, certPath, keyPath)
		if w.options.OnReload != nil {
			w.options.OnReload(certPath, err)
		}
		if err != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "failed to reload certificate", slog.Any("err", err))
		}
	})
}
