package audit

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	// globalWriter is the default audit writer.
	globalWriter Writer = NopWriter{}
	globalMu     sync.RWMutex

	// enabled tracks whether audit logging is active.
	enabled bool
)

// Init initializes the global audit logger with the given writer.
// A nil writer disables audit logging.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if w == nil {
		globalWriter = NopWriter{}
		enabled = false
		return nil
	}

	globalWriter = w
	enabled = true
	return nil
}

// InitFile initializes the global audit logger with a file writer.
// An empty path disables audit logging.
func InitFile(path string) error {
	return InitFiles(path)
}

// InitFiles initializes the global audit logger with one file writer per
// distinct non-empty path. Each file carries its own hash chain. No path
// disables audit logging.
func InitFiles(paths ...string) error {
	var writers []Writer
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true

		w, err := NewFileWriter(path)
		if err != nil {
			_ = NewMultiWriter(writers...).Close()
			return err
		}
		writers = append(writers, w)
	}

	switch len(writers) {
	case 0:
		return Init(nil)
	case 1:
		return Init(writers[0])
	default:
		return Init(NewMultiWriter(writers...))
	}
}

// Close closes the global audit writer.
// Should be called when the application exits.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	err := globalWriter.Close()
	globalWriter = NopWriter{}
	enabled = false
	return err
}

// Enabled returns whether audit logging is active.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes an audit event to the global writer.
//
// IMPORTANT: If audit logging is enabled and this returns an error,
// the calling operation SHOULD fail.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()

	return w.Write(event)
}

// MustLog writes an audit event and returns an error suitable for
// failing the parent operation if audit logging fails.
//
// Usage:
//
//	if err := audit.MustLog(event); err != nil {
//	    return nil, err // Operation fails if audit fails
//	}
func MustLog(event *Event) error {
	if err := Log(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

// Fingerprint returns the CIDv1 (raw codec, sha2-256 multihash) of data.
// It identifies a request in the log without recording its content.
func Fingerprint(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// DecodeOutcome describes one request intake for LogRequest.
type DecodeOutcome struct {
	Raw       []byte
	Source    string
	Remote    string
	RequestID string
	Serials   []string
	Requests  int
	Signed    bool
	Nonce     bool

	// Set on failure.
	ErrorKind string
	Field     string
	Offset    int
	Reason    string
}

// LogRequest logs an OCSP_REQUEST_DECODED or OCSP_REQUEST_REJECTED event.
func LogRequest(o DecodeOutcome) error {
	eventType, result := EventRequestDecoded, ResultSuccess
	if o.Reason != "" {
		eventType, result = EventRequestRejected, ResultFailure
	}

	fp := ""
	if len(o.Raw) > 0 {
		var err error
		if fp, err = Fingerprint(o.Raw); err != nil {
			return fmt.Errorf("audit fingerprint failed: %w", err)
		}
	}

	event := NewEvent(eventType, result).
		WithObject(Object{
			Type:        "ocsp-request",
			Fingerprint: fp,
			Serials:     strings.Join(o.Serials, ","),
		}).
		WithContext(Context{
			Source:    o.Source,
			RequestID: o.RequestID,
			Requests:  o.Requests,
			Signed:    o.Signed,
			Nonce:     o.Nonce,
			ErrorKind: o.ErrorKind,
			Field:     o.Field,
			Offset:    o.Offset,
			Reason:    o.Reason,
		})
	if o.Remote != "" {
		event.WithActor(Actor{Type: "client", ID: o.Remote, Host: event.Actor.Host})
	}

	return MustLog(event)
}

// LogServeStarted logs the start of the HTTP service.
func LogServeStarted(addr string, tls bool) error {
	reason := "plaintext"
	if tls {
		reason = "tls"
	}
	event := NewEvent(EventServeStarted, ResultSuccess).
		WithActor(serviceActor()).
		WithObject(Object{Type: "server", Path: addr}).
		WithContext(Context{Reason: reason})
	return MustLog(event)
}

// LogServeStopped logs the end of the HTTP service.
func LogServeStopped(addr string, cause error) error {
	result, reason := ResultSuccess, ""
	if cause != nil {
		result, reason = ResultFailure, cause.Error()
	}
	event := NewEvent(EventServeStopped, result).
		WithActor(serviceActor()).
		WithObject(Object{Type: "server", Path: addr}).
		WithContext(Context{Reason: reason})
	return MustLog(event)
}

// LogTLSReloaded logs a TLS certificate reload attempt.
func LogTLSReloaded(certPath string, cause error) error {
	result, reason := ResultSuccess, ""
	if cause != nil {
		result, reason = ResultFailure, cause.Error()
	}
	event := NewEvent(EventTLSReloaded, result).
		WithActor(serviceActor()).
		WithObject(Object{Type: "tls-certificate", Path: certPath}).
		WithContext(Context{Reason: reason})
	return MustLog(event)
}

func serviceActor() Actor {
	hostname, _ := os.Hostname()
	return Actor{Type: "service", ID: "ocspreq", Host: hostname}
}
