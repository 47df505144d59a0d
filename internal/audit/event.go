// Package audit provides tamper-evident audit logging of OCSP request
// intake.
//
// Audit logs are separate from technical logs and designed for:
//   - Accountability of which requests a responder accepted or refused
//   - SIEM integration (one JSON object per line)
//   - Tamper evidence via cryptographic hash chaining
//
// Key principles:
//   - Audit failure = Operation failure
//   - Never log request payloads, only their fingerprint
//   - All timestamps in UTC
//   - Hash chain for integrity verification
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EventType represents the category of audit event.
type EventType string

const (
	// Request intake events
	EventRequestDecoded  EventType = "OCSP_REQUEST_DECODED"
	EventRequestRejected EventType = "OCSP_REQUEST_REJECTED"

	// Service lifecycle events
	EventServeStarted EventType = "OCSP_SERVE_STARTED"
	EventServeStopped EventType = "OCSP_SERVE_STOPPED"
	EventTLSReloaded  EventType = "TLS_CERT_RELOADED"
)

// Result represents the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor represents who performed the action.
type Actor struct {
	Type string `json:"type"`           // "user", "client", "service"
	ID   string `json:"id"`             // username, remote address or service name
	Host string `json:"host,omitempty"` // hostname where action occurred
}

// Object represents what was acted upon.
type Object struct {
	Type        string `json:"type"`                  // "ocsp-request", "server", "tls-certificate"
	Fingerprint string `json:"fingerprint,omitempty"` // CIDv1 of the raw request
	Serials     string `json:"serials,omitempty"`     // comma-separated requested serials (hex)
	Path        string `json:"path,omitempty"`        // input file, listen address or cert path
}

// Context provides additional details about the operation.
type Context struct {
	Source    string `json:"source,omitempty"`     // "http-get", "http-post", "cli"
	RequestID string `json:"request_id,omitempty"` // HTTP request ID
	Requests  int    `json:"requests,omitempty"`   // number of OneReq entries
	Signed    bool   `json:"signed,omitempty"`     // request carries a signature
	Nonce     bool   `json:"nonce,omitempty"`      // request carries a nonce
	ErrorKind string `json:"error_kind,omitempty"` // decoder error kind
	Field     string `json:"field,omitempty"`      // decoder field label
	Offset    int    `json:"offset,omitempty"`     // byte offset of the error
	Reason    string `json:"reason,omitempty"`     // failure reason
}

// Event represents a single audit log entry.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"` // SHA-256 hash of previous event
	Hash      string    `json:"hash"`      // SHA-256 hash of this event
}

// NewEvent creates a new audit event with current timestamp and actor info.
func NewEvent(eventType EventType, result Result) *Event {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME") // Windows
	}
	if username == "" {
		username = "unknown"
	}

	return &Event{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor: Actor{
			Type: "user",
			ID:   username,
			Host: hostname,
		},
		Result: result,
	}
}

// WithObject sets the object field.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context field.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if e.Actor.Type == "" || e.Actor.ID == "" {
		return fmt.Errorf("actor type and id are required")
	}
	if e.Result == "" {
		return fmt.Errorf("result is required")
	}
	return nil
}

// CanonicalJSON returns the event as canonical JSON for hashing.
// Excludes the Hash field to allow hash calculation.
func (e *Event) CanonicalJSON() ([]byte, error) {
	type eventForHash struct {
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Object    Object    `json:"object"`
		Context   Context   `json:"context,omitempty"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}

	return json.Marshal(eventForHash{
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Object:    e.Object,
		Context:   e.Context,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	})
}

// JSON returns the full event as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
