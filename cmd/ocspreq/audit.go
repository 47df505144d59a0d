package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspreq/internal/audit"
	"github.com/remiblancher/ocspreq/internal/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the request audit log",
	Long: `Inspect the hash-chained audit log written by decode and serve.

Every decoded or refused OCSP request is recorded by the CID of its DER
bytes, with its serials or the decoder failure (kind, field, offset).
Service start, stop and TLS reloads are recorded too.

Examples:
  # Check that no event was altered, removed or inserted
  ocspreq audit verify --log /var/log/ocspreq/audit.jsonl

  # Show the last 20 refused requests
  ocspreq audit tail --log /var/log/ocspreq/audit.jsonl -n 20 --rejected`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the audit log hash chain",
	Long: `Recompute the SHA-256 chain of an audit log.

Each line stores hash_prev, the hash of the line before it (sha256:genesis
for the first), and hash, computed over the line's canonical JSON and
hash_prev. The first line that does not chain is reported.`,
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent audit events",
	RunE:  runAuditTail,
}

var (
	auditLogFile  string
	auditTailNum  int
	auditShowJSON bool
	auditRejected bool
)

func init() {
	auditVerifyCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (required)")
	_ = auditVerifyCmd.MarkFlagRequired("log")

	auditTailCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (required)")
	_ = auditTailCmd.MarkFlagRequired("log")
	auditTailCmd.Flags().IntVarP(&auditTailNum, "num", "n", 10, "Number of events to show")
	auditTailCmd.Flags().BoolVar(&auditShowJSON, "json", false, "Output as a JSON array")
	auditTailCmd.Flags().BoolVar(&auditRejected, "rejected", false, "Show only rejected requests")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verifying audit log: %s\n\n", auditLogFile)

	count, err := audit.VerifyChain(auditLogFile)
	if err != nil {
		fmt.Fprintf(out, "VERIFICATION FAILED\n")
		fmt.Fprintf(out, "  Valid events: %d\n", count)
		fmt.Fprintf(out, "  Error: %s\n", err)
		return fmt.Errorf("audit log verification failed: %w", err)
	}

	fmt.Fprintf(out, "VERIFICATION PASSED\n")
	fmt.Fprintf(out, "  Total events: %d\n", count)
	fmt.Fprintf(out, "  Hash chain: VALID\n")
	return nil
}

// tailLine is one log line, kept raw for --json output.
type tailLine struct {
	raw   []byte
	event audit.Event
	err   error
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	f, err := os.Open(auditLogFile)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []tailLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		l := tailLine{raw: bytes.Clone(raw)}
		l.err = json.Unmarshal(raw, &l.event)
		if auditRejected && (l.err != nil || l.event.EventType != audit.EventRequestRejected) {
			continue
		}
		lines = append(lines, l)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(lines) == 0 {
		if auditRejected {
			fmt.Fprintln(out, "No rejected requests")
		} else {
			fmt.Fprintln(out, "Audit log is empty")
		}
		return nil
	}
	if auditTailNum >= 0 && len(lines) > auditTailNum {
		lines = lines[len(lines)-auditTailNum:]
	}

	if auditShowJSON {
		raws := make([]json.RawMessage, 0, len(lines))
		for _, l := range lines {
			if l.err == nil {
				raws = append(raws, l.raw)
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(raws)
	}

	p := palette(out)
	for _, l := range lines {
		if l.err != nil {
			fmt.Fprintf(out, "  [ERROR] %s\n", l.err)
			continue
		}
		printEvent(out, &l.event, p)
	}
	return nil
}

// printEvent renders an event as a header line followed by aligned fields.
// Request events show what was asked for, or where decoding stopped.
func printEvent(w io.Writer, e *audit.Event, p cli.Palette) {
	status := "ok"
	if e.Result == audit.ResultFailure {
		status = "failed"
	}
	fmt.Fprintf(w, "%s  %s  %s\n", e.Timestamp, e.EventType, p.Status(status))

	c := e.Context
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "    %-9s %s\n", name+":", value)
		}
	}

	switch e.Object.Type {
	case "ocsp-request":
		field("cid", e.Object.Fingerprint)
		field("input", e.Object.Path)
		field("from", requestOrigin(e))
		field("serials", e.Object.Serials)
		if e.EventType == audit.EventRequestDecoded {
			field("requests", requestSummary(c))
		}
		if c.ErrorKind != "" {
			field("error", rejectSummary(c))
		}
		field("reason", c.Reason)
	default:
		field(e.Object.Type, e.Object.Path)
		field("by", e.Actor.ID+"@"+e.Actor.Host)
		field("reason", c.Reason)
	}
	fmt.Fprintln(w)
}

// requestOrigin joins the intake source, the remote peer and the HTTP
// request ID.
func requestOrigin(e *audit.Event) string {
	s := e.Context.Source
	if e.Actor.ID != "" {
		s += " " + e.Actor.ID
	}
	if e.Context.RequestID != "" {
		s += " (" + e.Context.RequestID + ")"
	}
	return s
}

func requestSummary(c audit.Context) string {
	s := fmt.Sprintf("%d", c.Requests)
	if c.Signed {
		s += ", signed"
	}
	if c.Nonce {
		s += ", nonce"
	}
	return s
}

func rejectSummary(c audit.Context) string {
	if c.Field == "" {
		return c.ErrorKind
	}
	return fmt.Sprintf("%s in %s at offset %d", c.ErrorKind, c.Field, c.Offset)
}
