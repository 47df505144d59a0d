// Command ocspreq decodes and validates OCSP requests (RFC 6960).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspreq/internal/audit"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var auditLogPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ocspreq",
	Short: "OCSP request decoder and intake service",
	Long: `ocspreq decodes DER-encoded OCSP requests (RFC 6960) into a validated
object model, or reports exactly where and why a request is malformed.

It runs as a one-shot command or as an HTTP intake service that accepts
requests on the standard OCSP GET and POST bindings.

Examples:
  # Decode a request written by "openssl ocsp -reqout"
  ocspreq decode req.der

  # Decode hex from stdin and check it against an issuer certificate
  echo 306e... | ocspreq decode --in hex --issuer ca.pem -

  # Start the intake service
  ocspreq serve --port 8080 --audit-log /var/log/ocspreq/audit.jsonl`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check for audit log path from environment if not set via flag
		if auditLogPath == "" {
			auditLogPath = os.Getenv("OCSPREQ_AUDIT_LOG")
		}

		if auditLogPath != "" {
			if err := audit.InitFile(auditLogPath); err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return audit.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set OCSPREQ_AUDIT_LOG env var)")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
}
