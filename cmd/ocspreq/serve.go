package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspreq/internal/api/server"
	"github.com/remiblancher/ocspreq/internal/audit"
)

// Serve command flags
var (
	serveConfig   string
	servePort     int
	serveHost     string
	serveTLSCert  string
	serveTLSKey   string
	serveMaxBytes int64
	serveServices []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OCSP request intake service",
	Long: `Start an HTTP(S) service that decodes OCSP requests.

Endpoints:
  POST /ocsp                      RFC 6960 POST binding (application/ocsp-request)
  GET  /ocsp/{base64}             RFC 6960 GET binding
  POST /api/v1/requests/decode    JSON API (base64, hex or PEM input)
  GET  /health, /ready            Probes

Responses are JSON, or CBOR when the client sends "Accept: application/cbor".

Flags override the values of the --config file. With TLS, the certificate
and key are reloaded when they change on disk, and HTTP/2 is negotiated.

Examples:
  # Plain HTTP on port 8080
  ocspreq serve

  # From a config file, overriding the port
  ocspreq serve --config /etc/ocspreq/ocspreq.yaml --port 9443

  # With TLS
  ocspreq serve --port 8443 --tls-cert server.crt --tls-key server.key`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Path to YAML config file")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: 8080)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: all interfaces)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS private key file")
	serveCmd.Flags().Int64Var(&serveMaxBytes, "max-request-bytes", 0, "Maximum request size (default: 65536)")
	serveCmd.Flags().StringSliceVar(&serveServices, "services", nil, "Services to enable: api, ocsp, all")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	if err := initServeAudit(cfg); err != nil {
		return err
	}

	return server.New(cfg, version).WithOutput(cmd.OutOrStdout()).Start()
}

// initServeAudit adds the config file's audit_log to the --audit-log opened
// by the root command. When both name different files, every event is
// written to each of them.
func initServeAudit(cfg *server.Config) error {
	if cfg.AuditLog == "" || cfg.AuditLog == auditLogPath {
		cfg.AuditLog = auditLogPath
		return nil
	}

	if err := audit.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	if err := audit.InitFiles(auditLogPath, cfg.AuditLog); err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}
	if auditLogPath != "" {
		cfg.AuditLog = auditLogPath + ", " + cfg.AuditLog
	}
	return nil
}

// loadServeConfig reads --config, if any, and applies the flags that were
// set on the command line.
func loadServeConfig(cmd *cobra.Command) (*server.Config, error) {
	cfg := server.DefaultConfig()
	if serveConfig != "" {
		var err error
		if cfg, err = server.LoadConfig(serveConfig); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("host") {
		cfg.Host = serveHost
	}
	if flags.Changed("tls-cert") {
		cfg.TLS.Cert = serveTLSCert
	}
	if flags.Changed("tls-key") {
		cfg.TLS.Key = serveTLSKey
	}
	if flags.Changed("max-request-bytes") {
		cfg.MaxRequestBytes = serveMaxBytes
	}
	if flags.Changed("services") {
		cfg.Services = serveServices
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
