package main

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/ocspreq/internal/api/dto"
	"github.com/remiblancher/ocspreq/internal/api/service"
	"github.com/remiblancher/ocspreq/internal/cli"
)

// Decode command flags
var (
	decodeIn       string
	decodeFormat   string
	decodeIssuer   string
	decodeMaxBytes int64
	decodeNoColor  bool
	decodeVerbose  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file|-]",
	Short: "Decode an OCSP request",
	Long: `Decode a DER-encoded OCSP request and print its content.

The input is read from the given file, or from stdin when the argument is
omitted or "-". It may be raw DER, PEM ("OCSP REQUEST"), hex or base64;
--in auto detects the encoding.

On failure the error kind, the field being decoded and the byte offset are
reported together with the bytes around that offset.

Examples:
  # Text output, like "openssl ocsp -reqin req.der -req_text"
  ocspreq decode req.der

  # JSON output
  ocspreq decode --format json req.der

  # Check every CertID against an issuer
  ocspreq decode --issuer ca.pem req.der`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVar(&decodeIn, "in", cli.FormatAuto, "Input encoding: auto, der, pem, hex, base64")
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", "text", "Output format: text, json, cbor")
	decodeCmd.Flags().StringVar(&decodeIssuer, "issuer", "", "Issuer certificate to match against each CertID (PEM or DER)")
	decodeCmd.Flags().Int64Var(&decodeMaxBytes, "max-request-bytes", 0, "Maximum request size (default: 65536)")
	decodeCmd.Flags().BoolVar(&decodeNoColor, "no-color", false, "Disable colored output")
	decodeCmd.Flags().BoolVarP(&decodeVerbose, "verbose", "v", false, "Log decode outcomes to stderr")
}

func runDecode(cmd *cobra.Command, args []string) error {
	switch decodeFormat {
	case "text", "json", "cbor":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or cbor)", decodeFormat)
	}

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}

	var issuer *x509.Certificate
	if decodeIssuer != "" {
		var err error
		if issuer, err = cli.LoadCertFromPath(decodeIssuer); err != nil {
			return fmt.Errorf("failed to load issuer: %w", err)
		}
	}

	level := slog.LevelWarn
	if decodeVerbose {
		level = slog.LevelInfo
	}
	svc, err := service.NewRequestService(service.Options{
		MaxRequestBytes: decodeMaxBytes,
		Logger:          slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})),
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	in := service.Input{Source: service.SourceCLI, Issuer: issuer}

	data, err := cli.ReadInput(path, cmd.InOrStdin())
	if err != nil {
		return svc.Reject(ctx, in, err)
	}
	in.Raw, err = cli.LoadRequest(data, decodeIn)
	if err != nil {
		in.Raw = nil
		return svc.Reject(ctx, in, err)
	}

	view, err := svc.Decode(ctx, in)
	if err != nil {
		if decodeFormat == "text" {
			cli.RenderError(cmd.ErrOrStderr(), in.Raw, err, palette(cmd.ErrOrStderr()))
		}
		return fmt.Errorf("decode failed: %w", err)
	}

	return writeDecoded(cmd.OutOrStdout(), view)
}

func writeDecoded(w io.Writer, view *dto.DecodedRequest) error {
	switch decodeFormat {
	case "json":
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "cbor":
		data, err := dto.MarshalCBOR(view)
		if err != nil {
			return fmt.Errorf("failed to encode CBOR: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		cli.RenderRequest(w, view, palette(w))
		return nil
	}
}

// palette enables colors only for terminals.
func palette(w io.Writer) cli.Palette {
	if decodeNoColor || os.Getenv("NO_COLOR") != "" {
		return cli.Palette{}
	}
	f, ok := w.(*os.File)
	if !ok {
		return cli.Palette{}
	}
	fi, err := f.Stat()
	if err != nil {
		return cli.Palette{}
	}
	return cli.Palette{Enabled: fi.Mode()&os.ModeCharDevice != 0}
}
