package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/remiblancher/ocspreq/internal/api/dto"
	"github.com/remiblancher/ocspreq/internal/ocsp"
)

// RenderRequest prints a decoded request in the same layout as
// "openssl ocsp -reqin -req_text".
func RenderRequest(w io.Writer, view *dto.DecodedRequest, p Palette) {
	fmt.Fprintln(w, p.Heading("OCSP Request Data:"))
	fmt.Fprintf(w, "    Version: %d (0x%x)\n", view.Version+1, view.Version)
	if view.RequestorName != "" {
		fmt.Fprintf(w, "    Requestor Name: %s\n", view.RequestorName)
	}
	fmt.Fprintln(w, "    Requestor List:")
	if len(view.Requests) == 0 {
		fmt.Fprintln(w, "        (empty)")
	}
	for _, r := range view.Requests {
		fmt.Fprintln(w, "        Certificate ID:")
		fmt.Fprintf(w, "          Hash Algorithm: %s (%s)\n", r.HashAlgorithm, r.HashOID)
		fmt.Fprintf(w, "          Issuer Name Hash: %s\n", strings.ToUpper(r.IssuerNameHash))
		fmt.Fprintf(w, "          Issuer Key Hash: %s\n", strings.ToUpper(r.IssuerKeyHash))
		fmt.Fprintf(w, "          Serial Number: %s\n", strings.ToUpper(r.Serial))
		if r.IssuerMatch != nil {
			status := "mismatch"
			if *r.IssuerMatch {
				status = "match"
			}
			fmt.Fprintf(w, "          Issuer: %s\n", p.Status(status))
		}
		renderExtensions(w, "        ", r.Extensions, p)
	}
	renderExtensions(w, "    Request ", view.Extensions, p)

	if view.Signature != nil {
		fmt.Fprintf(w, "    Signature: %s\n", p.Status("signed"))
		fmt.Fprintf(w, "        Algorithm: %s (%s)\n", view.Signature.Algorithm, view.Signature.AlgorithmOID)
		fmt.Fprintf(w, "        Certificates: %d\n", view.Signature.Certificates)
	}
	if view.Fingerprint != "" {
		fmt.Fprintf(w, "    Fingerprint: %s\n", view.Fingerprint)
	}
}

func renderExtensions(w io.Writer, prefix string, exts []dto.ExtensionInfo, p Palette) {
	if len(exts) == 0 {
		return
	}
	fmt.Fprintf(w, "%sExtensions:\n", prefix)
	indent := strings.Repeat(" ", len(prefix)-len(strings.TrimLeft(prefix, " "))+4)
	for _, ext := range exts {
		crit := ""
		if ext.Critical {
			crit = ": " + p.Status("critical")
		}
		fmt.Fprintf(w, "%s%s (%s)%s\n", indent, ext.Name, ext.OID, crit)
		switch {
		case ext.CRL != nil:
			if ext.CRL.URL != "" {
				fmt.Fprintf(w, "%s    crlUrl: %s\n", indent, ext.CRL.URL)
			}
			if ext.CRL.Number != "" {
				fmt.Fprintf(w, "%s    crlNum: %s\n", indent, strings.ToUpper(ext.CRL.Number))
			}
			if ext.CRL.Time != "" {
				fmt.Fprintf(w, "%s    crlTime: %s\n", indent, ext.CRL.Time)
			}
		case ext.Value != "":
			fmt.Fprintf(w, "%s    %s\n", indent, strings.ToUpper(ext.Value))
		}
	}
}

// RenderError prints a decoder error with a hex view of the bytes around
// the failing offset. Errors that are not decoder errors print as-is.
func RenderError(w io.Writer, data []byte, err error, p Palette) {
	var decErr *ocsp.Error
	if !errors.As(err, &decErr) {
		fmt.Fprintf(w, "%s: %v\n", p.Status("rejected"), err)
		return
	}
	fmt.Fprintf(w, "%s: %s error in %s at offset %d\n",
		p.Status("rejected"), decErr.Kind, decErr.Field, decErr.Offset)
	fmt.Fprintf(w, "    %v\n", err)
	if dump := HexContext(data, decErr.Offset, 8); dump != "" {
		fmt.Fprintf(w, "    %s\n", dump)
	}
}

// HexContext formats up to radius bytes on each side of offset, with the
// byte at offset bracketed. An offset at the end of data marks "<end>".
func HexContext(data []byte, offset, radius int) string {
	if offset < 0 || offset > len(data) || len(data) == 0 {
		return ""
	}
	start := max(offset-radius, 0)
	end := min(offset+radius+1, len(data))

	var b strings.Builder
	fmt.Fprintf(&b, "%04x:", start)
	for i := start; i < end; i++ {
		if i == offset {
			fmt.Fprintf(&b, " [%02x]", data[i])
		} else {
			fmt.Fprintf(&b, " %02x", data[i])
		}
	}
	if offset == len(data) {
		b.WriteString(" <end>")
	}
	return b.String()
}
