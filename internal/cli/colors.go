package cli

// ANSI color codes for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

// Palette colors output when enabled.
type Palette struct {
	Enabled bool
}

func (p Palette) wrap(color, s string) string {
	if !p.Enabled {
		return s
	}
	return color + s + ColorReset
}

// Status returns a colored status word.
func (p Palette) Status(status string) string {
	switch status {
	case "match", "decoded", "valid", "ok":
		return p.wrap(ColorGreen, status)
	case "mismatch", "rejected", "invalid", "failed":
		return p.wrap(ColorRed, status)
	case "critical", "signed":
		return p.wrap(ColorYellow, status)
	default:
		return status
	}
}

// Heading returns s in the heading color.
func (p Palette) Heading(s string) string {
	return p.wrap(ColorBlue, s)
}
