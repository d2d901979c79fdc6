// Package output handles formatting output in different formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Palette holds the colors used for text output. Colors are disabled
// globally by color.NoColor (NO_COLOR, non-TTY stdout).
type Palette struct {
	OK      *color.Color
	Warn    *color.Color
	Fail    *color.Color
	Muted   *color.Color
	Heading *color.Color
}

// DefaultPalette returns the standard palette.
func DefaultPalette() Palette {
	return Palette{
		OK:      color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Fail:    color.New(color.FgRed),
		Muted:   color.New(color.Faint),
		Heading: color.New(color.Bold),
	}
}

// TextRenderer is implemented by values with a custom text layout.
type TextRenderer interface {
	RenderText(w io.Writer, p Palette) error
}

// Writer handles output in the specified format.
type Writer struct {
	format  Format
	w       io.Writer
	palette Palette
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{format: format, w: w, palette: DefaultPalette()}
}

// Write outputs the given value in the configured format.
func (w *Writer) Write(v any) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		if r, ok := v.(TextRenderer); ok {
			return r.RenderText(w.w, w.palette)
		}
		if s, ok := v.(fmt.Stringer); ok {
			_, err := fmt.Fprintln(w.w, s.String())
			return err
		}
		_, err := fmt.Fprintf(w.w, "%+v\n", v)
		return err
	}
}

// ParseFormat parses a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}
