package analysis

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-lpc/internal/errors"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Export writes a frame sequence to w as YAML or JSON.
func Export(w io.Writer, v any, format string) error {
	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return exportError(err, FormatYAML)
		}
		if err := enc.Close(); err != nil {
			return exportError(err, FormatYAML)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return exportError(err, FormatJSON)
		}
		return nil
	default:
		return errors.ValidationError("analysis", "unsupported output format %q", format)
	}
}

func exportError(err error, format string) error {
	return errors.New(err).
		Component("analysis").
		Category(errors.CategoryFileIO).
		Context("format", format).
		Build()
}
