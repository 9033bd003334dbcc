package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/policyscan/internal/model"
)

// JSONWriter outputs complete scan reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// version is stamped into every document.
	version string

	// indentString is the per-level indentation. Empty means compact.
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent sets the indentation used for each nesting level.
func WithIndent(indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		version:    version,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport wraps a scan report with the tool version that produced it.
type JSONReport struct {
	// Version is the policyscan version that generated this report.
	Version string `json:"version"`

	// Report is the full scan report.
	Report *model.ScanReport `json:"report"`
}

// Write outputs the report wrapped with version metadata, followed by
// a newline.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	if report.Error != nil && report.ErrorMessage == "" {
		report.ErrorMessage = report.Error.Error()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indentString != "" {
		enc.SetIndent("", w.indentString)
	}

	if err := enc.Encode(&JSONReport{Version: w.version, Report: report}); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}
