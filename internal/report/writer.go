package report

import (
	"io"

	"github.com/nao1215/policyscan/internal/model"
)

// Writer defines the interface for report output.
// Implementations write scan results in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It is used to print a summary to the terminal while also saving a
// Markdown report to a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a scan ended.
func statusText(report *model.ScanReport) string {
	switch {
	case report.Failed():
		msg := report.ErrorMessage
		if msg == "" && report.Error != nil {
			msg = report.Error.Error()
		}
		return "ERROR - " + msg
	case report.AnchorSearched && !report.PolicyFound():
		return "Complete (no policy anchor)"
	default:
		return "Complete"
	}
}
