package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/policyscan/internal/model"
)

// DefaultTopWords is how many of the most frequent words summaries show.
const DefaultTopWords = 10

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// topWords is the number of most frequent words listed.
	topWords int

	// verbose lists every external link instead of only the count.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithTopWords sets how many of the most frequent words are listed.
func WithTopWords(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n > 0 {
			w.topWords = n
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		topWords:   DefaultTopWords,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeLinks(&sb, report)
	w.writePolicy(&sb, report)
	w.writeWords(&sb, report)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        POLICYSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Site:           %s\n", report.BaseURL)
	fmt.Fprintf(sb, "Scan Date:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:       %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	if report.FailedStage != "" {
		fmt.Fprintf(sb, "Failed Stage:   %s\n", report.FailedStage)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLinks(sb *strings.Builder, report *model.ScanReport) {
	sectionHeader(sb, "EXTERNAL LINKS")

	fmt.Fprintf(sb, "  Found: %d\n", len(report.ExternalLinks))
	if report.LinksFile != "" {
		fmt.Fprintf(sb, "  File:  %s\n", report.LinksFile)
	}
	if w.verbose {
		for _, link := range report.ExternalLinks {
			fmt.Fprintf(sb, "  [+] %s\n", link)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePolicy(sb *strings.Builder, report *model.ScanReport) {
	if !report.AnchorSearched {
		return
	}

	sectionHeader(sb, "PRIVACY POLICY")

	if report.Anchor == nil {
		sb.WriteString("  No matching anchor found\n\n")
		return
	}

	fmt.Fprintf(sb, "  Anchor: %q\n", report.Anchor.Text)
	fmt.Fprintf(sb, "  Href:   %s\n", report.Anchor.Href)
	fmt.Fprintf(sb, "  URL:    %s\n", report.Anchor.URL)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeWords(sb *strings.Builder, report *model.ScanReport) {
	if report.WordCount == nil {
		return
	}

	sectionHeader(sb, "WORD COUNT")

	fmt.Fprintf(sb, "  Distinct words: %d\n", len(report.WordCount))
	fmt.Fprintf(sb, "  Total words:    %d\n", report.WordCount.Total())
	if report.WordsFile != "" {
		fmt.Fprintf(sb, "  File:           %s\n", report.WordsFile)
	}

	top := report.WordCount.Top(w.topWords)
	if len(top) > 0 {
		sb.WriteString("\n  Most frequent:\n")
		for _, f := range top {
			fmt.Fprintf(sb, "    %-20s %d\n", f.Word, f.Count)
		}
	}
	sb.WriteString("\n")
}

func sectionHeader(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
