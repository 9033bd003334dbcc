package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/policyscan/internal/model"
)

// defaultChartWords is how many words the pie chart shows.
const defaultChartWords = 8

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	// topWords is the number of rows in the word frequency table.
	topWords int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownTopWords sets the number of rows in the word frequency table.
func WithMarkdownTopWords(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n > 0 {
			w.topWords = n
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		topWords:   DefaultTopWords,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeLinks(md, report)
	w.writePolicy(md, report)
	w.writeWords(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Policy Scan Report")
	md.PlainText("")

	rows := [][]string{
		{"Site", "`" + report.BaseURL + "`"},
		{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if d := report.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}
	rows = append(rows, []string{"Status", w.getStatusText(report)})
	if report.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + report.RunID + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case report.Failed():
		md.Warningf("Scan stopped at stage `%s`.", report.FailedStage)
		md.PlainText("")
	case report.AnchorSearched && !report.PolicyFound():
		md.Note("No anchor with the expected text was found, so no word count was produced.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) getStatusText(report *model.ScanReport) string {
	if report.Failed() {
		return "❌ " + statusText(report)
	}
	return "✅ " + statusText(report)
}

func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("External Links")
	md.PlainText("")

	if len(report.ExternalLinks) == 0 {
		md.PlainText("No external links found.")
		md.PlainText("")
		return
	}

	md.PlainTextf("%d external link(s) found on the homepage.", len(report.ExternalLinks))
	md.PlainText("")

	rows := make([][]string, len(report.ExternalLinks))
	for i, link := range report.ExternalLinks {
		rows[i] = []string{strconv.Itoa(i + 1), link}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "URL"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePolicy(md *markdown.Markdown, report *model.ScanReport) {
	if report.Anchor == nil {
		return
	}

	md.H2("Privacy Policy")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Anchor Text", report.Anchor.Text},
			{"Href", "`" + report.Anchor.Href + "`"},
			{"URL", report.Anchor.URL},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeWords(md *markdown.Markdown, report *model.ScanReport) {
	if report.WordCount == nil {
		return
	}

	md.H2("Word Frequency")
	md.PlainText("")
	md.PlainTextf("%d distinct word(s), %d in total.", len(report.WordCount), report.WordCount.Total())
	md.PlainText("")

	top := report.WordCount.Top(w.topWords)
	if len(top) == 0 {
		return
	}

	rows := make([][]string, len(top))
	for i, f := range top {
		rows[i] = []string{"`" + f.Word + "`", strconv.Itoa(f.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Word", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, report.WordCount.Top(defaultChartWords))
}

// writePieChart writes a mermaid pie chart of the most frequent words.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, top []model.WordFrequency) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Most Frequent Words"),
		piechart.WithShowData(true),
	)

	for _, f := range top {
		chart.LabelAndIntValue(f.Word, uint64(f.Count)) //nolint:gosec // counts are positive
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [policyscan](https://github.com/nao1215/policyscan)*")
}
