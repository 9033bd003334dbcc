package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/policyscan/internal/config"
	"github.com/nao1215/policyscan/internal/database"
	"github.com/nao1215/policyscan/internal/model"
)

// maxWordDeltas is how many word changes the text and Markdown outputs show.
const maxWordDeltas = 15

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <base-url>",
		Short: "Compare two recorded runs of a site",
		Long: `Compare shows what changed on a site between two recorded runs:
external links that were added or removed, whether the homepage or the
privacy policy page changed, and which word counts changed.

By default the latest run is compared with the one before it.

Examples:
  # Compare the latest two runs
  policyscan compare https://www.example.com

  # Compare the latest run with a specific run
  policyscan compare --with-run-id 3f2a... https://www.example.com

  # Compare the latest run with the first run since a date
  policyscan compare --since 2026-01-01 https://www.example.com

  # Output in JSON or Markdown
  policyscan compare --json https://www.example.com
  policyscan compare --markdown https://www.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with-run-id", "i", "", "Compare the latest run with this run")
	cmd.Flags().StringP("since", "s", "", "Compare the latest run with the oldest run since this date (YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	withRunID, err := flags.GetString("with-run-id")
	if err != nil {
		return err
	}
	since, err := flags.GetString("since")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if withRunID != "" && since != "" {
		return fmt.Errorf("--with-run-id and --since cannot be used together")
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	previous, current, err := selectRuns(cmd, db, args[0], withRunID, since)
	if err != nil {
		return err
	}

	comparison := database.Compare(previous, current)
	out := cmd.OutOrStdout()

	switch {
	case jsonOutput:
		return writeJSON(out, comparison)
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		outputComparisonText(out, comparison)
		return nil
	}
}

// selectRuns returns the previous and current reports to compare.
// The current report is always the latest run of baseURL.
func selectRuns(cmd *cobra.Command, db *database.HistoryDB, baseURL, withRunID, since string) (*model.ScanReport, *model.ScanReport, error) {
	ctx := cmd.Context()

	latest, err := db.LatestRuns(ctx, baseURL, 2)
	if err != nil {
		return nil, nil, err
	}
	if len(latest) == 0 {
		return nil, nil, fmt.Errorf("no runs recorded for %s", baseURL)
	}
	current := latest[0]

	switch {
	case withRunID != "":
		previous, err := db.GetRun(ctx, withRunID)
		if err != nil {
			return nil, nil, err
		}
		if previous.BaseURL != baseURL {
			return nil, nil, fmt.Errorf("run %s belongs to %s, not %s", withRunID, previous.BaseURL, baseURL)
		}
		return previous, current, nil

	case since != "":
		sinceDate, err := time.Parse(time.DateOnly, since)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		runs, err := db.ListRuns(ctx, baseURL, 0)
		if err != nil {
			return nil, nil, err
		}
		// Runs are newest first; walk backwards to find the oldest match.
		for i := len(runs) - 1; i >= 0; i-- {
			if runs[i].StartedAt.Before(sinceDate) {
				continue
			}
			if runs[i].RunID == current.RunID {
				return nil, nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", since)
			}
			previous, err := db.GetRun(ctx, runs[i].RunID)
			if err != nil {
				return nil, nil, err
			}
			return previous, current, nil
		}
		return nil, nil, fmt.Errorf("no runs found since %s", since)
	}

	if len(latest) < 2 {
		return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(latest))
	}
	return latest[1], current, nil
}

func outputComparisonText(out io.Writer, c *database.Comparison) {
	fmt.Fprintf(out, "Run Comparison: %s\n", c.BaseURL)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: %s  (%s)\n", formatTime(c.Previous.StartedAt), c.Previous.RunID)
	fmt.Fprintf(out, "Current run:  %s  (%s)\n", formatTime(c.Current.StartedAt), c.Current.RunID)

	if c.Unchanged() {
		fmt.Fprintln(out, "\nNo changes.")
		return
	}

	fmt.Fprintf(out, "\n  %-16s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", "External links",
		c.Previous.LinkCount, c.Current.LinkCount, formatDelta(c.Current.LinkCount-c.Previous.LinkCount))
	fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", "Policy words",
		c.Previous.WordTotal, c.Current.WordTotal, formatDelta(c.Current.WordTotal-c.Previous.WordTotal))

	fmt.Fprintf(out, "\nHomepage changed:    %s\n", yesNo(c.HomepageChanged))
	fmt.Fprintf(out, "Policy page changed: %s\n", yesNo(c.PolicyChanged))
	if c.PolicyURLChanged {
		fmt.Fprintf(out, "Policy URL changed:  %s -> %s\n", orNone(c.Previous.PolicyURL), orNone(c.Current.PolicyURL))
	}

	if len(c.AddedLinks) > 0 {
		fmt.Fprintf(out, "\nAdded Links (%d):\n", len(c.AddedLinks))
		for _, l := range c.AddedLinks {
			fmt.Fprintf(out, "  [+] %s\n", l)
		}
	}
	if len(c.RemovedLinks) > 0 {
		fmt.Fprintf(out, "\nRemoved Links (%d):\n", len(c.RemovedLinks))
		for _, l := range c.RemovedLinks {
			fmt.Fprintf(out, "  [-] %s\n", l)
		}
	}

	if len(c.WordDeltas) > 0 {
		fmt.Fprintf(out, "\nWord Changes (%d):\n", len(c.WordDeltas))
		for _, d := range limitDeltas(c.WordDeltas) {
			fmt.Fprintf(out, "  %-20s  %5d -> %-5d  %s\n", d.Word, d.Previous, d.Current, formatDelta(d.Delta))
		}
		if len(c.WordDeltas) > maxWordDeltas {
			fmt.Fprintf(out, "  ... and %d more\n", len(c.WordDeltas)-maxWordDeltas)
		}
	}
}

func outputComparisonMarkdown(out io.Writer, c *database.Comparison) error {
	md := markdown.NewMarkdown(out)

	md.H1("Run Comparison: " + c.BaseURL)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", formatTime(c.Previous.StartedAt), formatTime(c.Current.StartedAt), "-"},
			{"External links", strconv.Itoa(c.Previous.LinkCount), strconv.Itoa(c.Current.LinkCount),
				formatDelta(c.Current.LinkCount - c.Previous.LinkCount)},
			{"Policy words", strconv.Itoa(c.Previous.WordTotal), strconv.Itoa(c.Current.WordTotal),
				formatDelta(c.Current.WordTotal - c.Previous.WordTotal)},
			{"Homepage changed", "-", "-", yesNo(c.HomepageChanged)},
			{"Policy page changed", "-", "-", yesNo(c.PolicyChanged)},
		},
	})
	md.PlainText("")

	if c.Unchanged() {
		md.Note("No changes between the two runs.")
		return md.Build()
	}

	if c.PolicyURLChanged {
		md.Warningf("Policy URL changed from `%s` to `%s`.", orNone(c.Previous.PolicyURL), orNone(c.Current.PolicyURL))
		md.PlainText("")
	}

	if len(c.AddedLinks) > 0 {
		md.H2(fmt.Sprintf("Added Links (%d)", len(c.AddedLinks)))
		md.PlainText("")
		md.BulletList(c.AddedLinks...)
		md.PlainText("")
	}
	if len(c.RemovedLinks) > 0 {
		md.H2(fmt.Sprintf("Removed Links (%d)", len(c.RemovedLinks)))
		md.PlainText("")
		removed := make([]string, len(c.RemovedLinks))
		for i, l := range c.RemovedLinks {
			removed[i] = "~~" + l + "~~"
		}
		md.BulletList(removed...)
		md.PlainText("")
	}

	if len(c.WordDeltas) > 0 {
		md.H2(fmt.Sprintf("Word Changes (%d)", len(c.WordDeltas)))
		md.PlainText("")
		deltas := limitDeltas(c.WordDeltas)
		rows := make([][]string, len(deltas))
		for i, d := range deltas {
			rows[i] = []string{"`" + d.Word + "`", strconv.Itoa(d.Previous), strconv.Itoa(d.Current), formatDelta(d.Delta)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Word", "Previous", "Current", "Change"},
			Rows:   rows,
		})
	}

	return md.Build()
}

func limitDeltas(deltas []database.WordDelta) []database.WordDelta {
	if len(deltas) > maxWordDeltas {
		return deltas[:maxWordDeltas]
	}
	return deltas
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
