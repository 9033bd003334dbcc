package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/policyscan/internal/config"
	"github.com/nao1215/policyscan/internal/database"
	"github.com/nao1215/policyscan/internal/report"
)

// defaultHistoryLimit is how many runs history lists unless --limit is given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [base-url]",
		Short: "List recorded scan runs",
		Long: `History lists the runs recorded in the history database, newest first.

Examples:
  # List the latest runs of all sites
  policyscan history

  # List runs of one site
  policyscan history https://www.example.com

  # List every site with its number of runs
  policyscan history --sites

  # Show the full report of one run
  policyscan history --run 3f2a...

  # Delete runs older than a date
  policyscan history --prune-before 2026-01-01`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolP("sites", "s", false, "List recorded sites instead of runs")
	cmd.Flags().StringP("run", "r", "", "Show the full report of the run with this ID")
	cmd.Flags().String("prune-before", "", "Delete runs started before this date (YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output --run report in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	listSites, err := flags.GetBool("sites")
	if err != nil {
		return err
	}
	runID, err := flags.GetString("run")
	if err != nil {
		return err
	}
	pruneBefore, err := flags.GetString("prune-before")
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

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case pruneBefore != "":
		before, err := time.Parse(time.DateOnly, pruneBefore)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		n, err := db.DeleteBefore(ctx, before)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d run(s) started before %s\n", n, pruneBefore)
		return nil

	case runID != "":
		scan, err := db.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		var w report.Writer
		switch {
		case jsonOutput:
			w = report.NewJSONWriter(out, getVersion(), report.WithPrettyPrint())
		case markdownOutput:
			w = report.NewMarkdownWriter(out)
		default:
			w = report.NewSimpleWriter(out, report.WithVerbose(true))
		}
		_, err = w.Write(scan)
		return err

	case listSites:
		sites, err := db.ListSites(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, sites)
		}
		printSites(out, sites)
		return nil
	}

	var baseURL string
	if len(args) == 1 {
		baseURL = args[0]
	}
	runs, err := db.ListRuns(ctx, baseURL, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, runs)
	}
	printRuns(out, baseURL, runs)
	return nil
}

func printSites(out io.Writer, sites []database.SiteSummary) {
	if len(sites) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}

	fmt.Fprintf(out, "Recorded sites (%d):\n\n", len(sites))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "Runs", "Last Run", "Site")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, s := range sites {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n", s.RunCount, formatTime(s.LastRun), s.BaseURL)
	}
}

func printRuns(out io.Writer, baseURL string, runs []database.RunSummary) {
	if len(runs) == 0 {
		if baseURL != "" {
			fmt.Fprintf(out, "No runs recorded for %s.\n", baseURL)
		} else {
			fmt.Fprintln(out, "No runs recorded.")
		}
		return
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-20s  %-10s  %-6s  %-6s  %s\n", "Run ID", "Started", "Status", "Links", "Words", "Site")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 110))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-20s  %-10s  %-6d  %-6d  %s\n",
			r.RunID, formatTime(r.StartedAt), r.Status, r.LinkCount, r.WordTotal, r.BaseURL)
	}

	fmt.Fprintln(out, "\nUse 'policyscan history --run <id>' to show a run.")
	fmt.Fprintln(out, "Use 'policyscan compare <base-url>' to compare the latest two runs of a site.")
}

// openHistory opens the existing history database named by --db-dir.
func openHistory(cmd *cobra.Command) (*database.HistoryDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return nil, fmt.Errorf("failed to open database (run a scan first): %w", err)
	}
	return db, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
