package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/policyscan/internal/config"
	"github.com/nao1215/policyscan/internal/database"
	"github.com/nao1215/policyscan/internal/extract"
	"github.com/nao1215/policyscan/internal/fetch"
	"github.com/nao1215/policyscan/internal/log"
	"github.com/nao1215/policyscan/internal/model"
	"github.com/nao1215/policyscan/internal/pipeline"
	"github.com/nao1215/policyscan/internal/report"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [base-url...]",
		Short: "Scan sites for external links and privacy policy word counts",
		Long: `Scan fetches the homepage of each base URL and writes:

  ext_links.json   every external http(s) link of <link>, <script>, <a> and <img>
  word_count.json  word frequencies of the page linked by the "Privacy policy" anchor

word_count.json is only written when the anchor exists and its page could be
fetched. When several sites are scanned, each site's files go into a
sub-directory of --output-dir named after its host and path; targets that
would share a sub-directory are rejected.

Examples:
  # Scan the default site into the current directory
  policyscan scan

  # Scan a site and write the files to ./out
  policyscan scan --output-dir out https://www.example.com

  # Scan three sites, two at a time
  policyscan scan --batch 2 https://a.example https://b.example https://c.example

  # Print the full report as JSON
  policyscan scan --json https://www.example.com

  # Route requests through a SOCKS5 proxy and honour robots.txt
  policyscan scan --proxy 127.0.0.1:1080 --respect-robots https://www.example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("output-dir", "d", config.DefaultOutputDir,
		"Directory the result files are written to")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request (0 disables it)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with each request")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port)")
	cmd.Flags().Bool("respect-robots", false,
		"Skip URLs disallowed by the site's robots.txt")
	cmd.Flags().Bool("separate-text-nodes", false,
		"Join text of adjacent elements with a space before counting words")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent scans when several sites are given")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .policyscan in current, home or XDG config directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write the report to this file instead of stdout")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger)
}

// buildConfig creates a Config from defaults, the configuration file and
// the command flags, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicitly named file must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(cf)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("respect-robots"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}

	// Flags that the configuration file can also set only win when given.
	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("separate-text-nodes") {
		if cfg.SeparateTextNodes, err = flags.GetBool("separate-text-nodes"); err != nil {
			return nil, err
		}
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	cfg.Targets = args
	if len(cfg.Targets) == 0 {
		cfg.Targets = []string{config.DefaultBaseURL}
	}

	return cfg, nil
}

// runScan scans every target and returns an error when any scan failed.
// Reports go to out; per-site errors of a batch go to errOut.
func runScan(ctx context.Context, out, errOut io.Writer, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
		"outputDir", cfg.OutputDir,
	)

	if cfg.ProxyAddress != "" {
		if err := fetch.CheckProxy(ctx, cfg.ProxyAddress).Error(); err != nil {
			return fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, err)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	// Batch targets get one directory each; refuse to let two share one.
	var siteDirs map[string]string
	if len(cfg.Targets) > 1 {
		var err error
		if siteDirs, err = pipeline.SiteOutputDirs(cfg.OutputDir, cfg.Targets); err != nil {
			return err
		}
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// The result files do not depend on history.
			logger.Warn("history database unavailable, continuing without history",
				"dir", cfg.DBDir, "error", err)
			db = nil
		} else {
			defer db.Close()
			logger.Info("database opened", "path", db.Path())
		}
	}

	reportOut, closeReport, err := openReportOutput(out, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeReport()

	writer := newReportWriter(reportOut, cfg)
	factory := newPipelineFactory(cfg, logger, siteDirs)

	// Reports are written from the scanning goroutines in batch mode.
	var mu sync.Mutex
	failed := 0
	handle := func(scan *model.ScanReport, batch bool) {
		mu.Lock()
		defer mu.Unlock()

		if scan.Failed() {
			failed++
			if batch {
				fmt.Fprintf(errOut, "Scan error for %s: %v\n", scan.BaseURL, scanError(scan))
			}
		}
		// Saving first assigns the run ID shown in the report.
		if err := saveRun(ctx, db, scan, logger); err != nil {
			logger.Error("failed to save run", "site", scan.BaseURL, "error", err)
		}
		if _, err := writer.Write(scan); err != nil {
			logger.Error("report failed", "site", scan.BaseURL, "error", err)
		}
	}

	if len(cfg.Targets) == 1 {
		scan := model.NewScanReport(cfg.Targets[0])
		p, err := factory(scan.BaseURL)
		if err != nil {
			return err
		}
		execErr := p.Execute(ctx, scan)
		handle(scan, false)
		return execErr
	}

	startTime := time.Now()
	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	if err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(scan *model.ScanReport, _ int) {
		handle(scan, true)
	}); err != nil {
		return err
	}
	logger.Info("batch scan finished", "elapsed", time.Since(startTime).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(cfg.Targets))
	}
	return nil
}

func scanError(scan *model.ScanReport) error {
	if scan.Error != nil {
		return scan.Error
	}
	return errors.New(scan.ErrorMessage)
}

// newPipelineFactory returns a factory building a fetcher, an extractor and
// the default pipeline for one site, with that site's configuration applied.
// Sites listed in siteDirs write into their own directory; all others write
// into cfg.OutputDir.
func newPipelineFactory(cfg *config.Config, logger *slog.Logger, siteDirs map[string]string) pipeline.Factory {
	return func(baseURL string) (*pipeline.Pipeline, error) {
		site := cfg.SiteConfig(baseURL)
		siteLogger := logger.With("site", baseURL)

		fetcher, err := fetch.New(
			fetch.WithTimeout(cfg.Timeout),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithMaxBodySize(cfg.MaxBodySize),
			fetch.WithRespectRobots(cfg.RespectRobots),
			fetch.WithProxy(cfg.ProxyAddress),
			fetch.WithCookie(site.Cookie),
			fetch.WithHeaders(site.Headers),
			fetch.WithLogger(siteLogger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create fetcher: %w", err)
		}

		extractOpts := []extract.Option{
			extract.WithAnchorText(site.AnchorText),
			extract.WithLinkTags(site.LinkTags),
			extract.WithExcludedTextTags(cfg.ExcludedTextTags),
		}
		if cfg.SeparateTextNodes {
			extractOpts = append(extractOpts, extract.WithNodeSeparator(" "))
		}

		outputDir := cfg.OutputDir
		if dir, ok := siteDirs[baseURL]; ok {
			outputDir = dir
		}

		return pipeline.DefaultPipeline(
			fetcher,
			extract.NewExtractor(baseURL, extractOpts...),
			[]pipeline.Option{pipeline.WithLogger(siteLogger)},
			pipeline.WithOutputDir(outputDir),
			pipeline.WithLinksFile(cfg.LinksFile),
			pipeline.WithWordsFile(cfg.WordsFile),
		), nil
	}
}

// newReportWriter picks the report format requested in cfg.
func newReportWriter(out io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput returns path opened for writing, or stdout when path is
// empty. Parent directories are created as needed.
func openReportOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// saveRun stores the report in the history database.
// If db is nil, this function is a no-op.
func saveRun(ctx context.Context, db *database.HistoryDB, scan *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// A cancelled scan context must not prevent recording the run.
	if err := db.SaveRun(context.WithoutCancel(ctx), scan); err != nil {
		return err
	}

	logger.Info("run saved to history", "site", scan.BaseURL, "runID", scan.RunID)
	return nil
}
