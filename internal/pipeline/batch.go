package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/policyscan/internal/model"
)

// DefaultConcurrency is the number of sites scanned at once when no limit
// is configured.
const DefaultConcurrency = 4

// Factory builds the pipeline for one site. Each site gets its own pipeline
// so per-site settings (cookies, anchor text, output directory) never
// leak between scans.
type Factory func(baseURL string) (*Pipeline, error)

// BatchProcessor scans several sites concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// factory creates a new pipeline for each site.
	factory Factory

	// concurrency is the maximum number of concurrent scans.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Non-positive values keep DefaultConcurrency.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans every site and returns one report per site, in input
// order. A failing site does not stop the others; its error is recorded in
// its report. The returned error is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sites []string) ([]*model.ScanReport, error) {
	results := make([]*model.ScanReport, len(sites))
	var mu sync.Mutex

	err := bp.ProcessBatchWithCallback(ctx, sites, func(scan *model.ScanReport, index int) {
		mu.Lock()
		results[index] = scan
		mu.Unlock()
	})

	return results, err
}

// ProcessBatchWithCallback scans every site and calls callback once per
// finished scan, from the goroutine that ran it. The callback must be safe
// for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sites []string,
	callback func(scan *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_sites", len(sites),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, site := range sites {
		g.Go(func() error {
			scan := model.NewScanReport(site)

			if err := ctx.Err(); err != nil {
				scan.Error = err
				scan.ErrorMessage = err.Error()
				scan.FinishedAt = time.Now()
				callback(scan, i)
				return nil
			}

			bp.logger.Info("scanning site",
				"site", site,
				"index", i+1,
				"total", len(sites),
			)

			p, err := bp.factory(site)
			if err != nil {
				scan.Error = err
				scan.ErrorMessage = err.Error()
				scan.FinishedAt = time.Now()
				bp.logger.Warn("failed to build pipeline", "site", site, "error", err)
				callback(scan, i)
				return nil
			}

			if err := p.Execute(ctx, scan); err != nil {
				bp.logger.Warn("scan failed",
					"site", site,
					"error", err,
				)
			} else {
				bp.logger.Info("scan completed",
					"site", site,
				)
			}

			callback(scan, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines record errors in their reports

	bp.logger.Info("batch processing complete",
		"total_sites", len(sites),
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}

// SiteOutputDir returns the directory a site's files go to when several
// sites are scanned into root: a sub-directory named after the host and,
// when present, the path, with ":" and "/" replaced by "_".
// "https://a.test/en/" maps to "root/a.test_en".
func SiteOutputDir(root, baseURL string) string {
	name := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		name = u.Host
		if p := strings.Trim(u.Path, "/"); p != "" {
			name += "/" + p
		}
	}

	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', '?', '*', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)

	return filepath.Join(root, name)
}

// SiteOutputDirs returns SiteOutputDir for every site, keyed by base URL.
// It fails with ErrOutputDirConflict when two sites map to one directory,
// as "https://a.test" and "http://a.test" do, or when a site is listed twice.
func SiteOutputDirs(root string, sites []string) (map[string]string, error) {
	dirs := make(map[string]string, len(sites))
	owners := make(map[string]string, len(sites))
	for _, site := range sites {
		dir := SiteOutputDir(root, site)
		if owner, ok := owners[dir]; ok {
			return nil, fmt.Errorf("%w: %s and %s both write to %s", ErrOutputDirConflict, owner, site, dir)
		}
		owners[dir] = site
		dirs[site] = dir
	}
	return dirs, nil
}
