package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nao1215/policyscan/internal/extract"
	"github.com/nao1215/policyscan/internal/model"
	"github.com/nao1215/policyscan/internal/report"
)

// Fetcher retrieves a page. *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Page, error)
}

// FetchHomeStep fetches the site's homepage.
type FetchHomeStep struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewFetchHomeStep creates a step that fetches the homepage with fetcher.
func NewFetchHomeStep(fetcher Fetcher, logger *slog.Logger) *FetchHomeStep {
	return &FetchHomeStep{fetcher: fetcher, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *FetchHomeStep) Name() string {
	return StageFetchHome
}

// Do executes the fetch.
func (s *FetchHomeStep) Do(ctx context.Context, scan *model.ScanReport) error {
	page, err := s.fetcher.Fetch(ctx, scan.BaseURL)
	if err != nil {
		return err
	}
	if !page.IsHTML() {
		s.logger.Warn("homepage is not HTML", "url", page.URL, "content_type", page.ContentType)
	}

	scan.Homepage = page
	return nil
}

// ExtractLinksStep parses the homepage and collects its external links.
type ExtractLinksStep struct {
	extractor *extract.Extractor
}

// NewExtractLinksStep creates a link extraction step.
func NewExtractLinksStep(extractor *extract.Extractor) *ExtractLinksStep {
	return &ExtractLinksStep{extractor: extractor}
}

// Name returns the step name.
func (s *ExtractLinksStep) Name() string {
	return StageExtractLinks
}

// Do executes the extraction.
func (s *ExtractLinksStep) Do(_ context.Context, scan *model.ScanReport) error {
	if scan.Homepage == nil {
		return fmt.Errorf("%w: homepage", ErrMissingInput)
	}

	doc, err := extract.Parse(scan.Homepage.Raw)
	if err != nil {
		return err
	}

	scan.ExternalLinks = s.extractor.ExternalLinks(doc)
	return nil
}

// WriteLinksStep writes the external links file. It runs before the policy
// lookup so the file exists even when a later stage fails.
type WriteLinksStep struct {
	path string
}

// NewWriteLinksStep creates a step that writes the links to path.
func NewWriteLinksStep(path string) *WriteLinksStep {
	return &WriteLinksStep{path: path}
}

// Name returns the step name.
func (s *WriteLinksStep) Name() string {
	return StageWriteLinks
}

// Do writes the file.
func (s *WriteLinksStep) Do(_ context.Context, scan *model.ScanReport) error {
	if err := report.WriteLinksFile(s.path, scan.ExternalLinks); err != nil {
		return err
	}
	scan.LinksFile = s.path
	return nil
}

// LocatePolicyStep finds the policy anchor on the homepage and resolves its
// href against the base URL. Finding no anchor is not an error: the report
// records that the search ran and the remaining steps are skipped.
type LocatePolicyStep struct {
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewLocatePolicyStep creates an anchor lookup step.
func NewLocatePolicyStep(extractor *extract.Extractor, logger *slog.Logger) *LocatePolicyStep {
	return &LocatePolicyStep{extractor: extractor, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *LocatePolicyStep) Name() string {
	return StageLocatePolicy
}

// Do executes the lookup.
func (s *LocatePolicyStep) Do(_ context.Context, scan *model.ScanReport) error {
	if scan.Homepage == nil {
		return fmt.Errorf("%w: homepage", ErrMissingInput)
	}

	doc, err := extract.Parse(scan.Homepage.Raw)
	if err != nil {
		return err
	}

	anchor, ok := s.extractor.FindAnchor(doc)
	scan.AnchorSearched = true
	if !ok {
		s.logger.Info("policy anchor not found",
			"site", scan.BaseURL,
			"text", s.extractor.AnchorText(),
		)
		return nil
	}

	resolved, err := s.extractor.ResolveAnchor(anchor)
	if err != nil {
		return err
	}

	scan.Anchor = resolved
	return nil
}

// FetchPolicyStep fetches the page the policy anchor links to.
type FetchPolicyStep struct {
	fetcher Fetcher
}

// NewFetchPolicyStep creates a policy page fetch step.
func NewFetchPolicyStep(fetcher Fetcher) *FetchPolicyStep {
	return &FetchPolicyStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchPolicyStep) Name() string {
	return StageFetchPolicy
}

// ShouldRun reports whether an anchor was found.
func (s *FetchPolicyStep) ShouldRun(scan *model.ScanReport) bool {
	return scan.Anchor != nil
}

// Do executes the fetch.
func (s *FetchPolicyStep) Do(ctx context.Context, scan *model.ScanReport) error {
	page, err := s.fetcher.Fetch(ctx, scan.Anchor.URL)
	if err != nil {
		return err
	}
	scan.PolicyPage = page
	return nil
}

// CountWordsStep counts the words of the policy page's visible text.
type CountWordsStep struct {
	extractor *extract.Extractor
}

// NewCountWordsStep creates a word counting step.
func NewCountWordsStep(extractor *extract.Extractor) *CountWordsStep {
	return &CountWordsStep{extractor: extractor}
}

// Name returns the step name.
func (s *CountWordsStep) Name() string {
	return StageCountWords
}

// ShouldRun reports whether the policy page was fetched.
func (s *CountWordsStep) ShouldRun(scan *model.ScanReport) bool {
	return scan.PolicyPage != nil
}

// Do executes the count.
func (s *CountWordsStep) Do(_ context.Context, scan *model.ScanReport) error {
	doc, err := extract.Parse(scan.PolicyPage.Raw)
	if err != nil {
		return err
	}

	text := s.extractor.VisibleText(doc)
	scan.WordCount = extract.CountWords(extract.Normalize(text))
	return nil
}

// WriteWordCountStep writes the word count file.
type WriteWordCountStep struct {
	path string
}

// NewWriteWordCountStep creates a step that writes the word count to path.
func NewWriteWordCountStep(path string) *WriteWordCountStep {
	return &WriteWordCountStep{path: path}
}

// Name returns the step name.
func (s *WriteWordCountStep) Name() string {
	return StageWriteWordCount
}

// ShouldRun reports whether words were counted.
func (s *WriteWordCountStep) ShouldRun(scan *model.ScanReport) bool {
	return scan.WordCount != nil
}

// Do writes the file.
func (s *WriteWordCountStep) Do(_ context.Context, scan *model.ScanReport) error {
	if err := report.WriteWordCountFile(s.path, scan.WordCount); err != nil {
		return err
	}
	scan.WordsFile = s.path
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// OutputDir is the directory the output files are written to.
	OutputDir string

	// LinksFile is the file name of the external links output.
	LinksFile string

	// WordsFile is the file name of the word count output.
	WordsFile string
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithOutputDir sets the output directory.
func WithOutputDir(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		if dir != "" {
			c.OutputDir = dir
		}
	}
}

// WithLinksFile sets the external links file name.
func WithLinksFile(name string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		if name != "" {
			c.LinksFile = name
		}
	}
}

// WithWordsFile sets the word count file name.
func WithWordsFile(name string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		if name != "" {
			c.WordsFile = name
		}
	}
}

// DefaultPipeline creates the standard scan pipeline for one site.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithOutputDir, etc).
func DefaultPipeline(fetcher Fetcher, extractor *extract.Extractor, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		OutputDir: ".",
		LinksFile: report.DefaultLinksFile,
		WordsFile: report.DefaultWordsFile,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewFetchHomeStep(fetcher, p.logger),
		NewExtractLinksStep(extractor),
		NewWriteLinksStep(filepath.Join(cfg.OutputDir, cfg.LinksFile)),
		NewLocatePolicyStep(extractor, p.logger),
		NewFetchPolicyStep(fetcher),
		NewCountWordsStep(extractor),
		NewWriteWordCountStep(filepath.Join(cfg.OutputDir, cfg.WordsFile)),
	)

	return p
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
