package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/andybalholm/cascadia"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "policyscan"

	// DefaultBaseURL is scanned when no target is given on the command line.
	DefaultBaseURL = "https://www.cfcunderwriting.com"

	// DefaultTimeout applies to each HTTP request. Zero disables it.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of sites scanned concurrently
	// when more than one target is given.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies policyscan in HTTP requests.
	DefaultUserAgent = "policyscan/1.0 (+https://github.com/nao1215/policyscan)"

	// DefaultMaxBodySize limits the response body size kept per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultOutputDir is where the result files are written.
	DefaultOutputDir = "."

	// DefaultLinksFile is the file name of the external links output.
	DefaultLinksFile = "ext_links.json"

	// DefaultWordsFile is the file name of the word count output.
	DefaultWordsFile = "word_count.json"
)

// Config holds all options of a scan run. It is populated from defaults,
// the configuration file and CLI flags, in that order.
type Config struct {
	// Targets are the base URLs to scan.
	Targets []string

	// Timeout is the per-request HTTP timeout. Zero means no timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to keep.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// RespectRobots makes the fetcher consult robots.txt before each request.
	RespectRobots bool

	// OutputDir is the directory the result files are written to.
	OutputDir string

	// LinksFile is the file name of the external links output.
	LinksFile string

	// WordsFile is the file name of the word count output.
	WordsFile string

	// SeparateTextNodes joins text fragments with a space instead of nothing.
	SeparateTextNodes bool

	// ExcludedTextTags are element names whose text is skipped in addition
	// to the built-in set.
	ExcludedTextTags []string

	// BatchSize is the number of concurrent scans in batch mode.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches logs to JSON.
	LogJSON bool

	// JSONReport prints the full report as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the report as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB stores every run in the history database.
	SaveToDB bool

	// ConfigFilePath is an explicit configuration file path.
	// When empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		OutputDir:   DefaultOutputDir,
		LinksFile:   DefaultLinksFile,
		WordsFile:   DefaultWordsFile,
		BatchSize:   DefaultBatchSize,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// ApplyFile copies the file-level settings of cf into c.
// Empty values in cf leave c unchanged.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	c.SiteConfigs = cf
	if cf.Output.Dir != "" {
		c.OutputDir = cf.Output.Dir
	}
	if cf.Output.LinksFile != "" {
		c.LinksFile = cf.Output.LinksFile
	}
	if cf.Output.WordsFile != "" {
		c.WordsFile = cf.Output.WordsFile
	}
	if cf.Text.SeparateNodes {
		c.SeparateTextNodes = true
	}
	if len(cf.Text.ExcludeTags) > 0 {
		c.ExcludedTextTags = cf.Text.ExcludeTags
	}
}

// SiteConfig returns the merged site configuration for baseURL.
// It is the zero value when no configuration file was loaded.
func (c *Config) SiteConfig(baseURL string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.ForURL(baseURL)
}

// XDGDataDir returns the XDG data directory for policyscan.
// On Linux: ~/.local/share/policyscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for policyscan.
// On Linux: ~/.config/policyscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if err := ValidateTarget(target); err != nil {
			return err
		}
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.LinksFile == "" || c.WordsFile == "" {
		return ErrEmptyOutputFile
	}

	if c.LinksFile == c.WordsFile {
		return ErrSameOutputFile
	}

	if c.SiteConfigs != nil {
		if err := validateLinkTags("defaults", c.SiteConfigs.Defaults.LinkTags); err != nil {
			return err
		}
		for host, site := range c.SiteConfigs.Sites {
			if err := validateLinkTags(host, site.LinkTags); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateLinkTags checks that every tag compiles as a selector, since the
// extractor silently matches nothing for a broken one.
func validateLinkTags(section string, tags []string) error {
	for _, tag := range tags {
		if _, err := cascadia.Compile(tag); err != nil {
			return fmt.Errorf("%w %q in %s: %w", ErrInvalidLinkTag, tag, section, err)
		}
	}
	return nil
}
