package config

import (
	"maps"
	"net/url"
	"strings"
)

// SiteConfig holds site-specific scan settings.
type SiteConfig struct {
	// Cookie is sent as the Cookie header on every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// AnchorText overrides the text of the anchor that links to the policy
	// page. Matching is exact.
	AnchorText string `yaml:"anchorText,omitempty"`

	// LinkTags overrides the element names whose href/src are collected as
	// external links. Each entry must be a valid CSS selector.
	LinkTags []string `yaml:"linkTags,omitempty"`
}

// OutputConfig holds output file settings.
type OutputConfig struct {
	// Dir is the directory the result files are written to.
	Dir string `yaml:"dir,omitempty"`

	// LinksFile is the file name of the external links output.
	LinksFile string `yaml:"linksFile,omitempty"`

	// WordsFile is the file name of the word count output.
	WordsFile string `yaml:"wordsFile,omitempty"`
}

// TextConfig holds visible-text extraction settings.
type TextConfig struct {
	// SeparateNodes joins text fragments with a space.
	SeparateNodes bool `yaml:"separateNodes,omitempty"`

	// ExcludeTags are extra element names (e.g. "style", "noscript") whose
	// text is never counted.
	ExcludeTags []string `yaml:"excludeTags,omitempty"`
}

// File represents the structure of the .policyscan configuration file.
type File struct {
	// Defaults applies to all sites unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host (e.g. "www.example.com") to its configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	Output OutputConfig `yaml:"output,omitempty"`

	Text TextConfig `yaml:"text,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		result.Headers = maps.Clone(result.Headers)
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if siteConfig.AnchorText != "" {
		result.AnchorText = siteConfig.AnchorText
	}
	if len(siteConfig.LinkTags) > 0 {
		result.LinkTags = siteConfig.LinkTags
	}

	return result
}

// ForURL looks up the site configuration by the host of baseURL.
// The host with port is tried first, then the bare host name.
func (cf *File) ForURL(baseURL string) SiteConfig {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return cf.GetSiteConfig("")
	}
	host := strings.ToLower(u.Host)
	if _, ok := cf.Sites[host]; ok {
		return cf.GetSiteConfig(host)
	}
	return cf.GetSiteConfig(strings.ToLower(u.Hostname()))
}
