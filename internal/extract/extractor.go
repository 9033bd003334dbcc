package extract

import (
	"golang.org/x/net/html/atom"
)

// DefaultAnchorText is the exact anchor text that identifies the policy link.
const DefaultAnchorText = "Privacy policy"

// DefaultLinkTags are the element kinds scanned for resource links.
var DefaultLinkTags = []string{"link", "script", "a", "img"}

// defaultExcludedTextTags are the parent element kinds whose text is not
// rendered as prose. Text directly under the document root is excluded too;
// that case is handled separately because the root is not an element.
var defaultExcludedTextTags = []atom.Atom{
	atom.Select,
	atom.Button,
	atom.Form,
	atom.Meta,
	atom.Script,
	atom.Option,
}

// Extractor extracts links, visible text, and the policy anchor from parsed
// documents of a single site. It holds no mutable state after construction
// and may be shared between goroutines.
type Extractor struct {
	// baseURL is the site's homepage URL, used for link classification
	// and href resolution.
	baseURL string

	// linkTags are the element names scanned by ExternalLinks.
	linkTags []string

	// excludedTextTags are parent elements whose text VisibleText skips.
	excludedTextTags map[atom.Atom]bool

	// nodeSeparator is inserted between text fragments by VisibleText.
	// Empty joins fragments directly.
	nodeSeparator string

	// anchorText is the exact text FindAnchor looks for.
	anchorText string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLinkTags sets the element names scanned for resource links.
// An empty slice keeps the defaults.
func WithLinkTags(tags []string) Option {
	return func(e *Extractor) {
		if len(tags) > 0 {
			e.linkTags = tags
		}
	}
}

// WithNodeSeparator sets the string inserted between text fragments.
func WithNodeSeparator(sep string) Option {
	return func(e *Extractor) {
		e.nodeSeparator = sep
	}
}

// WithAnchorText sets the exact anchor text identifying the policy link.
// An empty string keeps the default.
func WithAnchorText(text string) Option {
	return func(e *Extractor) {
		if text != "" {
			e.anchorText = text
		}
	}
}

// WithExcludedTextTags adds element names whose text is never extracted.
// Names unknown to the HTML parser are ignored.
func WithExcludedTextTags(tags []string) Option {
	return func(e *Extractor) {
		for _, tag := range tags {
			if a := atom.Lookup([]byte(tag)); a != 0 {
				e.excludedTextTags[a] = true
			}
		}
	}
}

// NewExtractor creates an Extractor for the site at baseURL.
func NewExtractor(baseURL string, opts ...Option) *Extractor {
	e := &Extractor{
		baseURL:          baseURL,
		linkTags:         DefaultLinkTags,
		excludedTextTags: make(map[atom.Atom]bool, len(defaultExcludedTextTags)),
		anchorText:       DefaultAnchorText,
	}
	for _, a := range defaultExcludedTextTags {
		e.excludedTextTags[a] = true
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AnchorText returns the anchor text FindAnchor matches.
func (e *Extractor) AnchorText() string {
	return e.anchorText
}
