package extract

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/policyscan/internal/model"
)

// Anchor is an <a> element matched by FindAnchor.
type Anchor struct {
	// Text is the anchor's text content.
	Text string

	// Href is the href attribute value. Empty when HasHref is false.
	Href string

	// HasHref reports whether the element carries an href attribute.
	// An empty href="" still counts as present.
	HasHref bool
}

// FindAnchor returns the first <a> element, in document order, whose text
// content equals the configured anchor text exactly. No trimming or case
// folding is applied, so " Privacy policy" or "Privacy Policy" do not
// match "Privacy policy". The boolean is false when nothing matches.
func (e *Extractor) FindAnchor(doc *goquery.Document) (Anchor, bool) {
	var found Anchor
	var ok bool

	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Text() != e.anchorText {
			return true
		}
		found.Text = s.Text()
		found.Href, found.HasHref = s.Attr("href")
		ok = true
		return false
	})

	return found, ok
}

// ResolveAnchor turns a matched anchor into a PolicyAnchor with an absolute
// URL. It fails with ErrMissingHref when the anchor has no href.
func (e *Extractor) ResolveAnchor(a Anchor) (*model.PolicyAnchor, error) {
	if !a.HasHref {
		return nil, fmt.Errorf("%w: anchor %q", ErrMissingHref, a.Text)
	}

	target, err := ResolveHref(e.baseURL, a.Href)
	if err != nil {
		return nil, err
	}

	return &model.PolicyAnchor{
		Text: a.Text,
		Href: a.Href,
		URL:  target,
	}, nil
}

// ResolveHref resolves href against baseURL as a URL reference.
// Relative hrefs ("/privacy", "privacy", "?q=1") are joined to the base;
// absolute hrefs ("https://other.example/privacy") are returned unchanged.
func ResolveHref(baseURL, href string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %w", ErrInvalidURL, baseURL, err)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: href %q: %w", ErrInvalidURL, href, err)
	}

	return base.ResolveReference(ref).String(), nil
}
