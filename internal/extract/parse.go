package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse parses raw markup into a document.
//
// Scripting is disabled in the tokenizer so that <noscript> content is
// parsed as markup rather than as one raw text node. Unparseable input
// yields an error wrapping ErrParse.
func Parse(body []byte) (*goquery.Document, error) {
	return ParseReader(bytes.NewReader(body))
}

// ParseReader is like Parse but reads markup from r.
func ParseReader(r io.Reader) (*goquery.Document, error) {
	root, err := html.ParseWithOptions(r, html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return goquery.NewDocumentFromNode(root), nil
}
