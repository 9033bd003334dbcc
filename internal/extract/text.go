package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VisibleText returns the document's visible text in lower case.
//
// Every text node is visited in document order. A node contributes its
// content unless its immediate parent is the document root or one of the
// excluded elements (select, button, form, meta, script, option). Only the
// immediate parent is checked: text in a <p> nested inside a <form> is kept.
// Comment nodes never contribute, even under a visible parent:
// "<p>Shown<!-- Hidden Words --></p>" yields "shown". Parsers that treat
// comments as strings would count "hidden words" as well.
//
// Fragments are joined with the configured separator, which is empty by
// default. Adjacent fragments therefore run together across element
// boundaries, e.g. "<b>a</b><i>b</i>" yields "ab".
func (e *Extractor) VisibleText(doc *goquery.Document) string {
	var b strings.Builder
	first := true

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode && e.isVisible(n) {
			if !first {
				b.WriteString(e.nodeSeparator)
			}
			b.WriteString(n.Data)
			first = false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range doc.Nodes {
		walk(n)
	}

	// A Caser is not safe for concurrent use, so build one per call.
	return cases.Lower(language.Und).String(b.String())
}

// isVisible checks the immediate parent of a text node against the
// exclusion set.
func (e *Extractor) isVisible(n *html.Node) bool {
	parent := n.Parent
	if parent == nil || parent.Type == html.DocumentNode {
		return false
	}
	if parent.Type == html.ElementNode && e.excludedTextTags[parent.DataAtom] {
		return false
	}
	return true
}
