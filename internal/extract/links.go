package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/policyscan/internal/model"
)

// IsExternal reports whether link refers to a resource outside the site.
// A link is internal if it starts with "/" or starts with baseURL; anything
// else, including the empty string, is external.
func IsExternal(link, baseURL string) bool {
	return !(strings.HasPrefix(link, "/") || strings.HasPrefix(link, baseURL))
}

// ExternalLinks returns the external http(s) links of the document's
// resource-bearing elements, in document order.
//
// For each element the href attribute is used, falling back to src when href
// is absent or empty. Elements with neither are skipped. A link is kept only
// if IsExternal holds and it starts with "http", which drops mailto:, tel:,
// javascript: and similar schemes. Duplicates are preserved.
func (e *Extractor) ExternalLinks(doc *goquery.Document) model.LinkList {
	links := model.LinkList{}

	doc.Find(strings.Join(e.linkTags, ", ")).Each(func(_ int, s *goquery.Selection) {
		link := s.AttrOr("href", "")
		if link == "" {
			link = s.AttrOr("src", "")
		}
		if link == "" {
			return
		}

		if IsExternal(link, e.baseURL) && strings.HasPrefix(link, "http") {
			links = append(links, link)
		}
	})

	return links
}
