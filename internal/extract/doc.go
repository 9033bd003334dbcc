// Package extract turns fetched HTML into the data policyscan reports:
// external resource links, the policy anchor, visible text, and word counts.
//
// # Components
//
//   - Parse: builds a goquery document from raw markup
//   - Extractor: link extraction, visible-text extraction, and anchor lookup
//     configured for one site
//   - IsExternal: the textual prefix test used to classify links
//   - Normalize and CountWords: punctuation stripping and word tallying
//
// # Link classification
//
// A link is external unless it starts with "/" or with the site's base URL.
// This is a plain prefix test. No scheme, case, or trailing-slash
// normalization is performed, so "https://Example.com" is external to
// "https://example.com". Only external links that also start with "http"
// are reported.
//
// # Usage
//
//	doc, err := extract.Parse(body)
//	ex := extract.NewExtractor("https://example.com")
//	links := ex.ExternalLinks(doc)
//	anchor, ok := ex.FindAnchor(doc)
//	words := extract.CountWords(extract.Normalize(ex.VisibleText(doc)))
package extract
