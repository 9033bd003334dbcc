// Package model defines the core data structures used throughout policyscan.
//
// This package contains the following main types:
//   - Page: A fetched web page (homepage or policy page)
//   - LinkList: External resource links in document order
//   - WordCount: Word frequencies of the policy page's visible text
//   - ScanReport: The per-site result carried through the pipeline
//
// The pipeline, report, and database packages all share these types.
// They serialize to JSON for report output and database storage.
package model
