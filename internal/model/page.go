package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// MaxPageSize is the maximum size of raw page content to keep.
// Larger bodies are truncated to this size.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Page represents a fetched web page.
// Only two pages are ever fetched per site: the homepage and the page
// linked by the privacy policy anchor.
type Page struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains all HTTP response headers.
	// Keys are canonicalized header names.
	Headers map[string][]string `json:"headers,omitempty"`

	// ContentType is the MIME type of the response.
	// Extracted from Content-Type header for convenience.
	ContentType string `json:"content_type"`

	// Raw contains the raw response body bytes.
	// Limited to MaxPageSize bytes.
	Raw []byte `json:"-"`

	// Hash is the SHA3-256 hash of the raw content.
	// Used by history comparison to tell whether a page changed between runs.
	Hash string `json:"hash"`
}

// ComputeHash calculates and sets the SHA3-256 hash of the page's raw content.
// This should be called after setting the Raw field.
func (p *Page) ComputeHash() {
	if len(p.Raw) == 0 {
		p.Hash = ""
		return
	}

	sum := sha3.Sum256(p.Raw)
	p.Hash = hex.EncodeToString(sum[:])
}

// IsHTML returns true if the page content type indicates HTML.
// An empty content type is treated as HTML because many servers omit it.
func (p *Page) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	mime := strings.ToLower(strings.TrimSpace(strings.Split(p.ContentType, ";")[0]))
	return mime == "text/html" || mime == "application/xhtml+xml"
}

// TruncateRaw cuts the raw content to limit bytes and reports whether
// anything was cut. A limit of 0 or less means MaxPageSize.
func (p *Page) TruncateRaw(limit int64) bool {
	if limit <= 0 {
		limit = MaxPageSize
	}
	if int64(len(p.Raw)) <= limit {
		return false
	}
	p.Raw = p.Raw[:limit]
	return true
}
