package model

import (
	"sort"
	"time"
)

// LinkList is an ordered sequence of external link URLs.
// Order is document traversal order; duplicates are kept.
type LinkList []string

// WordCount maps a normalized word to its number of occurrences.
// It never contains the empty string as a key.
type WordCount map[string]int

// WordFrequency is a single word/count pair, used for sorted views of a WordCount.
type WordFrequency struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Total returns the sum of all counts.
func (wc WordCount) Total() int {
	total := 0
	for _, n := range wc {
		total += n
	}
	return total
}

// Top returns up to n words ordered by descending count.
// Words with equal counts are ordered alphabetically so the output is stable.
// A non-positive n returns all words.
func (wc WordCount) Top(n int) []WordFrequency {
	freqs := make([]WordFrequency, 0, len(wc))
	for w, c := range wc {
		freqs = append(freqs, WordFrequency{Word: w, Count: c})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count == freqs[j].Count {
			return freqs[i].Word < freqs[j].Word
		}
		return freqs[i].Count > freqs[j].Count
	})
	if n > 0 && len(freqs) > n {
		freqs = freqs[:n]
	}
	return freqs
}

// PolicyAnchor describes the anchor element that links to the policy page.
type PolicyAnchor struct {
	// Text is the anchor's text content.
	Text string `json:"text"`

	// Href is the raw href attribute value.
	Href string `json:"href"`

	// URL is Href resolved against the base URL.
	URL string `json:"url"`
}

// ScanReport is the result of scanning one site.
// It is created by NewScanReport and filled in by pipeline steps.
// Steps only read the fields earlier steps have written.
type ScanReport struct {
	// RunID uniquely identifies this run in the history database.
	RunID string `json:"run_id,omitempty"`

	// BaseURL is the site's homepage URL as given by the user.
	BaseURL string `json:"base_url"`

	// StartedAt is when the scan began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the scan ended, successfully or not.
	FinishedAt time.Time `json:"finished_at"`

	// Homepage is the fetched homepage.
	Homepage *Page `json:"homepage,omitempty"`

	// ExternalLinks are the external resource links found on the homepage.
	ExternalLinks LinkList `json:"external_links"`

	// LinksFile is the path of the written links file, if any.
	LinksFile string `json:"links_file,omitempty"`

	// Anchor is the matched policy anchor. Nil when no anchor matched.
	Anchor *PolicyAnchor `json:"anchor,omitempty"`

	// AnchorSearched is true once the policy anchor lookup has run.
	// Together with Anchor it distinguishes "not found" from "not searched".
	AnchorSearched bool `json:"anchor_searched"`

	// PolicyPage is the fetched policy page.
	PolicyPage *Page `json:"policy_page,omitempty"`

	// WordCount holds word frequencies of the policy page.
	// Nil when no policy page was processed.
	WordCount WordCount `json:"word_count,omitempty"`

	// WordsFile is the path of the written word count file, if any.
	WordsFile string `json:"words_file,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the error that terminated the scan, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// FailedStage is the name of the stage that failed, if any.
	FailedStage string `json:"failed_stage,omitempty"`
}

// NewScanReport creates a ScanReport for the given base URL.
func NewScanReport(baseURL string) *ScanReport {
	return &ScanReport{
		BaseURL:        baseURL,
		StartedAt:      time.Now(),
		ExternalLinks:  LinkList{},
		PerformedSteps: make([]string, 0),
	}
}

// PolicyFound reports whether a policy anchor was located.
func (r *ScanReport) PolicyFound() bool {
	return r.Anchor != nil
}

// Failed reports whether the scan terminated with an error.
func (r *ScanReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// Duration returns how long the scan took.
// Returns zero if the scan has not finished.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
