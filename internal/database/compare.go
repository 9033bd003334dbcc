package database

import (
	"slices"
	"sort"
	"time"

	"github.com/nao1215/policyscan/internal/model"
)

// WordDelta is the change in count of one word between two runs.
type WordDelta struct {
	Word     string `json:"word"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Delta    int    `json:"delta"`
}

// RunMetadata identifies one side of a Comparison.
type RunMetadata struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	LinkCount int       `json:"link_count"`
	WordTotal int       `json:"word_total"`
	PolicyURL string    `json:"policy_url,omitempty"`
}

// Comparison describes what changed on a site between two runs.
type Comparison struct {
	BaseURL  string      `json:"base_url"`
	Previous RunMetadata `json:"previous"`
	Current  RunMetadata `json:"current"`

	// AddedLinks are external links present only in the current run.
	AddedLinks []string `json:"added_links,omitempty"`

	// RemovedLinks are external links present only in the previous run.
	RemovedLinks []string `json:"removed_links,omitempty"`

	HomepageChanged  bool `json:"homepage_changed"`
	PolicyChanged    bool `json:"policy_changed"`
	PolicyURLChanged bool `json:"policy_url_changed"`

	// WordDeltas holds every word whose count changed, largest change first.
	WordDeltas []WordDelta `json:"word_deltas,omitempty"`
}

// Unchanged reports whether the two runs saw the same site content.
func (c *Comparison) Unchanged() bool {
	return len(c.AddedLinks) == 0 && len(c.RemovedLinks) == 0 &&
		!c.HomepageChanged && !c.PolicyChanged && !c.PolicyURLChanged &&
		len(c.WordDeltas) == 0
}

// Compare computes the differences from previous to current.
// Links are compared as sets; added and removed lists are sorted.
func Compare(previous, current *model.ScanReport) *Comparison {
	c := &Comparison{
		BaseURL:  current.BaseURL,
		Previous: metadataOf(previous),
		Current:  metadataOf(current),
	}

	prevLinks := linkSet(previous.ExternalLinks)
	currLinks := linkSet(current.ExternalLinks)
	for link := range currLinks {
		if !prevLinks[link] {
			c.AddedLinks = append(c.AddedLinks, link)
		}
	}
	for link := range prevLinks {
		if !currLinks[link] {
			c.RemovedLinks = append(c.RemovedLinks, link)
		}
	}
	slices.Sort(c.AddedLinks)
	slices.Sort(c.RemovedLinks)

	c.HomepageChanged = pageHash(previous.Homepage) != pageHash(current.Homepage)
	c.PolicyChanged = pageHash(previous.PolicyPage) != pageHash(current.PolicyPage)
	c.PolicyURLChanged = c.Previous.PolicyURL != c.Current.PolicyURL
	c.WordDeltas = wordDeltas(previous.WordCount, current.WordCount)

	return c
}

func metadataOf(r *model.ScanReport) RunMetadata {
	m := RunMetadata{
		RunID:     r.RunID,
		StartedAt: r.StartedAt,
		LinkCount: len(r.ExternalLinks),
		WordTotal: r.WordCount.Total(),
	}
	if r.Anchor != nil {
		m.PolicyURL = r.Anchor.URL
	}
	return m
}

func linkSet(links model.LinkList) map[string]bool {
	set := make(map[string]bool, len(links))
	for _, l := range links {
		set[l] = true
	}
	return set
}

func pageHash(p *model.Page) string {
	if p == nil {
		return ""
	}
	return p.Hash
}

func wordDeltas(previous, current model.WordCount) []WordDelta {
	var deltas []WordDelta
	for w, n := range current {
		if d := n - previous[w]; d != 0 {
			deltas = append(deltas, WordDelta{Word: w, Previous: previous[w], Current: n, Delta: d})
		}
	}
	for w, n := range previous {
		if _, ok := current[w]; !ok {
			deltas = append(deltas, WordDelta{Word: w, Previous: n, Delta: -n})
		}
	}

	sort.Slice(deltas, func(i, j int) bool {
		ai, aj := abs(deltas[i].Delta), abs(deltas[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return deltas[i].Word < deltas[j].Word
	})
	return deltas
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
