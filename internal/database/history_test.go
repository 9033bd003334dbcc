package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/policyscan/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func newReport(baseURL string, started time.Time, links []string, words model.WordCount) *model.ScanReport {
	r := model.NewScanReport(baseURL)
	r.StartedAt = started
	r.FinishedAt = started.Add(time.Second)
	r.ExternalLinks = links
	r.Homepage = &model.Page{URL: baseURL, StatusCode: 200, Hash: "home"}
	r.AnchorSearched = true
	if words != nil {
		r.Anchor = &model.PolicyAnchor{Text: "Privacy policy", Href: "/privacy", URL: baseURL + "/privacy"}
		r.PolicyPage = &model.Page{URL: baseURL + "/privacy", StatusCode: 200, Hash: "policy"}
		r.WordCount = words
	}
	return r
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("first open: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("second open: %v", err)
		}
		_ = db.Close()
	})
}

func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newReport("https://example.com", started,
		[]string{"https://cdn.example.net/a.js"}, model.WordCount{"data": 2})

	if err := db.SaveRun(ctx, r); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if r.RunID == "" {
		t.Fatal("SaveRun() did not assign a RunID")
	}

	got, err := db.GetRun(ctx, r.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.BaseURL != r.BaseURL {
		t.Errorf("BaseURL = %q, want %q", got.BaseURL, r.BaseURL)
	}
	if got.WordCount["data"] != 2 {
		t.Errorf("WordCount = %v", got.WordCount)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if len(got.ExternalLinks) != 1 {
		t.Errorf("ExternalLinks = %v", got.ExternalLinks)
	}

	t.Run("duplicate run id is rejected", func(t *testing.T) {
		if err := db.SaveRun(ctx, r); err == nil {
			t.Error("expected error saving the same run twice")
		}
	})

	t.Run("unknown run id", func(t *testing.T) {
		_, err := db.GetRun(ctx, "does-not-exist")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetRun() error = %v, want ErrNotFound", err)
		}
	})
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	failed := newReport("https://a.example", base, nil, nil)
	failed.Error = errors.New("fetch-home: connection refused")
	failed.FailedStage = "fetch-home"

	reports := []*model.ScanReport{
		failed,
		newReport("https://a.example", base.Add(time.Hour), nil, model.WordCount{"x": 1}),
		newReport("https://b.example", base.Add(2*time.Hour), nil, nil),
	}
	for _, r := range reports {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	all, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].BaseURL != "https://b.example" {
		t.Errorf("newest run = %q, want b.example", all[0].BaseURL)
	}
	if all[0].Status != StatusNoPolicy {
		t.Errorf("status = %q, want %q", all[0].Status, StatusNoPolicy)
	}

	siteA, err := db.ListRuns(ctx, "https://a.example", 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(siteA) != 2 {
		t.Fatalf("len(siteA) = %d, want 2", len(siteA))
	}
	if siteA[0].Status != StatusCompleted || siteA[0].WordTotal != 1 {
		t.Errorf("siteA[0] = %+v", siteA[0])
	}
	if siteA[1].Status != StatusFailed || siteA[1].FailedStage != "fetch-home" {
		t.Errorf("siteA[1] = %+v", siteA[1])
	}
	if siteA[1].Error == "" {
		t.Error("failed run has no error message")
	}

	limited, err := db.ListRuns(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(limited) = %d, want 1", len(limited))
	}

	sites, err := db.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites() error = %v", err)
	}
	if len(sites) != 2 || sites[0].BaseURL != "https://b.example" || sites[1].RunCount != 2 {
		t.Errorf("ListSites() = %+v", sites)
	}

	latest, err := db.LatestRuns(ctx, "https://a.example", 2)
	if err != nil {
		t.Fatalf("LatestRuns() error = %v", err)
	}
	if len(latest) != 2 || !latest[0].PolicyFound() {
		t.Errorf("LatestRuns() returned %d reports, newest policy found = %v", len(latest), len(latest) > 0 && latest[0].PolicyFound())
	}

	n, err := db.DeleteBefore(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteBefore() deleted %d rows, want 1", n)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := newReport("https://example.com", base,
		[]string{"https://a.net", "https://b.net"},
		model.WordCount{"data": 2, "cookie": 1, "gone": 3})
	curr := newReport("https://example.com", base.Add(time.Hour),
		[]string{"https://b.net", "https://c.net", "https://c.net"},
		model.WordCount{"data": 5, "cookie": 1, "new": 1})
	curr.PolicyPage.Hash = "policy-v2"

	c := Compare(prev, curr)

	if len(c.AddedLinks) != 1 || c.AddedLinks[0] != "https://c.net" {
		t.Errorf("AddedLinks = %v", c.AddedLinks)
	}
	if len(c.RemovedLinks) != 1 || c.RemovedLinks[0] != "https://a.net" {
		t.Errorf("RemovedLinks = %v", c.RemovedLinks)
	}
	if c.HomepageChanged {
		t.Error("HomepageChanged = true, want false")
	}
	if !c.PolicyChanged {
		t.Error("PolicyChanged = false, want true")
	}
	if c.PolicyURLChanged {
		t.Error("PolicyURLChanged = true, want false")
	}

	want := []WordDelta{
		{Word: "data", Previous: 2, Current: 5, Delta: 3},
		{Word: "gone", Previous: 3, Current: 0, Delta: -3},
		{Word: "new", Previous: 0, Current: 1, Delta: 1},
	}
	if len(c.WordDeltas) != len(want) {
		t.Fatalf("WordDeltas = %+v", c.WordDeltas)
	}
	for i := range want {
		if c.WordDeltas[i] != want[i] {
			t.Errorf("WordDeltas[%d] = %+v, want %+v", i, c.WordDeltas[i], want[i])
		}
	}
	if c.Unchanged() {
		t.Error("Unchanged() = true")
	}

	t.Run("identical runs", func(t *testing.T) {
		t.Parallel()

		same := Compare(prev, prev)
		if !same.Unchanged() {
			t.Errorf("Compare(prev, prev) = %+v", same)
		}
	})

	t.Run("policy disappeared", func(t *testing.T) {
		t.Parallel()

		gone := newReport("https://example.com", base.Add(time.Hour), prev.ExternalLinks, nil)
		c := Compare(prev, gone)
		if !c.PolicyURLChanged || !c.PolicyChanged {
			t.Errorf("Compare() = %+v", c)
		}
		if len(c.WordDeltas) != 3 {
			t.Errorf("WordDeltas = %+v", c.WordDeltas)
		}
	})
}
