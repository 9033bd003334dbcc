package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nao1215/policyscan/internal/database"
)

func TestCompareCommand(t *testing.T) {
	t.Parallel()

	t.Run("identical runs", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		dbDir := t.TempDir()
		recordScans(t, site, dbDir, 2)

		stdout, _, err := runCLI(t, "compare", "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No changes.") {
			t.Errorf("expected no changes, got:\n%s", stdout)
		}
	})

	t.Run("changed site", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		dbDir := t.TempDir()
		recordScans(t, site, dbDir, 1)

		site.setPage("/", `<html><body><script src="https://js.example.com/app.js"></script>
<a href="/privacy">Privacy policy</a></body></html>`)
		site.setPage("/privacy", `<html><body><p>Data cookies.</p></body></html>`)
		recordScans(t, site, dbDir, 1)

		stdout, _, err := runCLI(t, "compare", "--json", "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var c database.Comparison
		if err := json.Unmarshal([]byte(stdout), &c); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, stdout)
		}
		if len(c.AddedLinks) != 1 || c.AddedLinks[0] != "https://js.example.com/app.js" {
			t.Errorf("unexpected added links: %v", c.AddedLinks)
		}
		if len(c.RemovedLinks) != 2 {
			t.Errorf("expected 2 removed links, got %v", c.RemovedLinks)
		}
		if !c.HomepageChanged || !c.PolicyChanged {
			t.Errorf("expected both pages to change: %+v", c)
		}
		if c.PolicyURLChanged {
			t.Error("expected policy URL to stay the same")
		}
		// data 2 -> 1, cookies 0 -> 1
		if len(c.WordDeltas) != 2 {
			t.Fatalf("expected 2 word deltas, got %+v", c.WordDeltas)
		}
		if c.WordDeltas[0].Word != "cookies" || c.WordDeltas[0].Delta != 1 {
			t.Errorf("unexpected first delta: %+v", c.WordDeltas[0])
		}
		if c.WordDeltas[1].Word != "data" || c.WordDeltas[1].Delta != -1 {
			t.Errorf("unexpected second delta: %+v", c.WordDeltas[1])
		}

		stdout, _, err = runCLI(t, "compare", "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Added Links (1)", "[+] https://js.example.com/app.js", "Removed Links (2)", "Word Changes (2)"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
			}
		}

		stdout, _, err = runCLI(t, "compare", "--markdown", "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "# Run Comparison: "+site.URL) {
			t.Errorf("unexpected markdown:\n%s", stdout)
		}
	})

	t.Run("with run id", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		dbDir := t.TempDir()
		recordScans(t, site, dbDir, 3)

		stdout, _, err := runCLI(t, "history", "--json", "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var runs []database.RunSummary
		if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		oldest := runs[len(runs)-1].RunID

		stdout, _, err = runCLI(t, "compare", "--json", "-i", oldest, "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var c database.Comparison
		if err := json.Unmarshal([]byte(stdout), &c); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if c.Previous.RunID != oldest || c.Current.RunID != runs[0].RunID {
			t.Errorf("unexpected runs compared: %s -> %s", c.Previous.RunID, c.Current.RunID)
		}
	})

	t.Run("needs two runs", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		dbDir := t.TempDir()
		recordScans(t, site, dbDir, 1)

		_, _, err := runCLI(t, "compare", "--db-dir", dbDir, site.URL)
		if err == nil || !strings.Contains(err.Error(), "at least 2 runs") {
			t.Errorf("expected at least 2 runs error, got %v", err)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		if _, _, err := runCLI(t, "compare", "--db-dir", t.TempDir()); err == nil {
			t.Error("expected error without base URL")
		}
		if _, _, err := runCLI(t, "compare", "--json", "--markdown", "--db-dir", t.TempDir(), "https://a.example"); err == nil {
			t.Error("expected error for conflicting formats")
		}
		if _, _, err := runCLI(t, "compare", "--db-dir", t.TempDir(), "https://a.example"); err == nil {
			t.Error("expected error when no database exists")
		}
	})
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{3, "+3"},
		{0, "0"},
		{-2, "-2"},
	}
	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}
