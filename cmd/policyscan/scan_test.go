package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/policyscan/internal/config"
	"github.com/nao1215/policyscan/internal/pipeline"
	"github.com/nao1215/policyscan/internal/report"
)

const (
	testHomepage = `<html><head><link rel="stylesheet" href="https://fonts.example.net/css"></head>
<body><a href="/about">About</a><a href="https://partner.example.org/">Partner</a>
<a href="/privacy">Privacy policy</a></body></html>`
	testPolicy = `<html><body><p>Data Data.</p></body></html>`
)

// testSite is a local site whose pages can be replaced between scans.
type testSite struct {
	*httptest.Server
	mu    sync.Mutex
	pages map[string]string
}

func newTestSite(t *testing.T, pages map[string]string) *testSite {
	t.Helper()

	site := &testSite{pages: pages}
	site.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		body, ok := site.pages[r.URL.Path]
		site.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) setPage(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

// emptyConfig writes an empty configuration file so that no file from the
// user's environment is picked up.
func emptyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".policyscan")
	if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func readJSONFile(t *testing.T, path string, v any) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("invalid JSON in %s: %v", path, err)
	}
}

func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	flags := []struct {
		name      string
		shorthand string
	}{
		{"output-dir", "d"},
		{"timeout", "t"},
		{"user-agent", ""},
		{"proxy", ""},
		{"respect-robots", ""},
		{"separate-text-nodes", ""},
		{"batch", "b"},
		{"no-history", ""},
		{"db-dir", ""},
		{"config", "c"},
		{"json", "j"},
		{"markdown", "m"},
		{"report", "r"},
	}
	for _, f := range flags {
		flag := cmd.Flags().Lookup(f.name)
		if flag == nil {
			t.Errorf("expected %s flag", f.name)
			continue
		}
		if flag.Shorthand != f.shorthand {
			t.Errorf("flag %s: expected shorthand %q, got %q", f.name, f.shorthand, flag.Shorthand)
		}
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the default base URL", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-c", emptyConfig(t)}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != config.DefaultBaseURL {
			t.Errorf("expected default target, got %v", cfg.Targets)
		}
		if cfg.OutputDir != config.DefaultOutputDir {
			t.Errorf("expected output dir %q, got %q", config.DefaultOutputDir, cfg.OutputDir)
		}
		if cfg.SeparateTextNodes {
			t.Error("expected SeparateTextNodes to default to false")
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to default to true")
		}
	})

	t.Run("flags override the config file only when given", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".policyscan")
		content := "output:\n  dir: from-file\ntext:\n  separateNodes: true\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-c", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"https://a.example"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.OutputDir != "from-file" || !cfg.SeparateTextNodes {
			t.Errorf("expected file values, got dir=%q separate=%v", cfg.OutputDir, cfg.SeparateTextNodes)
		}

		cmd = NewScanCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "-d", "from-flag", "--separate-text-nodes=false", "--no-history"}); err != nil {
			t.Fatal(err)
		}
		cfg, err = buildConfig(cmd, []string{"https://a.example"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.OutputDir != "from-flag" || cfg.SeparateTextNodes {
			t.Errorf("expected flag values, got dir=%q separate=%v", cfg.OutputDir, cfg.SeparateTextNodes)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-history to disable SaveToDB")
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"-c", missing}); err != nil {
			t.Fatal(err)
		}
		_, err := buildConfig(cmd, nil)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestScanCommand(t *testing.T) {
	t.Parallel()

	t.Run("writes both files and a JSON report", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		outDir := t.TempDir()

		stdout, stderr, err := runCLI(t, "scan", "--json",
			"-c", emptyConfig(t), "--output-dir", outDir, "--db-dir", t.TempDir(), site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
		}

		var links []string
		readJSONFile(t, filepath.Join(outDir, config.DefaultLinksFile), &links)
		want := []string{"https://fonts.example.net/css", "https://partner.example.org/"}
		if len(links) != len(want) {
			t.Fatalf("expected links %v, got %v", want, links)
		}
		for i := range want {
			if links[i] != want[i] {
				t.Errorf("link %d: expected %q, got %q", i, want[i], links[i])
			}
		}

		var counts map[string]int
		readJSONFile(t, filepath.Join(outDir, config.DefaultWordsFile), &counts)
		if len(counts) != 1 || counts["data"] != 2 {
			t.Errorf("expected {data: 2}, got %v", counts)
		}

		var out report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &out); err != nil {
			t.Fatalf("invalid JSON report: %v\n%s", err, stdout)
		}
		if out.Version == "" {
			t.Error("expected version in JSON report")
		}
		if out.Report == nil || out.Report.BaseURL != site.URL {
			t.Fatalf("unexpected report: %+v", out.Report)
		}
		if out.Report.RunID == "" {
			t.Error("expected run ID in JSON report")
		}
		if out.Report.Anchor == nil || out.Report.Anchor.URL != site.URL+"/privacy" {
			t.Errorf("unexpected anchor: %+v", out.Report.Anchor)
		}
	})

	t.Run("missing anchor writes only the links file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": `<html><body><a href="/privacy">Privacy Policy</a></body></html>`})
		outDir := t.TempDir()

		_, stderr, err := runCLI(t, "scan", "--no-history",
			"-c", emptyConfig(t), "--output-dir", outDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
		}

		var links []string
		readJSONFile(t, filepath.Join(outDir, config.DefaultLinksFile), &links)
		if len(links) != 0 {
			t.Errorf("expected no links, got %v", links)
		}
		if _, err := os.Stat(filepath.Join(outDir, config.DefaultWordsFile)); !os.IsNotExist(err) {
			t.Errorf("expected no word count file, stat error: %v", err)
		}
	})

	t.Run("homepage failure returns an error", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{})
		outDir := t.TempDir()

		_, _, err := runCLI(t, "scan", "--no-history",
			"-c", emptyConfig(t), "--output-dir", outDir, site.URL)
		if err == nil {
			t.Fatal("expected error for missing homepage")
		}
		if _, err := os.Stat(filepath.Join(outDir, config.DefaultLinksFile)); !os.IsNotExist(err) {
			t.Errorf("expected no links file, stat error: %v", err)
		}
	})

	t.Run("excluded text tags from the config file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":        testHomepage,
			"/privacy": `<html><head><style>body{}</style></head><body><p>Data Data.</p></body></html>`,
		})

		scanWords := func(cfgContent string) map[string]int {
			t.Helper()

			cfgPath := filepath.Join(t.TempDir(), ".policyscan")
			if err := os.WriteFile(cfgPath, []byte(cfgContent), 0600); err != nil {
				t.Fatal(err)
			}
			outDir := t.TempDir()
			if _, stderr, err := runCLI(t, "scan", "--no-history", "-c", cfgPath, "--output-dir", outDir, site.URL); err != nil {
				t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
			}
			var counts map[string]int
			readJSONFile(t, filepath.Join(outDir, config.DefaultWordsFile), &counts)
			return counts
		}

		if counts := scanWords("{}\n"); counts["body"] != 1 {
			t.Errorf("expected style text to be counted by default, got %v", counts)
		}

		counts := scanWords("text:\n  excludeTags: [style]\n")
		if len(counts) != 1 || counts["data"] != 2 {
			t.Errorf("expected {data: 2}, got %v", counts)
		}
	})

	t.Run("batch mode writes per-site directories", func(t *testing.T) {
		t.Parallel()

		siteA := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		siteB := newTestSite(t, map[string]string{"/": `<html><body><img src="https://cdn.example.com/a.png"></body></html>`})
		outDir := t.TempDir()

		_, stderr, err := runCLI(t, "scan", "--batch", "2", "--no-history",
			"-c", emptyConfig(t), "--output-dir", outDir, siteA.URL, siteB.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
		}

		dirA := pipeline.SiteOutputDir(outDir, siteA.URL)
		dirB := pipeline.SiteOutputDir(outDir, siteB.URL)
		if !strings.HasPrefix(filepath.Base(dirA), "127.0.0.1_") {
			t.Errorf("unexpected site directory %s", dirA)
		}

		var counts map[string]int
		readJSONFile(t, filepath.Join(dirA, config.DefaultWordsFile), &counts)
		if counts["data"] != 2 {
			t.Errorf("expected data=2 for site A, got %v", counts)
		}

		var links []string
		readJSONFile(t, filepath.Join(dirB, config.DefaultLinksFile), &links)
		if len(links) != 1 || links[0] != "https://cdn.example.com/a.png" {
			t.Errorf("unexpected links for site B: %v", links)
		}
		if _, err := os.Stat(filepath.Join(dirB, config.DefaultWordsFile)); !os.IsNotExist(err) {
			t.Errorf("expected no word count file for site B, stat error: %v", err)
		}
	})

	t.Run("batch targets sharing a directory are rejected", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		outDir := t.TempDir()

		_, _, err := runCLI(t, "scan", "--no-history",
			"-c", emptyConfig(t), "--output-dir", outDir, site.URL, site.URL+"/")
		if !errors.Is(err, pipeline.ErrOutputDirConflict) {
			t.Fatalf("expected ErrOutputDirConflict, got %v", err)
		}

		entries, err := os.ReadDir(outDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("expected nothing written, found %d entries", len(entries))
		}
	})

	t.Run("unusable history directory does not stop the scan", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		outDir := t.TempDir()

		// A regular file cannot hold the database.
		dbDir := filepath.Join(t.TempDir(), "not-a-dir")
		if err := os.WriteFile(dbDir, nil, 0600); err != nil {
			t.Fatal(err)
		}

		_, stderr, err := runCLI(t, "scan", "-c", emptyConfig(t), "--output-dir", outDir, "--db-dir", dbDir, site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
		}
		if !strings.Contains(stderr, "continuing without history") {
			t.Errorf("expected a history warning, got %q", stderr)
		}

		var counts map[string]int
		readJSONFile(t, filepath.Join(outDir, config.DefaultWordsFile), &counts)
		if counts["data"] != 2 {
			t.Errorf("expected data=2, got %v", counts)
		}
	})

	t.Run("batch mode reports failed sites", func(t *testing.T) {
		t.Parallel()

		good := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		bad := newTestSite(t, map[string]string{})

		_, stderr, err := runCLI(t, "scan", "--no-history",
			"-c", emptyConfig(t), "--output-dir", t.TempDir(), good.URL, bad.URL)
		if err == nil {
			t.Fatal("expected error when a site fails")
		}
		if !strings.Contains(err.Error(), "1 of 2 scans failed") {
			t.Errorf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, "Scan error for "+bad.URL) {
			t.Errorf("expected scan error line in stderr, got %q", stderr)
		}
	})

	t.Run("report file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": testHomepage, "/privacy": testPolicy})
		reportPath := filepath.Join(t.TempDir(), "reports", "scan.md")

		stdout, stderr, err := runCLI(t, "scan", "--markdown", "--no-history", "-r", reportPath,
			"-c", emptyConfig(t), "--output-dir", t.TempDir(), site.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout, got %q", stdout)
		}
		content, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(content), site.URL) {
			t.Errorf("expected report to mention %s", site.URL)
		}
	})

	t.Run("invalid target", func(t *testing.T) {
		t.Parallel()

		_, _, err := runCLI(t, "scan", "--no-history", "-c", emptyConfig(t), "ftp://example.com")
		if !errors.Is(err, config.ErrInvalidTarget) {
			t.Errorf("expected ErrInvalidTarget, got %v", err)
		}
	})

	t.Run("broken link tag in the config file", func(t *testing.T) {
		t.Parallel()

		cfgPath := filepath.Join(t.TempDir(), ".policyscan")
		if err := os.WriteFile(cfgPath, []byte("defaults:\n  linkTags: [\"img[\"]\n"), 0600); err != nil {
			t.Fatal(err)
		}

		_, _, err := runCLI(t, "scan", "--no-history", "-c", cfgPath, "--output-dir", t.TempDir(), "https://a.example")
		if !errors.Is(err, config.ErrInvalidLinkTag) {
			t.Errorf("expected ErrInvalidLinkTag, got %v", err)
		}
	})

	t.Run("conflicting report formats", func(t *testing.T) {
		t.Parallel()

		_, _, err := runCLI(t, "scan", "--json", "--markdown", "--no-history", "-c", emptyConfig(t))
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})
}
