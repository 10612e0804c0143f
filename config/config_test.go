package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gleaner.yaml")
	if err := os.WriteFile(path, []byte("search:\n  queries: [mbg]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got, want := cfg.Search.BaseURL, "https://x.com"; got != want {
		t.Errorf("BaseURL = %q, want %q", got, want)
	}
	if got, want := cfg.Scraper.BackoffBase, 8*time.Second; got != want {
		t.Errorf("BackoffBase = %v, want %v", got, want)
	}
	if got, want := cfg.Scraper.BackoffCap, 45*time.Second; got != want {
		t.Errorf("BackoffCap = %v, want %v", got, want)
	}
	if got, want := cfg.Storage.Prefix, "posts_"; got != want {
		t.Errorf("Prefix = %q, want %q", got, want)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gleaner.yaml")
	raw := `
search:
  base_url: https://twitter.com
  monthly: true
scraper:
  max_items: 50
  backoff_cap: 20s
storage:
  dir: /tmp/out
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !cfg.Search.Monthly {
		t.Error("Monthly = false, want true")
	}
	if got, want := cfg.Scraper.MaxItems, 50; got != want {
		t.Errorf("MaxItems = %d, want %d", got, want)
	}
	if got, want := cfg.Scraper.BackoffCap, 20*time.Second; got != want {
		t.Errorf("BackoffCap = %v, want %v", got, want)
	}
	if got, want := cfg.Storage.Dir, "/tmp/out"; got != want {
		t.Errorf("Dir = %q, want %q", got, want)
	}
}

func TestReloadEverySentinel(t *testing.T) {
	if got := Default().Scraper.ReloadEvery; got != 100 {
		t.Errorf("unset ReloadEvery = %d, want default 100", got)
	}

	path := filepath.Join(t.TempDir(), "gleaner.yaml")
	if err := os.WriteFile(path, []byte("scraper:\n  reload_every: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := cfg.Scraper.ReloadEvery; got != 0 {
		t.Errorf("negative ReloadEvery = %d, want 0 (disabled)", got)
	}
}

func TestQueriesCappedAtFive(t *testing.T) {
	cfg := Config{}
	cfg.Search.Queries = []string{"a", "b", "c", "d", "e", "f", "g"}
	cfg.applyDefaults()
	if got := len(cfg.Search.Queries); got != 5 {
		t.Errorf("len(Queries) = %d, want 5", got)
	}
}

func TestDateRangeExplicit(t *testing.T) {
	cfg := Default()
	cfg.Search.StartDate = "2025-01-10"
	cfg.Search.EndDate = "2025-01-12"

	start, end, err := cfg.DateRange(time.Now())
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	if got, want := start.Format("2006-01-02"), "2025-01-10"; got != want {
		t.Errorf("start = %s, want %s", got, want)
	}
	if got, want := end.Format("2006-01-02"), "2025-01-12"; got != want {
		t.Errorf("end = %s, want %s", got, want)
	}
}

func TestDateRangeRejectsReversed(t *testing.T) {
	cfg := Default()
	cfg.Search.StartDate = "2025-02-01"
	cfg.Search.EndDate = "2025-01-01"
	if _, _, err := cfg.DateRange(time.Now()); err == nil {
		t.Fatal("DateRange accepted reversed range")
	}
}

func TestDateRangeDaysBack(t *testing.T) {
	cfg := Default()
	cfg.Search.DaysBack = 3

	now := time.Date(2025, 6, 10, 15, 4, 0, 0, time.UTC)
	start, end, err := cfg.DateRange(now)
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	if got, want := end.Format("2006-01-02"), "2025-06-10"; got != want {
		t.Errorf("end = %s, want %s", got, want)
	}
	if got, want := start.Format("2006-01-02"), "2025-06-07"; got != want {
		t.Errorf("start = %s, want %s", got, want)
	}
}
