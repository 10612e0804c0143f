package engine

import (
	"strings"
	"testing"
	"time"
)

func TestDayPlanWindows(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	plan := DayPlan([]string{"mbg lang:id"}, day)

	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	want := "mbg lang:id since:2025-03-14 until:2025-03-15"
	if plan[0] != want {
		t.Errorf("plan[0] = %q, want %q", plan[0], want)
	}
}

func TestPlanMonthWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	plan := Plan([]string{"mbg"}, start, end)

	if !strings.HasSuffix(plan[0], "since:2025-01-01 until:2025-02-01") {
		t.Errorf("plan[0] = %q, want month window suffix", plan[0])
	}
}

func TestPlanDeterministic(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	exprs := []string{"b", "a", "c"}

	first := DayPlan(exprs, day)
	for i := 0; i < 5; i++ {
		again := DayPlan(exprs, day)
		if len(again) != len(first) {
			t.Fatalf("plan length changed between calls")
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("plan[%d] changed: %q vs %q", j, first[j], again[j])
			}
		}
	}
	// Input order is preserved.
	if !strings.HasPrefix(first[0], "b ") || !strings.HasPrefix(first[1], "a ") {
		t.Errorf("plan order not input order: %v", first)
	}
}

func TestPlanCapsAndDedupes(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	exprs := []string{"a", "a", " ", "b", "c", "d", "e", "f"}

	plan := DayPlan(exprs, day)
	if len(plan) != 5 {
		t.Fatalf("len(plan) = %d, want 5", len(plan))
	}
}

func TestPlanDefaultPanel(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	plan := DayPlan(nil, day)

	if len(plan) != 5 {
		t.Fatalf("len(plan) = %d, want 5", len(plan))
	}
	if !strings.Contains(plan[0], "MBG") {
		t.Errorf("default panel missing MBG expression: %q", plan[0])
	}
	for _, q := range plan {
		if !strings.Contains(q, "since:2025-03-14") || !strings.Contains(q, "until:2025-03-15") {
			t.Errorf("query missing date window: %q", q)
		}
	}
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("https://x.com", "mbg since:2025-03-14 until:2025-03-15")
	if !strings.HasPrefix(got, "https://x.com/search?q=") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "since%3A2025-03-14") {
		t.Errorf("date clause not escaped: %q", got)
	}
	if !strings.HasSuffix(got, "&src=typed_query&f=live") {
		t.Errorf("missing live-search params: %q", got)
	}
}
