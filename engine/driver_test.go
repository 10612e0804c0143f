package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

var testDay = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func newTestDriver(cfg Config, view View, sink Sink, t *testing.T) *Driver {
	log := testLogger(t)
	det := NewDetector()
	return NewDriver(cfg, view, sink, log,
		WithClassifier(det),
		WithBackoff(fastBackoff()),
		WithRecoverer(fastRecoverer(det, log)),
	)
}

func TestCollectDayStopsOnStagnation(t *testing.T) {
	view := &fakeView{
		OnNavigate: func(v *fakeView, url string) {
			v.Queue = testItems("a", 2)
		},
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	total, err := d.CollectDay(context.Background(), testDay, []string{"q"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	// The timeline never produced anything new after the first pass, so
	// the loop must have stopped at the stagnation threshold rather
	// than running to the scroll ceiling.
	if view.Scrolls >= fastConfig().MaxScrolls {
		t.Errorf("scrolls = %d, should stop well before ceiling", view.Scrolls)
	}
}

func TestCollectDayQuotaSpansQueries(t *testing.T) {
	view := &fakeView{}
	view.OnNavigate = func(v *fakeView, url string) {
		// First query yields two items, second yields two more.
		if v.Navs == 1 {
			v.Queue = testItems("a", 2)
		} else {
			v.Queue = testItems("b", 2)
		}
	}
	sink := newMemSink()
	cfg := fastConfig()
	cfg.MaxItems = 3
	d := newTestDriver(cfg, view, sink, t)

	total, err := d.CollectDay(context.Background(), testDay, []string{"q1", "q2", "q3"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4 (quota checked after batch persist)", total)
	}
	// Quota was hit during the second query; the third never ran.
	if view.Navs != 2 {
		t.Errorf("navs = %d, want 2", view.Navs)
	}
}

func TestCollectDayDeduplicatesAcrossQueries(t *testing.T) {
	view := &fakeView{
		OnNavigate: func(v *fakeView, url string) {
			v.Queue = testItems("same", 3)
		},
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	total, err := d.CollectDay(context.Background(), testDay, []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 (overlapping queries must not double count)", total)
	}
}

func TestCollectDaySkipsItemsWithoutID(t *testing.T) {
	view := &fakeView{
		OnNavigate: func(v *fakeView, url string) {
			v.Queue = []Item{
				{ID: "", Text: "no identity"},
				{ID: "x-1", Text: "has identity"},
			}
		},
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	total, err := d.CollectDay(context.Background(), testDay, []string{"q"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestRateLimitRetriesSameQuery(t *testing.T) {
	view := &fakeView{
		OnNavigate: func(v *fakeView, url string) {
			v.Queue = testItems("a", 1)
			v.PageText = "too many requests, try again later"
		},
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	_, err := d.CollectDay(context.Background(), testDay, []string{"q"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	// Initial attempt plus MaxQueryRetries backoff cycles, every time
	// with the same URL.
	wantNavs := fastConfig().MaxQueryRetries + 1
	if view.Navs != wantNavs {
		t.Errorf("navs = %d, want %d", view.Navs, wantNavs)
	}
	for _, u := range view.NavURLs {
		if u != view.NavURLs[0] {
			t.Errorf("retried with different URL: %q vs %q", u, view.NavURLs[0])
		}
	}
	if view.Reloads != 0 {
		t.Errorf("reloads = %d, want 0", view.Reloads)
	}
}

func TestRateLimitedChallengePageRetries(t *testing.T) {
	view := &fakeView{
		OnNavigate: func(v *fakeView, url string) {
			// Navigation bounced to a verification challenge: nothing
			// rendered, challenge fragment in the URL.
			v.Queue = nil
			v.URL = "https://x.test/account/access"
		},
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	total, err := d.CollectDay(context.Background(), testDay, []string{"q"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	// The challenge page must drive the same backoff-and-renavigate
	// cycle as a mid-scroll rate limit, not a silent abandonment.
	wantNavs := fastConfig().MaxQueryRetries + 1
	if view.Navs != wantNavs {
		t.Errorf("navs = %d, want %d", view.Navs, wantNavs)
	}
	for _, u := range view.NavURLs {
		if u != view.NavURLs[0] {
			t.Errorf("retried with different URL: %q vs %q", u, view.NavURLs[0])
		}
	}
	if view.Reloads != 0 {
		t.Errorf("reloads = %d, want 0", view.Reloads)
	}
}

func TestEmptyExtractionChecksForRateLimit(t *testing.T) {
	view := &fakeView{}
	view.OnNavigate = func(v *fakeView, url string) {
		v.Queue = testItems("a", 1)
		v.PageText = ""
	}
	view.OnScroll = func(v *fakeView) {
		// The timeline empties out because a rate-limit interstitial
		// replaced it.
		v.Queue = nil
		v.PageText = "too many requests, try again later"
	}
	sink := newMemSink()
	cfg := fastConfig()
	// Boundary checks far apart: only the empty-extraction probe can
	// notice the rate limit here.
	cfg.SignalEvery = 100
	d := newTestDriver(cfg, view, sink, t)

	total, err := d.CollectDay(context.Background(), testDay, []string{"q"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	wantNavs := cfg.MaxQueryRetries + 1
	if view.Navs != wantNavs {
		t.Errorf("navs = %d, want %d (empty result must be classified, not trusted)", view.Navs, wantNavs)
	}
}

func TestSoftErrorRecoveryMidRun(t *testing.T) {
	view := &fakeView{}
	view.OnNavigate = func(v *fakeView, url string) {
		v.Queue = testItems("a", 1)
	}
	view.OnScroll = func(v *fakeView) {
		if v.Scrolls == 2 {
			v.PageText = "something went wrong"
			v.Retry = true
			v.RetryWorks = true
			v.Extra = testItems("after-retry", 2)
		}
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	total, err := d.CollectDay(context.Background(), testDay, []string{"q"})
	if err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 (items recovered after retry click)", total)
	}
	if view.Retries == 0 {
		t.Error("retry affordance never clicked")
	}
	if view.Reloads != 0 {
		t.Errorf("reloads = %d, want 0 (recovery must not reload)", view.Reloads)
	}
}

func TestSessionLossSurfaces(t *testing.T) {
	view := &fakeView{
		OnNavigate: func(v *fakeView, url string) {
			v.Queue = testItems("a", 1)
			v.ItemsErr = errors.New("websocket: close 1006 (abnormal closure)")
		},
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	_, err := d.CollectDay(context.Background(), testDay, []string{"q1", "q2"})
	if !errors.Is(err, ErrSessionLost) {
		t.Fatalf("err = %v, want ErrSessionLost", err)
	}
	// Session loss aborts the whole plan, not just the current query.
	if view.Navs != 1 {
		t.Errorf("navs = %d, want 1", view.Navs)
	}
}

func TestCancellationPersistsInFlightBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	view := &fakeView{}
	view.OnNavigate = func(v *fakeView, url string) {
		v.Queue = testItems("a", 2)
		// Cancel while the batch is in flight: items are already
		// extracted, persistence has not happened yet.
		cancel()
	}
	sink := newMemSink()
	d := newTestDriver(fastConfig(), view, sink, t)

	total, err := d.CollectDay(ctx, testDay, []string{"q"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2 (in-flight batch must be persisted)", total)
	}
	if n, _ := sink.CountForDate(context.Background(), testDay); n != 2 {
		t.Errorf("persisted = %d, want 2", n)
	}
}

func TestPeriodicReload(t *testing.T) {
	view := &fakeView{}
	view.OnNavigate = func(v *fakeView, url string) {
		v.Queue = testItems("a", 1)
	}
	serial := 0
	view.OnScroll = func(v *fakeView) {
		// Keep the timeline productive so the loop reaches the reload
		// boundary.
		serial++
		v.Queue = append(v.Queue, testItems("s"+strconv.Itoa(serial), 1)...)
	}
	sink := newMemSink()
	cfg := fastConfig()
	cfg.ReloadEvery = 10
	cfg.MaxItems = 25
	d := newTestDriver(cfg, view, sink, t)

	if _, err := d.CollectDay(context.Background(), testDay, []string{"q"}); err != nil {
		t.Fatalf("CollectDay: %v", err)
	}
	if view.Reloads == 0 {
		t.Error("expected at least one periodic reload")
	}
}
