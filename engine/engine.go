// Package engine drives resilient collection of social posts from a
// live search timeline.
//
// The engine owns the control flow only: query planning, scrolling,
// stagnation tracking, failure classification, in-place recovery, and
// rate-limit backoff. The browser surface is behind the View interface
// and persistence behind the Sink interface, so the whole state machine
// runs against fakes in tests.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrSessionLost reports that the browser connection or session is
// gone. It is the only non-recoverable failure; the caller restarts the
// browser and resumes.
var ErrSessionLost = errors.New("engine: browser session lost")

// Metrics holds per-post engagement counters.
type Metrics struct {
	Replies int
	Shares  int
	Likes   int
}

// Item is one post extracted from the timeline.
type Item struct {
	ID           string
	URL          string
	Text         string
	AuthorName   string
	AuthorHandle string
	CreatedAt    time.Time
	// Location is the author-provided location string, when the
	// timeline exposes one. Usually empty.
	Location string
	Metrics  Metrics
}

// Signal is a snapshot of the page state used for failure
// classification.
type Signal struct {
	// PageText is the visible alert and status text on the page,
	// lowercased by the View.
	PageText string
	// URL is the current page URL.
	URL string
	// ItemCount is the number of post elements currently rendered.
	ItemCount int
	// HasRetry reports whether a retry affordance is visible.
	HasRetry bool
}

// View is the browser surface the engine drives. Implementations wrap
// a real page; tests use an in-memory fake.
type View interface {
	// Navigate opens the given URL and waits for initial load.
	Navigate(ctx context.Context, url string) error
	// Reload refreshes the current page.
	Reload(ctx context.Context) error
	// Scroll advances the timeline by one viewport.
	Scroll(ctx context.Context) error
	// Items extracts the posts currently rendered.
	Items(ctx context.Context) ([]Item, error)
	// Signal samples the page state for classification.
	Signal(ctx context.Context) (Signal, error)
	// ClickRetry activates a retry affordance if one is present and
	// reports whether anything was clicked. It never reloads the page.
	ClickRetry(ctx context.Context) (bool, error)
}

// Sink receives deduplicated items for a collection date and reports
// how many were newly persisted.
type Sink interface {
	Persist(ctx context.Context, day time.Time, items []Item) (int, error)
	CountForDate(ctx context.Context, day time.Time) (int, error)
}

// IsSessionLost reports whether err indicates a dead browser session,
// either via the sentinel or via driver error text.
func IsSessionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionLost) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range []string{
		"connection", "session", "websocket", "cdp",
		"browser has been closed", "target closed",
	} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
