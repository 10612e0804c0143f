package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeView is an in-memory page. Tests mutate its state through the
// OnNavigate/OnScroll hooks to script timeline behavior.
type fakeView struct {
	Queue    []Item // items currently rendered
	PageText string
	URL      string
	Retry    bool // retry affordance visible

	// RetryWorks makes ClickRetry clear the failure and append Extra.
	// RetryNoop makes ClickRetry report a click that changes nothing.
	RetryWorks bool
	RetryNoop  bool
	Extra      []Item

	OnNavigate func(v *fakeView, url string)
	OnScroll   func(v *fakeView)

	ItemsErr  error
	SignalErr error

	Navs, Scrolls, Reloads, Retries int
	NavURLs                         []string
}

func (v *fakeView) Navigate(ctx context.Context, url string) error {
	v.Navs++
	v.NavURLs = append(v.NavURLs, url)
	v.URL = url
	if v.OnNavigate != nil {
		v.OnNavigate(v, url)
	}
	return nil
}

func (v *fakeView) Reload(ctx context.Context) error {
	v.Reloads++
	return nil
}

func (v *fakeView) Scroll(ctx context.Context) error {
	v.Scrolls++
	if v.OnScroll != nil {
		v.OnScroll(v)
	}
	return nil
}

func (v *fakeView) Items(ctx context.Context) ([]Item, error) {
	if v.ItemsErr != nil {
		return nil, v.ItemsErr
	}
	out := make([]Item, len(v.Queue))
	copy(out, v.Queue)
	return out, nil
}

func (v *fakeView) Signal(ctx context.Context) (Signal, error) {
	if v.SignalErr != nil {
		return Signal{}, v.SignalErr
	}
	return Signal{
		PageText:  v.PageText,
		URL:       v.URL,
		ItemCount: len(v.Queue),
		HasRetry:  v.Retry,
	}, nil
}

func (v *fakeView) ClickRetry(ctx context.Context) (bool, error) {
	v.Retries++
	if v.RetryNoop {
		return true, nil
	}
	if !v.RetryWorks {
		return false, nil
	}
	v.PageText = ""
	v.Retry = false
	v.Queue = append(v.Queue, v.Extra...)
	v.Extra = nil
	return true, nil
}

// memSink collects persisted items keyed by date.
type memSink struct {
	mu    sync.Mutex
	saved map[string][]Item
	seen  map[string]struct{}
}

func newMemSink() *memSink {
	return &memSink{
		saved: make(map[string][]Item),
		seen:  make(map[string]struct{}),
	}
}

func (s *memSink) Persist(ctx context.Context, day time.Time, items []Item) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := day.Format("2006-01-02")
	n := 0
	for _, it := range items {
		if _, dup := s.seen[it.ID]; dup {
			continue
		}
		s.seen[it.ID] = struct{}{}
		s.saved[key] = append(s.saved[key], it)
		n++
	}
	return n, nil
}

func (s *memSink) CountForDate(ctx context.Context, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved[day.Format("2006-01-02")]), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.DiscardHandler)
}

func testItems(prefix string, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:   fmt.Sprintf("%s-%d", prefix, i),
			Text: fmt.Sprintf("post %s number %d", prefix, i),
		}
	}
	return items
}

// fastConfig keeps all driver pacing near zero for tests.
func fastConfig() Config {
	return Config{
		BaseURL:             "https://x.test",
		MaxItems:            1000,
		MaxQueryRetries:     3,
		MaxConsecutiveNoNew: 3,
		MaxScrolls:          200,
		ScrollPauseMin:      time.Microsecond,
		ScrollPauseMax:      2 * time.Microsecond,
		AwaitAttempts:       2,
		AwaitInterval:       time.Microsecond,
		InterQueryDelayMin:  time.Microsecond,
		InterQueryDelayMax:  2 * time.Microsecond,
		SignalEvery:         1,
	}
}

func fastBackoff() Backoff {
	return Backoff{Base: time.Microsecond, Multiplier: 1.5, Cap: time.Millisecond}
}

func fastRecoverer(c Classifier, log *slog.Logger) *Recoverer {
	return &Recoverer{
		MaxAttempts:   3,
		Classifier:    c,
		SettleDelay:   time.Microsecond,
		AwaitAttempts: 2,
		AwaitInterval: time.Microsecond,
		Log:           log,
	}
}
