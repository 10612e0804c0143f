package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Config tunes one Driver. The zero value gets sensible defaults from
// NewDriver; a Driver never re-reads configuration after construction.
type Config struct {
	// BaseURL of the target site.
	BaseURL string
	// MaxItems is the per-date item quota, shared across all queries of
	// that date.
	MaxItems int
	// MaxQueryRetries bounds rate-limit backoff cycles per query.
	MaxQueryRetries int
	// MaxConsecutiveNoNew is the stagnation threshold.
	MaxConsecutiveNoNew int
	// MaxScrolls caps scroll iterations per query.
	MaxScrolls int
	// ScrollPauseMin/Max bound the pause after a productive scroll.
	// Unproductive scrolls use a much shorter fixed pause.
	ScrollPauseMin time.Duration
	ScrollPauseMax time.Duration
	// ReloadEvery forces a page reload every N scrolls. 0 disables.
	ReloadEvery int
	// AwaitAttempts × AwaitInterval bound the wait for first content.
	AwaitAttempts int
	AwaitInterval time.Duration
	// InterQueryDelayMin/Max bound the pause between queries.
	InterQueryDelayMin time.Duration
	InterQueryDelayMax time.Duration
	// SignalEvery is how many scroll iterations pass between page
	// health checks. Checking every iteration is too slow on real
	// pages.
	SignalEvery int
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://x.com"
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 1000
	}
	if c.MaxQueryRetries <= 0 {
		c.MaxQueryRetries = 3
	}
	if c.MaxConsecutiveNoNew <= 0 {
		c.MaxConsecutiveNoNew = 20
	}
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = 2000
	}
	if c.SignalEvery <= 0 {
		c.SignalEvery = 5
	}
}

// Option adjusts a Driver beyond its Config.
type Option func(*Driver)

// WithClassifier replaces the default phrase-table detector.
func WithClassifier(c Classifier) Option {
	return func(d *Driver) { d.classifier = c }
}

// WithBackoff replaces the default rate-limit backoff.
func WithBackoff(b Backoff) Option {
	return func(d *Driver) { d.backoff = b }
}

// WithRecoverer replaces the default soft-error recoverer.
func WithRecoverer(r *Recoverer) Option {
	return func(d *Driver) { d.recoverer = r }
}

// Driver collects posts for one date at a time. It runs a single
// cooperative loop; all waits observe ctx.
type Driver struct {
	cfg        Config
	view       View
	sink       Sink
	classifier Classifier
	recoverer  *Recoverer
	backoff    Backoff
	log        *slog.Logger
}

// NewDriver builds a Driver over a view and a sink.
func NewDriver(cfg Config, view View, sink Sink, log *slog.Logger, opts ...Option) *Driver {
	cfg.defaults()
	d := &Driver{
		cfg:     cfg,
		view:    view,
		sink:    sink,
		backoff: DefaultBackoff(),
		log:     log,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.classifier == nil {
		d.classifier = NewDetector()
	}
	if d.recoverer == nil {
		d.recoverer = NewRecoverer(10, d.classifier, log)
	}
	return d
}

// CollectDay runs the full query plan for one date and returns how many
// new items were persisted. The quota applies to the date, not to each
// query: once reached, remaining queries are skipped. Per-query
// failures other than session loss are absorbed; the plan moves on.
func (d *Driver) CollectDay(ctx context.Context, day time.Time, exprs []string) (int, error) {
	ledger := NewLedger()
	queries := DayPlan(exprs, day)
	total := 0

	for i, query := range queries {
		log := d.log.With("date", day.Format("2006-01-02"), "query", i+1)
		log.Info("running query", "total_so_far", total)

		saved, err := d.runQuery(ctx, day, query, ledger, total, log)
		total += saved
		if err != nil {
			if IsSessionLost(err) || ctx.Err() != nil {
				return total, err
			}
			log.Warn("query failed, moving to next", "error", err)
			continue
		}

		log.Info("query finished", "saved", saved, "total", total)

		if total >= d.cfg.MaxItems {
			log.Info("quota reached, skipping remaining queries", "quota", d.cfg.MaxItems)
			break
		}
		if i < len(queries)-1 {
			if err := sleepCtx(ctx, randBetween(d.cfg.InterQueryDelayMin, d.cfg.InterQueryDelayMax)); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// runQuery drives one query to completion, retrying through rate
// limits. Only session loss and cancellation surface as errors.
func (d *Driver) runQuery(ctx context.Context, day time.Time, query string, ledger *Ledger, already int, log *slog.Logger) (int, error) {
	saved := 0

	for attempt := 0; attempt <= d.cfg.MaxQueryRetries; attempt++ {
		if attempt > 0 {
			delay := d.backoff.Delay(attempt)
			log.Warn("rate limited, backing off", "attempt", attempt, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return saved, err
			}
		}

		if err := d.view.Navigate(ctx, SearchURL(d.cfg.BaseURL, query)); err != nil {
			if IsSessionLost(err) {
				return saved, fmt.Errorf("navigate: %w: %v", ErrSessionLost, err)
			}
			log.Warn("navigation failed", "error", err)
			continue // burns one retry
		}

		ready, limited, err := d.awaitContent(ctx, log)
		if err != nil {
			return saved, err
		}
		if limited {
			// Challenge or rate-limit page instead of content; back off
			// and renavigate like a mid-scroll rate limit.
			continue
		}
		if !ready {
			log.Info("no content appeared, abandoning query")
			return saved, nil
		}

		n, limited, err := d.scrollLoop(ctx, day, ledger, already+saved, log)
		saved += n
		if err != nil {
			return saved, err
		}
		if !limited {
			return saved, nil
		}
		// Rate limited mid-scroll; back off and retry the same query.
	}

	log.Warn("rate-limit retries exhausted, moving on")
	return saved, nil
}

// awaitContent waits for first items after navigation, running soft
// error recovery if a failure page shows up instead. limited=true means
// the page is rate limited (typically a verification challenge instead
// of results) and the caller should back off and renavigate.
func (d *Driver) awaitContent(ctx context.Context, log *slog.Logger) (ready, limited bool, err error) {
	for i := 0; i < max(d.cfg.AwaitAttempts, 1); i++ {
		sig, err := d.view.Signal(ctx)
		if err != nil {
			return false, false, d.viewErr("signal", err)
		}
		if sig.ItemCount > 0 {
			return true, false, nil
		}
		switch d.classifier.Classify(sig) {
		case RateLimited:
			log.Warn("rate limited while awaiting content", "url", sig.URL)
			return false, true, nil
		case SoftError:
			recovered, err := d.recoverer.Recover(ctx, d.view)
			if err != nil {
				return false, false, d.viewErr("recover", err)
			}
			if recovered {
				return true, false, nil
			}
		}
		if err := sleepCtx(ctx, d.cfg.AwaitInterval); err != nil {
			return false, false, err
		}
	}
	return false, false, nil
}

// probeHealth samples the page and reacts to the verdict: recovery on a
// soft error, limited=true on a rate limit. recovered=true means a soft
// error was cleared with new content rendered.
func (d *Driver) probeHealth(ctx context.Context) (limited, recovered bool, err error) {
	sig, err := d.view.Signal(ctx)
	if err != nil {
		return false, false, d.viewErr("signal", err)
	}
	switch d.classifier.Classify(sig) {
	case RateLimited:
		return true, false, nil
	case SoftError:
		recovered, err := d.recoverer.Recover(ctx, d.view)
		if err != nil {
			return false, false, d.viewErr("recover", err)
		}
		return false, recovered, nil
	}
	return false, false, nil
}

// scrollLoop is the inner collection loop for one query. It returns the
// number of items persisted, and limited=true when it stopped because
// of rate limiting and the caller should back off and retry.
func (d *Driver) scrollLoop(ctx context.Context, day time.Time, ledger *Ledger, already int, log *slog.Logger) (saved int, limited bool, err error) {
	stagnant := 0

	for scroll := 1; scroll <= d.cfg.MaxScrolls; scroll++ {
		if scroll%d.cfg.SignalEvery == 0 {
			lim, recovered, err := d.probeHealth(ctx)
			if err != nil {
				return saved, false, err
			}
			if lim {
				return saved, true, nil
			}
			if recovered {
				stagnant = 0
			}
		}

		items, err := d.view.Items(ctx)
		if err != nil {
			return saved, false, d.viewErr("items", err)
		}

		// An empty extraction can mean a failure page as easily as a
		// drained timeline; check before trusting it. Skipped when the
		// periodic probe already ran this iteration.
		if len(items) == 0 && scroll%d.cfg.SignalEvery != 0 {
			lim, recovered, err := d.probeHealth(ctx)
			if err != nil {
				return saved, false, err
			}
			if lim {
				return saved, true, nil
			}
			if recovered {
				stagnant = 0
			}
		}

		fresh := items[:0:0]
		for _, it := range items {
			if it.ID == "" {
				continue
			}
			if ledger.Admit(it) {
				fresh = append(fresh, it)
			}
		}

		if len(fresh) > 0 {
			// In-flight items are persisted even when cancellation
			// arrives during extraction; nothing already pulled from
			// the page is dropped.
			n, err := d.sink.Persist(context.WithoutCancel(ctx), day, fresh)
			saved += n
			if err != nil {
				log.Error("persist failed", "error", err, "items", len(fresh))
			}
			if n > 0 {
				stagnant = 0
				log.Info("saved new items", "new", n, "total", already+saved)
			} else {
				stagnant++
			}
		} else {
			stagnant++
		}

		if err := ctx.Err(); err != nil {
			return saved, false, err
		}

		if already+saved >= d.cfg.MaxItems {
			log.Info("quota reached", "quota", d.cfg.MaxItems)
			return saved, false, nil
		}
		if stagnant >= d.cfg.MaxConsecutiveNoNew {
			log.Info("timeline stagnant, abandoning query", "iterations", stagnant)
			return saved, false, nil
		}

		if err := d.view.Scroll(ctx); err != nil {
			return saved, false, d.viewErr("scroll", err)
		}

		// Adaptive pacing: full pause only when the last pass yielded
		// something, a token pause otherwise to sweep dead timelines
		// quickly.
		var pause time.Duration
		if stagnant == 0 {
			pause = randBetween(d.cfg.ScrollPauseMin, d.cfg.ScrollPauseMax)
		} else {
			pause = d.cfg.ScrollPauseMin / 10
		}
		if err := sleepCtx(ctx, pause); err != nil {
			return saved, false, err
		}

		if d.cfg.ReloadEvery > 0 && scroll%d.cfg.ReloadEvery == 0 {
			log.Info("periodic reload", "scroll", scroll)
			if err := d.view.Reload(ctx); err != nil {
				return saved, false, d.viewErr("reload", err)
			}
			_, lim, err := d.awaitContent(ctx, log)
			if err != nil {
				return saved, false, err
			}
			if lim {
				return saved, true, nil
			}
		}
	}

	log.Info("scroll ceiling reached", "max_scrolls", d.cfg.MaxScrolls)
	return saved, false, nil
}

func (d *Driver) viewErr(op string, err error) error {
	if IsSessionLost(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrSessionLost, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func randBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}
