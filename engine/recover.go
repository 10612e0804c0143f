package engine

import (
	"context"
	"log/slog"
	"time"
)

// Recoverer handles soft errors in place. It clicks the page's retry
// affordance and waits for new content, never reloading: a reload would
// reset the scroll position and lose the timeline window already
// traversed.
type Recoverer struct {
	// MaxAttempts bounds retry activations per recovery.
	MaxAttempts int
	// Classifier decides whether the failure is still present.
	Classifier Classifier
	// SettleDelay is the pause after a click before rechecking.
	SettleDelay time.Duration
	// AwaitAttempts × AwaitInterval bound the wait for the item count
	// to rise past the baseline after a click.
	AwaitAttempts int
	AwaitInterval time.Duration
	Log           *slog.Logger
}

// NewRecoverer returns a Recoverer with default pacing.
func NewRecoverer(maxAttempts int, c Classifier, log *slog.Logger) *Recoverer {
	return &Recoverer{
		MaxAttempts:   maxAttempts,
		Classifier:    c,
		SettleDelay:   3 * time.Second,
		AwaitAttempts: 10,
		AwaitInterval: time.Second,
		Log:           log,
	}
}

// Recover attempts in-place recovery from a soft error. Success means
// the rendered item count rose above the pre-recovery baseline.
// A missing retry affordance is not an error; the caller resumes
// scrolling from the current position.
func (r *Recoverer) Recover(ctx context.Context, view View) (bool, error) {
	base, err := view.Signal(ctx)
	if err != nil {
		return false, err
	}
	baseline := base.ItemCount

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		sig, err := view.Signal(ctx)
		if err != nil {
			return false, err
		}

		if r.Classifier.Classify(sig) != SoftError {
			// Error cleared on its own; only count it as recovery if
			// content actually advanced.
			return sig.ItemCount > baseline, nil
		}

		clicked, err := view.ClickRetry(ctx)
		if err != nil {
			return false, err
		}
		if !clicked {
			r.Log.Info("no retry affordance found, resuming from current position",
				"attempt", attempt)
			return false, nil
		}

		if err := sleepCtx(ctx, r.SettleDelay); err != nil {
			return false, err
		}

		grew, err := r.awaitGrowth(ctx, view, baseline)
		if err != nil {
			return false, err
		}
		if grew {
			r.Log.Info("recovery succeeded", "attempt", attempt, "baseline", baseline)
			return true, nil
		}

		r.Log.Debug("no new content after retry click", "attempt", attempt)
	}

	r.Log.Warn("recovery exhausted", "attempts", r.MaxAttempts)
	return false, nil
}

func (r *Recoverer) awaitGrowth(ctx context.Context, view View, baseline int) (bool, error) {
	for i := 0; i < r.AwaitAttempts; i++ {
		sig, err := view.Signal(ctx)
		if err != nil {
			return false, err
		}
		if sig.ItemCount > baseline {
			return true, nil
		}
		if err := sleepCtx(ctx, r.AwaitInterval); err != nil {
			return false, err
		}
	}
	return false, nil
}
