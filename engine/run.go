package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RunConfig tunes a full collection run across a date range.
type RunConfig struct {
	// Exprs are the configured query expressions. Empty uses the
	// built-in panel.
	Exprs []string
	// Start and End bound the run, inclusive, at day granularity.
	Start time.Time
	End   time.Time
	// SkipCompleted skips dates that already have persisted records.
	SkipCompleted bool
	// MaxSessionRestarts bounds browser restarts per run.
	MaxSessionRestarts int
	// InterDateDelayMin/Max bound the pause between dates.
	InterDateDelayMin time.Duration
	InterDateDelayMax time.Duration
}

// ViewFactory builds a fresh browser view. It is called once at run
// start and again after every session loss.
type ViewFactory func(ctx context.Context) (View, error)

// Summary reports what a run accomplished.
type Summary struct {
	Dates    int
	Skipped  int
	Items    int
	Restarts int
	Started  time.Time
	Finished time.Time
}

// Runner walks a date range and collects each date with a Driver,
// restarting the browser when the session is lost and resuming on the
// same date.
type Runner struct {
	cfg     RunConfig
	drvCfg  Config
	connect ViewFactory
	sink    Sink
	log     *slog.Logger
	opts    []Option

	// OnDate, when set, is called after each date completes. The status
	// endpoint subscribes here.
	OnDate func(day time.Time, saved int)
	// OnRestart, when set, is called after each browser restart.
	OnRestart func(restarts int)
}

// NewRunner builds a Runner. opts are forwarded to each Driver it
// constructs.
func NewRunner(cfg RunConfig, drvCfg Config, connect ViewFactory, sink Sink, log *slog.Logger, opts ...Option) *Runner {
	if cfg.MaxSessionRestarts <= 0 {
		cfg.MaxSessionRestarts = 2
	}
	return &Runner{
		cfg:     cfg,
		drvCfg:  drvCfg,
		connect: connect,
		sink:    sink,
		log:     log,
		opts:    opts,
	}
}

// Run collects every date in the configured range. It returns early
// only on cancellation or when the session restart budget is spent;
// everything already persisted stays persisted either way.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{Started: time.Now()}
	defer func() { sum.Finished = time.Now() }()

	view, err := r.connect(ctx)
	if err != nil {
		return sum, fmt.Errorf("connect: %w", err)
	}
	driver := NewDriver(r.drvCfg, view, r.sink, r.log, r.opts...)
	restarts := 0

	for day := r.cfg.Start; !day.After(r.cfg.End); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		log := r.log.With("date", day.Format("2006-01-02"))

		if r.cfg.SkipCompleted {
			n, err := r.sink.CountForDate(ctx, day)
			if err != nil {
				return sum, fmt.Errorf("count for date: %w", err)
			}
			if n > 0 {
				log.Info("date already collected, skipping", "existing", n)
				sum.Skipped++
				continue
			}
		}

		for {
			saved, err := driver.CollectDay(ctx, day, r.cfg.Exprs)
			sum.Items += saved
			if err == nil {
				sum.Dates++
				log.Info("date complete", "saved", saved)
				if r.OnDate != nil {
					r.OnDate(day, saved)
				}
				break
			}
			if ctx.Err() != nil {
				return sum, err
			}
			if !IsSessionLost(err) {
				log.Error("date failed", "error", err)
				sum.Dates++
				break
			}

			restarts++
			sum.Restarts = restarts
			if r.OnRestart != nil {
				r.OnRestart(restarts)
			}
			if restarts > r.cfg.MaxSessionRestarts {
				return sum, fmt.Errorf("session restart budget exhausted: %w", err)
			}
			log.Warn("session lost, restarting browser", "restart", restarts)
			view, err = r.connect(ctx)
			if err != nil {
				return sum, fmt.Errorf("reconnect: %w", err)
			}
			driver = NewDriver(r.drvCfg, view, r.sink, r.log, r.opts...)
			// Same date again; upserts keep the partition duplicate
			// free across the restart.
		}

		if !day.Equal(r.cfg.End) {
			if err := sleepCtx(ctx, randBetween(r.cfg.InterDateDelayMin, r.cfg.InterDateDelayMax)); err != nil {
				return sum, err
			}
		}
	}

	return sum, nil
}
