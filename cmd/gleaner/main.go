// Command gleaner collects social posts for configured search queries
// across a date range, stores them in date-partitioned SQLite files,
// and optionally runs sentiment processing and JSON export afterwards.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gleaner/browser"
	"gleaner/config"
	"gleaner/engine"
	"gleaner/export"
	"gleaner/idgen"
	"gleaner/label"
	"gleaner/notify"
	"gleaner/page"
	"gleaner/process"
	"gleaner/status"
	"gleaner/store"

	_ "modernc.org/sqlite"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (optional)")
		since      = flag.String("since", "", "first collection date, YYYY-MM-DD")
		until      = flag.String("until", "", "last collection date, YYYY-MM-DD")
		monthly    = flag.Bool("monthly", false, "store all dates of a month in one partition")
		doProcess  = flag.Bool("process", false, "run cleaning and sentiment labeling after collection")
		doExport   = flag.Bool("export", false, "export partitions to JSON after collection")
		logLevel   = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	var lvl slog.Level
	switch *logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *since, *until, *monthly, *doProcess, *doExport, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, since, until string, monthly, doProcess, doExport bool, logger *slog.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
	}
	if since != "" {
		cfg.Search.StartDate = since
	}
	if until != "" {
		cfg.Search.EndDate = until
	}
	if monthly {
		cfg.Search.Monthly = true
	}
	if doProcess {
		cfg.Process.Enabled = true
	}

	start, end, err := cfg.DateRange(time.Now())
	if err != nil {
		return err
	}

	runID := idgen.Prefixed("run_", idgen.Default)()
	logger = logger.With("run_id", runID)
	logger.Info("starting collection run",
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"monthly", cfg.Search.Monthly)

	gateway := store.NewGateway(cfg.Storage.Dir, cfg.Storage.Prefix, cfg.Search.Monthly, logger)
	defer gateway.Close()

	headless := true
	if cfg.Browser.Headless != nil {
		headless = *cfg.Browser.Headless
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:   cfg.Browser.Remote,
		Headless:    headless,
		CookiesFile: cfg.Browser.CookiesFile,
		BaseURL:     cfg.Search.BaseURL,
		NavTimeout:  cfg.Scraper.NavTimeout,
		Logger:      logger,
	})
	defer mgr.Close()

	connect := func(ctx context.Context) (engine.View, error) {
		p, err := mgr.Start(ctx)
		if err != nil {
			return nil, err
		}
		return page.NewView(p, cfg.Search.BaseURL, cfg.Scraper.NavTimeout, logger), nil
	}

	detector := engine.NewDetector()
	recoverer := engine.NewRecoverer(cfg.Scraper.MaxRetryAttempts, detector, logger)
	recoverer.AwaitAttempts = cfg.Scraper.AwaitAttempts
	recoverer.AwaitInterval = cfg.Scraper.AwaitInterval

	runner := engine.NewRunner(
		engine.RunConfig{
			Exprs:              cfg.Search.Queries,
			Start:              start,
			End:                end,
			SkipCompleted:      cfg.Scraper.SkipCompleted,
			MaxSessionRestarts: cfg.Scraper.MaxSessionRestarts,
			InterDateDelayMin:  cfg.Scraper.InterDateDelayMin,
			InterDateDelayMax:  cfg.Scraper.InterDateDelayMax,
		},
		engine.Config{
			BaseURL:             cfg.Search.BaseURL,
			MaxItems:            cfg.Scraper.MaxItems,
			MaxQueryRetries:     cfg.Scraper.MaxQueryRetries,
			MaxConsecutiveNoNew: cfg.Scraper.MaxConsecutiveNoNew,
			MaxScrolls:          cfg.Scraper.MaxScrolls,
			ScrollPauseMin:      cfg.Scraper.ScrollPauseMin,
			ScrollPauseMax:      cfg.Scraper.ScrollPauseMax,
			ReloadEvery:         cfg.Scraper.ReloadEvery,
			AwaitAttempts:       cfg.Scraper.AwaitAttempts,
			AwaitInterval:       cfg.Scraper.AwaitInterval,
			InterQueryDelayMin:  cfg.Scraper.InterQueryDelayMin,
			InterQueryDelayMax:  cfg.Scraper.InterQueryDelayMax,
		},
		connect, gateway, logger,
		engine.WithClassifier(detector),
		engine.WithRecoverer(recoverer),
		engine.WithBackoff(engine.Backoff{
			Base:       cfg.Scraper.BackoffBase,
			Multiplier: cfg.Scraper.BackoffMultiplier,
			Cap:        cfg.Scraper.BackoffCap,
			Jitter:     time.Second,
		}),
	)

	tracker := status.NewTracker(runID)
	runner.OnDate = tracker.DateDone
	runner.OnRestart = func(int) { tracker.Restarted() }

	var statusSrv *status.Server
	if cfg.Status.Addr != "" {
		statusSrv = status.NewServer(cfg.Status.Addr, tracker, logger)
		go func() {
			if err := statusSrv.Start(); err != nil {
				logger.Error("status server", "error", err)
			}
		}()
		defer func() {
			shctx, shcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shcancel()
			statusSrv.Shutdown(shctx)
		}()
	}

	notifier := buildNotifier(cfg.Notify, logger)

	tracker.SetState(status.StateCollecting)
	sum, runErr := runner.Run(ctx)
	logger.Info("collection finished",
		"dates", sum.Dates, "skipped", sum.Skipped,
		"items", sum.Items, "restarts", sum.Restarts,
		"duration", sum.Finished.Sub(sum.Started).Round(time.Second))
	notifier.RunFinished(runID, sum, runErr)
	if runErr != nil {
		tracker.Finish(runErr)
		return runErr
	}

	// Processing and export run over whatever is on disk, including
	// partitions from earlier runs that were never processed.
	if cfg.Process.Enabled {
		tracker.SetState(status.StateProcessing)
		if err := runProcessing(ctx, cfg, gateway, logger); err != nil {
			tracker.Finish(err)
			return err
		}
	}
	if doExport {
		tracker.SetState(status.StateExporting)
		ex := export.New(gateway, cfg.Storage.Dir, logger)
		paths, err := ex.ExportAll(ctx)
		if err != nil {
			tracker.Finish(err)
			return err
		}
		logger.Info("export finished", "files", len(paths))
	}

	tracker.Finish(nil)
	return nil
}

func runProcessing(ctx context.Context, cfg *config.Config, gateway *store.Gateway, logger *slog.Logger) error {
	var labeler process.Labeler
	if key := os.Getenv(cfg.Process.APIKeyEnv); key != "" {
		labeler = label.New(label.Config{
			APIKey:  key,
			Model:   cfg.Process.Model,
			BaseURL: cfg.Process.BaseURL,
			Logger:  logger,
		})
	} else {
		logger.Warn("no API key in environment, cleaning and location only",
			"env", cfg.Process.APIKeyEnv)
	}

	keys, err := gateway.Partitions()
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}
	pipe := process.NewPipeline(gateway, labeler, cfg.Process.BatchSize, logger)
	n, err := pipe.Run(ctx, keys)
	if err != nil {
		return err
	}
	logger.Info("processing finished", "partitions", len(keys), "records", n)
	return nil
}

// buildNotifier returns nil when Telegram is not configured; a nil
// Notifier swallows all calls.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	token := os.Getenv(cfg.TelegramTokenEnv)
	if token == "" || cfg.ChatID == 0 {
		return nil
	}
	n, err := notify.New(token, cfg.ChatID, logger)
	if err != nil {
		logger.Warn("telegram notifier unavailable", "error", err)
		return nil
	}
	return n
}
