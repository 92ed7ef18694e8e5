package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"telkatv/internal/cache"
	"telkatv/internal/collector"
	"telkatv/internal/config"
	"telkatv/internal/database"
	"telkatv/internal/migrations"
	"telkatv/internal/pocketbase"
	"telkatv/internal/ratelimit"
	"telkatv/internal/repositories"
	"telkatv/internal/sources/telkussa"
)

const lockKey = "tv:collector:lock"

func main() {
	dbPath := flag.String("db", "", "SQLite database path (default from TV_DB_PATH)")
	configPath := flag.String("config", "", "Optional config file path (YAML)")
	daysAhead := flag.Int("days-ahead", -1, "Days ahead to fetch (default from config)")
	backend := flag.String("backend", "sqlite", "Storage backend: sqlite or pocketbase")
	cleanup := flag.Bool("cleanup", false, "Purge programs older than the retention window after collecting")
	updateChannels := flag.Bool("update-channels", false, "Refresh the channel list from the upstream directory")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()
	sugar := logger.Sugar()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *daysAhead >= 0 {
		cfg.DaysAhead = *daysAhead
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A shared lock keeps overlapping cron runs from double-fetching.
	var rds *cache.Redis
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer rds.Close()

		unlock, err := cache.TryLock(ctx, rds, lockKey, 30*time.Minute)
		if errors.Is(err, cache.ErrLocked) {
			sugar.Infow("another collector run is in progress, exiting")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "lock: %v\n", err)
			os.Exit(1)
		}
		defer unlock()
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit)
	client := telkussa.NewClient(limiter, cfg.UserAgent, cfg.Timeout)
	fetcher := telkussa.NewFetcher(client, cfg.RateLimit, sugar)

	switch *backend {
	case "sqlite":
		err = runSQLite(ctx, cfg, fetcher, sugar, *updateChannels, *cleanup, *verbose)
	case "pocketbase":
		err = runPocketBase(ctx, cfg, fetcher, sugar, *updateChannels, *cleanup)
	default:
		err = fmt.Errorf("unknown backend: %s", *backend)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "collect: %v\n", err)
		os.Exit(1)
	}

	if rds != nil {
		if err := cache.DelPattern(ctx, rds, "tv:*"); err != nil {
			sugar.Warnw("cache invalidation failed", "error", err)
		}
	}
}

func runSQLite(ctx context.Context, cfg *config.Config, fetcher *telkussa.Fetcher, sugar *zap.SugaredLogger, updateChannels, cleanup, verbose bool) error {
	db, err := database.NewDB(cfg.DBPath, verbose)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := migrations.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	coll := collector.New(db, fetcher, cfg.Channels, sugar)

	// -update-channels refreshes the channel list and stops there.
	if updateChannels {
		return coll.UpdateChannels(ctx)
	}

	// First run against an empty database still needs channels.
	channels, err := repositories.GetChannels(ctx, db, true)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		if err := coll.UpdateChannels(ctx); err != nil {
			return err
		}
	}

	res, err := coll.CollectRange(ctx, time.Now(), cfg.DaysAhead)
	if err != nil {
		return err
	}

	if cleanup {
		if _, err := coll.Cleanup(ctx, cfg.RetentionDays); err != nil {
			return err
		}
	}

	stats, err := repositories.GetStatistics(ctx, db)
	if err != nil {
		return err
	}
	fmt.Printf("stored %d new programs (%d seen, %d skipped) across %d channels\n",
		res.ProgramsStored, res.ProgramsSeen, res.Skipped, res.ChannelsOK)
	fmt.Printf("database: %d programs, %d channels, %s to %s\n",
		stats.TotalPrograms, stats.TotalChannels, stats.DateRange.Earliest, stats.DateRange.Latest)
	return nil
}

func runPocketBase(ctx context.Context, cfg *config.Config, fetcher *telkussa.Fetcher, sugar *zap.SugaredLogger, updateChannels, cleanup bool) error {
	if err := cfg.RequirePocketBase(); err != nil {
		return err
	}

	pb := pocketbase.NewClient(cfg.PocketBaseURL, cfg.Timeout)
	if err := pb.Authenticate(ctx, cfg.PocketBaseEmail, cfg.PocketBasePassword); err != nil {
		return err
	}

	coll := pocketbase.NewCollector(pb, fetcher, sugar)

	if updateChannels {
		return coll.UpdateChannels(ctx)
	}
	if err := coll.CollectRange(ctx, time.Now(), cfg.DaysAhead); err != nil {
		return err
	}
	if cleanup {
		if _, err := coll.Cleanup(ctx, cfg.RetentionDays); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	logCfg := zap.NewProductionConfig()
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
