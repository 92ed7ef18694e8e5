package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"telkatv/internal/config"
	"telkatv/internal/models"
	"telkatv/internal/repositories"
	"telkatv/internal/sources/telkussa"
)

// Fetcher is the upstream schedule source the collector pulls from.
// *telkussa.Fetcher satisfies it.
type Fetcher interface {
	FetchDay(ctx context.Context, channelID int64, date string) ([]telkussa.RawProgram, error)
	FetchChannels(ctx context.Context) ([]telkussa.ChannelInfo, error)
}

// Collector runs the fetch-normalize-store pipeline for a set of
// channels over a window of dates. One fetch_log row is written per
// (channel, date) attempt regardless of outcome.
type Collector struct {
	db       *bun.DB
	fetcher  Fetcher
	logger   *zap.SugaredLogger
	channels []config.ChannelSeed
}

// Result summarizes a collection run.
type Result struct {
	DaysFetched    int
	ChannelsOK     int
	ChannelsFailed int
	ProgramsStored int
	ProgramsSeen   int
	Skipped        int
}

func New(db *bun.DB, fetcher Fetcher, channels []config.ChannelSeed, logger *zap.SugaredLogger) *Collector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Collector{
		db:       db,
		fetcher:  fetcher,
		logger:   logger,
		channels: channels,
	}
}

// UpdateChannels refreshes the channel dimension from the upstream
// directory. When the directory call fails the configured seed list is
// upserted instead, so a fresh database still gets its channels.
func (c *Collector) UpdateChannels(ctx context.Context) error {
	infos, err := c.fetcher.FetchChannels(ctx)
	if err != nil {
		c.logger.Warnw("channel directory unavailable, using seed list", "error", err)
		return c.seedChannels(ctx)
	}

	now := time.Now().Format(models.TimeLayout)
	for _, info := range infos {
		ch := &models.Channel{
			ID:          info.ID,
			Name:        info.Name,
			ShowOrder:   info.ShowOrder,
			Active:      true,
			LastUpdated: now,
		}
		if info.Logo != "" {
			ch.LogoURL = &info.Logo
		}
		if info.Category != "" {
			ch.Category = &info.Category
		}
		if err := repositories.UpsertChannel(ctx, c.db, ch); err != nil {
			return fmt.Errorf("upsert channel %d: %w", info.ID, err)
		}
	}
	c.logger.Infow("channel directory updated", "channels", len(infos))
	return nil
}

func (c *Collector) seedChannels(ctx context.Context) error {
	now := time.Now().Format(models.TimeLayout)
	for i, seed := range c.channels {
		ch := &models.Channel{
			ID:          seed.ID,
			Name:        seed.Name,
			ShowOrder:   i + 1,
			Active:      true,
			LastUpdated: now,
		}
		if seed.Category != "" {
			ch.Category = &seed.Category
		}
		if err := repositories.UpsertChannel(ctx, c.db, ch); err != nil {
			return fmt.Errorf("seed channel %d: %w", seed.ID, err)
		}
	}
	return nil
}

// CollectRange fetches schedules for every active channel for each
// date in [from, from+daysAhead]. A failing channel-day is logged and
// skipped; the run keeps going.
func (c *Collector) CollectRange(ctx context.Context, from time.Time, daysAhead int) (*Result, error) {
	channels, err := repositories.GetChannels(ctx, c.db, true)
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	if len(channels) == 0 {
		return nil, errors.New("no active channels; run with channel update first")
	}

	res := &Result{}
	for day := 0; day <= daysAhead; day++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		date := from.AddDate(0, 0, day).Format("20060102")
		for _, ch := range channels {
			c.collectDay(ctx, ch, date, res)
		}
		res.DaysFetched++
	}

	c.logger.Infow("collection finished",
		"days", res.DaysFetched,
		"channels_ok", res.ChannelsOK,
		"channels_failed", res.ChannelsFailed,
		"programs_stored", res.ProgramsStored,
		"programs_seen", res.ProgramsSeen,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (c *Collector) collectDay(ctx context.Context, ch *models.Channel, date string, res *Result) {
	started := time.Now()

	raws, err := c.fetcher.FetchDay(ctx, ch.ID, date)
	if err != nil {
		res.ChannelsFailed++
		c.logger.Errorw("fetch failed",
			"channel", ch.Name, "date", date, "error", err)
		c.logFetch(ctx, ch.ID, date, false, 0, err.Error(), started)
		return
	}

	stored := 0
	for _, raw := range raws {
		res.ProgramsSeen++
		norm, err := telkussa.Normalize(raw, ch.ID, date)
		if err != nil {
			res.Skipped++
			c.logger.Warnw("skipping malformed program",
				"channel", ch.Name, "date", date, "error", err)
			continue
		}
		inserted, err := repositories.InsertProgram(ctx, c.db, norm.Program, norm.Genres, norm.People)
		if err != nil {
			res.Skipped++
			c.logger.Warnw("store failed",
				"channel", ch.Name, "external_id", norm.Program.ExternalID, "error", err)
			continue
		}
		if inserted {
			stored++
		}
	}

	res.ChannelsOK++
	res.ProgramsStored += stored
	c.logFetch(ctx, ch.ID, date, true, stored, "", started)
	c.logger.Infow("channel day collected",
		"channel", ch.Name, "date", date, "programs", len(raws), "stored", stored)
}

func (c *Collector) logFetch(ctx context.Context, channelID int64, date string, success bool, count int, errMsg string, started time.Time) {
	entry := &models.FetchLog{
		ChannelID:     channelID,
		Date:          date,
		Success:       success,
		ProgramsCount: count,
		DurationMs:    time.Since(started).Milliseconds(),
		FetchedAt:     time.Now().Format(models.TimeLayout),
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}
	if err := repositories.LogFetch(ctx, c.db, entry); err != nil {
		c.logger.Warnw("fetch log write failed", "channel", channelID, "date", date, "error", err)
	}
}

// Cleanup deletes programs and fetch log rows older than the retention
// window. Genre and people links cascade with the programs.
func (c *Collector) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	programs, err := repositories.CleanupOldPrograms(ctx, c.db, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup programs: %w", err)
	}
	logs, err := repositories.CleanupOldFetchLogs(ctx, c.db, cutoff)
	if err != nil {
		return programs, fmt.Errorf("cleanup fetch log: %w", err)
	}

	c.logger.Infow("retention cleanup",
		"cutoff", cutoff.Format("2006-01-02"), "programs", programs, "fetch_logs", logs)
	return programs, nil
}
