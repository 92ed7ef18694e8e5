package pocketbase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"telkatv/internal/models"
	"telkatv/internal/sources/telkussa"
)

// Fetcher is the upstream schedule source. *telkussa.Fetcher satisfies it.
type Fetcher interface {
	FetchDay(ctx context.Context, channelID int64, date string) ([]telkussa.RawProgram, error)
	FetchChannels(ctx context.Context) ([]telkussa.ChannelInfo, error)
}

// Collector is the remote-store variant of the collection pipeline:
// the same fetch and normalize steps, with PocketBase collections
// (channels, programs, series, fetch_logs) instead of SQLite tables.
// Upserts are create-vs-patch keyed by the upstream natural id, and
// series rows track first_seen/last_seen per series id.
type Collector struct {
	pb      *Client
	fetcher Fetcher
	logger  *zap.SugaredLogger
}

func NewCollector(pb *Client, fetcher Fetcher, logger *zap.SugaredLogger) *Collector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Collector{pb: pb, fetcher: fetcher, logger: logger}
}

// channel as stored in the PocketBase channels collection.
type pbChannel struct {
	recordID  string
	ChannelID int64
	Name      string
}

// UpdateChannels mirrors the upstream directory into the channels
// collection. Active is set true only on create so manual deactivation
// in the PocketBase admin UI survives refreshes.
func (c *Collector) UpdateChannels(ctx context.Context) error {
	infos, err := c.fetcher.FetchChannels(ctx)
	if err != nil {
		return fmt.Errorf("channel directory: %w", err)
	}

	existing, err := c.channelIndex(ctx)
	if err != nil {
		return err
	}

	for _, info := range infos {
		fields := Record{
			"channel_id": info.ID,
			"name":       info.Name,
			"logo_url":   info.Logo,
			"category":   info.Category,
			"show_order": info.ShowOrder,
		}
		if rec, ok := existing[info.ID]; ok {
			if _, err := c.pb.Update(ctx, "channels", rec.recordID, fields); err != nil {
				return err
			}
			continue
		}
		fields["active"] = true
		if _, err := c.pb.Create(ctx, "channels", fields); err != nil {
			return err
		}
	}
	c.logger.Infow("channel directory updated", "channels", len(infos))
	return nil
}

func (c *Collector) channelIndex(ctx context.Context) (map[int64]pbChannel, error) {
	records, err := c.pb.ListAll(ctx, "channels", "")
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	index := make(map[int64]pbChannel, len(records))
	for _, rec := range records {
		ch := pbChannel{
			recordID:  asString(rec["id"]),
			ChannelID: asInt64(rec["channel_id"]),
			Name:      asString(rec["name"]),
		}
		if ch.ChannelID != 0 {
			index[ch.ChannelID] = ch
		}
	}
	return index, nil
}

func (c *Collector) activeChannels(ctx context.Context) ([]pbChannel, error) {
	records, err := c.pb.ListAll(ctx, "channels", "active = true")
	if err != nil {
		return nil, fmt.Errorf("load active channels: %w", err)
	}
	channels := make([]pbChannel, 0, len(records))
	for _, rec := range records {
		channels = append(channels, pbChannel{
			recordID:  asString(rec["id"]),
			ChannelID: asInt64(rec["channel_id"]),
			Name:      asString(rec["name"]),
		})
	}
	return channels, nil
}

// CollectRange fetches and stores schedules for all active channels
// over [from, from+daysAhead], one fetch_logs record per channel-day.
func (c *Collector) CollectRange(ctx context.Context, from time.Time, daysAhead int) error {
	channels, err := c.activeChannels(ctx)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return errors.New("no active channels in pocketbase")
	}

	for day := 0; day <= daysAhead; day++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		date := from.AddDate(0, 0, day).Format("20060102")
		for _, ch := range channels {
			c.collectDay(ctx, ch, date)
		}
	}
	return nil
}

func (c *Collector) collectDay(ctx context.Context, ch pbChannel, date string) {
	started := time.Now()

	raws, err := c.fetcher.FetchDay(ctx, ch.ChannelID, date)
	if err != nil {
		c.logger.Errorw("fetch failed", "channel", ch.Name, "date", date, "error", err)
		c.logFetch(ctx, ch.ChannelID, date, false, 0, err.Error(), started)
		return
	}

	stored := 0
	for _, raw := range raws {
		norm, err := telkussa.Normalize(raw, ch.ChannelID, date)
		if err != nil {
			c.logger.Warnw("skipping malformed program",
				"channel", ch.Name, "date", date, "error", err)
			continue
		}
		created, err := c.StoreProgram(ctx, norm)
		if err != nil {
			c.logger.Warnw("store failed",
				"channel", ch.Name, "external_id", norm.Program.ExternalID, "error", err)
			continue
		}
		if created {
			stored++
		}
		if norm.SeriesID > 0 {
			if err := c.UpdateSeries(ctx, norm.SeriesID, norm.Program.Title); err != nil {
				c.logger.Warnw("series update failed",
					"series_id", norm.SeriesID, "error", err)
			}
		}
	}

	c.logFetch(ctx, ch.ChannelID, date, true, stored, "", started)
	c.logger.Infow("channel day collected",
		"channel", ch.Name, "date", date, "programs", len(raws), "stored", stored)
}

// StoreProgram upserts a normalized program into the programs
// collection: create when the external id is unseen, patch otherwise.
// Returns true when a new record was created.
func (c *Collector) StoreProgram(ctx context.Context, norm *telkussa.Normalized) (bool, error) {
	p := norm.Program
	fields := Record{
		"external_id":   p.ExternalID,
		"channel_id":    p.ChannelID,
		"title":         p.Title,
		"description":   deref(p.Description),
		"start_time":    p.StartTime,
		"end_time":      p.EndTime,
		"duration":      p.Duration,
		"category":      p.Category,
		"is_series":     p.IsSeries,
		"episode_title": deref(p.EpisodeTitle),
		"age_rating":    deref(p.AgeRating),
		"image_url":     deref(p.ImageURL),
		"is_rerun":      p.IsRerun,
		"genres":        strings.Join(norm.Genres, ", "),
	}
	if p.Season != nil {
		fields["season"] = *p.Season
	}
	if p.Episode != nil {
		fields["episode"] = *p.Episode
	}
	if p.Year != nil {
		fields["year"] = *p.Year
	}
	if norm.SeriesID > 0 {
		fields["series_id"] = norm.SeriesID
	}

	existing, err := c.pb.List(ctx, "programs", ListOptions{
		Filter:  fmt.Sprintf("external_id = %q", p.ExternalID),
		PerPage: 1,
	})
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		_, err := c.pb.Update(ctx, "programs", asString(existing[0]["id"]), fields)
		return false, err
	}
	_, err = c.pb.Create(ctx, "programs", fields)
	return err == nil, err
}

// UpdateSeries maintains the series collection: first_seen is set on
// create, last_seen bumps on every sighting.
func (c *Collector) UpdateSeries(ctx context.Context, seriesID int64, title string) error {
	now := time.Now().Format(models.TimeLayout)
	existing, err := c.pb.List(ctx, "series", ListOptions{
		Filter:  fmt.Sprintf("series_id = %d", seriesID),
		PerPage: 1,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		_, err := c.pb.Update(ctx, "series", asString(existing[0]["id"]), Record{
			"title":     title,
			"last_seen": now,
		})
		return err
	}
	_, err = c.pb.Create(ctx, "series", Record{
		"series_id":  seriesID,
		"title":      title,
		"first_seen": now,
		"last_seen":  now,
	})
	return err
}

func (c *Collector) logFetch(ctx context.Context, channelID int64, date string, success bool, count int, errMsg string, started time.Time) {
	_, err := c.pb.Create(ctx, "fetch_logs", Record{
		"channel_id":     channelID,
		"date":           date,
		"success":        success,
		"programs_count": count,
		"error_message":  errMsg,
		"duration_ms":    time.Since(started).Milliseconds(),
		"fetched_at":     time.Now().Format(models.TimeLayout),
	})
	if err != nil {
		c.logger.Warnw("fetch log write failed", "channel", channelID, "date", date, "error", err)
	}
}

// Cleanup deletes programs and fetch log records older than the
// retention window via per-record REST deletes.
func (c *Collector) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format(models.TimeLayout)

	deleted := 0
	old, err := c.pb.ListAll(ctx, "programs", fmt.Sprintf("start_time < %q", cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup programs: %w", err)
	}
	for _, rec := range old {
		if err := c.pb.Delete(ctx, "programs", asString(rec["id"])); err != nil {
			return deleted, err
		}
		deleted++
	}

	oldLogs, err := c.pb.ListAll(ctx, "fetch_logs", fmt.Sprintf("fetched_at < %q", cutoff))
	if err != nil {
		return deleted, fmt.Errorf("cleanup fetch logs: %w", err)
	}
	for _, rec := range oldLogs {
		if err := c.pb.Delete(ctx, "fetch_logs", asString(rec["id"])); err != nil {
			return deleted, err
		}
	}

	c.logger.Infow("retention cleanup", "cutoff", cutoff, "programs", deleted, "fetch_logs", len(oldLogs))
	return deleted, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	}
	return 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
