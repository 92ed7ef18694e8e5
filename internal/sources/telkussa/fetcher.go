package telkussa

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telkatv/internal/ratelimit"
)

// Fetcher wraps the client with retry handling. All upstream failures
// are treated as transient: each attempt past the first waits a
// linearly growing delay, and only after the retry budget is spent does
// the failure surface to the caller.
type Fetcher struct {
	client *Client
	cfg    ratelimit.Config
	logger *zap.SugaredLogger
}

// NewFetcher creates a fetcher on top of client using cfg's retry settings.
func NewFetcher(client *Client, cfg ratelimit.Config, logger *zap.SugaredLogger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fetcher{client: client, cfg: cfg, logger: logger}
}

// FetchDay retrieves the program list for one channel and date,
// retrying transient failures. On success the returned slice may be
// empty (a day with no scheduled programs); a non-nil error means the
// fetch failed outright and nothing is known about the day.
func (f *Fetcher) FetchDay(ctx context.Context, channelID int64, date string) ([]RawProgram, error) {
	retries := f.cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		programs, err := f.client.FetchDay(ctx, channelID, date)
		if err == nil {
			return programs, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < retries {
			wait := ratelimit.CalculateLinearBackoff(attempt, f.cfg)
			f.logger.Warnw("fetch attempt failed, retrying",
				"channel", channelID,
				"date", date,
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil, fmt.Errorf("fetch channel %d for %s after %d attempts: %w", channelID, date, retries, lastErr)
}

// FetchChannels retrieves the channel directory (no retry; callers fall
// back to their configured channel list on failure).
func (f *Fetcher) FetchChannels(ctx context.Context) ([]ChannelInfo, error) {
	return f.client.FetchChannels(ctx)
}
