package ratelimit

import (
	"math"
	"math/rand"
	"time"
)

// CalculateLinearBackoff computes the retry delay for the schedule API:
// attempt x retry delay, capped at MaxBackoff. Attempt numbering starts
// at 1 for the first retry.
func CalculateLinearBackoff(attempt int, cfg Config) time.Duration {
	cfg = applyDefaults(cfg)
	if attempt <= 0 {
		return 0
	}

	backoff := time.Duration(attempt) * cfg.RetryDelay
	if backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	return backoff
}

// CalculateBackoff computes exponential backoff with +/-25% jitter.
func CalculateBackoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > cfg.MaxRetries {
		return cfg.MaxBackoff
	}

	base := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if base > float64(cfg.MaxBackoff) {
		base = float64(cfg.MaxBackoff)
	}

	jitter := base * 0.25 * (2*rand.Float64() - 1) // +/-25%
	backoff := base + jitter

	if backoff < 0 {
		backoff = 0
	}
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	return time.Duration(backoff)
}

// ShouldRetry returns true if attempt is within allowed retries.
func ShouldRetry(attempt int, maxRetries int) bool {
	return attempt <= maxRetries
}
