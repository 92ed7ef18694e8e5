package models

import (
	"github.com/uptrace/bun"
)

// FetchLog is one append-only audit row per fetch attempt. Rows are
// never updated; only the retention sweep removes them.
type FetchLog struct {
	bun.BaseModel `bun:"table:fetch_log,alias:fl"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	ChannelID     int64     `bun:"channel_id,notnull" json:"channel_id"`
	Date          string    `bun:"date,notnull" json:"date"`
	Success       bool      `bun:"success,notnull" json:"success"`
	ProgramsCount int       `bun:"programs_count,notnull,default:0" json:"programs_count"`
	ErrorMessage  *string   `bun:"error_message" json:"error_message,omitempty"`
	DurationMs    int64     `bun:"duration_ms,notnull,default:0" json:"duration_ms"`
	FetchedAt     string    `bun:"fetched_at,nullzero,notnull,default:current_timestamp" json:"fetched_at"`
}
