package models

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Program is one scheduled broadcast on one channel. The external ID is
// unique across the whole store and is what makes re-ingestion of the
// same day idempotent: either the upstream program ID, or a composite
// key synthesized by the normalizer when the upstream has none.
type Program struct {
	bun.BaseModel `bun:"table:programs,alias:p"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ExternalID  string    `bun:"external_id,unique,notnull" json:"external_id"`
	ChannelID   int64     `bun:"channel_id,notnull" json:"channel_id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description *string   `bun:"description" json:"description,omitempty"`
	StartTime   string    `bun:"start_time,notnull" json:"start_time"`
	EndTime     string    `bun:"end_time,notnull" json:"end_time"`
	Duration    int       `bun:"duration,default:0" json:"duration"`
	Category    *string   `bun:"category" json:"category,omitempty"`
	IsSeries    bool      `bun:"is_series,notnull,default:false" json:"is_series"`
	Season      *int      `bun:"season" json:"season,omitempty"`
	Episode     *int      `bun:"episode" json:"episode,omitempty"`
	EpisodeTitle *string  `bun:"episode_title" json:"episode_title,omitempty"`
	AgeRating   *string   `bun:"age_rating" json:"age_rating,omitempty"`
	ImageURL    *string   `bun:"image_url" json:"image_url,omitempty"`
	Year        *int      `bun:"year" json:"year,omitempty"`
	Country     *string   `bun:"country" json:"country,omitempty"`
	IsRerun     bool      `bun:"is_rerun,notnull,default:false" json:"is_rerun"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Channel *Channel  `bun:"rel:belongs-to,join:channel_id=id" json:"channel,omitempty"`
	Genres  []*Genre  `bun:"m2m:program_genres,join:Program=Genre" json:"genres,omitempty"`
	People  []*Person `bun:"m2m:program_people,join:Program=Person" json:"people,omitempty"`

	ChannelName string `bun:"channel_name,scanonly" json:"channel_name,omitempty"`
}

// TimeLayout is the canonical timestamp format stored in start_time and
// end_time. Plain ISO 8601 without a zone designator keeps SQLite's
// date() and lexicographic BETWEEN comparisons working.
const TimeLayout = "2006-01-02T15:04:05"

// Validate checks that required program fields are present.
func (p *Program) Validate() error {
	if p.ExternalID == "" {
		return errors.New("external id is required")
	}
	if p.ChannelID <= 0 {
		return errors.New("channel id must be positive")
	}
	if p.Title == "" {
		return errors.New("title is required")
	}
	if p.StartTime == "" {
		return errors.New("start time is required")
	}
	return nil
}

// Start parses the stored start timestamp.
func (p *Program) Start() (time.Time, error) {
	return time.ParseInLocation(TimeLayout, p.StartTime, time.Local)
}

// End parses the stored end timestamp.
func (p *Program) End() (time.Time, error) {
	return time.ParseInLocation(TimeLayout, p.EndTime, time.Local)
}

// AiringAt reports whether the program is on air at the given instant.
func (p *Program) AiringAt(t time.Time) bool {
	start, err := p.Start()
	if err != nil {
		return false
	}
	end, err := p.End()
	if err != nil {
		return false
	}
	return !t.Before(start) && !t.After(end)
}
