package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"telkatv/internal/models"
)

const defaultSearchLimit = 50

// ProgramsByDate returns all programs starting on a calendar date
// (YYYY-MM-DD), optionally restricted to one channel, with genres and
// people loaded.
func ProgramsByDate(ctx context.Context, db *bun.DB, date string, channelID *int64) ([]*models.Program, error) {
	var programs []*models.Program
	q := db.NewSelect().
		Model(&programs).
		ColumnExpr("p.*").
		ColumnExpr("c.name AS channel_name").
		Join("JOIN channels AS c ON c.id = p.channel_id").
		Relation("Genres").
		Relation("People").
		Where("date(p.start_time) = ?", date).
		OrderExpr("p.channel_id, p.start_time")
	if channelID != nil {
		q = q.Where("p.channel_id = ?", *channelID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return programs, nil
}

// ProgramsNow returns programs on air at the given instant, ordered by
// channel name. Works by lexicographic containment because every stored
// timestamp uses the same canonical layout.
func ProgramsNow(ctx context.Context, db *bun.DB, now time.Time) ([]*models.Program, error) {
	var programs []*models.Program
	err := db.NewSelect().
		Model(&programs).
		ColumnExpr("p.*").
		ColumnExpr("c.name AS channel_name").
		Join("JOIN channels AS c ON c.id = p.channel_id").
		Where("? BETWEEN p.start_time AND p.end_time", now.Format(models.TimeLayout)).
		OrderExpr("c.name").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return programs, nil
}

// ProgramsBetween returns programs starting inside [from, to], ordered
// by start time. Backs the prime-time view.
func ProgramsBetween(ctx context.Context, db *bun.DB, from, to time.Time) ([]*models.Program, error) {
	var programs []*models.Program
	err := db.NewSelect().
		Model(&programs).
		ColumnExpr("p.*").
		ColumnExpr("c.name AS channel_name").
		Join("JOIN channels AS c ON c.id = p.channel_id").
		Where("p.start_time >= ?", from.Format(models.TimeLayout)).
		Where("p.start_time <= ?", to.Format(models.TimeLayout)).
		OrderExpr("p.start_time").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return programs, nil
}

// SearchPrograms returns programs whose title contains the query,
// case-insensitively, newest first.
func SearchPrograms(ctx context.Context, db *bun.DB, query string, limit int) ([]*models.Program, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var programs []*models.Program
	err := db.NewSelect().
		Model(&programs).
		ColumnExpr("p.*").
		ColumnExpr("c.name AS channel_name").
		Join("JOIN channels AS c ON c.id = p.channel_id").
		Where("lower(p.title) LIKE ?", "%"+strings.ToLower(query)+"%").
		OrderExpr("p.start_time DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return programs, nil
}

// ProgramsByGenre returns programs linked to the exactly named genre,
// newest first.
func ProgramsByGenre(ctx context.Context, db *bun.DB, genre string, limit int) ([]*models.Program, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var programs []*models.Program
	err := db.NewSelect().
		Model(&programs).
		ColumnExpr("p.*").
		ColumnExpr("c.name AS channel_name").
		Join("JOIN channels AS c ON c.id = p.channel_id").
		Join("JOIN program_genres AS pg ON pg.program_id = p.id").
		Join("JOIN genres AS g ON g.id = pg.genre_id").
		Where("g.name = ?", genre).
		OrderExpr("p.start_time DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return programs, nil
}

// ChannelCount is one per-channel program total.
type ChannelCount struct {
	Name  string `bun:"name" json:"name"`
	Count int    `bun:"count" json:"count"`
}

// GenreCount is one genre usage total.
type GenreCount struct {
	Name  string `bun:"name" json:"name"`
	Count int    `bun:"count" json:"count"`
}

// DateRange spans the earliest and latest stored program dates.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// Statistics aggregates store-wide totals for the CLI summary and the
// stats endpoint.
type Statistics struct {
	TotalPrograms      int             `json:"total_programs"`
	TotalChannels      int             `json:"total_channels"`
	DateRange          DateRange       `json:"date_range"`
	ProgramsPerChannel []ChannelCount  `json:"programs_per_channel"`
	TopGenres          []GenreCount    `json:"top_genres"`
	LastFetch          *models.FetchLog `json:"last_fetch,omitempty"`
}

// GetStatistics computes aggregate statistics over the whole store.
func GetStatistics(ctx context.Context, db *bun.DB) (*Statistics, error) {
	stats := &Statistics{}

	total, err := db.NewSelect().Model((*models.Program)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalPrograms = total

	channels, err := db.NewSelect().
		Model((*models.Channel)(nil)).
		Where("active = ?", true).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalChannels = channels

	var earliest, latest sql.NullString
	err = db.NewSelect().
		Model((*models.Program)(nil)).
		ColumnExpr("min(date(start_time))").
		ColumnExpr("max(date(start_time))").
		Scan(ctx, &earliest, &latest)
	if err != nil {
		return nil, err
	}
	stats.DateRange = DateRange{Earliest: earliest.String, Latest: latest.String}

	err = db.NewSelect().
		TableExpr("channels AS c").
		ColumnExpr("c.name AS name").
		ColumnExpr("count(p.id) AS count").
		Join("LEFT JOIN programs AS p ON p.channel_id = c.id").
		Where("c.active = ?", true).
		GroupExpr("c.id, c.name").
		OrderExpr("count DESC").
		Scan(ctx, &stats.ProgramsPerChannel)
	if err != nil {
		return nil, err
	}

	err = db.NewSelect().
		TableExpr("genres AS g").
		ColumnExpr("g.name AS name").
		ColumnExpr("count(pg.program_id) AS count").
		Join("JOIN program_genres AS pg ON pg.genre_id = g.id").
		GroupExpr("g.id, g.name").
		OrderExpr("count DESC").
		Limit(10).
		Scan(ctx, &stats.TopGenres)
	if err != nil {
		return nil, err
	}

	last, err := LastFetch(ctx, db)
	if err != nil {
		return nil, err
	}
	stats.LastFetch = last

	return stats, nil
}
