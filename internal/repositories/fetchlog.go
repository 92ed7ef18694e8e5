package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"telkatv/internal/models"
)

// LogFetch appends one audit row for a fetch attempt. The log is
// append-only; nothing ever updates these rows.
func LogFetch(ctx context.Context, db bun.IDB, entry *models.FetchLog) error {
	_, err := db.NewInsert().Model(entry).Exec(ctx)
	return err
}

// LastFetch returns the most recent audit row, or nil when the log is empty.
func LastFetch(ctx context.Context, db bun.IDB) (*models.FetchLog, error) {
	entry := new(models.FetchLog)
	err := db.NewSelect().
		Model(entry).
		OrderExpr("fetched_at DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// FetchHistory returns audit rows for one channel/date pair, newest first.
func FetchHistory(ctx context.Context, db bun.IDB, channelID int64, date string) ([]*models.FetchLog, error) {
	var entries []*models.FetchLog
	err := db.NewSelect().
		Model(&entries).
		Where("channel_id = ?", channelID).
		Where("date = ?", date).
		OrderExpr("fetched_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
