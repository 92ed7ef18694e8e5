package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"telkatv/internal/models"
)

// CleanupOldPrograms deletes programs whose start date precedes the
// cutoff. Join rows cascade with the fact rows; genre and person lookup
// rows stay (they are shared dimensions, not owned by any program).
func CleanupOldPrograms(ctx context.Context, db *bun.DB, cutoff time.Time) (int64, error) {
	res, err := db.NewDelete().
		Model((*models.Program)(nil)).
		Where("date(start_time) < ?", cutoff.Format("2006-01-02")).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupOldFetchLogs deletes audit rows older than the cutoff. The only
// path that ever removes fetch_log rows.
func CleanupOldFetchLogs(ctx context.Context, db *bun.DB, cutoff time.Time) (int64, error) {
	res, err := db.NewDelete().
		Model((*models.FetchLog)(nil)).
		Where("date(fetched_at) < ?", cutoff.Format("2006-01-02")).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
