package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"telkatv/internal/models"
)

// UpsertChannel inserts or refreshes a channel row. The active flag is
// only set on first insert so a deactivated channel stays deactivated
// across directory refreshes.
func UpsertChannel(ctx context.Context, db bun.IDB, ch *models.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	_, err := db.NewInsert().
		Model(ch).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("logo_url = EXCLUDED.logo_url").
		Set("category = EXCLUDED.category").
		Set("show_order = EXCLUDED.show_order").
		Set("last_updated = CURRENT_TIMESTAMP").
		Exec(ctx)
	return err
}

// GetChannels returns channels ordered by id, optionally only active ones.
func GetChannels(ctx context.Context, db bun.IDB, activeOnly bool) ([]*models.Channel, error) {
	var channels []*models.Channel
	q := db.NewSelect().Model(&channels).Order("id")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return channels, nil
}

// DeactivateChannel marks a channel inactive. Channel rows are never
// hard-deleted; programs keep a valid owner forever.
func DeactivateChannel(ctx context.Context, db bun.IDB, channelID int64) error {
	_, err := db.NewUpdate().
		Model((*models.Channel)(nil)).
		Set("active = ?", false).
		Set("last_updated = CURRENT_TIMESTAMP").
		Where("id = ?", channelID).
		Exec(ctx)
	return err
}
