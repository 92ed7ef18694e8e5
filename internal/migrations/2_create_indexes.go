package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	// Migration 2: indexes
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_programs_channel_date ON programs(channel_id, start_time)",
			"CREATE INDEX IF NOT EXISTS idx_programs_start_time ON programs(start_time)",
			"CREATE INDEX IF NOT EXISTS idx_programs_title ON programs(title)",
			"CREATE INDEX IF NOT EXISTS idx_fetch_log_date ON fetch_log(date, channel_id)",
			"CREATE INDEX IF NOT EXISTS idx_program_genres_program ON program_genres(program_id)",
			"CREATE INDEX IF NOT EXISTS idx_program_people_program ON program_people(program_id)",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS idx_programs_channel_date",
			"DROP INDEX IF EXISTS idx_programs_start_time",
			"DROP INDEX IF EXISTS idx_programs_title",
			"DROP INDEX IF EXISTS idx_fetch_log_date",
			"DROP INDEX IF EXISTS idx_program_genres_program",
			"DROP INDEX IF EXISTS idx_program_people_program",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	})
}
