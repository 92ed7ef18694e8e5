package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"telkatv/internal/models"
)

func init() {
	// Migration 1: create tables
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.Channel)(nil),
			(*models.Program)(nil),
			(*models.Genre)(nil),
			(*models.Person)(nil),
			(*models.FetchLog)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		// Join tables carry their own FKs so a program purge cascades
		// into its links. Created raw because bun's model-based create
		// has no ON DELETE clause.
		joins := []string{
			`CREATE TABLE IF NOT EXISTS program_genres (
				program_id INTEGER NOT NULL,
				genre_id INTEGER NOT NULL,
				PRIMARY KEY (program_id, genre_id),
				FOREIGN KEY (program_id) REFERENCES programs(id) ON DELETE CASCADE,
				FOREIGN KEY (genre_id) REFERENCES genres(id)
			)`,
			`CREATE TABLE IF NOT EXISTS program_people (
				program_id INTEGER NOT NULL,
				person_id INTEGER NOT NULL,
				role TEXT NOT NULL DEFAULT 'actor',
				PRIMARY KEY (program_id, person_id, role),
				FOREIGN KEY (program_id) REFERENCES programs(id) ON DELETE CASCADE,
				FOREIGN KEY (person_id) REFERENCES people(id)
			)`,
		}

		for _, stmt := range joins {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, table := range []string{"program_people", "program_genres"} {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return err
			}
		}

		modelsList := []interface{}{
			(*models.FetchLog)(nil),
			(*models.Person)(nil),
			(*models.Genre)(nil),
			(*models.Program)(nil),
			(*models.Channel)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}
