package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"telkatv/internal/models"
)

// InsertProgram persists one normalized program with its genre and
// people links inside a single transaction. The fact row is keyed by
// external ID: an already-stored program is a no-op reported as
// stored=false, never an error, which is what makes re-running the same
// channel/date fetch safe. Genres and people are get-or-create by exact
// name; link rows use idempotent union inserts. Any failure rolls the
// whole unit back so a fact row can never end up without its links.
func InsertProgram(ctx context.Context, db *bun.DB, p *models.Program, genres []string, people []models.Credit) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	stored := false
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(p).
			On("CONFLICT (external_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert program: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		stored = affected > 0

		// Resolve the surviving row id in both branches; LastInsertId
		// is unreliable after a no-op conflict.
		if err := tx.NewSelect().
			Model((*models.Program)(nil)).
			Column("id").
			Where("external_id = ?", p.ExternalID).
			Scan(ctx, &p.ID); err != nil {
			return fmt.Errorf("resolve program id: %w", err)
		}

		for _, name := range genres {
			genreID, err := getOrCreateGenre(ctx, tx, name)
			if err != nil {
				return fmt.Errorf("genre %q: %w", name, err)
			}
			link := &models.ProgramGenre{ProgramID: p.ID, GenreID: genreID}
			if _, err := tx.NewInsert().Model(link).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("link genre %q: %w", name, err)
			}
		}

		for _, credit := range people {
			if credit.Name == "" {
				continue
			}
			role := credit.Role
			if role == "" {
				role = models.RoleActor
			}
			personID, err := getOrCreatePerson(ctx, tx, credit.Name)
			if err != nil {
				return fmt.Errorf("person %q: %w", credit.Name, err)
			}
			link := &models.ProgramPerson{ProgramID: p.ID, PersonID: personID, Role: role}
			if _, err := tx.NewInsert().Model(link).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("link person %q: %w", credit.Name, err)
			}
		}

		return nil
	})
	return stored, err
}

// getOrCreateGenre resolves a genre name to its row id, inserting only
// when absent. Name matching is case-sensitive exact.
func getOrCreateGenre(ctx context.Context, tx bun.Tx, name string) (int64, error) {
	g := &models.Genre{Name: name}
	if _, err := tx.NewInsert().Model(g).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
		return 0, err
	}

	var id int64
	err := tx.NewSelect().
		Model((*models.Genre)(nil)).
		Column("id").
		Where("name = ?", name).
		Scan(ctx, &id)
	return id, err
}

// getOrCreatePerson resolves a person name to its row id, inserting
// only when absent.
func getOrCreatePerson(ctx context.Context, tx bun.Tx, name string) (int64, error) {
	p := &models.Person{Name: name}
	if _, err := tx.NewInsert().Model(p).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
		return 0, err
	}

	var id int64
	err := tx.NewSelect().
		Model((*models.Person)(nil)).
		Column("id").
		Where("name = ?", name).
		Scan(ctx, &id)
	return id, err
}
