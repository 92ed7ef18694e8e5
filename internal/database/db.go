package database

import (
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"telkatv/internal/models"
)

// NewDB opens a SQLite database with sane defaults and optional debug logging.
func NewDB(dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	// The collector is the only writer and runs sequentially; a single
	// connection keeps the pragmas below applied to every statement.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// Join models must be registered before any m2m relation is queried.
	db.RegisterModel((*models.ProgramGenre)(nil), (*models.ProgramPerson)(nil))

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	// Apply recommended pragmas for write-ahead logging and performance.
	// foreign_keys must be on for retention purges to cascade into the
	// program_genres and program_people join tables.
	if _, err := db.Exec(`
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA foreign_keys = ON;
        PRAGMA busy_timeout = 5000;
    `); err != nil {
		return nil, err
	}

	return db, nil
}
