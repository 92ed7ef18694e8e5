package models

import "github.com/uptrace/bun"

// Genre is a deduplicated lookup entity keyed by exact name.
type Genre struct {
	bun.BaseModel `bun:"table:genres,alias:g"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,unique,notnull" json:"name"`
}

// ProgramGenre links programs to genres (many-to-many).
type ProgramGenre struct {
	bun.BaseModel `bun:"table:program_genres,alias:pg"`

	ProgramID int64    `bun:"program_id,pk" json:"program_id"`
	GenreID   int64    `bun:"genre_id,pk" json:"genre_id"`
	Program   *Program `bun:"rel:belongs-to,join:program_id=id" json:"-"`
	Genre     *Genre   `bun:"rel:belongs-to,join:genre_id=id" json:"-"`
}
