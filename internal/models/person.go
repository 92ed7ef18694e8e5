package models

import "github.com/uptrace/bun"

// Role tags a person's involvement in a program.
type Role string

const (
	RoleActor    Role = "actor"
	RoleDirector Role = "director"
	RoleWriter   Role = "writer"
)

// Person is a deduplicated lookup entity keyed by exact name.
type Person struct {
	bun.BaseModel `bun:"table:people,alias:pe"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,unique,notnull" json:"name"`
}

// Credit is a person plus the role they have on a program. Raw records
// carry credits; the store resolves them to person rows and link rows.
type Credit struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// ProgramPerson links programs to people with a role (many-to-many).
type ProgramPerson struct {
	bun.BaseModel `bun:"table:program_people,alias:pp"`

	ProgramID int64    `bun:"program_id,pk" json:"program_id"`
	PersonID  int64    `bun:"person_id,pk" json:"person_id"`
	Role      Role     `bun:"role,pk" json:"role"`
	Program   *Program `bun:"rel:belongs-to,join:program_id=id" json:"-"`
	Person    *Person  `bun:"rel:belongs-to,join:person_id=id" json:"-"`
}
