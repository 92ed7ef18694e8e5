package models

import (
	"errors"

	"github.com/uptrace/bun"
)

// Channel is a broadcast channel known to the upstream schedule API.
// The primary key is the upstream channel ID, not a surrogate, so the
// same channel always maps to the same row across refreshes.
type Channel struct {
	bun.BaseModel `bun:"table:channels,alias:c"`

	ID          int64     `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	LogoURL     *string   `bun:"logo_url" json:"logo_url,omitempty"`
	Category    *string   `bun:"category" json:"category,omitempty"`
	ShowOrder   int       `bun:"show_order,default:0" json:"show_order"`
	Active      bool      `bun:"active,notnull,default:true" json:"active"`
	LastUpdated string    `bun:"last_updated,nullzero,notnull,default:current_timestamp" json:"last_updated"`

	Programs []*Program `bun:"rel:has-many,join:id=channel_id" json:"-"`
}

// Validate checks that required channel fields are present.
func (c *Channel) Validate() error {
	if c.ID <= 0 {
		return errors.New("channel id must be positive")
	}
	if c.Name == "" {
		return errors.New("channel name is required")
	}
	return nil
}
