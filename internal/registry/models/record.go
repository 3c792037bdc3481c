package models

import (
	"time"

	"nominal/pkg/domain"
)

// Record is the registry entry for one name. Records are never deleted.
type Record struct {
	Name      Name            `json:"name"`
	Owner     domain.Identity `json:"owner"`
	Resolved  domain.Identity `json:"resolved,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewRecord creates the record for a fresh registration. The name resolves
// to its owner until changed.
func NewRecord(name Name, owner domain.Identity, now time.Time) *Record {
	return &Record{
		Name:      name,
		Owner:     owner,
		Resolved:  owner,
		UpdatedAt: now,
	}
}

// IsOwnedBy reports whether id currently owns the record.
func (r *Record) IsOwnedBy(id domain.Identity) bool {
	return r != nil && !id.IsNil() && r.Owner == id
}
