package models

import (
	"time"

	"nominal/pkg/domain"
)

// SponsoredRequest is the payload an owner signs so that a sponsor can
// register a name on their behalf and pay for it.
type SponsoredRequest struct {
	Name     Name
	Owner    domain.Identity
	Sponsor  domain.Identity
	Asset    domain.AssetID
	Amount   domain.Amount
	Deadline time.Time
	Nonce    uint64
}
