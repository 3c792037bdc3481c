package models

import (
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

// MaxBps is 100% expressed in basis points.
const MaxBps = 10_000

// Config is the registry singleton. Only the admin mutates it.
type Config struct {
	Admin                     domain.Identity `json:"admin"`
	PendingAdmin              domain.Identity `json:"pending_admin,omitempty"`
	Treasury                  domain.Identity `json:"treasury"`
	RegistrationFee           domain.Amount   `json:"registration_fee"`
	ReferrerBps               uint16          `json:"referrer_bps"`
	RequireAllowlistedRelayer bool            `json:"require_allowlisted_relayer"`
	NativeAsset               domain.AssetID  `json:"native_asset"`
}

// IsAdmin reports whether id is the current admin.
func (c *Config) IsAdmin(id domain.Identity) bool {
	return c != nil && !id.IsNil() && c.Admin == id
}

// InitParams carries the one-time initialization values.
type InitParams struct {
	Treasury                  domain.Identity
	RegistrationFee           domain.Amount
	ReferrerBps               uint16
	RequireAllowlistedRelayer bool
	NativeAsset               domain.AssetID
}

// Validate checks the config invariants that initialization must satisfy.
func (p InitParams) Validate() error {
	if err := ValidateBps(p.ReferrerBps); err != nil {
		return err
	}
	if err := ValidateTreasury(p.Treasury); err != nil {
		return err
	}
	if p.NativeAsset.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "native asset is required")
	}
	return nil
}

// ValidateBps enforces bps <= 10000.
func ValidateBps(bps uint16) error {
	if bps > MaxBps {
		return dErrors.New(dErrors.CodeInvalidBps, "referrer bps must not exceed 10000")
	}
	return nil
}

// ValidateTreasury rejects the null identity.
func ValidateTreasury(id domain.Identity) error {
	if id.IsNil() {
		return dErrors.New(dErrors.CodeZeroTreasury, "treasury cannot be the null identity")
	}
	return nil
}

// AssetFee governs registration paid in a non-native asset.
type AssetFee struct {
	Asset   domain.AssetID `json:"asset"`
	Amount  domain.Amount  `json:"amount"`
	Enabled bool           `json:"enabled"`
}
