package domain

import dErrors "nominal/pkg/domain-errors"

// AssetID identifies the asset a fee is paid in. Each deployment names one
// native asset (see registry config); every other asset needs an enabled
// asset fee entry before it can pay for a registration.
type AssetID string

// ParseAssetID validates an asset identifier from external input.
func ParseAssetID(s string) (AssetID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset cannot be empty")
	}
	if len(s) > maxIdentityLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset is too long")
	}
	if !validChars(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset contains invalid characters")
	}
	return AssetID(s), nil
}

func (a AssetID) String() string {
	return string(a)
}

// IsNil reports whether no asset was given.
func (a AssetID) IsNil() bool {
	return a == ""
}
