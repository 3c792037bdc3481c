package domain

import (
	"strings"
	"unicode"

	dErrors "nominal/pkg/domain-errors"
)

// maxIdentityLen bounds identities accepted at trust boundaries. Account
// names, hex public keys and prefixed key encodings all fit comfortably.
const maxIdentityLen = 128

// Identity names a party that can own names, pay fees or sign requests.
// The zero value is the null identity.
//
// Usage: construct via ParseIdentity at trust boundaries; direct casting
// bypasses validation.
type Identity string

// ParseIdentity validates an identity from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, too long, or
// contains whitespace or control characters.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	if len(s) > maxIdentityLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity is too long")
	}
	if !validChars(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity contains invalid characters")
	}
	return Identity(s), nil
}

// validChars rejects whitespace, control characters and invalid UTF-8.
func validChars(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == unicode.ReplacementChar
	}) < 0
}

// IsNil reports whether the identity is the null identity.
func (i Identity) IsNil() bool {
	return i == ""
}

func (i Identity) String() string {
	return string(i)
}
