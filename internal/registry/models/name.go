package models

import dErrors "nominal/pkg/domain-errors"

const (
	MinNameLen = 3
	MaxNameLen = 63
)

// Name is a validated registry key. Construct via ParseName.
type Name string

// ValidName reports whether s is a legal name: 3 to 63 bytes of [a-z0-9-],
// no leading or trailing hyphen and no two consecutive hyphens.
// Registration and primary-name selection both gate on this predicate.
func ValidName(s string) bool {
	if len(s) < MinNameLen || len(s) > MaxNameLen {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	prevHyphen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}
	return true
}

// ParseName validates s. Uppercase input is rejected rather than folded so
// that the stored key is exactly what the caller signed.
func ParseName(s string) (Name, error) {
	if !ValidName(s) {
		return "", dErrors.New(dErrors.CodeInvalidName, "name must be 3-63 characters of a-z, 0-9 and single inner hyphens")
	}
	return Name(s), nil
}

func (n Name) String() string {
	return string(n)
}
