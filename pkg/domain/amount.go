package domain

import (
	"strconv"

	dErrors "nominal/pkg/domain-errors"
)

// Amount is a quantity of some asset in its smallest unit.
type Amount uint64

// ParseAmount parses a base-10 amount. JSON clients send amounts as strings
// so that values above 2^53 survive.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount must be a non-negative integer")
	}
	return Amount(v), nil
}

func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}
