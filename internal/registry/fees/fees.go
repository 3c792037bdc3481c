// Package fees computes what a registration costs and how the fee is split
// between the treasury and an optional referrer.
package fees

import (
	"math/bits"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

// Split divides total into the referrer share floor(total*bps/10000) and the
// treasury remainder. Truncation always favors the treasury.
func Split(total domain.Amount, bps uint16) (referrer, treasury domain.Amount, err error) {
	if err := models.ValidateBps(bps); err != nil {
		return 0, 0, err
	}
	hi, lo := bits.Mul64(uint64(total), uint64(bps))
	// hi < MaxBps because bps <= MaxBps, so Div64 cannot panic.
	quo, _ := bits.Div64(hi, lo, models.MaxBps)
	referrer = domain.Amount(quo)
	return referrer, total - referrer, nil
}

// Quote returns the required registration fee in asset. The native asset
// costs the configured registration fee; any other asset needs an enabled
// asset fee. assetFee may be nil when none is stored.
func Quote(cfg *models.Config, assetFee *models.AssetFee, asset domain.AssetID) (domain.Amount, error) {
	if asset.IsNil() || asset == cfg.NativeAsset {
		return cfg.RegistrationFee, nil
	}
	if assetFee == nil || !assetFee.Enabled || assetFee.Asset != asset {
		return 0, dErrors.New(dErrors.CodeAssetNotAllowed, "asset is not enabled for registration")
	}
	return assetFee.Amount, nil
}

// Settlement is the outcome of charging a registration.
type Settlement struct {
	Total    domain.Amount
	Referrer domain.Amount
	Treasury domain.Amount
	Change   domain.Amount
}

// Settle charges required out of provided and splits it at bps. Direct
// registrations pass bps 0. Underpayment fails with WrongFee; overpayment is
// never taken and comes back as Change.
func Settle(required, provided domain.Amount, bps uint16) (Settlement, error) {
	if provided < required {
		return Settlement{}, dErrors.New(dErrors.CodeWrongFee, "fee provided is below the registration fee")
	}
	ref, treasury, err := Split(required, bps)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{
		Total:    required,
		Referrer: ref,
		Treasury: treasury,
		Change:   provided - required,
	}, nil
}
