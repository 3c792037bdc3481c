// Package payment moves registration fees between identities.
//
// A Gateway must move exactly the requested amount on every leg or fail the
// whole call with CodeTransferFailed. Assets that skim a share of each
// transfer are refused rather than understated.
package payment

import (
	"context"
	"fmt"

	"nominal/internal/registry/fees"
	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

// Gateway settles a set of legs atomically.
type Gateway interface {
	Transfer(ctx context.Context, legs ...models.Transfer) error
}

func validateLeg(leg models.Transfer) error {
	if leg.From.IsNil() || leg.To.IsNil() {
		return dErrors.New(dErrors.CodeTransferFailed, "transfer requires both parties")
	}
	if leg.Asset.IsNil() {
		return dErrors.New(dErrors.CodeTransferFailed, "transfer requires an asset")
	}
	return nil
}

// delivered returns what arrives at the recipient when the asset skims
// skimBps of every transfer, and fails when that differs from the amount sent.
func delivered(leg models.Transfer, skimBps uint16) (domain.Amount, error) {
	if skimBps == 0 {
		return leg.Amount, nil
	}
	skim, _, err := fees.Split(leg.Amount, skimBps)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransferFailed, "invalid asset skim")
	}
	if skim != 0 {
		return 0, dErrors.New(dErrors.CodeTransferFailed,
			fmt.Sprintf("asset %s delivers %s of %s", leg.Asset, leg.Amount-skim, leg.Amount))
	}
	return leg.Amount, nil
}

func insufficient(leg models.Transfer) error {
	return dErrors.New(dErrors.CodeTransferFailed,
		fmt.Sprintf("insufficient %s balance for %s", leg.Asset, leg.From))
}
