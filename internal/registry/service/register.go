package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"nominal/internal/registry/fees"
	"nominal/internal/registry/models"
	"nominal/internal/registry/primary"
	"nominal/internal/registry/store"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
	"nominal/pkg/requestcontext"
)

// RegisterDirect registers name to caller, who pays the full fee to the
// treasury. feeProvided above the fee is not taken; the receipt reports it
// as change.
func (s *Service) RegisterDirect(ctx context.Context, caller domain.Identity, rawName string, asset domain.AssetID, feeProvided domain.Amount) (*models.Receipt, error) {
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	name, err := models.ParseName(rawName)
	if err != nil {
		return nil, err
	}

	var receipt *models.Receipt
	err = s.run(ctx, "register_direct", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		cfg, err := loadConfig(ctx, st)
		if err != nil {
			return nil, err
		}
		if err := ensureAvailable(ctx, st, name); err != nil {
			return nil, err
		}
		required, err := quote(ctx, st, cfg, asset)
		if err != nil {
			return nil, err
		}
		settlement, err := fees.Settle(required, feeProvided, 0)
		if err != nil {
			return nil, err
		}

		receipt = &models.Receipt{
			Payer:          caller,
			Asset:          settlementAsset(cfg, asset),
			Total:          settlement.Total,
			TreasuryAmount: settlement.Treasury,
			Change:         settlement.Change,
		}
		return s.commitRegistration(ctx, st, cfg, name, caller, receipt, now)
	}, attribute.String("name", name.String()))
	if err != nil {
		return nil, err
	}

	s.registered(ctx, "direct", receipt)
	return receipt, nil
}

// RegisterSponsored registers req.Name to req.Owner on the strength of the
// owner's signature. caller is the sponsor: it pays the fee and receives the
// referrer share and any change.
func (s *Service) RegisterSponsored(ctx context.Context, caller domain.Identity, req models.SponsoredRequest, sig []byte, feeProvided domain.Amount) (*models.Receipt, error) {
	if !models.ValidName(string(req.Name)) {
		return nil, dErrors.New(dErrors.CodeInvalidName, "name must be 3-63 characters of a-z, 0-9 and single inner hyphens")
	}
	if req.Owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner is required")
	}

	var receipt *models.Receipt
	err := s.run(ctx, "register_sponsored", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		cfg, err := loadConfig(ctx, st)
		if err != nil {
			return nil, err
		}
		if err := ensureAvailable(ctx, st, req.Name); err != nil {
			return nil, err
		}
		required, err := s.guard.Authorize(ctx, st, cfg, caller, req, sig, now)
		if err != nil {
			return nil, err
		}
		settlement, err := fees.Settle(required, feeProvided, cfg.ReferrerBps)
		if err != nil {
			return nil, err
		}

		receipt = &models.Receipt{
			Payer:          caller,
			Asset:          settlementAsset(cfg, req.Asset),
			Total:          settlement.Total,
			Referrer:       caller,
			ReferrerAmount: settlement.Referrer,
			TreasuryAmount: settlement.Treasury,
			Change:         settlement.Change,
		}
		return s.commitRegistration(ctx, st, cfg, req.Name, req.Owner, receipt, now)
	},
		attribute.String("name", req.Name.String()),
		attribute.String("sponsor", caller.String()),
	)
	if err != nil {
		return nil, err
	}

	s.registered(ctx, "sponsored", receipt)
	return receipt, nil
}

// commitRegistration stages the record and primary name, then moves the
// funds. The transfer is the last effect of the transaction.
func (s *Service) commitRegistration(
	ctx context.Context,
	st store.Store,
	cfg *models.Config,
	name models.Name,
	owner domain.Identity,
	receipt *models.Receipt,
	now time.Time,
) ([]models.Event, error) {
	record := models.NewRecord(name, owner, now)
	if err := st.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeNameTaken, "name is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create record")
	}
	primarySet, err := primary.OnRegister(ctx, st, owner, name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update primary name")
	}
	receipt.Record = record
	receipt.PrimarySet = primarySet

	events := []models.Event{
		models.NameRegistered(now, name, owner, receipt.Payer, receipt.Asset, receipt.Total),
		models.FeePaid(now, name, receipt),
	}
	if primarySet {
		events = append(events, models.PrimaryNameSet(now, owner, name))
	}

	if err := s.gateway.Transfer(ctx, receipt.Legs(cfg.Treasury)...); err != nil {
		if dErrors.HasCode(err, dErrors.CodeTransferFailed) || dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransferFailed, "fee transfer failed")
	}
	return events, nil
}

func ensureAvailable(ctx context.Context, st store.Store, name models.Name) error {
	_, err := st.FindRecord(ctx, name)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeNameTaken, "name is already registered")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check name availability")
	}
}

// quote returns the fee required to register in asset.
func quote(ctx context.Context, st store.Store, cfg *models.Config, asset domain.AssetID) (domain.Amount, error) {
	var assetFee *models.AssetFee
	if !asset.IsNil() && asset != cfg.NativeAsset {
		fee, err := st.FindAssetFee(ctx, asset)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset fee")
		}
		assetFee = fee
	}
	return fees.Quote(cfg, assetFee, asset)
}

func settlementAsset(cfg *models.Config, asset domain.AssetID) domain.AssetID {
	if asset.IsNil() {
		return cfg.NativeAsset
	}
	return asset
}

func (s *Service) registered(ctx context.Context, path string, receipt *models.Receipt) {
	s.invalidate(ctx, receipt.Record.Name)
	s.metrics.IncrementRegistration(path, receipt.Asset.String())
	s.metrics.AddFees(receipt.Asset.String(), uint64(receipt.TreasuryAmount), uint64(receipt.ReferrerAmount))
	s.logger.InfoContext(ctx, "name registered",
		"request_id", requestcontext.RequestID(ctx),
		"path", path,
		"name", receipt.Record.Name.String(),
		"owner", receipt.Record.Owner.String(),
		"payer", receipt.Payer.String(),
		"asset", receipt.Asset.String(),
		"total", receipt.Total.String(),
		"primary_set", receipt.PrimarySet,
	)
}
