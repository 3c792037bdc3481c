package main

import (
	"context"
	"fmt"
	"log/slog"

	"nominal/internal/platform/config"
	"nominal/internal/registry/models"
	"nominal/internal/registry/service"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

// applySeed brings a fresh deployment to a usable state. It is safe to run
// on every start: initialization is skipped once done, and the other
// sections are idempotent admin updates. Balances are credited each time,
// so seed them only into the in-memory ledger.
func applySeed(ctx context.Context, svc *service.Service, credit creditFunc, seed *config.Seed, log *slog.Logger) error {
	if seed.Registry != nil {
		if err := seedRegistry(ctx, svc, seed.Registry, log); err != nil {
			return err
		}
	}

	if len(seed.AssetFees) > 0 || len(seed.Relayers) > 0 {
		cfg, err := svc.GetConfig(ctx)
		if err != nil {
			return fmt.Errorf("seed requires an initialized registry: %w", err)
		}
		for _, f := range seed.AssetFees {
			amount, err := domain.ParseAmount(f.Amount)
			if err != nil {
				return fmt.Errorf("seed asset fee %s: %w", f.Asset, err)
			}
			fee := models.AssetFee{Asset: domain.AssetID(f.Asset), Amount: amount, Enabled: f.Enabled}
			if err := svc.SetAssetFee(ctx, cfg.Admin, fee); err != nil {
				return fmt.Errorf("seed asset fee %s: %w", f.Asset, err)
			}
		}
		for _, relayer := range seed.Relayers {
			if err := svc.AddRelayer(ctx, cfg.Admin, domain.Identity(relayer)); err != nil {
				return fmt.Errorf("seed relayer %s: %w", relayer, err)
			}
		}
	}

	for _, b := range seed.Balances {
		amount, err := domain.ParseAmount(b.Amount)
		if err != nil {
			return fmt.Errorf("seed balance %s: %w", b.Identity, err)
		}
		if err := credit(ctx, domain.Identity(b.Identity), domain.AssetID(b.Asset), amount); err != nil {
			return fmt.Errorf("seed balance %s: %w", b.Identity, err)
		}
	}

	log.Info("seed applied",
		"asset_fees", len(seed.AssetFees),
		"relayers", len(seed.Relayers),
		"balances", len(seed.Balances),
	)
	return nil
}

func seedRegistry(ctx context.Context, svc *service.Service, r *config.SeedRegistry, log *slog.Logger) error {
	fee, err := domain.ParseAmount(r.RegistrationFee)
	if err != nil {
		return fmt.Errorf("seed registration fee: %w", err)
	}
	_, err = svc.Initialize(ctx, domain.Identity(r.Admin), models.InitParams{
		Treasury:                  domain.Identity(r.Treasury),
		RegistrationFee:           fee,
		ReferrerBps:               r.ReferrerBps,
		RequireAllowlistedRelayer: r.RequireAllowlistedRelayer,
		NativeAsset:               domain.AssetID(r.NativeAsset),
	})
	switch {
	case err == nil:
		log.Info("registry initialized from seed", "admin", r.Admin)
		return nil
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return nil
	default:
		return fmt.Errorf("seed registry: %w", err)
	}
}
