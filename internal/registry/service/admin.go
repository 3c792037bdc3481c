package service

import (
	"context"
	"errors"
	"time"

	"nominal/internal/registry/models"
	"nominal/internal/registry/store"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
	"nominal/pkg/requestcontext"
)

// Initialize creates the registry config once. caller becomes admin.
func (s *Service) Initialize(ctx context.Context, caller domain.Identity, params models.InitParams) (*models.Config, error) {
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Admin:                     caller,
		Treasury:                  params.Treasury,
		RegistrationFee:           params.RegistrationFee,
		ReferrerBps:               params.ReferrerBps,
		RequireAllowlistedRelayer: params.RequireAllowlistedRelayer,
		NativeAsset:               params.NativeAsset,
	}
	err := s.run(ctx, "initialize", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		if err := st.CreateConfig(ctx, cfg); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return nil, dErrors.New(dErrors.CodeConflict, "registry is already initialized")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry config")
		}
		return []models.Event{models.RegistryInitialized(now, cfg)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "registry initialized",
		"request_id", requestcontext.RequestID(ctx),
		"admin", caller.String(),
		"treasury", cfg.Treasury.String(),
	)
	return cfg, nil
}

// adminFunc mutates cfg (saved afterwards) and may stage other effects.
type adminFunc func(ctx context.Context, st store.Store, cfg *models.Config, now time.Time) ([]models.Event, error)

// admin runs fn for the current admin only and saves the config it leaves.
func (s *Service) admin(ctx context.Context, op string, caller domain.Identity, fn adminFunc) error {
	err := s.run(ctx, op, func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		cfg, err := loadConfig(ctx, st)
		if err != nil {
			return nil, err
		}
		if !cfg.IsAdmin(caller) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not the registry admin")
		}
		events, err := fn(ctx, st, cfg, now)
		if err != nil {
			return nil, err
		}
		if err := st.SaveConfig(ctx, cfg); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registry config")
		}
		return events, nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "registry admin change",
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"admin", caller.String(),
	)
	return nil
}

func (s *Service) SetRegistrationFee(ctx context.Context, caller domain.Identity, fee domain.Amount) error {
	return s.admin(ctx, "set_registration_fee", caller, func(_ context.Context, _ store.Store, cfg *models.Config, now time.Time) ([]models.Event, error) {
		cfg.RegistrationFee = fee
		return []models.Event{models.RegistrationFeeSet(now, fee)}, nil
	})
}

func (s *Service) SetTreasury(ctx context.Context, caller domain.Identity, treasury domain.Identity) error {
	return s.admin(ctx, "set_treasury", caller, func(_ context.Context, _ store.Store, cfg *models.Config, now time.Time) ([]models.Event, error) {
		if err := models.ValidateTreasury(treasury); err != nil {
			return nil, err
		}
		cfg.Treasury = treasury
		return []models.Event{models.TreasurySet(now, treasury)}, nil
	})
}

func (s *Service) SetReferrerBps(ctx context.Context, caller domain.Identity, bps uint16) error {
	return s.admin(ctx, "set_referrer_bps", caller, func(_ context.Context, _ store.Store, cfg *models.Config, now time.Time) ([]models.Event, error) {
		if err := models.ValidateBps(bps); err != nil {
			return nil, err
		}
		cfg.ReferrerBps = bps
		return []models.Event{models.ReferrerBpsSet(now, bps)}, nil
	})
}

// SetAssetFee enables, disables or reprices registration in a non-native
// asset.
func (s *Service) SetAssetFee(ctx context.Context, caller domain.Identity, fee models.AssetFee) error {
	return s.admin(ctx, "set_asset_fee", caller, func(ctx context.Context, st store.Store, cfg *models.Config, now time.Time) ([]models.Event, error) {
		if fee.Asset.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "asset is required")
		}
		if fee.Asset == cfg.NativeAsset {
			return nil, dErrors.New(dErrors.CodeValidation, "native asset is priced by the registration fee")
		}
		if err := st.SaveAssetFee(ctx, fee); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save asset fee")
		}
		return []models.Event{models.AssetFeeSet(now, fee)}, nil
	})
}

func (s *Service) AddRelayer(ctx context.Context, caller domain.Identity, relayer domain.Identity) error {
	return s.admin(ctx, "add_relayer", caller, func(ctx context.Context, st store.Store, _ *models.Config, now time.Time) ([]models.Event, error) {
		if relayer.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "relayer is required")
		}
		if err := st.AddRelayer(ctx, relayer); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add relayer")
		}
		return []models.Event{models.RelayerAdded(now, relayer)}, nil
	})
}

func (s *Service) RemoveRelayer(ctx context.Context, caller domain.Identity, relayer domain.Identity) error {
	return s.admin(ctx, "remove_relayer", caller, func(ctx context.Context, st store.Store, _ *models.Config, now time.Time) ([]models.Event, error) {
		if err := st.RemoveRelayer(ctx, relayer); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove relayer")
		}
		return []models.Event{models.RelayerRemoved(now, relayer)}, nil
	})
}

func (s *Service) SetRequireAllowlistedRelayer(ctx context.Context, caller domain.Identity, required bool) error {
	return s.admin(ctx, "set_allowlist_required", caller, func(_ context.Context, _ store.Store, cfg *models.Config, now time.Time) ([]models.Event, error) {
		cfg.RequireAllowlistedRelayer = required
		return []models.Event{models.AllowlistRequirementSet(now, required)}, nil
	})
}

// TransferAdmin nominates candidate. Nothing changes hands until the
// candidate accepts, so a mistyped identity cannot lock the registry.
func (s *Service) TransferAdmin(ctx context.Context, caller domain.Identity, candidate domain.Identity) error {
	return s.admin(ctx, "transfer_admin", caller, func(_ context.Context, _ store.Store, cfg *models.Config, now time.Time) ([]models.Event, error) {
		if candidate.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "candidate admin is required")
		}
		cfg.PendingAdmin = candidate
		return []models.Event{models.AdminTransferInitiated(now, cfg.Admin, candidate)}, nil
	})
}

// AcceptAdmin completes a handoff. Only the nominated candidate may call it.
func (s *Service) AcceptAdmin(ctx context.Context, caller domain.Identity) error {
	err := s.run(ctx, "accept_admin", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		cfg, err := loadConfig(ctx, st)
		if err != nil {
			return nil, err
		}
		if cfg.PendingAdmin.IsNil() || caller.IsNil() || caller != cfg.PendingAdmin {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not the pending admin")
		}
		previous := cfg.Admin
		cfg.Admin = caller
		cfg.PendingAdmin = ""
		if err := st.SaveConfig(ctx, cfg); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registry config")
		}
		return []models.Event{models.AdminTransferAccepted(now, previous, caller)}, nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "registry admin accepted",
		"request_id", requestcontext.RequestID(ctx),
		"admin", caller.String(),
	)
	return nil
}
