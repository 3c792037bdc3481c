package service

import (
	"context"
	"errors"

	"nominal/internal/registry/models"
	"nominal/internal/registry/primary"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
	"nominal/pkg/requestcontext"
)

// GetRecord returns the record for name, from the cache when possible.
func (s *Service) GetRecord(ctx context.Context, name models.Name) (*models.Record, error) {
	if s.cache != nil {
		record, ok, err := s.cache.Get(ctx, name)
		if err != nil {
			s.logger.WarnContext(ctx, "record cache lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		} else if ok {
			return record, nil
		}
	}

	record, err := findRecord(ctx, s.store, name)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Fill(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "record cache fill failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
	return record, nil
}

// NameOf returns id's primary name. ok is false when id has none.
func (s *Service) NameOf(ctx context.Context, id domain.Identity) (name models.Name, ok bool, err error) {
	name, ok, err = primary.NameOf(ctx, s.store, id)
	if err != nil {
		return "", false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up primary name")
	}
	return name, ok, nil
}

func (s *Service) GetConfig(ctx context.Context) (*models.Config, error) {
	return loadConfig(ctx, s.store)
}

func (s *Service) GetAssetFee(ctx context.Context, asset domain.AssetID) (*models.AssetFee, error) {
	fee, err := s.store.FindAssetFee(ctx, asset)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no fee is configured for asset")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset fee")
	}
	return fee, nil
}

// QuoteFee returns what registering in asset costs right now.
func (s *Service) QuoteFee(ctx context.Context, asset domain.AssetID) (domain.Amount, error) {
	cfg, err := loadConfig(ctx, s.store)
	if err != nil {
		return 0, err
	}
	return quote(ctx, s.store, cfg, asset)
}

// GetNonce returns the nonce the next sponsored request for name must carry.
func (s *Service) GetNonce(ctx context.Context, name models.Name) (uint64, error) {
	n, err := s.store.Nonce(ctx, name)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load nonce")
	}
	return n, nil
}

// IsRelayerAllowed reports whether id may sponsor registrations: always when
// the allowlist is not enforced, otherwise only when listed.
func (s *Service) IsRelayerAllowed(ctx context.Context, id domain.Identity) (bool, error) {
	cfg, err := loadConfig(ctx, s.store)
	if err != nil {
		return false, err
	}
	if !cfg.RequireAllowlistedRelayer {
		return true, nil
	}
	ok, err := s.store.IsRelayer(ctx, id)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check relayer allowlist")
	}
	return ok, nil
}

func (s *Service) ListRelayers(ctx context.Context) ([]domain.Identity, error) {
	relayers, err := s.store.ListRelayers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list relayers")
	}
	return relayers, nil
}
