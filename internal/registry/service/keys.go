package service

import (
	"context"
	"errors"
	"time"

	"nominal/internal/registry/models"
	"nominal/internal/registry/signing"
	"nominal/internal/registry/store"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
)

// AuthorizeKey lets key sign sponsored requests for caller. It returns the
// key's fingerprint.
func (s *Service) AuthorizeKey(ctx context.Context, caller domain.Identity, key []byte) (string, error) {
	if caller.IsNil() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	parsed, err := signing.ParsePublicKey(s.keyScheme, key)
	if err != nil {
		return "", err
	}
	fingerprint := signing.Fingerprint(parsed)
	err = s.run(ctx, "authorize_key", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		if err := st.AddAuthorizedKey(ctx, caller, parsed); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to authorize key")
		}
		return []models.Event{models.KeyAuthorized(now, caller, fingerprint)}, nil
	})
	if err != nil {
		return "", err
	}
	return fingerprint, nil
}

// RevokeKey withdraws a key from caller's directory.
func (s *Service) RevokeKey(ctx context.Context, caller domain.Identity, key []byte) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	fingerprint := signing.Fingerprint(key)
	return s.run(ctx, "revoke_key", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		if err := st.RemoveAuthorizedKey(ctx, caller, key); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "key is not authorized for caller")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke key")
		}
		return []models.Event{models.KeyRevoked(now, caller, fingerprint)}, nil
	})
}
