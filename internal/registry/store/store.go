// Package store holds registry state: records, config, asset fees, nonces,
// the relayer allowlist, the primary-name index, authorized keys and the
// event outbox.
//
// Stores report facts with pkg/platform/sentinel errors; the service decides
// what they mean for the caller.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
)

// defaultTxTimeout bounds every registry transaction.
const defaultTxTimeout = 5 * time.Second

// Store is the full registry state surface.
type Store interface {
	// CreateRecord fails with sentinel.ErrAlreadyUsed when the name exists.
	CreateRecord(ctx context.Context, record *models.Record) error
	// FindRecord fails with sentinel.ErrNotFound when the name is unregistered.
	FindRecord(ctx context.Context, name models.Name) (*models.Record, error)
	UpdateRecord(ctx context.Context, record *models.Record) error

	// CreateConfig fails with sentinel.ErrAlreadyUsed once initialized;
	// LoadConfig fails with sentinel.ErrNotFound before that.
	CreateConfig(ctx context.Context, cfg *models.Config) error
	LoadConfig(ctx context.Context) (*models.Config, error)
	SaveConfig(ctx context.Context, cfg *models.Config) error

	FindAssetFee(ctx context.Context, asset domain.AssetID) (*models.AssetFee, error)
	SaveAssetFee(ctx context.Context, fee models.AssetFee) error

	// Nonce is 0 for names that never had a sponsored registration.
	Nonce(ctx context.Context, name models.Name) (uint64, error)
	SetNonce(ctx context.Context, name models.Name, nonce uint64) error

	IsRelayer(ctx context.Context, id domain.Identity) (bool, error)
	AddRelayer(ctx context.Context, id domain.Identity) error
	RemoveRelayer(ctx context.Context, id domain.Identity) error
	ListRelayers(ctx context.Context) ([]domain.Identity, error)

	PrimaryName(ctx context.Context, id domain.Identity) (models.Name, error)
	SetPrimaryName(ctx context.Context, id domain.Identity, name models.Name) error
	ClearPrimaryName(ctx context.Context, id domain.Identity) error

	AuthorizedKeys(ctx context.Context, id domain.Identity) ([][]byte, error)
	AddAuthorizedKey(ctx context.Context, id domain.Identity, key []byte) error
	// RemoveAuthorizedKey fails with sentinel.ErrNotFound for unknown keys.
	RemoveAuthorizedKey(ctx context.Context, id domain.Identity, key []byte) error

	AppendEvents(ctx context.Context, events ...models.Event) error
	PendingEvents(ctx context.Context, limit int) ([]models.Event, error)
	MarkPublished(ctx context.Context, ids ...uuid.UUID) error
}

// Tx runs fn atomically: either every mutation fn makes through the store
// it is handed commits, or none does. fn must use the ctx it is given.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
