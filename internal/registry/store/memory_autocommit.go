package store

import (
	"context"

	"github.com/google/uuid"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
)

// Auto-committed single-statement access for reads and for callers that
// do not need a multi-key transaction.

func (m *Memory) CreateRecord(ctx context.Context, record *models.Record) error {
	return m.write(ctx, func(v *memView) error { return v.CreateRecord(ctx, record) })
}

func (m *Memory) FindRecord(ctx context.Context, name models.Name) (out *models.Record, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.FindRecord(ctx, name)
		return err
	})
	return out, err
}

func (m *Memory) UpdateRecord(ctx context.Context, record *models.Record) error {
	return m.write(ctx, func(v *memView) error { return v.UpdateRecord(ctx, record) })
}

func (m *Memory) CreateConfig(ctx context.Context, cfg *models.Config) error {
	return m.write(ctx, func(v *memView) error { return v.CreateConfig(ctx, cfg) })
}

func (m *Memory) LoadConfig(ctx context.Context) (out *models.Config, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.LoadConfig(ctx)
		return err
	})
	return out, err
}

func (m *Memory) SaveConfig(ctx context.Context, cfg *models.Config) error {
	return m.write(ctx, func(v *memView) error { return v.SaveConfig(ctx, cfg) })
}

func (m *Memory) FindAssetFee(ctx context.Context, asset domain.AssetID) (out *models.AssetFee, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.FindAssetFee(ctx, asset)
		return err
	})
	return out, err
}

func (m *Memory) SaveAssetFee(ctx context.Context, fee models.AssetFee) error {
	return m.write(ctx, func(v *memView) error { return v.SaveAssetFee(ctx, fee) })
}

func (m *Memory) Nonce(ctx context.Context, name models.Name) (out uint64, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.Nonce(ctx, name)
		return err
	})
	return out, err
}

func (m *Memory) SetNonce(ctx context.Context, name models.Name, nonce uint64) error {
	return m.write(ctx, func(v *memView) error { return v.SetNonce(ctx, name, nonce) })
}

func (m *Memory) IsRelayer(ctx context.Context, id domain.Identity) (out bool, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.IsRelayer(ctx, id)
		return err
	})
	return out, err
}

func (m *Memory) AddRelayer(ctx context.Context, id domain.Identity) error {
	return m.write(ctx, func(v *memView) error { return v.AddRelayer(ctx, id) })
}

func (m *Memory) RemoveRelayer(ctx context.Context, id domain.Identity) error {
	return m.write(ctx, func(v *memView) error { return v.RemoveRelayer(ctx, id) })
}

func (m *Memory) ListRelayers(ctx context.Context) (out []domain.Identity, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.ListRelayers(ctx)
		return err
	})
	return out, err
}

func (m *Memory) PrimaryName(ctx context.Context, id domain.Identity) (out models.Name, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.PrimaryName(ctx, id)
		return err
	})
	return out, err
}

func (m *Memory) SetPrimaryName(ctx context.Context, id domain.Identity, name models.Name) error {
	return m.write(ctx, func(v *memView) error { return v.SetPrimaryName(ctx, id, name) })
}

func (m *Memory) ClearPrimaryName(ctx context.Context, id domain.Identity) error {
	return m.write(ctx, func(v *memView) error { return v.ClearPrimaryName(ctx, id) })
}

func (m *Memory) AuthorizedKeys(ctx context.Context, id domain.Identity) (out [][]byte, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.AuthorizedKeys(ctx, id)
		return err
	})
	return out, err
}

func (m *Memory) AddAuthorizedKey(ctx context.Context, id domain.Identity, key []byte) error {
	return m.write(ctx, func(v *memView) error { return v.AddAuthorizedKey(ctx, id, key) })
}

func (m *Memory) RemoveAuthorizedKey(ctx context.Context, id domain.Identity, key []byte) error {
	return m.write(ctx, func(v *memView) error { return v.RemoveAuthorizedKey(ctx, id, key) })
}

func (m *Memory) AppendEvents(ctx context.Context, events ...models.Event) error {
	return m.write(ctx, func(v *memView) error { return v.AppendEvents(ctx, events...) })
}

func (m *Memory) PendingEvents(ctx context.Context, limit int) (out []models.Event, err error) {
	err = m.read(ctx, func(v *memView) error {
		out, err = v.PendingEvents(ctx, limit)
		return err
	})
	return out, err
}

func (m *Memory) MarkPublished(ctx context.Context, ids ...uuid.UUID) error {
	return m.write(ctx, func(v *memView) error { return v.MarkPublished(ctx, ids...) })
}
