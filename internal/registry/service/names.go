package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"nominal/internal/registry/models"
	"nominal/internal/registry/primary"
	"nominal/internal/registry/store"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/requestcontext"
)

// ownedRecord loads name and requires caller to own it.
func ownedRecord(ctx context.Context, st store.Store, name models.Name, caller domain.Identity) (*models.Record, error) {
	record, err := findRecord(ctx, st, name)
	if err != nil {
		return nil, err
	}
	if !record.IsOwnedBy(caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller does not own this name")
	}
	return record, nil
}

// SetResolved points name at resolved. The null identity clears resolution.
func (s *Service) SetResolved(ctx context.Context, caller domain.Identity, name models.Name, resolved domain.Identity) (*models.Record, error) {
	var out *models.Record
	err := s.run(ctx, "set_resolved", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		record, err := ownedRecord(ctx, st, name, caller)
		if err != nil {
			return nil, err
		}
		record.Resolved = resolved
		record.UpdatedAt = now
		if err := st.UpdateRecord(ctx, record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update record")
		}
		out = record
		return []models.Event{models.ResolvedUpdated(now, name, resolved)}, nil
	}, attribute.String("name", name.String()))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, name)
	s.logger.InfoContext(ctx, "resolved target updated",
		"request_id", requestcontext.RequestID(ctx),
		"name", name.String(),
		"resolved", resolved.String(),
	)
	return out, nil
}

// TransferName hands name to newOwner. The previous owner loses it as a
// primary name; newOwner gains it only if they have none.
func (s *Service) TransferName(ctx context.Context, caller domain.Identity, name models.Name, newOwner domain.Identity) (*models.Record, error) {
	if newOwner.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "new owner is required")
	}

	var out *models.Record
	err := s.run(ctx, "transfer_name", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		record, err := ownedRecord(ctx, st, name, caller)
		if err != nil {
			return nil, err
		}
		previous := record.Owner
		record.Owner = newOwner
		record.UpdatedAt = now
		if err := st.UpdateRecord(ctx, record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update record")
		}
		primarySet, err := primary.OnTransfer(ctx, st, name, previous, newOwner)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update primary names")
		}
		out = record

		events := []models.Event{models.NameTransferred(now, name, previous, newOwner)}
		if primarySet {
			events = append(events, models.PrimaryNameSet(now, newOwner, name))
		}
		return events, nil
	}, attribute.String("name", name.String()))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, name)
	s.logger.InfoContext(ctx, "name transferred",
		"request_id", requestcontext.RequestID(ctx),
		"name", name.String(),
		"from", caller.String(),
		"to", newOwner.String(),
	)
	return out, nil
}

// SetPrimaryName makes rawName caller's primary name, replacing any other.
func (s *Service) SetPrimaryName(ctx context.Context, caller domain.Identity, rawName string) error {
	name, err := models.ParseName(rawName)
	if err != nil {
		return err
	}
	return s.run(ctx, "set_primary_name", func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error) {
		if _, err := ownedRecord(ctx, st, name, caller); err != nil {
			return nil, err
		}
		if err := primary.Set(ctx, st, caller, name); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to set primary name")
		}
		return []models.Event{models.PrimaryNameSet(now, caller, name)}, nil
	}, attribute.String("name", name.String()))
}
