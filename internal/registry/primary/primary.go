// Package primary maintains the identity -> name reverse index.
//
// The index is kept consistent with ownership lazily: an entry is only
// rewritten when the name it points at is registered, transferred or
// explicitly selected.
package primary

import (
	"context"
	"errors"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	"nominal/pkg/platform/sentinel"
)

// Index is the storage the rules operate on. PrimaryName returns
// sentinel.ErrNotFound when the identity has no primary name.
type Index interface {
	PrimaryName(ctx context.Context, id domain.Identity) (models.Name, error)
	SetPrimaryName(ctx context.Context, id domain.Identity, name models.Name) error
	ClearPrimaryName(ctx context.Context, id domain.Identity) error
}

// NameOf looks up the primary name of id.
func NameOf(ctx context.Context, idx Index, id domain.Identity) (models.Name, bool, error) {
	name, err := idx.PrimaryName(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// OnRegister makes name the owner's primary if the owner has none yet.
func OnRegister(ctx context.Context, idx Index, owner domain.Identity, name models.Name) (bool, error) {
	return setIfAbsent(ctx, idx, owner, name)
}

// OnTransfer moves name from one owner to another. The previous owner loses
// it as primary; the new owner gains it only if they have no primary yet.
func OnTransfer(ctx context.Context, idx Index, name models.Name, from, to domain.Identity) (bool, error) {
	current, ok, err := NameOf(ctx, idx, from)
	if err != nil {
		return false, err
	}
	if ok && current == name {
		if err := idx.ClearPrimaryName(ctx, from); err != nil {
			return false, err
		}
	}
	return setIfAbsent(ctx, idx, to, name)
}

// Set overwrites the primary name of id. Ownership is checked by the caller.
func Set(ctx context.Context, idx Index, id domain.Identity, name models.Name) error {
	return idx.SetPrimaryName(ctx, id, name)
}

func setIfAbsent(ctx context.Context, idx Index, id domain.Identity, name models.Name) (bool, error) {
	_, ok, err := NameOf(ctx, idx, id)
	if err != nil || ok {
		return false, err
	}
	if err := idx.SetPrimaryName(ctx, id, name); err != nil {
		return false, err
	}
	return true, nil
}
