// Package guard authorizes sponsored registrations: a relayer submits a
// request the name's owner signed, and pays for it.
package guard

import (
	"context"
	"errors"
	"time"

	"nominal/internal/registry/fees"
	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
)

// Verifier checks that sig over digest was produced by a key belonging to
// claimed. An error means verification could not run, not that it failed.
type Verifier interface {
	Verify(ctx context.Context, claimed domain.Identity, digest, sig []byte) (bool, error)
}

// State is the registry state the guard reads and the nonce it advances.
// FindAssetFee returns sentinel.ErrNotFound for unknown assets.
type State interface {
	Nonce(ctx context.Context, name models.Name) (uint64, error)
	SetNonce(ctx context.Context, name models.Name, nonce uint64) error
	IsRelayer(ctx context.Context, id domain.Identity) (bool, error)
	FindAssetFee(ctx context.Context, asset domain.AssetID) (*models.AssetFee, error)
}

// Guard runs the sponsored-request checks in a fixed order.
type Guard struct {
	origin   string
	verifier Verifier
}

// New returns a guard for the deployment identified by origin.
func New(origin string, verifier Verifier) (*Guard, error) {
	if origin == "" {
		return nil, errors.New("origin is required")
	}
	if verifier == nil {
		return nil, errors.New("verifier is required")
	}
	return &Guard{origin: origin, verifier: verifier}, nil
}

// Origin returns the deployment identifier bound into every digest.
func (g *Guard) Origin() string {
	return g.origin
}

// Authorize checks req on behalf of caller and returns the fee the request
// commits to. The stored nonce is advanced before the signature is checked;
// callers must run Authorize inside the operation's transaction so that any
// later failure discards the advance along with everything else.
func (g *Guard) Authorize(
	ctx context.Context,
	st State,
	cfg *models.Config,
	caller domain.Identity,
	req models.SponsoredRequest,
	sig []byte,
	now time.Time,
) (domain.Amount, error) {
	if caller.IsNil() || caller != req.Sponsor {
		return 0, dErrors.New(dErrors.CodeWrongSponsor, "caller is not the sponsor named in the request")
	}

	if cfg.RequireAllowlistedRelayer {
		ok, err := st.IsRelayer(ctx, req.Sponsor)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check relayer allowlist")
		}
		if !ok {
			return 0, dErrors.New(dErrors.CodeRelayerNotAllowed, "sponsor is not an allowlisted relayer")
		}
	}

	// The digest carries whole seconds, so the check must too.
	if now.Unix() > req.Deadline.Unix() {
		return 0, dErrors.New(dErrors.CodeDeadlineExpired, "request deadline has passed")
	}

	current, err := st.Nonce(ctx, req.Name)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load nonce")
	}
	if current != req.Nonce {
		return 0, dErrors.New(dErrors.CodeBadNonce, "request nonce does not match the name's next nonce")
	}
	if err := st.SetNonce(ctx, req.Name, current+1); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance nonce")
	}

	digest := Digest(g.origin, req)
	ok, err := g.verifier.Verify(ctx, req.Owner, digest[:], sig)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify signature")
	}
	if !ok {
		return 0, dErrors.New(dErrors.CodeBadSignature, "signature does not match the request owner")
	}

	var assetFee *models.AssetFee
	if req.Asset != cfg.NativeAsset && !req.Asset.IsNil() {
		assetFee, err = st.FindAssetFee(ctx, req.Asset)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset fee")
		}
	}
	required, err := fees.Quote(cfg, assetFee, req.Asset)
	if err != nil {
		return 0, err
	}
	if req.Amount != required {
		return 0, dErrors.New(dErrors.CodeWrongFee, "signed amount does not match the registration fee")
	}
	return required, nil
}
