// Package handler is the HTTP boundary of the registry. It authenticates the
// caller, decodes requests and maps service errors onto responses; it holds
// no registry rules of its own.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/httputil"
	"nominal/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer exposes.
type Service interface {
	Initialize(ctx context.Context, caller domain.Identity, params models.InitParams) (*models.Config, error)
	RegisterDirect(ctx context.Context, caller domain.Identity, rawName string, asset domain.AssetID, feeProvided domain.Amount) (*models.Receipt, error)
	RegisterSponsored(ctx context.Context, caller domain.Identity, req models.SponsoredRequest, sig []byte, feeProvided domain.Amount) (*models.Receipt, error)
	SetResolved(ctx context.Context, caller domain.Identity, name models.Name, resolved domain.Identity) (*models.Record, error)
	TransferName(ctx context.Context, caller domain.Identity, name models.Name, newOwner domain.Identity) (*models.Record, error)
	SetPrimaryName(ctx context.Context, caller domain.Identity, rawName string) error

	SetRegistrationFee(ctx context.Context, caller domain.Identity, fee domain.Amount) error
	SetTreasury(ctx context.Context, caller domain.Identity, treasury domain.Identity) error
	SetReferrerBps(ctx context.Context, caller domain.Identity, bps uint16) error
	SetAssetFee(ctx context.Context, caller domain.Identity, fee models.AssetFee) error
	AddRelayer(ctx context.Context, caller domain.Identity, relayer domain.Identity) error
	RemoveRelayer(ctx context.Context, caller domain.Identity, relayer domain.Identity) error
	SetRequireAllowlistedRelayer(ctx context.Context, caller domain.Identity, required bool) error
	TransferAdmin(ctx context.Context, caller domain.Identity, candidate domain.Identity) error
	AcceptAdmin(ctx context.Context, caller domain.Identity) error

	AuthorizeKey(ctx context.Context, caller domain.Identity, key []byte) (string, error)
	RevokeKey(ctx context.Context, caller domain.Identity, key []byte) error

	GetRecord(ctx context.Context, name models.Name) (*models.Record, error)
	NameOf(ctx context.Context, id domain.Identity) (models.Name, bool, error)
	GetConfig(ctx context.Context) (*models.Config, error)
	GetAssetFee(ctx context.Context, asset domain.AssetID) (*models.AssetFee, error)
	QuoteFee(ctx context.Context, asset domain.AssetID) (domain.Amount, error)
	GetNonce(ctx context.Context, name models.Name) (uint64, error)
	IsRelayerAllowed(ctx context.Context, id domain.Identity) (bool, error)
	ListRelayers(ctx context.Context) ([]domain.Identity, error)
}

// Handler handles registry endpoints.
type Handler struct {
	logger   *slog.Logger
	registry Service
}

// New creates a new registry Handler.
func New(registry Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
	}
}

// Register mounts the registry routes on r. Reads are public; every write
// runs behind auth, which must set the caller on the request context.
func (h *Handler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/names/{name}", h.handleGetRecord)
		r.Get("/names/{name}/nonce", h.handleGetNonce)
		r.Get("/primary/{identity}", h.handleGetPrimary)
		r.Get("/config", h.handleGetConfig)
		r.Get("/assets/{asset}/fee", h.handleGetAssetFee)
		r.Get("/relayers", h.handleListRelayers)
		r.Get("/relayers/{identity}", h.handleGetRelayer)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/registry/initialize", h.handleInitialize)
			r.Post("/names", h.handleRegister)
			r.Post("/names/sponsored", h.handleRegisterSponsored)
			r.Put("/names/{name}/resolved", h.handleSetResolved)
			r.Put("/names/{name}/owner", h.handleTransferName)
			r.Put("/primary", h.handleSetPrimary)
			r.Put("/keys", h.handleAuthorizeKey)
			r.Delete("/keys", h.handleRevokeKey)

			r.Route("/admin", func(r chi.Router) {
				r.Put("/fee", h.handleSetFee)
				r.Put("/treasury", h.handleSetTreasury)
				r.Put("/referrer-bps", h.handleSetReferrerBps)
				r.Put("/assets/{asset}", h.handleSetAssetFee)
				r.Put("/allowlist-required", h.handleSetAllowlistRequired)
				r.Post("/relayers/{identity}", h.handleAddRelayer)
				r.Delete("/relayers/{identity}", h.handleRemoveRelayer)
				r.Post("/transfer", h.handleTransferAdmin)
				r.Post("/accept", h.handleAcceptAdmin)
			})
		})
	})
}

// caller returns the authenticated identity, writing an error when the auth
// middleware did not set one.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

// pathIdentity parses the {identity} route parameter, writing a 400 when it
// is not a valid identity.
func (h *Handler) pathIdentity(w http.ResponseWriter, r *http.Request, op string) (domain.Identity, bool) {
	id, err := parseIdentity("identity", chi.URLParam(r, "identity"))
	if err != nil {
		h.fail(w, r, op, err)
		return "", false
	}
	return id, true
}

// pathAsset parses the {asset} route parameter.
func (h *Handler) pathAsset(w http.ResponseWriter, r *http.Request, op string) (domain.AssetID, bool) {
	asset, err := parseOptionalAsset("asset", chi.URLParam(r, "asset"))
	if err == nil && asset.IsNil() {
		err = dErrors.New(dErrors.CodeValidation, "asset is required")
	}
	if err != nil {
		h.fail(w, r, op, err)
		return "", false
	}
	return asset, true
}

// fail logs err at a level matching its kind and writes the error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"error", err,
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, "registry operation failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "registry operation rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func decode[T any, PT interface {
	*T
	httputil.Validatable
}](h *Handler, w http.ResponseWriter, r *http.Request) (*T, bool) {
	ctx := r.Context()
	return httputil.DecodeAndPrepare[T, PT](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
}
