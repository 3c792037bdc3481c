package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nominal/internal/registry/models"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/httputil"
)

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.registry.GetRecord(r.Context(), models.Name(chi.URLParam(r, "name")))
	if err != nil {
		h.fail(w, r, "get_record", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	name := models.Name(chi.URLParam(r, "name"))
	nonce, err := h.registry.GetNonce(r.Context(), name)
	if err != nil {
		h.fail(w, r, "get_nonce", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NonceResponse{Name: name.String(), Nonce: nonce})
}

func (h *Handler) handleGetPrimary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathIdentity(w, r, "name_of")
	if !ok {
		return
	}
	name, found, err := h.registry.NameOf(r.Context(), id)
	if err != nil {
		h.fail(w, r, "name_of", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PrimaryResponse{Identity: id.String(), Name: name.String(), Found: found})
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.registry.GetConfig(r.Context())
	if err != nil {
		h.fail(w, r, "get_config", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConfigResponse(cfg))
}

// handleGetAssetFee reports the configured fee for asset. The native asset
// has no per-asset entry; its quote is the registration fee.
func (h *Handler) handleGetAssetFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asset, ok := h.pathAsset(w, r, "get_asset_fee")
	if !ok {
		return
	}

	fee, err := h.registry.GetAssetFee(ctx, asset)
	switch {
	case err == nil:
		resp := AssetFeeResponse{Asset: asset.String(), Amount: fee.Amount.String(), Enabled: fee.Enabled}
		if fee.Enabled {
			resp.Quote = fee.Amount.String()
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		h.fail(w, r, "get_asset_fee", err)
		return
	}

	quoted, err := h.registry.QuoteFee(ctx, asset)
	if err != nil {
		h.fail(w, r, "quote_fee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AssetFeeResponse{
		Asset:   asset.String(),
		Amount:  quoted.String(),
		Enabled: true,
		Quote:   quoted.String(),
	})
}

func (h *Handler) handleGetRelayer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathIdentity(w, r, "is_relayer_allowed")
	if !ok {
		return
	}
	allowed, err := h.registry.IsRelayerAllowed(r.Context(), id)
	if err != nil {
		h.fail(w, r, "is_relayer_allowed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RelayerResponse{Identity: id.String(), Allowed: allowed})
}

func (h *Handler) handleListRelayers(w http.ResponseWriter, r *http.Request) {
	relayers, err := h.registry.ListRelayers(r.Context())
	if err != nil {
		h.fail(w, r, "list_relayers", err)
		return
	}
	resp := RelayerListResponse{Relayers: make([]string, 0, len(relayers))}
	for _, id := range relayers {
		resp.Relayers = append(resp.Relayers, id.String())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
