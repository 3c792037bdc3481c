package handler

import (
	"net/http"

	"nominal/internal/registry/models"
	"nominal/pkg/platform/httputil"
)

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[InitializeRequest](h, w, r)
	if !ok {
		return
	}
	cfg, err := h.registry.Initialize(r.Context(), caller, req.params)
	if err != nil {
		h.fail(w, r, "initialize", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toConfigResponse(cfg))
}

func (h *Handler) handleSetFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SetFeeRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.registry.SetRegistrationFee(r.Context(), caller, req.fee); err != nil {
		h.fail(w, r, "set_registration_fee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SetTreasuryRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.registry.SetTreasury(r.Context(), caller, req.treasury); err != nil {
		h.fail(w, r, "set_treasury", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetReferrerBps(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SetReferrerBpsRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.registry.SetReferrerBps(r.Context(), caller, *req.Bps); err != nil {
		h.fail(w, r, "set_referrer_bps", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetAssetFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SetAssetFeeRequest](h, w, r)
	if !ok {
		return
	}
	asset, ok := h.pathAsset(w, r, "set_asset_fee")
	if !ok {
		return
	}
	fee := models.AssetFee{
		Asset:   asset,
		Amount:  req.amount,
		Enabled: req.Enabled,
	}
	if err := h.registry.SetAssetFee(r.Context(), caller, fee); err != nil {
		h.fail(w, r, "set_asset_fee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetAllowlistRequired(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SetAllowlistRequiredRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.registry.SetRequireAllowlistedRelayer(r.Context(), caller, *req.Required); err != nil {
		h.fail(w, r, "set_require_allowlisted_relayer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddRelayer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	relayer, ok := h.pathIdentity(w, r, "add_relayer")
	if !ok {
		return
	}
	if err := h.registry.AddRelayer(r.Context(), caller, relayer); err != nil {
		h.fail(w, r, "add_relayer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveRelayer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	relayer, ok := h.pathIdentity(w, r, "remove_relayer")
	if !ok {
		return
	}
	if err := h.registry.RemoveRelayer(r.Context(), caller, relayer); err != nil {
		h.fail(w, r, "remove_relayer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[TransferAdminRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.registry.TransferAdmin(r.Context(), caller, req.candidate); err != nil {
		h.fail(w, r, "transfer_admin", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleAcceptAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.registry.AcceptAdmin(r.Context(), caller); err != nil {
		h.fail(w, r, "accept_admin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
