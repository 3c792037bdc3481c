package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nominal/internal/registry/models"
	"nominal/pkg/platform/httputil"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[RegisterRequest](h, w, r)
	if !ok {
		return
	}
	receipt, err := h.registry.RegisterDirect(r.Context(), caller, req.Name, req.asset, req.fee)
	if err != nil {
		h.fail(w, r, "register_direct", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) handleRegisterSponsored(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SponsoredRegisterRequest](h, w, r)
	if !ok {
		return
	}
	receipt, err := h.registry.RegisterSponsored(r.Context(), caller, req.terms, req.sig, req.fee)
	if err != nil {
		h.fail(w, r, "register_sponsored", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) handleSetResolved(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SetResolvedRequest](h, w, r)
	if !ok {
		return
	}
	name := models.Name(chi.URLParam(r, "name"))
	record, err := h.registry.SetResolved(r.Context(), caller, name, req.resolved)
	if err != nil {
		h.fail(w, r, "set_resolved", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleTransferName(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[TransferNameRequest](h, w, r)
	if !ok {
		return
	}
	name := models.Name(chi.URLParam(r, "name"))
	record, err := h.registry.TransferName(r.Context(), caller, name, req.newOwner)
	if err != nil {
		h.fail(w, r, "transfer_name", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[SetPrimaryRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.registry.SetPrimaryName(r.Context(), caller, req.Name); err != nil {
		h.fail(w, r, "set_primary_name", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuthorizeKey(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[KeyRequest](h, w, r)
	if !ok {
		return
	}
	fingerprint, err := h.registry.AuthorizeKey(r.Context(), caller, req.key)
	if err != nil {
		h.fail(w, r, "authorize_key", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, KeyResponse{Fingerprint: fingerprint})
}

func (h *Handler) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := decode[KeyRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.registry.RevokeKey(r.Context(), caller, req.key); err != nil {
		h.fail(w, r, "revoke_key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
