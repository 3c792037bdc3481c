package handler

import (
	"time"

	"nominal/internal/registry/models"
)

type RecordResponse struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Resolved  string    `json:"resolved,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRecordResponse(r *models.Record) RecordResponse {
	return RecordResponse{
		Name:      r.Name.String(),
		Owner:     r.Owner.String(),
		Resolved:  r.Resolved.String(),
		UpdatedAt: r.UpdatedAt,
	}
}

type ReceiptResponse struct {
	Record         RecordResponse `json:"record"`
	Payer          string         `json:"payer"`
	Asset          string         `json:"asset"`
	Total          string         `json:"total"`
	Referrer       string         `json:"referrer,omitempty"`
	ReferrerAmount string         `json:"referrer_amount"`
	TreasuryAmount string         `json:"treasury_amount"`
	Change         string         `json:"change"`
	PrimarySet     bool           `json:"primary_set"`
}

func toReceiptResponse(r *models.Receipt) ReceiptResponse {
	return ReceiptResponse{
		Record:         toRecordResponse(r.Record),
		Payer:          r.Payer.String(),
		Asset:          r.Asset.String(),
		Total:          r.Total.String(),
		Referrer:       r.Referrer.String(),
		ReferrerAmount: r.ReferrerAmount.String(),
		TreasuryAmount: r.TreasuryAmount.String(),
		Change:         r.Change.String(),
		PrimarySet:     r.PrimarySet,
	}
}

type ConfigResponse struct {
	Admin                     string `json:"admin"`
	PendingAdmin              string `json:"pending_admin,omitempty"`
	Treasury                  string `json:"treasury"`
	RegistrationFee           string `json:"registration_fee"`
	ReferrerBps               uint16 `json:"referrer_bps"`
	RequireAllowlistedRelayer bool   `json:"require_allowlisted_relayer"`
	NativeAsset               string `json:"native_asset"`
}

func toConfigResponse(c *models.Config) ConfigResponse {
	return ConfigResponse{
		Admin:                     c.Admin.String(),
		PendingAdmin:              c.PendingAdmin.String(),
		Treasury:                  c.Treasury.String(),
		RegistrationFee:           c.RegistrationFee.String(),
		ReferrerBps:               c.ReferrerBps,
		RequireAllowlistedRelayer: c.RequireAllowlistedRelayer,
		NativeAsset:               c.NativeAsset.String(),
	}
}

type AssetFeeResponse struct {
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
	Enabled bool   `json:"enabled"`
	// Quote is the fee a registration in this asset requires right now.
	Quote string `json:"quote,omitempty"`
}

type NonceResponse struct {
	Name  string `json:"name"`
	Nonce uint64 `json:"nonce"`
}

type PrimaryResponse struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Found    bool   `json:"found"`
}

type RelayerResponse struct {
	Identity string `json:"identity"`
	Allowed  bool   `json:"allowed"`
}

type RelayerListResponse struct {
	Relayers []string `json:"relayers"`
}

type KeyResponse struct {
	Fingerprint string `json:"fingerprint"`
}
