package handler

import (
	"encoding/base64"
	"strings"
	"time"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

// Amounts travel as decimal strings in the asset's smallest unit; binary
// values (signatures, keys) as standard base64.

func parseAmount(field, raw string) (domain.Amount, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	amount, err := domain.ParseAmount(strings.TrimSpace(raw))
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, field+" must be a non-negative integer string")
	}
	return amount, nil
}

func parseIdentity(field, raw string) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	return parseOptionalIdentity(field, raw)
}

// parseOptionalIdentity accepts an empty value as the null identity.
func parseOptionalIdentity(field, raw string) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	id, err := domain.ParseIdentity(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, field+" is not a valid identity")
	}
	return id, nil
}

// parseOptionalAsset accepts an empty value as "the native asset".
func parseOptionalAsset(field, raw string) (domain.AssetID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	asset, err := domain.ParseAssetID(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, field+" is not a valid asset")
	}
	return asset, nil
}

func decodeBase64(field, raw string) ([]byte, error) {
	if raw == "" {
		return nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	out, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be base64")
	}
	return out, nil
}

type InitializeRequest struct {
	Treasury                  string `json:"treasury"`
	RegistrationFee           string `json:"registration_fee"`
	ReferrerBps               uint16 `json:"referrer_bps"`
	RequireAllowlistedRelayer bool   `json:"require_allowlisted_relayer"`
	NativeAsset               string `json:"native_asset"`

	params models.InitParams
}

func (r *InitializeRequest) Validate() error {
	fee, err := parseAmount("registration_fee", r.RegistrationFee)
	if err != nil {
		return err
	}
	asset, err := parseOptionalAsset("native_asset", r.NativeAsset)
	if err != nil {
		return err
	}
	if asset.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "native_asset is required")
	}
	treasury, err := parseOptionalIdentity("treasury", r.Treasury)
	if err != nil {
		return err
	}
	r.params = models.InitParams{
		Treasury:                  treasury,
		RegistrationFee:           fee,
		ReferrerBps:               r.ReferrerBps,
		RequireAllowlistedRelayer: r.RequireAllowlistedRelayer,
		NativeAsset:               asset,
	}
	return r.params.Validate()
}

// RegisterRequest registers a name to the caller. An empty asset means the
// native asset.
type RegisterRequest struct {
	Name        string `json:"name"`
	Asset       string `json:"asset"`
	FeeProvided string `json:"fee_provided"`

	asset domain.AssetID
	fee   domain.Amount
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	fee, err := parseAmount("fee_provided", r.FeeProvided)
	if err != nil {
		return err
	}
	asset, err := parseOptionalAsset("asset", r.Asset)
	if err != nil {
		return err
	}
	r.asset = asset
	r.fee = fee
	return nil
}

// SponsoredTerms is the signed part of a sponsored registration.
type SponsoredTerms struct {
	Name     string    `json:"name"`
	Owner    string    `json:"owner"`
	Sponsor  string    `json:"sponsor"`
	Asset    string    `json:"asset"`
	Amount   string    `json:"amount"`
	Deadline time.Time `json:"deadline"`
	Nonce    uint64    `json:"nonce"`
}

type SponsoredRegisterRequest struct {
	Request     SponsoredTerms `json:"request"`
	Signature   string         `json:"signature"`
	FeeProvided string         `json:"fee_provided"`

	terms models.SponsoredRequest
	sig   []byte
	fee   domain.Amount
}

func (r *SponsoredRegisterRequest) Validate() error {
	owner, err := parseIdentity("request.owner", r.Request.Owner)
	if err != nil {
		return err
	}
	sponsor, err := parseIdentity("request.sponsor", r.Request.Sponsor)
	if err != nil {
		return err
	}
	amount, err := parseAmount("request.amount", r.Request.Amount)
	if err != nil {
		return err
	}
	asset, err := parseOptionalAsset("request.asset", r.Request.Asset)
	if err != nil {
		return err
	}
	if r.Request.Deadline.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "request.deadline is required")
	}
	sig, err := decodeBase64("signature", r.Signature)
	if err != nil {
		return err
	}
	fee, err := parseAmount("fee_provided", r.FeeProvided)
	if err != nil {
		return err
	}

	r.terms = models.SponsoredRequest{
		Name:     models.Name(r.Request.Name),
		Owner:    owner,
		Sponsor:  sponsor,
		Asset:    asset,
		Amount:   amount,
		// Owners sign whole seconds.
		Deadline: r.Request.Deadline.Truncate(time.Second),
		Nonce:    r.Request.Nonce,
	}
	r.sig = sig
	r.fee = fee
	return nil
}

// SetResolvedRequest points a name at an identity. An empty resolved clears
// it.
type SetResolvedRequest struct {
	Resolved string `json:"resolved"`

	resolved domain.Identity
}

func (r *SetResolvedRequest) Validate() error {
	id, err := parseOptionalIdentity("resolved", r.Resolved)
	if err != nil {
		return err
	}
	r.resolved = id
	return nil
}

type TransferNameRequest struct {
	NewOwner string `json:"new_owner"`

	newOwner domain.Identity
}

func (r *TransferNameRequest) Validate() error {
	id, err := parseIdentity("new_owner", r.NewOwner)
	if err != nil {
		return err
	}
	r.newOwner = id
	return nil
}

type SetPrimaryRequest struct {
	Name string `json:"name"`
}

func (r *SetPrimaryRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

type KeyRequest struct {
	PublicKey string `json:"public_key"`

	key []byte
}

func (r *KeyRequest) Validate() error {
	key, err := decodeBase64("public_key", r.PublicKey)
	if err != nil {
		return err
	}
	r.key = key
	return nil
}

type SetFeeRequest struct {
	Fee string `json:"fee"`

	fee domain.Amount
}

func (r *SetFeeRequest) Validate() error {
	fee, err := parseAmount("fee", r.Fee)
	if err != nil {
		return err
	}
	r.fee = fee
	return nil
}

// SetTreasuryRequest moves fee income. An empty treasury is passed on so the
// registry reports zero_treasury.
type SetTreasuryRequest struct {
	Treasury string `json:"treasury"`

	treasury domain.Identity
}

func (r *SetTreasuryRequest) Validate() error {
	id, err := parseOptionalIdentity("treasury", r.Treasury)
	if err != nil {
		return err
	}
	r.treasury = id
	return nil
}

type SetReferrerBpsRequest struct {
	Bps *uint16 `json:"bps"`
}

func (r *SetReferrerBpsRequest) Validate() error {
	if r.Bps == nil {
		return dErrors.New(dErrors.CodeValidation, "bps is required")
	}
	return models.ValidateBps(*r.Bps)
}

type SetAssetFeeRequest struct {
	Amount  string `json:"amount"`
	Enabled bool   `json:"enabled"`

	amount domain.Amount
}

func (r *SetAssetFeeRequest) Validate() error {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return err
	}
	r.amount = amount
	return nil
}

type SetAllowlistRequiredRequest struct {
	Required *bool `json:"required"`
}

func (r *SetAllowlistRequiredRequest) Validate() error {
	if r.Required == nil {
		return dErrors.New(dErrors.CodeValidation, "required is required")
	}
	return nil
}

type TransferAdminRequest struct {
	Candidate string `json:"candidate"`

	candidate domain.Identity
}

func (r *TransferAdminRequest) Validate() error {
	id, err := parseIdentity("candidate", r.Candidate)
	if err != nil {
		return err
	}
	r.candidate = id
	return nil
}
