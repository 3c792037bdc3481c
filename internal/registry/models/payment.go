package models

import "nominal/pkg/domain"

// Transfer is one leg of a settlement. A leg must move exactly Amount.
type Transfer struct {
	From   domain.Identity
	To     domain.Identity
	Asset  domain.AssetID
	Amount domain.Amount
}

// Receipt reports the settlement of a registration. Change is the part of
// the offered fee that was not taken; it stays with the payer.
type Receipt struct {
	Record         *Record         `json:"record"`
	Payer          domain.Identity `json:"payer"`
	Asset          domain.AssetID  `json:"asset"`
	Total          domain.Amount   `json:"total"`
	Referrer       domain.Identity `json:"referrer,omitempty"`
	ReferrerAmount domain.Amount   `json:"referrer_amount"`
	TreasuryAmount domain.Amount   `json:"treasury_amount"`
	Change         domain.Amount   `json:"change"`
	PrimarySet     bool            `json:"primary_set"`
}

// Legs returns the transfers that settle the receipt. Zero-amount legs are
// omitted.
func (r *Receipt) Legs(treasury domain.Identity) []Transfer {
	legs := make([]Transfer, 0, 2)
	if r.TreasuryAmount > 0 {
		legs = append(legs, Transfer{From: r.Payer, To: treasury, Asset: r.Asset, Amount: r.TreasuryAmount})
	}
	if r.ReferrerAmount > 0 && !r.Referrer.IsNil() {
		legs = append(legs, Transfer{From: r.Payer, To: r.Referrer, Asset: r.Asset, Amount: r.ReferrerAmount})
	}
	return legs
}
