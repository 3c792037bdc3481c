package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"nominal/pkg/domain"
)

// EventType names a committed registry change.
type EventType string

const (
	EventNameRegistered          EventType = "name_registered"
	EventFeePaid                 EventType = "fee_paid"
	EventPrimaryNameSet          EventType = "primary_name_set"
	EventNameTransferred         EventType = "name_transferred"
	EventResolvedUpdated         EventType = "resolved_updated"
	EventRegistryInitialized     EventType = "registry_initialized"
	EventRegistrationFeeSet      EventType = "registration_fee_set"
	EventTreasurySet             EventType = "treasury_set"
	EventReferrerBpsSet          EventType = "referrer_bps_set"
	EventAssetFeeSet             EventType = "asset_fee_set"
	EventRelayerAdded            EventType = "relayer_added"
	EventRelayerRemoved          EventType = "relayer_removed"
	EventAllowlistRequirementSet EventType = "allowlist_requirement_set"
	EventAdminTransferInitiated  EventType = "admin_transfer_initiated"
	EventAdminTransferAccepted   EventType = "admin_transfer_accepted"
	EventKeyAuthorized           EventType = "key_authorized"
	EventKeyRevoked              EventType = "key_revoked"
)

// Event is a committed change awaiting publication to indexers. Attributes
// are flat strings so every sink can carry them without a schema.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       EventType         `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	RequestID  string            `json:"request_id,omitempty"`
	Attrs      map[string]string `json:"attrs"`
}

// Key partitions events for publication. Name events share the name so
// that a consumer sees them in order.
func (e Event) Key() string {
	if n, ok := e.Attrs["name"]; ok {
		return n
	}
	return string(e.Type)
}

func newEvent(t EventType, now time.Time, kv ...string) Event {
	attrs := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs[kv[i]] = kv[i+1]
	}
	return Event{ID: uuid.New(), Type: t, OccurredAt: now, Attrs: attrs}
}

func amount(a domain.Amount) string { return a.String() }

func NameRegistered(now time.Time, name Name, owner, payer domain.Identity, asset domain.AssetID, paid domain.Amount) Event {
	return newEvent(EventNameRegistered, now,
		"name", name.String(),
		"owner", owner.String(),
		"payer", payer.String(),
		"asset", asset.String(),
		"amount", amount(paid),
	)
}

func FeePaid(now time.Time, name Name, r *Receipt) Event {
	return newEvent(EventFeePaid, now,
		"name", name.String(),
		"payer", r.Payer.String(),
		"asset", r.Asset.String(),
		"total", amount(r.Total),
		"referrer", r.Referrer.String(),
		"referrer_amount", amount(r.ReferrerAmount),
		"treasury_amount", amount(r.TreasuryAmount),
	)
}

func PrimaryNameSet(now time.Time, id domain.Identity, name Name) Event {
	return newEvent(EventPrimaryNameSet, now, "identity", id.String(), "name", name.String())
}

func NameTransferred(now time.Time, name Name, from, to domain.Identity) Event {
	return newEvent(EventNameTransferred, now, "name", name.String(), "from", from.String(), "to", to.String())
}

func ResolvedUpdated(now time.Time, name Name, resolved domain.Identity) Event {
	return newEvent(EventResolvedUpdated, now, "name", name.String(), "resolved", resolved.String())
}

func RegistryInitialized(now time.Time, cfg *Config) Event {
	return newEvent(EventRegistryInitialized, now,
		"admin", cfg.Admin.String(),
		"treasury", cfg.Treasury.String(),
		"registration_fee", amount(cfg.RegistrationFee),
		"referrer_bps", strconv.Itoa(int(cfg.ReferrerBps)),
		"native_asset", cfg.NativeAsset.String(),
	)
}

func RegistrationFeeSet(now time.Time, fee domain.Amount) Event {
	return newEvent(EventRegistrationFeeSet, now, "fee", amount(fee))
}

func TreasurySet(now time.Time, treasury domain.Identity) Event {
	return newEvent(EventTreasurySet, now, "treasury", treasury.String())
}

func ReferrerBpsSet(now time.Time, bps uint16) Event {
	return newEvent(EventReferrerBpsSet, now, "bps", strconv.Itoa(int(bps)))
}

func AssetFeeSet(now time.Time, fee AssetFee) Event {
	return newEvent(EventAssetFeeSet, now,
		"asset", fee.Asset.String(),
		"amount", amount(fee.Amount),
		"enabled", strconv.FormatBool(fee.Enabled),
	)
}

func RelayerAdded(now time.Time, relayer domain.Identity) Event {
	return newEvent(EventRelayerAdded, now, "relayer", relayer.String())
}

func RelayerRemoved(now time.Time, relayer domain.Identity) Event {
	return newEvent(EventRelayerRemoved, now, "relayer", relayer.String())
}

func AllowlistRequirementSet(now time.Time, required bool) Event {
	return newEvent(EventAllowlistRequirementSet, now, "required", strconv.FormatBool(required))
}

func AdminTransferInitiated(now time.Time, admin, candidate domain.Identity) Event {
	return newEvent(EventAdminTransferInitiated, now, "admin", admin.String(), "candidate", candidate.String())
}

func AdminTransferAccepted(now time.Time, previous, admin domain.Identity) Event {
	return newEvent(EventAdminTransferAccepted, now, "previous", previous.String(), "admin", admin.String())
}

func KeyAuthorized(now time.Time, id domain.Identity, fingerprint string) Event {
	return newEvent(EventKeyAuthorized, now, "identity", id.String(), "key", fingerprint)
}

func KeyRevoked(now time.Time, id domain.Identity, fingerprint string) Event {
	return newEvent(EventKeyRevoked, now, "identity", id.String(), "key", fingerprint)
}
