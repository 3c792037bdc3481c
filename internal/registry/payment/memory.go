package payment

import (
	"context"
	"math"
	"sync"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
)

type account struct {
	id    domain.Identity
	asset domain.AssetID
}

// Memory is an in-process ledger. It backs the in-memory store and tests.
type Memory struct {
	mu       sync.Mutex
	balances map[account]domain.Amount
	skims    map[domain.AssetID]uint16
	journal  []models.Transfer
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[account]domain.Amount),
		skims:    make(map[domain.AssetID]uint16),
	}
}

// Credit mints amount into id's balance. Used for seeding and tests.
func (m *Memory) Credit(id domain.Identity, asset domain.AssetID, amount domain.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := account{id, asset}
	if uint64(m.balances[key]) > math.MaxUint64-uint64(amount) {
		return dErrors.New(dErrors.CodeInvalidInput, "balance overflow")
	}
	m.balances[key] += amount
	return nil
}

func (m *Memory) Balance(id domain.Identity, asset domain.AssetID) domain.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account{id, asset}]
}

// SetSkim makes every transfer of asset lose bps basis points in flight.
func (m *Memory) SetSkim(asset domain.AssetID, bps uint16) error {
	if bps > models.MaxBps {
		return dErrors.New(dErrors.CodeInvalidBps, "skim exceeds 10000 bps")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if bps == 0 {
		delete(m.skims, asset)
		return nil
	}
	m.skims[asset] = bps
	return nil
}

// Journal returns every leg settled so far, oldest first.
func (m *Memory) Journal() []models.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transfer, len(m.journal))
	copy(out, m.journal)
	return out
}

func (m *Memory) Transfer(ctx context.Context, legs ...models.Transfer) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transfer aborted: context cancelled")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[account]domain.Amount)
	get := func(k account) domain.Amount {
		if v, ok := staged[k]; ok {
			return v
		}
		return m.balances[k]
	}

	for _, leg := range legs {
		if leg.Amount == 0 {
			continue
		}
		if err := validateLeg(leg); err != nil {
			return err
		}
		amount, err := delivered(leg, m.skims[leg.Asset])
		if err != nil {
			return err
		}
		from := account{leg.From, leg.Asset}
		to := account{leg.To, leg.Asset}
		if get(from) < leg.Amount {
			return insufficient(leg)
		}
		staged[from] = get(from) - leg.Amount
		if uint64(get(to)) > math.MaxUint64-uint64(amount) {
			return dErrors.New(dErrors.CodeTransferFailed, "recipient balance overflow")
		}
		staged[to] = get(to) + amount
	}

	for k, v := range staged {
		m.balances[k] = v
	}
	for _, leg := range legs {
		if leg.Amount > 0 {
			m.journal = append(m.journal, leg)
		}
	}
	return nil
}

var _ Gateway = (*Memory)(nil)
