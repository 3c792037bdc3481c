package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	txcontext "nominal/pkg/platform/tx"
	"nominal/pkg/requestcontext"
)

// Postgres is a ledger stored next to the registry tables. When ctx carries
// the registry transaction every leg is written through it, so the transfer
// commits or rolls back with the registration.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) Transfer(ctx context.Context, legs ...models.Transfer) error {
	if tx, ok := txcontext.From(ctx); ok {
		return p.transfer(ctx, tx, legs)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := p.transfer(ctx, tx, legs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (p *Postgres) transfer(ctx context.Context, exec dbExecutor, legs []models.Transfer) error {
	requestID := requestcontext.RequestID(ctx)
	now := requestcontext.Now(ctx)

	for _, leg := range legs {
		if leg.Amount == 0 {
			continue
		}
		if err := validateLeg(leg); err != nil {
			return err
		}
		skim, err := p.skim(ctx, exec, leg.Asset)
		if err != nil {
			return err
		}
		amount, err := delivered(leg, skim)
		if err != nil {
			return err
		}

		res, err := exec.ExecContext(ctx, `
			UPDATE ledger_balances SET balance = balance - $3::numeric
			WHERE account = $1 AND asset = $2 AND balance >= $3::numeric
		`, leg.From, leg.Asset, leg.Amount.String())
		if err != nil {
			return fmt.Errorf("debit %s: %w", leg.From, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit %s: %w", leg.From, err)
		}
		if rows == 0 {
			return insufficient(leg)
		}

		if err := credit(ctx, exec, leg.To, leg.Asset, amount); err != nil {
			return err
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO ledger_transfers (id, from_acct, to_acct, asset, amount, request_id, created_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		`, uuid.New(), leg.From, leg.To, leg.Asset, leg.Amount.String(), requestID, now)
		if err != nil {
			return fmt.Errorf("journal transfer: %w", err)
		}
	}
	return nil
}

func (p *Postgres) skim(ctx context.Context, exec dbExecutor, asset domain.AssetID) (uint16, error) {
	var bps int
	err := exec.QueryRowContext(ctx, `SELECT bps FROM ledger_asset_skims WHERE asset = $1`, asset).Scan(&bps)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load asset skim: %w", err)
	}
	return uint16(bps), nil
}

func credit(ctx context.Context, exec dbExecutor, id domain.Identity, asset domain.AssetID, amount domain.Amount) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO ledger_balances (account, asset, balance)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (account, asset) DO UPDATE SET balance = ledger_balances.balance + EXCLUDED.balance
	`, id, asset, amount.String())
	if err != nil {
		return fmt.Errorf("credit %s: %w", id, err)
	}
	return nil
}

// Credit mints amount into id's balance.
func (p *Postgres) Credit(ctx context.Context, id domain.Identity, asset domain.AssetID, amount domain.Amount) error {
	return credit(ctx, p.execer(ctx), id, asset, amount)
}

func (p *Postgres) Balance(ctx context.Context, id domain.Identity, asset domain.AssetID) (domain.Amount, error) {
	var raw string
	err := p.execer(ctx).QueryRowContext(ctx,
		`SELECT balance::text FROM ledger_balances WHERE account = $1 AND asset = $2`, id, asset).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load balance: %w", err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return domain.Amount(v), nil
}

// SetSkim makes every transfer of asset lose bps basis points in flight.
func (p *Postgres) SetSkim(ctx context.Context, asset domain.AssetID, bps uint16) error {
	if bps > models.MaxBps {
		return dErrors.New(dErrors.CodeInvalidBps, "skim exceeds 10000 bps")
	}
	var err error
	if bps == 0 {
		_, err = p.execer(ctx).ExecContext(ctx, `DELETE FROM ledger_asset_skims WHERE asset = $1`, asset)
	} else {
		_, err = p.execer(ctx).ExecContext(ctx, `
			INSERT INTO ledger_asset_skims (asset, bps) VALUES ($1, $2)
			ON CONFLICT (asset) DO UPDATE SET bps = EXCLUDED.bps
		`, asset, int(bps))
	}
	if err != nil {
		return fmt.Errorf("save asset skim: %w", err)
	}
	return nil
}

func (p *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

var _ Gateway = (*Postgres)(nil)
