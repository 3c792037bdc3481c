package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
	txcontext "nominal/pkg/platform/tx"
)

// Postgres is the PostgreSQL Store. Inside RunInTx every statement runs on
// the transaction carried by ctx, so collaborators that share the database
// (the payment ledger) commit or roll back together with the registry.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// WithTimeout overrides the default transaction timeout.
func (s *Postgres) WithTimeout(d time.Duration) *Postgres {
	s.timeout = d
	return s
}

func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// inTx reports whether ctx carries a transaction; row locks are only taken
// then.
func inTx(ctx context.Context) bool {
	_, ok := txcontext.From(ctx)
	return ok
}

// isUniqueViolation recognises SQLSTATE 23505 from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (s *Postgres) CreateRecord(ctx context.Context, record *models.Record) error {
	query := `
		INSERT INTO records (name, owner, resolved, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.Name, record.Owner, record.Resolved, record.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Postgres) FindRecord(ctx context.Context, name models.Name) (*models.Record, error) {
	query := `SELECT name, owner, resolved, updated_at FROM records WHERE name = $1`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	record, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return record, nil
}

func (s *Postgres) UpdateRecord(ctx context.Context, record *models.Record) error {
	query := `
		UPDATE records SET owner = $2, resolved = $3, updated_at = $4
		WHERE name = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		record.Name, record.Owner, record.Resolved, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return requireAffected(res, "update record")
}

func (s *Postgres) CreateConfig(ctx context.Context, cfg *models.Config) error {
	query := `
		INSERT INTO registry_config (
			id, admin, pending_admin, treasury, registration_fee,
			referrer_bps, require_allowlisted_relayer, native_asset
		)
		VALUES (1, $1, $2, $3, $4::numeric, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query, configArgs(cfg)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert config: %w", err)
	}
	return nil
}

// LoadConfig locks the config row inside a transaction; this serializes
// every registry mutation behind the singleton.
func (s *Postgres) LoadConfig(ctx context.Context) (*models.Config, error) {
	query := `
		SELECT admin, pending_admin, treasury, registration_fee::text,
			referrer_bps, require_allowlisted_relayer, native_asset
		FROM registry_config WHERE id = 1
	`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	var (
		cfg models.Config
		fee string
		bps int
	)
	err := s.execer(ctx).QueryRowContext(ctx, query).Scan(
		&cfg.Admin, &cfg.PendingAdmin, &cfg.Treasury, &fee,
		&bps, &cfg.RequireAllowlistedRelayer, &cfg.NativeAsset,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.RegistrationFee, err = domain.ParseAmount(fee); err != nil {
		return nil, fmt.Errorf("parse registration fee: %w", err)
	}
	cfg.ReferrerBps = uint16(bps)
	return &cfg, nil
}

func (s *Postgres) SaveConfig(ctx context.Context, cfg *models.Config) error {
	query := `
		UPDATE registry_config SET
			admin = $1, pending_admin = $2, treasury = $3, registration_fee = $4::numeric,
			referrer_bps = $5, require_allowlisted_relayer = $6, native_asset = $7
		WHERE id = 1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, configArgs(cfg)...)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return requireAffected(res, "save config")
}

func configArgs(cfg *models.Config) []any {
	return []any{
		cfg.Admin, cfg.PendingAdmin, cfg.Treasury, cfg.RegistrationFee.String(),
		int(cfg.ReferrerBps), cfg.RequireAllowlistedRelayer, cfg.NativeAsset,
	}
}

func (s *Postgres) FindAssetFee(ctx context.Context, asset domain.AssetID) (*models.AssetFee, error) {
	query := `SELECT asset, amount::text, enabled FROM asset_fees WHERE asset = $1`
	var (
		fee    models.AssetFee
		amount string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, asset).Scan(&fee.Asset, &amount, &fee.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find asset fee: %w", err)
	}
	if fee.Amount, err = domain.ParseAmount(amount); err != nil {
		return nil, fmt.Errorf("parse asset fee: %w", err)
	}
	return &fee, nil
}

func (s *Postgres) SaveAssetFee(ctx context.Context, fee models.AssetFee) error {
	query := `
		INSERT INTO asset_fees (asset, amount, enabled)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (asset) DO UPDATE SET amount = EXCLUDED.amount, enabled = EXCLUDED.enabled
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, fee.Asset, fee.Amount.String(), fee.Enabled); err != nil {
		return fmt.Errorf("save asset fee: %w", err)
	}
	return nil
}

func (s *Postgres) Nonce(ctx context.Context, name models.Name) (uint64, error) {
	query := `SELECT value FROM nonces WHERE name = $1`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	var value int64
	err := s.execer(ctx).QueryRowContext(ctx, query, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load nonce: %w", err)
	}
	return uint64(value), nil
}

func (s *Postgres) SetNonce(ctx context.Context, name models.Name, nonce uint64) error {
	query := `
		INSERT INTO nonces (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, name, int64(nonce)); err != nil {
		return fmt.Errorf("set nonce: %w", err)
	}
	return nil
}

func (s *Postgres) IsRelayer(ctx context.Context, id domain.Identity) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM relayers WHERE identity = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check relayer: %w", err)
	}
	return exists, nil
}

func (s *Postgres) AddRelayer(ctx context.Context, id domain.Identity) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO relayers (identity) VALUES ($1) ON CONFLICT (identity) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("add relayer: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveRelayer(ctx context.Context, id domain.Identity) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM relayers WHERE identity = $1`, id); err != nil {
		return fmt.Errorf("remove relayer: %w", err)
	}
	return nil
}

func (s *Postgres) ListRelayers(ctx context.Context) ([]domain.Identity, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT identity FROM relayers ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("list relayers: %w", err)
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		var id domain.Identity
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan relayer: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relayers: %w", err)
	}
	return out, nil
}

func (s *Postgres) PrimaryName(ctx context.Context, id domain.Identity) (models.Name, error) {
	var name models.Name
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT name FROM primary_names WHERE identity = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("find primary name: %w", err)
	}
	return name, nil
}

func (s *Postgres) SetPrimaryName(ctx context.Context, id domain.Identity, name models.Name) error {
	query := `
		INSERT INTO primary_names (identity, name) VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET name = EXCLUDED.name
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, id, name); err != nil {
		return fmt.Errorf("set primary name: %w", err)
	}
	return nil
}

func (s *Postgres) ClearPrimaryName(ctx context.Context, id domain.Identity) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM primary_names WHERE identity = $1`, id); err != nil {
		return fmt.Errorf("clear primary name: %w", err)
	}
	return nil
}

func (s *Postgres) AuthorizedKeys(ctx context.Context, id domain.Identity) ([][]byte, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT public_key FROM authorized_keys WHERE identity = $1 ORDER BY created_at, public_key`, id)
	if err != nil {
		return nil, fmt.Errorf("list authorized keys: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var key []byte
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan authorized key: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authorized keys: %w", err)
	}
	return out, nil
}

func (s *Postgres) AddAuthorizedKey(ctx context.Context, id domain.Identity, key []byte) error {
	query := `
		INSERT INTO authorized_keys (identity, public_key) VALUES ($1, $2)
		ON CONFLICT (identity, public_key) DO NOTHING
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, id, key); err != nil {
		return fmt.Errorf("add authorized key: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveAuthorizedKey(ctx context.Context, id domain.Identity, key []byte) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM authorized_keys WHERE identity = $1 AND public_key = $2`, id, key)
	if err != nil {
		return fmt.Errorf("remove authorized key: %w", err)
	}
	return requireAffected(res, "remove authorized key")
}

func (s *Postgres) AppendEvents(ctx context.Context, events ...models.Event) error {
	query := `
		INSERT INTO outbox (id, event_type, aggregate_key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		if _, err := s.execer(ctx).ExecContext(ctx, query,
			e.ID, string(e.Type), e.Key(), payload, e.OccurredAt); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

// PendingEvents returns unpublished events in commit order. Inside a
// transaction the rows are locked with SKIP LOCKED so concurrent relays
// never publish the same batch.
func (s *Postgres) PendingEvents(ctx context.Context, limit int) ([]models.Event, error) {
	query := `
		SELECT payload FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`
	if inTx(ctx) {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		var e models.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal outbox entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

func (s *Postgres) MarkPublished(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[]) AND published_at IS NULL`,
		time.Now(), pq.Array(strs))
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*models.Record, error) {
	var r models.Record
	if err := row.Scan(&r.Name, &r.Owner, &r.Resolved, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

var (
	_ Store = (*Postgres)(nil)
	_ Tx    = (*Postgres)(nil)
)
