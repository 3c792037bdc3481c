package store

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nominal/internal/registry/models"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
)

// Memory is an in-process Store. A single writer lock serializes
// transactions; each transaction keeps an undo log that is replayed when fn
// fails or panics, so readers never observe a partial operation.
type Memory struct {
	mu      sync.RWMutex
	state   *memState
	timeout time.Duration
}

type memState struct {
	records   map[models.Name]models.Record
	config    *models.Config
	assetFees map[domain.AssetID]models.AssetFee
	nonces    map[models.Name]uint64
	relayers  map[domain.Identity]struct{}
	primary   map[domain.Identity]models.Name
	keys      map[domain.Identity][][]byte
	outbox    []models.Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: &memState{
		records:   make(map[models.Name]models.Record),
		assetFees: make(map[domain.AssetID]models.AssetFee),
		nonces:    make(map[models.Name]uint64),
		relayers:  make(map[domain.Identity]struct{}),
		primary:   make(map[domain.Identity]models.Name),
		keys:      make(map[domain.Identity][][]byte),
	}}
}

// WithTimeout overrides the default transaction timeout.
func (m *Memory) WithTimeout(d time.Duration) *Memory {
	m.timeout = d
	return m
}

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := m.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if v, ok := m.active(ctx); ok {
		return fn(ctx, v)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	v := &memView{s: m.state, undo: []func(){}}
	ctx = context.WithValue(ctx, memTxKey{}, &memTx{owner: m, view: v})
	committed := false
	defer func() {
		if !committed {
			v.rollback()
		}
	}()
	if err := fn(ctx, v); err != nil {
		return err
	}
	committed = true
	return nil
}

// memTx marks ctx as running inside RunInTx so that collaborators holding
// the Memory itself (the signing key directory) read the open transaction
// instead of waiting on the lock it holds.
type (
	memTxKey struct{}
	memTx    struct {
		owner *Memory
		view  *memView
	}
)

func (m *Memory) active(ctx context.Context) (*memView, bool) {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok || tx.owner != m {
		return nil, false
	}
	return tx.view, true
}

// read and write run a single auto-committed statement, or join the
// transaction carried by ctx.
func (m *Memory) read(ctx context.Context, fn func(v *memView) error) error {
	if v, ok := m.active(ctx); ok {
		return fn(v)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memView{s: m.state})
}

func (m *Memory) write(ctx context.Context, fn func(v *memView) error) error {
	if v, ok := m.active(ctx); ok {
		return fn(v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := &memView{s: m.state, undo: []func(){}}
	committed := false
	defer func() {
		if !committed {
			v.rollback()
		}
	}()
	if err := fn(v); err != nil {
		return err
	}
	committed = true
	return nil
}

// memView operates on the shared state under a lock held by its creator.
// undo is nil for read-only views.
type memView struct {
	s    *memState
	undo []func()
}

func (v *memView) record(fn func()) {
	if v.undo != nil {
		v.undo = append(v.undo, fn)
	}
}

func (v *memView) rollback() {
	for i := len(v.undo) - 1; i >= 0; i-- {
		v.undo[i]()
	}
	v.undo = v.undo[:0]
}

func (v *memView) CreateRecord(_ context.Context, record *models.Record) error {
	if _, ok := v.s.records[record.Name]; ok {
		return sentinel.ErrAlreadyUsed
	}
	v.s.records[record.Name] = *record
	v.record(func() { delete(v.s.records, record.Name) })
	return nil
}

func (v *memView) FindRecord(_ context.Context, name models.Name) (*models.Record, error) {
	r, ok := v.s.records[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (v *memView) UpdateRecord(_ context.Context, record *models.Record) error {
	prev, ok := v.s.records[record.Name]
	if !ok {
		return sentinel.ErrNotFound
	}
	v.s.records[record.Name] = *record
	v.record(func() { v.s.records[record.Name] = prev })
	return nil
}

func (v *memView) CreateConfig(_ context.Context, cfg *models.Config) error {
	if v.s.config != nil {
		return sentinel.ErrAlreadyUsed
	}
	c := *cfg
	v.s.config = &c
	v.record(func() { v.s.config = nil })
	return nil
}

func (v *memView) LoadConfig(_ context.Context) (*models.Config, error) {
	if v.s.config == nil {
		return nil, sentinel.ErrNotFound
	}
	c := *v.s.config
	return &c, nil
}

func (v *memView) SaveConfig(_ context.Context, cfg *models.Config) error {
	if v.s.config == nil {
		return sentinel.ErrNotFound
	}
	prev := *v.s.config
	c := *cfg
	v.s.config = &c
	v.record(func() { v.s.config = &prev })
	return nil
}

func (v *memView) FindAssetFee(_ context.Context, asset domain.AssetID) (*models.AssetFee, error) {
	f, ok := v.s.assetFees[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &f, nil
}

func (v *memView) SaveAssetFee(_ context.Context, fee models.AssetFee) error {
	prev, existed := v.s.assetFees[fee.Asset]
	v.s.assetFees[fee.Asset] = fee
	v.record(func() {
		if existed {
			v.s.assetFees[fee.Asset] = prev
		} else {
			delete(v.s.assetFees, fee.Asset)
		}
	})
	return nil
}

func (v *memView) Nonce(_ context.Context, name models.Name) (uint64, error) {
	return v.s.nonces[name], nil
}

func (v *memView) SetNonce(_ context.Context, name models.Name, nonce uint64) error {
	prev, existed := v.s.nonces[name]
	v.s.nonces[name] = nonce
	v.record(func() {
		if existed {
			v.s.nonces[name] = prev
		} else {
			delete(v.s.nonces, name)
		}
	})
	return nil
}

func (v *memView) IsRelayer(_ context.Context, id domain.Identity) (bool, error) {
	_, ok := v.s.relayers[id]
	return ok, nil
}

func (v *memView) AddRelayer(_ context.Context, id domain.Identity) error {
	if _, ok := v.s.relayers[id]; ok {
		return nil
	}
	v.s.relayers[id] = struct{}{}
	v.record(func() { delete(v.s.relayers, id) })
	return nil
}

func (v *memView) RemoveRelayer(_ context.Context, id domain.Identity) error {
	if _, ok := v.s.relayers[id]; !ok {
		return nil
	}
	delete(v.s.relayers, id)
	v.record(func() { v.s.relayers[id] = struct{}{} })
	return nil
}

func (v *memView) ListRelayers(_ context.Context) ([]domain.Identity, error) {
	out := make([]domain.Identity, 0, len(v.s.relayers))
	for id := range v.s.relayers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (v *memView) PrimaryName(_ context.Context, id domain.Identity) (models.Name, error) {
	n, ok := v.s.primary[id]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return n, nil
}

func (v *memView) SetPrimaryName(_ context.Context, id domain.Identity, name models.Name) error {
	prev, existed := v.s.primary[id]
	v.s.primary[id] = name
	v.record(func() {
		if existed {
			v.s.primary[id] = prev
		} else {
			delete(v.s.primary, id)
		}
	})
	return nil
}

func (v *memView) ClearPrimaryName(_ context.Context, id domain.Identity) error {
	prev, existed := v.s.primary[id]
	if !existed {
		return nil
	}
	delete(v.s.primary, id)
	v.record(func() { v.s.primary[id] = prev })
	return nil
}

func (v *memView) AuthorizedKeys(_ context.Context, id domain.Identity) ([][]byte, error) {
	keys := v.s.keys[id]
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = bytes.Clone(k)
	}
	return out, nil
}

func (v *memView) AddAuthorizedKey(_ context.Context, id domain.Identity, key []byte) error {
	prev := v.s.keys[id]
	if slices.ContainsFunc(prev, func(k []byte) bool { return bytes.Equal(k, key) }) {
		return nil
	}
	v.s.keys[id] = append(slices.Clip(prev), bytes.Clone(key))
	v.record(func() { v.restoreKeys(id, prev) })
	return nil
}

func (v *memView) RemoveAuthorizedKey(_ context.Context, id domain.Identity, key []byte) error {
	prev := v.s.keys[id]
	idx := slices.IndexFunc(prev, func(k []byte) bool { return bytes.Equal(k, key) })
	if idx < 0 {
		return sentinel.ErrNotFound
	}
	v.s.keys[id] = slices.Delete(slices.Clone(prev), idx, idx+1)
	v.record(func() { v.restoreKeys(id, prev) })
	return nil
}

func (v *memView) restoreKeys(id domain.Identity, keys [][]byte) {
	if len(keys) == 0 {
		delete(v.s.keys, id)
		return
	}
	v.s.keys[id] = keys
}

func (v *memView) AppendEvents(_ context.Context, events ...models.Event) error {
	n := len(v.s.outbox)
	for _, e := range events {
		v.s.outbox = append(v.s.outbox, e)
	}
	v.record(func() { v.s.outbox = v.s.outbox[:n] })
	return nil
}

func (v *memView) PendingEvents(_ context.Context, limit int) ([]models.Event, error) {
	n := len(v.s.outbox)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]models.Event(nil), v.s.outbox[:n]...), nil
}

// MarkPublished drops the acknowledged events from the outbox.
func (v *memView) MarkPublished(_ context.Context, ids ...uuid.UUID) error {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	kept := make([]models.Event, 0, len(v.s.outbox))
	for _, e := range v.s.outbox {
		if _, ok := want[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(v.s.outbox) {
		return nil
	}
	prev := v.s.outbox
	v.s.outbox = kept
	v.record(func() { v.s.outbox = prev })
	return nil
}

var (
	_ Store = (*Memory)(nil)
	_ Tx    = (*Memory)(nil)
	_ Store = (*memView)(nil)
)
