package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"nominal/internal/registry/models"
	"nominal/internal/registry/store"
	"nominal/pkg/domain"
	"nominal/pkg/platform/sentinel"
)

// backend is the pair every Store implementation exposes.
type backend interface {
	store.Store
	store.Tx
}

// ContractSuite holds the behavior every Store implementation must share.
// Embedders set newBackend in SetupTest.
type ContractSuite struct {
	suite.Suite
	ctx        context.Context
	newBackend func() backend
	st         backend
}

var errBoom = errors.New("boom")

func (s *ContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.st = s.newBackend()
}

func testConfig() *models.Config {
	return &models.Config{
		Admin:           "admin",
		Treasury:        "treasury",
		RegistrationFee: 1000,
		ReferrerBps:     300,
		NativeAsset:     "near",
	}
}

func (s *ContractSuite) TestRecords() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := models.NewRecord("alice", "alice.near", now)

	s.Run("create and find", func() {
		s.Require().NoError(s.st.CreateRecord(s.ctx, rec))
		got, err := s.st.FindRecord(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(rec.Owner, got.Owner)
		s.Equal(rec.Resolved, got.Resolved)
		s.True(rec.UpdatedAt.Equal(got.UpdatedAt))
	})

	s.Run("duplicate create is rejected", func() {
		err := s.st.CreateRecord(s.ctx, models.NewRecord("alice", "mallory", now))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
		got, err := s.st.FindRecord(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(domain.Identity("alice.near"), got.Owner)
	})

	s.Run("missing record", func() {
		_, err := s.st.FindRecord(s.ctx, "nobody")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		err = s.st.UpdateRecord(s.ctx, models.NewRecord("nobody", "x", now))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("update", func() {
		upd := *rec
		upd.Resolved = "vault.near"
		s.Require().NoError(s.st.UpdateRecord(s.ctx, &upd))
		got, err := s.st.FindRecord(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(domain.Identity("vault.near"), got.Resolved)
	})
}

func (s *ContractSuite) TestConfig() {
	_, err := s.st.LoadConfig(s.ctx)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	cfg := testConfig()
	s.Require().NoError(s.st.CreateConfig(s.ctx, cfg))
	s.Require().ErrorIs(s.st.CreateConfig(s.ctx, cfg), sentinel.ErrAlreadyUsed)

	cfg.RegistrationFee = ^domain.Amount(0)
	cfg.PendingAdmin = "next"
	s.Require().NoError(s.st.SaveConfig(s.ctx, cfg))

	got, err := s.st.LoadConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(*cfg, *got)
}

func (s *ContractSuite) TestAssetFeesAndNonces() {
	_, err := s.st.FindAssetFee(s.ctx, "usdc")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.st.SaveAssetFee(s.ctx, models.AssetFee{Asset: "usdc", Amount: 5, Enabled: true}))
	s.Require().NoError(s.st.SaveAssetFee(s.ctx, models.AssetFee{Asset: "usdc", Amount: 6, Enabled: false}))
	fee, err := s.st.FindAssetFee(s.ctx, "usdc")
	s.Require().NoError(err)
	s.Equal(models.AssetFee{Asset: "usdc", Amount: 6, Enabled: false}, *fee)

	n, err := s.st.Nonce(s.ctx, "bob")
	s.Require().NoError(err)
	s.Zero(n)
	s.Require().NoError(s.st.SetNonce(s.ctx, "bob", 1))
	n, err = s.st.Nonce(s.ctx, "bob")
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *ContractSuite) TestRelayers() {
	s.Require().NoError(s.st.AddRelayer(s.ctx, "relayer-b"))
	s.Require().NoError(s.st.AddRelayer(s.ctx, "relayer-a"))
	s.Require().NoError(s.st.AddRelayer(s.ctx, "relayer-a"))

	ok, err := s.st.IsRelayer(s.ctx, "relayer-a")
	s.Require().NoError(err)
	s.True(ok)

	list, err := s.st.ListRelayers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]domain.Identity{"relayer-a", "relayer-b"}, list)

	s.Require().NoError(s.st.RemoveRelayer(s.ctx, "relayer-a"))
	s.Require().NoError(s.st.RemoveRelayer(s.ctx, "relayer-a"))
	ok, err = s.st.IsRelayer(s.ctx, "relayer-a")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ContractSuite) TestPrimaryNames() {
	s.Require().NoError(s.st.CreateRecord(s.ctx, models.NewRecord("alice", "alice.near", time.Now())))

	_, err := s.st.PrimaryName(s.ctx, "alice.near")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.st.SetPrimaryName(s.ctx, "alice.near", "alice"))
	name, err := s.st.PrimaryName(s.ctx, "alice.near")
	s.Require().NoError(err)
	s.Equal(models.Name("alice"), name)

	s.Require().NoError(s.st.ClearPrimaryName(s.ctx, "alice.near"))
	s.Require().NoError(s.st.ClearPrimaryName(s.ctx, "alice.near"))
	_, err = s.st.PrimaryName(s.ctx, "alice.near")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ContractSuite) TestAuthorizedKeys() {
	k1, k2 := []byte{1, 2, 3}, []byte{4, 5, 6}
	s.Require().NoError(s.st.AddAuthorizedKey(s.ctx, "bob.near", k1))
	s.Require().NoError(s.st.AddAuthorizedKey(s.ctx, "bob.near", k2))
	s.Require().NoError(s.st.AddAuthorizedKey(s.ctx, "bob.near", k1))

	keys, err := s.st.AuthorizedKeys(s.ctx, "bob.near")
	s.Require().NoError(err)
	s.ElementsMatch([][]byte{k1, k2}, keys)

	s.Require().NoError(s.st.RemoveAuthorizedKey(s.ctx, "bob.near", k1))
	s.Require().ErrorIs(s.st.RemoveAuthorizedKey(s.ctx, "bob.near", k1), sentinel.ErrNotFound)

	keys, err = s.st.AuthorizedKeys(s.ctx, "bob.near")
	s.Require().NoError(err)
	s.Equal([][]byte{k2}, keys)
}

func (s *ContractSuite) TestOutbox() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	e1 := models.TreasurySet(now, "t1")
	e2 := models.NameRegistered(now, "alice", "a", "a", "near", 1000)
	e3 := models.RelayerAdded(now, "r")
	s.Require().NoError(s.st.AppendEvents(s.ctx, e1, e2, e3))

	pending, err := s.st.PendingEvents(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(e1.ID, pending[0].ID)
	s.Equal(e2.ID, pending[1].ID)
	s.Equal(e2.Attrs, pending[1].Attrs)

	s.Require().NoError(s.st.MarkPublished(s.ctx, e1.ID, e2.ID))
	pending, err = s.st.PendingEvents(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(e3.ID, pending[0].ID)

	s.Require().NoError(s.st.MarkPublished(s.ctx, uuid.New()))
}

func (s *ContractSuite) TestRunInTx() {
	now := time.Now()
	s.Require().NoError(s.st.CreateConfig(s.ctx, testConfig()))

	s.Run("failure discards every staged mutation", func() {
		err := s.st.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
			s.Require().NoError(tx.CreateRecord(ctx, models.NewRecord("bob", "bob.near", now)))
			s.Require().NoError(tx.SetPrimaryName(ctx, "bob.near", "bob"))
			s.Require().NoError(tx.SetNonce(ctx, "bob", 1))
			s.Require().NoError(tx.AddRelayer(ctx, "carol"))
			s.Require().NoError(tx.AddAuthorizedKey(ctx, "bob.near", []byte{9}))
			s.Require().NoError(tx.AppendEvents(ctx, models.RelayerAdded(now, "carol")))
			cfg, err := tx.LoadConfig(ctx)
			s.Require().NoError(err)
			cfg.Admin = "mallory"
			s.Require().NoError(tx.SaveConfig(ctx, cfg))
			return errBoom
		})
		s.Require().ErrorIs(err, errBoom)

		_, err = s.st.FindRecord(s.ctx, "bob")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.st.PrimaryName(s.ctx, "bob.near")
		s.ErrorIs(err, sentinel.ErrNotFound)
		n, _ := s.st.Nonce(s.ctx, "bob")
		s.Zero(n)
		ok, _ := s.st.IsRelayer(s.ctx, "carol")
		s.False(ok)
		keys, _ := s.st.AuthorizedKeys(s.ctx, "bob.near")
		s.Empty(keys)
		pending, _ := s.st.PendingEvents(s.ctx, 10)
		s.Empty(pending)
		cfg, err := s.st.LoadConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(domain.Identity("admin"), cfg.Admin)
	})

	s.Run("panic discards staged mutations and propagates", func() {
		s.Require().PanicsWithValue("gateway exploded", func() {
			_ = s.st.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
				s.Require().NoError(tx.CreateRecord(ctx, models.NewRecord("bob", "bob.near", now)))
				s.Require().NoError(tx.SetPrimaryName(ctx, "bob.near", "bob"))
				s.Require().NoError(tx.SetNonce(ctx, "bob", 1))
				panic("gateway exploded")
			})
		})

		_, err := s.st.FindRecord(s.ctx, "bob")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.st.PrimaryName(s.ctx, "bob.near")
		s.ErrorIs(err, sentinel.ErrNotFound)
		n, _ := s.st.Nonce(s.ctx, "bob")
		s.Zero(n)
	})

	s.Run("success commits every mutation", func() {
		err := s.st.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
			if err := tx.CreateRecord(ctx, models.NewRecord("bob", "bob.near", now)); err != nil {
				return err
			}
			return tx.SetPrimaryName(ctx, "bob.near", "bob")
		})
		s.Require().NoError(err)

		name, err := s.st.PrimaryName(s.ctx, "bob.near")
		s.Require().NoError(err)
		s.Equal(models.Name("bob"), name)
	})

	s.Run("cancelled context never runs fn", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		called := false
		err := s.st.RunInTx(ctx, func(context.Context, store.Store) error {
			called = true
			return nil
		})
		s.Error(err)
		s.False(called)
	})
}

func (s *ContractSuite) TestTopLevelAccessJoinsOpenTransaction() {
	now := time.Now()

	err := s.st.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
		s.Require().NoError(tx.AddAuthorizedKey(ctx, "bob.near", []byte{7}))

		// The backend itself, reached with the transaction's ctx, sees the
		// staged key and does not block on the open transaction.
		keys, err := s.st.AuthorizedKeys(ctx, "bob.near")
		s.Require().NoError(err)
		s.Len(keys, 1)

		return s.st.RunInTx(ctx, func(ctx context.Context, inner store.Store) error {
			s.Require().NoError(inner.CreateRecord(ctx, models.NewRecord("bob", "bob.near", now)))
			return errBoom
		})
	})
	s.Require().ErrorIs(err, errBoom)

	keys, err := s.st.AuthorizedKeys(s.ctx, "bob.near")
	s.Require().NoError(err)
	s.Empty(keys)
	_, err = s.st.FindRecord(s.ctx, "bob")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
