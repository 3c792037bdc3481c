package service

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"nominal/internal/registry/cache"
	"nominal/internal/registry/guard"
	"nominal/internal/registry/metrics"
	"nominal/internal/registry/models"
	"nominal/internal/registry/payment"
	"nominal/internal/registry/signing"
	"nominal/internal/registry/store"
	"nominal/pkg/domain"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/requestcontext"
)

const (
	origin                     = "registry.test"
	admin      domain.Identity = "admin.near"
	treasury   domain.Identity = "treasury.near"
	alice      domain.Identity = "alice.near"
	carol      domain.Identity = "carol.near"
	dave       domain.Identity = "dave.near"
	near       domain.AssetID  = "near"
	usdc       domain.AssetID  = "usdc"
	initialBal domain.Amount   = 5000
)

// =============================================================================
// Registration Service Test Suite
// =============================================================================
// Justification for unit tests: the service is where atomicity, fee routing
// and the primary-name rules meet. These tests run against the in-memory
// store and ledger with real signatures so every effect is observable.

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	store  *store.Memory
	ledger *payment.Memory
	cache  *cache.Local
	svc    *Service
	bob    *signing.Signer
	bobID  domain.Identity
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = store.NewMemory()
	s.ledger = payment.NewMemory()
	s.cache = cache.NewLocal(time.Minute)

	verifier, err := signing.New(signing.Ed25519, s.store)
	s.Require().NoError(err)
	g, err := guard.New(origin, verifier)
	s.Require().NoError(err)

	s.svc, err = New(s.store, s.ledger, g,
		WithClock(func() time.Time { return s.now }),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithCache(s.cache),
	)
	s.Require().NoError(err)

	_, err = s.svc.Initialize(s.ctx, admin, models.InitParams{
		Treasury:        treasury,
		RegistrationFee: 1000,
		ReferrerBps:     300,
		NativeAsset:     near,
	})
	s.Require().NoError(err)

	s.bob, err = signing.GenerateSigner(signing.Ed25519, rand.Reader)
	s.Require().NoError(err)
	s.bobID = signing.ImplicitIdentity(s.bob.Public)

	for _, id := range []domain.Identity{alice, carol, dave, s.bobID, treasury} {
		s.Require().NoError(s.ledger.Credit(id, near, initialBal))
	}
	s.drainOutbox()
}

func (s *ServiceSuite) balance(id domain.Identity) domain.Amount {
	return s.ledger.Balance(id, near)
}

func (s *ServiceSuite) drainOutbox() []models.Event {
	events, err := s.store.PendingEvents(s.ctx, 1000)
	s.Require().NoError(err)
	for _, e := range events {
		s.Require().NoError(s.store.MarkPublished(s.ctx, e.ID))
	}
	return events
}

func eventTypes(events []models.Event) []models.EventType {
	out := make([]models.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func (s *ServiceSuite) sponsoredRequest(name models.Name) models.SponsoredRequest {
	return models.SponsoredRequest{
		Name:     name,
		Owner:    s.bobID,
		Sponsor:  carol,
		Asset:    near,
		Amount:   1000,
		Deadline: s.now.Add(time.Hour),
	}
}

func (s *ServiceSuite) sign(req models.SponsoredRequest) []byte {
	d := guard.Digest(origin, req)
	return s.bob.Sign(d[:])
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Require().True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

// =============================================================================
// End-to-end scenarios
// =============================================================================

func (s *ServiceSuite) TestScenarioDirectRegistration() {
	receipt, err := s.svc.RegisterDirect(s.ctx, alice, "alice", near, 1000)
	s.Require().NoError(err)

	s.Equal(alice, receipt.Record.Owner)
	s.Equal(alice, receipt.Record.Resolved)
	s.Equal(domain.Amount(1000), receipt.TreasuryAmount)
	s.Zero(receipt.ReferrerAmount)
	s.True(receipt.Referrer.IsNil())
	s.True(receipt.PrimarySet)

	s.Equal(initialBal+1000, s.balance(treasury))
	s.Equal(initialBal-1000, s.balance(alice))

	record, err := s.svc.GetRecord(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(alice, record.Owner)

	s.Equal([]models.EventType{
		models.EventNameRegistered, models.EventFeePaid, models.EventPrimaryNameSet,
	}, eventTypes(s.drainOutbox()))
}

func (s *ServiceSuite) TestScenarioSponsoredRegistration() {
	s.Run("referrer share goes to the sponsor", func() {
		req := s.sponsoredRequest("bob")
		receipt, err := s.svc.RegisterSponsored(s.ctx, carol, req, s.sign(req), 1000)
		s.Require().NoError(err)

		s.Equal(s.bobID, receipt.Record.Owner)
		s.Equal(carol, receipt.Payer)
		s.Equal(carol, receipt.Referrer)
		s.Equal(domain.Amount(30), receipt.ReferrerAmount)
		s.Equal(domain.Amount(970), receipt.TreasuryAmount)
		s.Zero(receipt.Change)

		s.Equal(initialBal+970, s.balance(treasury))
		s.Equal(initialBal-970, s.balance(carol))
		s.Equal(initialBal, s.balance(s.bobID))

		name, ok, err := s.svc.NameOf(s.ctx, s.bobID)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(models.Name("bob"), name)
	})

	s.Run("overpayment stays with the sponsor as change", func() {
		req := s.sponsoredRequest("bobby")
		receipt, err := s.svc.RegisterSponsored(s.ctx, carol, req, s.sign(req), 1500)
		s.Require().NoError(err)
		s.Equal(domain.Amount(500), receipt.Change)
		s.Equal(domain.Amount(1000), receipt.Total)
		s.Equal(initialBal-2*970, s.balance(carol))
	})
}

func (s *ServiceSuite) TestScenarioAdminHandoff() {
	const x, y domain.Identity = "x.near", "y.near"

	s.Require().NoError(s.svc.TransferAdmin(s.ctx, admin, x))

	err := s.svc.AcceptAdmin(s.ctx, y)
	s.requireCode(err, dErrors.CodeUnauthorized)
	cfg, err := s.svc.GetConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(admin, cfg.Admin)
	s.Equal(x, cfg.PendingAdmin)

	s.Require().NoError(s.svc.AcceptAdmin(s.ctx, x))
	cfg, err = s.svc.GetConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(x, cfg.Admin)
	s.True(cfg.PendingAdmin.IsNil())

	s.requireCode(s.svc.SetRegistrationFee(s.ctx, admin, 1), dErrors.CodeUnauthorized)
	s.requireCode(s.svc.AcceptAdmin(s.ctx, x), dErrors.CodeUnauthorized)
}

// =============================================================================
// Registration rules
// =============================================================================

func (s *ServiceSuite) TestDuplicateRegistrationLeavesStateUnchanged() {
	_, err := s.svc.RegisterDirect(s.ctx, alice, "alice", near, 1000)
	s.Require().NoError(err)
	s.drainOutbox()
	treasuryBefore, daveBefore := s.balance(treasury), s.balance(dave)

	_, err = s.svc.RegisterDirect(s.ctx, dave, "alice", near, 1000)
	s.requireCode(err, dErrors.CodeNameTaken)

	record, err := s.svc.GetRecord(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(alice, record.Owner)
	s.Equal(treasuryBefore, s.balance(treasury))
	s.Equal(daveBefore, s.balance(dave))
	_, ok, err := s.svc.NameOf(s.ctx, dave)
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(s.drainOutbox())
}

func (s *ServiceSuite) TestConcurrentRegistrationSettlesOnce() {
	callers := []domain.Identity{alice, carol, dave, s.bobID}
	errs := make([]error, len(callers))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, caller := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = s.svc.RegisterDirect(s.ctx, caller, "contested", near, 1000)
		}()
	}
	close(start)
	wg.Wait()

	var winner domain.Identity
	for i, err := range errs {
		if err == nil {
			s.Require().True(winner.IsNil(), "more than one registration succeeded")
			winner = callers[i]
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeNameTaken), "loser got %v", err)
	}
	s.Require().False(winner.IsNil(), "no registration succeeded")

	record, err := s.svc.GetRecord(s.ctx, "contested")
	s.Require().NoError(err)
	s.Equal(winner, record.Owner)
	s.Equal(initialBal+1000, s.balance(treasury), "exactly one fee reaches the treasury")
	for _, caller := range callers {
		want := initialBal
		if caller == winner {
			want -= 1000
		}
		s.Equal(want, s.balance(caller), "balance of %s", caller)
	}
	s.Equal([]models.EventType{
		models.EventNameRegistered, models.EventFeePaid, models.EventPrimaryNameSet,
	}, eventTypes(s.drainOutbox()))
}

func (s *ServiceSuite) TestStaleCacheFillAfterTransferIsIgnored() {
	_, err := s.svc.RegisterDirect(s.ctx, alice, "alice", near, 1000)
	s.Require().NoError(err)
	stale, err := s.svc.GetRecord(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.svc.TransferName(s.ctx, alice, "alice", carol)
	s.Require().NoError(err)

	// A reader that loaded the record before the transfer fills late.
	s.Require().NoError(s.cache.Fill(s.ctx, stale))

	record, err := s.svc.GetRecord(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(carol, record.Owner)
}

func (s *ServiceSuite) TestRegisterDirectRejections() {
	s.Run("invalid names", func() {
		for _, raw := range []string{"ab", "Alice", "-abc", "abc-", "a--b", "al ice"} {
			_, err := s.svc.RegisterDirect(s.ctx, alice, raw, near, 1000)
			s.requireCode(err, dErrors.CodeInvalidName)
		}
	})

	s.Run("underpayment", func() {
		_, err := s.svc.RegisterDirect(s.ctx, alice, "alice", near, 999)
		s.requireCode(err, dErrors.CodeWrongFee)
	})

	s.Run("asset without an enabled fee", func() {
		_, err := s.svc.RegisterDirect(s.ctx, alice, "alice", usdc, 1000)
		s.requireCode(err, dErrors.CodeAssetNotAllowed)
	})

	s.Run("anonymous caller", func() {
		_, err := s.svc.RegisterDirect(s.ctx, "", "alice", near, 1000)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Equal(initialBal, s.balance(alice))
	s.Empty(s.drainOutbox())
}

func (s *ServiceSuite) TestRegisterInNonNativeAsset() {
	s.Require().NoError(s.svc.SetAssetFee(s.ctx, admin, models.AssetFee{Asset: usdc, Amount: 25, Enabled: true}))
	s.Require().NoError(s.ledger.Credit(alice, usdc, 100))

	quoted, err := s.svc.QuoteFee(s.ctx, usdc)
	s.Require().NoError(err)
	s.Equal(domain.Amount(25), quoted)

	receipt, err := s.svc.RegisterDirect(s.ctx, alice, "alice", usdc, 30)
	s.Require().NoError(err)
	s.Equal(usdc, receipt.Asset)
	s.Equal(domain.Amount(5), receipt.Change)
	s.Equal(domain.Amount(75), s.ledger.Balance(alice, usdc))
	s.Equal(domain.Amount(25), s.ledger.Balance(treasury, usdc))

	s.Require().NoError(s.svc.SetAssetFee(s.ctx, admin, models.AssetFee{Asset: usdc, Amount: 25, Enabled: false}))
	_, err = s.svc.RegisterDirect(s.ctx, alice, "alice2", usdc, 25)
	s.requireCode(err, dErrors.CodeAssetNotAllowed)
}

func (s *ServiceSuite) TestFailedTransferRollsBackRegistration() {
	s.Run("insufficient balance", func() {
		_, err := s.svc.RegisterDirect(s.ctx, "pauper.near", "pauper", near, 1000)
		s.requireCode(err, dErrors.CodeTransferFailed)

		_, err = s.svc.GetRecord(s.ctx, "pauper")
		s.requireCode(err, dErrors.CodeNameNotFound)
		_, ok, _ := s.svc.NameOf(s.ctx, "pauper.near")
		s.False(ok)
		s.Empty(s.drainOutbox())
	})

	s.Run("skimming asset on the sponsored path keeps the nonce", func() {
		s.Require().NoError(s.ledger.SetSkim(near, 100))
		defer func() { s.Require().NoError(s.ledger.SetSkim(near, 0)) }()

		req := s.sponsoredRequest("bob")
		_, err := s.svc.RegisterSponsored(s.ctx, carol, req, s.sign(req), 1000)
		s.requireCode(err, dErrors.CodeTransferFailed)

		nonce, err := s.svc.GetNonce(s.ctx, "bob")
		s.Require().NoError(err)
		s.Zero(nonce)
		s.Equal(initialBal, s.balance(carol))
		s.Equal(initialBal, s.balance(treasury))
	})
}

// =============================================================================
// Sponsored path
// =============================================================================

func (s *ServiceSuite) TestReplayIsRejectedAndNonceIsMonotonic() {
	req := s.sponsoredRequest("bob")
	sig := s.sign(req)
	_, err := s.svc.RegisterSponsored(s.ctx, carol, req, sig, 1000)
	s.Require().NoError(err)

	nonce, err := s.svc.GetNonce(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(uint64(1), nonce)

	_, err = s.svc.RegisterSponsored(s.ctx, carol, req, sig, 1000)
	s.requireCode(err, dErrors.CodeNameTaken)

	other := s.sponsoredRequest("bobcat")
	other.Nonce = 1
	_, err = s.svc.RegisterSponsored(s.ctx, carol, other, s.sign(other), 1000)
	s.requireCode(err, dErrors.CodeBadNonce)

	other.Nonce = 0
	_, err = s.svc.RegisterSponsored(s.ctx, carol, other, s.sign(other), 1000)
	s.Require().NoError(err)
	nonce, err = s.svc.GetNonce(s.ctx, "bobcat")
	s.Require().NoError(err)
	s.Equal(uint64(1), nonce)
}

func (s *ServiceSuite) TestSponsoredRejections() {
	cases := []struct {
		name   string
		mutate func(req *models.SponsoredRequest) (caller domain.Identity, sig []byte, fee domain.Amount)
		code   dErrors.Code
	}{
		{
			name: "caller is not the sponsor",
			mutate: func(req *models.SponsoredRequest) (domain.Identity, []byte, domain.Amount) {
				return dave, s.sign(*req), 1000
			},
			code: dErrors.CodeWrongSponsor,
		},
		{
			name: "deadline passed",
			mutate: func(req *models.SponsoredRequest) (domain.Identity, []byte, domain.Amount) {
				req.Deadline = s.now.Add(-time.Second)
				return carol, s.sign(*req), 1000
			},
			code: dErrors.CodeDeadlineExpired,
		},
		{
			name: "signature over different terms",
			mutate: func(req *models.SponsoredRequest) (domain.Identity, []byte, domain.Amount) {
				sig := s.sign(*req)
				req.Amount = 1
				return carol, sig, 1000
			},
			code: dErrors.CodeBadSignature,
		},
		{
			name: "signed amount is not the fee",
			mutate: func(req *models.SponsoredRequest) (domain.Identity, []byte, domain.Amount) {
				req.Amount = 900
				return carol, s.sign(*req), 1000
			},
			code: dErrors.CodeWrongFee,
		},
		{
			name: "sponsor underpays",
			mutate: func(req *models.SponsoredRequest) (domain.Identity, []byte, domain.Amount) {
				return carol, s.sign(*req), 999
			},
			code: dErrors.CodeWrongFee,
		},
		{
			name: "invalid name",
			mutate: func(req *models.SponsoredRequest) (domain.Identity, []byte, domain.Amount) {
				req.Name = "B0b"
				return carol, s.sign(*req), 1000
			},
			code: dErrors.CodeInvalidName,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.sponsoredRequest("bob")
			caller, sig, fee := tc.mutate(&req)
			_, err := s.svc.RegisterSponsored(s.ctx, caller, req, sig, fee)
			s.requireCode(err, tc.code)

			nonce, err := s.svc.GetNonce(s.ctx, "bob")
			s.Require().NoError(err)
			s.Zero(nonce, "failed request must not consume the nonce")
		})
	}
	s.Equal(initialBal, s.balance(carol))
	s.Empty(s.drainOutbox())
}

func (s *ServiceSuite) TestRelayerAllowlist() {
	s.Require().NoError(s.svc.SetRequireAllowlistedRelayer(s.ctx, admin, true))

	allowed, err := s.svc.IsRelayerAllowed(s.ctx, carol)
	s.Require().NoError(err)
	s.False(allowed)

	req := s.sponsoredRequest("bob")
	_, err = s.svc.RegisterSponsored(s.ctx, carol, req, s.sign(req), 1000)
	s.requireCode(err, dErrors.CodeRelayerNotAllowed)

	s.Require().NoError(s.svc.AddRelayer(s.ctx, admin, carol))
	allowed, err = s.svc.IsRelayerAllowed(s.ctx, carol)
	s.Require().NoError(err)
	s.True(allowed)
	relayers, err := s.svc.ListRelayers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]domain.Identity{carol}, relayers)

	_, err = s.svc.RegisterSponsored(s.ctx, carol, req, s.sign(req), 1000)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RemoveRelayer(s.ctx, admin, carol))
	s.Require().NoError(s.svc.SetRequireAllowlistedRelayer(s.ctx, admin, false))
	allowed, err = s.svc.IsRelayerAllowed(s.ctx, dave)
	s.Require().NoError(err)
	s.True(allowed, "everyone may sponsor when the allowlist is off")
}

func (s *ServiceSuite) TestAuthorizedKeySignsForNamedIdentity() {
	signer, err := signing.GenerateSigner(signing.Ed25519, rand.Reader)
	s.Require().NoError(err)

	req := s.sponsoredRequest("dave")
	req.Owner = dave
	d := guard.Digest(origin, req)
	sig := signer.Sign(d[:])

	_, err = s.svc.RegisterSponsored(s.ctx, carol, req, sig, 1000)
	s.requireCode(err, dErrors.CodeBadSignature)

	fingerprint, err := s.svc.AuthorizeKey(s.ctx, dave, signer.Public)
	s.Require().NoError(err)
	s.Equal(signing.Fingerprint(signer.Public), fingerprint)

	receipt, err := s.svc.RegisterSponsored(s.ctx, carol, req, sig, 1000)
	s.Require().NoError(err)
	s.Equal(dave, receipt.Record.Owner)

	s.Require().NoError(s.svc.RevokeKey(s.ctx, dave, signer.Public))
	s.requireCode(s.svc.RevokeKey(s.ctx, dave, signer.Public), dErrors.CodeNotFound)

	_, err = s.svc.AuthorizeKey(s.ctx, dave, []byte("short"))
	s.requireCode(err, dErrors.CodeInvalidInput)
}

// =============================================================================
// Primary names and ownership
// =============================================================================

func (s *ServiceSuite) TestPrimaryNameInvariants() {
	_, err := s.svc.RegisterDirect(s.ctx, alice, "name1", near, 1000)
	s.Require().NoError(err)
	receipt, err := s.svc.RegisterDirect(s.ctx, alice, "name2", near, 1000)
	s.Require().NoError(err)
	s.False(receipt.PrimarySet)

	name, _, err := s.svc.NameOf(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(models.Name("name1"), name)

	s.Require().NoError(s.svc.SetPrimaryName(s.ctx, alice, "name2"))
	name, _, err = s.svc.NameOf(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(models.Name("name2"), name)

	s.requireCode(s.svc.SetPrimaryName(s.ctx, dave, "name1"), dErrors.CodeUnauthorized)
	s.requireCode(s.svc.SetPrimaryName(s.ctx, alice, "nobody"), dErrors.CodeNameNotFound)
	s.requireCode(s.svc.SetPrimaryName(s.ctx, alice, "Name1"), dErrors.CodeInvalidName)
}

func (s *ServiceSuite) TestTransferInvariants() {
	_, err := s.svc.RegisterDirect(s.ctx, alice, "alice", near, 1000)
	s.Require().NoError(err)

	s.Run("new owner without a primary gains it", func() {
		_, err := s.svc.TransferName(s.ctx, alice, "alice", dave)
		s.Require().NoError(err)

		_, ok, err := s.svc.NameOf(s.ctx, alice)
		s.Require().NoError(err)
		s.False(ok)
		name, ok, err := s.svc.NameOf(s.ctx, dave)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(models.Name("alice"), name)
	})

	s.Run("new owner keeps an existing primary", func() {
		_, err := s.svc.RegisterDirect(s.ctx, carol, "carol", near, 1000)
		s.Require().NoError(err)
		_, err = s.svc.TransferName(s.ctx, dave, "alice", carol)
		s.Require().NoError(err)

		name, _, err := s.svc.NameOf(s.ctx, carol)
		s.Require().NoError(err)
		s.Equal(models.Name("carol"), name)
		_, ok, _ := s.svc.NameOf(s.ctx, dave)
		s.False(ok)
	})

	s.Run("only the owner may transfer", func() {
		_, err := s.svc.TransferName(s.ctx, alice, "alice", alice)
		s.requireCode(err, dErrors.CodeUnauthorized)
		_, err = s.svc.TransferName(s.ctx, carol, "missing", alice)
		s.requireCode(err, dErrors.CodeNameNotFound)
	})

	s.Run("transfer does not move resolution", func() {
		record, err := s.svc.GetRecord(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(carol, record.Owner, "cache was invalidated after transfer")
		s.Equal(alice, record.Resolved)
	})
}

func (s *ServiceSuite) TestSetResolved() {
	_, err := s.svc.RegisterDirect(s.ctx, alice, "alice", near, 1000)
	s.Require().NoError(err)
	s.drainOutbox()

	later := s.now.Add(time.Minute)
	s.now = later
	record, err := s.svc.SetResolved(s.ctx, alice, "alice", dave)
	s.Require().NoError(err)
	s.Equal(dave, record.Resolved)
	s.True(later.Equal(record.UpdatedAt))

	_, err = s.svc.SetResolved(s.ctx, dave, "alice", dave)
	s.requireCode(err, dErrors.CodeUnauthorized)
	_, err = s.svc.SetResolved(s.ctx, alice, "missing", dave)
	s.requireCode(err, dErrors.CodeNameNotFound)

	record, err = s.svc.SetResolved(s.ctx, alice, "alice", "")
	s.Require().NoError(err)
	s.True(record.Resolved.IsNil())

	s.Equal([]models.EventType{models.EventResolvedUpdated, models.EventResolvedUpdated},
		eventTypes(s.drainOutbox()))
}

// =============================================================================
// Admin
// =============================================================================

func (s *ServiceSuite) TestAdminSetters() {
	s.Run("non-admin is rejected", func() {
		s.requireCode(s.svc.SetRegistrationFee(s.ctx, alice, 1), dErrors.CodeUnauthorized)
		s.requireCode(s.svc.SetTreasury(s.ctx, alice, alice), dErrors.CodeUnauthorized)
		s.requireCode(s.svc.SetReferrerBps(s.ctx, alice, 1), dErrors.CodeUnauthorized)
		s.requireCode(s.svc.AddRelayer(s.ctx, alice, alice), dErrors.CodeUnauthorized)
		s.requireCode(s.svc.TransferAdmin(s.ctx, alice, alice), dErrors.CodeUnauthorized)
	})

	s.Run("invalid values are rejected", func() {
		s.requireCode(s.svc.SetReferrerBps(s.ctx, admin, 10_001), dErrors.CodeInvalidBps)
		s.requireCode(s.svc.SetTreasury(s.ctx, admin, ""), dErrors.CodeZeroTreasury)
	})

	s.Run("valid changes apply", func() {
		s.Require().NoError(s.svc.SetRegistrationFee(s.ctx, admin, 2000))
		s.Require().NoError(s.svc.SetTreasury(s.ctx, admin, dave))
		s.Require().NoError(s.svc.SetReferrerBps(s.ctx, admin, 10_000))

		cfg, err := s.svc.GetConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(domain.Amount(2000), cfg.RegistrationFee)
		s.Equal(dave, cfg.Treasury)
		s.Equal(uint16(10_000), cfg.ReferrerBps)
	})

	s.Equal([]models.EventType{
		models.EventRegistrationFeeSet, models.EventTreasurySet, models.EventReferrerBpsSet,
	}, eventTypes(s.drainOutbox()))
}

func (s *ServiceSuite) TestInitializeOnce() {
	_, err := s.svc.Initialize(s.ctx, alice, models.InitParams{Treasury: alice, NativeAsset: near})
	s.requireCode(err, dErrors.CodeConflict)

	fresh, err := New(store.NewMemory(), s.ledger, s.svc.guard)
	s.Require().NoError(err)
	_, err = fresh.Initialize(s.ctx, admin, models.InitParams{Treasury: "", NativeAsset: near})
	s.requireCode(err, dErrors.CodeZeroTreasury)
	_, err = fresh.Initialize(s.ctx, admin, models.InitParams{Treasury: treasury, ReferrerBps: 10_001, NativeAsset: near})
	s.requireCode(err, dErrors.CodeInvalidBps)
	_, err = fresh.RegisterDirect(s.ctx, alice, "alice", near, 1000)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestEventsCarryRequestID() {
	ctx := requestcontext.WithRequestID(s.ctx, "req-42")
	_, err := s.svc.RegisterDirect(ctx, alice, "alice", near, 1000)
	s.Require().NoError(err)
	for _, e := range s.drainOutbox() {
		s.Equal("req-42", e.RequestID)
	}
}
