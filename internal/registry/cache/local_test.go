package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nominal/internal/registry/models"
)

type LocalCacheSuite struct {
	suite.Suite
	cache *Local
	ctx   context.Context
}

func TestLocalCacheSuite(t *testing.T) {
	suite.Run(t, new(LocalCacheSuite))
}

func (s *LocalCacheSuite) SetupTest() {
	s.cache = NewLocal(time.Minute)
	s.ctx = context.Background()
}

func (s *LocalCacheSuite) TestRoundTrip() {
	record := models.NewRecord("alice", "alice.near", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.cache.Fill(s.ctx, record))

	got, ok, err := s.cache.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(*record, *got)

	s.Run("returned copies are independent", func() {
		got.Owner = "mallory.near"
		again, _, _ := s.cache.Get(s.ctx, "alice")
		s.Equal(record.Owner, again.Owner)
	})
}

func (s *LocalCacheSuite) TestInvalidate() {
	s.Require().NoError(s.cache.Fill(s.ctx, models.NewRecord("alice", "alice.near", time.Now())))
	s.Require().NoError(s.cache.Fill(s.ctx, models.NewRecord("bob", "bob.near", time.Now())))

	s.Require().NoError(s.cache.Invalidate(s.ctx, "alice", "bob"))

	_, ok, err := s.cache.Get(s.ctx, "alice")
	s.NoError(err)
	s.False(ok)
	_, ok, _ = s.cache.Get(s.ctx, "bob")
	s.False(ok)
}

func (s *LocalCacheSuite) TestMiss() {
	_, ok, err := s.cache.Get(s.ctx, "nobody")
	s.NoError(err)
	s.False(ok)
}

func (s *LocalCacheSuite) TestFillNeverReplacesAnEntry() {
	s.Require().NoError(s.cache.Fill(s.ctx, models.NewRecord("alice", "alice.near", time.Now())))
	s.Require().NoError(s.cache.Fill(s.ctx, models.NewRecord("alice", "mallory.near", time.Now())))

	got, ok, err := s.cache.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("alice.near", got.Owner.String())
}

func (s *LocalCacheSuite) TestStaleFillAfterInvalidateIsDropped() {
	s.cache = NewLocal(time.Minute).WithFillGuard(50 * time.Millisecond)
	stale := models.NewRecord("alice", "alice.near", time.Now())

	// A reader loaded stale before the owner changed; the writer invalidates
	// first, then the reader tries to fill.
	s.Require().NoError(s.cache.Invalidate(s.ctx, "alice"))
	s.Require().NoError(s.cache.Fill(s.ctx, stale))

	_, ok, err := s.cache.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.False(ok, "stale fill must not land while the invalidation holds")

	s.Eventually(func() bool {
		_ = s.cache.Fill(s.ctx, models.NewRecord("alice", "bob.near", time.Now()))
		got, ok, _ := s.cache.Get(s.ctx, "alice")
		return ok && got.Owner == "bob.near"
	}, time.Second, 10*time.Millisecond, "fills resume once the invalidation expires")
}
