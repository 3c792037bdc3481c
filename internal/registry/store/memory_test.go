package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nominal/internal/registry/models"
	"nominal/internal/registry/store"
	"nominal/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	ContractSuite
}

func TestMemoryStoreSuite(t *testing.T) {
	s := new(MemoryStoreSuite)
	s.newBackend = func() backend { return store.NewMemory() }
	suite.Run(t, s)
}

// TestConcurrentRegistration verifies that racing creates of one name resolve
// by commit order with exactly one winner.
func (s *MemoryStoreSuite) TestConcurrentRegistration() {
	const goroutines = 50
	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		conflict atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.st.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
				return tx.CreateRecord(ctx, models.NewRecord("race", "someone", time.Now()))
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflict.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflict.Load())
}

func (s *MemoryStoreSuite) TestReadsDoNotSeeInFlightTransaction() {
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = s.st.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
			_ = tx.CreateRecord(ctx, models.NewRecord("pending", "someone", time.Now()))
			close(entered)
			<-release
			return errBoom
		})
	}()

	<-entered
	found := make(chan error, 1)
	go func() {
		_, err := s.st.FindRecord(s.ctx, "pending")
		found <- err
	}()

	select {
	case <-found:
		s.Fail("read completed while a transaction held the writer lock")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
	s.ErrorIs(<-found, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestMarkPublishedPrunesOutbox() {
	mem := s.st.(*store.Memory)
	now := time.Now()
	e1 := models.RelayerAdded(now, "r1")
	e2 := models.RelayerAdded(now, "r2")
	s.Require().NoError(mem.AppendEvents(s.ctx, e1, e2))
	s.Equal(2, mem.OutboxLen())

	s.Require().NoError(mem.MarkPublished(s.ctx, e1.ID))
	s.Equal(1, mem.OutboxLen())

	s.Run("rollback restores pruned events", func() {
		err := mem.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
			s.Require().NoError(tx.MarkPublished(ctx, e2.ID))
			return errBoom
		})
		s.Require().ErrorIs(err, errBoom)
		pending, err := mem.PendingEvents(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(e2.ID, pending[0].ID)
	})

	s.Require().NoError(mem.MarkPublished(s.ctx, e2.ID))
	s.Zero(mem.OutboxLen())
}
