package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"equitrail/internal/events"
	"equitrail/internal/queue"
	id "equitrail/pkg/domain"
	"equitrail/pkg/requestcontext"
)

type BusSuite struct {
	suite.Suite
	jobs *queue.MemoryQueue
	bus  *events.Bus
	ctx  context.Context
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.jobs = queue.NewMemory(16)
	s.bus = events.NewBus(s.jobs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.ctx = context.Background()
}

func (s *BusSuite) TestSyncListenersRunInOrder() {
	var order []string
	s.bus.SubscribeSync(events.NameKYCVerified, func(context.Context, events.Event) error {
		order = append(order, "first")
		return nil
	})
	s.bus.SubscribeSync(events.NameKYCVerified, func(context.Context, events.Event) error {
		order = append(order, "second")
		return nil
	})

	err := s.bus.Publish(s.ctx, events.KYCVerified{UserID: id.NewUserID()})
	s.Require().NoError(err)
	s.Equal([]string{"first", "second"}, order)
}

func (s *BusSuite) TestSyncErrorAbortsPublication() {
	// Justification: sync listeners share the publisher's transaction, so
	// their failure must surface before any async work is scheduled or the
	// queue would act on a write that rolled back.
	s.bus.SubscribeSync(events.NameKYCVerified, func(context.Context, events.Event) error {
		return errors.New("risk evaluation failed")
	})
	s.bus.SubscribeAsync(events.NameKYCVerified, "referral.reconcile")

	err := s.bus.Publish(s.ctx, events.KYCVerified{UserID: id.NewUserID()})
	s.Require().Error(err)
	s.Equal(0, s.jobs.Len(), "no async job after a sync abort")
}

func (s *BusSuite) TestAsyncListenersBecomeJobs() {
	s.bus.SubscribeAsync(events.NameKYCVerified, "referral.reconcile")
	s.bus.SubscribeAsync(events.NameKYCVerified, "some.other.job")

	userID := id.NewUserID()
	ctx := requestcontext.WithRequestID(s.ctx, "req-7")
	s.Require().NoError(s.bus.Publish(ctx, events.KYCVerified{UserID: userID}))
	s.Require().Equal(2, s.jobs.Len())

	first, err := s.jobs.Dequeue(ctx)
	s.Require().NoError(err)
	second, err := s.jobs.Dequeue(ctx)
	s.Require().NoError(err)

	s.Equal("referral.reconcile", first.Name)
	s.Equal("some.other.job", second.Name)
	s.NotEqual(first.ID, second.ID, "each job carries its own identity")
	s.Equal("req-7", first.RequestID)
	s.Equal("req-7", second.RequestID)

	var ev events.KYCVerified
	s.Require().NoError(json.Unmarshal(first.Payload, &ev))
	s.Equal(userID, ev.UserID)
}

func (s *BusSuite) TestUnsubscribedEventIsANoOp() {
	err := s.bus.Publish(s.ctx, events.TicketClosed{TicketID: id.NewTicketID(), OpenedBy: id.NewUserID()})
	s.Require().NoError(err)
	s.Equal(0, s.jobs.Len())
}
