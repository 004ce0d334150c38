package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

type RequestStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *RequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) newRequest(needed id.BloodType) *models.DonationRequest {
	r, err := models.NewDonationRequest(id.NewRequestID(), id.NewUserID(), id.NewUserID(), needed, "Dhaka")
	s.Require().NoError(err)
	return r
}

func (s *RequestStoreSuite) TestCreateAndFind() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.RecipientID, found.RecipientID)

	_, err = s.store.FindByID(s.ctx, id.NewRequestID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RequestStoreSuite) TestCreateRefusesPendingDuplicatePair() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))

	dup := s.newRequest(id.BloodAPos)
	dup.RequesterID = r.RequesterID
	dup.RecipientID = r.RecipientID
	s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)

	s.Run("a matched request does not block a new pending one", func() {
		donorID := id.NewDonorID()
		_, err := s.store.Mutate(s.ctx, r.ID, func(m *models.DonationRequest) error {
			m.AddCandidate(donorID, time.Now())
			m.MarkAccepted(donorID, time.Now())
			return nil
		})
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, dup))
	})
}

func (s *RequestStoreSuite) TestMutate() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))
	donorID := id.NewDonorID()

	s.Run("persists the applied change", func() {
		updated, err := s.store.Mutate(s.ctx, r.ID, func(m *models.DonationRequest) error {
			m.AddCandidate(donorID, time.Now())
			return nil
		})
		s.Require().NoError(err)
		s.True(updated.IsCandidate(donorID))

		found, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.True(found.IsCandidate(donorID))
	})

	s.Run("an error from fn aborts the write", func() {
		boom := errors.New("boom")
		_, err := s.store.Mutate(s.ctx, r.ID, func(m *models.DonationRequest) error {
			m.Status = models.StatusCancelled
			return boom
		})
		s.Require().ErrorIs(err, boom)

		found, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("unknown request", func() {
		_, err := s.store.Mutate(s.ctx, id.NewRequestID(), func(*models.DonationRequest) error { return nil })
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RequestStoreSuite) TestDeleteIf() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))

	s.Run("an error from fn keeps the row", func() {
		boom := errors.New("boom")
		s.Require().ErrorIs(s.store.DeleteIf(s.ctx, r.ID, func(*models.DonationRequest) error { return boom }), boom)
		_, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
	})

	s.Run("deletes when fn approves", func() {
		s.Require().NoError(s.store.DeleteIf(s.ctx, r.ID, func(*models.DonationRequest) error { return nil }))
		_, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RequestStoreSuite) TestHasPendingWithCandidate() {
	r := s.newRequest(id.BloodONeg)
	donorID := id.NewDonorID()
	r.AddCandidate(donorID, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.HasPendingWithCandidate(s.ctx, r.RecipientID, donorID)
	s.Require().NoError(err)
	s.True(found)

	found, err = s.store.HasPendingWithCandidate(s.ctx, r.RecipientID, id.NewDonorID())
	s.Require().NoError(err)
	s.False(found)

	found, err = s.store.HasPendingWithCandidate(s.ctx, id.NewUserID(), donorID)
	s.Require().NoError(err)
	s.False(found)
}

func (s *RequestStoreSuite) TestListings() {
	recipientID := id.NewUserID()
	requesterID := id.NewUserID()

	pending := s.newRequest(id.BloodONeg)
	pending.RecipientID = recipientID
	pending.RequesterID = requesterID
	pending.SetLocation("Dhaka", "Dhaka Division", "Bangladesh")
	s.Require().NoError(s.store.Create(s.ctx, pending))

	other := s.newRequest(id.BloodAPos)
	other.RecipientID = recipientID
	other.SetLocation("Chattogram", "Chattogram Division", "Bangladesh")
	s.Require().NoError(s.store.Create(s.ctx, other))

	donorID := id.NewDonorID()
	_, err := s.store.Mutate(s.ctx, other.ID, func(m *models.DonationRequest) error {
		m.AddCandidate(donorID, time.Now())
		m.MarkAccepted(donorID, time.Now())
		return nil
	})
	s.Require().NoError(err)

	s.Run("incoming lists pending for the recipient", func() {
		got, err := s.store.ListIncoming(s.ctx, recipientID)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(pending.ID, got[0].ID)
	})

	s.Run("outgoing lists pending for the requester", func() {
		got, err := s.store.ListOutgoing(s.ctx, requesterID)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(pending.ID, got[0].ID)
	})

	s.Run("by recipient includes matched requests", func() {
		got, err := s.store.ListByRecipient(s.ctx, recipientID)
		s.Require().NoError(err)
		s.Len(got, 2)
	})

	s.Run("active covers pending and matched with filters", func() {
		got, err := s.store.ListActive(s.ctx, ActiveFilter{})
		s.Require().NoError(err)
		s.Len(got, 2)

		got, err = s.store.ListActive(s.ctx, ActiveFilter{BloodType: id.BloodAPos})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(other.ID, got[0].ID)

		got, err = s.store.ListActive(s.ctx, ActiveFilter{Country: "bangladesh"})
		s.Require().NoError(err)
		s.Len(got, 2)
	})

	s.Run("history filters and paginates", func() {
		got, err := s.store.ListHistory(s.ctx, HistoryFilter{Status: models.StatusMatched})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(other.ID, got[0].ID)

		got, err = s.store.ListHistory(s.ctx, HistoryFilter{City: "dhaka"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(pending.ID, got[0].ID)

		got, err = s.store.ListHistory(s.ctx, HistoryFilter{Limit: 1})
		s.Require().NoError(err)
		s.Len(got, 1)

		got, err = s.store.ListHistory(s.ctx, HistoryFilter{Offset: 5})
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *RequestStoreSuite) TestListByParticipant() {
	userID := id.NewUserID()

	incoming := s.newRequest(id.BloodONeg)
	incoming.RecipientID = userID
	s.Require().NoError(s.store.Create(s.ctx, incoming))

	outgoing := s.newRequest(id.BloodAPos)
	outgoing.RequesterID = userID
	s.Require().NoError(s.store.Create(s.ctx, outgoing))

	s.Require().NoError(s.store.Create(s.ctx, s.newRequest(id.BloodBPos)))

	got, err := s.store.ListByParticipant(s.ctx, userID)
	s.Require().NoError(err)
	s.Len(got, 2)
}
