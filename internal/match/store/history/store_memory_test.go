package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/match/models"
	id "bloodlink/pkg/domain"
)

type HistoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *HistoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestHistoryStoreSuite(t *testing.T) {
	suite.Run(t, new(HistoryStoreSuite))
}

func (s *HistoryStoreSuite) append(donorID id.DonorID, recipientID id.UserID, requestID id.RequestID) *models.BloodMatchHistory {
	h, err := models.NewBloodMatchHistory(id.NewHistoryID(), id.BloodONeg, id.BloodAPos, true)
	s.Require().NoError(err)
	h.LinkParticipants(donorID, recipientID, requestID)
	s.Require().NoError(s.store.Append(s.ctx, h))
	return h
}

func (s *HistoryStoreSuite) TestAppendAndList() {
	donorID := id.NewDonorID()
	recipientID := id.NewUserID()
	first := s.append(donorID, recipientID, id.NewRequestID())
	second := s.append(donorID, id.NewUserID(), id.RequestID{})
	s.append(id.NewDonorID(), id.NewUserID(), id.RequestID{})

	got, err := s.store.List(s.ctx, Filter{DonorID: donorID})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	ids := []id.HistoryID{got[0].ID, got[1].ID}
	s.ElementsMatch([]id.HistoryID{first.ID, second.ID}, ids)

	got, err = s.store.List(s.ctx, Filter{RecipientID: recipientID})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(first.ID, got[0].ID)

	got, err = s.store.List(s.ctx, Filter{})
	s.Require().NoError(err)
	s.Len(got, 3)
}

func (s *HistoryStoreSuite) TestPagination() {
	for range 5 {
		s.append(id.NewDonorID(), id.NewUserID(), id.RequestID{})
	}

	got, err := s.store.List(s.ctx, Filter{Limit: 2})
	s.Require().NoError(err)
	s.Len(got, 2)

	got, err = s.store.List(s.ctx, Filter{Offset: 4})
	s.Require().NoError(err)
	s.Len(got, 1)

	got, err = s.store.List(s.ctx, Filter{Offset: 10})
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *HistoryStoreSuite) TestClearRequestLinks() {
	requestID := id.NewRequestID()
	linked := s.append(id.NewDonorID(), id.NewUserID(), requestID)
	other := s.append(id.NewDonorID(), id.NewUserID(), id.NewRequestID())

	s.Require().NoError(s.store.ClearRequestLinks(s.ctx, requestID))

	got, err := s.store.List(s.ctx, Filter{})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	for _, h := range got {
		switch h.ID {
		case linked.ID:
			s.True(h.RequestID.IsNil(), "the link is cleared")
		case other.ID:
			s.False(h.RequestID.IsNil(), "unrelated links survive")
		}
	}
}
