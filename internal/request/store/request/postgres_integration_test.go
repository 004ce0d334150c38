//go:build integration

package request

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/testutil/containers"
)

type PostgresRequestStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
}

func (s *PostgresRequestStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresRequestStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func TestPostgresRequestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed suite in short mode")
	}
	suite.Run(t, new(PostgresRequestStoreSuite))
}

func (s *PostgresRequestStoreSuite) newRequest(needed id.BloodType) *models.DonationRequest {
	r, err := models.NewDonationRequest(id.NewRequestID(), id.NewUserID(), id.NewUserID(), needed, "Dhaka")
	s.Require().NoError(err)
	return r
}

func (s *PostgresRequestStoreSuite) TestRoundTrip() {
	donorID := id.NewDonorID()
	r := s.newRequest(id.BloodONeg)
	r.SetLocation("Dhaka", "Dhaka Division", "Bangladesh")
	r.AddCandidate(donorID, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.RequesterID, found.RequesterID)
	s.Equal(r.RecipientID, found.RecipientID)
	s.Equal(r.BloodTypeNeeded, found.BloodTypeNeeded)
	s.Equal("Dhaka", found.City)
	s.True(found.IsCandidate(donorID))
	s.Empty(found.AcceptedDonors)

	_, err = s.store.FindByID(s.ctx, id.NewRequestID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRequestStoreSuite) TestPendingPairIndexRefusesDuplicates() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))

	dup := s.newRequest(id.BloodAPos)
	dup.RequesterID = r.RequesterID
	dup.RecipientID = r.RecipientID
	s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)

	donorID := id.NewDonorID()
	_, err := s.store.Mutate(s.ctx, r.ID, func(m *models.DonationRequest) error {
		m.AddCandidate(donorID, time.Now())
		m.MarkAccepted(donorID, time.Now())
		return nil
	})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(s.ctx, dup), "a matched request does not block a new pending one")
}

func (s *PostgresRequestStoreSuite) TestMutatePersistsArrays() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))
	donorID := id.NewDonorID()

	updated, err := s.store.Mutate(s.ctx, r.ID, func(m *models.DonationRequest) error {
		m.AddCandidate(donorID, time.Now())
		m.MarkAccepted(donorID, time.Now())
		return nil
	})
	s.Require().NoError(err)
	s.Equal(models.StatusMatched, updated.Status)

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.True(found.Accepted)
	s.True(found.IsAccepted(donorID))
	s.Equal(models.StatusMatched, found.Status)
}

func (s *PostgresRequestStoreSuite) TestMutateAbortsOnError() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))

	_, err := s.store.Mutate(s.ctx, r.ID, func(m *models.DonationRequest) error {
		m.Status = models.StatusCancelled
		return sentinel.ErrInvalidState
	})
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)
}

func (s *PostgresRequestStoreSuite) TestDeleteIf() {
	r := s.newRequest(id.BloodONeg)
	s.Require().NoError(s.store.Create(s.ctx, r))

	s.Require().ErrorIs(
		s.store.DeleteIf(s.ctx, r.ID, func(*models.DonationRequest) error { return sentinel.ErrInvalidState }),
		sentinel.ErrInvalidState,
	)
	_, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.store.DeleteIf(s.ctx, r.ID, func(*models.DonationRequest) error { return nil }))
	_, err = s.store.FindByID(s.ctx, r.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRequestStoreSuite) TestHasPendingWithCandidate() {
	donorID := id.NewDonorID()
	r := s.newRequest(id.BloodONeg)
	r.AddCandidate(donorID, time.Now())
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.HasPendingWithCandidate(s.ctx, r.RecipientID, donorID)
	s.Require().NoError(err)
	s.True(found)

	found, err = s.store.HasPendingWithCandidate(s.ctx, r.RecipientID, id.NewDonorID())
	s.Require().NoError(err)
	s.False(found)
}

func (s *PostgresRequestStoreSuite) TestListings() {
	recipientID := id.NewUserID()

	pending := s.newRequest(id.BloodONeg)
	pending.RecipientID = recipientID
	pending.SetLocation("Dhaka", "Dhaka Division", "Bangladesh")
	s.Require().NoError(s.store.Create(s.ctx, pending))

	matched := s.newRequest(id.BloodAPos)
	matched.RecipientID = recipientID
	matched.SetLocation("Chattogram", "Chattogram Division", "Bangladesh")
	s.Require().NoError(s.store.Create(s.ctx, matched))

	donorID := id.NewDonorID()
	_, err := s.store.Mutate(s.ctx, matched.ID, func(m *models.DonationRequest) error {
		m.AddCandidate(donorID, time.Now())
		m.MarkAccepted(donorID, time.Now())
		return nil
	})
	s.Require().NoError(err)

	got, err := s.store.ListIncoming(s.ctx, recipientID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(pending.ID, got[0].ID)

	got, err = s.store.ListByRecipient(s.ctx, recipientID)
	s.Require().NoError(err)
	s.Len(got, 2)

	got, err = s.store.ListActive(s.ctx, ActiveFilter{BloodType: id.BloodAPos})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(matched.ID, got[0].ID)

	got, err = s.store.ListActive(s.ctx, ActiveFilter{Country: "bangladesh"})
	s.Require().NoError(err)
	s.Len(got, 2)

	got, err = s.store.ListHistory(s.ctx, HistoryFilter{Status: models.StatusMatched})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(matched.ID, got[0].ID)

	got, err = s.store.ListHistory(s.ctx, HistoryFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(got, 1)
}
