package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodlink/internal/auth/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

type UserStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *UserStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) newUser(email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:           id.NewUserID(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *UserStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds user by ID", func() {
		user := s.newUser("a@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, user))

		found, err := s.store.FindByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user.Email, found.Email)
	})

	s.Run("finds user by email", func() {
		user := s.newUser("b@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, user))

		found, err := s.store.FindByEmail(s.ctx, "b@example.com")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *UserStoreSuite) TestEmailUniqueness() {
	s.Run("rejects duplicate email", func() {
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, s.newUser("dup@example.com")))

		err := s.store.CreateIfEmailAvailable(s.ctx, s.newUser("dup@example.com"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("rejects update onto an existing email", func() {
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, s.newUser("one@example.com")))
		other := s.newUser("two@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, other))

		other.Email = "one@example.com"
		s.Require().ErrorIs(s.store.Update(s.ctx, other), sentinel.ErrConflict)
	})
}

func (s *UserStoreSuite) TestUpdate() {
	s.Run("persists field changes", func() {
		user := s.newUser("c@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, user))

		user.Name = "Renamed"
		user.DonorID = id.NewDonorID()
		s.Require().NoError(s.store.Update(s.ctx, user))

		found, err := s.store.FindByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal("Renamed", found.Name)
		s.Equal(user.DonorID, found.DonorID)
	})

	s.Run("re-indexes changed email", func() {
		user := s.newUser("old@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, user))

		user.Email = "new@example.com"
		s.Require().NoError(s.store.Update(s.ctx, user))

		_, err := s.store.FindByEmail(s.ctx, "old@example.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		found, err := s.store.FindByEmail(s.ctx, "new@example.com")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("unknown user returns ErrNotFound", func() {
		s.Require().ErrorIs(s.store.Update(s.ctx, s.newUser("ghost@example.com")), sentinel.ErrNotFound)
	})
}

func (s *UserStoreSuite) TestDelete() {
	s.Run("removes user and email index", func() {
		user := s.newUser("gone@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, user))

		s.Require().NoError(s.store.Delete(s.ctx, user.ID))

		_, err := s.store.FindByID(s.ctx, user.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByEmail(s.ctx, "gone@example.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown user returns ErrNotFound", func() {
		s.Require().ErrorIs(s.store.Delete(s.ctx, id.NewUserID()), sentinel.ErrNotFound)
	})
}
