package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/audit"
	"bloodlink/internal/auth/store/user"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

type fakeTokenIssuer struct{}

func (fakeTokenIssuer) GenerateAccessToken(userID id.UserID, _ time.Duration) (string, error) {
	return "token-" + userID.String(), nil
}

type fakeDonorRegistry struct {
	registered map[id.UserID]id.DonorID
	deleted    []id.UserID
}

func newFakeDonorRegistry() *fakeDonorRegistry {
	return &fakeDonorRegistry{registered: make(map[id.UserID]id.DonorID)}
}

func (f *fakeDonorRegistry) Register(_ context.Context, ownerID id.UserID, _ id.BloodType, _ string) (id.DonorID, error) {
	donorID := id.NewDonorID()
	f.registered[ownerID] = donorID
	return donorID, nil
}

func (f *fakeDonorRegistry) DeleteByOwner(_ context.Context, ownerID id.UserID) error {
	f.deleted = append(f.deleted, ownerID)
	return nil
}

type fakeRequestPurger struct {
	purged []id.UserID
}

func (f *fakeRequestPurger) PurgeByUser(_ context.Context, userID id.UserID) error {
	f.purged = append(f.purged, userID)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeDonorRegistry) {
	t.Helper()
	donors := newFakeDonorRegistry()
	svc := New(user.NewInMemoryStore(), donors, fakeTokenIssuer{}, time.Hour,
		WithAuditPublisher(audit.NewPublisher(audit.NewInMemoryStore())))
	return svc, donors
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("plain account", func(t *testing.T) {
		svc, _ := newTestService(t)
		u, token, err := svc.Register(ctx, RegisterParams{
			Name: "Asha", Email: "asha@example.com", Password: "correct-horse",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.False(t, u.IsDonor())
		assert.NotEqual(t, "correct-horse", u.PasswordHash)
	})

	t.Run("with donor profile", func(t *testing.T) {
		svc, donors := newTestService(t)
		u, _, err := svc.Register(ctx, RegisterParams{
			Name: "Ravi", Email: "ravi@example.com", Password: "correct-horse",
			DonorProfile: &DonorSignup{BloodType: id.BloodONeg, Location: "Dhaka"},
		})
		require.NoError(t, err)
		assert.True(t, u.IsDonor())
		assert.Equal(t, donors.registered[u.ID], u.DonorID)
	})

	t.Run("short password", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, _, err := svc.Register(ctx, RegisterParams{
			Name: "X", Email: "x@example.com", Password: "short",
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("invalid blood type", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, _, err := svc.Register(ctx, RegisterParams{
			Name: "X", Email: "x@example.com", Password: "correct-horse",
			DonorProfile: &DonorSignup{BloodType: "C+"},
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, _, err := svc.Register(ctx, RegisterParams{
			Name: "A", Email: "dup@example.com", Password: "correct-horse",
		})
		require.NoError(t, err)

		_, _, err = svc.Register(ctx, RegisterParams{
			Name: "B", Email: "dup@example.com", Password: "correct-horse",
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _, err := svc.Register(ctx, RegisterParams{
		Name: "Asha", Email: "asha@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		u, token, err := svc.Login(ctx, "  ASHA@example.com ", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "asha@example.com", u.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "asha@example.com", "wrong")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "ghost@example.com", "correct-horse")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestUpdateName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	u, _, err := svc.Register(ctx, RegisterParams{
		Name: "Asha", Email: "asha@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateName(ctx, u.ID, "  Asha R.  ")
	require.NoError(t, err)
	assert.Equal(t, "Asha R.", updated.Name)

	_, err = svc.UpdateName(ctx, u.ID, "   ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades to donor profile", func(t *testing.T) {
		svc, donors := newTestService(t)
		u, _, err := svc.Register(ctx, RegisterParams{
			Name: "Ravi", Email: "ravi@example.com", Password: "correct-horse",
			DonorProfile: &DonorSignup{BloodType: id.BloodAPos, Location: "Dhaka"},
		})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, u.ID))
		assert.Contains(t, donors.deleted, u.ID)

		_, err = svc.Profile(ctx, u.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("purges the user's requests when a purger is wired", func(t *testing.T) {
		donors := newFakeDonorRegistry()
		purger := &fakeRequestPurger{}
		svc := New(user.NewInMemoryStore(), donors, fakeTokenIssuer{}, time.Hour,
			WithRequestPurger(purger))
		u, _, err := svc.Register(ctx, RegisterParams{
			Name: "Mina", Email: "mina@example.com", Password: "correct-horse",
		})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, u.ID))
		assert.Equal(t, []id.UserID{u.ID}, purger.purged)
	})

	t.Run("non-donor skips cascade", func(t *testing.T) {
		svc, donors := newTestService(t)
		u, _, err := svc.Register(ctx, RegisterParams{
			Name: "Asha", Email: "asha@example.com", Password: "correct-horse",
		})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, u.ID))
		assert.Empty(t, donors.deleted)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newTestService(t)
		err := svc.Delete(ctx, id.NewUserID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
