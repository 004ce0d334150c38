package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

func TestNewUser(t *testing.T) {
	userID := id.NewUserID()

	t.Run("valid input", func(t *testing.T) {
		u, err := NewUser(userID, "  Asha Rahman ", "Asha@Example.COM", "hash")
		require.NoError(t, err)
		assert.Equal(t, "Asha Rahman", u.Name)
		assert.Equal(t, "asha@example.com", u.Email)
		assert.False(t, u.IsDonor())
		assert.False(t, u.CreatedAt.IsZero())
	})

	t.Run("nil id", func(t *testing.T) {
		_, err := NewUser(id.UserID{}, "Asha", "a@example.com", "hash")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewUser(userID, "   ", "a@example.com", "hash")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("name too long", func(t *testing.T) {
		_, err := NewUser(userID, strings.Repeat("a", 129), "a@example.com", "hash")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := NewUser(userID, "Asha", "not-an-email", "hash")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("missing hash", func(t *testing.T) {
		_, err := NewUser(userID, "Asha", "a@example.com", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestAttachDetachDonor(t *testing.T) {
	u, err := NewUser(id.NewUserID(), "Asha", "a@example.com", "hash")
	require.NoError(t, err)
	now := time.Now()

	donorID := id.NewDonorID()
	require.NoError(t, u.AttachDonor(donorID, now))
	assert.True(t, u.IsDonor())
	assert.Equal(t, donorID, u.DonorID)

	err = u.AttachDonor(id.NewDonorID(), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), "second profile must be refused")

	u.DetachDonor(now)
	assert.False(t, u.IsDonor())
}
