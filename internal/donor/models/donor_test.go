package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

func validDonor(t *testing.T) *Donor {
	t.Helper()
	d, err := NewDonor(id.NewDonorID(), id.NewUserID(), "Asha", "asha@example.com", id.BloodOPos)
	require.NoError(t, err)
	return d
}

func TestNewDonor(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		d := validDonor(t)
		assert.Equal(t, "Unknown", d.LocationDisplay, "fresh profile has no location yet")
		assert.False(t, d.HasKnownLocation())
	})

	t.Run("invalid blood type", func(t *testing.T) {
		_, err := NewDonor(id.NewDonorID(), id.NewUserID(), "Asha", "a@example.com", "C+")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("nil owner", func(t *testing.T) {
		_, err := NewDonor(id.NewDonorID(), id.UserID{}, "Asha", "a@example.com", id.BloodOPos)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewDonor(id.NewDonorID(), id.NewUserID(), "  ", "a@example.com", id.BloodOPos)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestSetLocation(t *testing.T) {
	now := time.Now()

	t.Run("explicit display wins", func(t *testing.T) {
		d := validDonor(t)
		d.SetLocation("Dhaka", "Dhaka Division", "Bangladesh", "Dhaka, Bangladesh", now)
		assert.Equal(t, "Dhaka, Bangladesh", d.LocationDisplay)
		assert.True(t, d.HasKnownLocation())
	})

	t.Run("display derived from structured fields", func(t *testing.T) {
		d := validDonor(t)
		d.SetLocation("Dhaka", "", "Bangladesh", "", now)
		assert.Equal(t, "Dhaka, Bangladesh", d.LocationDisplay)
	})

	t.Run("Unknown placeholder is replaced by structured fields", func(t *testing.T) {
		d := validDonor(t)
		d.SetLocation("Cork", "", "Ireland", "Unknown", now)
		assert.Equal(t, "Cork, Ireland", d.LocationDisplay)
	})

	t.Run("nothing known stays Unknown", func(t *testing.T) {
		d := validDonor(t)
		d.SetLocation("", "", "", "", now)
		assert.Equal(t, "Unknown", d.LocationDisplay)
		assert.False(t, d.HasKnownLocation())
	})
}
