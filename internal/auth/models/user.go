package models

import (
	"strings"
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// User is the aggregate root for an account.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Email is non-empty, lower-cased, and unique across accounts
//   - PasswordHash is never empty and never the raw password
//   - DonorID is either nil or points at the user's single donor profile
//   - CreatedAt is immutable after construction
type User struct {
	ID           id.UserID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DonorID      id.DonorID `json:"donor_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewUser constructs a User, enforcing the construction invariants.
func NewUser(userID id.UserID, name, email, passwordHash string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID cannot be nil")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name cannot exceed 128 characters")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email must be a valid address")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           userID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsDonor reports whether the user has a donor profile attached.
func (u *User) IsDonor() bool {
	return !u.DonorID.IsNil()
}

// AttachDonor links the user's donor profile. A user has at most one.
func (u *User) AttachDonor(donorID id.DonorID, now time.Time) error {
	if u.IsDonor() {
		return dErrors.New(dErrors.CodeInvariantViolation, "user already has a donor profile")
	}
	if donorID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "donor ID cannot be nil")
	}
	u.DonorID = donorID
	u.UpdatedAt = now
	return nil
}

// DetachDonor clears the donor link after the profile is removed.
func (u *User) DetachDonor(now time.Time) {
	u.DonorID = id.DonorID{}
	u.UpdatedAt = now
}
