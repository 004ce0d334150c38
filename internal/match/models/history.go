package models

import (
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// BloodMatchHistory is the immutable record of one compatibility
// evaluation.
//
// Invariants:
//   - both blood types are valid groups
//   - DonorID and RecipientID may be nil for anonymous checker lookups
//   - RequestID is optional and is cleared, not cascaded, when the linked
//     request is deleted
//   - a row is written once and never mutated afterwards
type BloodMatchHistory struct {
	ID          id.HistoryID `json:"id"`
	DonorID     id.DonorID   `json:"donor_id,omitempty"`
	RecipientID id.UserID    `json:"recipient_id,omitempty"`
	RequestID   id.RequestID `json:"request_id,omitempty"`

	DonorBloodType     id.BloodType `json:"donor_blood_type"`
	RecipientBloodType id.BloodType `json:"recipient_blood_type"`
	Compatible         bool         `json:"compatible"`

	CheckedAt time.Time `json:"checked_at"`
}

// NewBloodMatchHistory constructs a history entry, enforcing the
// construction invariants.
func NewBloodMatchHistory(historyID id.HistoryID, donorBlood, recipientBlood id.BloodType, compatible bool) (*BloodMatchHistory, error) {
	if historyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "history ID cannot be nil")
	}
	if !donorBlood.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid donor blood type")
	}
	if !recipientBlood.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid recipient blood type")
	}
	return &BloodMatchHistory{
		ID:                 historyID,
		DonorBloodType:     donorBlood,
		RecipientBloodType: recipientBlood,
		Compatible:         compatible,
		CheckedAt:          time.Now(),
	}, nil
}

// LinkParticipants attaches the donor, recipient and optionally the request
// that triggered the evaluation.
func (h *BloodMatchHistory) LinkParticipants(donorID id.DonorID, recipientID id.UserID, requestID id.RequestID) {
	h.DonorID = donorID
	h.RecipientID = recipientID
	h.RequestID = requestID
}

// MatchView is one row of a user's match listing.
type MatchView struct {
	DonorUserID id.UserID    `json:"donor_user_id"`
	DonorID     id.DonorID   `json:"donor_id"`
	Username    string       `json:"username"`
	BloodType   id.BloodType `json:"blood_type"`
	Email       string       `json:"email"`
	Location    string       `json:"location"`
	Accepted    bool         `json:"accepted"`
}
