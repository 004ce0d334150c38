package models

import (
	"strings"
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Status is the lifecycle state of a donation request.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusAccepted  Status = "Accepted"
	StatusMatched   Status = "Matched"
	StatusRejected  Status = "Rejected"
	StatusCancelled Status = "Cancelled"
)

// IsValid reports whether s is one of the declared states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusMatched, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a request in this state still shows up on the
// active board. Matched requests stay visible as history-preserving matches.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusMatched
}

// ParseStatus normalizes raw status text.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "accepted":
		return StatusAccepted, nil
	case "matched":
		return StatusMatched, nil
	case "rejected":
		return StatusRejected, nil
	case "cancelled":
		return StatusCancelled, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid request status")
}

// DonationRequest is one recipient's open ask for compatible blood.
//
// Invariants:
//   - RequesterID and RecipientID are distinct, non-nil users
//   - BloodTypeNeeded is one of the eight supported groups
//   - AcceptedDonors is always a subset of Candidates
//   - Accepted is true iff AcceptedDonors is non-empty
//   - a request starts Pending; acceptance moves it to Matched, which
//     preserves the record; rejection and cancellation delete it outright
type DonationRequest struct {
	ID              id.RequestID `json:"id"`
	RequesterID     id.UserID    `json:"requester_id"`
	RecipientID     id.UserID    `json:"recipient_id"`
	BloodTypeNeeded id.BloodType `json:"blood_type_needed"`

	Location string `json:"location"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`

	Status   Status `json:"status"`
	Accepted bool   `json:"accepted"`

	Candidates     []id.DonorID `json:"candidates"`
	AcceptedDonors []id.DonorID `json:"accepted_donors"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDonationRequest constructs a Pending request, enforcing the
// construction invariants.
func NewDonationRequest(requestID id.RequestID, requesterID, recipientID id.UserID, needed id.BloodType, location string) (*DonationRequest, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request ID cannot be nil")
	}
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester ID cannot be nil")
	}
	if recipientID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient ID cannot be nil")
	}
	if requesterID == recipientID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester and recipient must differ")
	}
	if !needed.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid blood type")
	}

	now := time.Now()
	return &DonationRequest{
		ID:              requestID,
		RequesterID:     requesterID,
		RecipientID:     recipientID,
		BloodTypeNeeded: needed,
		Location:        strings.TrimSpace(location),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// SetLocation stores the structured address parsed from the free-form
// location text.
func (r *DonationRequest) SetLocation(city, region, country string) {
	r.City = city
	r.Region = region
	r.Country = country
}

// IsCandidate reports whether the donor is attached to this request.
func (r *DonationRequest) IsCandidate(donorID id.DonorID) bool {
	for _, c := range r.Candidates {
		if c == donorID {
			return true
		}
	}
	return false
}

// IsAccepted reports whether the donor's offer has been confirmed.
func (r *DonationRequest) IsAccepted(donorID id.DonorID) bool {
	for _, a := range r.AcceptedDonors {
		if a == donorID {
			return true
		}
	}
	return false
}

// AddCandidate attaches a donor to the candidate set. Idempotent.
func (r *DonationRequest) AddCandidate(donorID id.DonorID, now time.Time) {
	if r.IsCandidate(donorID) {
		return
	}
	r.Candidates = append(r.Candidates, donorID)
	r.UpdatedAt = now
}

// MarkAccepted confirms a candidate donor: adds it to the accepted set,
// raises the accepted flag and moves the request to Matched. Idempotent per
// donor. Callers check candidacy and compatibility first.
func (r *DonationRequest) MarkAccepted(donorID id.DonorID, now time.Time) {
	if !r.IsAccepted(donorID) {
		r.AcceptedDonors = append(r.AcceptedDonors, donorID)
	}
	r.Accepted = true
	r.Status = StatusMatched
	r.UpdatedAt = now
}
