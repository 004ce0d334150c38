package domain

import (
	"github.com/google/uuid"

	dErrors "bloodlink/pkg/domain-errors"
)

// Typed identifiers keep user, donor, request, and history IDs from being
// swapped at compile time. Construct from external input via the ParseXxxID
// functions, which enforce the invariant that IDs are valid, non-nil UUIDs.
type (
	UserID    uuid.UUID
	DonorID   uuid.UUID
	RequestID uuid.UUID
	HistoryID uuid.UUID
)

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id DonorID) String() string   { return uuid.UUID(id).String() }
func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id HistoryID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DonorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id HistoryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewUserID generates a fresh user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewDonorID generates a fresh donor ID.
func NewDonorID() DonorID { return DonorID(uuid.New()) }

// NewRequestID generates a fresh request ID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewHistoryID generates a fresh history ID.
func NewHistoryID() HistoryID { return HistoryID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseDonorID constructs a DonorID from external input.
func ParseDonorID(s string) (DonorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return DonorID{}, err
	}
	return DonorID(u), nil
}

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RequestID{}, err
	}
	return RequestID(u), nil
}

// ParseHistoryID constructs a HistoryID from external input.
func ParseHistoryID(s string) (HistoryID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return HistoryID{}, err
	}
	return HistoryID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
