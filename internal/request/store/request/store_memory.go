package request

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// InMemory keeps donation requests in process memory. A single mutex stands
// in for the per-row locking the PostgreSQL store does, so accept and
// reject/cancel on the same request are serialized here too.
type InMemory struct {
	mu       sync.Mutex
	requests map[id.RequestID]*models.DonationRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.RequestID]*models.DonationRequest)}
}

func (s *InMemory) Create(_ context.Context, r *models.DonationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.Status != models.StatusPending {
			continue
		}
		if existing.RecipientID == r.RecipientID && existing.RequesterID == r.RequesterID {
			return sentinel.ErrConflict
		}
	}
	s.requests[r.ID] = clone(r)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.RequestID) (*models.DonationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

// Mutate loads the request, applies fn and persists the result, all under
// the store lock. An error from fn aborts the write.
func (s *InMemory) Mutate(_ context.Context, requestID id.RequestID, fn func(r *models.DonationRequest) error) (*models.DonationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	s.requests[requestID] = clone(working)
	return working, nil
}

// DeleteIf loads the request, lets fn validate the transition and deletes
// the row when fn approves. An error from fn leaves the request in place.
func (s *InMemory) DeleteIf(_ context.Context, requestID id.RequestID, fn func(r *models.DonationRequest) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := fn(clone(stored)); err != nil {
		return err
	}
	delete(s.requests, requestID)
	return nil
}

// HasPendingWithCandidate reports whether a pending request to the recipient
// already carries the donor as a candidate.
func (s *InMemory) HasPendingWithCandidate(_ context.Context, recipientID id.UserID, donorID id.DonorID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.requests {
		if r.Status == models.StatusPending && r.RecipientID == recipientID && r.IsCandidate(donorID) {
			return true, nil
		}
	}
	return false, nil
}

// ListIncoming returns pending requests addressed to the recipient.
func (s *InMemory) ListIncoming(_ context.Context, recipientID id.UserID) ([]*models.DonationRequest, error) {
	return s.list(func(r *models.DonationRequest) bool {
		return r.Status == models.StatusPending && r.RecipientID == recipientID
	}), nil
}

// ListOutgoing returns pending requests the requester initiated.
func (s *InMemory) ListOutgoing(_ context.Context, requesterID id.UserID) ([]*models.DonationRequest, error) {
	return s.list(func(r *models.DonationRequest) bool {
		return r.Status == models.StatusPending && r.RequesterID == requesterID
	}), nil
}

// ListByRecipient returns every surviving request addressed to the user,
// whatever its state.
func (s *InMemory) ListByRecipient(_ context.Context, recipientID id.UserID) ([]*models.DonationRequest, error) {
	return s.list(func(r *models.DonationRequest) bool {
		return r.RecipientID == recipientID
	}), nil
}

// ListByParticipant returns every surviving request the user opened or is
// addressed by, whatever its state.
func (s *InMemory) ListByParticipant(_ context.Context, userID id.UserID) ([]*models.DonationRequest, error) {
	return s.list(func(r *models.DonationRequest) bool {
		return r.RecipientID == userID || r.RequesterID == userID
	}), nil
}

// ListActive returns pending and matched requests, filtered.
func (s *InMemory) ListActive(_ context.Context, filter ActiveFilter) ([]*models.DonationRequest, error) {
	country := strings.ToLower(strings.TrimSpace(filter.Country))
	return s.list(func(r *models.DonationRequest) bool {
		if !r.Status.IsActive() {
			return false
		}
		if filter.BloodType != "" && r.BloodTypeNeeded != filter.BloodType {
			return false
		}
		if country != "" && strings.ToLower(r.Country) != country {
			return false
		}
		return true
	}), nil
}

// ListHistory returns the filtered, paginated history of surviving requests.
func (s *InMemory) ListHistory(_ context.Context, filter HistoryFilter) ([]*models.DonationRequest, error) {
	city := strings.ToLower(strings.TrimSpace(filter.City))
	country := strings.ToLower(strings.TrimSpace(filter.Country))
	out := s.list(func(r *models.DonationRequest) bool {
		if filter.BloodType != "" && r.BloodTypeNeeded != filter.BloodType {
			return false
		}
		if filter.Status != "" && r.Status != filter.Status {
			return false
		}
		if city != "" && strings.ToLower(r.City) != city {
			return false
		}
		if country != "" && strings.ToLower(r.Country) != country {
			return false
		}
		return true
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemory) list(keep func(r *models.DonationRequest) bool) []*models.DonationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.DonationRequest
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func clone(r *models.DonationRequest) *models.DonationRequest {
	copied := *r
	copied.Candidates = append([]id.DonorID(nil), r.Candidates...)
	copied.AcceptedDonors = append([]id.DonorID(nil), r.AcceptedDonors...)
	return &copied
}
