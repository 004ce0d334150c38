package history

import (
	"context"
	"sort"
	"sync"

	"bloodlink/internal/match/models"
	id "bloodlink/pkg/domain"
)

// InMemory keeps match history in process memory.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.HistoryID]models.BloodMatchHistory
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.HistoryID]models.BloodMatchHistory)}
}

func (s *InMemory) Append(_ context.Context, h *models.BloodMatchHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[h.ID] = *h
	return nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]*models.BloodMatchHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.BloodMatchHistory
	for _, h := range s.entries {
		if !filter.DonorID.IsNil() && h.DonorID != filter.DonorID {
			continue
		}
		if !filter.RecipientID.IsNil() && h.RecipientID != filter.RecipientID {
			continue
		}
		copied := h
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckedAt.Equal(out[j].CheckedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CheckedAt.Before(out[j].CheckedAt)
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

// ClearRequestLinks blanks the request reference on entries pointing at a
// deleted request. The entries themselves stay.
func (s *InMemory) ClearRequestLinks(_ context.Context, requestID id.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, h := range s.entries {
		if h.RequestID == requestID {
			h.RequestID = id.RequestID{}
			s.entries[key] = h
		}
	}
	return nil
}
