package donor

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bloodlink/internal/donor/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// InMemory keeps donor profiles in process memory. It favors clarity over
// performance and backs tests and single-node development runs.
type InMemory struct {
	mu      sync.RWMutex
	donors  map[id.DonorID]models.Donor
	byOwner map[id.UserID]id.DonorID
}

func NewInMemory() *InMemory {
	return &InMemory{
		donors:  make(map[id.DonorID]models.Donor),
		byOwner: make(map[id.UserID]id.DonorID),
	}
}

func (s *InMemory) Create(_ context.Context, d *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byOwner[d.OwnerID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.donors[d.ID] = *d
	s.byOwner[d.OwnerID] = d.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, donorID id.DonorID) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.donors[donorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := d
	return &copied, nil
}

func (s *InMemory) FindByOwner(_ context.Context, ownerID id.UserID) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donorID, ok := s.byOwner[ownerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	d := s.donors[donorID]
	copied := d
	return &copied, nil
}

func (s *InMemory) Update(_ context.Context, d *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.donors[d.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.donors[d.ID] = *d
	return nil
}

func (s *InMemory) DeleteByOwner(_ context.Context, ownerID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	donorID, ok := s.byOwner[ownerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.donors, donorID)
	delete(s.byOwner, ownerID)
	return nil
}

// ListByBloodTypes returns available donors whose group is in types,
// excluding the given owner's own profile. Ordered by registration time.
func (s *InMemory) ListByBloodTypes(_ context.Context, types []id.BloodType, excludeOwner id.UserID) ([]*models.Donor, error) {
	wanted := make(map[id.BloodType]bool, len(types))
	for _, bt := range types {
		wanted[bt] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Donor
	for _, d := range s.donors {
		if d.OwnerID == excludeOwner || !wanted[d.BloodType] || !d.Available {
			continue
		}
		copied := d
		out = append(out, &copied)
	}
	sortByCreation(out)
	return out, nil
}

// Search filters the directory. Location matches are case-insensitive
// substring matches against the display string and structured fields.
func (s *InMemory) Search(_ context.Context, filter Filter) ([]*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter.Location))

	var out []*models.Donor
	for _, d := range s.donors {
		if filter.BloodType != "" && d.BloodType != filter.BloodType {
			continue
		}
		if needle != "" && !matchesLocation(&d, needle) {
			continue
		}
		copied := d
		out = append(out, &copied)
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemory) CountAll(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.donors), nil
}

// CountByRegion groups donors by region. Donors without a region fall into
// the "Unknown" bucket.
func (s *InMemory) CountByRegion(_ context.Context) ([]RegionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	byType := make(map[string]map[id.BloodType]int)
	for _, d := range s.donors {
		region := d.Region
		if region == "" {
			region = "Unknown"
		}
		counts[region]++
		if byType[region] == nil {
			byType[region] = make(map[id.BloodType]int)
		}
		byType[region][d.BloodType]++
	}
	out := make([]RegionCount, 0, len(counts))
	for region, n := range counts {
		out = append(out, RegionCount{Region: region, Count: n, ByBloodType: byType[region]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Region < out[j].Region
	})
	return out, nil
}

// CountByBloodType groups donors by blood group in canonical order.
func (s *InMemory) CountByBloodType(_ context.Context) ([]BloodTypeCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.BloodType]int)
	for _, d := range s.donors {
		counts[d.BloodType]++
	}
	var out []BloodTypeCount
	for _, bt := range id.BloodTypes() {
		if counts[bt] > 0 {
			out = append(out, BloodTypeCount{BloodType: bt, Count: counts[bt]})
		}
	}
	return out, nil
}

func matchesLocation(d *models.Donor, needle string) bool {
	for _, field := range []string{d.LocationDisplay, d.City, d.Region, d.Country} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortByCreation(donors []*models.Donor) {
	sort.Slice(donors, func(i, j int) bool {
		if donors[i].CreatedAt.Equal(donors[j].CreatedAt) {
			return donors[i].ID.String() < donors[j].ID.String()
		}
		return donors[i].CreatedAt.Before(donors[j].CreatedAt)
	})
}
