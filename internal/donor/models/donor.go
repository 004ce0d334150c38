package models

import (
	"strings"
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Donor is a user's public donor profile in the directory.
//
// Invariants:
//   - OwnerID identifies exactly one user; a user has at most one profile
//   - BloodType is one of the eight supported groups
//   - LocationDisplay is never empty: it is the free-form display string, or
//     derived from the structured fields, or the literal "Unknown"
//   - A new profile starts Available; only the owner toggles it
//   - CreatedAt is immutable after construction
type Donor struct {
	ID        id.DonorID   `json:"id"`
	OwnerID   id.UserID    `json:"owner_id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	BloodType id.BloodType `json:"blood_type"`

	Available bool `json:"available"`

	City            string  `json:"city,omitempty"`
	Region          string  `json:"region,omitempty"`
	Country         string  `json:"country,omitempty"`
	LocationDisplay string  `json:"location"`
	Latitude        float64 `json:"lat,omitempty"`
	Longitude       float64 `json:"lng,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDonor constructs a Donor, enforcing the construction invariants.
func NewDonor(donorID id.DonorID, ownerID id.UserID, name, email string, bloodType id.BloodType) (*Donor, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "donor ID cannot be nil")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner ID cannot be nil")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if !bloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid blood type")
	}

	now := time.Now()
	d := &Donor{
		ID:        donorID,
		OwnerID:   ownerID,
		Name:      name,
		Email:     email,
		BloodType: bloodType,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.SyncLocation()
	return d, nil
}

// SetLocation stores the structured address and refreshes the display string.
func (d *Donor) SetLocation(city, region, country, display string, now time.Time) {
	d.City = city
	d.Region = region
	d.Country = country
	d.LocationDisplay = strings.TrimSpace(display)
	d.SyncLocation()
	d.UpdatedAt = now
}

// SetCoordinates stores the geocoded point.
func (d *Donor) SetCoordinates(lat, lng float64) {
	d.Latitude = lat
	d.Longitude = lng
}

// SetAvailability toggles directory visibility for matching.
func (d *Donor) SetAvailability(available bool, now time.Time) {
	d.Available = available
	d.UpdatedAt = now
}

// SyncLocation derives LocationDisplay from the structured fields when the
// display string is absent or the Unknown placeholder. An explicit display
// string always wins.
func (d *Donor) SyncLocation() {
	if d.LocationDisplay != "" && d.LocationDisplay != "Unknown" {
		return
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{d.City, d.Region, d.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		d.LocationDisplay = "Unknown"
		return
	}
	d.LocationDisplay = strings.Join(parts, ", ")
}

// HasKnownLocation reports whether the profile carries a usable location.
func (d *Donor) HasKnownLocation() bool {
	return d.LocationDisplay != "" && d.LocationDisplay != "Unknown"
}
