package donor

import (
	id "bloodlink/pkg/domain"
)

// Filter narrows directory searches. Zero values match everything.
type Filter struct {
	BloodType id.BloodType
	Location  string
}

// RegionCount is one row of the by-region breakdown, with per-group counts
// for the map page.
type RegionCount struct {
	Region      string               `json:"region"`
	Count       int                  `json:"count"`
	ByBloodType map[id.BloodType]int `json:"by_blood_type,omitempty"`
}

// BloodTypeCount is one row of the by-group breakdown.
type BloodTypeCount struct {
	BloodType id.BloodType `json:"blood_type"`
	Count     int          `json:"count"`
}
