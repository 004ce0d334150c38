package request

import (
	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
)

// ActiveFilter narrows the active board. Zero values match everything.
type ActiveFilter struct {
	BloodType id.BloodType
	Country   string
}

// HistoryFilter narrows the donation-history listing. Zero values match
// everything; Limit of 0 means no cap.
type HistoryFilter struct {
	BloodType id.BloodType
	Status    models.Status
	City      string
	Country   string
	Limit     int
	Offset    int
}
