package history

import (
	id "bloodlink/pkg/domain"
)

// Filter narrows history listings. Zero values match everything; Limit of 0
// means no cap.
type Filter struct {
	DonorID     id.DonorID
	RecipientID id.UserID
	Limit       int
	Offset      int
}
