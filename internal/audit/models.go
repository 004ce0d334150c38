package audit

import (
	"time"

	id "bloodlink/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	ActorID   id.UserID         `json:"actor_id"`
	Action    string            `json:"action"`
	RequestID id.RequestID      `json:"request_id,omitempty"`
	DonorID   id.DonorID        `json:"donor_id,omitempty"`
	Outcome   string            `json:"outcome"`
	Details   map[string]string `json:"details,omitempty"`
}

// Actions recorded on the audit trail.
const (
	ActionRequestCreated   = "request.created"
	ActionRequestAccepted  = "request.accepted"
	ActionRequestRejected  = "request.rejected"
	ActionRequestCancelled = "request.cancelled"
	ActionDonorRegistered  = "donor.registered"
	ActionDonorDeleted     = "donor.deleted"
	ActionContactDisclosed = "contact.disclosed"
)

// Outcomes recorded on the audit trail.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
)
