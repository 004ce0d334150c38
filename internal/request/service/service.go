package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bloodlink/internal/audit"
	"bloodlink/internal/geo"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/request/models"
	"bloodlink/internal/request/store/request"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

// Store persists donation requests. Mutate and DeleteIf serialize
// transitions per request, so a concurrent accept and cancel on the same
// request never interleave.
type Store interface {
	Create(ctx context.Context, r *models.DonationRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.DonationRequest, error)
	Mutate(ctx context.Context, requestID id.RequestID, fn func(r *models.DonationRequest) error) (*models.DonationRequest, error)
	DeleteIf(ctx context.Context, requestID id.RequestID, fn func(r *models.DonationRequest) error) error
	HasPendingWithCandidate(ctx context.Context, recipientID id.UserID, donorID id.DonorID) (bool, error)
	ListByParticipant(ctx context.Context, userID id.UserID) ([]*models.DonationRequest, error)
	ListIncoming(ctx context.Context, recipientID id.UserID) ([]*models.DonationRequest, error)
	ListOutgoing(ctx context.Context, requesterID id.UserID) ([]*models.DonationRequest, error)
	ListActive(ctx context.Context, filter request.ActiveFilter) ([]*models.DonationRequest, error)
	ListHistory(ctx context.Context, filter request.HistoryFilter) ([]*models.DonationRequest, error)
}

// DonorView is the slice of a donor profile the lifecycle needs.
type DonorView struct {
	ID        id.DonorID
	OwnerID   id.UserID
	BloodType id.BloodType
	Email     string
	Location  string
}

// DonorDirectory resolves donor profiles for candidacy, compatibility and
// contact disclosure.
type DonorDirectory interface {
	DonorByID(ctx context.Context, donorID id.DonorID) (DonorView, error)
	DonorByOwner(ctx context.Context, ownerID id.UserID) (DonorView, error)
}

// Oracle answers donor → recipient compatibility questions.
type Oracle interface {
	IsCompatible(donor, recipient id.BloodType) bool
}

// MatchRecorder appends blood-match history entries and clears request
// links when a request is hard-deleted.
type MatchRecorder interface {
	RecordAcceptance(ctx context.Context, requestID id.RequestID, donorID id.DonorID, recipientID id.UserID, donorBlood, recipientBlood id.BloodType) error
	UnlinkRequest(ctx context.Context, requestID id.RequestID) error
}

// AuditPublisher records request lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// HiddenContact is the sentinel returned in place of real contact data for
// donors outside the accepted set.
const HiddenContact = "Hidden until accepted"

// ContactInfo is the disclosure payload. Both fields are real or both are
// the hidden sentinel, never a mix.
type ContactInfo struct {
	Email    string `json:"email"`
	Location string `json:"location"`
}

// Service drives the donation-request lifecycle.
type Service struct {
	store          Store
	donors         DonorDirectory
	oracle         Oracle
	history        MatchRecorder
	resolver       geo.Resolver
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. The resolver may be a live geocoding client or
// a static stub; it is never nil.
func New(store Store, donors DonorDirectory, oracle Oracle, history MatchRecorder, resolver geo.Resolver, opts ...Option) *Service {
	s := &Service{
		store:    store,
		donors:   donors,
		oracle:   oracle,
		history:  history,
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the request-creation input.
type CreateParams struct {
	RecipientID id.UserID
	BloodType   id.BloodType
	Location    string
}

// Create opens a new pending request from the requester's donor profile to
// the recipient, seeding the candidate set with the requester's donor.
//
// Errors: CodeSelfRequest, CodeRecipientNotDonor, CodeDuplicateRequest,
// CodeValidation.
func (s *Service) Create(ctx context.Context, requesterID id.UserID, params CreateParams) (*models.DonationRequest, error) {
	if requesterID == params.RecipientID {
		return nil, dErrors.New(dErrors.CodeSelfRequest, "cannot open a request against yourself")
	}
	if !params.BloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid blood type")
	}

	requesterDonor, err := s.donors.DonorByOwner(ctx, requesterID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "requester has no donor profile")
		}
		return nil, err
	}
	if _, err := s.donors.DonorByOwner(ctx, params.RecipientID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeRecipientNotDonor, "recipient has no donor profile")
		}
		return nil, err
	}

	exists, err := s.store.HasPendingWithCandidate(ctx, params.RecipientID, requesterDonor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not check for duplicates")
	}
	if exists {
		return nil, dErrors.New(dErrors.CodeDuplicateRequest, "a pending request to this recipient already exists")
	}

	r, err := models.NewDonationRequest(id.NewRequestID(), requesterID, params.RecipientID, params.BloodType, params.Location)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	r.AddCandidate(requesterDonor.ID, r.CreatedAt)

	if loc := s.resolver.Resolve(ctx, r.Location); !loc.IsUnknown() {
		r.SetLocation(loc.City, loc.Region, loc.Country)
	} else if s.metrics != nil && r.Location != "" {
		s.metrics.GeocodeFallbacks.Inc()
	}

	if err := s.store.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent create won the pending-pair race.
			return nil, dErrors.New(dErrors.CodeDuplicateRequest, "a pending request to this recipient already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create request")
	}

	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID:   requesterID,
		Action:    audit.ActionRequestCreated,
		RequestID: r.ID,
		DonorID:   requesterDonor.ID,
		Outcome:   audit.OutcomeOK,
	})
	s.logger.InfoContext(ctx, "request created",
		"request_id", r.ID.String(),
		"blood_type", r.BloodTypeNeeded.String(),
	)
	return r, nil
}

// AddCandidate attaches a donor to the request's candidate set. Idempotent.
func (s *Service) AddCandidate(ctx context.Context, requestID id.RequestID, donorID id.DonorID) (*models.DonationRequest, error) {
	if _, err := s.donors.DonorByID(ctx, donorID); err != nil {
		return nil, err
	}
	r, err := s.store.Mutate(ctx, requestID, func(r *models.DonationRequest) error {
		r.AddCandidate(donorID, time.Now())
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "could not add candidate")
	}
	return r, nil
}

// Accept confirms a candidate donor's offer. The actor must be the donor's
// owner or the recipient. Idempotent per donor: re-accepting an already
// accepted donor changes nothing.
//
// Errors: CodeNotCandidate, CodeIncompatibleBloodType, CodeForbidden,
// CodeNotFound.
func (s *Service) Accept(ctx context.Context, requestID id.RequestID, actorID id.UserID, donorID id.DonorID) (*models.DonationRequest, error) {
	var donor DonorView
	var err error
	if donorID.IsNil() {
		donor, err = s.donors.DonorByOwner(ctx, actorID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.New(dErrors.CodeNotCandidate, "actor has no donor profile")
			}
			return nil, err
		}
	} else {
		donor, err = s.donors.DonorByID(ctx, donorID)
		if err != nil {
			return nil, err
		}
	}

	var alreadyAccepted bool
	var recipientID id.UserID
	r, err := s.store.Mutate(ctx, requestID, func(r *models.DonationRequest) error {
		if actorID != donor.OwnerID && actorID != r.RecipientID {
			return dErrors.New(dErrors.CodeForbidden, "only the donor or the recipient may accept")
		}
		if !r.IsCandidate(donor.ID) {
			return dErrors.New(dErrors.CodeNotCandidate, "donor is not a candidate on this request")
		}
		if !s.oracle.IsCompatible(donor.BloodType, r.BloodTypeNeeded) {
			return dErrors.New(dErrors.CodeIncompatibleBloodType, "donor blood type cannot serve this request")
		}
		alreadyAccepted = r.IsAccepted(donor.ID)
		recipientID = r.RecipientID
		r.MarkAccepted(donor.ID, time.Now())
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "could not accept request")
	}

	if !alreadyAccepted {
		if err := s.history.RecordAcceptance(ctx, r.ID, donor.ID, recipientID, donor.BloodType, r.BloodTypeNeeded); err != nil {
			s.logger.WarnContext(ctx, "match history write failed",
				"request_id", r.ID.String(),
				"error", err,
			)
		}
		if s.metrics != nil {
			s.metrics.RequestsAccepted.Inc()
		}
		s.emit(ctx, audit.Event{
			ActorID:   actorID,
			Action:    audit.ActionRequestAccepted,
			RequestID: r.ID,
			DonorID:   donor.ID,
			Outcome:   audit.OutcomeOK,
		})
	}
	return r, nil
}

// Reject removes a pending request. Recipient-only; the row is hard-deleted
// and only previously written match history survives.
func (s *Service) Reject(ctx context.Context, requestID id.RequestID, actorID id.UserID) error {
	err := s.store.DeleteIf(ctx, requestID, func(r *models.DonationRequest) error {
		if actorID != r.RecipientID {
			return dErrors.New(dErrors.CodeForbidden, "only the recipient may reject")
		}
		if r.Status != models.StatusPending {
			return dErrors.New(dErrors.CodeInvalidState, "only pending requests can be rejected")
		}
		return nil
	})
	if err != nil {
		return s.translate(err, "could not reject request")
	}

	s.unlinkHistory(ctx, requestID)
	if s.metrics != nil {
		s.metrics.RequestsRejected.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID:   actorID,
		Action:    audit.ActionRequestRejected,
		RequestID: requestID,
		Outcome:   audit.OutcomeOK,
	})
	return nil
}

// Cancel removes a pending request. Requester-only.
func (s *Service) Cancel(ctx context.Context, requestID id.RequestID, actorID id.UserID) error {
	err := s.store.DeleteIf(ctx, requestID, func(r *models.DonationRequest) error {
		if actorID != r.RequesterID {
			return dErrors.New(dErrors.CodeForbidden, "only the requester may cancel")
		}
		if r.Status != models.StatusPending {
			return dErrors.New(dErrors.CodeInvalidState, "only pending requests can be cancelled")
		}
		return nil
	})
	if err != nil {
		return s.translate(err, "could not cancel request")
	}

	s.unlinkHistory(ctx, requestID)
	if s.metrics != nil {
		s.metrics.RequestsCancelled.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID:   actorID,
		Action:    audit.ActionRequestCancelled,
		RequestID: requestID,
		Outcome:   audit.OutcomeOK,
	})
	return nil
}

// PurgeByUser deletes every request the user opened or received and clears
// the match-history links of each. Used by the account-deletion cascade,
// so it skips the per-actor authorization the normal transitions enforce.
func (s *Service) PurgeByUser(ctx context.Context, userID id.UserID) error {
	requests, err := s.store.ListByParticipant(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not list requests for purge")
	}
	for _, r := range requests {
		err := s.store.DeleteIf(ctx, r.ID, func(*models.DonationRequest) error { return nil })
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not purge request")
		}
		s.unlinkHistory(ctx, r.ID)
	}
	if len(requests) > 0 {
		s.logger.InfoContext(ctx, "requests purged",
			"user_id", userID.String(),
			"count", len(requests),
		)
	}
	return nil
}

// ContactInfo discloses a donor's contact data through a request. Real data
// comes back only when the donor is in the accepted set; otherwise both
// fields carry the hidden sentinel. Never a partial disclosure.
func (s *Service) ContactInfo(ctx context.Context, requestID id.RequestID, donorID id.DonorID, actorID id.UserID) (ContactInfo, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return ContactInfo{}, err
	}

	if !r.IsAccepted(donorID) {
		audit.Log(ctx, s.logger, s.auditPublisher, audit.Event{
			ActorID:   actorID,
			Action:    audit.ActionContactDisclosed,
			RequestID: requestID,
			DonorID:   donorID,
			Outcome:   audit.OutcomeDenied,
		}, "reason", "donor not accepted")
		return ContactInfo{Email: HiddenContact, Location: HiddenContact}, nil
	}

	donor, err := s.donors.DonorByID(ctx, donorID)
	if err != nil {
		return ContactInfo{}, err
	}
	s.emit(ctx, audit.Event{
		ActorID:   actorID,
		Action:    audit.ActionContactDisclosed,
		RequestID: requestID,
		DonorID:   donorID,
		Outcome:   audit.OutcomeOK,
	})
	return ContactInfo{Email: donor.Email, Location: donor.Location}, nil
}

// Get returns one request by ID.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.DonationRequest, error) {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, s.translate(err, "could not load request")
	}
	return r, nil
}

// Incoming lists pending requests addressed to the user.
func (s *Service) Incoming(ctx context.Context, recipientID id.UserID) ([]*models.DonationRequest, error) {
	out, err := s.store.ListIncoming(ctx, recipientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list requests")
	}
	return out, nil
}

// Outgoing lists pending requests the user initiated.
func (s *Service) Outgoing(ctx context.Context, requesterID id.UserID) ([]*models.DonationRequest, error) {
	out, err := s.store.ListOutgoing(ctx, requesterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list requests")
	}
	return out, nil
}

// Active lists pending and matched requests across the board.
func (s *Service) Active(ctx context.Context, filter request.ActiveFilter) ([]*models.DonationRequest, error) {
	if filter.BloodType != "" && !filter.BloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid blood type")
	}
	out, err := s.store.ListActive(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list requests")
	}
	return out, nil
}

// History lists surviving requests for the donation-history page.
func (s *Service) History(ctx context.Context, filter request.HistoryFilter) ([]*models.DonationRequest, error) {
	if filter.BloodType != "" && !filter.BloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid blood type")
	}
	out, err := s.store.ListHistory(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list requests")
	}
	return out, nil
}

// unlinkHistory clears request links on match history after a hard delete.
// The history rows themselves stay.
func (s *Service) unlinkHistory(ctx context.Context, requestID id.RequestID) {
	if err := s.history.UnlinkRequest(ctx, requestID); err != nil {
		s.logger.WarnContext(ctx, "match history unlink failed",
			"request_id", requestID.String(),
			"error", err,
		)
	}
}

func (s *Service) translate(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	case dErrors.GetCode(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
