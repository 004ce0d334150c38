package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	donorModels "bloodlink/internal/donor/models"
	donorStore "bloodlink/internal/donor/store/donor"
	"bloodlink/internal/match/models"
	"bloodlink/internal/match/store/history"
	"bloodlink/internal/platform/metrics"
	requestModels "bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

// HiddenLocation is the sentinel shown in place of a donor's location
// before acceptance.
const HiddenLocation = "Hidden until accepted"

// HistoryStore persists blood-match history entries.
type HistoryStore interface {
	Append(ctx context.Context, h *models.BloodMatchHistory) error
	List(ctx context.Context, filter history.Filter) ([]*models.BloodMatchHistory, error)
	ClearRequestLinks(ctx context.Context, requestID id.RequestID) error
}

// DonorSource reads the donor directory.
type DonorSource interface {
	Search(ctx context.Context, filter donorStore.Filter) ([]*donorModels.Donor, error)
	FindByOwner(ctx context.Context, ownerID id.UserID) (*donorModels.Donor, error)
}

// RequestSource reads a user's donation requests.
type RequestSource interface {
	ListByRecipient(ctx context.Context, recipientID id.UserID) ([]*requestModels.DonationRequest, error)
}

// Oracle answers donor → recipient compatibility questions.
type Oracle interface {
	IsCompatible(donor, recipient id.BloodType) bool
}

// Service composes the oracle, the directory and the request book into
// match listings, and keeps the match history.
type Service struct {
	store    HistoryStore
	donors   DonorSource
	requests RequestSource
	oracle   Oracle
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store HistoryStore, donors DonorSource, requests RequestSource, oracle Oracle, opts ...Option) *Service {
	s := &Service{
		store:    store,
		donors:   donors,
		requests: requests,
		oracle:   oracle,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchesFor lists the user's matches: donors already accepted on the
// user's requests first, then every other compatible donor as a potential
// match. Potential matches carry the real email but a hidden location;
// accepted matches disclose the location only when the request's accepted
// flag is raised. Ordering is stable: accepted in request order, potential
// in directory order.
func (s *Service) MatchesFor(ctx context.Context, userID id.UserID) ([]models.MatchView, error) {
	var (
		self     *donorModels.Donor
		requests []*requestModels.DonationRequest
		donors   []*donorModels.Donor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.donors.FindByOwner(gctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "user has no donor profile")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load donor profile")
		}
		self = d
		return nil
	})
	g.Go(func() error {
		r, err := s.requests.ListByRecipient(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load requests")
		}
		requests = r
		return nil
	})
	g.Go(func() error {
		d, err := s.donors.Search(gctx, donorStore.Filter{})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not load donors")
		}
		donors = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[id.DonorID]*donorModels.Donor, len(donors))
	for _, d := range donors {
		byID[d.ID] = d
	}

	excluded := map[id.DonorID]bool{self.ID: true}
	seen := make(map[id.DonorID]bool)
	var out []models.MatchView

	for _, r := range requests {
		for _, candidateID := range r.Candidates {
			excluded[candidateID] = true
		}
		for _, donorID := range r.AcceptedDonors {
			if seen[donorID] {
				continue
			}
			d, ok := byID[donorID]
			if !ok {
				continue
			}
			seen[donorID] = true

			location := HiddenLocation
			if r.Accepted {
				location = d.LocationDisplay
			}
			out = append(out, models.MatchView{
				DonorUserID: d.OwnerID,
				DonorID:     d.ID,
				Username:    d.Name,
				BloodType:   d.BloodType,
				Email:       d.Email,
				Location:    location,
				Accepted:    true,
			})
		}
	}

	for _, d := range donors {
		if excluded[d.ID] || seen[d.ID] || d.OwnerID == userID {
			continue
		}
		if !s.oracle.IsCompatible(d.BloodType, self.BloodType) {
			continue
		}
		out = append(out, models.MatchView{
			DonorUserID: d.OwnerID,
			DonorID:     d.ID,
			Username:    d.Name,
			BloodType:   d.BloodType,
			Email:       d.Email,
			Location:    HiddenLocation,
			Accepted:    false,
		})
	}
	return out, nil
}

// CheckParams carries one manual compatibility check. The IDs are optional
// and only enrich the history entry.
type CheckParams struct {
	DonorBloodType     id.BloodType
	RecipientBloodType id.BloodType
	DonorID            id.DonorID
	RecipientID        id.UserID
	RequestID          id.RequestID
}

// CheckCompatibility evaluates the oracle for one donor/recipient pair and
// appends a history entry. A failed history write is logged, not returned:
// the answer itself is still good.
func (s *Service) CheckCompatibility(ctx context.Context, params CheckParams) (bool, error) {
	if !params.DonorBloodType.IsValid() {
		return false, dErrors.New(dErrors.CodeValidation, "invalid donor blood type")
	}
	if !params.RecipientBloodType.IsValid() {
		return false, dErrors.New(dErrors.CodeValidation, "invalid recipient blood type")
	}

	compatible := s.oracle.IsCompatible(params.DonorBloodType, params.RecipientBloodType)
	if s.metrics != nil {
		s.metrics.IncCompatibilityCheck(compatible)
	}

	h, err := models.NewBloodMatchHistory(id.NewHistoryID(), params.DonorBloodType, params.RecipientBloodType, compatible)
	if err != nil {
		return compatible, nil
	}
	h.LinkParticipants(params.DonorID, params.RecipientID, params.RequestID)
	if err := s.store.Append(ctx, h); err != nil {
		s.logger.WarnContext(ctx, "match history write failed", "error", err)
	}
	return compatible, nil
}

// RecordAcceptance writes the history entry for a confirmed donation-request
// acceptance. Acceptance implies the oracle already approved the pair.
func (s *Service) RecordAcceptance(ctx context.Context, requestID id.RequestID, donorID id.DonorID, recipientID id.UserID, donorBlood, recipientBlood id.BloodType) error {
	h, err := models.NewBloodMatchHistory(id.NewHistoryID(), donorBlood, recipientBlood, true)
	if err != nil {
		return err
	}
	h.LinkParticipants(donorID, recipientID, requestID)
	if err := s.store.Append(ctx, h); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not write match history")
	}
	if s.metrics != nil {
		s.metrics.IncCompatibilityCheck(true)
	}
	return nil
}

// UnlinkRequest clears request links on history entries after the request
// is hard-deleted.
func (s *Service) UnlinkRequest(ctx context.Context, requestID id.RequestID) error {
	if err := s.store.ClearRequestLinks(ctx, requestID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not unlink match history")
	}
	return nil
}

// History lists match history entries.
func (s *Service) History(ctx context.Context, filter history.Filter) ([]*models.BloodMatchHistory, error) {
	out, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list match history")
	}
	return out, nil
}
