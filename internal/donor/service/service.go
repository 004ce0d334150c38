package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"bloodlink/internal/audit"
	"bloodlink/internal/donor/models"
	"bloodlink/internal/donor/store/donor"
	"bloodlink/internal/geo"
	"bloodlink/internal/platform/metrics"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

// Store persists donor profiles.
type Store interface {
	Create(ctx context.Context, d *models.Donor) error
	FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error)
	FindByOwner(ctx context.Context, ownerID id.UserID) (*models.Donor, error)
	Update(ctx context.Context, d *models.Donor) error
	DeleteByOwner(ctx context.Context, ownerID id.UserID) error
	ListByBloodTypes(ctx context.Context, types []id.BloodType, excludeOwner id.UserID) ([]*models.Donor, error)
	Search(ctx context.Context, filter donor.Filter) ([]*models.Donor, error)
	CountAll(ctx context.Context) (int, error)
	CountByRegion(ctx context.Context) ([]donor.RegionCount, error)
	CountByBloodType(ctx context.Context) ([]donor.BloodTypeCount, error)
}

// Oracle answers donor → recipient compatibility questions.
type Oracle interface {
	CompatibleDonorTypes(recipient id.BloodType) []id.BloodType
}

// UserDirectory resolves account names and emails for profile creation.
type UserDirectory interface {
	NameAndEmail(ctx context.Context, userID id.UserID) (name, email string, err error)
}

// AuditPublisher records donor lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// RequestFeed supplies the newest open donation requests for the
// landing-page summary.
type RequestFeed interface {
	RecentActive(ctx context.Context, limit int) ([]RecentRequest, error)
}

const recentRequestLimit = 5

// Service manages the donor directory.
type Service struct {
	store          Store
	oracle         Oracle
	users          UserDirectory
	resolver       geo.Resolver
	feed           RequestFeed
	cache          goredis.Cmdable
	statsTTL       time.Duration
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

// WithRequestFeed wires the recent-request feed into the landing-page
// summary.
func WithRequestFeed(feed RequestFeed) Option {
	return func(s *Service) {
		s.feed = feed
	}
}

// WithRegionStatsCache caches the region breakdown in redis for ttl.
func WithRegionStatsCache(cache goredis.Cmdable, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.statsTTL = ttl
		}
	}
}

// New constructs a Service. The resolver may be a live geocoding client or a
// static stub; it is never nil.
func New(store Store, oracle Oracle, users UserDirectory, resolver geo.Resolver, opts ...Option) *Service {
	s := &Service{
		store:    store,
		oracle:   oracle,
		users:    users,
		resolver: resolver,
		statsTTL: 5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const regionStatsKey = "donor:region-stats"

// Register creates the owner's donor profile. Each user has at most one.
//
// Errors: CodeConflict when a profile already exists, CodeValidation on bad
// input, CodeNotFound when the owner account is unknown.
func (s *Service) Register(ctx context.Context, ownerID id.UserID, bloodType id.BloodType, location string) (id.DonorID, error) {
	name, email, err := s.users.NameAndEmail(ctx, ownerID)
	if err != nil {
		return id.DonorID{}, err
	}

	d, err := models.NewDonor(id.NewDonorID(), ownerID, name, email, bloodType)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return id.DonorID{}, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return id.DonorID{}, err
	}

	if location != "" {
		loc := s.resolver.Resolve(ctx, location)
		s.applyLocation(d, loc, location)
	}

	if err := s.store.Create(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return id.DonorID{}, dErrors.New(dErrors.CodeConflict, "user already has a donor profile")
		}
		return id.DonorID{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not create donor profile")
	}

	if s.metrics != nil {
		s.metrics.DonorsRegistered.Inc()
	}
	s.invalidateRegionStats(ctx)
	s.emit(ctx, audit.Event{
		ActorID: ownerID,
		Action:  audit.ActionDonorRegistered,
		DonorID: d.ID,
		Outcome: audit.OutcomeOK,
	})

	s.logger.InfoContext(ctx, "donor registered",
		"donor_id", d.ID.String(),
		"blood_type", d.BloodType.String(),
	)
	return d.ID, nil
}

// Get returns one donor profile by ID.
func (s *Service) Get(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	d, err := s.store.FindByID(ctx, donorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load donor")
	}
	return d, nil
}

// GetByOwner returns the user's own donor profile.
func (s *Service) GetByOwner(ctx context.Context, ownerID id.UserID) (*models.Donor, error) {
	d, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load donor")
	}
	return d, nil
}

// UpdateParams carries profile edits. Nil fields are left unchanged.
type UpdateParams struct {
	BloodType *id.BloodType
	Location  *string
	Available *bool
}

// UpdateProfile edits the owner's donor profile. A location edit triggers a
// geocode; lookup failure degrades to the Unknown location rather than
// failing the edit.
func (s *Service) UpdateProfile(ctx context.Context, ownerID id.UserID, params UpdateParams) (*models.Donor, error) {
	d, err := s.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if params.BloodType != nil {
		if !params.BloodType.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid blood type")
		}
		d.BloodType = *params.BloodType
		d.UpdatedAt = now
	}
	if params.Location != nil {
		loc := s.resolver.Resolve(ctx, *params.Location)
		s.applyLocation(d, loc, *params.Location)
		d.UpdatedAt = now
	}
	if params.Available != nil {
		d.SetAvailability(*params.Available, now)
	}

	if err := s.store.Update(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not update donor")
	}
	s.invalidateRegionStats(ctx)
	return d, nil
}

// DeleteByOwner removes the user's donor profile.
func (s *Service) DeleteByOwner(ctx context.Context, ownerID id.UserID) error {
	if err := s.store.DeleteByOwner(ctx, ownerID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "donor profile not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not delete donor")
	}
	s.invalidateRegionStats(ctx)
	s.emit(ctx, audit.Event{
		ActorID: ownerID,
		Action:  audit.ActionDonorDeleted,
		Outcome: audit.OutcomeOK,
	})
	return nil
}

// FindCompatible lists donors whose group can serve the given recipient
// group, excluding the requesting user's own profile.
func (s *Service) FindCompatible(ctx context.Context, recipient id.BloodType, excludeOwner id.UserID) ([]*models.Donor, error) {
	if !recipient.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid blood type")
	}
	types := s.oracle.CompatibleDonorTypes(recipient)
	donors, err := s.store.ListByBloodTypes(ctx, types, excludeOwner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list donors")
	}
	return donors, nil
}

// Search filters the directory by blood group and location text.
func (s *Service) Search(ctx context.Context, filter donor.Filter) ([]*models.Donor, error) {
	if filter.BloodType != "" && !filter.BloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid blood type")
	}
	donors, err := s.store.Search(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not search donors")
	}
	return donors, nil
}

// RegionStats returns the donor count per region, cached in redis when a
// cache is configured.
func (s *Service) RegionStats(ctx context.Context) ([]donor.RegionCount, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, regionStatsKey).Result(); err == nil {
			var cached []donor.RegionCount
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	stats, err := s.store.CountByRegion(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not compute region stats")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, regionStatsKey, raw, s.statsTTL).Err(); err != nil {
				s.logger.WarnContext(ctx, "region stats cache write failed", "error", err)
			}
		}
	}
	return stats, nil
}

// RecentRequest is one row of the landing-page request feed.
type RecentRequest struct {
	ID        id.RequestID `json:"id"`
	BloodType id.BloodType `json:"blood_type"`
	Location  string       `json:"location"`
	CreatedAt time.Time    `json:"created_at"`
}

// HomeStats is the landing-page summary.
type HomeStats struct {
	TotalDonors    int                    `json:"total_donors"`
	ByBloodType    []donor.BloodTypeCount `json:"by_blood_type"`
	KnownRegions   int                    `json:"known_regions"`
	Countries      int                    `json:"countries"`
	Cities         int                    `json:"cities"`
	RecentRequests []RecentRequest        `json:"recent_requests"`
}

// Stats aggregates the landing-page numbers.
func (s *Service) Stats(ctx context.Context) (*HomeStats, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not count donors")
	}
	byType, err := s.store.CountByBloodType(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not count donors")
	}
	regions, err := s.RegionStats(ctx)
	if err != nil {
		return nil, err
	}
	known := 0
	for _, rc := range regions {
		if rc.Region != "Unknown" {
			known++
		}
	}
	all, err := s.store.Search(ctx, donor.Filter{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list donors")
	}
	countries := make(map[string]bool)
	cities := make(map[string]bool)
	for _, d := range all {
		if d.Country != "" {
			countries[d.Country] = true
		}
		if d.City != "" {
			cities[d.City] = true
		}
	}

	stats := &HomeStats{
		TotalDonors:    total,
		ByBloodType:    byType,
		KnownRegions:   known,
		Countries:      len(countries),
		Cities:         len(cities),
		RecentRequests: []RecentRequest{},
	}
	if s.feed != nil {
		recent, err := s.feed.RecentActive(ctx, recentRequestLimit)
		if err != nil {
			// Feed failures degrade to an empty list.
			s.logger.WarnContext(ctx, "recent request feed failed", "error", err)
		} else if recent != nil {
			stats.RecentRequests = recent
		}
	}
	return stats, nil
}

func (s *Service) applyLocation(d *models.Donor, loc geo.Location, raw string) {
	now := time.Now()
	if loc.IsUnknown() {
		if s.metrics != nil {
			s.metrics.GeocodeFallbacks.Inc()
		}
		// Keep the user's raw text as the display string so the profile
		// still shows something useful.
		d.SetLocation("", "", "", raw, now)
		return
	}
	d.SetLocation(loc.City, loc.Region, loc.Country, loc.Label, now)
	d.SetCoordinates(loc.Latitude, loc.Longitude)
}

func (s *Service) invalidateRegionStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, regionStatsKey).Err(); err != nil {
		s.logger.WarnContext(ctx, "region stats cache invalidation failed", "error", err)
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
