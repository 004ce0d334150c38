package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bloodlink/internal/audit"
	"bloodlink/internal/auth/models"
	"bloodlink/internal/platform/metrics"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/secrets"
)

// UserStore persists user accounts.
type UserStore interface {
	CreateIfEmailAvailable(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, userID id.UserID) error
}

// DonorRegistry is the slice of the donor feature the auth service needs:
// creating a profile during signup and cascading deletion when the account
// goes away.
type DonorRegistry interface {
	Register(ctx context.Context, ownerID id.UserID, bloodType id.BloodType, location string) (id.DonorID, error)
	DeleteByOwner(ctx context.Context, ownerID id.UserID) error
}

// RequestPurger removes a departing user's donation requests and their
// match-history links.
type RequestPurger interface {
	PurgeByUser(ctx context.Context, userID id.UserID) error
}

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, expiresIn time.Duration) (string, error)
}

// AuditPublisher records account lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service orchestrates account registration, login, and profile management.
type Service struct {
	users          UserStore
	donors         DonorRegistry
	tokens         TokenIssuer
	tokenTTL       time.Duration
	purger         RequestPurger
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

// WithRequestPurger wires the account-deletion cascade for donation
// requests.
func WithRequestPurger(purger RequestPurger) Option {
	return func(s *Service) {
		s.purger = purger
	}
}

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

// New constructs a Service.
func New(users UserStore, donors DonorRegistry, tokens TokenIssuer, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		users:    users,
		donors:   donors,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams carries signup input. DonorProfile is optional; when set the
// account is created together with its donor profile.
type RegisterParams struct {
	Name     string
	Email    string
	Password string

	DonorProfile *DonorSignup
}

// DonorSignup is the optional donor profile created alongside the account.
type DonorSignup struct {
	BloodType id.BloodType
	Location  string
}

// Register creates an account and, when requested, its donor profile, then
// logs the user straight in.
//
// Errors: CodeValidation on bad input, CodeConflict when the email is taken.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, string, error) {
	if len(params.Password) < 8 {
		return nil, "", dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := secrets.Hash(params.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, "", dErrors.New(dErrors.CodeValidation, "password is not usable")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}

	user, err := models.NewUser(id.NewUserID(), params.Name, params.Email, hash)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, "", dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, "", err
	}

	if params.DonorProfile != nil && !params.DonorProfile.BloodType.IsValid() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "invalid blood type")
	}

	if err := s.users.CreateIfEmailAvailable(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not create user")
	}

	if params.DonorProfile != nil {
		donorID, err := s.donors.Register(ctx, user.ID, params.DonorProfile.BloodType, params.DonorProfile.Location)
		if err != nil {
			s.logger.ErrorContext(ctx, "donor profile creation failed during signup",
				"user_id", user.ID.String(),
				"error", err,
			)
			return nil, "", err
		}
		if err := user.AttachDonor(donorID, time.Now()); err != nil {
			return nil, "", err
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not link donor profile")
		}
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, s.tokenTTL)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not issue token")
	}

	s.emit(ctx, audit.Event{
		ActorID: user.ID,
		Action:  audit.ActionDonorRegistered,
		DonorID: user.DonorID,
		Outcome: audit.OutcomeOK,
	}, params.DonorProfile != nil)

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"is_donor", user.IsDonor(),
	)
	return user, token, nil
}

// Login authenticates by email and password and returns a fresh token.
//
// Errors: CodeUnauthorized on unknown email or wrong password. The two cases
// are deliberately indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not look up user")
	}

	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, s.tokenTTL)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not issue token")
	}
	return user, token, nil
}

// Profile returns the user's account record.
//
// Errors: CodeNotFound when no such account exists.
func (s *Service) Profile(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}
	return user, nil
}

// UpdateName renames the account.
func (s *Service) UpdateName(ctx context.Context, userID id.UserID, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "name must be between 1 and 128 characters")
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = name
	user.UpdatedAt = time.Now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not update user")
	}
	return user, nil
}

// Delete removes the account and cascades to its donor profile. Donation
// history rows survive with their request links cleared; that is handled by
// the donor registry's delete path.
func (s *Service) Delete(ctx context.Context, userID id.UserID) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}

	if user.IsDonor() {
		if err := s.donors.DeleteByOwner(ctx, userID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}
	}
	if s.purger != nil {
		if err := s.purger.PurgeByUser(ctx, userID); err != nil {
			return err
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not delete user")
	}

	s.emit(ctx, audit.Event{
		ActorID: userID,
		Action:  audit.ActionDonorDeleted,
		Outcome: audit.OutcomeOK,
	}, user.IsDonor())

	s.logger.InfoContext(ctx, "user deleted", "user_id", userID.String())
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event, enabled bool) {
	if !enabled || s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
