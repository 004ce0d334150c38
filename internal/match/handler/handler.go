package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/compat"
	"bloodlink/internal/match/models"
	matchService "bloodlink/internal/match/service"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/transport/http/shared"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Service defines the interface for match operations.
type Service interface {
	MatchesFor(ctx context.Context, userID id.UserID) ([]models.MatchView, error)
	CheckCompatibility(ctx context.Context, params matchService.CheckParams) (bool, error)
}

// Handler handles match and compatibility endpoints.
type Handler struct {
	logger       *slog.Logger
	matches      Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new match Handler.
func New(matches Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		matches:      matches,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the match routes with the chi router. The checker and
// inheritance endpoints are public; the match listing requires auth.
func (h *Handler) Register(r chi.Router) {
	matchRouter := chi.NewRouter()
	matchRouter.Use(middleware.Recovery(h.logger))
	matchRouter.Use(middleware.RequestID)
	matchRouter.Use(middleware.Logger(h.logger))
	matchRouter.Use(middleware.Timeout(30 * time.Second))
	matchRouter.Use(middleware.ContentTypeJSON)
	matchRouter.Use(middleware.LatencyMiddleware(h.metrics))
	matchRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	matchRouter.Get("/", h.handleMatches)

	r.Mount("/matches", matchRouter)

	compatRouter := chi.NewRouter()
	compatRouter.Use(middleware.Recovery(h.logger))
	compatRouter.Use(middleware.RequestID)
	compatRouter.Use(middleware.Logger(h.logger))
	compatRouter.Use(middleware.Timeout(30 * time.Second))
	compatRouter.Use(middleware.ContentTypeJSON)
	compatRouter.Use(middleware.LatencyMiddleware(h.metrics))
	compatRouter.Get("/check", h.handleCheck)
	compatRouter.Get("/inheritance", h.handleInheritance)

	r.Mount("/compatibility", compatRouter)
}

// CheckResponse is the checker endpoint payload.
type CheckResponse struct {
	DonorBloodType     string `json:"donor_blood_type"`
	RecipientBloodType string `json:"recipient_blood_type"`
	Compatible         bool   `json:"compatible"`
}

// InheritanceResponse lists the blood types a child of the two parents can
// have.
type InheritanceResponse struct {
	Parent1            string   `json:"parent1"`
	Parent2            string   `json:"parent2"`
	PossibleBloodTypes []string `json:"possible_blood_types"`
}

func (h *Handler) handleMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	views, err := h.matches.MatchesFor(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "match listing failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if views == nil {
		views = []models.MatchView{}
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	donorBlood, err := id.ParseBloodType(q.Get("donor_blood_type"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid donor blood type"))
		return
	}
	recipientBlood, err := id.ParseBloodType(q.Get("recipient_blood_type"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid recipient blood type"))
		return
	}

	compatible, err := h.matches.CheckCompatibility(ctx, matchService.CheckParams{
		DonorBloodType:     donorBlood,
		RecipientBloodType: recipientBlood,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, CheckResponse{
		DonorBloodType:     donorBlood.String(),
		RecipientBloodType: recipientBlood.String(),
		Compatible:         compatible,
	})
}

func (h *Handler) handleInheritance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	parent1, err := id.ParseBloodType(q.Get("parent1"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid parent1 blood type"))
		return
	}
	parent2, err := id.ParseBloodType(q.Get("parent2"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid parent2 blood type"))
		return
	}

	types := compat.PossibleChildTypes(parent1, parent2)
	out := make([]string, len(types))
	for i, bt := range types {
		out[i] = bt.String()
	}
	shared.WriteJSON(w, http.StatusOK, InheritanceResponse{
		Parent1:            parent1.String(),
		Parent2:            parent2.String(),
		PossibleBloodTypes: out,
	})
}
