package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/donor/models"
	donorService "bloodlink/internal/donor/service"
	"bloodlink/internal/donor/store/donor"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/transport/http/shared"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Service defines the interface for donor directory operations.
type Service interface {
	Register(ctx context.Context, ownerID id.UserID, bloodType id.BloodType, location string) (id.DonorID, error)
	Get(ctx context.Context, donorID id.DonorID) (*models.Donor, error)
	GetByOwner(ctx context.Context, ownerID id.UserID) (*models.Donor, error)
	UpdateProfile(ctx context.Context, ownerID id.UserID, params donorService.UpdateParams) (*models.Donor, error)
	DeleteByOwner(ctx context.Context, ownerID id.UserID) error
	FindCompatible(ctx context.Context, recipient id.BloodType, excludeOwner id.UserID) ([]*models.Donor, error)
	Search(ctx context.Context, filter donor.Filter) ([]*models.Donor, error)
	RegionStats(ctx context.Context) ([]donor.RegionCount, error)
	Stats(ctx context.Context) (*donorService.HomeStats, error)
}

// Handler handles donor directory endpoints.
type Handler struct {
	logger       *slog.Logger
	donors       Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new donor Handler.
func New(donors Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		donors:       donors,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the donor routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	donorRouter := chi.NewRouter()
	donorRouter.Use(middleware.Recovery(h.logger))
	donorRouter.Use(middleware.RequestID)
	donorRouter.Use(middleware.Logger(h.logger))
	donorRouter.Use(middleware.Timeout(30 * time.Second))
	donorRouter.Use(middleware.ContentTypeJSON)
	donorRouter.Use(middleware.LatencyMiddleware(h.metrics))

	donorRouter.Get("/regions", h.handleRegionStats)

	donorRouter.Group(func(private chi.Router) {
		private.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		private.Post("/", h.handleRegister)
		private.Get("/", h.handleSearch)
		private.Get("/me", h.handleOwnProfile)
		private.Patch("/me", h.handleUpdateProfile)
		private.Delete("/me", h.handleDeleteProfile)
		private.Get("/compatible", h.handleFindCompatible)
		private.Get("/{donorID}", h.handleGet)
	})

	r.Mount("/donors", donorRouter)

	statsRouter := chi.NewRouter()
	statsRouter.Use(middleware.Recovery(h.logger))
	statsRouter.Use(middleware.RequestID)
	statsRouter.Use(middleware.Logger(h.logger))
	statsRouter.Use(middleware.Timeout(30 * time.Second))
	statsRouter.Use(middleware.ContentTypeJSON)
	statsRouter.Use(middleware.LatencyMiddleware(h.metrics))
	statsRouter.Get("/", h.handleStats)

	r.Mount("/stats", statsRouter)
}

// RegisterDonorRequest is the wire shape for profile creation.
type RegisterDonorRequest struct {
	BloodType string `json:"blood_type"`
	Location  string `json:"location"`
}

// UpdateDonorRequest carries profile edits; absent fields stay unchanged.
type UpdateDonorRequest struct {
	BloodType *string `json:"blood_type,omitempty"`
	Location  *string `json:"location,omitempty"`
	Available *bool   `json:"available,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RegisterDonorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	bloodType, err := id.ParseBloodType(req.BloodType)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood type"))
		return
	}

	donorID, err := h.donors.Register(ctx, userID, bloodType, req.Location)
	if err != nil {
		h.logger.WarnContext(ctx, "donor registration failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	d, err := h.donors.Get(ctx, donorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	donorID, err := id.ParseDonorID(chi.URLParam(r, "donorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	d, err := h.donors.Get(r.Context(), donorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleOwnProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.donors.GetByOwner(ctx, middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateDonorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	params := donorService.UpdateParams{Location: req.Location, Available: req.Available}
	if req.BloodType != nil {
		bloodType, err := id.ParseBloodType(*req.BloodType)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood type"))
			return
		}
		params.BloodType = &bloodType
	}

	d, err := h.donors.UpdateProfile(ctx, middleware.GetUserID(ctx), params)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.donors.DeleteByOwner(ctx, middleware.GetUserID(ctx)); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFindCompatible(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bloodType, err := id.ParseBloodType(r.URL.Query().Get("blood_type"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood type"))
		return
	}

	donors, err := h.donors.FindCompatible(ctx, bloodType, middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse(donors))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := donor.Filter{Location: q.Get("location")}
	if raw := q.Get("blood_type"); raw != "" {
		bloodType, err := id.ParseBloodType(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood type"))
			return
		}
		filter.BloodType = bloodType
	}

	donors, err := h.donors.Search(ctx, filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse(donors))
}

func (h *Handler) handleRegionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.donors.RegionStats(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if stats == nil {
		stats = []donor.RegionCount{}
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.donors.Stats(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

// listResponse keeps empty result sets as [] rather than null on the wire.
func listResponse(donors []*models.Donor) []*models.Donor {
	if donors == nil {
		return []*models.Donor{}
	}
	return donors
}
