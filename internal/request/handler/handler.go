package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/request/models"
	requestService "bloodlink/internal/request/service"
	requestStore "bloodlink/internal/request/store/request"
	"bloodlink/internal/transport/http/shared"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

// Service defines the interface for donation-request operations.
type Service interface {
	Create(ctx context.Context, requesterID id.UserID, params requestService.CreateParams) (*models.DonationRequest, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.DonationRequest, error)
	AddCandidate(ctx context.Context, requestID id.RequestID, donorID id.DonorID) (*models.DonationRequest, error)
	Accept(ctx context.Context, requestID id.RequestID, actorID id.UserID, donorID id.DonorID) (*models.DonationRequest, error)
	Reject(ctx context.Context, requestID id.RequestID, actorID id.UserID) error
	Cancel(ctx context.Context, requestID id.RequestID, actorID id.UserID) error
	ContactInfo(ctx context.Context, requestID id.RequestID, donorID id.DonorID, actorID id.UserID) (requestService.ContactInfo, error)
	Incoming(ctx context.Context, recipientID id.UserID) ([]*models.DonationRequest, error)
	Outgoing(ctx context.Context, requesterID id.UserID) ([]*models.DonationRequest, error)
	Active(ctx context.Context, filter requestStore.ActiveFilter) ([]*models.DonationRequest, error)
	History(ctx context.Context, filter requestStore.HistoryFilter) ([]*models.DonationRequest, error)
}

// Handler handles donation-request endpoints.
type Handler struct {
	logger       *slog.Logger
	requests     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new request Handler.
func New(requests Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		requests:     requests,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the request routes with the chi router. Every route
// requires authentication.
func (h *Handler) Register(r chi.Router) {
	requestRouter := chi.NewRouter()
	requestRouter.Use(middleware.Recovery(h.logger))
	requestRouter.Use(middleware.RequestID)
	requestRouter.Use(middleware.Logger(h.logger))
	requestRouter.Use(middleware.Timeout(30 * time.Second))
	requestRouter.Use(middleware.ContentTypeJSON)
	requestRouter.Use(middleware.LatencyMiddleware(h.metrics))
	requestRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	requestRouter.Post("/", h.handleCreate)
	requestRouter.Get("/incoming", h.handleIncoming)
	requestRouter.Get("/outgoing", h.handleOutgoing)
	requestRouter.Get("/active", h.handleActive)
	requestRouter.Get("/history", h.handleHistory)
	requestRouter.Post("/{requestID}/candidates", h.handleAddCandidate)
	requestRouter.Post("/{requestID}/accept", h.handleAccept)
	requestRouter.Post("/{requestID}/reject", h.handleReject)
	requestRouter.Delete("/{requestID}", h.handleCancel)
	requestRouter.Get("/{requestID}/contact/{donorID}", h.handleContactInfo)

	r.Mount("/requests", requestRouter)
}

// CreateRequest is the wire shape for opening a request.
type CreateRequest struct {
	RecipientID string `json:"recipient_id"`
	BloodType   string `json:"blood_type"`
	Location    string `json:"location"`
}

// CandidateRequest names the donor to attach or accept.
type CandidateRequest struct {
	DonorID string `json:"donor_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	recipientID, err := id.ParseUserID(req.RecipientID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid recipient ID"))
		return
	}
	bloodType, err := id.ParseBloodType(req.BloodType)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood type"))
		return
	}

	created, err := h.requests.Create(ctx, middleware.GetUserID(ctx), requestService.CreateParams{
		RecipientID: recipientID,
		BloodType:   bloodType,
		Location:    req.Location,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "request creation failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req CandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	donorID, err := id.ParseDonorID(req.DonorID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid donor ID"))
		return
	}

	updated, err := h.requests.AddCandidate(ctx, requestID, donorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// The body is optional: a donor accepting on their own behalf sends
	// nothing; a recipient names the candidate donor to confirm.
	var donorID id.DonorID
	var req CandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.DonorID != "" {
		donorID, err = id.ParseDonorID(req.DonorID)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid donor ID"))
			return
		}
	}

	updated, err := h.requests.Accept(ctx, requestID, middleware.GetUserID(ctx), donorID)
	if err != nil {
		h.logger.WarnContext(ctx, "accept failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.requests.Reject(ctx, requestID, middleware.GetUserID(ctx)); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.requests.Cancel(ctx, requestID, middleware.GetUserID(ctx)); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleContactInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	donorID, err := id.ParseDonorID(chi.URLParam(r, "donorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	info, err := h.requests.ContactInfo(ctx, requestID, donorID, middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleIncoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.requests.Incoming(ctx, middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse(out))
}

func (h *Handler) handleOutgoing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.requests.Outgoing(ctx, middleware.GetUserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse(out))
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := requestStore.ActiveFilter{Country: q.Get("country")}
	if raw := q.Get("blood_type"); raw != "" {
		bloodType, err := id.ParseBloodType(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood type"))
			return
		}
		filter.BloodType = bloodType
	}

	out, err := h.requests.Active(ctx, filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse(out))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := requestStore.HistoryFilter{
		City:    q.Get("city"),
		Country: q.Get("country"),
	}
	if raw := q.Get("blood_type"); raw != "" {
		bloodType, err := id.ParseBloodType(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid blood type"))
			return
		}
		filter.BloodType = bloodType
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		filter.Status = status
	}
	filter.Limit = intQuery(q.Get("limit"))
	filter.Offset = intQuery(q.Get("offset"))

	out, err := h.requests.History(ctx, filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse(out))
}

func intQuery(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// listResponse keeps empty result sets as [] rather than null on the wire.
func listResponse(requests []*models.DonationRequest) []*models.DonationRequest {
	if requests == nil {
		return []*models.DonationRequest{}
	}
	return requests
}
