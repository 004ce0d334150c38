package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/internal/compat"
	"bloodlink/internal/geo"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/request/models"
	requestService "bloodlink/internal/request/service"
	requestStore "bloodlink/internal/request/store/request"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

type stubValidator struct {
	userID id.UserID
}

func (s stubValidator) ValidateToken(string) (*middleware.JWTClaims, error) {
	return &middleware.JWTClaims{UserID: s.userID.String()}, nil
}

type stubDirectory struct {
	byID    map[id.DonorID]requestService.DonorView
	byOwner map[id.UserID]requestService.DonorView
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		byID:    make(map[id.DonorID]requestService.DonorView),
		byOwner: make(map[id.UserID]requestService.DonorView),
	}
}

func (d *stubDirectory) add(ownerID id.UserID, bloodType id.BloodType) requestService.DonorView {
	view := requestService.DonorView{
		ID:        id.NewDonorID(),
		OwnerID:   ownerID,
		BloodType: bloodType,
		Email:     "donor@example.com",
		Location:  "Dhaka, Bangladesh",
	}
	d.byID[view.ID] = view
	d.byOwner[ownerID] = view
	return view
}

func (d *stubDirectory) DonorByID(_ context.Context, donorID id.DonorID) (requestService.DonorView, error) {
	view, ok := d.byID[donorID]
	if !ok {
		return requestService.DonorView{}, dErrors.New(dErrors.CodeNotFound, "donor not found")
	}
	return view, nil
}

func (d *stubDirectory) DonorByOwner(_ context.Context, ownerID id.UserID) (requestService.DonorView, error) {
	view, ok := d.byOwner[ownerID]
	if !ok {
		return requestService.DonorView{}, dErrors.New(dErrors.CodeNotFound, "donor profile not found")
	}
	return view, nil
}

type noopRecorder struct{}

func (noopRecorder) RecordAcceptance(context.Context, id.RequestID, id.DonorID, id.UserID, id.BloodType, id.BloodType) error {
	return nil
}

func (noopRecorder) UnlinkRequest(context.Context, id.RequestID) error { return nil }

type env struct {
	directory *stubDirectory
	svc       *requestService.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	directory := newStubDirectory()
	svc := requestService.New(requestStore.NewInMemory(), directory, compat.Default(), noopRecorder{}, geo.Static{})
	return &env{directory: directory, svc: svc}
}

func (e *env) router(t *testing.T, userID id.UserID) chi.Router {
	t.Helper()
	h := New(e.svc, slog.New(slog.DiscardHandler), nil, stubValidator{userID: userID})
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreate(t *testing.T) {
	e := newEnv(t)
	requesterID := id.NewUserID()
	recipientID := id.NewUserID()
	e.directory.add(requesterID, id.BloodONeg)
	e.directory.add(recipientID, id.BloodAPos)
	router := e.router(t, requesterID)

	t.Run("creates a request", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/requests/", CreateRequest{
			RecipientID: recipientID.String(),
			BloodType:   "A+",
			Location:    "Dhaka",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var created models.DonationRequest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, recipientID, created.RecipientID)
		assert.Equal(t, models.StatusPending, created.Status)
		assert.Len(t, created.Candidates, 1)
	})

	t.Run("duplicate pending request", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/requests/", CreateRequest{
			RecipientID: recipientID.String(),
			BloodType:   "A+",
		})
		assert.Equal(t, dErrors.ToHTTPStatus(dErrors.CodeDuplicateRequest), rec.Code)
	})

	t.Run("invalid blood type", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/requests/", CreateRequest{
			RecipientID: recipientID.String(),
			BloodType:   "X",
		})
		assert.Equal(t, dErrors.ToHTTPStatus(dErrors.CodeValidation), rec.Code)
	})

	t.Run("self request", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/requests/", CreateRequest{
			RecipientID: requesterID.String(),
			BloodType:   "A+",
		})
		assert.Equal(t, dErrors.ToHTTPStatus(dErrors.CodeSelfRequest), rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/requests/", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAcceptAndContactFlow(t *testing.T) {
	e := newEnv(t)
	requesterID := id.NewUserID()
	recipientID := id.NewUserID()
	requesterDonor := e.directory.add(requesterID, id.BloodONeg)
	e.directory.add(recipientID, id.BloodAPos)

	requesterRouter := e.router(t, requesterID)
	recipientRouter := e.router(t, recipientID)

	rec := do(t, requesterRouter, http.MethodPost, "/requests/", CreateRequest{
		RecipientID: recipientID.String(),
		BloodType:   "A+",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.DonationRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	contactPath := "/requests/" + created.ID.String() + "/contact/" + requesterDonor.ID.String()

	t.Run("contact is hidden before acceptance", func(t *testing.T) {
		rec := do(t, recipientRouter, http.MethodGet, contactPath, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"email": "Hidden until accepted", "location": "Hidden until accepted"}`,
			rec.Body.String(),
		)
	})

	t.Run("donor accepts with an empty body", func(t *testing.T) {
		rec := do(t, requesterRouter, http.MethodPost, "/requests/"+created.ID.String()+"/accept", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated models.DonationRequest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, models.StatusMatched, updated.Status)
		assert.True(t, updated.Accepted)
	})

	t.Run("contact is disclosed after acceptance", func(t *testing.T) {
		rec := do(t, recipientRouter, http.MethodGet, contactPath, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var info requestService.ContactInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "donor@example.com", info.Email)
		assert.Equal(t, "Dhaka, Bangladesh", info.Location)
	})

	t.Run("a stranger cannot reject", func(t *testing.T) {
		stranger := e.router(t, id.NewUserID())
		rec := do(t, stranger, http.MethodPost, "/requests/"+created.ID.String()+"/reject", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("matched requests cannot be cancelled", func(t *testing.T) {
		rec := do(t, requesterRouter, http.MethodDelete, "/requests/"+created.ID.String(), nil)
		assert.Equal(t, dErrors.ToHTTPStatus(dErrors.CodeInvalidState), rec.Code)
	})
}

func TestListingsStayArrays(t *testing.T) {
	e := newEnv(t)
	router := e.router(t, id.NewUserID())

	for _, path := range []string{"/requests/incoming", "/requests/outgoing", "/requests/active", "/requests/history"} {
		rec := do(t, router, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, "[]", rec.Body.String(), path)
	}
}
