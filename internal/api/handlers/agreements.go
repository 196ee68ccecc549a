package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/auth"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

// AgreementService is the agreement use case surface
type AgreementService interface {
	Create(ctx context.Context, in agreement.CreateInput) (*agreement.Agreement, error)
	Update(ctx context.Context, id uuid.UUID, in agreement.UpdateInput) (*agreement.Agreement, error)
	Get(ctx context.Context, id uuid.UUID) (*agreement.Agreement, error)
	GetDueAgreements(ctx context.Context, asOf time.Time) ([]agreement.DueAgreement, error)
	Stats(ctx context.Context) (*agreement.Stats, error)
}

// AgreementHandler handles the staff agreement endpoints
type AgreementHandler struct {
	svc    AgreementService
	logger *logger.Logger
}

// NewAgreementHandler creates a new agreement handler
func NewAgreementHandler(svc AgreementService, log *logger.Logger) *AgreementHandler {
	return &AgreementHandler{svc: svc, logger: log}
}

// Create stores a new agreement
// POST /api/agreements
func (h *AgreementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in agreement.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    a,
	})
}

// Update applies a partial update
// PATCH /api/agreements/{id}
func (h *AgreementHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var in agreement.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    a,
	})
}

// Get returns one agreement
// GET /api/agreements/{id}
func (h *AgreementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    a,
	})
}

// Due lists the agreements whose report is due
// GET /api/agreements/due?asOf=2024-01-08
func (h *AgreementHandler) Due(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if s := r.URL.Query().Get("asOf"); s != "" {
		d, err := deadline.ParseDate(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "asOf must be YYYY-MM-DD")
			return
		}
		asOf = d
	}

	due, err := h.svc.GetDueAgreements(r.Context(), asOf)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if due == nil {
		due = []agreement.DueAgreement{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(due),
		"data":    due,
	})
}

// Stats returns the dashboard counters
// GET /api/agreements/stats
func (h *AgreementHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stats,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *AgreementHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := agreement.AsValidation(err); ok {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   verr.Error(),
			"field":   verr.Field,
		})
		return
	}

	if errors.Is(err, agreement.ErrNotFound) {
		respondError(w, http.StatusNotFound, "agreement not found")
		return
	}

	log := h.logger.WithError(err).WithField("path", r.URL.Path)
	if claims, ok := auth.ClaimsFrom(r.Context()); ok {
		log = log.WithField("user_id", claims.UserID)
	}
	log.Error("Agreement request failed")
	respondError(w, http.StatusInternalServerError, "internal error")
}
