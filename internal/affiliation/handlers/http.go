// Package handlers exposes the affiliation approval workflow over HTTP
// to the admin front-end, bridging the transport layer and the
// workflow service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	e "github.com/eventia/affiliations/internal/affiliation/errors"
	"github.com/eventia/affiliations/internal/affiliation/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// WorkflowController defines the business logic interface the HTTP
// handlers invoke.
type WorkflowController interface {
	ApproveAndPromote(ctx context.Context, record *models.Record) (*models.Result, error)
	Reject(ctx context.Context, record *models.Record, reason string) error
	RetryPromotion(ctx context.Context, record *models.Record) (*models.Result, error)
}

// BackendGateway is the read side the handlers need to load the
// snapshot a decision is made against.
type BackendGateway interface {
	FetchAffiliation(ctx context.Context, id string) (*models.Record, error)
	ListAffiliations(ctx context.Context, status *models.Status) ([]*models.Record, error)
}

// Handler serves the admin affiliation endpoints.
type Handler struct {
	workflow WorkflowController
	gateway  BackendGateway
	logger   *zap.Logger
}

// NewHandler constructs a Handler with the given workflow service and gateway.
func NewHandler(workflow WorkflowController, gateway BackendGateway, logger *zap.Logger) *Handler {
	return &Handler{
		workflow: workflow,
		gateway:  gateway,
		logger:   logger.Named("handlers"),
	}
}

// Routes mounts the affiliation endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/affiliations", h.list)
	r.Post("/v1/affiliations/{id}/approve", h.approve)
	r.Post("/v1/affiliations/{id}/reject", h.reject)
	r.Post("/v1/affiliations/{id}/promotion/retry", h.retryPromotion)
}

// list is the thin view-model behind the pending/approved/rejected
// screens: fetch, normalize, filter by status.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var status *models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", err.Error())
			return
		}
		status = &parsed
	}

	records, err := h.gateway.ListAffiliations(r.Context(), status)
	if err != nil {
		h.mapError(w, err)
		return
	}
	if status != nil {
		// Older backend versions ignore the estado query parameter.
		filtered := records[:0]
		for _, record := range records {
			if record.Status == *status {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	result, err := h.workflow.ApproveAndPromote(r.Context(), record)
	if err != nil {
		h.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rejectRequest struct {
	Motivo string `json:"motivo"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}
	// Blank reasons fail before the snapshot fetch; rejection without a
	// reason must cause zero upstream calls.
	if strings.TrimSpace(req.Motivo) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_REASON", e.ErrMissingReason.Error())
		return
	}

	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	if err := h.workflow.Reject(r.Context(), record, req.Motivo); err != nil {
		h.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"companyId": record.ID,
		"status":    models.StatusRejected.String(),
	})
}

func (h *Handler) retryPromotion(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	result, err := h.workflow.RetryPromotion(r.Context(), record)
	if err != nil {
		h.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// loadRecord fetches the snapshot the workflow decisions run against.
func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request) (*models.Record, bool) {
	id := chi.URLParam(r, "id")
	record, err := h.gateway.FetchAffiliation(r.Context(), id)
	if err != nil {
		h.mapError(w, err)
		return nil, false
	}
	return record, true
}

// mapError translates taxonomy errors to HTTP responses.
func (h *Handler) mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, e.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, e.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case errors.Is(err, e.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, e.ErrMissingReason):
		writeError(w, http.StatusBadRequest, "MISSING_REASON", err.Error())
	default:
		if re, ok := e.AsRemote(err); ok {
			writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", re.Message)
			return
		}
		h.logger.Error("internal server error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
