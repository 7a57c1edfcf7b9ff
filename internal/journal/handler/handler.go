// Package handler exposes the change journal over HTTP. All routes are
// admin-only; the gate guard and residents never see raw journal rows.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"altona/internal/journal/service"
	"altona/internal/platform/middleware"
	"altona/internal/transport/http/shared"
	dErrors "altona/pkg/domain-errors"
)

// Handler serves the journal admin endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates the journal handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the journal routes. The caller wraps the router with
// authentication and admin middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/changes/critical", h.criticalPending)
	r.Get("/changes/non-critical", h.nonCritical)
	r.Get("/changes/pending", h.allPending)
	r.Get("/changes/user/{userID}", h.userHistory)
	r.Get("/changes/stats", h.stats)
	r.Post("/changes/review", h.markReviewed)
}

func pagination(r *http.Request) (uint64, uint64) {
	limit, _ := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 64)
	offset, _ := strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64)
	return limit, offset
}

func (h *Handler) criticalPending(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	page, err := h.svc.CriticalPending(r.Context(), limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list critical changes", slog.String("error", err.Error()))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) nonCritical(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	onlyUnreviewed := r.URL.Query().Get("unreviewed") == "true"
	page, err := h.svc.NonCritical(r.Context(), onlyUnreviewed, limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list non-critical changes", slog.String("error", err.Error()))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) allPending(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	page, err := h.svc.AllPending(r.Context(), limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list pending changes", slog.String("error", err.Error()))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) userHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return
	}
	limit, offset := pagination(r)
	page, err := h.svc.UserHistory(r.Context(), userID, limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

type reviewRequest struct {
	ChangeIDs []uuid.UUID `json:"change_ids"`
	UserID    *uuid.UUID  `json:"user_id"`
	FieldName string      `json:"field_name"`
}

// markReviewed accepts either explicit change ids or a (user, field) pair.
func (h *Handler) markReviewed(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	reviewer := middleware.GetUserID(r.Context())

	if len(req.ChangeIDs) > 0 {
		n, err := h.svc.MarkReviewed(r.Context(), req.ChangeIDs, reviewer)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, map[string]int{"reviewed": n})
		return
	}

	if req.UserID == nil || req.FieldName == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput,
			"either change_ids or user_id with field_name is required"))
		return
	}
	if err := h.svc.MarkReviewedByField(r.Context(), *req.UserID, req.FieldName, reviewer); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"reviewed": 1})
}
