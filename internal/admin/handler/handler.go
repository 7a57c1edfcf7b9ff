// Package handler exposes the admin dashboard endpoints.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"altona/internal/admin/service"
	"altona/internal/transport/http/shared"
)

// Handler serves the admin query endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates the admin handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterAdmin mounts the routes behind RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/registrations/pending", h.pendingRegistrations)
	r.Get("/dashboard/stats", h.dashboard)
	r.Get("/groups", h.groups)
}

func (h *Handler) pendingRegistrations(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.PendingRegistrations(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, pending)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.MessagingGroups(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, groups)
}
