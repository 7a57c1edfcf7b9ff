// Package handler exposes the admin-only archival endpoints.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"altona/internal/archive/service"
	"altona/internal/transport/http/shared"
	dErrors "altona/pkg/domain-errors"
)

// Handler serves the archive endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates the archive handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterAdmin mounts the routes behind RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/users/{userID}/archive", h.archiveUser)
	r.Get("/archives", h.list)
	r.Get("/archives/deletion-log", h.deletionLog)
	r.Post("/archives/purge", h.purge)
}

type archiveRequest struct {
	Reason       string `json:"reason"`
	ArchivedBy   string `json:"archived_by"`
	PropertySold bool   `json:"property_sold"`
}

func (h *Handler) archiveUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return
	}
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	archive, err := h.svc.ArchiveUser(r.Context(), userID, service.ArchiveInput{
		Reason:       req.Reason,
		Actor:        req.ArchivedBy,
		PropertySold: req.PropertySold,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, archive)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	archives, err := h.svc.ListArchives(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, archives)
}

func (h *Handler) deletionLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.DeletionLog(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	purged, err := h.svc.PurgeExpired(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"purged": purged})
}
