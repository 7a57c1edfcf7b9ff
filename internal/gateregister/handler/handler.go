// Package handler exposes the admin-only gate-register endpoints.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"altona/internal/gateregister/service"
	"altona/internal/transport/http/shared"
)

// Handler serves the gate-register endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates the gate-register handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterAdmin mounts the routes behind RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/gate-register", h.register)
	r.Get("/gate-register/changes", h.changes)
	r.Get("/gate-register/export/csv", h.exportCSV)
	r.Get("/gate-register/export/html", h.exportHTML)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Build(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) changes(w http.ResponseWriter, r *http.Request) {
	rows, _, err := h.svc.Changed(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.svc.ExportCSV(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	writeDownload(w, data, filename, "text/csv; charset=utf-8")
}

func (h *Handler) exportHTML(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.svc.ExportHTML(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	writeDownload(w, data, filename, "text/html; charset=utf-8")
}

func writeDownload(w http.ResponseWriter, data []byte, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
