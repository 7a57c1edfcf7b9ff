// Package handler exposes the ERF address directory. Lookups are public;
// imports are admin-only and mounted behind the admin middleware.
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"altona/internal/directory/service"
	"altona/internal/transport/http/shared"
	dErrors "altona/pkg/domain-errors"
)

// Handler serves the directory endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates the directory handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the unauthenticated lookup routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/erf/{erfNumber}", h.lookup)
}

// RegisterAdmin mounts the import routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/erf", h.list)
	r.Post("/erf/import", h.importTable)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "erfNumber"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.svc.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, mappings)
}

// importTable sniffs the upload format from the Content-Type header and
// accepts either CSV or an Excel workbook.
func (h *Handler) importTable(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	contentType := r.Header.Get("Content-Type")

	var (
		result *service.ImportResult
		err    error
	)
	switch {
	case strings.Contains(contentType, "spreadsheet"), strings.Contains(contentType, "excel"):
		result, err = h.svc.ImportXLSX(r.Context(), r.Body)
	case strings.Contains(contentType, "csv"), strings.Contains(contentType, "text/plain"):
		result, err = h.svc.ImportCSV(r.Context(), r.Body)
	default:
		err = dErrors.New(dErrors.CodeInvalidInput, "unsupported content type, expected csv or xlsx")
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "erf import accepted",
		slog.Int("imported", result.Imported))
	shared.WriteJSON(w, http.StatusOK, result)
}
