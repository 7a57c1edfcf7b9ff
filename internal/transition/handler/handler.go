// Package handler exposes the transition-request endpoints. Residents open
// and follow their own requests; the lifecycle, linking and completion
// operations are admin-only.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"altona/internal/platform/middleware"
	"altona/internal/transition/models"
	"altona/internal/transition/service"
	"altona/internal/transition/store"
	"altona/internal/transport/http/shared"
	dErrors "altona/pkg/domain-errors"
)

// Handler serves the transition endpoints.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates the transition handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterAuthenticated mounts the resident-facing routes behind RequireAuth.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/transitions", h.create)
	r.Get("/transitions/mine", h.listMine)
}

// RegisterAdmin mounts the admin routes behind RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/transitions", h.list)
	r.Get("/transitions/stats", h.stats)
	r.Get("/transitions/{requestID}", h.get)
	r.Post("/transitions/{requestID}/assign", h.assign)
	r.Post("/transitions/{requestID}/comments", h.comment)
	r.Put("/transitions/{requestID}/status", h.updateStatus)
	r.Post("/transitions/{requestID}/link", h.link)
}

type createRequest struct {
	RequestType          models.RequestType  `json:"request_type"`
	NewOccupantType      models.OccupantType `json:"new_occupant_type"`
	NewOccupantName      string              `json:"new_occupant_name"`
	NewOccupantEmail     string              `json:"new_occupant_email"`
	NewOccupantPhone     string              `json:"new_occupant_phone"`
	NewOccupantIDNumber  string              `json:"new_occupant_id_number"`
	IntendedMoveoutDate  *time.Time          `json:"intended_moveout_date"`
	PropertySold         bool                `json:"property_sold"`
	EstateAgentNotified  bool                `json:"estate_agent_notified"`
	AccessHandoverAgreed bool                `json:"access_handover_agreed"`
	AdultsCount          int                 `json:"adults_count"`
	ChildrenCount        int                 `json:"children_count"`
	PetsCount            int                 `json:"pets_count"`
	MoveoutReason        string              `json:"moveout_reason"`
	Notes                string              `json:"notes"`
	Vehicles             []struct {
		RegistrationNumber string `json:"registration_number"`
		Make               string `json:"make"`
		Model              string `json:"model"`
		Color              string `json:"color"`
	} `json:"vehicles"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	in := service.CreateInput{
		RequestType:          req.RequestType,
		NewOccupantType:      req.NewOccupantType,
		NewOccupantName:      req.NewOccupantName,
		NewOccupantEmail:     req.NewOccupantEmail,
		NewOccupantPhone:     req.NewOccupantPhone,
		NewOccupantIDNumber:  req.NewOccupantIDNumber,
		IntendedMoveoutDate:  req.IntendedMoveoutDate,
		PropertySold:         req.PropertySold,
		EstateAgentNotified:  req.EstateAgentNotified,
		AccessHandoverAgreed: req.AccessHandoverAgreed,
		AdultsCount:          req.AdultsCount,
		ChildrenCount:        req.ChildrenCount,
		PetsCount:            req.PetsCount,
		MoveoutReason:        req.MoveoutReason,
		Notes:                req.Notes,
	}
	for _, v := range req.Vehicles {
		in.Vehicles = append(in.Vehicles, models.Vehicle{
			RegistrationNumber: v.RegistrationNumber,
			Make:               v.Make,
			Model:              v.Model,
			Color:              v.Color,
		})
	}
	created, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	requests, err := h.svc.List(r.Context(), store.Filter{UserID: &userID})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, requests)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := store.Filter{Erf: r.URL.Query().Get("erf")}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.RequestStatus(v)
		f.Status = &status
	}
	if v := r.URL.Query().Get("priority"); v != "" {
		priority := models.Priority(v)
		f.Priority = &priority
	}
	requests, err := h.svc.List(r.Context(), f)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, requests)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathRequestID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, detail)
}

type assignRequest struct {
	Admin string `json:"admin"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathRequestID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	updated, err := h.svc.Assign(r.Context(), id, req.Admin)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) comment(w http.ResponseWriter, r *http.Request) {
	id, err := pathRequestID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := h.svc.Comment(r.Context(), id, middleware.GetUserID(r.Context()), req.Comment); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status  models.RequestStatus `json:"status"`
	Comment string               `json:"comment"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathRequestID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	updated, err := h.svc.UpdateStatus(r.Context(), id, req.Status, middleware.GetUserID(r.Context()), req.Comment)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

type linkRequest struct {
	NewUserID uuid.UUID `json:"new_user_id"`
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	id, err := pathRequestID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	updated, err := h.svc.Link(r.Context(), id, req.NewUserID, middleware.GetUserID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func currentUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid session")
	}
	return id, nil
}

func pathRequestID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid request id")
	}
	return id, nil
}
