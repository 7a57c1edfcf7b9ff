// Package handler exposes registration, login, profile and vehicle
// endpoints. Public routes carry no auth; admin routes are mounted behind
// the admin middleware by the caller.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"altona/internal/identity/models"
	"altona/internal/identity/service"
	"altona/internal/platform/middleware"
	"altona/internal/transport/http/shared"
	dErrors "altona/pkg/domain-errors"
)

// Handler serves the identity endpoints.
type Handler struct {
	svc    *service.Service
	issuer service.TokenIssuer
	logger *slog.Logger
}

// New creates the identity handler.
func New(svc *service.Service, issuer service.TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, issuer: issuer, logger: logger}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
}

// RegisterAuthenticated mounts the routes behind RequireAuth.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/users/me", h.myProfile)
	r.Put("/users/me", h.updateMyProfile)
	r.Post("/auth/password", h.changePassword)
	r.Post("/users/me/vehicles", h.addMyVehicle)
	r.Put("/vehicles/{vehicleID}", h.updateVehicle)
	r.Delete("/vehicles/{vehicleID}", h.deleteVehicle)
}

// RegisterAdmin mounts the routes behind RequireAdmin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/users/{userID}", h.profile)
	r.Put("/users/{userID}", h.adminUpdate)
	r.Post("/users/{userID}/approve", h.approve)
	r.Post("/users/{userID}/reject", h.reject)
	r.Post("/users/{userID}/vehicles", h.addVehicleFor)
}

type registerRequest struct {
	Email                  string                `json:"email"`
	Password               string                `json:"password"`
	FirstName              string                `json:"first_name"`
	LastName               string                `json:"last_name"`
	IDNumber               string                `json:"id_number"`
	PhoneNumber            string                `json:"phone_number"`
	EmergencyContactName   string                `json:"emergency_contact_name"`
	EmergencyContactNumber string                `json:"emergency_contact_number"`
	ErfNumber              string                `json:"erf_number"`
	StreetNumber           string                `json:"street_number"`
	StreetName             string                `json:"street_name"`
	IsResident             bool                  `json:"is_resident"`
	IsOwner                bool                  `json:"is_owner"`
	TitleDeedNumber        string                `json:"title_deed_number"`
	PostalAddress          models.PostalAddress  `json:"postal_address"`
	MovingInDate           *time.Time            `json:"moving_in_date"`
	IntercomCode           string                `json:"intercom_code"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	reg, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:                  req.Email,
		Password:               req.Password,
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		IDNumber:               req.IDNumber,
		PhoneNumber:            req.PhoneNumber,
		EmergencyContactName:   req.EmergencyContactName,
		EmergencyContactNumber: req.EmergencyContactNumber,
		ErfNumber:              req.ErfNumber,
		StreetNumber:           req.StreetNumber,
		StreetName:             req.StreetName,
		IsResident:             req.IsResident,
		IsOwner:                req.IsOwner,
		TitleDeedNumber:        req.TitleDeedNumber,
		PostalAddress:          req.PostalAddress,
		MovingInDate:           req.MovingInDate,
		IntercomCode:           req.IntercomCode,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id": reg.User.ID,
		"status":  reg.User.Status,
	})
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	ErfNumber string `json:"erf_number,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	session, err := h.svc.Login(r.Context(), h.issuer, req.Email, req.Password, req.ErfNumber)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, session)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := h.svc.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) myProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	profile, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	profile, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profile)
}

type updateRequest struct {
	FirstName              *string               `json:"first_name"`
	LastName               *string               `json:"last_name"`
	Email                  *string               `json:"email"`
	PhoneNumber            *string               `json:"phone_number"`
	EmergencyContactName   *string               `json:"emergency_contact_name"`
	EmergencyContactNumber *string               `json:"emergency_contact_number"`
	IntercomCode           *string               `json:"intercom_code"`
	PostalAddress          *models.PostalAddress `json:"postal_address"`
}

func (req updateRequest) toInput() service.UpdateInput {
	return service.UpdateInput{
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Email:                  req.Email,
		PhoneNumber:            req.PhoneNumber,
		EmergencyContactName:   req.EmergencyContactName,
		EmergencyContactNumber: req.EmergencyContactNumber,
		IntercomCode:           req.IntercomCode,
		PostalAddress:          req.PostalAddress,
	}
}

func (h *Handler) updateMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	profile, err := h.svc.UpdateProfile(r.Context(), userID, req.toInput())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) adminUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	profile, err := h.svc.AdminUpdate(r.Context(), userID, req.toInput())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	user, err := h.svc.Approve(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"status":  user.Status,
		"role":    user.Role,
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req rejectRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := h.svc.Reject(r.Context(), userID, req.Reason); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type vehicleRequest struct {
	RegistrationNumber string `json:"registration_number"`
	Make               string `json:"make"`
	Model              string `json:"model"`
	Color              string `json:"color"`
}

func (req vehicleRequest) toInput() service.VehicleInput {
	return service.VehicleInput{
		RegistrationNumber: req.RegistrationNumber,
		Make:               req.Make,
		Model:              req.Model,
		Color:              req.Color,
	}
}

func (h *Handler) addMyVehicle(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.addVehicle(w, r, userID, userID)
}

func (h *Handler) addVehicleFor(w http.ResponseWriter, r *http.Request) {
	actorID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	targetID, err := pathUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.addVehicle(w, r, actorID, targetID)
}

func (h *Handler) addVehicle(w http.ResponseWriter, r *http.Request, actorID, targetID uuid.UUID) {
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	vehicle, err := h.svc.AddVehicle(r.Context(), actorID, targetID, middleware.IsAdmin(r.Context()), req.toInput())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, vehicle)
}

func (h *Handler) updateVehicle(w http.ResponseWriter, r *http.Request) {
	actorID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	vehicleID, err := uuid.Parse(chi.URLParam(r, "vehicleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid vehicle id"))
		return
	}
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	vehicle, err := h.svc.UpdateVehicle(r.Context(), actorID, vehicleID, middleware.IsAdmin(r.Context()), req.toInput())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) deleteVehicle(w http.ResponseWriter, r *http.Request) {
	actorID, err := currentUserID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	vehicleID, err := uuid.Parse(chi.URLParam(r, "vehicleID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid vehicle id"))
		return
	}
	if err := h.svc.DeleteVehicle(r.Context(), actorID, vehicleID, middleware.IsAdmin(r.Context())); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func currentUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.GetUserID(r.Context())
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid session")
	}
	return id, nil
}

func pathUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	return id, nil
}
