package team

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
)

// Handler exposes the roster endpoints.
type Handler struct {
	Svc *Service
}

type memberPayload struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	CommissionRateBps int32  `json:"commissionRateBps"`
	Password          string `json:"password"`
}

type memberUpdatePayload struct {
	Name              *string `json:"name"`
	Email             *string `json:"email"`
	Role              *string `json:"role"`
	CommissionRateBps *int32  `json:"commissionRateBps"`
	Active            *bool   `json:"active"`
	Password          *string `json:"password"`
}

// Create handles POST /api/v1/team.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload memberPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.Svc.AddMember(r.Context(), common.ActorFrom(r.Context()), AddMemberInput{
		Name:              payload.Name,
		Email:             payload.Email,
		Role:              Role(payload.Role),
		CommissionRateBps: payload.CommissionRateBps,
		Password:          payload.Password,
	})
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// List handles GET /api/v1/team.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.Svc.List(r.Context(), common.ActorFrom(r.Context()))
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": members})
}

// Get handles GET /api/v1/team/{memberID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid member id", nil)
		return
	}
	m, err := h.Svc.Get(r.Context(), common.ActorFrom(r.Context()), id)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": m})
}

// Update handles PUT /api/v1/team/{memberID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid member id", nil)
		return
	}
	var payload memberUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	input := UpdateMemberInput{
		Name:              payload.Name,
		Email:             payload.Email,
		CommissionRateBps: payload.CommissionRateBps,
		Active:            payload.Active,
		Password:          payload.Password,
	}
	if payload.Role != nil {
		role := Role(*payload.Role)
		input.Role = &role
	}
	updated, err := h.Svc.UpdateMember(r.Context(), common.ActorFrom(r.Context()), id, input)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}
