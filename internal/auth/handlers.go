package auth

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/backend-commissions/internal/common"
)

// Handler exposes the login endpoint.
type Handler struct {
	Svc *Service
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	result, err := h.Svc.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Me handles GET /api/v1/auth/me, echoing the authenticated actor.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := common.ActorFrom(r.Context())
	if actor.MemberID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": actor})
}
