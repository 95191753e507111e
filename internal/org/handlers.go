package org

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/backend-commissions/internal/common"
	"github.com/noah-isme/backend-commissions/internal/money"
)

// Handler exposes the commission settings endpoints. The threshold crosses
// the wire in pounds, the rate in basis points.
type Handler struct {
	Svc *Service
}

type settingsPayload struct {
	BDMThreshold         json.Number `json:"bdmThreshold"`
	BDMCommissionRateBps int32       `json:"bdmCommissionRateBps"`
}

type settingsResponse struct {
	BDMThreshold         string `json:"bdmThreshold"`
	BDMCommissionRateBps int32  `json:"bdmCommissionRateBps"`
}

// GetSettings handles GET /api/v1/settings/commission.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Svc.GetSettings(r.Context(), common.ActorFrom(r.Context()))
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": settingsResponse{
		BDMThreshold:         money.PenceToPounds(settings.BDMThresholdPence),
		BDMCommissionRateBps: settings.BDMCommissionRateBps,
	}})
}

// UpdateSettings handles PUT /api/v1/settings/commission.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var payload settingsPayload
	if err := dec.Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	threshold, err := money.PoundsToPence(payload.BDMThreshold.String())
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "bdmThreshold must be a non-negative amount with at most two decimal places", nil)
		return
	}
	saved, err := h.Svc.UpdateSettings(r.Context(), common.ActorFrom(r.Context()), UpdateSettingsInput{
		BDMThresholdPence:    threshold,
		BDMCommissionRateBps: payload.BDMCommissionRateBps,
	})
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": settingsResponse{
		BDMThreshold:         money.PenceToPounds(saved.BDMThresholdPence),
		BDMCommissionRateBps: saved.BDMCommissionRateBps,
	}})
}
