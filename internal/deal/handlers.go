package deal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
	"github.com/noah-isme/backend-commissions/internal/money"
)

// Handler exposes the deal pipeline endpoints. Monetary fields cross the
// wire as pound strings (or JSON numbers) and are converted to pence here
// so everything below the handler works in integers.
type Handler struct {
	Svc *Service
}

type dealPayload struct {
	CustomerName     string       `json:"customerName"`
	DealValue        *json.Number `json:"dealValue"`
	BuyInCost        *json.Number `json:"buyInCost"`
	InstallationCost *json.Number `json:"installationCost"`
	MiscCosts        *json.Number `json:"miscCosts"`
	TelesalesAgentID string       `json:"telesalesAgentId"`
	BDMID            string       `json:"bdmId"`
	Notes            string       `json:"notes"`
}

type updatePayload struct {
	CustomerName     *string      `json:"customerName"`
	DealValue        *json.Number `json:"dealValue"`
	BuyInCost        *json.Number `json:"buyInCost"`
	InstallationCost *json.Number `json:"installationCost"`
	MiscCosts        *json.Number `json:"miscCosts"`
	TelesalesAgentID *string      `json:"telesalesAgentId"`
	BDMID            *string      `json:"bdmId"`
	Notes            *string      `json:"notes"`
}

type transitionPayload struct {
	Status string     `json:"status"`
	PaidAt *time.Time `json:"paidAt"`
}

type dealResponse struct {
	ID                  uuid.UUID  `json:"id"`
	DealNumber          int64      `json:"dealNumber"`
	CustomerName        string     `json:"customerName"`
	DealValue           string     `json:"dealValue"`
	BuyInCost           string     `json:"buyInCost"`
	InstallationCost    string     `json:"installationCost"`
	MiscCosts           string     `json:"miscCosts"`
	InitialProfit       string     `json:"initialProfit"`
	TelesalesCommission string     `json:"telesalesCommission"`
	RemainingProfit     string     `json:"remainingProfit"`
	TelesalesAgentID    uuid.UUID  `json:"telesalesAgentId"`
	BDMID               uuid.UUID  `json:"bdmId"`
	Status              Status     `json:"status"`
	Notes               string     `json:"notes,omitempty"`
	SignedAt            *time.Time `json:"signedAt,omitempty"`
	InstalledAt         *time.Time `json:"installedAt,omitempty"`
	InvoicedAt          *time.Time `json:"invoicedAt,omitempty"`
	PaidAt              *time.Time `json:"paidAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func toDealResponse(d Deal) dealResponse {
	return dealResponse{
		ID:                  d.ID,
		DealNumber:          d.DealNumber,
		CustomerName:        d.CustomerName,
		DealValue:           money.PenceToPounds(d.DealValue),
		BuyInCost:           money.PenceToPounds(d.BuyInCost),
		InstallationCost:    money.PenceToPounds(d.InstallationCost),
		MiscCosts:           money.PenceToPounds(d.MiscCosts),
		InitialProfit:       money.PenceToPounds(d.InitialProfit),
		TelesalesCommission: money.PenceToPounds(d.TelesalesCommission),
		RemainingProfit:     money.PenceToPounds(d.RemainingProfit),
		TelesalesAgentID:    d.TelesalesAgentID,
		BDMID:               d.BDMID,
		Status:              d.Status,
		Notes:               d.Notes,
		SignedAt:            d.SignedAt,
		InstalledAt:         d.InstalledAt,
		InvoicedAt:          d.InvoicedAt,
		PaidAt:              d.PaidAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func toDealResponses(deals []Deal) []dealResponse {
	out := make([]dealResponse, 0, len(deals))
	for _, d := range deals {
		out = append(out, toDealResponse(d))
	}
	return out
}

func parsePence(field string, n *json.Number) (*int64, error) {
	if n == nil {
		return nil, nil
	}
	pence, err := money.PoundsToPence(n.String())
	if err != nil {
		return nil, common.NewValidationError(field+" must be a non-negative amount with at most two decimal places", err)
	}
	return &pence, nil
}

func requirePence(field string, n *json.Number) (int64, error) {
	if n == nil {
		return 0, common.NewValidationError(field+" is required", nil)
	}
	p, err := parsePence(field, n)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// Create handles POST /api/v1/deals.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload dealPayload
	if err := decodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	input := CreateInput{CustomerName: payload.CustomerName, Notes: payload.Notes}
	var err error
	if input.Financials.DealValue, err = requirePence("dealValue", payload.DealValue); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if input.Financials.BuyInCost, err = requirePence("buyInCost", payload.BuyInCost); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if input.Financials.InstallationCost, err = requirePence("installationCost", payload.InstallationCost); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if input.Financials.MiscCosts, err = requirePence("miscCosts", payload.MiscCosts); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if input.TelesalesAgentID, err = uuid.Parse(payload.TelesalesAgentID); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "telesalesAgentId must be a valid id", nil)
		return
	}
	if input.BDMID, err = uuid.Parse(payload.BDMID); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "bdmId must be a valid id", nil)
		return
	}

	created, err := h.Svc.Create(r.Context(), common.ActorFrom(r.Context()), input)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toDealResponse(created)})
}

// List handles GET /api/v1/deals with an optional ?status= filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := Status(raw)
		status = &s
	}
	deals, err := h.Svc.List(r.Context(), common.ActorFrom(r.Context()), status)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDealResponses(deals)})
}

// Get handles GET /api/v1/deals/{dealID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid deal id", nil)
		return
	}
	d, err := h.Svc.Get(r.Context(), common.ActorFrom(r.Context()), id)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDealResponse(d)})
}

// Update handles PUT /api/v1/deals/{dealID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid deal id", nil)
		return
	}
	var payload updatePayload
	if err := decodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	input := UpdateInput{CustomerName: payload.CustomerName, Notes: payload.Notes}
	if input.DealValue, err = parsePence("dealValue", payload.DealValue); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if input.BuyInCost, err = parsePence("buyInCost", payload.BuyInCost); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if input.InstallationCost, err = parsePence("installationCost", payload.InstallationCost); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if input.MiscCosts, err = parsePence("miscCosts", payload.MiscCosts); err != nil {
		common.JSONAppError(w, err)
		return
	}
	if payload.TelesalesAgentID != nil {
		agentID, err := uuid.Parse(*payload.TelesalesAgentID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "telesalesAgentId must be a valid id", nil)
			return
		}
		input.TelesalesAgentID = &agentID
	}
	if payload.BDMID != nil {
		bdmID, err := uuid.Parse(*payload.BDMID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "bdmId must be a valid id", nil)
			return
		}
		input.BDMID = &bdmID
	}

	updated, err := h.Svc.Update(r.Context(), common.ActorFrom(r.Context()), id, input)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDealResponse(updated)})
}

// Transition handles POST /api/v1/deals/{dealID}/transition.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid deal id", nil)
		return
	}
	var payload transitionPayload
	if err := decodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	updated, err := h.Svc.Transition(r.Context(), common.ActorFrom(r.Context()), id, TransitionInput{
		Status: Status(payload.Status),
		PaidAt: payload.PaidAt,
	})
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDealResponse(updated)})
}

// Delete handles DELETE /api/v1/deals/{dealID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid deal id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), common.ActorFrom(r.Context()), id); err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}
