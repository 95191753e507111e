package commission

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
)

// Handler exposes the reporting and recalculation endpoints.
type Handler struct {
	Svc *Service
}

func parsePeriod(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, errors.New("year must be an integer")
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, errors.New("month must be an integer")
	}
	if !ValidPeriod(year, month) {
		return 0, 0, errors.New("year and month do not identify a valid period")
	}
	return year, month, nil
}

// MonthlyReport handles GET /api/v1/reports/commissions?year=&month=.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	actor := common.ActorFrom(r.Context())
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "organization not found", nil)
		return
	}
	year, month, err := parsePeriod(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	summary, err := h.Svc.Summarize(r.Context(), orgID, year, month)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

type recalcPayload struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	BDMID *string `json:"bdmId"`
}

// Recalculate handles POST /api/v1/commissions/recalculate. With a bdmId it
// re-runs one BDM; without, every active BDM in the period. Admins and
// managers only.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	actor := common.ActorFrom(r.Context())
	if actor.Role != "admin" && actor.Role != "manager" {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "only admins and managers can trigger recalculation", nil)
		return
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "organization not found", nil)
		return
	}
	memberID, err := uuid.Parse(actor.MemberID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "member not found", nil)
		return
	}
	var payload recalcPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !ValidPeriod(payload.Year, payload.Month) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "year and month do not identify a valid period", nil)
		return
	}

	if payload.BDMID != nil {
		bdmID, err := uuid.Parse(*payload.BDMID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "bdmId must be a valid id", nil)
			return
		}
		rec, err := h.Svc.CalculateMonthlyBDMCommission(r.Context(), orgID, bdmID, payload.Year, payload.Month, memberID)
		countRecalc("api", err)
		if err != nil {
			common.JSONAppError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": []Record{rec}})
		return
	}

	records, err := h.Svc.RecalculatePeriod(r.Context(), orgID, payload.Year, payload.Month, memberID)
	countRecalc("api", err)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": records})
}

// BDMHistory handles GET /api/v1/commissions/bdms/{bdmID} returning the
// stored records for one BDM in chronological order.
func (h *Handler) BDMHistory(w http.ResponseWriter, r *http.Request) {
	actor := common.ActorFrom(r.Context())
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "organization not found", nil)
		return
	}
	bdmID, err := uuid.Parse(chi.URLParam(r, "bdmID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid bdm id", nil)
		return
	}
	records, err := h.Svc.Records.ListByBDM(r.Context(), orgID, bdmID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load commission records", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": records})
}
