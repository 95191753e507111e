package queue

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
)

// AdminHandler exposes dead letter inspection and replay to operators.
type AdminHandler struct {
	Store    Store
	Producer Producer
}

// ListDLQ handles GET /api/v1/admin/queue/dlq?kind=&limit=&offset=.
func (h *AdminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue store not configured", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.Store.ListDLQ(r.Context(), r.URL.Query().Get("kind"), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list dead letter entries", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

type replayPayload struct {
	ID string `json:"id"`
}

// ReplayDLQ handles POST /api/v1/admin/queue/dlq/replay. The entry is
// re-enqueued with a fresh attempt budget and removed from the table.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue store not configured", nil)
		return
	}
	var payload replayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a valid uuid", nil)
		return
	}
	entry, err := h.Store.GetDLQ(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrDLQNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "dead letter entry not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load dead letter entry", nil)
		return
	}
	if err := h.Producer.Publish(r.Context(), Job{Kind: entry.Kind, Payload: entry.Payload, Key: entry.Key}); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to re-enqueue job", nil)
		return
	}
	if err := h.Store.DeleteDLQ(r.Context(), id); err != nil && !errors.Is(err, ErrDLQNotFound) {
		common.JSONError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to remove dead letter entry", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"replayed": true}})
}
