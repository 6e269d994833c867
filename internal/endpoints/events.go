package endpoints

import (
	"context"
	"net/http"
	"strconv"

	"github.com/thenexusengine/tne_adtalos/internal/storage"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// EventQuerier reads journaled events back
type EventQuerier interface {
	ListByPlacement(ctx context.Context, placementID string, limit int) ([]*storage.EventRecord, error)
	CountByOutcome(ctx context.Context, placementID string) (map[string]int, error)
}

const maxEventsLimit = 500

// EventsHandler serves GET /v1/events?placement_id=&limit=
type EventsHandler struct {
	store EventQuerier
}

// NewEventsHandler creates an events handler. A nil store answers 503.
func NewEventsHandler(store EventQuerier) *EventsHandler {
	return &EventsHandler{store: store}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal is not configured")
		return
	}

	placementID := r.URL.Query().Get("placement_id")
	if placementID == "" {
		writeError(w, http.StatusBadRequest, "placement_id is required")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxEventsLimit {
			n = maxEventsLimit
		}
		limit = n
	}

	events, err := h.store.ListByPlacement(r.Context(), placementID, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Str("placement_id", placementID).Msg("failed to list events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	counts, err := h.store.CountByOutcome(r.Context(), placementID)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Str("placement_id", placementID).Msg("failed to count events")
		writeError(w, http.StatusInternalServerError, "failed to count events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"placement_id": placementID,
		"outcomes":     counts,
		"events":       events,
	})
}
