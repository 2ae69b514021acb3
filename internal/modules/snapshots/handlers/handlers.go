// Package handlers provides HTTP handlers for snapshot ingestion and
// inspection.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/modules/ledger"
	"github.com/aristath/reckon/internal/modules/snapshots"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleListSnapshots returns stored snapshot rows
// GET /api/snapshots?from=YYYY-MM-DD&to=YYYY-MM-DD&symbol=X&limit=N
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := snapshots.ListFilter{
		From:   q.Get("from"),
		To:     q.Get("to"),
		Symbol: q.Get("symbol"),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = parsed
		}
	}

	rows, err := h.service.ListSnapshots(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, rows)
}

// HandleIngest stores externally supplied snapshot rows
// POST /api/snapshots with a JSON array of rows
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var rows []ledger.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: expected a JSON array of snapshot rows")
		return
	}
	if len(rows) == 0 {
		h.writeError(w, http.StatusBadRequest, "no rows provided")
		return
	}

	run, err := h.service.IngestRows(rows)
	if err != nil {
		h.log.Error().Err(err).Msg("Snapshot ingest failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, run)
}

// HandleSync triggers an immediate broker sync
// POST /api/snapshots/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if !h.service.BrokerAvailable() {
		h.writeError(w, http.StatusServiceUnavailable, "broker is not configured")
		return
	}

	run, err := h.service.SyncFromBroker()
	if err != nil {
		h.log.Error().Err(err).Msg("Manual snapshot sync failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// HandleListRuns returns recent sync runs, newest first
// GET /api/snapshots/runs?limit=N
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	runs, err := h.service.ListSyncRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sync runs")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
