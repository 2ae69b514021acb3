// Package handlers provides HTTP handlers for the derived transaction ledger
// and daily cash series.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/modules/ledger"
	"github.com/aristath/reckon/internal/modules/snapshots"
)

// Handler handles ledger HTTP requests
type Handler struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetTransactions returns the inferred transaction list
// GET /api/ledger/transactions?from=&to=&symbol=&starting_cash=&capture=
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	res, err := h.service.ComputeLedger(r.Context(), q)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res.Transactions)
}

// HandleGetCashSeries returns the daily cash-flow series
// GET /api/ledger/cash-series?from=&to=&symbol=&starting_cash=&capture=
func (h *Handler) HandleGetCashSeries(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	res, err := h.service.ComputeLedger(r.Context(), q)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res.CashRows)
}

// HandleGetLedger returns transactions and cash series in one response
// GET /api/ledger?from=&to=&symbol=&starting_cash=&capture=
func (h *Handler) HandleGetLedger(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	res, err := h.service.ComputeLedger(r.Context(), q)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// parseQuery validates the shared ledger query parameters. On a validation
// failure it writes the 400 itself and reports ok=false.
func (h *Handler) parseQuery(w http.ResponseWriter, r *http.Request) (snapshots.LedgerQuery, bool) {
	values := r.URL.Query()
	q := snapshots.LedgerQuery{
		From:   values.Get("from"),
		To:     values.Get("to"),
		Symbol: values.Get("symbol"),
	}

	if raw := values.Get("starting_cash"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid starting_cash: must be a number")
			return q, false
		}
		q.StartingCash = &parsed
	}

	if raw := values.Get("capture"); raw != "" {
		if _, err := ledger.ParseCapturePolicy(raw); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return q, false
		}
		q.Capture = raw
	}

	return q, true
}

// writeComputeError maps computation failures to status codes. A timed-out
// request is rejected whole rather than answered with a partial ledger.
func (h *Handler) writeComputeError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Ledger computation failed")

	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	} else if errors.Is(err, context.Canceled) {
		status = http.StatusRequestTimeout
	}
	h.writeError(w, status, err.Error())
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
