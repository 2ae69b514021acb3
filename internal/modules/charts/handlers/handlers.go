// Package handlers provides HTTP handlers for chart data.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/modules/charts"
	"github.com/aristath/reckon/internal/modules/ledger"
)

// Handler provides HTTP handlers for chart endpoints
type Handler struct {
	service *charts.Service
	log     zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service *charts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// CurveResponse carries a chart curve plus any requested moving-average
// overlays.
type CurveResponse struct {
	Points []charts.ChartDataPoint `json:"points"`
	SMA    []charts.ChartDataPoint `json:"sma,omitempty"`
	EMA    []charts.ChartDataPoint `json:"ema,omitempty"`
}

// HandleGetEquityCurve handles GET /api/charts/equity-curve
func (h *Handler) HandleGetEquityCurve(w http.ResponseWriter, r *http.Request) {
	h.handleCurve(w, r, h.service.EquityCurve)
}

// HandleGetCashCurve handles GET /api/charts/cash-curve
func (h *Handler) HandleGetCashCurve(w http.ResponseWriter, r *http.Request) {
	h.handleCurve(w, r, h.service.CashCurve)
}

// HandleGetHoldingsCurve handles GET /api/charts/holdings-curve
func (h *Handler) HandleGetHoldingsCurve(w http.ResponseWriter, r *http.Request) {
	h.handleCurve(w, r, h.service.HoldingsCurve)
}

func (h *Handler) handleCurve(w http.ResponseWriter, r *http.Request, fetch func(context.Context, charts.Query) ([]charts.ChartDataPoint, error)) {
	q, overlays, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	points, err := fetch(r.Context(), q)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	resp := CurveResponse{Points: points}
	if overlays.sma > 0 {
		resp.SMA = charts.SmaOverlay(points, overlays.sma)
	}
	if overlays.ema > 0 {
		resp.EMA = charts.EmaOverlay(points, overlays.ema)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetTradeMarkers handles GET /api/charts/trade-markers
func (h *Handler) HandleGetTradeMarkers(w http.ResponseWriter, r *http.Request) {
	q, _, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	markers, err := h.service.TradeMarkers(r.Context(), q)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, markers)
}

// HandleGetStats handles GET /api/charts/stats
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	q, _, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), q)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

type overlayPeriods struct {
	sma int
	ema int
}

// parseQuery validates the shared chart query parameters. On a validation
// failure it writes the 400 itself and reports ok=false.
func (h *Handler) parseQuery(w http.ResponseWriter, r *http.Request) (charts.Query, overlayPeriods, bool) {
	values := r.URL.Query()
	q := charts.Query{
		Range:  values.Get("range"),
		Symbol: values.Get("symbol"),
	}
	var overlays overlayPeriods

	if _, err := charts.ParseRange(q.Range); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return q, overlays, false
	}

	if raw := values.Get("starting_cash"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid starting_cash: must be a number")
			return q, overlays, false
		}
		q.StartingCash = &parsed
	}

	if raw := values.Get("capture"); raw != "" {
		if _, err := ledger.ParseCapturePolicy(raw); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return q, overlays, false
		}
		q.Capture = raw
	}

	var ok bool
	if overlays.sma, ok = h.parsePeriod(w, values.Get("sma"), "sma"); !ok {
		return q, overlays, false
	}
	if overlays.ema, ok = h.parsePeriod(w, values.Get("ema"), "ema"); !ok {
		return q, overlays, false
	}

	return q, overlays, true
}

func (h *Handler) parsePeriod(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	period, err := strconv.Atoi(raw)
	if err != nil || period < 2 {
		h.writeError(w, http.StatusBadRequest, "invalid "+name+" period: must be an integer greater than 1")
		return 0, false
	}
	return period, true
}

// writeComputeError maps computation failures to status codes. A timed-out
// request is rejected whole rather than answered with partial chart data.
func (h *Handler) writeComputeError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Chart computation failed")

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
