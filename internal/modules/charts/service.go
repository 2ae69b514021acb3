// Package charts derives chart-ready series from the reconstructed ledger.
package charts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/modules/ledger"
	"github.com/aristath/reckon/internal/modules/snapshots"
)

// ChartDataPoint represents a single point on a chart
type ChartDataPoint struct {
	Time  string  `json:"time"` // YYYY-MM-DD format
	Value float64 `json:"value"`
}

// TradeMarker is a chart annotation for one inferred transaction.
type TradeMarker struct {
	Time     string      `json:"time"`
	Symbol   string      `json:"symbol"`
	Side     ledger.Side `json:"side"`
	Qty      float64     `json:"qty"`
	AvgPrice float64     `json:"avg_price"`
	Notional float64     `json:"notional"`
}

// LedgerSource supplies computed ledgers. *snapshots.Service implements it.
type LedgerSource interface {
	ComputeLedger(ctx context.Context, q snapshots.LedgerQuery) (ledger.Result, error)
}

// Service provides chart data operations
type Service struct {
	source LedgerSource
	log    zerolog.Logger
}

// NewService creates a new charts service
func NewService(source LedgerSource, log zerolog.Logger) *Service {
	return &Service{
		source: source,
		log:    log.With().Str("service", "charts").Logger(),
	}
}

// Query selects the window and fold options for a chart.
type Query struct {
	Range        string // 1M, 3M, 6M, 1Y, 5Y, 10Y or all
	Symbol       string
	StartingCash *float64
	Capture      string
}

func (q Query) ledgerQuery() (snapshots.LedgerQuery, error) {
	from, err := ParseRange(q.Range)
	if err != nil {
		return snapshots.LedgerQuery{}, err
	}
	return snapshots.LedgerQuery{
		From:         from,
		Symbol:       q.Symbol,
		StartingCash: q.StartingCash,
		Capture:      q.Capture,
	}, nil
}

// EquityCurve returns net liquidation value (cash plus holdings) per day.
func (s *Service) EquityCurve(ctx context.Context, q Query) ([]ChartDataPoint, error) {
	return s.curve(ctx, q, func(row ledger.DailyCashRow) float64 { return row.NetLiq })
}

// CashCurve returns the running cash balance per day.
func (s *Service) CashCurve(ctx context.Context, q Query) ([]ChartDataPoint, error) {
	return s.curve(ctx, q, func(row ledger.DailyCashRow) float64 { return row.CashBalance })
}

// HoldingsCurve returns the holdings valuation per day.
func (s *Service) HoldingsCurve(ctx context.Context, q Query) ([]ChartDataPoint, error) {
	return s.curve(ctx, q, func(row ledger.DailyCashRow) float64 { return row.HoldingsValue })
}

func (s *Service) curve(ctx context.Context, q Query, pick func(ledger.DailyCashRow) float64) ([]ChartDataPoint, error) {
	rows, err := s.cashRows(ctx, q)
	if err != nil {
		return nil, err
	}

	points := make([]ChartDataPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, ChartDataPoint{Time: row.AsOfDate, Value: pick(row)})
	}
	return points, nil
}

// TradeMarkers returns one annotation per inferred transaction, in
// (date, symbol) order.
func (s *Service) TradeMarkers(ctx context.Context, q Query) ([]TradeMarker, error) {
	res, err := s.compute(ctx, q)
	if err != nil {
		return nil, err
	}

	markers := make([]TradeMarker, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		markers = append(markers, TradeMarker{
			Time:     tx.Date,
			Symbol:   tx.Symbol,
			Side:     tx.Side,
			Qty:      tx.Qty,
			AvgPrice: tx.AvgPrice,
			Notional: tx.Notional,
		})
	}
	return markers, nil
}

func (s *Service) compute(ctx context.Context, q Query) (ledger.Result, error) {
	lq, err := q.ledgerQuery()
	if err != nil {
		return ledger.Result{}, err
	}
	return s.source.ComputeLedger(ctx, lq)
}

func (s *Service) cashRows(ctx context.Context, q Query) ([]ledger.DailyCashRow, error) {
	res, err := s.compute(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.CashRows, nil
}

// ParseRange converts a range string to an inclusive start date. The
// empty string and "all" mean no lower bound.
func ParseRange(rangeStr string) (string, error) {
	if rangeStr == "all" || rangeStr == "" {
		return "", nil
	}

	now := time.Now()
	var startDate time.Time

	switch rangeStr {
	case "1M":
		startDate = now.AddDate(0, -1, 0)
	case "3M":
		startDate = now.AddDate(0, -3, 0)
	case "6M":
		startDate = now.AddDate(0, -6, 0)
	case "1Y":
		startDate = now.AddDate(-1, 0, 0)
	case "5Y":
		startDate = now.AddDate(-5, 0, 0)
	case "10Y":
		startDate = now.AddDate(-10, 0, 0)
	default:
		return "", fmt.Errorf("invalid range: %s (must be 1M, 3M, 6M, 1Y, 5Y, 10Y or all)", rangeStr)
	}

	return startDate.Format("2006-01-02"), nil
}
