// Package ledger reconstructs discrete transactions and a daily cash-flow
// series from aggregate broker position snapshots.
//
// Brokers report positions as periodic day-level aggregates (buy/sell
// quantity and average price, point-in-time valuation) rather than discrete
// trades. This package infers BUY/SELL transactions from those aggregates,
// groups them by calendar date, and folds the dates in ascending order into
// a running cash balance seeded by a caller-supplied starting amount.
//
// The whole package is a pure transform: no I/O, no logging, no state kept
// between invocations. Identical inputs always produce identical outputs.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Side is the direction of an inferred transaction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Fields holds the numeric alias fields of a snapshot. A key absent from the
// map models a null/undefined source field; resolution falls through to the
// next alias in the chain. Values are used as-is except that non-finite
// numbers resolve to 0.
type Fields map[string]float64

// Snapshot is one broker observation of a position: identity, capture time,
// and the day-level aggregate fields under their source alias names.
type Snapshot struct {
	AsOfDate   string // calendar date, YYYY-MM-DD (timestamps are truncated)
	Symbol     string
	Exchange   string
	Product    string
	CapturedAt time.Time
	Fields     Fields
}

// Transaction is a synthetic buy or sell event reconstructed from a
// snapshot's day aggregates. At most one transaction exists per
// (date, exchange, symbol, product, side) per computation.
type Transaction struct {
	Date     string  `json:"date"`
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Product  string  `json:"product"`
	Side     Side    `json:"side"`
	Qty      float64 `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
	Notional float64 `json:"notional"`
}

// DayTotals accumulates per-date turnover and valuation across snapshots.
type DayTotals struct {
	TurnoverBuy   float64
	TurnoverSell  float64
	HoldingsValue float64
	TxCount       int
}

// DailyCashRow is one row of the reconciled cash-flow series, one per
// distinct as_of_date present in the input.
type DailyCashRow struct {
	AsOfDate      string  `json:"as_of_date"`
	TurnoverBuy   float64 `json:"turnover_buy"`
	TurnoverSell  float64 `json:"turnover_sell"`
	NetCashflow   float64 `json:"net_cashflow"`
	CashBalance   float64 `json:"cash_balance"`
	HoldingsValue float64 `json:"holdings_value"`
	NetLiq        float64 `json:"net_liq"`
	TxCount       int     `json:"tx_count"`
}

// CapturePolicy controls how multiple same-day captures of the same position
// are treated.
type CapturePolicy string

const (
	// CaptureSumAll sums every capture into the daily aggregates. This
	// matches the historical behaviour: two syncs of the same position on
	// one day both contribute turnover.
	CaptureSumAll CapturePolicy = "sum_all"
	// CaptureLatest keeps only the newest capture per (date, symbol,
	// exchange, product) before any aggregation.
	CaptureLatest CapturePolicy = "latest"
)

// ParseCapturePolicy validates a policy string. The empty string selects
// the default CaptureSumAll.
func ParseCapturePolicy(s string) (CapturePolicy, error) {
	switch CapturePolicy(s) {
	case "", CaptureSumAll:
		return CaptureSumAll, nil
	case CaptureLatest:
		return CaptureLatest, nil
	default:
		return "", fmt.Errorf("unknown capture policy %q", s)
	}
}

// Options are the only tunables of a ledger computation.
type Options struct {
	StartingCash float64
	Capture      CapturePolicy // zero value behaves as CaptureSumAll
}

// Result carries both derived series of one computation. Consumers must
// treat the slices as immutable.
type Result struct {
	Transactions []Transaction  `json:"transactions"`
	CashRows     []DailyCashRow `json:"cash_rows"`
}

// UnmarshalJSON accepts a snapshot row as loosely-shaped broker JSON: any
// subset of the alias fields may be present, and null or non-numeric values
// are treated as absent rather than errors.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	getString := func(key string) string {
		var v string
		if msg, ok := raw[key]; ok {
			_ = json.Unmarshal(msg, &v) // null/garbage stays empty
		}
		return v
	}

	s.AsOfDate = getString("as_of_date")
	s.Symbol = getString("symbol")
	s.Exchange = getString("exchange")
	s.Product = getString("product")
	s.CapturedAt = time.Time{}
	if ts := getString("captured_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			s.CapturedAt = t
		}
	}

	s.Fields = make(Fields)
	for _, key := range knownFieldKeys {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			continue // null or non-numeric: absent
		}
		s.Fields[key] = v
	}

	return nil
}

// MarshalJSON writes the snapshot back in the same flat shape it is
// ingested in: identity fields plus whichever alias fields are present.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Fields)+5)
	for k, v := range s.Fields {
		out[k] = v
	}
	out["as_of_date"] = s.AsOfDate
	out["symbol"] = s.Symbol
	out["exchange"] = s.Exchange
	out["product"] = s.Product
	if !s.CapturedAt.IsZero() {
		out["captured_at"] = s.CapturedAt.Format(time.RFC3339)
	}
	return json.Marshal(out)
}
