package kite

import (
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/aristath/reckon/internal/modules/ledger"
)

const dateLayout = "2006-01-02"

// transformPositions converts SDK positions to snapshot rows. capturedAt
// must already be in the market timezone; its date becomes as_of_date.
func transformPositions(positions []kiteconnect.Position, capturedAt time.Time) []ledger.Snapshot {
	rows := make([]ledger.Snapshot, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, transformPosition(p, capturedAt))
	}
	return rows
}

// transformPosition maps one SDK position to a snapshot row. Every numeric
// the SDK reports is kept under its canonical field name; zero values are
// stored as real zeros because the SDK structs are not nullable.
//
// The SDK's Value field is deliberately NOT mapped: Kite reports it as net
// traded value (sell value minus buy value, negative for longs), not the
// market value of the holding. Leaving it out lets valuation resolve to
// quantity times mark price.
func transformPosition(p kiteconnect.Position, capturedAt time.Time) ledger.Snapshot {
	fields := ledger.Fields{
		"quantity":      float64(p.Quantity),
		"average_price": p.AveragePrice,
		"last_price":    p.LastPrice,
		"close_price":   p.ClosePrice,

		"buy_quantity":  float64(p.BuyQuantity),
		"buy_price":     p.BuyPrice,
		"sell_quantity": float64(p.SellQuantity),
		"sell_price":    p.SellPrice,

		"day_buy_quantity":       float64(p.DayBuyQuantity),
		"day_buy_average_price":  p.DayBuyPrice,
		"day_sell_quantity":      float64(p.DaySellQuantity),
		"day_sell_average_price": p.DaySellPrice,
	}

	return ledger.Snapshot{
		AsOfDate:   capturedAt.Format(dateLayout),
		Symbol:     p.Tradingsymbol,
		Exchange:   p.Exchange,
		Product:    p.Product,
		CapturedAt: capturedAt,
		Fields:     fields,
	}
}
