package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_BuyThenSellRoundTrip(t *testing.T) {
	snapshots := []Snapshot{
		snap("2024-01-02", "RELIANCE", Fields{
			"day_buy_quantity":      10,
			"day_buy_average_price": 2500,
		}),
		snap("2024-01-03", "RELIANCE", Fields{
			"day_sell_quantity":      10,
			"day_sell_average_price": 2600,
		}),
	}

	res := Compute(snapshots, Options{StartingCash: 100000})

	require.Len(t, res.Transactions, 2)
	assert.Equal(t, SideBuy, res.Transactions[0].Side)
	assert.Equal(t, SideSell, res.Transactions[1].Side)

	require.Len(t, res.CashRows, 2)
	assert.Equal(t, float64(75000), res.CashRows[0].CashBalance)
	assert.Equal(t, float64(101000), res.CashRows[1].CashBalance)
	assert.Equal(t, float64(-25000), res.CashRows[0].NetCashflow)
	assert.Equal(t, float64(26000), res.CashRows[1].NetCashflow)
}

func TestCompute_ValuationOnlyDay(t *testing.T) {
	res := Compute([]Snapshot{
		snap("2024-01-02", "INFY", Fields{
			"quantity":   10,
			"last_price": 1500,
		}),
	}, Options{StartingCash: 50000})

	assert.Empty(t, res.Transactions)
	require.Len(t, res.CashRows, 1)
	assert.Equal(t, float64(50000), res.CashRows[0].CashBalance)
	assert.Equal(t, float64(15000), res.CashRows[0].HoldingsValue)
	assert.Equal(t, float64(65000), res.CashRows[0].NetLiq)
	assert.Equal(t, 0, res.CashRows[0].TxCount)
}

func TestCompute_NullPricesEmitNothing(t *testing.T) {
	res := Compute([]Snapshot{
		snap("2024-01-02", "SBIN", Fields{
			"day_buy_quantity": 50,
		}),
	}, Options{})

	assert.Empty(t, res.Transactions)
	require.Len(t, res.CashRows, 1)
	assert.Equal(t, float64(0), res.CashRows[0].TurnoverBuy)
	assert.Equal(t, float64(0), res.CashRows[0].CashBalance)
}

func TestCompute_TwoSymbolsSameDay(t *testing.T) {
	res := Compute([]Snapshot{
		snap("2024-01-02", "AAA", Fields{
			"day_buy_quantity":      10,
			"day_buy_average_price": 100,
		}),
		snap("2024-01-02", "BBB", Fields{
			"day_buy_quantity":      20,
			"day_buy_average_price": 100,
		}),
	}, Options{})

	require.Len(t, res.Transactions, 2)
	require.Len(t, res.CashRows, 1)
	assert.Equal(t, float64(3000), res.CashRows[0].TurnoverBuy)
	assert.Equal(t, float64(-3000), res.CashRows[0].CashBalance)
	assert.Equal(t, 2, res.CashRows[0].TxCount)
}

func TestCompute_NegativeStartingCashCarries(t *testing.T) {
	res := Compute([]Snapshot{
		snap("2024-01-02", "AAA", Fields{"value": 500}),
		snap("2024-01-03", "AAA", Fields{"value": 500}),
	}, Options{StartingCash: -5000})

	require.Len(t, res.CashRows, 2)
	assert.Equal(t, float64(-5000), res.CashRows[0].CashBalance)
	assert.Equal(t, float64(-5000), res.CashRows[1].CashBalance)
}

func TestCompute_Deterministic(t *testing.T) {
	snapshots := []Snapshot{
		snap("2024-01-03", "ZZZ", Fields{"day_sell_quantity": 2, "day_sell_average_price": 55}),
		snap("2024-01-02", "AAA", Fields{"day_buy_quantity": 1, "day_buy_average_price": 100}),
		snap("2024-01-02", "MMM", Fields{"quantity": 3, "close_price": 40}),
	}

	first := Compute(snapshots, Options{StartingCash: 10})
	second := Compute(snapshots, Options{StartingCash: 10})
	require.Equal(t, first, second)
}

func TestCompute_EveryValidDateAppearsOnce(t *testing.T) {
	res := Compute([]Snapshot{
		snap("2024-01-05", "AAA", Fields{"value": 1}),
		snap("2024-01-02", "AAA", Fields{"value": 1}),
		snap("2024-01-05", "BBB", Fields{"value": 1}),
		snap("bogus", "CCC", Fields{"value": 1}),
	}, Options{})

	require.Len(t, res.CashRows, 2)
	assert.Equal(t, "2024-01-02", res.CashRows[0].AsOfDate)
	assert.Equal(t, "2024-01-05", res.CashRows[1].AsOfDate)
}

func TestCompute_NaNFieldDoesNotCorruptLedger(t *testing.T) {
	res := Compute([]Snapshot{
		snap("2024-01-02", "AAA", Fields{
			"day_buy_quantity":      10,
			"day_buy_average_price": 100,
		}),
		snap("2024-01-03", "BBB", Fields{
			"day_sell_quantity":      5,
			"day_sell_average_price": math.NaN(),
			"value":                  math.Inf(1),
		}),
	}, Options{StartingCash: 5000})

	require.Len(t, res.CashRows, 2)
	assert.Equal(t, float64(4000), res.CashRows[0].CashBalance)
	assert.Equal(t, float64(4000), res.CashRows[1].CashBalance)
	assert.Equal(t, float64(0), res.CashRows[1].HoldingsValue)
	for _, row := range res.CashRows {
		assert.False(t, math.IsNaN(row.CashBalance) || math.IsInf(row.CashBalance, 0))
		assert.False(t, math.IsNaN(row.NetLiq) || math.IsInf(row.NetLiq, 0))
	}
}

func capturedSnap(date, symbol string, capturedAt time.Time, fields Fields) Snapshot {
	s := snap(date, symbol, fields)
	s.CapturedAt = capturedAt
	return s
}

func TestCompute_CapturePolicySumAll(t *testing.T) {
	morning := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)

	res := Compute([]Snapshot{
		capturedSnap("2024-01-02", "RELIANCE", morning, Fields{
			"day_buy_quantity":      10,
			"day_buy_average_price": 100,
			"value":                 1000,
		}),
		capturedSnap("2024-01-02", "RELIANCE", evening, Fields{
			"day_buy_quantity":      10,
			"day_buy_average_price": 100,
			"value":                 1000,
		}),
	}, Options{})

	// Default policy trusts every capture: doubled turnover and holdings,
	// one merged transaction.
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, float64(20), res.Transactions[0].Qty)
	require.Len(t, res.CashRows, 1)
	assert.Equal(t, float64(2000), res.CashRows[0].TurnoverBuy)
	assert.Equal(t, float64(2000), res.CashRows[0].HoldingsValue)
	assert.Equal(t, 1, res.CashRows[0].TxCount)
}

func TestCompute_CapturePolicyLatest(t *testing.T) {
	morning := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)

	res := Compute([]Snapshot{
		capturedSnap("2024-01-02", "RELIANCE", morning, Fields{
			"day_buy_quantity":      5,
			"day_buy_average_price": 100,
			"value":                 500,
		}),
		capturedSnap("2024-01-02", "RELIANCE", evening, Fields{
			"day_buy_quantity":      10,
			"day_buy_average_price": 100,
			"value":                 1000,
		}),
	}, Options{Capture: CaptureLatest})

	require.Len(t, res.Transactions, 1)
	assert.Equal(t, float64(10), res.Transactions[0].Qty)
	require.Len(t, res.CashRows, 1)
	assert.Equal(t, float64(1000), res.CashRows[0].TurnoverBuy)
	assert.Equal(t, float64(1000), res.CashRows[0].HoldingsValue)
}

func TestCompute_CaptureLatestTieKeepsLastRow(t *testing.T) {
	at := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)

	res := Compute([]Snapshot{
		capturedSnap("2024-01-02", "RELIANCE", at, Fields{
			"day_buy_quantity":      5,
			"day_buy_average_price": 100,
		}),
		capturedSnap("2024-01-02", "RELIANCE", at, Fields{
			"day_buy_quantity":      7,
			"day_buy_average_price": 100,
		}),
	}, Options{Capture: CaptureLatest})

	require.Len(t, res.Transactions, 1)
	assert.Equal(t, float64(7), res.Transactions[0].Qty)
}

func TestCompute_CaptureLatestKeepsDistinctIdentities(t *testing.T) {
	at := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)

	res := Compute([]Snapshot{
		capturedSnap("2024-01-02", "AAA", at, Fields{
			"day_buy_quantity":      1,
			"day_buy_average_price": 100,
		}),
		capturedSnap("2024-01-02", "BBB", at, Fields{
			"day_buy_quantity":      2,
			"day_buy_average_price": 100,
		}),
	}, Options{Capture: CaptureLatest})

	require.Len(t, res.Transactions, 2)
	assert.Equal(t, float64(300), res.CashRows[0].TurnoverBuy)
}

func TestCompute_EmptyInput(t *testing.T) {
	res := Compute(nil, Options{StartingCash: 100})
	assert.Empty(t, res.Transactions)
	assert.Empty(t, res.CashRows)
}

func TestCompute_InputNotMutated(t *testing.T) {
	snapshots := []Snapshot{
		snap("2024-01-03", "BBB", Fields{"day_buy_quantity": 1, "day_buy_average_price": 10}),
		snap("2024-01-02", "AAA", Fields{"day_sell_quantity": 1, "day_sell_average_price": 10}),
	}

	Compute(snapshots, Options{})

	assert.Equal(t, "2024-01-03", snapshots[0].AsOfDate)
	assert.Equal(t, "BBB", snapshots[0].Symbol)
	assert.Equal(t, "2024-01-02", snapshots[1].AsOfDate)
}
