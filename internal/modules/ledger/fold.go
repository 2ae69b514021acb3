package ledger

import "sort"

// FoldCash walks the aggregated dates in ascending chronological order,
// threading a running cash balance seeded with startingCash, and emits one
// DailyCashRow per date. The accumulator is local to this call: concurrent
// computations with different starting balances cannot interfere.
//
// ISO dates sort lexicographically in chronological order, so plain string
// sorting is sufficient. The fold is strictly sequential; each balance
// depends on all prior net cash flows.
//
// startingCash accepts any finite value, including negative amounts for
// margin/debt starting positions. A non-finite value is coerced to 0, the
// same rule applied to snapshot fields.
func FoldCash(days map[string]DayTotals, startingCash float64) []DailyCashRow {
	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	cash := sanitize(startingCash)
	rows := make([]DailyCashRow, 0, len(dates))
	for _, date := range dates {
		day := days[date]
		net := day.TurnoverSell - day.TurnoverBuy
		cash += net
		rows = append(rows, DailyCashRow{
			AsOfDate:      date,
			TurnoverBuy:   day.TurnoverBuy,
			TurnoverSell:  day.TurnoverSell,
			NetCashflow:   net,
			CashBalance:   cash,
			HoldingsValue: day.HoldingsValue,
			NetLiq:        cash + day.HoldingsValue,
			TxCount:       day.TxCount,
		})
	}

	return rows
}
