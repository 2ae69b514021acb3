package ledger

// AggregateDaily groups snapshots by calendar date into turnover and
// holdings-value totals. Turnover is recomputed from the same fallback-
// resolved quantities and prices used by transaction inference, so this
// stage does not depend on InferTransactions output.
//
// Rows sharing a date are summed, never overwritten: multiple symbols (and,
// under the sum-all capture policy, multiple captures of one symbol) all
// contribute to that date's totals. Holdings value accumulates for every
// row regardless of trade activity, so a flat, untraded position still
// shows up in that day's valuation.
//
// TxCount counts distinct transaction identity keys, which keeps it equal
// to the number of transactions InferTransactions emits for that date even
// when a position was captured more than once.
func AggregateDaily(snapshots []Snapshot) map[string]DayTotals {
	totals := make(map[string]DayTotals)
	seen := make(map[txKey]struct{})

	count := func(day *DayTotals, key txKey) {
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		day.TxCount++
	}

	for _, snap := range snapshots {
		date, ok := normalizeDate(snap.AsOfDate)
		if !ok {
			continue
		}

		day := totals[date]

		buyQty := snap.Fields.Resolve(BuyQtyChain)
		buyPrice := snap.Fields.Resolve(BuyPriceChain)
		if buyQty > 0 && buyPrice > 0 {
			day.TurnoverBuy += buyQty * buyPrice
			count(&day, txKey{date: date, exchange: snap.Exchange, symbol: snap.Symbol, product: snap.Product, side: SideBuy})
		}

		sellQty := snap.Fields.Resolve(SellQtyChain)
		sellPrice := snap.Fields.Resolve(SellPriceChain)
		if sellQty > 0 && sellPrice > 0 {
			day.TurnoverSell += sellQty * sellPrice
			count(&day, txKey{date: date, exchange: snap.Exchange, symbol: snap.Symbol, product: snap.Product, side: SideSell})
		}

		day.HoldingsValue += snap.Fields.ResolveValuation()

		totals[date] = day
	}

	return totals
}
