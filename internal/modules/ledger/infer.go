package ledger

import "sort"

// txKey is the identity of an inferred transaction. Each key appears at most
// once per computation.
type txKey struct {
	date     string
	exchange string
	symbol   string
	product  string
	side     Side
}

// InferTransactions maps each snapshot to zero, one, or two transactions
// (BUY and/or SELL). A side is emitted only when both its resolved quantity
// and average price are strictly positive; zero or missing aggregates never
// produce a transaction. Rows with malformed dates are skipped silently.
//
// A single snapshot can legitimately emit both a BUY and a SELL for the same
// day (an intraday round-trip captured as day aggregates). When the same
// position was captured more than once for one day, same-key emissions merge
// by summing quantity and notional, keeping the identity invariant intact.
//
// Output order is insertion order, stable-sorted by (date, symbol) as a
// final presentation step; downstream stages regroup by date anyway.
func InferTransactions(snapshots []Snapshot) []Transaction {
	txs := make([]Transaction, 0, len(snapshots))
	index := make(map[txKey]int, len(snapshots))

	emit := func(snap Snapshot, date string, side Side, qty, price float64) {
		if qty <= 0 || price <= 0 {
			return
		}
		key := txKey{date: date, exchange: snap.Exchange, symbol: snap.Symbol, product: snap.Product, side: side}
		if i, ok := index[key]; ok {
			txs[i].Qty += qty
			txs[i].Notional += qty * price
			txs[i].AvgPrice = txs[i].Notional / txs[i].Qty
			return
		}
		index[key] = len(txs)
		txs = append(txs, Transaction{
			Date:     date,
			Symbol:   snap.Symbol,
			Exchange: snap.Exchange,
			Product:  snap.Product,
			Side:     side,
			Qty:      qty,
			AvgPrice: price,
			Notional: qty * price,
		})
	}

	for _, snap := range snapshots {
		date, ok := normalizeDate(snap.AsOfDate)
		if !ok {
			continue
		}
		emit(snap, date, SideBuy, snap.Fields.Resolve(BuyQtyChain), snap.Fields.Resolve(BuyPriceChain))
		emit(snap, date, SideSell, snap.Fields.Resolve(SellQtyChain), snap.Fields.Resolve(SellPriceChain))
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date < txs[j].Date
		}
		return txs[i].Symbol < txs[j].Symbol
	})

	return txs
}
