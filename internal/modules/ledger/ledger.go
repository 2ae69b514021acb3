package ledger

// Compute runs the full reconstruction pipeline: capture-policy filtering,
// transaction inference, daily aggregation, and the cash fold. It is a pure
// function of its inputs; both derived series are rebuilt from scratch on
// every call.
func Compute(snapshots []Snapshot, opts Options) Result {
	rows := snapshots
	if opts.Capture == CaptureLatest {
		rows = latestCapturePerDay(snapshots)
	}

	return Result{
		Transactions: InferTransactions(rows),
		CashRows:     FoldCash(AggregateDaily(rows), opts.StartingCash),
	}
}

// latestCapturePerDay keeps only the newest capture per (date, symbol,
// exchange, product), judged by CapturedAt; equal timestamps resolve to the
// later input row. Rows with malformed dates pass through unchanged since
// the pipeline stages skip them anyway. Input order of surviving rows is
// preserved.
func latestCapturePerDay(snapshots []Snapshot) []Snapshot {
	type rowKey struct {
		date     string
		exchange string
		symbol   string
		product  string
	}

	winners := make(map[rowKey]int, len(snapshots))
	for i, snap := range snapshots {
		date, ok := normalizeDate(snap.AsOfDate)
		if !ok {
			continue
		}
		key := rowKey{date: date, exchange: snap.Exchange, symbol: snap.Symbol, product: snap.Product}
		if j, exists := winners[key]; exists && snap.CapturedAt.Before(snapshots[j].CapturedAt) {
			continue
		}
		winners[key] = i
	}

	keep := make([]Snapshot, 0, len(snapshots))
	for i, snap := range snapshots {
		date, ok := normalizeDate(snap.AsOfDate)
		if !ok {
			keep = append(keep, snap)
			continue
		}
		key := rowKey{date: date, exchange: snap.Exchange, symbol: snap.Symbol, product: snap.Product}
		if winners[key] == i {
			keep = append(keep, snap)
		}
	}

	return keep
}
