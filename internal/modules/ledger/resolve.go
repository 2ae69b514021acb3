package ledger

import "math"

// FieldChain is an ordered list of candidate source keys for one logical
// field. Resolution takes the first key present in the snapshot's Fields,
// regardless of its value; a present-but-non-finite value resolves to 0
// rather than falling through to the next alias.
type FieldChain []string

// Resolution tables. Broker payloads have grown aliases over API
// generations; the order here is newest field first, oldest last.
var (
	BuyQtyChain    = FieldChain{"day_buy_quantity", "buy_quantity"}
	BuyPriceChain  = FieldChain{"day_buy_average_price", "buy_average_price", "buy_price"}
	SellQtyChain   = FieldChain{"day_sell_quantity", "sell_quantity"}
	SellPriceChain = FieldChain{"day_sell_average_price", "sell_average_price", "sell_price"}
	QuantityChain  = FieldChain{"quantity"}
	MarkPriceChain = FieldChain{"last_traded_price", "last_price", "close_price", "average_price"}
)

// valueField short-circuits valuation when the broker already computed the
// position notional. A present-but-zero value is a real zero, not a miss.
const valueField = "value"

// knownFieldKeys enumerates every alias key the resolution tables consult.
// JSON ingestion only picks up these keys.
var knownFieldKeys = func() []string {
	keys := []string{valueField}
	for _, chain := range []FieldChain{
		BuyQtyChain, BuyPriceChain, SellQtyChain, SellPriceChain,
		QuantityChain, MarkPriceChain,
	} {
		keys = append(keys, chain...)
	}
	return keys
}()

// Resolve returns the value of the first present key in the chain, with
// non-finite values coerced to 0. Missing everywhere resolves to 0.
func (f Fields) Resolve(chain FieldChain) float64 {
	for _, key := range chain {
		if v, ok := f[key]; ok {
			return sanitize(v)
		}
	}
	return 0
}

// ResolveValuation returns the position's point-in-time worth: the
// precomputed value field when present, otherwise quantity times the first
// available mark price.
func (f Fields) ResolveValuation() float64 {
	if v, ok := f[valueField]; ok {
		return sanitize(v)
	}
	return f.Resolve(QuantityChain) * f.Resolve(MarkPriceChain)
}

// sanitize coerces NaN and ±Inf to 0. A non-finite field entering the fold
// would propagate through every subsequent cash balance, so malformed values
// are neutralized at resolution time.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
