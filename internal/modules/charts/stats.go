package charts

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"
)

// CurveStats summarizes a cash series window.
type CurveStats struct {
	Days          int     `json:"days"`
	TxCount       int     `json:"tx_count"`
	TotalBuy      float64 `json:"total_buy"`
	TotalSell     float64 `json:"total_sell"`
	NetFlowMean   float64 `json:"net_flow_mean"`
	NetFlowStdDev float64 `json:"net_flow_std_dev"`
	MaxDrawdown   float64 `json:"max_drawdown"` // fraction of peak net liq, 0..1
	FinalCash     float64 `json:"final_cash"`
	FinalNetLiq   float64 `json:"final_net_liq"`
}

// Stats computes summary statistics over the selected window.
func (s *Service) Stats(ctx context.Context, q Query) (CurveStats, error) {
	rows, err := s.cashRows(ctx, q)
	if err != nil {
		return CurveStats{}, err
	}

	out := CurveStats{Days: len(rows)}
	if len(rows) == 0 {
		return out, nil
	}

	netFlows := make([]float64, 0, len(rows))
	peak := math.Inf(-1)
	for _, row := range rows {
		out.TxCount += row.TxCount
		out.TotalBuy += row.TurnoverBuy
		out.TotalSell += row.TurnoverSell
		netFlows = append(netFlows, row.NetCashflow)

		if row.NetLiq > peak {
			peak = row.NetLiq
		}
		if peak > 0 {
			if dd := (peak - row.NetLiq) / peak; dd > out.MaxDrawdown {
				out.MaxDrawdown = dd
			}
		}
	}

	out.NetFlowMean = stat.Mean(netFlows, nil)
	if len(netFlows) > 1 {
		if sd := stat.StdDev(netFlows, nil); !math.IsNaN(sd) {
			out.NetFlowStdDev = sd
		}
	}

	last := rows[len(rows)-1]
	out.FinalCash = last.CashBalance
	out.FinalNetLiq = last.NetLiq

	return out, nil
}
