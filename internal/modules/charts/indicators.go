package charts

import (
	"github.com/markcheno/go-talib"
)

// SmaOverlay computes a simple moving average over a curve. Points inside
// the lookback window (where talib reports zeros) are omitted, so the
// overlay starts period-1 points after the source curve.
func SmaOverlay(points []ChartDataPoint, period int) []ChartDataPoint {
	return overlay(points, period, talib.Sma)
}

// EmaOverlay computes an exponential moving average over a curve, with the
// same lookback handling as SmaOverlay.
func EmaOverlay(points []ChartDataPoint, period int) []ChartDataPoint {
	return overlay(points, period, talib.Ema)
}

func overlay(points []ChartDataPoint, period int, fn func([]float64, int) []float64) []ChartDataPoint {
	if period <= 1 || len(points) < period {
		return nil
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	smoothed := fn(values, period)

	out := make([]ChartDataPoint, 0, len(points)-period+1)
	for i := period - 1; i < len(points); i++ {
		out = append(out, ChartDataPoint{Time: points[i].Time, Value: smoothed[i]})
	}
	return out
}
