package charts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearCurve() []ChartDataPoint {
	return []ChartDataPoint{
		{Time: "2024-01-01", Value: 1},
		{Time: "2024-01-02", Value: 2},
		{Time: "2024-01-03", Value: 3},
		{Time: "2024-01-04", Value: 4},
		{Time: "2024-01-05", Value: 5},
	}
}

func TestSmaOverlay(t *testing.T) {
	out := SmaOverlay(linearCurve(), 3)
	require.Len(t, out, 3)

	// The overlay starts once a full window is available.
	assert.Equal(t, "2024-01-03", out[0].Time)
	assert.InDelta(t, 2.0, out[0].Value, 1e-9)
	assert.InDelta(t, 3.0, out[1].Value, 1e-9)
	assert.InDelta(t, 4.0, out[2].Value, 1e-9)
}

func TestEmaOverlay(t *testing.T) {
	// On a linear series the EMA (SMA-seeded, k=2/(period+1)) matches the
	// SMA: seed 2, then 4*0.5+2*0.5=3, then 5*0.5+3*0.5=4.
	out := EmaOverlay(linearCurve(), 3)
	require.Len(t, out, 3)

	assert.Equal(t, "2024-01-03", out[0].Time)
	assert.InDelta(t, 2.0, out[0].Value, 1e-9)
	assert.InDelta(t, 3.0, out[1].Value, 1e-9)
	assert.InDelta(t, 4.0, out[2].Value, 1e-9)
}

func TestOverlay_ShortSeries(t *testing.T) {
	assert.Nil(t, SmaOverlay(linearCurve()[:2], 3))
	assert.Nil(t, EmaOverlay(nil, 3))
}

func TestOverlay_DegeneratePeriod(t *testing.T) {
	assert.Nil(t, SmaOverlay(linearCurve(), 1))
	assert.Nil(t, SmaOverlay(linearCurve(), 0))
	assert.Nil(t, SmaOverlay(linearCurve(), -5))
}
