package dataflows

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyfolio/easyfolio/models"
)

func barsFromCloses(closes ...float64) []*models.MarketData {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*models.MarketData, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		bars[i] = &models.MarketData{
			Symbol: "TEST",
			Date:   base.AddDate(0, 0, i),
			Open:   d,
			High:   d,
			Low:    d,
			Close:  d,
			Volume: 1000,
		}
	}
	return bars
}

func TestComputeIndicatorsShortSeriesHasNoIndicators(t *testing.T) {
	rows := ComputeIndicators(barsFromCloses(10))
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0].Close)
	assert.Equal(t, 0.0, rows[0].MA5)
	assert.Equal(t, 0.0, rows[0].MACD)
}

func TestRollingMeanWarmupAndWindow(t *testing.T) {
	out := rollingMean([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, []float64{0, 0, 2, 3, 4}, out)
}

func TestRollingMeanWindowShrinksToSeriesLength(t *testing.T) {
	// A 3-bar series still gets a full-length MA5 on the last row because
	// the window shrinks to len(series).
	rows := ComputeIndicators(barsFromCloses(3, 6, 9))
	require.Len(t, rows, 3)
	assert.InDelta(t, 6.0, rows[2].MA5, 1e-9)
	assert.InDelta(t, 6.0, rows[2].MA20, 1e-9)
}

func TestRollingStdIsSampleStd(t *testing.T) {
	// Sample std (ddof=1) of {1,2,3,4} is sqrt(5/3).
	out := rollingStd([]float64{1, 2, 3, 4}, 4)
	assert.InDelta(t, 1.2909944487, out[3], 1e-9)
	assert.Equal(t, 0.0, out[2])
}

func TestRelativeStrengthExtremes(t *testing.T) {
	up := make([]float64, 20)
	flat := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
		flat[i] = 100
	}

	rsiUp := relativeStrength(up, 14)
	assert.Equal(t, 0.0, rsiUp[13], "warm-up rows stay zero")
	assert.InDelta(t, 100.0, rsiUp[14], 1e-9, "all gains pins RSI at 100")

	rsiFlat := relativeStrength(flat, 14)
	assert.Equal(t, 0.0, rsiFlat[19], "no movement yields zero")
}

func TestRelativeStrengthBalanced(t *testing.T) {
	// Alternating +1/-1 moves: equal average gain and loss, RS=1, RSI=50.
	closes := make([]float64, 21)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + 1
		} else {
			closes[i] = closes[i-1] - 1
		}
	}
	rsi := relativeStrength(closes, 14)
	assert.InDelta(t, 50.0, rsi[20], 1e-9)
}

func TestEwmSeededAtFirstValue(t *testing.T) {
	out := ewm([]float64{10, 20}, 12)
	assert.Equal(t, 10.0, out[0])
	// alpha = 2/13
	assert.InDelta(t, 10+2.0/13*10, out[1], 1e-9)
}

func TestComputeIndicatorsMACDOnConstantSeries(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50
	}
	rows := ComputeIndicators(barsFromCloses(closes...))

	last := rows[len(rows)-1]
	assert.InDelta(t, 0.0, last.MACD, 1e-9)
	assert.InDelta(t, 0.0, last.Signal, 1e-9)
	assert.InDelta(t, 0.0, last.MACDHist, 1e-9)

	// Constant series: bands collapse onto the mid line.
	assert.InDelta(t, 50.0, last.BBMid, 1e-9)
	assert.InDelta(t, 50.0, last.BBUpper, 1e-9)
	assert.InDelta(t, 50.0, last.BBLower, 1e-9)
}

func TestComputeIndicatorsBollingerWidth(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	rows := ComputeIndicators(barsFromCloses(closes...))

	last := rows[len(rows)-1]
	require.NotZero(t, last.BBMid)
	assert.Greater(t, last.BBUpper, last.BBMid)
	assert.Less(t, last.BBLower, last.BBMid)
	assert.InDelta(t, last.BBUpper-last.BBMid, last.BBMid-last.BBLower, 1e-9)

	// Warm-up rows have no bands.
	assert.Equal(t, 0.0, rows[10].BBUpper)
}

func TestComputeIndicatorsRowMetadata(t *testing.T) {
	rows := ComputeIndicators(barsFromCloses(10, 11, 12))
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, fmt.Sprintf("2024-01-%02d", i+1), row.Date)
		assert.Equal(t, int64(1000), row.Volume)
	}
}
