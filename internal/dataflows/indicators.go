package dataflows

import (
	"math"

	"github.com/easyfolio/easyfolio/models"
)

// ComputeIndicators annotates a daily series with the standard indicator
// columns: MA5/20/60, 14-day RSI, MACD(12,26,9) and 20-day Bollinger bands.
// Rows inside an indicator's warm-up window carry 0 for that column. Series
// shorter than two bars are returned without indicators.
func ComputeIndicators(series []*models.MarketData) []models.IndicatorRow {
	n := len(series)
	rows := make([]models.IndicatorRow, n)
	closes := make([]float64, n)

	for i, bar := range series {
		open, _ := bar.Open.Float64()
		high, _ := bar.High.Float64()
		low, _ := bar.Low.Float64()
		closePrice, _ := bar.Close.Float64()

		closes[i] = closePrice
		rows[i] = models.IndicatorRow{
			Date:   bar.DateKey(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: bar.Volume,
		}
	}
	if n < 2 {
		return rows
	}

	// Moving average windows shrink to the series length so short series
	// still get a full-length average on the last rows.
	ma5 := rollingMean(closes, min(5, n))
	ma20 := rollingMean(closes, min(20, n))
	ma60 := rollingMean(closes, min(60, n))

	rsi := relativeStrength(closes, 14)

	macd := make([]float64, n)
	exp12 := ewm(closes, 12)
	exp26 := ewm(closes, 26)
	for i := range macd {
		macd[i] = exp12[i] - exp26[i]
	}
	signal := ewm(macd, 9)

	bbMid := rollingMean(closes, 20)
	bbStd := rollingStd(closes, 20)

	for i := range rows {
		rows[i].MA5 = ma5[i]
		rows[i].MA20 = ma20[i]
		rows[i].MA60 = ma60[i]
		rows[i].RSI = rsi[i]
		rows[i].MACD = macd[i]
		rows[i].Signal = signal[i]
		rows[i].MACDHist = macd[i] - signal[i]
		rows[i].BBMid = bbMid[i]
		if bbMid[i] != 0 || bbStd[i] != 0 {
			rows[i].BBUpper = bbMid[i] + bbStd[i]*2
			rows[i].BBLower = bbMid[i] - bbStd[i]*2
		}
	}
	return rows
}

// rollingMean is a trailing window mean; rows before the window fills are 0.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd is the trailing window sample standard deviation (ddof=1).
func rollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 2 {
		return out
	}

	for i := window - 1; i < len(values); i++ {
		seg := values[i-window+1 : i+1]
		mean := 0.0
		for _, v := range seg {
			mean += v
		}
		mean /= float64(window)

		variance := 0.0
		for _, v := range seg {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(window - 1)
		out[i] = math.Sqrt(variance)
	}
	return out
}

// relativeStrength computes RSI over simple rolling means of gains and
// losses. A window with no losses pins RSI at 100; a flat window yields 0.
func relativeStrength(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n <= period {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < n; i++ {
		avgGain := 0.0
		avgLoss := 0.0
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)

		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = 0
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// ewm is an exponentially weighted mean seeded at the first value, with
// alpha = 2/(span+1).
func ewm(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(span) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}
