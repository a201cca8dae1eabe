package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is one daily bar as delivered by a market data provider.
type MarketData struct {
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	AdjClose  decimal.Decimal `json:"adj_close"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// CloseF returns the closing price as a float64 for accounting use.
func (m *MarketData) CloseF() float64 {
	f, _ := m.Close.Float64()
	return f
}

// DateKey returns the bar's calendar-day key.
func (m *MarketData) DateKey() string {
	return m.Date.Format(DateLayout)
}

// IndicatorRow is one row of the indicator-annotated market series the
// advisory workflow consumes. Values that cannot be computed yet (warm-up
// window) are zero, matching the original fill behavior.
type IndicatorRow struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	MA5      float64 `json:"ma5"`
	MA20     float64 `json:"ma20"`
	MA60     float64 `json:"ma60"`
	RSI      float64 `json:"rsi"`
	MACD     float64 `json:"macd"`
	Signal   float64 `json:"signal"`
	MACDHist float64 `json:"macd_hist"`
	BBMid    float64 `json:"bb_mid"`
	BBUpper  float64 `json:"bb_upper"`
	BBLower  float64 `json:"bb_lower"`
}

// NewsHeadline is a scraped headline offered to the decision process as
// optional context.
type NewsHeadline struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
}
