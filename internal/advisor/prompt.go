package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/easyfolio/easyfolio/models"
)

// systemPrompt frames the decision process as a trader operating on the
// resolved trading day. The forced-choice requirement is stated explicitly
// even though the tool contract already enforces it; models follow it more
// reliably when both agree.
func systemPrompt(sum *models.Summary, tradingDay string, replay bool) string {
	var b strings.Builder
	b.WriteString("You are a professional stock and crypto analyst and trader.\n")
	b.WriteString("Based on the recent market data and the current position, produce today's analysis and act on it.\n\n")
	b.WriteString("Your task:\n")
	b.WriteString("1. Analyze the current trend, support and resistance levels.\n")
	fmt.Fprintf(&b, "2. Given the current position (%d/100 units in use), decide whether to buy, sell or hold.\n", sum.UsedUnits)
	b.WriteString("3. You MUST call `execute_trade` to trade, or `no_action` to confirm that you are not trading today.\n")
	b.WriteString("4. Explain your decision briefly in `conclusion` (trades) or `reason` (no action).\n")
	fmt.Fprintf(&b, "5. Base your analysis strictly on information available as of %s.\n", tradingDay)
	if replay {
		b.WriteString("\nYou are operating in replay mode: behave as if trading live on that day, with no knowledge of anything later.\n")
	}
	return b.String()
}

// indicatorDigest is the compact per-row view shown to the model.
type indicatorDigest struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
	RSI   float64 `json:"rsi"`
	MACD  float64 `json:"macd"`
	MA5   float64 `json:"ma5"`
	MA20  float64 `json:"ma20"`
}

// userPrompt assembles the decision context: the trailing indicator window,
// a digest of recent trades, and optional headlines. Rows beyond the
// truncation point must never reach this function.
func userPrompt(rows []models.IndicatorRow, sum *models.Summary, headlines []models.NewsHeadline, contextWindow, historyDigest int) string {
	if contextWindow > len(rows) {
		contextWindow = len(rows)
	}
	window := make([]indicatorDigest, 0, contextWindow)
	for _, row := range rows[len(rows)-contextWindow:] {
		window = append(window, indicatorDigest{
			Date:  row.Date,
			Close: row.Close,
			RSI:   row.RSI,
			MACD:  row.MACD,
			MA5:   row.MA5,
			MA20:  row.MA20,
		})
	}
	windowJSON, _ := json.MarshalIndent(window, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "**Recent market data (last %d periods):**\n%s\n\n", len(window), windowJSON)

	b.WriteString("**Position context and trade history:**\n")
	fmt.Fprintf(&b, "Units in use: %d/100\n", sum.UsedUnits)
	fmt.Fprintf(&b, "Average cost price: %.2f\n", sum.AvgCostPrice)
	fmt.Fprintf(&b, "Unrealized return: %.2f%%\n", sum.UnrealizedPnLPct*100)
	b.WriteString("Recent trade records:\n")

	history := sum.History
	if historyDigest < len(history) {
		history = history[len(history)-historyDigest:]
	}
	if len(history) == 0 {
		b.WriteString("- none\n")
	}
	for _, rec := range history {
		action := "hold"
		switch {
		case rec.Units > 0:
			action = "buy"
		case rec.Units < 0:
			action = "sell"
		}
		units := rec.Units
		if units < 0 {
			units = -units
		}
		conclusion := rec.Conclusion
		if conclusion == "" {
			conclusion = "n/a"
		}
		fmt.Fprintf(&b, "- %s: %s %d units @ %.2f | note: %s\n", rec.Date, action, units, rec.Price, conclusion)
	}

	if len(headlines) > 0 {
		b.WriteString("\n**Recent headlines:**\n")
		for _, h := range headlines {
			fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.Source)
		}
	}

	return b.String()
}

// demoReport is the locally generated narrative used when no model is
// configured. It reads the same indicator columns a model would and keeps
// the advisory endpoint usable without credentials.
func demoReport(symbol string, rows []models.IndicatorRow) string {
	if len(rows) < 2 {
		return fmt.Sprintf("### Market analysis: %s\n\nNot enough data to generate a report.", symbol)
	}

	last := rows[len(rows)-1]
	prev := rows[len(rows)-2]
	change := 0.0
	if prev.Close != 0 {
		change = (last.Close - prev.Close) / prev.Close * 100
	}

	trend := "bearish"
	if last.MA5 > last.MA20 {
		trend = "bullish"
	}
	rsiSignal := "neutral"
	switch {
	case last.RSI > 70:
		rsiSignal = "overbought"
	case last.RSI < 30:
		rsiSignal = "oversold"
	}
	maSide := "below"
	maBias := "weak"
	if last.Close > last.MA5 {
		maSide = "above"
		maBias = "strong"
	}
	momentum := "fading"
	if last.MACDHist > prev.MACDHist {
		momentum = "building"
	}

	support := last.Low
	resistance := last.High
	tail := rows
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	for _, row := range tail {
		if row.Low < support {
			support = row.Low
		}
		if row.High > resistance {
			resistance = row.High
		}
	}

	return fmt.Sprintf(`### Market analysis: %s (demo mode)

**1. Price action**
- Last close: %.2f
- Daily change: %+.2f%%
- Trend: %s (MA5 vs MA20)

**2. Indicators**
- RSI(14): %.2f, currently %s.
- Price is %s MA5 (%.2f); short-term momentum looks %s.
- MACD histogram shows momentum %s.

**3. Levels (informational only)**
- Support: %.2f
- Resistance: %.2f

---
*Generated locally from indicator data. Configure an API key to enable model-driven analysis.*`,
		symbol, last.Close, change, trend,
		last.RSI, rsiSignal, maSide, last.MA5, maBias, momentum,
		support, resistance)
}
