// Package position derives point-in-time summaries from a stored trade
// history. Nothing here is cached: running units, average cost and realized
// P&L are replayed from empty state on every call, so the summary is a pure
// function of the history plus an optional current price.
package position

import (
	"github.com/easyfolio/easyfolio/models"
)

// Summarize replays the position's history in stored order and returns the
// derived summary. currentPrice marks open holdings to market; pass 0 when no
// quote is available and the unrealized fields stay zero.
func Summarize(symbol string, pos *models.Position, currentPrice float64) *models.Summary {
	unitAmount := pos.UnitAmount()
	history := pos.History

	annotated := make([]models.AnnotatedRecord, 0, len(history))
	runningUnits := 0
	avgCostPrice := 0.0
	totalRealizedPnL := 0.0

	for _, rec := range history {
		units := rec.Units
		price := rec.Price

		pnl := 0.0
		switch {
		case units > 0:
			if runningUnits+units > 0 {
				avgCostPrice = (avgCostPrice*float64(runningUnits) + price*float64(units)) / float64(runningUnits+units)
			}
			runningUnits += units

		case units < 0:
			sellUnits := -units
			if runningUnits > 0 && avgCostPrice > 0 {
				pnl = (price/avgCostPrice - 1) * float64(sellUnits) * unitAmount
				totalRealizedPnL += pnl

				runningUnits -= sellUnits
				if runningUnits <= 0 {
					// Full liquidation clears the basis. An oversell lands
					// here too: the remainder is absorbed, not rejected.
					runningUnits = 0
					avgCostPrice = 0
				}
			}
		}
		// units == 0 is an audit-only no-action entry.

		annotated = append(annotated, models.AnnotatedRecord{
			TradeRecord: rec,
			Amount:      float64(abs(units)) * unitAmount,
			PnL:         pnl,
		})
	}

	usedUnits := runningUnits
	remainingUnits := pos.TotalUnits - usedUnits

	unrealizedPnL := 0.0
	if currentPrice > 0 && usedUnits > 0 && avgCostPrice > 0 {
		unrealizedPnL = (currentPrice/avgCostPrice - 1) * float64(usedUnits) * unitAmount
	}
	unrealizedPnLPct := 0.0
	if currentPrice > 0 && avgCostPrice > 0 {
		unrealizedPnLPct = currentPrice/avgCostPrice - 1
	}

	return &models.Summary{
		Symbol:               symbol,
		TotalBudget:          pos.TotalBudget,
		UsedUnits:            usedUnits,
		RemainingUnits:       remainingUnits,
		AvgCostPrice:         avgCostPrice,
		CurrentHoldingsValue: float64(usedUnits) * unitAmount,
		TotalRealizedPnL:     totalRealizedPnL,
		UnrealizedPnL:        unrealizedPnL,
		UnrealizedPnLPct:     unrealizedPnLPct,
		TotalPnL:             totalRealizedPnL + unrealizedPnL,
		History:              annotated,
	}
}

// TruncateHistory returns a copy of pos whose history stops at cutoff
// (inclusive). Used by the advisory workflow so a simulated date never sees
// trades recorded after it. Date keys sort lexicographically in calendar
// order, so a plain string compare is enough.
func TruncateHistory(pos *models.Position, cutoff string) *models.Position {
	out := pos.Clone()
	if cutoff == "" {
		return out
	}
	kept := out.History[:0]
	for _, rec := range out.History {
		if rec.Date <= cutoff {
			kept = append(kept, rec)
		}
	}
	out.History = kept
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
