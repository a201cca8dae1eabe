package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyfolio/easyfolio/models"
)

func position(budget float64, recs ...models.TradeRecord) *models.Position {
	pos := models.NewPosition()
	pos.TotalBudget = budget
	pos.History = recs
	return pos
}

func TestSummarizeEmptyHistory(t *testing.T) {
	sum := Summarize("AAPL", position(10000), 0)

	assert.Equal(t, "AAPL", sum.Symbol)
	assert.Equal(t, 0, sum.UsedUnits)
	assert.Equal(t, 100, sum.RemainingUnits)
	assert.Equal(t, 0.0, sum.AvgCostPrice)
	assert.Equal(t, 0.0, sum.TotalPnL)
	assert.Empty(t, sum.History)
}

func TestSummarizeWeightedAverageCost(t *testing.T) {
	sum := Summarize("AAPL", position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 50, Price: 10},
		models.TradeRecord{Date: "2024-01-02", Units: 50, Price: 20},
	), 0)

	assert.Equal(t, 100, sum.UsedUnits)
	assert.Equal(t, 0, sum.RemainingUnits)
	assert.InDelta(t, 15.0, sum.AvgCostPrice, 1e-9)
	assert.InDelta(t, 10000.0, sum.CurrentHoldingsValue, 1e-9)
	assert.Equal(t, 0.0, sum.TotalRealizedPnL)
}

func TestSummarizeFullLiquidation(t *testing.T) {
	sum := Summarize("AAPL", position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 50, Price: 10},
		models.TradeRecord{Date: "2024-01-02", Units: 50, Price: 20},
		models.TradeRecord{Date: "2024-01-03", Units: -100, Price: 30},
	), 0)

	// (30/15 - 1) * 100 units * 100 per unit
	assert.InDelta(t, 10000.0, sum.TotalRealizedPnL, 1e-9)
	assert.Equal(t, 0, sum.UsedUnits)
	assert.Equal(t, 0.0, sum.AvgCostPrice)
	assert.Equal(t, 0.0, sum.CurrentHoldingsValue)

	require.Len(t, sum.History, 3)
	assert.Equal(t, 0.0, sum.History[0].PnL)
	assert.Equal(t, 0.0, sum.History[1].PnL)
	assert.InDelta(t, 10000.0, sum.History[2].PnL, 1e-9)
}

func TestSummarizePartialSellKeepsBasis(t *testing.T) {
	sum := Summarize("AAPL", position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 60, Price: 10},
		models.TradeRecord{Date: "2024-01-02", Units: -20, Price: 15},
	), 0)

	// (15/10 - 1) * 20 * 100 = 1000
	assert.InDelta(t, 1000.0, sum.TotalRealizedPnL, 1e-9)
	assert.Equal(t, 40, sum.UsedUnits)
	assert.InDelta(t, 10.0, sum.AvgCostPrice, 1e-9)
}

func TestSummarizeOversellAbsorbedByReset(t *testing.T) {
	sum := Summarize("AAPL", position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 30, Price: 10},
		models.TradeRecord{Date: "2024-01-02", Units: -50, Price: 20},
	), 0)

	// P&L is computed on the full sell quantity, then the position resets.
	assert.InDelta(t, (20.0/10-1)*50*100, sum.TotalRealizedPnL, 1e-9)
	assert.Equal(t, 0, sum.UsedUnits)
	assert.Equal(t, 0.0, sum.AvgCostPrice)
}

func TestSummarizeSellWithoutBasisIsInert(t *testing.T) {
	sum := Summarize("AAPL", position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: -40, Price: 20},
	), 0)

	assert.Equal(t, 0.0, sum.TotalRealizedPnL)
	assert.Equal(t, 0, sum.UsedUnits)
	require.Len(t, sum.History, 1)
	assert.Equal(t, 0.0, sum.History[0].PnL)
}

func TestSummarizeNoActionRecordIsInert(t *testing.T) {
	base := position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 50, Price: 10},
	)
	before := Summarize("AAPL", base, 0)

	withHold := position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 50, Price: 10},
		models.TradeRecord{Date: "2024-01-02", Units: 0, Price: 12, Conclusion: "hold"},
	)
	after := Summarize("AAPL", withHold, 0)

	assert.Equal(t, before.UsedUnits, after.UsedUnits)
	assert.Equal(t, before.AvgCostPrice, after.AvgCostPrice)
	assert.Equal(t, before.TotalRealizedPnL, after.TotalRealizedPnL)
	require.Len(t, after.History, 2)
	assert.Equal(t, "hold", after.History[1].Conclusion)
	assert.Equal(t, 0.0, after.History[1].Amount)
}

func TestSummarizeUnrealizedPnL(t *testing.T) {
	pos := position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 50, Price: 10},
	)

	sum := Summarize("AAPL", pos, 12)
	// (12/10 - 1) * 50 * 100 = 1000
	assert.InDelta(t, 1000.0, sum.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0.2, sum.UnrealizedPnLPct, 1e-9)
	assert.InDelta(t, sum.TotalRealizedPnL+sum.UnrealizedPnL, sum.TotalPnL, 1e-9)

	// No quote: unrealized fields stay zero.
	flat := Summarize("AAPL", pos, 0)
	assert.Equal(t, 0.0, flat.UnrealizedPnL)
	assert.Equal(t, 0.0, flat.UnrealizedPnLPct)
}

func TestSummarizeZeroBudget(t *testing.T) {
	sum := Summarize("AAPL", position(0,
		models.TradeRecord{Date: "2024-01-01", Units: 50, Price: 10},
		models.TradeRecord{Date: "2024-01-02", Units: -50, Price: 20},
	), 25)

	// unit_amount is 0, so every monetary figure collapses to 0 while the
	// unit bookkeeping still runs.
	assert.Equal(t, 0.0, sum.TotalRealizedPnL)
	assert.Equal(t, 0.0, sum.UnrealizedPnL)
	assert.Equal(t, 0.0, sum.CurrentHoldingsValue)
}

func TestSummarizeIsDeterministic(t *testing.T) {
	pos := position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 50, Price: 10},
		models.TradeRecord{Date: "2024-01-02", Units: -20, Price: 15},
	)
	a := Summarize("AAPL", pos, 18)
	b := Summarize("AAPL", pos, 18)
	assert.Equal(t, a, b)
}

func TestTruncateHistory(t *testing.T) {
	pos := position(10000,
		models.TradeRecord{Date: "2024-01-01", Units: 10, Price: 10},
		models.TradeRecord{Date: "2024-01-05", Units: 10, Price: 11},
		models.TradeRecord{Date: "2024-01-09", Units: 10, Price: 12},
	)

	cut := TruncateHistory(pos, "2024-01-05")
	require.Len(t, cut.History, 2)
	assert.Equal(t, "2024-01-05", cut.History[1].Date)

	// The source position is untouched.
	assert.Len(t, pos.History, 3)

	all := TruncateHistory(pos, "")
	assert.Len(t, all.History, 3)
}
