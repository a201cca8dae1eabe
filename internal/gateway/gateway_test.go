package gateway

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyfolio/easyfolio/internal/ledger"
	"github.com/easyfolio/easyfolio/internal/position"
	"github.com/easyfolio/easyfolio/models"
)

func newTestGateway(t *testing.T) (*Gateway, ledger.Repository) {
	t.Helper()
	repo := ledger.Open(filepath.Join(t.TempDir(), "positions.json"), zerolog.Nop())
	repo.SetBudget("AAPL", 10000)
	return New(repo, zerolog.Nop()), repo
}

func buy(units int, conclusion string) *models.Decision {
	return &models.Decision{
		Kind:       models.DecisionExecuteTrade,
		Action:     models.ActionBuy,
		Units:      units,
		Conclusion: conclusion,
	}
}

func sell(units int, conclusion string) *models.Decision {
	return &models.Decision{
		Kind:       models.DecisionExecuteTrade,
		Action:     models.ActionSell,
		Units:      units,
		Conclusion: conclusion,
	}
}

func TestExecuteBuyAppendsSignedRecord(t *testing.T) {
	g, repo := newTestGateway(t)

	res := g.Execute("AAPL", "2024-03-01", buy(30, "momentum"), 10)
	require.True(t, res.OK)
	assert.Contains(t, res.Message, "buy 30 units of AAPL at 10.00 on 2024-03-01")

	require.NotNil(t, res.Record)
	assert.Equal(t, 30, res.Record.Units)
	assert.Equal(t, float64(3000), res.Record.Amount)

	pos := repo.GetOrCreate("AAPL")
	require.Len(t, pos.History, 1)
	assert.Equal(t, "momentum", pos.History[0].Conclusion)
}

func TestExecuteSellAppendsNegativeUnits(t *testing.T) {
	g, repo := newTestGateway(t)
	g.Execute("AAPL", "2024-03-01", buy(50, ""), 10)

	res := g.Execute("AAPL", "2024-03-02", sell(20, "take profit"), 15)
	require.True(t, res.OK)
	require.NotNil(t, res.Record)
	assert.Equal(t, -20, res.Record.Units)

	sum := position.Summarize("AAPL", repo.GetOrCreate("AAPL"), 0)
	assert.Equal(t, 30, sum.UsedUnits)
	assert.InDelta(t, 1000.0, sum.TotalRealizedPnL, 1e-9)
}

func TestExecuteRejectsOutOfRangeUnits(t *testing.T) {
	g, repo := newTestGateway(t)

	for _, units := range []int{0, -5, 101} {
		res := g.Execute("AAPL", "2024-03-01", buy(units, ""), 10)
		assert.False(t, res.OK, "units=%d", units)
	}
	assert.Empty(t, repo.GetOrCreate("AAPL").History)
}

func TestExecuteRejectsBuyBeyondCapacity(t *testing.T) {
	g, repo := newTestGateway(t)
	g.Execute("AAPL", "2024-03-01", buy(80, ""), 10)

	res := g.Execute("AAPL", "2024-03-02", buy(30, ""), 11)
	require.False(t, res.OK)
	assert.Contains(t, res.Message, "remaining capacity 20")
	assert.Len(t, repo.GetOrCreate("AAPL").History, 1)
}

func TestExecuteAllowsOversell(t *testing.T) {
	g, repo := newTestGateway(t)
	g.Execute("AAPL", "2024-03-01", buy(30, ""), 10)

	res := g.Execute("AAPL", "2024-03-02", sell(50, ""), 20)
	require.True(t, res.OK)

	sum := position.Summarize("AAPL", repo.GetOrCreate("AAPL"), 0)
	assert.Equal(t, 0, sum.UsedUnits)
	assert.Equal(t, 0.0, sum.AvgCostPrice)
}

func TestExecuteRejectsNonPositivePrice(t *testing.T) {
	g, repo := newTestGateway(t)

	res := g.Execute("AAPL", "2024-03-01", buy(10, ""), 0)
	assert.False(t, res.OK)
	assert.Empty(t, repo.GetOrCreate("AAPL").History)
}

func TestExecuteNoActionRecordsZeroUnits(t *testing.T) {
	g, repo := newTestGateway(t)

	res := g.Execute("AAPL", "2024-03-01", &models.Decision{
		Kind:   models.DecisionNoAction,
		Reason: "waiting for earnings",
	}, 12)
	require.True(t, res.OK)
	assert.Contains(t, res.Message, "waiting for earnings")

	pos := repo.GetOrCreate("AAPL")
	require.Len(t, pos.History, 1)
	assert.Equal(t, 0, pos.History[0].Units)
	assert.Equal(t, float64(12), pos.History[0].Price)

	sum := position.Summarize("AAPL", pos, 0)
	assert.Equal(t, 0, sum.UsedUnits)
}

func TestExecuteUnstructuredLeavesLedgerUntouched(t *testing.T) {
	g, repo := newTestGateway(t)

	res := g.Execute("AAPL", "2024-03-01", &models.Decision{
		Kind: models.DecisionUnstructured,
		Text: "I think the market looks uncertain.",
	}, 12)
	assert.False(t, res.OK)
	assert.Empty(t, repo.GetOrCreate("AAPL").History)
}
