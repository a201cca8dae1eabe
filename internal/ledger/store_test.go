package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyfolio/easyfolio/models"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.json")
	return Open(path, zerolog.Nop()), path
}

func TestGetOrCreateReturnsDefaultWithoutPersisting(t *testing.T) {
	s, path := newTestStore(t)

	pos := s.GetOrCreate("AAPL")
	require.NotNil(t, pos)
	assert.Equal(t, float64(0), pos.TotalBudget)
	assert.Equal(t, models.TotalUnits, pos.TotalUnits)
	assert.Empty(t, pos.History)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "read must not create the document")
}

func TestSetBudgetPersists(t *testing.T) {
	s, path := newTestStore(t)

	pos := s.SetBudget("AAPL", 10000)
	assert.Equal(t, float64(10000), pos.TotalBudget)
	assert.Equal(t, float64(100), pos.UnitAmount())

	reopened := Open(path, zerolog.Nop())
	assert.Equal(t, float64(10000), reopened.GetOrCreate("AAPL").TotalBudget)
}

func TestAppendRecordDerivesAmountAndSortsByDate(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetBudget("AAPL", 10000)

	s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-02", Units: 20, Price: 12})
	s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-01", Units: 50, Price: 10})
	pos := s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-03", Units: -30, Price: 15})

	require.Len(t, pos.History, 3)
	assert.Equal(t, "2024-03-01", pos.History[0].Date)
	assert.Equal(t, "2024-03-02", pos.History[1].Date)
	assert.Equal(t, "2024-03-03", pos.History[2].Date)

	// amount is |units| * unit value, for sells too
	assert.Equal(t, float64(5000), pos.History[0].Amount)
	assert.Equal(t, float64(3000), pos.History[2].Amount)
}

func TestAppendRecordSameDayKeepsInsertionOrder(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetBudget("AAPL", 10000)

	s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-01", Units: 10, Price: 10, Conclusion: "first"})
	pos := s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-01", Units: 10, Price: 11, Conclusion: "second"})

	require.Len(t, pos.History, 2)
	assert.Equal(t, "first", pos.History[0].Conclusion)
	assert.Equal(t, "second", pos.History[1].Conclusion)
}

func TestDeleteRecord(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetBudget("AAPL", 10000)
	s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-01", Units: 10, Price: 10})
	s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-02", Units: 20, Price: 11})

	assert.False(t, s.DeleteRecord("MSFT", 0), "unknown symbol")
	assert.False(t, s.DeleteRecord("AAPL", 2), "index out of range")
	assert.False(t, s.DeleteRecord("AAPL", -1), "negative index")

	require.True(t, s.DeleteRecord("AAPL", 0))
	pos := s.GetOrCreate("AAPL")
	require.Len(t, pos.History, 1)
	assert.Equal(t, "2024-03-02", pos.History[0].Date)
}

func TestClearKeepsBudget(t *testing.T) {
	s, path := newTestStore(t)
	s.SetBudget("AAPL", 10000)
	s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-01", Units: 10, Price: 10})

	assert.False(t, s.Clear("MSFT"))
	require.True(t, s.Clear("AAPL"))

	reopened := Open(path, zerolog.Nop())
	pos := reopened.GetOrCreate("AAPL")
	assert.Equal(t, float64(10000), pos.TotalBudget)
	assert.Empty(t, pos.History)
}

func TestOpenRecoversFromCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path, zerolog.Nop())
	pos := s.GetOrCreate("AAPL")
	assert.Equal(t, float64(0), pos.TotalBudget)
}

func TestMutationsReturnIndependentCopies(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetBudget("AAPL", 10000)
	pos := s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-01", Units: 10, Price: 10})

	pos.History[0].Units = 99
	pos.TotalBudget = 1

	fresh := s.GetOrCreate("AAPL")
	assert.Equal(t, 10, fresh.History[0].Units)
	assert.Equal(t, float64(10000), fresh.TotalBudget)
}

func TestConcurrentAppendsAllSurvive(t *testing.T) {
	s, path := newTestStore(t)
	s.SetBudget("AAPL", 10000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendRecord("AAPL", models.TradeRecord{Date: "2024-03-01", Units: 1, Price: 10})
		}()
	}
	wg.Wait()

	pos := s.GetOrCreate("AAPL")
	assert.Len(t, pos.History, 20)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]*models.Position
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc["AAPL"].History, 20)
}
