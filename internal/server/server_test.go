package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/internal/service"
	"github.com/easyfolio/easyfolio/internal/storage/sqlite"
	"github.com/easyfolio/easyfolio/models"
)

type stubBackend struct {
	cfg        *config.Config
	demo       bool
	applied    [3]string
	quoteErr   error
	chunks     []string
	runs       []sqlite.RunWithMeta
	runsErr    error
	transcript map[string]string
	deleted    bool
	cleared    bool
}

func newStubBackend() *stubBackend {
	cfg := config.DefaultConfigWithRoot("/tmp/easyfolio-test")
	cfg.APIKey = "sk-abcdef123456"
	return &stubBackend{
		cfg:        cfg,
		chunks:     []string{"analyzing ", "AAPL..."},
		transcript: map[string]string{},
		deleted:    true,
		cleared:    true,
	}
}

func (b *stubBackend) Config() *config.Config { return b.cfg }
func (b *stubBackend) IsDemo() bool           { return b.demo }

func (b *stubBackend) ApplyModelConfig(_ context.Context, apiKey, baseURL, modelName string) {
	b.applied = [3]string{apiKey, baseURL, modelName}
}

func (b *stubBackend) Summary(_ context.Context, symbol string) *models.Summary {
	return &models.Summary{Symbol: symbol, TotalBudget: 10000, RemainingUnits: 100}
}

func (b *stubBackend) SetBudget(symbol string, totalBudget float64) (*models.Position, error) {
	if totalBudget < 0 {
		return nil, fmt.Errorf("total budget must be non-negative")
	}
	return &models.Position{TotalBudget: totalBudget, TotalUnits: models.TotalUnits}, nil
}

func (b *stubBackend) AddRecord(symbol, date string, units int, price float64, conclusion string) (*models.Position, error) {
	if date == "bad" {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return &models.Position{TotalUnits: models.TotalUnits, History: []models.TradeRecord{
		{Date: date, Units: units, Price: price, Conclusion: conclusion},
	}}, nil
}

func (b *stubBackend) DeleteRecord(string, int) bool { return b.deleted }
func (b *stubBackend) Clear(string) bool             { return b.cleared }

func (b *stubBackend) Quote(_ context.Context, symbol string) (*service.QuoteResult, error) {
	if b.quoteErr != nil {
		return nil, b.quoteErr
	}
	return &service.QuoteResult{Symbol: symbol, Price: 101.5, Change: 1.5, PctChange: 1.5}, nil
}

func (b *stubBackend) History(_ context.Context, symbol string, days int) ([]models.IndicatorRow, error) {
	return []models.IndicatorRow{{Date: "2024-01-01", Close: 100}}, nil
}

func (b *stubBackend) Analyze(_ context.Context, symbol, _ string) (<-chan string, string) {
	out := make(chan string, len(b.chunks))
	for _, c := range b.chunks {
		out <- c
	}
	close(out)
	return out, "run_" + symbol + "_1"
}

func (b *stubBackend) Runs(context.Context, int64, int) ([]sqlite.RunWithMeta, error) {
	return b.runs, b.runsErr
}

func (b *stubBackend) Transcript(_ context.Context, runID string) (string, error) {
	t, ok := b.transcript[runID]
	if !ok {
		return "", fmt.Errorf("unknown run %s", runID)
	}
	return t, nil
}

func newTestServer(t *testing.T, backend Backend, opts ...Option) *httptest.Server {
	t.Helper()
	srv := New(":0", backend, zerolog.Nop(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestGetConfigMasksAPIKey(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Get(ts.URL + "/api/config")
	require.NoError(t, err)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "sk-a...3456", body["api_key"])
	assert.Equal(t, false, body["is_demo"])
}

func TestUpdateConfigAppliesAndPersists(t *testing.T) {
	backend := newStubBackend()
	persisted := false
	ts := newTestServer(t, backend, WithConfigPersist(func(config.Config) error {
		persisted = true
		return nil
	}))

	resp, err := http.Post(ts.URL+"/api/config", "application/json",
		strings.NewReader(`{"api_key":"sk-new","model_name":"gpt-4o-mini"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, [3]string{"sk-new", "", "gpt-4o-mini"}, backend.applied)
	assert.True(t, persisted)
}

func TestQuoteRequiresSymbol(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Get(ts.URL + "/api/market/quote")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuoteUpstreamFailureIsBadGateway(t *testing.T) {
	backend := newStubBackend()
	backend.quoteErr = fmt.Errorf("all providers failed")
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/api/market/quote?symbol=AAPL")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHistoryRejectsNonPositiveDays(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Get(ts.URL + "/api/market/history?symbol=AAPL&days=0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIndicesOmitFailingSymbols(t *testing.T) {
	backend := newStubBackend()
	backend.quoteErr = fmt.Errorf("all providers failed")
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/api/market/indices")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Indices []json.RawMessage `json:"indices"`
	}
	decodeBody(t, resp, &body)
	assert.Empty(t, body.Indices)
}

func TestAnalyzeStreamsChunksWithRunID(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Get(ts.URL + "/api/market/analyze?symbol=AAPL")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "run_AAPL_1", resp.Header.Get("X-Run-ID"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	var b strings.Builder
	buf := make([]byte, 64)
	for {
		n, err := resp.Body.Read(buf)
		b.Write(buf[:n])
		if err != nil {
			break
		}
	}
	assert.Equal(t, "analyzing AAPL...", b.String())
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Get(ts.URL + "/api/positions/summary?symbol=AAPL")
	require.NoError(t, err)

	var sum models.Summary
	decodeBody(t, resp, &sum)
	assert.Equal(t, "AAPL", sum.Symbol)
	assert.Equal(t, 100, sum.RemainingUnits)
}

func TestSetBudgetValidation(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Post(ts.URL+"/api/positions/config", "application/json",
		strings.NewReader(`{"symbol":"AAPL","total_budget":-1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/positions/config", "application/json",
		strings.NewReader(`{"symbol":"AAPL","total_budget":10000}`))
	require.NoError(t, err)

	var pos models.Position
	decodeBody(t, resp, &pos)
	assert.Equal(t, 10000.0, pos.TotalBudget)
}

func TestAddRecordRejectsBadDate(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	resp, err := http.Post(ts.URL+"/api/positions/record", "application/json",
		strings.NewReader(`{"symbol":"AAPL","date":"bad","units":10,"price":5}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteRecordNotFound(t *testing.T) {
	backend := newStubBackend()
	backend.deleted = false
	ts := newTestServer(t, backend)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/positions/record?symbol=AAPL&index=5", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClear(t *testing.T) {
	ts := newTestServer(t, newStubBackend())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/positions/clear?symbol=AAPL", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListRunsUnavailable(t *testing.T) {
	backend := newStubBackend()
	backend.runsErr = fmt.Errorf("session history is disabled")
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/api/runs/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTranscript(t *testing.T) {
	backend := newStubBackend()
	backend.transcript["run-1"] = "the full narrative"
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/api/runs/run-1")
	require.NoError(t, err)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "the full narrative", body["transcript"])

	resp, err = http.Get(ts.URL + "/api/runs/run-2")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
