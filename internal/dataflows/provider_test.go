package dataflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/models"
)

type stubProvider struct {
	name     string
	supports bool
	series   []*models.MarketData
	err      error
	calls    int
}

func (s *stubProvider) Name() string          { return s.name }
func (s *stubProvider) Supports(string) bool  { return s.supports }
func (s *stubProvider) DailySeries(_ context.Context, _ string, _ int) ([]*models.MarketData, error) {
	s.calls++
	return s.series, s.err
}

func stubBars(closes ...float64) []*models.MarketData {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*models.MarketData, len(closes))
	for i, c := range closes {
		bars[i] = &models.MarketData{
			Symbol: "AAPL",
			Date:   base.AddDate(0, 0, i),
			Close:  decimal.NewFromFloat(c),
		}
	}
	return bars
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	return cfg
}

func TestFetcherFallsBackToNextProvider(t *testing.T) {
	broken := &stubProvider{name: "broken", supports: true, err: errors.New("boom")}
	working := &stubProvider{name: "working", supports: true, series: stubBars(10, 11)}

	f := NewFetcherWithProviders(testConfig(t), zerolog.Nop(), broken, working)
	series, err := f.DailySeries(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, working.calls)
}

func TestFetcherSkipsUnsupportedProviders(t *testing.T) {
	cryptoOnly := &stubProvider{name: "crypto", supports: false}
	working := &stubProvider{name: "working", supports: true, series: stubBars(10)}

	f := NewFetcherWithProviders(testConfig(t), zerolog.Nop(), cryptoOnly, working)
	_, err := f.DailySeries(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, cryptoOnly.calls)
}

func TestFetcherErrorsWhenAllProvidersFail(t *testing.T) {
	broken := &stubProvider{name: "broken", supports: true, err: errors.New("boom")}

	f := NewFetcherWithProviders(testConfig(t), zerolog.Nop(), broken)
	_, err := f.DailySeries(context.Background(), "AAPL", 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestFetcherCachesSeries(t *testing.T) {
	working := &stubProvider{name: "working", supports: true, series: stubBars(10, 11)}

	f := NewFetcherWithProviders(testConfig(t), zerolog.Nop(), working)
	_, err := f.DailySeries(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	_, err = f.DailySeries(context.Background(), "AAPL", 30)
	require.NoError(t, err)

	assert.Equal(t, 1, working.calls, "second fetch must be served from cache")
}

func TestFetcherRejectsBadSymbols(t *testing.T) {
	f := NewFetcherWithProviders(testConfig(t), zerolog.Nop())
	_, err := f.DailySeries(context.Background(), "   ", 30)
	assert.Error(t, err)
}

func TestFetcherQuoteFallsBackToLastClose(t *testing.T) {
	working := &stubProvider{name: "working", supports: true, series: stubBars(10, 11, 12)}

	f := NewFetcherWithProviders(testConfig(t), zerolog.Nop(), working)
	price, err := f.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, price, 1e-9)
}

func TestBinancePairMapping(t *testing.T) {
	assert.Equal(t, "BTCUSDT", binancePair("BTC-USD"))
	assert.Equal(t, "ETHUSDT", binancePair("ETH-USD"))
	assert.True(t, IsCryptoSymbol("BTC-USD"))
	assert.False(t, IsCryptoSymbol("AAPL"))
}
