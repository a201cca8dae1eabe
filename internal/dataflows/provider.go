package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/models"
)

// Provider supplies daily bars for a symbol. Supports lets a provider opt
// out of symbols it cannot serve (Binance only handles crypto pairs,
// Longport needs credentials) so the chain can skip straight to the next
// candidate.
type Provider interface {
	Name() string
	Supports(symbol string) bool
	DailySeries(ctx context.Context, symbol string, days int) ([]*models.MarketData, error)
}

// Fetcher walks an ordered provider chain, caches the winning series and
// annotates it with indicators.
type Fetcher struct {
	providers []Provider
	cache     *CacheManager
	log       zerolog.Logger
}

// NewFetcher builds the default chain for cfg: Yahoo Finance first, Longport
// when credentials are configured, Binance as the crypto fallback.
func NewFetcher(cfg *config.Config, log zerolog.Logger) *Fetcher {
	providers := []Provider{NewYahooProvider(cfg)}
	if lp, err := NewLongportProvider(cfg); err == nil {
		providers = append(providers, lp)
	}
	providers = append(providers, NewBinanceProvider())

	return NewFetcherWithProviders(cfg, log, providers...)
}

// NewFetcherWithProviders builds a fetcher over an explicit chain. Tests use
// this with stub providers.
func NewFetcherWithProviders(cfg *config.Config, log zerolog.Logger, providers ...Provider) *Fetcher {
	cacheDir := filepath.Join(cfg.DataCacheDir, "market_data")
	return &Fetcher{
		providers: providers,
		cache:     NewCacheManager(cacheDir, 5*time.Minute, cfg.CacheEnabled),
		log:       log.With().Str("component", "dataflows").Logger(),
	}
}

// DailySeries returns the symbol's daily bars for the trailing window, oldest
// first. Providers are tried in order; the first non-empty answer wins and is
// cached for five minutes.
func (f *Fetcher) DailySeries(ctx context.Context, symbol string, days int) ([]*models.MarketData, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)
	if days <= 0 {
		days = 365
	}

	cacheParams := map[string]interface{}{"symbol": symbol, "days": days}
	var cached []*models.MarketData
	if f.cache.Get("chain", "daily", cacheParams, &cached) {
		return cached, nil
	}

	var lastErr error
	for _, p := range f.providers {
		if !p.Supports(symbol) {
			continue
		}
		series, err := p.DailySeries(ctx, symbol, days)
		if err != nil {
			f.log.Warn().Err(err).Str("provider", p.Name()).Str("symbol", symbol).
				Msg("provider failed, trying next")
			lastErr = err
			continue
		}
		if len(series) == 0 {
			f.log.Warn().Str("provider", p.Name()).Str("symbol", symbol).
				Msg("provider returned empty series, trying next")
			continue
		}

		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		f.cache.Set("chain", "daily", cacheParams, series)
		f.log.Debug().Str("provider", p.Name()).Str("symbol", symbol).Int("bars", len(series)).
			Msg("series fetched")
		return series, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all providers failed for %s: %w", symbol, lastErr)
	}
	return nil, fmt.Errorf("no provider could serve %s", symbol)
}

// IndicatorSeries fetches the daily series and annotates it with the
// indicator columns.
func (f *Fetcher) IndicatorSeries(ctx context.Context, symbol string, days int) ([]models.IndicatorRow, error) {
	series, err := f.DailySeries(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	return ComputeIndicators(series), nil
}

// Quote returns the best-effort current price for a symbol: the live quote
// when a provider offers one, otherwise the last close of the daily series.
func (f *Fetcher) Quote(ctx context.Context, symbol string) (float64, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return 0, err
	}
	symbol = NormalizeSymbol(symbol)

	for _, p := range f.providers {
		q, ok := p.(interface {
			LiveQuote(ctx context.Context, symbol string) (float64, error)
		})
		if !ok || !p.Supports(symbol) {
			continue
		}
		if price, err := q.LiveQuote(ctx, symbol); err == nil && price > 0 {
			return price, nil
		}
	}

	series, err := f.DailySeries(ctx, symbol, 30)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1].CloseF(), nil
}
