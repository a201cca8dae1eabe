package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/models"
)

// YahooProvider serves daily bars and live quotes from Yahoo Finance. It is
// the first provider in the chain and accepts every symbol.
type YahooProvider struct {
	cache *CacheManager
}

func NewYahooProvider(cfg *config.Config) *YahooProvider {
	cacheDir := filepath.Join(cfg.DataCacheDir, "yahoo_finance")
	return &YahooProvider{
		cache: NewCacheManager(cacheDir, 5*time.Minute, cfg.CacheEnabled),
	}
}

func (yp *YahooProvider) Name() string { return "yahoo" }

func (yp *YahooProvider) Supports(string) bool { return true }

func (yp *YahooProvider) DailySeries(ctx context.Context, symbol string, days int) ([]*models.MarketData, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	cacheParams := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format(models.DateLayout),
		"end":    end.Format(models.DateLayout),
	}
	var cached []*models.MarketData
	if yp.cache.Get("yahoo", "daily", cacheParams, &cached) {
		return cached, nil
	}

	var result []*models.MarketData
	err := WithRetry(DefaultRetryConfig(), func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}
		iter := chart.Get(params)

		result = result[:0]
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, &models.MarketData{
				Symbol:    symbol,
				Date:      time.Unix(int64(bar.Timestamp), 0),
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
				AdjClose:  bar.AdjClose,
				Volume:    int64(bar.Volume),
				Timestamp: time.Now(),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("yahoo daily series for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	yp.cache.Set("yahoo", "daily", cacheParams, result)
	return result, nil
}

// LiveQuote returns the regular market price.
func (yp *YahooProvider) LiveQuote(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q, err := quote.Get(symbol)
	if err != nil {
		return 0, fmt.Errorf("yahoo quote for %s: %w", symbol, err)
	}
	return decimal.NewFromFloat(q.RegularMarketPrice).InexactFloat64(), nil
}
