package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/models"
)

// LongportProvider serves daily candlesticks through the Longport OpenAPI.
// It sits behind Yahoo in the chain and only activates when credentials are
// configured.
type LongportProvider struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportProvider(cfg *config.Config) (*LongportProvider, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}
	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportProvider{quoteCtx: quoteContext}, nil
}

func (lp *LongportProvider) Name() string { return "longport" }

// Supports excludes crypto pairs; Longport covers listed equities.
func (lp *LongportProvider) Supports(symbol string) bool {
	return !IsCryptoSymbol(symbol)
}

func (lp *LongportProvider) DailySeries(ctx context.Context, symbol string, days int) ([]*models.MarketData, error) {
	if lp.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}

	sticks, err := lp.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(days), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks for %s: %w", symbol, err)
	}

	result := make([]*models.MarketData, 0, len(sticks))
	for _, stick := range sticks {
		open, _ := stick.Open.Float64()
		high, _ := stick.High.Float64()
		low, _ := stick.Low.Float64()
		closePrice, _ := stick.Close.Float64()

		result = append(result, &models.MarketData{
			Symbol:    symbol,
			Date:      time.Unix(stick.Timestamp, 0),
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(closePrice),
			AdjClose:  decimal.NewFromFloat(closePrice),
			Volume:    stick.Volume,
			Timestamp: time.Now(),
		})
	}
	return result, nil
}

func (lp *LongportProvider) Close() {
	if lp.quoteCtx != nil {
		lp.quoteCtx.Close()
	}
}
