package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/easyfolio/easyfolio/models"
)

const binanceKlinesURL = "https://api.binance.com/api/v3/klines"

// BinanceProvider is the crypto fallback. It maps USD pair symbols to
// Binance spot pairs (BTC-USD becomes BTCUSDT) and pulls daily klines from
// the public REST API.
type BinanceProvider struct {
	client *resty.Client
}

func NewBinanceProvider() *BinanceProvider {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; easyfolio/1.0)")
	return &BinanceProvider{client: client}
}

func (bp *BinanceProvider) Name() string { return "binance" }

func (bp *BinanceProvider) Supports(symbol string) bool {
	return IsCryptoSymbol(symbol)
}

// binancePair converts BTC-USD style symbols to BTCUSDT.
func binancePair(symbol string) string {
	return strings.ToUpper(strings.Replace(symbol, "-USD", "", 1)) + "USDT"
}

func (bp *BinanceProvider) DailySeries(ctx context.Context, symbol string, days int) ([]*models.MarketData, error) {
	limit := days
	if limit > 1000 {
		limit = 1000
	}

	resp, err := bp.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   binancePair(symbol),
			"interval": "1d",
			"limit":    fmt.Sprintf("%d", limit),
		}).
		Get(binanceKlinesURL)
	if err != nil {
		return nil, fmt.Errorf("binance klines for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("binance klines for %s: HTTP %d", symbol, resp.StatusCode())
	}

	// Each kline is a mixed array: open time (ms), then OHLCV as strings.
	var raw [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("binance klines for %s: %w", symbol, err)
	}

	result := make([]*models.MarketData, 0, len(raw))
	for _, kline := range raw {
		if len(kline) < 6 {
			continue
		}

		var openTimeMs int64
		if err := json.Unmarshal(kline[0], &openTimeMs); err != nil {
			continue
		}

		prices := make([]decimal.Decimal, 0, 5)
		ok := true
		for _, field := range kline[1:6] {
			var s string
			if err := json.Unmarshal(field, &s); err != nil {
				ok = false
				break
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				ok = false
				break
			}
			prices = append(prices, d)
		}
		if !ok {
			continue
		}

		result = append(result, &models.MarketData{
			Symbol:    symbol,
			Date:      time.UnixMilli(openTimeMs),
			Open:      prices[0],
			High:      prices[1],
			Low:       prices[2],
			Close:     prices[3],
			AdjClose:  prices[3],
			Volume:    prices[4].IntPart(),
			Timestamp: time.Now(),
		})
	}
	return result, nil
}
