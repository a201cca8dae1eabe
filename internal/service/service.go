// Package service is the composition root: it wires the ledger, the market
// data chain, the execution gateway and the advisory workflow, and exposes
// the operations the HTTP and CLI shells call.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/internal/advisor"
	"github.com/easyfolio/easyfolio/internal/agents"
	"github.com/easyfolio/easyfolio/internal/dataflows"
	"github.com/easyfolio/easyfolio/internal/gateway"
	"github.com/easyfolio/easyfolio/internal/ledger"
	"github.com/easyfolio/easyfolio/internal/position"
	"github.com/easyfolio/easyfolio/internal/storage/sqlite"
	"github.com/easyfolio/easyfolio/models"
)

// QuoteResult is the live quote view served to the shells.
type QuoteResult struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	PctChange float64 `json:"pct_change"`
	Time      string  `json:"time"`
}

// Service owns the wired components for one process.
type Service struct {
	cfg      *config.Config
	repo     ledger.Repository
	fetcher  *dataflows.Fetcher
	news     *dataflows.NewsScraper
	gw       *gateway.Gateway
	recorder *sqlite.Store
	log      zerolog.Logger

	mu      sync.RWMutex
	advisor *advisor.Advisor
	demo    bool
}

// New wires a service from config. A missing API key degrades the advisory
// workflow to demo mode; a failed recorder open degrades session history to
// off. Both are logged, neither is fatal.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Service, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	repo := ledger.Open(filepath.Join(cfg.DataDir, "positions.json"), log)
	fetcher := dataflows.NewFetcher(cfg, log)
	news := dataflows.NewNewsScraper(cfg)
	gw := gateway.New(repo, log)

	recorder, err := sqlite.Open(filepath.Join(cfg.DataDir, "advisory.db"))
	if err != nil {
		log.Warn().Err(err).Msg("advisory recorder unavailable, session history disabled")
		recorder = nil
	}

	s := &Service{
		cfg:      cfg,
		repo:     repo,
		fetcher:  fetcher,
		news:     news,
		gw:       gw,
		recorder: recorder,
		log:      log.With().Str("component", "service").Logger(),
	}
	s.rebuildAdvisor(ctx)
	return s, nil
}

// rebuildAdvisor constructs the advisory workflow against the current model
// configuration. Without a usable model the workflow runs in demo mode.
func (s *Service) rebuildAdvisor(ctx context.Context) {
	var model advisor.DecisionModel
	demo := true
	if s.cfg.HasModel() {
		client, err := agents.NewClient(ctx, s.cfg, s.log)
		if err != nil {
			s.log.Warn().Err(err).Msg("chat model unavailable, running in demo mode")
		} else {
			model = client
			demo = false
		}
	} else {
		s.log.Info().Msg("no API key configured, advisory runs in demo mode")
	}

	s.mu.Lock()
	s.advisor = advisor.New(s.repo, s.fetcher, s.news, model, s.gw, s.cfg, s.log)
	s.demo = demo
	s.mu.Unlock()
}

// ApplyModelConfig swaps the model configuration at runtime and rebuilds
// the advisory workflow. Empty fields keep their current value.
func (s *Service) ApplyModelConfig(ctx context.Context, apiKey, baseURL, modelName string) {
	if apiKey != "" {
		s.cfg.APIKey = apiKey
	}
	if baseURL != "" {
		s.cfg.BaseURL = baseURL
	}
	if modelName != "" {
		s.cfg.ModelName = modelName
	}
	s.rebuildAdvisor(ctx)
}

// Close releases held resources.
func (s *Service) Close() {
	if s.recorder != nil {
		_ = s.recorder.Close()
	}
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// IsDemo reports whether the advisory workflow runs without a model.
func (s *Service) IsDemo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.demo
}

// Summary returns the position summary marked to a best-effort live quote.
// Quote failures degrade to an unmarked summary.
func (s *Service) Summary(ctx context.Context, symbol string) *models.Summary {
	symbol = dataflows.NormalizeSymbol(symbol)

	currentPrice := 0.0
	if price, err := s.fetcher.Quote(ctx, symbol); err == nil {
		currentPrice = price
	} else {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("quote unavailable, summary is unmarked")
	}

	return position.Summarize(symbol, s.repo.GetOrCreate(symbol), currentPrice)
}

// SetBudget updates a symbol's total budget.
func (s *Service) SetBudget(symbol string, totalBudget float64) (*models.Position, error) {
	if totalBudget < 0 {
		return nil, fmt.Errorf("total budget must be non-negative")
	}
	return s.repo.SetBudget(dataflows.NormalizeSymbol(symbol), totalBudget), nil
}

// AddRecord appends a manual trade record.
func (s *Service) AddRecord(symbol, date string, units int, price float64, conclusion string) (*models.Position, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return s.repo.AppendRecord(dataflows.NormalizeSymbol(symbol), models.TradeRecord{
		Date:       date,
		Units:      units,
		Price:      price,
		Conclusion: conclusion,
	}), nil
}

// DeleteRecord removes the history entry at index.
func (s *Service) DeleteRecord(symbol string, index int) bool {
	return s.repo.DeleteRecord(dataflows.NormalizeSymbol(symbol), index)
}

// Clear resets a symbol's history.
func (s *Service) Clear(symbol string) bool {
	return s.repo.Clear(dataflows.NormalizeSymbol(symbol))
}

// Quote returns the live quote with day change derived from the recent
// series.
func (s *Service) Quote(ctx context.Context, symbol string) (*QuoteResult, error) {
	symbol = dataflows.NormalizeSymbol(symbol)

	series, err := s.fetcher.DailySeries(ctx, symbol, 10)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no data for %s", symbol)
	}

	last := series[len(series)-1]
	prev := last
	if len(series) > 1 {
		prev = series[len(series)-2]
	}

	price := last.CloseF()
	prevPrice := prev.CloseF()
	change := price - prevPrice
	pct := 0.0
	if prevPrice != 0 {
		pct = change / prevPrice * 100
	}

	return &QuoteResult{
		Symbol:    symbol,
		Price:     price,
		Change:    change,
		PctChange: pct,
		Time:      last.DateKey(),
	}, nil
}

// History returns the indicator-annotated daily series.
func (s *Service) History(ctx context.Context, symbol string, days int) ([]models.IndicatorRow, error) {
	return s.fetcher.IndicatorSeries(ctx, dataflows.NormalizeSymbol(symbol), days)
}

// Analyze starts an advisory run and returns its narrative stream plus the
// run ID. Chunks are recorded to the session store as they are forwarded, so
// a consumer disconnect loses nothing already produced.
func (s *Service) Analyze(ctx context.Context, symbol, simulatedDate string) (<-chan string, string) {
	symbol = dataflows.NormalizeSymbol(symbol)
	runID := fmt.Sprintf("run_%s_%d", symbol, time.Now().UnixNano())

	if s.recorder != nil {
		if err := s.recorder.CreateRun(ctx, sqlite.RunRecord{
			ID:            runID,
			Symbol:        symbol,
			SimulatedDate: simulatedDate,
		}); err != nil {
			s.log.Warn().Err(err).Str("run", runID).Msg("run not recorded")
		}
	}

	s.mu.RLock()
	adv := s.advisor
	s.mu.RUnlock()
	upstream := adv.Run(ctx, symbol, simulatedDate)
	out := make(chan string, 16)

	go func() {
		defer close(out)
		seq := 0
		for chunk := range upstream {
			seq++
			if s.recorder != nil {
				// Recording must not block the stream on ctx cancellation.
				if err := s.recorder.AppendChunk(context.Background(), sqlite.Chunk{
					RunID:   runID,
					Seq:     seq,
					Content: chunk,
				}); err != nil {
					s.log.Warn().Err(err).Str("run", runID).Msg("chunk not recorded")
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Keep draining upstream so recording completes.
			}
		}
		if s.recorder != nil {
			_ = s.recorder.FinishRun(context.Background(), runID, sqlite.StatusDone)
		}
	}()

	return out, runID
}

// Runs lists recorded advisory runs, newest first.
func (s *Service) Runs(ctx context.Context, cursor int64, limit int) ([]sqlite.RunWithMeta, error) {
	if s.recorder == nil {
		return nil, fmt.Errorf("session history is disabled")
	}
	return s.recorder.ListRuns(ctx, cursor, limit)
}

// Transcript returns a recorded run's narrative.
func (s *Service) Transcript(ctx context.Context, runID string) (string, error) {
	if s.recorder == nil {
		return "", fmt.Errorf("session history is disabled")
	}
	run, err := s.recorder.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if run == nil {
		return "", fmt.Errorf("unknown run %s", runID)
	}
	return s.recorder.Transcript(ctx, runID)
}
