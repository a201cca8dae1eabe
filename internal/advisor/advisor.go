// Package advisor orchestrates one advisory run: assemble point-in-time
// context, demand a forced-choice decision from the model, route it through
// the execution gateway and stream a narrative of every step. The stream is
// ordered and append-only; consumers see each state transition as it
// happens.
package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/internal/gateway"
	"github.com/easyfolio/easyfolio/internal/ledger"
	"github.com/easyfolio/easyfolio/internal/position"
	"github.com/easyfolio/easyfolio/models"
)

// MarketSource supplies the indicator-annotated daily series.
type MarketSource interface {
	IndicatorSeries(ctx context.Context, symbol string, days int) ([]models.IndicatorRow, error)
}

// NewsSource supplies optional headline context. May be nil.
type NewsSource interface {
	Headlines(ctx context.Context, query string, maxResults int) ([]models.NewsHeadline, error)
}

// DecisionModel is the LLM boundary. A nil model puts the advisor in demo
// mode: it emits a locally generated report and never touches the ledger.
type DecisionModel interface {
	Decide(ctx context.Context, systemPrompt, userPrompt string) (*models.Decision, error)
	StreamReport(ctx context.Context, systemPrompt, userPrompt string, decision *models.Decision, executionResult string, emit func(chunk string)) error
}

// Executor turns decisions into ledger records.
type Executor interface {
	Execute(symbol, date string, decision *models.Decision, price float64) gateway.Result
}

// Advisor runs the workflow.
type Advisor struct {
	repo   ledger.Repository
	market MarketSource
	news   NewsSource
	model  DecisionModel
	exec   Executor
	cfg    *config.Config
	log    zerolog.Logger
}

func New(repo ledger.Repository, market MarketSource, news NewsSource, model DecisionModel, exec Executor, cfg *config.Config, log zerolog.Logger) *Advisor {
	return &Advisor{
		repo:   repo,
		market: market,
		news:   news,
		model:  model,
		exec:   exec,
		cfg:    cfg,
		log:    log.With().Str("component", "advisor").Logger(),
	}
}

// Run starts an advisory run for the symbol and returns the ordered
// narrative stream. The channel closes when the run terminates. simulatedDate
// (a calendar-day string) switches the run into replay mode; empty means
// trade on today's data.
//
// Cancelling ctx stops the stream, but a ledger mutation that already
// committed stays committed.
func (a *Advisor) Run(ctx context.Context, symbol, simulatedDate string) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		a.run(ctx, symbol, simulatedDate, out)
	}()
	return out
}

func (a *Advisor) run(ctx context.Context, symbol, simulatedDate string, out chan<- string) {
	emit := func(chunk string) bool {
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	replay := simulatedDate != ""
	if replay {
		if _, err := time.Parse(models.DateLayout, simulatedDate); err != nil {
			emit(fmt.Sprintf("❌ Invalid simulated date %q, expected YYYY-MM-DD.\n", simulatedDate))
			return
		}
		if !emit(fmt.Sprintf("> 🧪 **Replay mode**: simulated date is `%s`\n\n", simulatedDate)) {
			return
		}
	}

	if !emit("> 🔍 **Status**: fetching market data and position history...\n\n") {
		return
	}

	rows, err := a.market.IndicatorSeries(ctx, symbol, 365)
	if err != nil {
		a.log.Error().Err(err).Str("symbol", symbol).Msg("market data fetch failed")
		emit(fmt.Sprintf("❌ Market data unavailable for %s: %v\n", symbol, err))
		return
	}
	if len(rows) == 0 {
		emit("No data available for analysis.\n")
		return
	}

	if replay {
		rows = truncateRows(rows, simulatedDate)
		if len(rows) == 0 {
			emit(fmt.Sprintf("❌ Simulated date %s is outside the available data range.\n", simulatedDate))
			return
		}
		// Absorb non-trading days by snapping to the last retained bar.
		simulatedDate = rows[len(rows)-1].Date
	}

	lastClose := rows[len(rows)-1].Close
	tradingDay := simulatedDate
	if !replay {
		tradingDay = time.Now().Format(models.DateLayout)
	}

	pos := a.repo.GetOrCreate(symbol)
	if replay {
		pos = position.TruncateHistory(pos, simulatedDate)
	}
	sum := position.Summarize(symbol, pos, lastClose)

	if a.model == nil {
		emit(demoReport(symbol, rows))
		return
	}

	var headlines []models.NewsHeadline
	if a.news != nil && !replay {
		if h, err := a.news.Headlines(ctx, symbol, 5); err == nil {
			headlines = h
		} else {
			a.log.Warn().Err(err).Str("symbol", symbol).Msg("headline fetch failed, continuing without news")
		}
	}

	system := systemPrompt(sum, tradingDay, replay)
	user := userPrompt(rows, sum, headlines, a.cfg.ContextWindow, a.cfg.HistoryDigest)

	if !emit(fmt.Sprintf("> 🧠 **Thinking**: reviewing indicators and evaluating trade opportunities (model: %s)...\n\n", a.cfg.ModelName)) {
		return
	}

	decideCtx, cancel := context.WithTimeout(ctx, a.cfg.AnalyzeTimeoutDuration())
	decision, err := a.model.Decide(decideCtx, system, user)
	cancel()
	if err != nil {
		a.log.Error().Err(err).Str("symbol", symbol).Msg("decision invocation failed")
		emit(fmt.Sprintf("❌ Decision process failed: %v\n", err))
		return
	}

	if decision.Kind == models.DecisionUnstructured {
		// Contract deviation: surface the text, never mutate the ledger.
		a.log.Warn().Str("symbol", symbol).Msg("unstructured decision, ledger untouched")
		if decision.Text != "" {
			emit(decision.Text + "\n")
		} else {
			emit("The decision process returned no decision and no content.\n")
		}
		return
	}

	if !emit(decisionBanner(decision)) {
		return
	}

	result := a.exec.Execute(symbol, tradingDay, decision, lastClose)
	if !emit(fmt.Sprintf("> ✅ **Execution**: %s\n\n", result.Message)) {
		return
	}

	if result.OK {
		updated := position.Summarize(symbol, a.repo.GetOrCreate(symbol), lastClose)
		if replay {
			updated = position.Summarize(symbol, position.TruncateHistory(a.repo.GetOrCreate(symbol), simulatedDate), lastClose)
		}
		if !emit(fmt.Sprintf("> 📊 **Position**: %d/100 units in use, total P&L %.2f\n\n",
			updated.UsedUnits, updated.TotalPnL)) {
			return
		}
	}

	if !emit("> 📝 **Generating analysis report**...\n\n") {
		return
	}

	reportCtx, cancelReport := context.WithTimeout(ctx, a.cfg.AnalyzeTimeoutDuration())
	defer cancelReport()
	err = a.model.StreamReport(reportCtx, system, user, decision, result.Message, func(chunk string) {
		emit(chunk)
	})
	if err != nil {
		a.log.Error().Err(err).Str("symbol", symbol).Msg("report stream failed")
		emit(fmt.Sprintf("\n❌ Report generation failed: %v\n", err))
	}
}

func decisionBanner(decision *models.Decision) string {
	if decision.Kind == models.DecisionExecuteTrade {
		return fmt.Sprintf("> ⚙️ **Tool call**: `execute_trade(action='%s', units=%d)`\n\n",
			decision.Action, decision.Units)
	}
	return fmt.Sprintf("> ⚙️ **Tool call**: `no_action(reason='%s')`\n\n", decision.Reason)
}

// truncateRows drops indicator rows after the cutoff date.
func truncateRows(rows []models.IndicatorRow, cutoff string) []models.IndicatorRow {
	kept := make([]models.IndicatorRow, 0, len(rows))
	for _, row := range rows {
		if row.Date <= cutoff {
			kept = append(kept, row)
		}
	}
	return kept
}
