// Package gateway turns advisory decisions into persisted trade records. It
// is the single policy boundary between the decision process and the ledger:
// validation failures and store problems come back as result values, never as
// panics or errors that abort the caller.
package gateway

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/internal/ledger"
	"github.com/easyfolio/easyfolio/internal/position"
	"github.com/easyfolio/easyfolio/models"
)

// Result reports the outcome of one execution attempt. Message is the
// human-readable line the advisory narrative includes verbatim.
type Result struct {
	OK       bool                `json:"ok"`
	Message  string              `json:"message"`
	Record   *models.TradeRecord `json:"record,omitempty"`
	Position *models.Position    `json:"position,omitempty"`
}

// Gateway validates decisions and appends the resulting records.
type Gateway struct {
	repo ledger.Repository
	log  zerolog.Logger
}

func New(repo ledger.Repository, log zerolog.Logger) *Gateway {
	return &Gateway{
		repo: repo,
		log:  log.With().Str("component", "gateway").Logger(),
	}
}

// Execute maps a decision onto a signed trade record for the given trading
// day, priced at price, and appends it.
//
// Buys must fit the remaining capacity of the 100-unit denomination. Sells
// are bounds-checked against (0, 100] only; selling more than is currently
// held is allowed and absorbed by the accounting reset, so it is logged as a
// warning rather than rejected.
func (g *Gateway) Execute(symbol, date string, decision *models.Decision, price float64) Result {
	switch decision.Kind {
	case models.DecisionExecuteTrade:
		return g.executeTrade(symbol, date, decision, price)
	case models.DecisionNoAction:
		return g.recordNoAction(symbol, date, decision.Reason, price)
	default:
		return Result{OK: false, Message: "decision is unstructured, ledger not modified"}
	}
}

func (g *Gateway) executeTrade(symbol, date string, decision *models.Decision, price float64) Result {
	units := decision.Units
	if units <= 0 || units > models.TotalUnits {
		return Result{OK: false, Message: fmt.Sprintf("invalid units %d: must be in (0, %d]", units, models.TotalUnits)}
	}
	if price <= 0 {
		return Result{OK: false, Message: fmt.Sprintf("invalid price %.4f: must be positive", price)}
	}

	var signed int
	switch decision.Action {
	case models.ActionBuy:
		sum := position.Summarize(symbol, g.repo.GetOrCreate(symbol), 0)
		if units > sum.RemainingUnits {
			return Result{OK: false, Message: fmt.Sprintf(
				"buy of %d units exceeds remaining capacity %d", units, sum.RemainingUnits)}
		}
		signed = units
	case models.ActionSell:
		sum := position.Summarize(symbol, g.repo.GetOrCreate(symbol), 0)
		if units > sum.UsedUnits {
			g.log.Warn().Str("symbol", symbol).Int("units", units).Int("held", sum.UsedUnits).
				Msg("sell exceeds held units, position will fully reset")
		}
		signed = -units
	default:
		return Result{OK: false, Message: fmt.Sprintf("unknown action %q", decision.Action)}
	}

	rec := models.TradeRecord{
		Date:       date,
		Units:      signed,
		Price:      price,
		Conclusion: decision.Conclusion,
	}
	pos := g.repo.AppendRecord(symbol, rec)
	stored := pos.History[lastIndexOf(pos.History, rec)]

	g.log.Info().Str("symbol", symbol).Str("action", string(decision.Action)).
		Int("units", units).Float64("price", price).Str("date", date).Msg("trade recorded")

	return Result{
		OK: true,
		Message: fmt.Sprintf("%s %d units of %s at %.2f on %s",
			decision.Action, units, symbol, price, date),
		Record:   &stored,
		Position: pos,
	}
}

func (g *Gateway) recordNoAction(symbol, date, reason string, price float64) Result {
	rec := models.TradeRecord{
		Date:       date,
		Units:      0,
		Price:      price,
		Conclusion: reason,
	}
	pos := g.repo.AppendRecord(symbol, rec)
	stored := pos.History[lastIndexOf(pos.History, rec)]

	g.log.Info().Str("symbol", symbol).Str("date", date).Msg("no-action recorded")

	return Result{
		OK:       true,
		Message:  fmt.Sprintf("no action for %s on %s: %s", symbol, date, reason),
		Record:   &stored,
		Position: pos,
	}
}

// lastIndexOf finds the appended record after the store's date re-sort. Same
// date plus stable sort means the newest duplicate is the last match.
func lastIndexOf(history []models.TradeRecord, rec models.TradeRecord) int {
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		if h.Date == rec.Date && h.Units == rec.Units && h.Price == rec.Price && h.Conclusion == rec.Conclusion {
			return i
		}
	}
	return len(history) - 1
}
