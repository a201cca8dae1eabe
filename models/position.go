package models

// DateLayout is the calendar-day key used for trade records and market bars.
// Lexicographic order of these strings matches chronological order, which the
// ledger's stable sort relies on.
const DateLayout = "2006-01-02"

// TotalUnits is the fixed denomination of a position: every budget is divided
// into 100 tradable units.
const TotalUnits = 100

// TradeRecord is a single ledger entry for a symbol. Units are signed:
// positive = buy, negative = sell, zero = explicit no-action.
type TradeRecord struct {
	Date       string  `json:"date"`
	Units      int     `json:"units"`
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	Conclusion string  `json:"conclusion,omitempty"`
}

// Position is the stored state for one symbol: its budget configuration and
// the ordered trade history. Average cost and running units are never stored;
// they are derived by replaying History.
type Position struct {
	TotalBudget float64       `json:"total_budget"`
	TotalUnits  int           `json:"total_units"`
	History     []TradeRecord `json:"history"`
}

// NewPosition returns the default position for a symbol that has no stored
// state yet.
func NewPosition() *Position {
	return &Position{
		TotalBudget: 0,
		TotalUnits:  TotalUnits,
		History:     []TradeRecord{},
	}
}

// UnitAmount is the monetary value of one unit, derived from the budget.
func (p *Position) UnitAmount() float64 {
	if p.TotalBudget <= 0 {
		return 0
	}
	return p.TotalBudget / float64(p.TotalUnits)
}

// Clone returns a deep copy so callers can hand positions across goroutines
// without sharing the history slice.
func (p *Position) Clone() *Position {
	cp := *p
	cp.History = make([]TradeRecord, len(p.History))
	copy(cp.History, p.History)
	return &cp
}

// AnnotatedRecord is a trade record augmented with the derived amount and the
// realized P&L attributed to it during replay. PnL is meaningful only for
// sell records.
type AnnotatedRecord struct {
	TradeRecord
	Amount float64 `json:"amount"`
	PnL    float64 `json:"pnl"`
}

// Summary is the point-in-time view of a position produced by replaying its
// history, optionally marked to a supplied current price.
type Summary struct {
	Symbol               string            `json:"symbol"`
	TotalBudget          float64           `json:"total_budget"`
	UsedUnits            int               `json:"used_units"`
	RemainingUnits       int               `json:"remaining_units"`
	AvgCostPrice         float64           `json:"avg_cost_price"`
	CurrentHoldingsValue float64           `json:"current_holdings_value"`
	TotalRealizedPnL     float64           `json:"total_realized_pnl"`
	UnrealizedPnL        float64           `json:"unrealized_pnl"`
	UnrealizedPnLPct     float64           `json:"unrealized_pnl_pct"`
	TotalPnL             float64           `json:"total_pnl"`
	History              []AnnotatedRecord `json:"history"`
}
