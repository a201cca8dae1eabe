package models

// DecisionKind tags the three possible outcomes of a model invocation. The
// advisory contract forces a choice between ExecuteTrade and NoAction, but a
// model that answers in free text is routed through Unstructured rather than
// being treated as either of the structured shapes.
type DecisionKind string

const (
	DecisionExecuteTrade DecisionKind = "execute_trade"
	DecisionNoAction     DecisionKind = "no_action"
	DecisionUnstructured DecisionKind = "unstructured"
)

// TradeAction is the direction of an execute_trade decision.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// Decision is the tagged result of one model invocation.
//
// Kind == DecisionExecuteTrade: Action, Units and Conclusion are set.
// Kind == DecisionNoAction: Reason is set.
// Kind == DecisionUnstructured: Text carries the raw reply verbatim.
type Decision struct {
	Kind       DecisionKind `json:"kind"`
	Action     TradeAction  `json:"action,omitempty"`
	Units      int          `json:"units,omitempty"`
	Conclusion string       `json:"conclusion,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Text       string       `json:"text,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

// ExecuteTradeArgs mirrors the JSON arguments of the execute_trade tool.
type ExecuteTradeArgs struct {
	Action     string  `json:"action"`
	Units      float64 `json:"units"`
	Conclusion string  `json:"conclusion"`
}

// NoActionArgs mirrors the JSON arguments of the no_action tool.
type NoActionArgs struct {
	Reason string `json:"reason"`
}
