// Package agents wraps the LLM behind the advisory workflow. All eino types
// stay inside this package; the rest of the repo talks to it through plain
// decisions and string chunks.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/models"
)

const (
	toolExecuteTrade = "execute_trade"
	toolNoAction     = "no_action"
)

// Client invokes the configured chat model with the forced-choice trading
// contract.
type Client struct {
	model model.ToolCallingChatModel
	log   zerolog.Logger
}

// NewClient builds the chat model for the configured provider.
func NewClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Client, error) {
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)

	switch cfg.LLMProvider {
	case "deepseek":
		chatModel, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.ModelName,
			MaxTokens: cfg.MaxTokens,
		})
	default:
		maxTokens := cfg.MaxTokens
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.ModelName,
			MaxTokens: &maxTokens,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &Client{
		model: chatModel,
		log:   log.With().Str("component", "agents").Logger(),
	}, nil
}

// decisionTools is the forced-choice contract: the model must call exactly
// one of these two tools.
func decisionTools() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: toolExecuteTrade,
			Desc: "Execute a trade against the position, buying or selling a number of budget units",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"action": {
					Type:     "string",
					Desc:     "The trade direction",
					Enum:     []string{"buy", "sell"},
					Required: true,
				},
				"units": {
					Type:     "number",
					Desc:     "How many budget units to trade, between 1 and 100",
					Required: true,
				},
				"conclusion": {
					Type:     "string",
					Desc:     "One or two sentences explaining the trade",
					Required: true,
				},
			}),
		},
		{
			Name: toolNoAction,
			Desc: "Explicitly decide not to trade today",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"reason": {
					Type:     "string",
					Desc:     "Why no trade is warranted",
					Required: true,
				},
			}),
		},
	}
}

// Decide runs one forced-choice invocation and maps the reply onto the
// decision variant. A reply that calls neither tool comes back as an
// unstructured decision carrying the raw text; that deviation is the
// caller's to handle, not an error.
func (c *Client) Decide(ctx context.Context, systemPrompt, userPrompt string) (*models.Decision, error) {
	toolModel, err := c.model.WithTools(decisionTools())
	if err != nil {
		return nil, fmt.Errorf("bind decision tools: %w", err)
	}

	msg, err := toolModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return nil, fmt.Errorf("model invocation: %w", err)
	}

	if len(msg.ToolCalls) == 0 {
		c.log.Warn().Msg("model ignored the forced-choice contract, returning raw text")
		return &models.Decision{
			Kind: models.DecisionUnstructured,
			Text: msg.Content,
		}, nil
	}

	call := msg.ToolCalls[0]
	switch call.Function.Name {
	case toolExecuteTrade:
		var args models.ExecuteTradeArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("parse execute_trade arguments: %w", err)
		}
		return &models.Decision{
			Kind:       models.DecisionExecuteTrade,
			Action:     models.TradeAction(args.Action),
			Units:      int(math.Round(args.Units)),
			Conclusion: args.Conclusion,
			ToolCallID: call.ID,
		}, nil

	case toolNoAction:
		var args models.NoActionArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("parse no_action arguments: %w", err)
		}
		return &models.Decision{
			Kind:       models.DecisionNoAction,
			Reason:     args.Reason,
			ToolCallID: call.ID,
		}, nil

	default:
		c.log.Warn().Str("tool", call.Function.Name).Msg("model called an unknown tool")
		return &models.Decision{
			Kind: models.DecisionUnstructured,
			Text: call.Function.Arguments,
		}, nil
	}
}

// StreamReport streams the narrative report for an executed decision,
// invoking emit once per content chunk. The conversation replays the
// decision turn with its tool result so the model narrates what actually
// happened.
func (c *Client) StreamReport(ctx context.Context, systemPrompt, userPrompt string, decision *models.Decision, executionResult string, emit func(chunk string)) error {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}
	if decision != nil && decision.ToolCallID != "" {
		messages = append(messages,
			assistantToolCallMessage(decision),
			schema.ToolMessage(executionResult, decision.ToolCallID),
			schema.UserMessage("Write a short report for the user describing the decision you just made and why."),
		)
	}

	reader, err := c.model.Stream(ctx, messages)
	if err != nil {
		return fmt.Errorf("model stream: %w", err)
	}
	defer reader.Close()

	for {
		msg, err := reader.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("model stream: %w", err)
		}
		if msg.Content != "" {
			emit(msg.Content)
		}
	}
}

// assistantToolCallMessage rebuilds the assistant turn that carried the tool
// call, so the follow-up report request has a coherent conversation.
func assistantToolCallMessage(decision *models.Decision) *schema.Message {
	var name string
	var args interface{}
	switch decision.Kind {
	case models.DecisionExecuteTrade:
		name = toolExecuteTrade
		args = models.ExecuteTradeArgs{
			Action:     string(decision.Action),
			Units:      float64(decision.Units),
			Conclusion: decision.Conclusion,
		}
	default:
		name = toolNoAction
		args = models.NoActionArgs{Reason: decision.Reason}
	}
	raw, _ := json.Marshal(args)

	return schema.AssistantMessage("", []schema.ToolCall{
		{
			ID: decision.ToolCallID,
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: string(raw),
			},
		},
	})
}
