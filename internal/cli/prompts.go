package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.^-]+$`)

// PromptForSymbol prompts the user to enter a symbol.
func PromptForSymbol() (string, error) {
	var symbol string
	prompt := &survey.Input{
		Message: "Enter the symbol (e.g., AAPL, BTC-USD):",
		Help:    "Stock tickers and crypto pairs like BTC-USD are supported",
	}

	err := survey.AskOne(prompt, &symbol, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if str == "" {
			return fmt.Errorf("symbol cannot be empty")
		}
		if len(str) > 12 {
			return fmt.Errorf("symbol too long (max 12 characters)")
		}
		if !symbolPattern.MatchString(str) {
			return fmt.Errorf("invalid symbol format")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.ToUpper(symbol)), nil
}

// PromptForSimulatedDate prompts for an optional replay date. Empty means
// live mode.
func PromptForSimulatedDate() (string, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Simulated date (YYYY-MM-DD, empty for live):",
		Help:    "A past date replays the advisory as of that trading day",
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return nil
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(dateStr), nil
}

// PromptForBudget prompts for a total budget amount.
func PromptForBudget() (float64, error) {
	var budgetStr string
	prompt := &survey.Input{
		Message: "Total budget for this symbol:",
		Help:    "The budget is divided into 100 tradable units",
	}

	err := survey.AskOne(prompt, &budgetStr, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("budget must be a number")
		}
		if v < 0 {
			return fmt.Errorf("budget must be non-negative")
		}
		return nil
	}))
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(strings.TrimSpace(budgetStr), 64)
}

// PromptForAction shows the interactive main menu.
func PromptForAction() (string, error) {
	var action string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{
			"Run advisory",
			"Show summary",
			"Set budget",
			"Clear history",
			"Quit",
		},
	}
	err := survey.AskOne(prompt, &action)
	return action, err
}

// PromptForConfirmation asks a yes/no question.
func PromptForConfirmation(message string) (bool, error) {
	confirmed := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}
