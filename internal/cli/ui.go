package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/easyfolio/easyfolio/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(1, 2).
			Width(64)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(22)

	gainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))
)

// DisplayWelcomeBanner shows the welcome banner.
func DisplayWelcomeBanner() {
	banner := `
 ███████╗ █████╗ ███████╗██╗   ██╗███████╗ ██████╗ ██╗     ██╗ ██████╗
 ██╔════╝██╔══██╗██╔════╝╚██╗ ██╔╝██╔════╝██╔═══██╗██║     ██║██╔═══██╗
 █████╗  ███████║███████╗ ╚████╔╝ █████╗  ██║   ██║██║     ██║██║   ██║
 ██╔══╝  ██╔══██║╚════██║  ╚██╔╝  ██╔══╝  ██║   ██║██║     ██║██║   ██║
 ███████╗██║  ██║███████║   ██║   ██║     ╚██████╔╝███████╗██║╚██████╔╝
 ╚══════╝╚═╝  ╚═╝╚══════╝   ╚═╝   ╚═╝      ╚═════╝ ╚══════╝╚═╝ ╚═════╝

          📈 Percentage-of-budget position tracking & advisory 📈
`
	welcomeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	fmt.Print(welcomeStyle.Render(banner))
	fmt.Println()
}

// DisplaySummary renders a position summary panel.
func DisplaySummary(sum *models.Summary) {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("📊 %s", sum.Symbol)) + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	pnl := func(v float64) string {
		s := fmt.Sprintf("%+.2f", v)
		if v < 0 {
			return lossStyle.Render(s)
		}
		return gainStyle.Render(s)
	}

	row("Total budget", fmt.Sprintf("%.2f", sum.TotalBudget))
	row("Units in use", fmt.Sprintf("%d/%d", sum.UsedUnits, sum.UsedUnits+sum.RemainingUnits))
	row("Avg cost price", fmt.Sprintf("%.4f", sum.AvgCostPrice))
	row("Holdings value", fmt.Sprintf("%.2f", sum.CurrentHoldingsValue))
	row("Realized P&L", pnl(sum.TotalRealizedPnL))
	row("Unrealized P&L", fmt.Sprintf("%s (%s%%)", pnl(sum.UnrealizedPnL), fmt.Sprintf("%+.2f", sum.UnrealizedPnLPct*100)))
	row("Total P&L", pnl(sum.TotalPnL))

	if len(sum.History) > 0 {
		b.WriteString("\n" + titleStyle.Render("📒 History") + "\n")
		for i, rec := range sum.History {
			line := fmt.Sprintf("%2d. %s  %+4d units @ %.2f", i, rec.Date, rec.Units, rec.Price)
			if rec.Units < 0 {
				line += fmt.Sprintf("  pnl %s", pnl(rec.PnL))
			}
			if rec.Conclusion != "" {
				line += "  | " + truncateString(rec.Conclusion, 40)
			}
			b.WriteString(line + "\n")
		}
	}

	fmt.Println(summaryStyle.Render(b.String()))
}

// DisplayError shows an error message.
func DisplayError(err error) {
	fmt.Println(errorStyle.Render(fmt.Sprintf("❌ Error: %s", err.Error())))
}

// DisplayInfo shows an info message.
func DisplayInfo(message string) {
	fmt.Println(infoStyle.Render(fmt.Sprintf("ℹ️  %s", message)))
}

// DisplaySuccess shows a success message.
func DisplaySuccess(message string) {
	fmt.Println(successStyle.Render(fmt.Sprintf("✅ %s", message)))
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
