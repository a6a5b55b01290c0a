package fusion

import (
	"fmt"
	"strings"

	"github.com/dyike/tradecycle/internal/models"
)

// RenderText flattens a fusion context into the prompt block the
// debate stages consume. Unavailable markers pass through untouched
// so the debaters see exactly which inputs are missing.
func RenderText(fc *models.FusionContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Symbol: %s\nDate: %s\nSession: %s\n",
		fc.Symbol, fc.TradeDate.Format("2006-01-02"), fc.Session)

	fmt.Fprintf(&sb, "Regime: %s (volatility %.2f", fc.Regime.Regime, fc.Regime.Volatility)
	if fc.Regime.MaxPositions > 0 {
		fmt.Fprintf(&sb, ", max positions %d", fc.Regime.MaxPositions)
	}
	sb.WriteString(")\n")

	sb.WriteString("\n## Portfolio\n")
	if fc.Portfolio == nil {
		sb.WriteString(models.Unavailable + "\n")
	} else {
		p := fc.Portfolio
		fmt.Fprintf(&sb, "Cash %s, positions %s, total %s, daily return %.2f%%, drawdown %.2f%% (max %.2f%%)\n",
			p.Cash.StringFixed(2), p.PositionsValue.StringFixed(2), p.TotalValue.StringFixed(2),
			p.DailyReturn*100, p.Drawdown*100, p.MaxDrawdown*100)
		for _, pos := range p.Positions {
			fmt.Fprintf(&sb, "- %s %d @ %s (last %s)\n",
				pos.Symbol, pos.Quantity, pos.AvgCost.StringFixed(2), pos.LastPrice.StringFixed(2))
		}
	}

	for _, sum := range fc.Summaries() {
		fmt.Fprintf(&sb, "\n## %s analyst\n", sum.Analyst)
		fmt.Fprintf(&sb, "Today: %s\n", sum.TodaySnapshot)
		fmt.Fprintf(&sb, "Prior digest: %s\n", sum.PreSessionDigest)
		if sum.PostSessionDigest != "" {
			fmt.Fprintf(&sb, "Closing digest: %s\n", sum.PostSessionDigest)
		}
	}

	if len(fc.Reflections) > 0 {
		sb.WriteString("\n## Lessons from past trades\n")
		for _, r := range fc.Reflections {
			sb.WriteString("- " + r + "\n")
		}
	}
	return sb.String()
}
