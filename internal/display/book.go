package display

import (
	"fmt"
	"strings"

	"github.com/dyike/tradecycle/internal/models"
)

// DisplayPortfolio shows the end-of-day book: cash, positions and the
// running return figures.
func DisplayPortfolio(snap *models.PortfolioSnapshot) {
	fmt.Println()
	fmt.Printf("💰 PORTFOLIO %s\n", snap.Date.Format(dateLayout))
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	fmt.Printf("   💵 Cash:            %14s\n", snap.Cash.StringFixed(2))
	fmt.Printf("   📦 Positions value: %14s\n", snap.PositionsValue.StringFixed(2))
	fmt.Printf("   💼 Total value:     %14s\n", snap.TotalValue.StringFixed(2))
	fmt.Printf("   📈 Daily return:    %+13.2f%%\n", snap.DailyReturn*100)
	fmt.Printf("   📉 Drawdown:        %13.2f%% (max %.2f%%)\n", snap.Drawdown*100, snap.MaxDrawdown*100)

	if len(snap.Positions) == 0 {
		fmt.Println("   (no open positions)")
		fmt.Println()
		return
	}
	fmt.Println()
	fmt.Printf("   %-8s %10s %12s %12s %14s\n", "SYMBOL", "QTY", "AVG COST", "LAST", "VALUE")
	for _, pos := range snap.Positions {
		fmt.Println("   " + positionRow(pos))
	}
	fmt.Println()
}

// DisplayOrders shows one line per order, newest last.
func DisplayOrders(orders []*models.Order) {
	fmt.Println()
	fmt.Println("💼 ORDERS")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	if len(orders) == 0 {
		fmt.Println("   (no orders recorded)")
		fmt.Println()
		return
	}
	for _, o := range orders {
		fmt.Println("   " + orderLine(o))
	}
	fmt.Println()
}

// DisplayTradingHistory shows the per-symbol daily records.
func DisplayTradingHistory(summaries []*models.DailyTradingSummary) {
	fmt.Println()
	fmt.Println("📅 TRADING HISTORY")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	if len(summaries) == 0 {
		fmt.Println("   (no trading days recorded)")
		fmt.Println()
		return
	}
	for _, s := range summaries {
		fmt.Println("   " + summaryLine(s))
	}
	fmt.Println()
}

// DisplayReflections shows the lessons the desk has drawn so far.
func DisplayReflections(notes []*models.ReflectionNote) {
	fmt.Println()
	fmt.Println("🧠 REFLECTIONS")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	if len(notes) == 0 {
		fmt.Println("   (no reflections recorded)")
		fmt.Println()
		return
	}
	for _, n := range notes {
		fmt.Printf("   %s %s %s (%s):\n", outcomeEmoji(n.Outcome), n.TradeDate.Format(dateLayout), n.Symbol, n.Outcome)
		displayWrappedText(n.Lesson, "      ")
	}
	fmt.Println()
}

// positionRow formats one holding for the portfolio table.
func positionRow(pos models.Position) string {
	return fmt.Sprintf("%-8s %10d %12s %12s %14s",
		pos.Symbol, pos.Quantity, pos.AvgCost.StringFixed(2),
		pos.LastPrice.StringFixed(2), pos.MarketValue().StringFixed(2))
}

// orderLine formats one order's lifecycle on a single line.
func orderLine(o *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %d %s decided %s",
		decisionEmoji(models.Decision(o.Side)), o.Side, o.Quantity, o.Symbol,
		o.DecideDate.Format(dateLayout))

	switch o.Status {
	case models.OrderFilled:
		fmt.Fprintf(&b, ", filled @ %s on %s", o.FillPrice.StringFixed(2), o.FillDate.Format(dateLayout))
	default:
		fmt.Fprintf(&b, ", %s", strings.ToLower(string(o.Status)))
		if o.Reason != "" {
			fmt.Fprintf(&b, " (%s)", o.Reason)
		}
	}
	if o.StrategyID != "" {
		fmt.Fprintf(&b, " [%s]", o.StrategyID)
	}
	return b.String()
}

// summaryLine formats one daily record on a single line.
func summaryLine(s *models.DailyTradingSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s", s.Date.Format(dateLayout), s.Symbol, decisionEmoji(s.Decision), s.Decision)

	if s.StrategyID != "" {
		fmt.Fprintf(&b, " [%s]", s.StrategyID)
	}
	switch {
	case s.OrderStatus == models.OrderFilled:
		fmt.Fprintf(&b, " filled %d @ %s", s.Quantity, s.FillPrice.StringFixed(2))
	case s.OrderStatus != "":
		fmt.Fprintf(&b, " order %s", strings.ToLower(string(s.OrderStatus)))
	}
	fmt.Fprintf(&b, ", total %s (%+.2f%%)", s.TotalValue.StringFixed(2), s.DailyReturn*100)
	if s.Status != models.SummaryCompleted {
		fmt.Fprintf(&b, " %s", s.Status)
		if s.ReasonCode != "" {
			fmt.Fprintf(&b, ":%s", s.ReasonCode)
		}
	}
	return b.String()
}

func outcomeEmoji(outcome string) string {
	switch outcome {
	case models.OutcomeWin:
		return "🏆"
	case models.OutcomeLoss:
		return "📉"
	default:
		return "➖"
	}
}
