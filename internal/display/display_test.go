package display

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/session"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return d
}

func TestWrapLinesRespectsWidth(t *testing.T) {
	text := strings.Repeat("signal ", 40)
	lines := wrapLines(text, "   ")
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %d lines", len(lines))
	}
	for i, line := range lines {
		if len(line) > 75 {
			t.Errorf("line %d exceeds 75 columns: %d", i, len(line))
		}
		if !strings.HasPrefix(line, "   ") {
			t.Errorf("line %d lost its indent: %q", i, line)
		}
	}
}

func TestWrapLinesEmptyText(t *testing.T) {
	if lines := wrapLines("   ", "  "); lines != nil {
		t.Fatalf("expected no lines for blank text, got %v", lines)
	}
}

func TestOrderLineFilled(t *testing.T) {
	o := &models.Order{
		Symbol:     "CYQ",
		Side:       models.SideBuy,
		Quantity:   120,
		DecideDate: day(t, "2025-01-09"),
		FillDate:   day(t, "2025-01-10"),
		FillPrice:  decimal.NewFromFloat(12.5),
		Status:     models.OrderFilled,
		StrategyID: "momentum_breakout",
	}
	line := orderLine(o)
	for _, want := range []string{"BUY 120 CYQ", "decided 2025-01-09", "filled @ 12.50 on 2025-01-10", "[momentum_breakout]"} {
		if !strings.Contains(line, want) {
			t.Errorf("order line missing %q: %s", want, line)
		}
	}
}

func TestOrderLineRejectedCarriesReason(t *testing.T) {
	o := &models.Order{
		Symbol:     "CYQ",
		Side:       models.SideSell,
		Quantity:   50,
		DecideDate: day(t, "2025-01-09"),
		Status:     models.OrderRejected,
		Reason:     models.ReasonRiskRejected,
	}
	line := orderLine(o)
	if !strings.Contains(line, "rejected (risk_rejected)") {
		t.Fatalf("order line missing rejection reason: %s", line)
	}
}

func TestSummaryLineFilledDay(t *testing.T) {
	s := &models.DailyTradingSummary{
		Symbol:      "CYQ",
		Date:        day(t, "2025-01-09"),
		Decision:    models.DecisionBuy,
		StrategyID:  "momentum_breakout",
		OrderStatus: models.OrderFilled,
		Quantity:    120,
		FillPrice:   decimal.NewFromFloat(12.5),
		TotalValue:  decimal.NewFromInt(101200),
		DailyReturn: 0.012,
		Status:      models.SummaryCompleted,
	}
	line := summaryLine(s)
	for _, want := range []string{"2025-01-09 CYQ", "BUY", "filled 120 @ 12.50", "total 101200.00 (+1.20%)"} {
		if !strings.Contains(line, want) {
			t.Errorf("summary line missing %q: %s", want, line)
		}
	}
}

func TestSummaryLineSkippedDayShowsReason(t *testing.T) {
	s := &models.DailyTradingSummary{
		Symbol:     "CYQ",
		Date:       day(t, "2025-01-09"),
		Decision:   models.DecisionHold,
		TotalValue: decimal.NewFromInt(100000),
		Status:     models.SummarySkipped,
		ReasonCode: models.ReasonMissingNextOpen,
	}
	line := summaryLine(s)
	if !strings.Contains(line, "skipped:missing_next_open") {
		t.Fatalf("summary line missing skip reason: %s", line)
	}
}

func TestDecisionEmoji(t *testing.T) {
	tests := []struct {
		decision models.Decision
		want     string
	}{
		{models.DecisionBuy, "🟢"},
		{models.DecisionSell, "🔴"},
		{models.DecisionHold, "🟡"},
		{models.Decision(""), "⏳"},
	}
	for _, tt := range tests {
		if got := decisionEmoji(tt.decision); got != tt.want {
			t.Errorf("decisionEmoji(%q) = %s, want %s", tt.decision, got, tt.want)
		}
	}
}

func TestStageEmoji(t *testing.T) {
	if got := stageEmoji(session.StageSuccess); got != "✅" {
		t.Errorf("success emoji = %s", got)
	}
	if got := stageEmoji(session.StageSkip); got != "⏭️" {
		t.Errorf("skip emoji = %s", got)
	}
	if got := stageEmoji(session.StageError); got != "❌" {
		t.Errorf("error emoji = %s", got)
	}
}

func TestPositionRowAlignsValue(t *testing.T) {
	pos := models.Position{
		Symbol:    "CYQ",
		Quantity:  120,
		AvgCost:   decimal.NewFromFloat(12.5),
		LastPrice: decimal.NewFromFloat(13.0),
	}
	row := positionRow(pos)
	if !strings.Contains(row, "1560.00") {
		t.Fatalf("position row missing market value: %s", row)
	}
}
