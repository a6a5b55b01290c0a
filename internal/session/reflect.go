package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
)

const reflectorPrompt = `You are the cycle reflector on a trading desk, reviewing one symbol's closing trading cycle.

Your responsibilities:
1. Judge the cycle by its record: compounded return, drawdown, and whether the chosen strategies behaved as expected
2. Name the one decision pattern most worth repeating or most worth stopping
3. Keep the lesson to two sentences that would change how the next cycle trades
4. Reply with a JSON object: {"outcome": "win" | "loss" | "flat", "lesson": "..."}`

// flatReturnBand is the cycle return below which the outcome is
// called flat rather than win or loss.
const flatReturnBand = 0.001

// reflect closes a slow cycle: it reads the cycle's daily records,
// distills them into an outcome and a lesson, stores the lesson where
// future fusion contexts pick it up, and stamps it on the boundary
// day's summary row.
func (r *Router) reflect(ctx context.Context, symbol string, date time.Time) error {
	start := date.AddDate(0, 0, -(r.cfg.SlowCycleDays - 1))
	summaries, err := r.store.SummariesBetween(ctx, symbol, start, date)
	if err != nil {
		return fmt.Errorf("load cycle summaries: %w", err)
	}
	if len(summaries) == 0 {
		log.Printf("[Session] nothing to reflect on for %s between %s and %s",
			symbol, start.Format(dateLayout), date.Format(dateLayout))
		return nil
	}

	note := &models.ReflectionNote{Symbol: symbol, TradeDate: date}
	if r.client != nil {
		outcome, lesson, err := r.summarizeCycle(ctx, symbol, date, summaries)
		if err == nil {
			note.Outcome, note.Lesson = outcome, lesson
		} else {
			log.Printf("[Session] cycle reflector failed, using extractive fallback: %v", err)
		}
	}
	if note.Lesson == "" {
		note.Outcome, note.Lesson = extractiveReflection(summaries)
	}

	if err := r.memory.RecordReflection(ctx, note); err != nil {
		return fmt.Errorf("record reflection: %w", err)
	}

	boundary := summaries[len(summaries)-1]
	if sameDay(boundary.Date, date) {
		if err := r.store.SetSummaryReflection(ctx, boundary.ID, note.Lesson); err != nil {
			log.Printf("[Session] reflection not stamped on %s summary: %v", symbol, err)
		}
	}
	log.Printf("[Session] %s cycle through %s reflected as %s", symbol, date.Format(dateLayout), note.Outcome)
	return nil
}

// summarizeCycle asks the model for the outcome and lesson. Outcomes
// outside the known set are errors so the fallback takes over instead
// of poisoning the reflection store.
func (r *Router) summarizeCycle(ctx context.Context, symbol string, date time.Time, summaries []*models.DailyTradingSummary) (string, string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(reflectorPrompt),
		schema.UserMessage(fmt.Sprintf("Symbol: %s\nCycle ending: %s\n\n%s",
			symbol, date.Format(dateLayout), cycleLines(summaries))),
	}
	completion, err := r.client.Generate(ctx, messages)
	if err != nil {
		return "", "", err
	}

	var out struct {
		Outcome string `json:"outcome"`
		Lesson  string `json:"lesson"`
	}
	if err := llm.DecodeJSON(completion, &out); err != nil {
		return "", "", err
	}
	switch out.Outcome {
	case models.OutcomeWin, models.OutcomeLoss, models.OutcomeFlat:
	default:
		return "", "", fmt.Errorf("reflector returned outcome %q", out.Outcome)
	}
	if strings.TrimSpace(out.Lesson) == "" {
		return "", "", fmt.Errorf("reflector returned an empty lesson")
	}
	return out.Outcome, strings.TrimSpace(out.Lesson), nil
}

// cycleLines renders one line per trading day for the reflector.
func cycleLines(summaries []*models.DailyTradingSummary) string {
	var sb strings.Builder
	sb.WriteString("Daily records, oldest first:\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "[%s] regime=%s decision=%s strategy=%s status=%s return=%.2f%% drawdown=%.2f%%",
			s.Date.Format(dateLayout), s.MarketRegime, s.Decision, s.StrategyID, s.Status,
			s.DailyReturn*100, s.MaxDrawdown*100)
		if s.ExpectedBehavior != "" {
			fmt.Fprintf(&sb, " expected=%q", s.ExpectedBehavior)
		}
		if s.ReasonCode != "" {
			fmt.Fprintf(&sb, " reason=%s", s.ReasonCode)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// extractiveReflection is the no-LLM fallback: the outcome comes from
// the compounded cycle return, the lesson from the plain numbers.
func extractiveReflection(summaries []*models.DailyTradingSummary) (string, string) {
	compounded := 1.0
	wins, losses := 0, 0
	worst := 0.0
	strategyDays := make(map[string]int)
	for _, s := range summaries {
		compounded *= 1 + s.DailyReturn
		switch {
		case s.DailyReturn > 0:
			wins++
		case s.DailyReturn < 0:
			losses++
		}
		if s.StrategyID != "" {
			strategyDays[s.StrategyID]++
		}
		if s.MaxDrawdown > worst {
			worst = s.MaxDrawdown
		}
	}
	cycleReturn := compounded - 1

	outcome := models.OutcomeFlat
	switch {
	case cycleReturn > flatReturnBand:
		outcome = models.OutcomeWin
	case cycleReturn < -flatReturnBand:
		outcome = models.OutcomeLoss
	}

	lead, leadDays := "", 0
	for id, days := range strategyDays {
		if days > leadDays || (days == leadDays && id < lead) {
			lead, leadDays = id, days
		}
	}

	lesson := fmt.Sprintf("Cycle returned %.2f%% over %d days (%d up, %d down), max drawdown %.2f%%.",
		cycleReturn*100, len(summaries), wins, losses, worst*100)
	if lead != "" {
		lesson += fmt.Sprintf(" Leaned on %s for %d of those days.", lead, leadDays)
	}
	return outcome, lesson
}
