// Package display renders pipeline results on the terminal. It is
// plain fmt output: the interactive lipgloss styling lives in the cli
// package, this one stays pipe-friendly.
package display

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/session"
)

const dateLayout = "2006-01-02"

// SessionDisplay renders one symbol-day session in full.
type SessionDisplay struct {
	symbol string
	date   string
}

// NewSessionDisplay creates a display handler for one symbol-day.
func NewSessionDisplay(symbol string, date time.Time) *SessionDisplay {
	return &SessionDisplay{
		symbol: symbol,
		date:   date.Format(dateLayout),
	}
}

// DisplaySessionResult shows the full breakdown of one session: the
// stage trace, the analyst reports, both debates and whatever the day
// settled on.
func (d *SessionDisplay) DisplaySessionResult(res *session.SessionResult) {
	d.showHeader(res.Session)
	d.showStages(res.Stages)

	st := res.State
	if st == nil {
		fmt.Println("   (no session state recorded)")
		return
	}
	d.showReports(st.Reports)
	d.showFusion(st.Fusion)
	d.showResearchDebate(st.ResearchTranscript)
	d.showSelection(st.Selection)
	d.showRiskDebate(st.RiskTranscript, st.RiskAssessment)
	d.showOrder(st.Order)
	d.showSummary(st.Summary)
	d.showFooter()
}

func (d *SessionDisplay) showHeader(sess string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║   📊 %-12s %-12s %-46s ║\n", d.symbol, d.date, sess)
	fmt.Println("╚═══════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func (d *SessionDisplay) showStages(stages []session.StageTrace) {
	fmt.Println("🧭 STAGES")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	for _, tr := range stages {
		line := fmt.Sprintf("%s %s (%s)", stageEmoji(tr.Status), tr.Stage, tr.Elapsed.Round(time.Millisecond))
		if tr.Reason != "" {
			line += ": " + tr.Reason
		}
		fmt.Println("   " + line)
	}
	fmt.Println()
}

func (d *SessionDisplay) showReports(reports []*models.AnalystReport) {
	if len(reports) == 0 {
		return
	}
	fmt.Println("📈 ANALYST REPORTS")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	for _, rep := range reports {
		fmt.Printf("📝 %s (confidence %.2f):\n", rep.Analyst, rep.Confidence)
		displayWrappedText(rep.Content, "   ")
		fmt.Println()
	}
}

func (d *SessionDisplay) showFusion(fc *models.FusionContext) {
	if fc == nil {
		return
	}
	fmt.Println("🧩 FUSION CONTEXT")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	fmt.Printf("   Regime: %s (volatility %.2f, max positions %d)\n",
		fc.Regime.Regime, fc.Regime.Volatility, fc.Regime.MaxPositions)
	if len(fc.Missing) > 0 {
		fmt.Printf("   Missing sections: %s\n", strings.Join(fc.Missing, ", "))
	}
	if len(fc.Reflections) > 0 {
		fmt.Printf("   Lessons carried in: %d\n", len(fc.Reflections))
	}
	fmt.Println()
}

func (d *SessionDisplay) showResearchDebate(tr *models.DebateTranscript) {
	if tr == nil {
		return
	}
	fmt.Println("⚖️  RESEARCH DEBATE")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	d.showTurns(tr.Turns)
	d.showVerdict(tr.Verdict)
	fmt.Println()
}

func (d *SessionDisplay) showSelection(sel *models.StrategySelection) {
	if sel == nil {
		return
	}
	fmt.Println("🎯 STRATEGY")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	fmt.Printf("   Strategy: %s (confidence %.2f)\n", sel.StrategyID, sel.Confidence)
	if sel.Sizing > 0 {
		fmt.Printf("   Sizing override: %.2f\n", sel.Sizing)
	}
	if sel.Degraded {
		fmt.Println("   (selected without a model, by signal agreement)")
	}
	if sel.Rationale != "" {
		displayWrappedText(sel.Rationale, "   ")
	}
	fmt.Println()
}

func (d *SessionDisplay) showRiskDebate(tr *models.DebateTranscript, ra *models.RiskAssessment) {
	if tr == nil && ra == nil {
		return
	}
	fmt.Println("⚠️  RISK REVIEW")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	if tr != nil {
		d.showTurns(tr.Turns)
	}
	if ra != nil {
		ruling := "REJECTED"
		if ra.Approved {
			ruling = "APPROVED"
		}
		if ra.Abstained {
			ruling += " (abstained)"
		}
		fmt.Printf("👨‍⚖️ Risk ruling: %s (confidence %.2f)\n", ruling, ra.Confidence)
		if ra.Rationale != "" {
			displayWrappedText(ra.Rationale, "   ")
		}
	}
	fmt.Println()
}

func (d *SessionDisplay) showOrder(o *models.Order) {
	if o == nil {
		return
	}
	fmt.Println("💼 ORDER")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	fmt.Println("   " + orderLine(o))
	fmt.Println()
}

func (d *SessionDisplay) showSummary(s *models.DailyTradingSummary) {
	if s == nil {
		return
	}
	fmt.Println("📋 DAY RECORD")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	fmt.Println("   " + summaryLine(s))
	if s.Reflection != "" {
		fmt.Println("🧠 Lesson:")
		displayWrappedText(s.Reflection, "   ")
	}
	fmt.Println()
}

func (d *SessionDisplay) showFooter() {
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	fmt.Printf("🕐 Rendered at: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println("⚠️  Automated output for research use only, not financial advice.")
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	fmt.Println()
}

func (d *SessionDisplay) showTurns(turns []models.DebateTurn) {
	for _, turn := range turns {
		label := turn.Role
		if turn.Abstained {
			label += " (abstained)"
		}
		fmt.Printf("%s %s, round %d:\n", roleEmoji(turn.Role), label, turn.Round)
		displayWrappedText(turn.Content, "   ")
		fmt.Println()
	}
}

func (d *SessionDisplay) showVerdict(v *models.Verdict) {
	if v == nil {
		fmt.Println("   (no verdict recorded)")
		return
	}
	label := string(v.Decision)
	if v.Abstained {
		label += " (abstained)"
	}
	fmt.Printf("👨‍⚖️ Verdict: %s %s (confidence %.2f)\n", decisionEmoji(v.Decision), label, v.Confidence)
	if v.Rationale != "" {
		displayWrappedText(v.Rationale, "   ")
	}
}

// DisplayDayResults shows the compact one-line-per-session view of a
// whole trading day.
func DisplayDayResults(date time.Time, results []*session.SessionResult) {
	fmt.Println()
	fmt.Printf("📅 TRADING DAY %s\n", date.Format(dateLayout))
	fmt.Println("══════════════════════════════════════════════════════════════════════════")
	if len(results) == 0 {
		fmt.Println("   (no sessions ran; likely a weekend or holiday)")
		fmt.Println()
		return
	}
	for _, res := range results {
		line := fmt.Sprintf("%s %-12s %-8s %s", summaryStatusEmoji(res.Status), res.Session, res.Symbol, res.Status)
		if res.ReasonCode != "" {
			line += " (" + res.ReasonCode + ")"
		}
		fmt.Println("   " + line)
	}
	fmt.Println()
}

// SaveSessionToFile writes one session result as indented JSON.
func (d *SessionDisplay) SaveSessionToFile(res *session.SessionResult, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session result: %w", err)
	}
	return nil
}

// DisplayProgress shows batch progress as an in-place bar.
func DisplayProgress(phase string, progress, total int) {
	barWidth := 40
	filledWidth := (progress * barWidth) / total

	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", barWidth-filledWidth)
	percentage := (progress * 100) / total

	fmt.Printf("\r🔄 %s [%s] %d%% (%d/%d)", phase, bar, percentage, progress, total)

	if progress >= total {
		fmt.Println(" ✅")
	}
}

// DisplayError shows a formatted error message.
func DisplayError(err error, context string) {
	fmt.Printf("❌ Error in %s:\n", context)
	fmt.Printf("   %v\n", err)
}

// DisplayWarning shows a formatted warning message.
func DisplayWarning(message string) {
	fmt.Printf("⚠️  Warning: %s\n", message)
}

// DisplaySuccess shows a formatted success message.
func DisplaySuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// DisplayInfo shows a formatted info message.
func DisplayInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// displayWrappedText prints text word-wrapped under an indent.
func displayWrappedText(text, indent string) {
	for _, line := range wrapLines(text, indent) {
		fmt.Println(line)
	}
}

// wrapLines wraps text at 75 columns, indent included.
func wrapLines(text, indent string) []string {
	const maxWidth = 75
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var out []string
	line := indent + words[0]
	for i := 1; i < len(words); i++ {
		if len(line)+1+len(words[i]) > maxWidth {
			out = append(out, line)
			line = indent + words[i]
		} else {
			line += " " + words[i]
		}
	}
	return append(out, line)
}

func stageEmoji(status session.StageStatus) string {
	switch status {
	case session.StageSuccess:
		return "✅"
	case session.StageSkip:
		return "⏭️"
	default:
		return "❌"
	}
}

func summaryStatusEmoji(status string) string {
	switch status {
	case models.SummaryCompleted:
		return "✅"
	case models.SummaryHalted:
		return "🛑"
	default:
		return "⏭️"
	}
}

func decisionEmoji(decision models.Decision) string {
	switch decision {
	case models.DecisionBuy:
		return "🟢"
	case models.DecisionSell:
		return "🔴"
	case models.DecisionHold:
		return "🟡"
	default:
		return "⏳"
	}
}

func roleEmoji(role string) string {
	switch role {
	case "bull_researcher":
		return "🐂"
	case "bear_researcher":
		return "🐻"
	case "aggressive_analyst":
		return "🔥"
	case "conservative_analyst":
		return "🛡️"
	case "neutral_analyst":
		return "⚖️"
	default:
		return "🗣️"
	}
}
