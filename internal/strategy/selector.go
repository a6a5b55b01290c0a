package strategy

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
)

// degradedConfidence is attached when selection falls back to the
// default strategy after a model failure.
const degradedConfidence = 0.3

const selectorSystemPrompt = `You are the strategy selector on an autonomous trading desk. The research debate has already settled the trade direction; your job is to pick the playbook that executes it.

Your responsibilities:
1. Pick exactly one strategy id from the registry below. The id must match verbatim.
2. Match each strategy's market hypothesis against the regime and the deterministic signals. A strategy already signaling in the verdict's direction fits better than one fighting the tape.
3. When no hypothesis clearly fits, pick default_timing instead of forcing a specialist strategy.
4. Suggest a sizing fraction only when conditions argue for deviating from the desk's equal-weight default.

Reply with strict JSON only:
{"strategy_id": "one registry id", "rationale": "one paragraph", "confidence": 0.0 to 1.0, "sizing": 0.0 to 1.0 or omit, "alternatives": ["other plausible ids"]}`

type selectorReply struct {
	StrategyID   string   `json:"strategy_id"`
	Rationale    string   `json:"rationale"`
	Confidence   float64  `json:"confidence"`
	Sizing       float64  `json:"sizing"`
	Alternatives []string `json:"alternatives"`
}

// Selector picks a strategy from the closed registry for a settled
// trade direction. It degrades instead of failing: a model error or an
// unrecognized id lands on the default strategy, never on the caller.
type Selector struct {
	client *llm.Client
}

// NewSelector builds a selector. A nil client is valid: selection then
// runs on signal agreement with the verdict, no model involved.
func NewSelector(client *llm.Client) *Selector {
	return &Selector{client: client}
}

// Select maps a research verdict and the symbol's recent candles to a
// strategy selection. A nil, abstained, or HOLD verdict selects
// nothing: there is no direction to execute.
func (s *Selector) Select(ctx context.Context, fc *models.FusionContext, verdict *models.Verdict, candles []*models.Candle) *models.StrategySelection {
	if verdict == nil || verdict.Abstained || verdict.Decision == models.DecisionHold {
		return nil
	}
	holding := holdingIn(fc)
	if s.client == nil {
		return pickBySignal(verdict, candles, holding)
	}

	messages := []*schema.Message{
		schema.SystemMessage(selectorSystemPrompt),
		schema.UserMessage(selectorInput(fc, verdict, candles, holding)),
	}
	raw, err := s.client.Generate(ctx, messages)
	if err != nil {
		log.Printf("[Strategy] selection model failed for %s: %v", fc.Symbol, err)
		return degradedSelection(fmt.Sprintf("selection model unavailable, fell back to %s", DefaultTiming))
	}

	var reply selectorReply
	if err := llm.DecodeJSON(raw, &reply); err != nil {
		log.Printf("[Strategy] selection reply unparseable for %s: %v", fc.Symbol, err)
		return degradedSelection(fmt.Sprintf("selection reply unparseable, fell back to %s", DefaultTiming))
	}

	id := strings.ToLower(strings.TrimSpace(reply.StrategyID))
	entry, ok := Lookup(id)
	degraded := false
	rationale := strings.TrimSpace(reply.Rationale)
	if !ok {
		log.Printf("[Strategy] unknown strategy %q downgraded to %s for %s", reply.StrategyID, DefaultTiming, fc.Symbol)
		entry = Default()
		id = entry.ID
		degraded = true
		rationale = strings.TrimSpace(rationale + fmt.Sprintf(" (downgraded: %q is not a registered strategy)", reply.StrategyID))
	}

	sel := &models.StrategySelection{
		StrategyID:       id,
		Rationale:        rationale,
		ExpectedBehavior: entry.Behavior,
		Confidence:       clampUnit(reply.Confidence),
		Sizing:           clampUnit(reply.Sizing),
		Alternatives:     knownAlternatives(reply.Alternatives, id),
		Degraded:         degraded,
	}
	log.Printf("[Strategy] %s selected %s (confidence=%.2f degraded=%v)", fc.Symbol, sel.StrategyID, sel.Confidence, sel.Degraded)
	return sel
}

// pickBySignal is the no-model path: among strategies whose current
// signal agrees with the verdict direction, take the most confident.
func pickBySignal(verdict *models.Verdict, candles []*models.Candle, holding bool) *models.StrategySelection {
	var best *Strategy
	var bestSignal Signal
	for _, id := range orderedIDs {
		entry := registry[id]
		sig := entry.Evaluate(candles, holding)
		if sig.Decision != verdict.Decision {
			continue
		}
		if best == nil || sig.Confidence > bestSignal.Confidence {
			best, bestSignal = entry, sig
		}
	}
	if best == nil {
		entry := Default()
		return &models.StrategySelection{
			StrategyID:       entry.ID,
			Rationale:        fmt.Sprintf("no strategy signals %s right now, staying with %s", verdict.Decision, entry.ID),
			ExpectedBehavior: entry.Behavior,
			Confidence:       degradedConfidence,
		}
	}
	return &models.StrategySelection{
		StrategyID:       best.ID,
		Rationale:        bestSignal.Reason,
		ExpectedBehavior: best.Behavior,
		Confidence:       bestSignal.Confidence,
	}
}

func degradedSelection(reason string) *models.StrategySelection {
	entry := Default()
	return &models.StrategySelection{
		StrategyID:       entry.ID,
		Rationale:        reason,
		ExpectedBehavior: entry.Behavior,
		Confidence:       degradedConfidence,
		Degraded:         true,
	}
}

// selectorInput assembles the user message: verdict, regime, holding
// state, the registry catalog, and every strategy's current signal.
func selectorInput(fc *models.FusionContext, verdict *models.Verdict, candles []*models.Candle, holding bool) string {
	regime, vol := Classify(candles)

	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\nDate: %s\n", fc.Symbol, fc.TradeDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Research verdict: %s (confidence %.2f)\n", verdict.Decision, verdict.Confidence)
	if verdict.Rationale != "" {
		fmt.Fprintf(&b, "Verdict rationale: %s\n", verdict.Rationale)
	}
	fmt.Fprintf(&b, "Regime: %s (annualized volatility %.2f)\n", regime, vol)
	fmt.Fprintf(&b, "Already holding %s: %v\n", fc.Symbol, holding)

	b.WriteString("\n## Registry\n")
	b.WriteString(catalog())

	b.WriteString("\n## Deterministic signals\n")
	for _, id := range orderedIDs {
		sig := registry[id].Evaluate(candles, holding)
		fmt.Fprintf(&b, "- %s: %s (%.2f) %s\n", id, sig.Decision, sig.Confidence, sig.Reason)
	}
	return b.String()
}

// holdingIn reports whether the book already carries the context's
// symbol.
func holdingIn(fc *models.FusionContext) bool {
	if fc == nil || fc.Portfolio == nil {
		return false
	}
	for _, p := range fc.Portfolio.Positions {
		if p.Symbol == fc.Symbol && p.Quantity > 0 {
			return true
		}
	}
	return false
}

// knownAlternatives keeps only registered ids, dropping the selected
// one and duplicates.
func knownAlternatives(ids []string, selected string) []string {
	var out []string
	seen := map[string]bool{selected: true}
	for _, raw := range ids {
		id := strings.ToLower(strings.TrimSpace(raw))
		if seen[id] {
			continue
		}
		if _, ok := Lookup(id); !ok {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
