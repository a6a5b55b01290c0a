package models

import (
	"strings"
	"time"
)

// Decision is the action a debate verdict settles on.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// ParseDecision normalizes a raw decision string. Anything it does
// not recognize comes back as HOLD with ok=false so a malformed
// judge reply can never produce a trade.
func ParseDecision(raw string) (Decision, bool) {
	switch Decision(strings.ToUpper(strings.TrimSpace(raw))) {
	case DecisionBuy:
		return DecisionBuy, true
	case DecisionSell:
		return DecisionSell, true
	case DecisionHold:
		return DecisionHold, true
	default:
		return DecisionHold, false
	}
}

// Verdict is the single outcome of a debate. Every debate ends with
// exactly one verdict, abstained or not.
type Verdict struct {
	Decision   Decision `json:"decision"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
	Abstained  bool     `json:"abstained"`
}

// DebateTurn is one speaker's contribution in one round.
type DebateTurn struct {
	Role      string    `json:"role"`
	Round     int       `json:"round"`
	Content   string    `json:"content"`
	Abstained bool      `json:"abstained"`
	CreatedAt time.Time `json:"created_at"`
}

// DebateTranscript captures a full debate for display and storage.
type DebateTranscript struct {
	Name    string       `json:"name"`
	Rounds  int          `json:"rounds"`
	Turns   []DebateTurn `json:"turns"`
	Verdict *Verdict     `json:"verdict"`
}

// StrategySelection is the pre-trade choice of a strategy from the
// closed registry, with an optional position sizing override.
type StrategySelection struct {
	StrategyID       string   `json:"strategy_id"`
	Rationale        string   `json:"rationale"`
	ExpectedBehavior string   `json:"expected_behavior,omitempty"`
	Confidence       float64  `json:"confidence"`
	Sizing           float64  `json:"sizing"`
	Alternatives     []string `json:"alternatives,omitempty"`
	Degraded         bool     `json:"degraded"`
}
