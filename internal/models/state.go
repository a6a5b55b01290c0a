package models

import "time"

// MemorySummary is one analyst's memory view for a session: today's
// snapshot plus the latest consolidated digests of its stream.
// Regenerated per session, never hand-edited.
type MemorySummary struct {
	Analyst           string `json:"analyst"`
	Symbol            string `json:"symbol"`
	TodaySnapshot     string `json:"today_snapshot"`
	PreSessionDigest  string `json:"pre_session_digest"`
	PostSessionDigest string `json:"post_session_digest,omitempty"`
}

// MarketRegime is the coarse market condition label attached to fusion
// contexts and daily summaries.
type MarketRegime string

const (
	RegimeBull     MarketRegime = "bull"
	RegimeBear     MarketRegime = "bear"
	RegimeSideways MarketRegime = "sideways"
	RegimeVolatile MarketRegime = "volatile"
	RegimeUnknown  MarketRegime = "unknown"
)

// RegimeConstraints is slow-changing market condition state consumed
// read-only by fusion and strategy selection.
type RegimeConstraints struct {
	Regime       MarketRegime `json:"regime"`
	Volatility   float64      `json:"volatility"`
	MaxPositions int          `json:"max_positions"`
}

// FusionContext is the merged view handed to the research debate. It
// is built on a best-effort basis: sections with no data carry the
// Unavailable marker instead of failing the pipeline.
type FusionContext struct {
	Symbol    string    `json:"symbol"`
	TradeDate time.Time `json:"trade_date"`
	Session   string    `json:"session"`

	Market       MemorySummary `json:"market"`
	News         MemorySummary `json:"news"`
	Sentiment    MemorySummary `json:"sentiment"`
	Fundamentals MemorySummary `json:"fundamentals"`

	Portfolio *PortfolioSnapshot `json:"portfolio,omitempty"`
	Regime    RegimeConstraints  `json:"regime"`

	Reflections []string `json:"reflections,omitempty"`
	Missing     []string `json:"missing,omitempty"`
}

// Unavailable marks a fusion section that had no underlying data.
const Unavailable = "(unavailable)"

// Summaries returns the four analyst summaries in fixed order.
func (f *FusionContext) Summaries() []MemorySummary {
	return []MemorySummary{f.Market, f.News, f.Sentiment, f.Fundamentals}
}

// RiskAssessment is the risk debate's ruling on a proposed order.
// An abstained assessment is always a rejection.
type RiskAssessment struct {
	Approved   bool     `json:"approved"`
	Decision   Decision `json:"decision"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
	Abstained  bool     `json:"abstained"`
}

// SessionState carries everything one symbol-day run produces. Stages
// fill it in order; a skip or halt leaves the later fields nil.
type SessionState struct {
	Symbol    string    `json:"symbol"`
	TradeDate time.Time `json:"trade_date"`
	Session   string    `json:"session"`

	Reports []*AnalystReport `json:"reports"`
	Fusion  *FusionContext   `json:"fusion"`

	ResearchTranscript *DebateTranscript  `json:"research_transcript"`
	ResearchVerdict    *Verdict           `json:"research_verdict"`
	Selection          *StrategySelection `json:"selection"`
	RiskTranscript     *DebateTranscript  `json:"risk_transcript"`
	RiskAssessment     *RiskAssessment    `json:"risk_assessment"`

	Order   *Order               `json:"order"`
	Summary *DailyTradingSummary `json:"summary"`

	Status     string `json:"status"`
	ReasonCode string `json:"reason_code,omitempty"`
}

func NewSessionState(symbol string, tradeDate time.Time, session string) *SessionState {
	return &SessionState{
		Symbol:    symbol,
		TradeDate: tradeDate,
		Session:   session,
		Reports:   make([]*AnalystReport, 0),
		Status:    SummaryCompleted,
	}
}
