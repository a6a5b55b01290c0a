package models

import "time"

// MemoryStream identifies which memory tier a record belongs to.
type MemoryStream string

const (
	StreamIntraday MemoryStream = "intraday"
	StreamDaily    MemoryStream = "daily"
	StreamSlow     MemoryStream = "slow"
)

// Analyst type identifiers. Each analyst writes into exactly one stream.
const (
	AnalystMarket       = "market"
	AnalystNews         = "news"
	AnalystSentiment    = "sentiment"
	AnalystFundamentals = "fundamentals"
)

// StreamForAnalyst maps an analyst type to the memory stream its
// reports are routed into. Unknown analyst types map to the empty
// stream and are rejected at submission.
func StreamForAnalyst(analyst string) MemoryStream {
	switch analyst {
	case AnalystMarket:
		return StreamIntraday
	case AnalystNews, AnalystSentiment:
		return StreamDaily
	case AnalystFundamentals:
		return StreamSlow
	default:
		return ""
	}
}

// KnownAnalysts lists the analyst types accepted at submission.
var KnownAnalysts = []string{
	AnalystMarket,
	AnalystNews,
	AnalystSentiment,
	AnalystFundamentals,
}

type AnalystReport struct {
	ID         string       `json:"id"`
	Symbol     string       `json:"symbol"`
	Analyst    string       `json:"analyst"`
	Stream     MemoryStream `json:"stream"`
	TradeDate  time.Time    `json:"trade_date"`
	Content    string       `json:"content"`
	Confidence float64      `json:"confidence"`
	CreatedAt  time.Time    `json:"created_at"`
}

// MemoryDigest is the consolidated record produced when a timescale
// boundary closes. Digests are the only path from a faster stream
// into a slower one.
type MemoryDigest struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	Stream      MemoryStream `json:"stream"`
	PeriodStart time.Time    `json:"period_start"`
	PeriodEnd   time.Time    `json:"period_end"`
	Content     string       `json:"content"`
	SourceCount int          `json:"source_count"`
	Confidence  float64      `json:"confidence"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ReflectionNote records a lesson drawn from a completed trade so
// later sessions can weigh it during fusion.
type ReflectionNote struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	TradeDate time.Time `json:"trade_date"`
	Outcome   string    `json:"outcome"`
	Lesson    string    `json:"lesson"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeFlat = "flat"
)
