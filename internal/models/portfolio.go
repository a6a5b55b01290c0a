package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is fixed to market-on-open: decisions computed on day T's
// close fill at T+1's opening price.
type OrderType string

const OrderTypeMarketOnOpen OrderType = "MARKET_ON_OPEN"

// OrderStatus follows a fixed lifecycle:
//
//	PENDING_RISK_REVIEW -> APPROVED -> FILLED
//	PENDING_RISK_REVIEW -> APPROVED -> CANCELLED
//	PENDING_RISK_REVIEW -> REJECTED
//
// FILLED and CANCELLED require a prior APPROVED; REJECTED is terminal.
type OrderStatus string

const (
	OrderPendingRiskReview OrderStatus = "PENDING_RISK_REVIEW"
	OrderApproved          OrderStatus = "APPROVED"
	OrderRejected          OrderStatus = "REJECTED"
	OrderFilled            OrderStatus = "FILLED"
	OrderCancelled         OrderStatus = "CANCELLED"
)

// ValidOrderTransition reports whether an order may move from one
// status to another.
func ValidOrderTransition(from, to OrderStatus) bool {
	switch from {
	case OrderPendingRiskReview:
		return to == OrderApproved || to == OrderRejected
	case OrderApproved:
		return to == OrderFilled || to == OrderCancelled
	default:
		return false
	}
}

// Reason codes recorded on rejected, cancelled, and skipped outcomes.
const (
	ReasonRiskHold             = "risk_hold"
	ReasonRiskRejected         = "risk_rejected"
	ReasonMaxPositions         = "max_positions"
	ReasonInsufficientCash     = "insufficient_cash"
	ReasonInsufficientPosition = "insufficient_position"
	ReasonMissingNextOpen      = "missing_next_open"
	ReasonSymbolHalted         = "symbol_halted"
	ReasonStageTimeout         = "stage_timeout"
	ReasonStageFailed          = "stage_failed"
	ReasonCancelled            = "cancelled"
)

// Order is one proposed trade moving through the risk and fill
// lifecycle. Quantity on a pending buy is an estimate against the
// decision-day close; the fill recomputes it from Notional at the
// actual opening price.
type Order struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"type"`
	Quantity   int64           `json:"quantity"`
	Notional   decimal.Decimal `json:"notional,omitempty"`
	DecideDate time.Time       `json:"decide_date"`
	FillDate   time.Time       `json:"fill_date,omitempty"`
	FillPrice  decimal.Decimal `json:"fill_price,omitempty"`
	Status     OrderStatus     `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	StrategyID string          `json:"strategy_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	LastPrice decimal.Decimal `json:"last_price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarketValue is quantity times the last marked price.
func (p *Position) MarketValue() decimal.Decimal {
	return p.LastPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// PortfolioSnapshot is the end-of-day ledger state. TotalValue always
// equals Cash plus PositionsValue at write time; MaxDrawdown never
// decreases across the series.
type PortfolioSnapshot struct {
	Date           time.Time       `json:"date"`
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Positions      []Position      `json:"positions,omitempty"`
	DailyReturn    float64         `json:"daily_return"`
	Drawdown       float64         `json:"drawdown"`
	MaxDrawdown    float64         `json:"max_drawdown"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Daily summary completion states.
const (
	SummaryCompleted = "completed"
	SummarySkipped   = "skipped"
	SummaryHalted    = "halted"
)

// DailyTradingSummary is the per-symbol record written at the end of
// every trading day, including days where no trade happened.
type DailyTradingSummary struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Date             time.Time       `json:"date"`
	MarketRegime     MarketRegime    `json:"market_regime,omitempty"`
	Decision         Decision        `json:"decision"`
	StrategyID       string          `json:"strategy_id,omitempty"`
	ExpectedBehavior string          `json:"expected_behavior,omitempty"`
	OrderID          string          `json:"order_id,omitempty"`
	OrderStatus      OrderStatus     `json:"order_status,omitempty"`
	Quantity         int64           `json:"quantity"`
	FillPrice        decimal.Decimal `json:"fill_price,omitempty"`
	CashAfter        decimal.Decimal `json:"cash_after"`
	TotalValue       decimal.Decimal `json:"total_value"`
	DailyReturn      float64         `json:"daily_return"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	Status           string          `json:"status"`
	ReasonCode       string          `json:"reason_code,omitempty"`
	Reflection       string          `json:"reflection,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
