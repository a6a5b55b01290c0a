// Package execution turns risk-ruled decisions into orders and fills
// them at the next session's opening price. Orders move through a
// fixed lifecycle: proposed for risk review, approved or rejected by
// the risk debate, then filled or cancelled at T+1 open.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/portfolio"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
)

// Engine owns order creation, risk transitions and fills. It never
// mutates the book directly; every cash or position change goes
// through the ledger and its guards.
type Engine struct {
	store  *sqlite.Store
	ledger *portfolio.Ledger
	feed   dataflows.CandleFeed

	maxPositionFraction decimal.Decimal
}

// NewEngine wires the execution engine. maxPositionFraction caps any
// single buy at that fraction of total book value; out-of-range values
// disable the cap.
func NewEngine(store *sqlite.Store, ledger *portfolio.Ledger, feed dataflows.CandleFeed, maxPositionFraction float64) *Engine {
	if maxPositionFraction <= 0 || maxPositionFraction > 1 {
		maxPositionFraction = 1
	}
	return &Engine{
		store:               store,
		ledger:              ledger,
		feed:                feed,
		maxPositionFraction: decimal.NewFromFloat(maxPositionFraction),
	}
}

// Propose sizes an order for a settled direction and persists it
// pending risk review. targetCount is how many symbols the session is
// trading; buys take an equal-weight slice of available cash unless
// the strategy supplied its own sizing. Proposals the book cannot take
// come back as rejected orders, not errors. At most one order exists
// per (symbol, date): later calls return the existing one.
func (e *Engine) Propose(ctx context.Context, fc *models.FusionContext, verdict *models.Verdict, sel *models.StrategySelection, targetCount int) (*models.Order, error) {
	if verdict == nil || verdict.Abstained || verdict.Decision == models.DecisionHold {
		return nil, nil
	}

	existing, err := e.store.OrderForDay(ctx, fc.Symbol, fc.TradeDate)
	if err != nil {
		return nil, fmt.Errorf("look up existing order: %w", err)
	}
	if existing != nil {
		log.Printf("[Execution] %s already has an order for %s (%s), reusing",
			fc.Symbol, fc.TradeDate.Format("2006-01-02"), existing.Status)
		return existing, nil
	}

	now := time.Now()
	order := &models.Order{
		ID:         uuid.New().String(),
		Symbol:     fc.Symbol,
		Type:       models.OrderTypeMarketOnOpen,
		DecideDate: fc.TradeDate,
		Status:     models.OrderPendingRiskReview,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if sel != nil {
		order.StrategyID = sel.StrategyID
	}

	switch verdict.Decision {
	case models.DecisionBuy:
		order.Side = models.SideBuy
	case models.DecisionSell:
		order.Side = models.SideSell
	default:
		return nil, nil
	}

	if e.ledger.Halted(order.Symbol) {
		return e.shortCircuit(ctx, order, models.ReasonSymbolHalted)
	}

	if order.Side == models.SideBuy {
		reason, err := e.sizeBuy(order, fc, sel, targetCount)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			return e.shortCircuit(ctx, order, reason)
		}
	} else if reason := e.sizeSell(order, sel); reason != "" {
		return e.shortCircuit(ctx, order, reason)
	}

	if err := e.store.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	log.Printf("[Execution] proposed %s %d %s for risk review (notional %s)",
		order.Side, order.Quantity, order.Symbol, order.Notional.StringFixed(2))
	return order, nil
}

// sizeBuy fills in the buy's notional budget and an estimated quantity
// against the decision-day close. A non-empty reason means the book
// cannot take the position.
func (e *Engine) sizeBuy(order *models.Order, fc *models.FusionContext, sel *models.StrategySelection, targetCount int) (string, error) {
	maxPositions := fc.Regime.MaxPositions
	_, holding := e.ledger.PositionFor(order.Symbol)
	if !holding && maxPositions > 0 && e.ledger.PositionCount() >= maxPositions {
		return models.ReasonMaxPositions, nil
	}

	cash := e.ledger.AvailableCash()
	n := int64(targetCount)
	if n < 1 {
		n = 1
	}
	budget := cash.Div(decimal.NewFromInt(n))
	if sel != nil && sel.Sizing > 0 {
		budget = cash.Mul(decimal.NewFromFloat(sel.Sizing))
	}
	if limit := e.ledger.TotalValue().Mul(e.maxPositionFraction); budget.GreaterThan(limit) {
		budget = limit
	}
	if budget.GreaterThan(cash) {
		budget = cash
	}

	ref, err := dataflows.CandleOn(e.feed, order.Symbol, order.DecideDate)
	if err != nil {
		return "", fmt.Errorf("reference close for %s: %w", order.Symbol, err)
	}
	estimate := budget.Div(ref.Close).IntPart()
	if estimate <= 0 {
		return models.ReasonInsufficientCash, nil
	}
	order.Quantity = estimate
	order.Notional = budget.Round(4)
	return "", nil
}

// sizeSell targets the whole position, scaled down when the strategy
// supplied a fractional sizing.
func (e *Engine) sizeSell(order *models.Order, sel *models.StrategySelection) string {
	pos, ok := e.ledger.PositionFor(order.Symbol)
	if !ok || pos.Quantity == 0 {
		return models.ReasonInsufficientPosition
	}
	qty := pos.Quantity
	if sel != nil && sel.Sizing > 0 && sel.Sizing < 1 {
		if scaled := decimal.NewFromInt(pos.Quantity).Mul(decimal.NewFromFloat(sel.Sizing)).IntPart(); scaled > 0 {
			qty = scaled
		}
	}
	order.Quantity = qty
	return ""
}

// shortCircuit records a proposal the book cannot take as a rejected
// order, so the day keeps its audit row without entering risk review.
func (e *Engine) shortCircuit(ctx context.Context, order *models.Order, reason string) (*models.Order, error) {
	order.Status = models.OrderRejected
	order.Reason = reason
	order.UpdatedAt = time.Now()
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("save rejected order: %w", err)
	}
	log.Printf("[Execution] %s %s proposal rejected: %s", order.Symbol, order.Side, reason)
	return order, nil
}

// ApplyRisk transitions a pending order per the risk debate's ruling.
// Re-applying the same ruling is a no-op. A rejection from an
// abstained or HOLD ruling records risk_hold; an actively contrary
// ruling records risk_rejected.
func (e *Engine) ApplyRisk(ctx context.Context, order *models.Order, assessment *models.RiskAssessment) error {
	if order == nil || assessment == nil {
		return fmt.Errorf("order and assessment are required")
	}
	target := models.OrderRejected
	if assessment.Approved {
		target = models.OrderApproved
	}
	if order.Status == target {
		return nil
	}
	if !models.ValidOrderTransition(order.Status, target) {
		return fmt.Errorf("order %s: invalid transition %s -> %s", order.ID, order.Status, target)
	}

	order.Status = target
	if !assessment.Approved {
		order.Reason = models.ReasonRiskRejected
		if assessment.Abstained || assessment.Decision == models.DecisionHold {
			order.Reason = models.ReasonRiskHold
		}
	}
	order.UpdatedAt = time.Now()
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("save risk ruling: %w", err)
	}
	log.Printf("[Execution] risk ruling on %s %s: %s %s", order.Symbol, order.Side, order.Status, order.Reason)
	return nil
}

// Fill executes an approved order at the next session's opening price.
// Buys recompute quantity from the stored notional at the actual open;
// sells re-clamp to what the book still holds. Refilling an
// already-filled order is a no-op, and a missing next session cancels
// the order instead of failing.
func (e *Engine) Fill(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("no order to fill")
	}
	if order.Status == models.OrderFilled {
		log.Printf("[Execution] order %s already filled, skipping", order.ID)
		return nil
	}
	if order.Status != models.OrderApproved {
		return fmt.Errorf("order %s is %s, not approved", order.ID, order.Status)
	}

	filled, err := e.store.CountFilledOrders(ctx, order.Symbol, order.DecideDate)
	if err != nil {
		return fmt.Errorf("count fills: %w", err)
	}
	if filled > 0 {
		log.Printf("[Execution] %s already filled once on %s, skipping order %s",
			order.Symbol, order.DecideDate.Format("2006-01-02"), order.ID)
		return nil
	}

	next, err := dataflows.NextOpen(e.feed, order.Symbol, order.DecideDate)
	var missing *models.MissingDataError
	if errors.As(err, &missing) {
		return e.cancel(ctx, order, models.ReasonMissingNextOpen)
	}
	if err != nil {
		return fmt.Errorf("next open for %s: %w", order.Symbol, err)
	}
	open := next.Open
	if !open.IsPositive() {
		return e.cancel(ctx, order, models.ReasonMissingNextOpen)
	}

	switch order.Side {
	case models.SideBuy:
		budget := order.Notional
		if cash := e.ledger.AvailableCash(); budget.GreaterThan(cash) {
			budget = cash
		}
		qty := budget.Div(open).IntPart()
		if qty <= 0 {
			return e.cancel(ctx, order, models.ReasonInsufficientCash)
		}
		buyErr := e.ledger.ExecuteBuy(ctx, order.Symbol, qty, open, next.Date)
		if reason := tradeFailure(buyErr); reason != "" {
			return e.cancel(ctx, order, reason)
		}
		if buyErr != nil {
			return fmt.Errorf("fill buy %s: %w", order.Symbol, buyErr)
		}
		order.Quantity = qty

	case models.SideSell:
		pos, ok := e.ledger.PositionFor(order.Symbol)
		if !ok || pos.Quantity == 0 {
			return e.cancel(ctx, order, models.ReasonInsufficientPosition)
		}
		qty := order.Quantity
		if qty > pos.Quantity {
			qty = pos.Quantity
		}
		realized, sellErr := e.ledger.ExecuteSell(ctx, order.Symbol, qty, open, next.Date)
		if reason := tradeFailure(sellErr); reason != "" {
			return e.cancel(ctx, order, reason)
		}
		if sellErr != nil {
			return fmt.Errorf("fill sell %s: %w", order.Symbol, sellErr)
		}
		order.Quantity = qty
		log.Printf("[Execution] %s sell realized %s", order.Symbol, realized.StringFixed(2))
	}

	order.Status = models.OrderFilled
	order.FillDate = next.Date
	order.FillPrice = open
	order.UpdatedAt = time.Now()
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("order %s filled but row not saved: %w", order.ID, err)
	}
	log.Printf("[Execution] FILLED %s %d %s @ %s (decided %s, filled %s)",
		order.Side, order.Quantity, order.Symbol, open.StringFixed(2),
		order.DecideDate.Format("2006-01-02"), next.Date.Format("2006-01-02"))
	return nil
}

func (e *Engine) cancel(ctx context.Context, order *models.Order, reason string) error {
	if !models.ValidOrderTransition(order.Status, models.OrderCancelled) {
		return fmt.Errorf("order %s: cannot cancel from %s", order.ID, order.Status)
	}
	order.Status = models.OrderCancelled
	order.Reason = reason
	order.UpdatedAt = time.Now()
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("save cancelled order: %w", err)
	}
	log.Printf("[Execution] CANCELLED %s %s: %s", order.Side, order.Symbol, reason)
	return nil
}

// tradeFailure maps ledger guard errors onto cancellation reason
// codes. Infra errors map to empty and surface to the caller instead.
func tradeFailure(err error) string {
	if err == nil {
		return ""
	}
	var cashErr *models.InsufficientCashError
	var posErr *models.InsufficientPositionError
	switch {
	case errors.As(err, &cashErr):
		return models.ReasonInsufficientCash
	case errors.As(err, &posErr):
		return models.ReasonInsufficientPosition
	case errors.Is(err, portfolio.ErrSymbolHalted):
		return models.ReasonSymbolHalted
	}
	return ""
}
