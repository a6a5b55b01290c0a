package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/portfolio"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
)

func testEngine(t *testing.T, cash, maxFraction float64) (*Engine, *portfolio.Ledger, *sqlite.Store, *dataflows.StaticFeed) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ledger, err := portfolio.NewLedger(context.Background(), store, decimal.NewFromFloat(cash))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	feed := dataflows.NewStaticFeed()
	return NewEngine(store, ledger, feed, maxFraction), ledger, store, feed
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func candle(symbol, date string, open, close float64) *models.Candle {
	return &models.Candle{
		Symbol: symbol,
		Date:   day(date),
		Open:   dec(open),
		High:   dec(close * 1.01),
		Low:    dec(open * 0.99),
		Close:  dec(close),
		Volume: 1_000_000,
	}
}

func buyContext(symbol, date string, maxPositions int) *models.FusionContext {
	return &models.FusionContext{
		Symbol:    symbol,
		TradeDate: day(date),
		Regime:    models.RegimeConstraints{Regime: models.RegimeBull, MaxPositions: maxPositions},
	}
}

func verdict(d models.Decision) *models.Verdict {
	return &models.Verdict{Decision: d, Rationale: "test direction", Confidence: 0.8}
}

func selection(id string, sizing float64) *models.StrategySelection {
	return &models.StrategySelection{StrategyID: id, Confidence: 0.7, Sizing: sizing}
}

func TestProposeEqualWeightBuy(t *testing.T) {
	e, _, _, feed := testEngine(t, 100000, 0.5)
	feed.Add(candle("X", "2024-01-02", 48, 49))

	order, err := e.Propose(context.Background(), buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), selection("trend_following", 0), 2)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if order.Status != models.OrderPendingRiskReview || order.Side != models.SideBuy {
		t.Fatalf("order = %s %s, want pending BUY", order.Status, order.Side)
	}
	if !order.Notional.Equal(dec(50000)) {
		t.Errorf("notional = %s, want 50000", order.Notional)
	}
	// Estimate against the decision-day close: floor(50000/49).
	if order.Quantity != 1020 {
		t.Errorf("estimated quantity = %d, want 1020", order.Quantity)
	}
	if order.StrategyID != "trend_following" {
		t.Errorf("strategy id = %q", order.StrategyID)
	}
}

func TestProposeSizingOverrideAndCap(t *testing.T) {
	e, _, _, feed := testEngine(t, 100000, 0.5)
	feed.Add(candle("X", "2024-01-02", 48, 50))

	// 0.8 sizing would ask for 80000 but the per-position cap holds it
	// to half the book.
	order, err := e.Propose(context.Background(), buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), selection("momentum_breakout", 0.8), 4)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if !order.Notional.Equal(dec(50000)) {
		t.Errorf("notional = %s, want capped 50000", order.Notional)
	}
	if order.Quantity != 1000 {
		t.Errorf("estimated quantity = %d, want 1000", order.Quantity)
	}
}

func TestProposeMaxPositionsShortCircuits(t *testing.T) {
	e, ledger, _, feed := testEngine(t, 100000, 1)
	ctx := context.Background()
	if err := ledger.ExecuteBuy(ctx, "Y", 100, dec(50), day("2024-01-01")); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	feed.Add(candle("Y", "2024-01-02", 50, 51))

	order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 1), verdict(models.DecisionBuy), nil, 2)
	if err != nil {
		t.Fatalf("propose new symbol: %v", err)
	}
	if order.Status != models.OrderRejected || order.Reason != models.ReasonMaxPositions {
		t.Errorf("order = %s/%s, want rejected max_positions", order.Status, order.Reason)
	}

	// Adding to a symbol already held does not count against the cap.
	addOn, err := e.Propose(ctx, buyContext("Y", "2024-01-02", 1), verdict(models.DecisionBuy), nil, 2)
	if err != nil {
		t.Fatalf("propose add-on: %v", err)
	}
	if addOn.Status != models.OrderPendingRiskReview {
		t.Errorf("add-on order = %s, want pending", addOn.Status)
	}
}

func TestProposeSellWithoutPosition(t *testing.T) {
	e, _, _, _ := testEngine(t, 100000, 1)

	order, err := e.Propose(context.Background(), buyContext("X", "2024-01-02", 5), verdict(models.DecisionSell), nil, 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if order.Status != models.OrderRejected || order.Reason != models.ReasonInsufficientPosition {
		t.Errorf("order = %s/%s, want rejected insufficient_position", order.Status, order.Reason)
	}
}

func TestProposeNoDirectionNoOrder(t *testing.T) {
	e, _, store, _ := testEngine(t, 100000, 1)
	ctx := context.Background()

	if order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionHold), nil, 1); err != nil || order != nil {
		t.Errorf("hold verdict produced order %v err %v", order, err)
	}
	abstained := &models.Verdict{Decision: models.DecisionBuy, Abstained: true}
	if order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), abstained, nil, 1); err != nil || order != nil {
		t.Errorf("abstained verdict produced order %v err %v", order, err)
	}

	saved, err := store.OrderForDay(ctx, "X", day("2024-01-02"))
	if err != nil || saved != nil {
		t.Errorf("order row written for a no-direction day: %v %v", saved, err)
	}
}

func TestProposeIsIdempotentPerDay(t *testing.T) {
	e, _, _, feed := testEngine(t, 100000, 1)
	feed.Add(candle("X", "2024-01-02", 48, 49))
	ctx := context.Background()

	first, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), nil, 2)
	if err != nil {
		t.Fatalf("first propose: %v", err)
	}
	second, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), nil, 2)
	if err != nil {
		t.Fatalf("second propose: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second propose created a new order %s, want %s reused", second.ID, first.ID)
	}
}

func TestApplyRiskTransitions(t *testing.T) {
	e, _, _, feed := testEngine(t, 100000, 1)
	feed.Add(candle("X", "2024-01-02", 48, 49))
	ctx := context.Background()

	order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), nil, 2)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	hold := &models.RiskAssessment{Approved: false, Decision: models.DecisionHold}
	if err := e.ApplyRisk(ctx, order, hold); err != nil {
		t.Fatalf("apply hold: %v", err)
	}
	if order.Status != models.OrderRejected || order.Reason != models.ReasonRiskHold {
		t.Errorf("order = %s/%s, want rejected risk_hold", order.Status, order.Reason)
	}

	// Re-applying the same ruling is a no-op; flipping it is invalid.
	if err := e.ApplyRisk(ctx, order, hold); err != nil {
		t.Errorf("re-apply: %v", err)
	}
	approve := &models.RiskAssessment{Approved: true, Decision: models.DecisionBuy}
	if err := e.ApplyRisk(ctx, order, approve); err == nil {
		t.Error("approving a rejected order did not error")
	}
}

func TestApplyRiskContraryRuling(t *testing.T) {
	e, _, _, feed := testEngine(t, 100000, 1)
	feed.Add(candle("X", "2024-01-02", 48, 49))
	ctx := context.Background()

	order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), nil, 2)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	contrary := &models.RiskAssessment{Approved: false, Decision: models.DecisionSell}
	if err := e.ApplyRisk(ctx, order, contrary); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if order.Reason != models.ReasonRiskRejected {
		t.Errorf("reason = %s, want risk_rejected", order.Reason)
	}
}

func TestFillBuysAtNextOpen(t *testing.T) {
	e, ledger, store, feed := testEngine(t, 100000, 0.5)
	feed.Add(candle("X", "2024-01-02", 48, 49))
	feed.Add(candle("X", "2024-01-03", 50, 52))
	ctx := context.Background()

	order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), nil, 2)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	approve := &models.RiskAssessment{Approved: true, Decision: models.DecisionBuy}
	if err := e.ApplyRisk(ctx, order, approve); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := e.Fill(ctx, order); err != nil {
		t.Fatalf("fill: %v", err)
	}

	// Quantity resizes to the T+1 open: floor(50000/50) = 1000.
	if order.Status != models.OrderFilled || order.Quantity != 1000 {
		t.Fatalf("order = %s qty %d, want filled 1000", order.Status, order.Quantity)
	}
	if !order.FillPrice.Equal(dec(50)) || !order.FillDate.Equal(day("2024-01-03")) {
		t.Errorf("fill = %s on %s, want 50 on 2024-01-03", order.FillPrice, order.FillDate.Format("2006-01-02"))
	}
	if !ledger.AvailableCash().Equal(dec(50000)) {
		t.Errorf("cash after fill = %s, want 50000", ledger.AvailableCash())
	}
	pos, ok := ledger.PositionFor("X")
	if !ok || pos.Quantity != 1000 || !pos.AvgCost.Equal(dec(50)) {
		t.Errorf("position = %+v", pos)
	}

	// Refilling is a no-op and the day still has exactly one fill.
	if err := e.Fill(ctx, order); err != nil {
		t.Fatalf("refill: %v", err)
	}
	if !ledger.AvailableCash().Equal(dec(50000)) {
		t.Error("refill mutated the ledger")
	}
	n, err := store.CountFilledOrders(ctx, "X", day("2024-01-02"))
	if err != nil || n != 1 {
		t.Errorf("filled orders = %d (%v), want 1", n, err)
	}
}

func TestFillMissingNextOpenCancels(t *testing.T) {
	e, ledger, _, feed := testEngine(t, 100000, 1)
	feed.Add(candle("X", "2024-01-02", 48, 49))
	ctx := context.Background()

	order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), nil, 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	approve := &models.RiskAssessment{Approved: true, Decision: models.DecisionBuy}
	if err := e.ApplyRisk(ctx, order, approve); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := e.Fill(ctx, order); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if order.Status != models.OrderCancelled || order.Reason != models.ReasonMissingNextOpen {
		t.Errorf("order = %s/%s, want cancelled missing_next_open", order.Status, order.Reason)
	}
	if !ledger.AvailableCash().Equal(dec(100000)) || ledger.PositionCount() != 0 {
		t.Error("cancelled fill mutated the ledger")
	}
}

func TestFillSellClampsToBook(t *testing.T) {
	e, ledger, _, feed := testEngine(t, 100000, 1)
	feed.Add(candle("X", "2024-01-02", 50, 50))
	feed.Add(candle("X", "2024-01-03", 60, 61))
	ctx := context.Background()

	if err := ledger.ExecuteBuy(ctx, "X", 100, dec(50), day("2024-01-01")); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionSell), nil, 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if order.Quantity != 100 {
		t.Fatalf("sell proposal qty = %d, want full position 100", order.Quantity)
	}
	approve := &models.RiskAssessment{Approved: true, Decision: models.DecisionSell}
	if err := e.ApplyRisk(ctx, order, approve); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// The book shrinks between proposal and fill; the fill clamps.
	if _, err := ledger.ExecuteSell(ctx, "X", 40, dec(50), day("2024-01-02")); err != nil {
		t.Fatalf("shrink position: %v", err)
	}
	if err := e.Fill(ctx, order); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if order.Status != models.OrderFilled || order.Quantity != 60 {
		t.Errorf("order = %s qty %d, want filled 60", order.Status, order.Quantity)
	}
	if _, ok := ledger.PositionFor("X"); ok {
		t.Error("position survived the clamped sell")
	}
	// 100000 - 5000 + 2000 + 3600 after buy, partial sell, and fill.
	if !ledger.AvailableCash().Equal(dec(100600)) {
		t.Errorf("cash = %s, want 100600", ledger.AvailableCash())
	}
}

func TestFillRequiresApproval(t *testing.T) {
	e, _, _, feed := testEngine(t, 100000, 1)
	feed.Add(candle("X", "2024-01-02", 48, 49))
	ctx := context.Background()

	order, err := e.Propose(ctx, buyContext("X", "2024-01-02", 5), verdict(models.DecisionBuy), nil, 1)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := e.Fill(ctx, order); err == nil {
		t.Error("filling a pending order did not error")
	}
}
