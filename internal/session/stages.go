package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/debate"
	"github.com/dyike/tradecycle/internal/fusion"
	"github.com/dyike/tradecycle/internal/models"
)

// strategyLookbackDays is the calendar window fetched for strategy
// signals, wide enough for the 50-day moving average plus slack.
const strategyLookbackDays = 180

// ingestStage runs the wired analysts and submits their reports. A
// missing or failing analyst leaves a gap the fusion stage marks
// explicitly, so nothing here is fatal.
func (r *Router) ingestStage(ctx context.Context, st *models.SessionState) StageResult {
	if len(r.analysts) == 0 {
		return StageResult{Status: StageSkip, Reason: "external ingestion"}
	}
	for _, analyst := range r.analysts {
		rep, err := analyst.Report(ctx, st.Symbol, st.TradeDate)
		if err != nil {
			log.Printf("[Session] %s analyst failed for %s: %v", analyst.Name(), st.Symbol, err)
			continue
		}
		if rep == nil {
			continue
		}
		if err := r.memory.Submit(ctx, rep); err != nil {
			log.Printf("[Session] %s report for %s rejected: %v", analyst.Name(), st.Symbol, err)
			continue
		}
		st.Reports = append(st.Reports, rep)
	}
	return StageResult{Status: StageSuccess}
}

// fusionStage assembles the decision context. The aggregator degrades
// missing sections instead of failing, so this stage always succeeds.
func (r *Router) fusionStage(ctx context.Context, st *models.SessionState) StageResult {
	st.Fusion = r.fusion.Build(ctx, st.Symbol, st.TradeDate, st.Session)
	return StageResult{Status: StageSuccess}
}

func (r *Router) researchStage(ctx context.Context, st *models.SessionState) StageResult {
	transcript, err := r.research.Run(ctx, fusion.RenderText(st.Fusion))
	if err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("research debate: %w", err)}
	}
	st.ResearchTranscript = transcript
	st.ResearchVerdict = transcript.Verdict
	if err := r.store.SaveTranscript(ctx, st.Symbol, st.TradeDate, transcript); err != nil {
		log.Printf("[Session] research transcript for %s not saved: %v", st.Symbol, err)
	}
	return StageResult{Status: StageSuccess}
}

// strategyStage picks a strategy for the settled direction. The
// selector degrades to the default strategy on any trouble and
// returns nothing for HOLD, so this stage always succeeds.
func (r *Router) strategyStage(ctx context.Context, st *models.SessionState) StageResult {
	start := st.TradeDate.AddDate(0, 0, -strategyLookbackDays)
	candles, err := r.feed.History(st.Symbol, start, st.TradeDate)
	if err != nil {
		log.Printf("[Session] candles for %s unavailable, selecting without signals: %v", st.Symbol, err)
		candles = nil
	}
	st.Selection = r.selector.Select(ctx, st.Fusion, st.ResearchVerdict, candles)
	return StageResult{Status: StageSuccess}
}

// riskStage proposes the order and convenes the risk debate over it.
// A HOLD or abstained research verdict skips the review: there is
// nothing on the table. If the debate itself dies, the pending order
// is rejected before the failure is reported, so no order can sit in
// review forever.
func (r *Router) riskStage(ctx context.Context, st *models.SessionState) StageResult {
	verdict := st.ResearchVerdict
	if verdict == nil || verdict.Abstained || verdict.Decision == models.DecisionHold {
		return StageResult{Status: StageSkip, Reason: "no direction to review"}
	}

	order, err := r.engine.Propose(ctx, st.Fusion, verdict, st.Selection, r.targetCount(st.TradeDate))
	if err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("propose order: %w", err)}
	}
	if order == nil {
		return StageResult{Status: StageSkip, Reason: "no order proposed"}
	}
	st.Order = order
	if order.Status != models.OrderPendingRiskReview {
		return StageResult{Status: StageSkip, Reason: order.Reason}
	}

	topic := debate.RiskTopic(fusion.RenderText(st.Fusion), verdict, st.Selection, order)
	transcript, err := r.risk.Run(ctx, topic)
	if err != nil {
		abstained := &models.RiskAssessment{
			Decision:  models.DecisionHold,
			Rationale: "risk review did not finish",
			Abstained: true,
		}
		if applyErr := r.engine.ApplyRisk(ctx, order, abstained); applyErr != nil {
			log.Printf("[Session] could not park order %s after failed risk review: %v", order.ID, applyErr)
		}
		return StageResult{Status: StageError, Err: fmt.Errorf("risk debate: %w", err)}
	}
	st.RiskTranscript = transcript
	if err := r.store.SaveTranscript(ctx, st.Symbol, st.TradeDate, transcript); err != nil {
		log.Printf("[Session] risk transcript for %s not saved: %v", st.Symbol, err)
	}

	proposed := models.DecisionBuy
	if order.Side == models.SideSell {
		proposed = models.DecisionSell
	}
	st.RiskAssessment = debate.Assess(transcript.Verdict, proposed)
	return StageResult{Status: StageSuccess}
}

// approvalStage records the risk ruling on the pending order. The
// order then waits for the market_open fill.
func (r *Router) approvalStage(ctx context.Context, st *models.SessionState) StageResult {
	if st.Order == nil {
		return StageResult{Status: StageSkip, Reason: "no order"}
	}
	if st.Order.Status != models.OrderPendingRiskReview {
		return StageResult{Status: StageSkip, Reason: st.Order.Reason}
	}
	if st.RiskAssessment == nil {
		st.RiskAssessment = &models.RiskAssessment{
			Decision:  models.DecisionHold,
			Rationale: "risk review missing",
			Abstained: true,
		}
	}
	if err := r.engine.ApplyRisk(ctx, st.Order, st.RiskAssessment); err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("apply risk ruling: %w", err)}
	}
	return StageResult{Status: StageSuccess}
}

// fillStage executes the day's approved order at the next session's
// opening price. Refills are no-ops inside the engine, so re-running
// market_open is safe.
func (r *Router) fillStage(ctx context.Context, st *models.SessionState) StageResult {
	order, err := r.store.OrderForDay(ctx, st.Symbol, st.TradeDate)
	if err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("load order: %w", err)}
	}
	if order == nil {
		return StageResult{Status: StageSkip, Reason: "no order for the day"}
	}
	st.Order = order

	switch order.Status {
	case models.OrderFilled:
		return StageResult{Status: StageSuccess}
	case models.OrderApproved:
		if err := r.engine.Fill(ctx, order); err != nil {
			return StageResult{Status: StageError, Err: fmt.Errorf("fill order: %w", err)}
		}
		return StageResult{Status: StageSuccess}
	default:
		return StageResult{Status: StageSkip, Reason: order.Reason}
	}
}

// valuationStage marks every held position at the day's close and
// takes the daily snapshot. Missing closes carry the last mark; the
// traded symbol is always attempted even when the book is empty.
func (r *Router) valuationStage(ctx context.Context, st *models.SessionState) StageResult {
	symbols := map[string]bool{st.Symbol: true}
	for _, pos := range r.ledger.Positions() {
		symbols[pos.Symbol] = true
	}
	ordered := make([]string, 0, len(symbols))
	for symbol := range symbols {
		ordered = append(ordered, symbol)
	}
	sort.Strings(ordered)

	closes := make(map[string]decimal.Decimal, len(ordered))
	for _, symbol := range ordered {
		candle, err := dataflows.CandleOn(r.feed, symbol, st.TradeDate)
		if err != nil {
			log.Printf("[Session] close for %s on %s unavailable: %v", symbol, st.TradeDate.Format(dateLayout), err)
			continue
		}
		closes[symbol] = candle.Close
	}

	if err := r.ledger.MarkToMarket(ctx, st.TradeDate, closes); err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("mark to market: %w", err)}
	}
	if _, err := r.ledger.TakeSnapshot(ctx, st.TradeDate); err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("take snapshot: %w", err)}
	}
	return StageResult{Status: StageSuccess}
}

// consolidateStage closes the day's memory boundaries in feeder order:
// intraday, then daily, then the slow stream when the date ends a
// cycle. Streams already consolidated for the date are left alone.
func (r *Router) consolidateStage(ctx context.Context, st *models.SessionState) StageResult {
	streams := []models.MemoryStream{models.StreamIntraday, models.StreamDaily}
	if r.memory.IsSlowBoundary(st.TradeDate) {
		streams = append(streams, models.StreamSlow)
	}
	for _, stream := range streams {
		done, err := r.memory.Consolidated(ctx, st.Symbol, stream, st.TradeDate)
		if err != nil {
			return StageResult{Status: StageError, Err: fmt.Errorf("check %s digest: %w", stream, err)}
		}
		if done {
			continue
		}
		if _, err := r.memory.Consolidate(ctx, st.Symbol, stream, st.TradeDate, st.Session); err != nil {
			return StageResult{Status: StageError, Err: fmt.Errorf("consolidate %s: %w", stream, err)}
		}
	}
	return StageResult{Status: StageSuccess}
}

// summaryStage writes the symbol-day record. It merges into whatever
// an earlier session already wrote: the pre_open run settles decision
// and strategy, market_open updates the order outcome, post_close adds
// the valuation. A failure recorded on the state flips the row to
// skipped with its reason code; a later clean session never upgrades
// a day that already failed.
func (r *Router) summaryStage(ctx context.Context, st *models.SessionState) StageResult {
	existing, err := r.store.SummaryForDay(ctx, st.Symbol, st.TradeDate)
	if err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("load summary: %w", err)}
	}

	sum := existing
	if sum == nil {
		sum = &models.DailyTradingSummary{
			ID:        uuid.New().String(),
			Symbol:    st.Symbol,
			Date:      st.TradeDate,
			Decision:  models.DecisionHold,
			Status:    st.Status,
			CreatedAt: time.Now().UTC(),
		}
	}

	if st.Fusion != nil {
		sum.MarketRegime = st.Fusion.Regime.Regime
	}
	if st.ResearchVerdict != nil && !st.ResearchVerdict.Abstained {
		sum.Decision = st.ResearchVerdict.Decision
	}
	if st.Selection != nil {
		sum.StrategyID = st.Selection.StrategyID
		sum.ExpectedBehavior = st.Selection.ExpectedBehavior
	}

	order := st.Order
	if order == nil {
		if loaded, err := r.store.OrderForDay(ctx, st.Symbol, st.TradeDate); err == nil && loaded != nil {
			order = loaded
		}
	}
	if order != nil {
		sum.OrderID = order.ID
		sum.OrderStatus = order.Status
		sum.Quantity = order.Quantity
		sum.FillPrice = order.FillPrice
		if sum.ReasonCode == "" && order.Reason != "" {
			sum.ReasonCode = order.Reason
		}
	}

	if snap, err := r.store.LatestSnapshot(ctx, st.TradeDate); err == nil && snap != nil && sameDay(snap.Date, st.TradeDate) {
		sum.CashAfter = snap.Cash
		sum.TotalValue = snap.TotalValue
		sum.DailyReturn = snap.DailyReturn
		sum.MaxDrawdown = snap.MaxDrawdown
	}

	if st.ReasonCode != "" {
		sum.Status = st.Status
		sum.ReasonCode = st.ReasonCode
	}
	if r.ledger.Halted(st.Symbol) {
		sum.Status = models.SummaryHalted
		sum.ReasonCode = models.ReasonSymbolHalted
		st.Status = models.SummaryHalted
		st.ReasonCode = models.ReasonSymbolHalted
	}

	st.Summary = sum
	if err := r.store.UpsertSummary(ctx, sum); err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("write summary: %w", err)}
	}
	return StageResult{Status: StageSuccess}
}

// reflectionStage distills the closing cycle into a lesson. It only
// runs on slow boundaries; other days skip through.
func (r *Router) reflectionStage(ctx context.Context, st *models.SessionState) StageResult {
	if !r.memory.IsSlowBoundary(st.TradeDate) {
		return StageResult{Status: StageSkip, Reason: "not a cycle boundary"}
	}
	if err := r.reflect(ctx, st.Symbol, st.TradeDate); err != nil {
		return StageResult{Status: StageError, Err: fmt.Errorf("cycle reflection: %w", err)}
	}
	return StageResult{Status: StageSuccess}
}

func sameDay(a, b time.Time) bool {
	return a.Format(dateLayout) == b.Format(dateLayout)
}
