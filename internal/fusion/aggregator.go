// Package fusion assembles the per-symbol, per-session decision
// context: the four analyst memory views, the latest portfolio
// snapshot, regime constraints, and recent reflection lessons.
package fusion

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/memory"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
)

// RegimeSource supplies read-only market condition constraints. A
// failure degrades the context to an unknown regime, it never fails
// the build.
type RegimeSource interface {
	Constraints(ctx context.Context, symbol string, date time.Time) (models.RegimeConstraints, error)
}

const reflectionLimit = 5

// Aggregator builds fusion contexts on a best-effort basis. Sections
// with no underlying data come back marked unavailable and listed in
// Missing, so downstream stages can tell absent from neutral.
type Aggregator struct {
	memory *memory.Service
	store  *sqlite.Store
	regime RegimeSource // nil leaves the regime unknown
}

func NewAggregator(mem *memory.Service, store *sqlite.Store, regime RegimeSource) *Aggregator {
	return &Aggregator{memory: mem, store: store, regime: regime}
}

// Build assembles the decision context for one symbol and session.
// It always returns a context; partial inputs degrade field by field.
func (a *Aggregator) Build(ctx context.Context, symbol string, date time.Time, session string) *models.FusionContext {
	symbol = strings.ToUpper(symbol)
	fc := &models.FusionContext{
		Symbol:    symbol,
		TradeDate: date,
		Session:   session,
		Regime:    models.RegimeConstraints{Regime: models.RegimeUnknown},
	}

	slots := []struct {
		analyst string
		dest    *models.MemorySummary
	}{
		{models.AnalystMarket, &fc.Market},
		{models.AnalystNews, &fc.News},
		{models.AnalystSentiment, &fc.Sentiment},
		{models.AnalystFundamentals, &fc.Fundamentals},
	}
	for _, slot := range slots {
		sum, err := a.memory.Summary(ctx, symbol, slot.analyst, date, session)
		if err != nil {
			log.Printf("[Fusion] %s summary for %s unavailable: %v", slot.analyst, symbol, err)
			sum = models.MemorySummary{Analyst: slot.analyst, Symbol: symbol}
		}
		a.markMissing(fc, &sum, session)
		*slot.dest = sum
	}

	snap, err := a.store.LatestSnapshot(ctx, date)
	if err != nil {
		log.Printf("[Fusion] portfolio snapshot for %s unavailable: %v", symbol, err)
	}
	if snap == nil {
		fc.Missing = append(fc.Missing, "portfolio.snapshot")
	} else {
		fc.Portfolio = snap
	}

	if a.regime == nil {
		fc.Missing = append(fc.Missing, "regime.constraints")
	} else if rc, err := a.regime.Constraints(ctx, symbol, date); err != nil {
		log.Printf("[Fusion] regime constraints for %s unavailable: %v", symbol, err)
		fc.Missing = append(fc.Missing, "regime.constraints")
	} else {
		fc.Regime = rc
	}

	notes, err := a.memory.Reflections(ctx, symbol, reflectionLimit)
	if err != nil {
		log.Printf("[Fusion] reflections for %s unavailable: %v", symbol, err)
	}
	for _, n := range notes {
		fc.Reflections = append(fc.Reflections,
			fmt.Sprintf("[%s %s] %s", n.TradeDate.Format("2006-01-02"), n.Outcome, n.Lesson))
	}

	log.Printf("[Fusion] context %s %s %s: %d sections missing, %d reflections",
		symbol, date.Format("2006-01-02"), session, len(fc.Missing), len(fc.Reflections))
	return fc
}

// markMissing swaps empty summary fields for the explicit marker and
// records them. The post-session digest only counts once post-close
// consolidation could have produced it.
func (a *Aggregator) markMissing(fc *models.FusionContext, sum *models.MemorySummary, session string) {
	if sum.TodaySnapshot == "" {
		sum.TodaySnapshot = models.Unavailable
		fc.Missing = append(fc.Missing, sum.Analyst+".today_snapshot")
	}
	if sum.PreSessionDigest == "" {
		sum.PreSessionDigest = models.Unavailable
		fc.Missing = append(fc.Missing, sum.Analyst+".pre_session_digest")
	}
	if session == consts.SessionPostClose && sum.PostSessionDigest == "" {
		sum.PostSessionDigest = models.Unavailable
		fc.Missing = append(fc.Missing, sum.Analyst+".post_session_digest")
	}
}
