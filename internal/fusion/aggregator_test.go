package fusion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/memory"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
)

type regimeStub struct {
	rc  models.RegimeConstraints
	err error
}

func (r regimeStub) Constraints(ctx context.Context, symbol string, date time.Time) (models.RegimeConstraints, error) {
	return r.rc, r.err
}

func newTestAggregator(t *testing.T, regime RegimeSource) (*Aggregator, *memory.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		IntradayLookbackDays: 1,
		DailyLookbackDays:    7,
		SlowLookbackDays:     30,
		SlowCycleDays:        7,
		DigestMaxChars:       2000,
		DedupSimilarity:      0.85,
		MinConfidence:        0.3,
	}
	mem := memory.NewService(store, nil, cfg)
	return NewAggregator(mem, store, regime), mem, store
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func missingLists(fc *models.FusionContext, entry string) bool {
	for _, m := range fc.Missing {
		if m == entry {
			return true
		}
	}
	return false
}

func TestBuildOnEmptyStore(t *testing.T) {
	agg, _, _ := newTestAggregator(t, nil)

	fc := agg.Build(context.Background(), "aapl", day("2024-03-04"), consts.SessionPreOpen)

	if fc.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", fc.Symbol)
	}
	if fc.Market.TodaySnapshot != models.Unavailable {
		t.Errorf("market snapshot = %q, want the unavailable marker", fc.Market.TodaySnapshot)
	}
	if fc.Portfolio != nil {
		t.Error("portfolio should be nil on an empty store")
	}
	if fc.Regime.Regime != models.RegimeUnknown {
		t.Errorf("regime = %q, want unknown", fc.Regime.Regime)
	}
	for _, want := range []string{"market.today_snapshot", "fundamentals.pre_session_digest", "portfolio.snapshot", "regime.constraints"} {
		if !missingLists(fc, want) {
			t.Errorf("Missing does not list %s: %v", want, fc.Missing)
		}
	}
}

func TestBuildPopulatedContext(t *testing.T) {
	rc := models.RegimeConstraints{Regime: models.RegimeBull, Volatility: 0.18, MaxPositions: 4}
	agg, mem, store := newTestAggregator(t, regimeStub{rc: rc})
	ctx := context.Background()
	d := day("2024-03-04")

	if err := mem.Submit(ctx, &models.AnalystReport{
		Symbol:     "AAPL",
		Analyst:    models.AnalystMarket,
		TradeDate:  d,
		Content:    "strong tape into the close",
		Confidence: 0.9,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := store.SaveSnapshot(ctx, &models.PortfolioSnapshot{
		Date:           d.AddDate(0, 0, -1),
		Cash:           decimal.NewFromInt(52000),
		PositionsValue: decimal.NewFromInt(48000),
		TotalValue:     decimal.NewFromInt(100000),
		CreatedAt:      time.Now(),
	}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if err := mem.RecordReflection(ctx, &models.ReflectionNote{
		Symbol:    "AAPL",
		TradeDate: d.AddDate(0, 0, -3),
		Outcome:   models.OutcomeLoss,
		Lesson:    "chasing gaps without volume confirmation",
	}); err != nil {
		t.Fatalf("RecordReflection: %v", err)
	}

	fc := agg.Build(ctx, "AAPL", d, consts.SessionPreOpen)

	if fc.Market.TodaySnapshot != "strong tape into the close" {
		t.Errorf("market snapshot = %q", fc.Market.TodaySnapshot)
	}
	if fc.Portfolio == nil || !fc.Portfolio.TotalValue.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("portfolio snapshot not attached: %+v", fc.Portfolio)
	}
	if fc.Regime.Regime != models.RegimeBull {
		t.Errorf("regime = %q, want bull", fc.Regime.Regime)
	}
	if len(fc.Reflections) != 1 || !strings.Contains(fc.Reflections[0], "chasing gaps") {
		t.Errorf("reflections = %v", fc.Reflections)
	}
	for _, entry := range []string{"market.today_snapshot", "portfolio.snapshot", "regime.constraints"} {
		if missingLists(fc, entry) {
			t.Errorf("Missing wrongly lists %s", entry)
		}
	}
}

func TestBuildRegimeErrorDegrades(t *testing.T) {
	agg, _, _ := newTestAggregator(t, regimeStub{err: errors.New("factor feed offline")})

	fc := agg.Build(context.Background(), "AAPL", day("2024-03-04"), consts.SessionPreOpen)

	if fc.Regime.Regime != models.RegimeUnknown {
		t.Errorf("regime = %q, want unknown after source failure", fc.Regime.Regime)
	}
	if !missingLists(fc, "regime.constraints") {
		t.Error("Missing does not record the regime failure")
	}
}

func TestRenderText(t *testing.T) {
	fc := &models.FusionContext{
		Symbol:    "AAPL",
		TradeDate: day("2024-03-04"),
		Session:   consts.SessionPreOpen,
		Market: models.MemorySummary{
			Analyst:          models.AnalystMarket,
			TodaySnapshot:    "tape is strong",
			PreSessionDigest: models.Unavailable,
		},
		News:         models.MemorySummary{Analyst: models.AnalystNews, TodaySnapshot: models.Unavailable, PreSessionDigest: models.Unavailable},
		Sentiment:    models.MemorySummary{Analyst: models.AnalystSentiment, TodaySnapshot: models.Unavailable, PreSessionDigest: models.Unavailable},
		Fundamentals: models.MemorySummary{Analyst: models.AnalystFundamentals, TodaySnapshot: models.Unavailable, PreSessionDigest: models.Unavailable},
		Regime:       models.RegimeConstraints{Regime: models.RegimeBull, Volatility: 0.2, MaxPositions: 3},
		Reflections:  []string{"[2024-03-01 loss] sized too big into earnings"},
	}

	text := RenderText(fc)
	for _, want := range []string{
		"AAPL",
		"tape is strong",
		models.Unavailable,
		"bull",
		"max positions 3",
		"market analyst",
		"sized too big into earnings",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered context missing %q", want)
		}
	}
}
