package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/models"
)

func TestRunTradingDayBuyCycle(t *testing.T) {
	fx := newFixture(t,
		scripted("bull case", "bear case", buyVerdictJSON),
		scripted("take it", "trim it", "lean take", buyVerdictJSON))
	fx.feed.Add(
		candle("CYQ", "2025-01-09", 49.5, 50),
		candle("CYQ", "2025-01-10", 50, 52),
	)

	results, err := fx.router.RunTradingDay(context.Background(), day("2025-01-09"), nil)
	if err != nil {
		t.Fatalf("run trading day: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want one per session", len(results))
	}
	for _, res := range results {
		if res.Status != models.SummaryCompleted {
			t.Errorf("%s finished %s (%s), want %s", res.Session, res.Status, res.ReasonCode, models.SummaryCompleted)
		}
	}

	order := fx.orderForDay(t, "CYQ", "2025-01-09")
	if order == nil || order.Status != models.OrderFilled {
		t.Fatalf("order = %+v, want filled", order)
	}
	if order.Quantity != 1000 || !order.FillPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("fill = %d @ %s, want 1000 @ 50", order.Quantity, order.FillPrice)
	}
	if !sameDay(order.FillDate, day("2025-01-10")) {
		t.Errorf("fill date = %s, want the next trading day", order.FillDate.Format(dateLayout))
	}

	if got := fx.ledger.AvailableCash(); !got.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("cash = %s, want 50000", got)
	}
	pos, ok := fx.ledger.PositionFor("CYQ")
	if !ok || pos.Quantity != 1000 {
		t.Fatalf("position = %+v, want 1000 CYQ", pos)
	}

	snap, err := fx.store.LatestSnapshot(context.Background(), day("2025-01-09"))
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap == nil || !sameDay(snap.Date, day("2025-01-09")) {
		t.Fatalf("snapshot = %+v, want one dated 2025-01-09", snap)
	}
	if !snap.TotalValue.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("total value = %s, want 100000 at the decide-day close", snap.TotalValue)
	}

	sum := fx.summaryForDay(t, "CYQ", "2025-01-09")
	if sum == nil {
		t.Fatal("no summary row")
	}
	if sum.Decision != models.DecisionBuy || sum.OrderStatus != models.OrderFilled {
		t.Errorf("summary = %s/%s, want BUY/%s", sum.Decision, sum.OrderStatus, models.OrderFilled)
	}
	if sum.StrategyID == "" {
		t.Error("summary has no strategy id")
	}
	if !sum.CashAfter.Equal(decimal.NewFromInt(50000)) || !sum.TotalValue.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("summary valuation = %s/%s, want 50000/100000", sum.CashAfter, sum.TotalValue)
	}
	if sum.Status != models.SummaryCompleted {
		t.Errorf("summary status = %s, want %s", sum.Status, models.SummaryCompleted)
	}

	for _, stream := range []models.MemoryStream{models.StreamIntraday, models.StreamDaily} {
		done, err := fx.mem.Consolidated(context.Background(), "CYQ", stream, day("2025-01-09"))
		if err != nil {
			t.Fatalf("consolidated %s: %v", stream, err)
		}
		if !done {
			t.Errorf("%s stream not consolidated after post_close", stream)
		}
	}
}

func TestRunTradingDaySkipsNonTradingDay(t *testing.T) {
	fx := newFixture(t, scripted(), scripted())
	fx.feed.Add(candle("CYQ", "2025-01-09", 49.5, 50))

	results, err := fx.router.RunTradingDay(context.Background(), day("2025-01-11"), nil)
	if err != nil {
		t.Fatalf("run trading day: %v", err)
	}
	if results != nil {
		t.Fatalf("non-trading day produced %d results", len(results))
	}
	if sum := fx.summaryForDay(t, "CYQ", "2025-01-11"); sum != nil {
		t.Errorf("non-trading day wrote summary %+v", sum)
	}
}

func TestRunTradingDayFridayReflection(t *testing.T) {
	fx := newFixture(t, scripted("bull case", "bear case", holdVerdictJSON), scripted())
	fx.feed.Add(candle("CYQ", "2025-01-10", 50, 50))

	results, err := fx.router.RunTradingDay(context.Background(), day("2025-01-10"), nil)
	if err != nil {
		t.Fatalf("run trading day: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	done, err := fx.mem.Consolidated(context.Background(), "CYQ", models.StreamSlow, day("2025-01-10"))
	if err != nil {
		t.Fatalf("consolidated slow: %v", err)
	}
	if !done {
		t.Error("slow stream not consolidated on the cycle boundary")
	}

	notes, err := fx.mem.Reflections(context.Background(), "CYQ", 5)
	if err != nil {
		t.Fatalf("reflections: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("got %d reflection notes, want 1", len(notes))
	}
	if notes[0].Outcome != models.OutcomeFlat {
		t.Errorf("outcome = %s, want %s for a zero-return cycle", notes[0].Outcome, models.OutcomeFlat)
	}
	if notes[0].Lesson == "" {
		t.Error("reflection note has no lesson")
	}

	sum := fx.summaryForDay(t, "CYQ", "2025-01-10")
	if sum == nil {
		t.Fatal("no summary row")
	}
	if sum.Reflection == "" {
		t.Error("boundary-day summary missing its reflection")
	}
}

func TestRunTradingDayWithoutUniverse(t *testing.T) {
	fx := newFixture(t, scripted(), scripted())
	fx.cfg.SymbolPool = nil

	var verr *models.ValidationError
	if _, err := fx.router.RunTradingDay(context.Background(), day("2025-01-09"), nil); !errors.As(err, &verr) {
		t.Errorf("empty universe: got %v, want validation error", err)
	}
	if _, err := fx.router.RunTradingDay(context.Background(), time.Time{}, []string{"CYQ"}); !errors.As(err, &verr) {
		t.Errorf("zero date: got %v, want validation error", err)
	}
}

func TestDayUniverseIncludesHeldPositions(t *testing.T) {
	fx := newFixture(t, scripted(), scripted())
	fx.cfg.SymbolPool = []string{"bbb", "aaa", "ccc"}
	fx.cfg.TopSymbols = 2

	if err := fx.ledger.ExecuteBuy(context.Background(), "ZZZ", 10, decimal.NewFromInt(5), day("2025-01-08")); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	got := fx.router.dayUniverse(day("2025-01-09"))
	want := []string{"AAA", "BBB", "ZZZ"}
	if len(got) != len(want) {
		t.Fatalf("universe = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("universe = %v, want %v", got, want)
		}
	}
}

func TestTargetsForCachesPerDate(t *testing.T) {
	fx := newFixture(t, scripted(), scripted())
	fx.cfg.SymbolPool = []string{"aaa"}

	first := fx.router.targetsFor(day("2025-01-09"))
	if len(first) != 1 || first[0] != "AAA" {
		t.Fatalf("targets = %v, want [AAA]", first)
	}

	fx.cfg.SymbolPool = []string{"bbb"}
	cached := fx.router.targetsFor(day("2025-01-09"))
	if len(cached) != 1 || cached[0] != "AAA" {
		t.Errorf("same-date targets = %v, want the cached [AAA]", cached)
	}
	fresh := fx.router.targetsFor(day("2025-01-10"))
	if len(fresh) != 1 || fresh[0] != "BBB" {
		t.Errorf("next-date targets = %v, want [BBB]", fresh)
	}
	if n := fx.router.targetCount(day("2025-01-09")); n != 1 {
		t.Errorf("target count = %d, want 1", n)
	}
}
