package cli

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/session"
)

func testResultsConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ResultsDir = t.TempDir()
	return cfg
}

func tradeDay(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleResult(symbol, date, sess string, state *models.SessionState) *session.SessionResult {
	return &session.SessionResult{
		Symbol:  symbol,
		Date:    tradeDay(date),
		Session: sess,
		Status:  models.SummaryCompleted,
		State:   state,
	}
}

func TestSaveAndListResults(t *testing.T) {
	cfg := testResultsConfig(t)

	res := sampleResult("AAPL", "2025-01-09", consts.SessionMarketOpen, &models.SessionState{
		Summary: &models.DailyTradingSummary{Decision: models.DecisionBuy},
	})

	path, err := saveSessionArtifact(cfg, res)
	if err != nil {
		t.Fatalf("saveSessionArtifact: %v", err)
	}
	if got := filepath.Base(path); got != "AAPL_2025-01-09_market_open.json" {
		t.Errorf("unexpected artifact name: %s", got)
	}

	rm := NewResultsManager(cfg)
	results, err := rm.ListResults("date", false)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Symbol != "AAPL" || r.Date != "2025-01-09" || r.Session != consts.SessionMarketOpen {
		t.Errorf("parsed artifact name wrong: %+v", r)
	}
	if r.Decision != string(models.DecisionBuy) {
		t.Errorf("expected decision BUY, got %q", r.Decision)
	}
	if r.Status != models.SummaryCompleted {
		t.Errorf("expected status %q, got %q", models.SummaryCompleted, r.Status)
	}
}

func TestArtifactDecisionPrecedence(t *testing.T) {
	summary := &models.DailyTradingSummary{Decision: models.DecisionSell}
	order := &models.Order{Side: models.SideBuy}
	verdict := &models.Verdict{Decision: models.DecisionBuy}

	full := sampleResult("AAPL", "2025-01-09", consts.SessionPostClose, &models.SessionState{
		Summary: summary, Order: order, ResearchVerdict: verdict,
	})
	if got := artifactDecision(full); got != "SELL" {
		t.Errorf("day record should win: got %q", got)
	}

	orderOnly := sampleResult("AAPL", "2025-01-09", consts.SessionMarketOpen, &models.SessionState{
		Order: order, ResearchVerdict: verdict,
	})
	if got := artifactDecision(orderOnly); got != "BUY" {
		t.Errorf("order side should win over verdict: got %q", got)
	}

	verdictOnly := sampleResult("AAPL", "2025-01-09", consts.SessionMarketOpen, &models.SessionState{
		ResearchVerdict: verdict,
	})
	if got := artifactDecision(verdictOnly); got != "BUY" {
		t.Errorf("verdict fallback wrong: got %q", got)
	}

	if got := artifactDecision(sampleResult("AAPL", "2025-01-09", consts.SessionPreOpen, &models.SessionState{})); got != "" {
		t.Errorf("empty state should yield no decision, got %q", got)
	}
	if got := artifactDecision(&session.SessionResult{}); got != "" {
		t.Errorf("nil state should yield no decision, got %q", got)
	}
}

func TestListResultsSortBySymbol(t *testing.T) {
	cfg := testResultsConfig(t)
	for _, sym := range []string{"MSFT", "AAPL", "NVDA"} {
		if _, err := saveSessionArtifact(cfg, sampleResult(sym, "2025-01-09", consts.SessionPreOpen, &models.SessionState{})); err != nil {
			t.Fatalf("save %s: %v", sym, err)
		}
	}

	rm := NewResultsManager(cfg)
	results, err := rm.ListResults("symbol", false)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Symbol != "AAPL" || results[2].Symbol != "NVDA" {
		t.Errorf("symbol sort wrong: %s, %s, %s", results[0].Symbol, results[1].Symbol, results[2].Symbol)
	}

	reversed, err := rm.ListResults("symbol", true)
	if err != nil {
		t.Fatalf("ListResults reversed: %v", err)
	}
	if reversed[0].Symbol != "NVDA" {
		t.Errorf("reversed sort wrong: %s first", reversed[0].Symbol)
	}
}

func TestShowResult(t *testing.T) {
	cfg := testResultsConfig(t)
	rm := NewResultsManager(cfg)

	if err := rm.ShowResult("TSLA", "2025-01-09"); err == nil {
		t.Error("expected error when no artifacts exist")
	}
	if err := rm.ShowResult("TSLA", "01/09/2025"); err == nil {
		t.Error("expected error for malformed date")
	}

	if _, err := saveSessionArtifact(cfg, sampleResult("TSLA", "2025-01-09", consts.SessionPreOpen, &models.SessionState{})); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := rm.ShowResult("TSLA", "2025-01-09"); err != nil {
		t.Errorf("ShowResult with saved artifact: %v", err)
	}
}

func TestDeleteResult(t *testing.T) {
	cfg := testResultsConfig(t)
	rm := NewResultsManager(cfg)

	var paths []string
	for _, sess := range []string{consts.SessionPreOpen, consts.SessionPostClose} {
		path, err := saveSessionArtifact(cfg, sampleResult("AAPL", "2025-01-09", sess, &models.SessionState{}))
		if err != nil {
			t.Fatalf("save %s: %v", sess, err)
		}
		paths = append(paths, path)
	}

	if err := rm.DeleteResult("AAPL", "2025-01-09"); err != nil {
		t.Fatalf("DeleteResult: %v", err)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("artifact still exists: %s", path)
		}
	}

	if err := rm.DeleteResult("AAPL", "2025-01-09"); err == nil {
		t.Error("expected error when nothing is left to delete")
	}
}

func TestExportSummariesCSV(t *testing.T) {
	rm := NewResultsManager(testResultsConfig(t))

	summaries := []*models.DailyTradingSummary{
		{
			Symbol:       "AAPL",
			Date:         tradeDay("2025-01-09"),
			MarketRegime: models.RegimeBull,
			Decision:     models.DecisionBuy,
			StrategyID:   "trend_follow",
			OrderStatus:  models.OrderFilled,
			Quantity:     10,
			FillPrice:    decimal.NewFromFloat(185.5),
			CashAfter:    decimal.NewFromInt(98145),
			TotalValue:   decimal.NewFromInt(100000),
			DailyReturn:  0.0123,
			MaxDrawdown:  0.02,
			Status:       models.SummaryCompleted,
		},
		{
			Symbol:     "AAPL",
			Date:       tradeDay("2025-01-10"),
			Decision:   models.DecisionHold,
			Status:     models.SummarySkipped,
			ReasonCode: "no_new_reports",
		},
	}

	path, err := rm.ExportSummaries("AAPL", summaries, "csv")
	if err != nil {
		t.Fatalf("ExportSummaries: %v", err)
	}
	if got := filepath.Base(path); got != "AAPL_decisions_2025-01-09_2025-01-10.csv" {
		t.Errorf("unexpected export name: %s", got)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "date" || len(rows[0]) != 14 {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][3] != "BUY" {
		t.Errorf("expected BUY decision, got %q", rows[1][3])
	}
	if rows[1][10] != "1.2300" {
		t.Errorf("expected daily return 1.2300, got %q", rows[1][10])
	}
	if rows[2][12] != models.SummarySkipped {
		t.Errorf("expected skipped status, got %q", rows[2][12])
	}
}

func TestExportSummariesErrors(t *testing.T) {
	rm := NewResultsManager(testResultsConfig(t))

	if _, err := rm.ExportSummaries("AAPL", nil, "csv"); err == nil {
		t.Error("expected error for empty records")
	}

	summaries := []*models.DailyTradingSummary{{Symbol: "AAPL", Date: tradeDay("2025-01-09"), Decision: models.DecisionHold}}
	if _, err := rm.ExportSummaries("AAPL", summaries, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestCleanupResultsMaxCount(t *testing.T) {
	cfg := testResultsConfig(t)
	for _, sym := range []string{"AAPL", "MSFT", "NVDA", "TSLA"} {
		if _, err := saveSessionArtifact(cfg, sampleResult(sym, "2025-01-09", consts.SessionPreOpen, &models.SessionState{})); err != nil {
			t.Fatalf("save %s: %v", sym, err)
		}
	}

	rm := NewResultsManager(cfg)
	if err := rm.CleanupResults(0, 2); err != nil {
		t.Fatalf("CleanupResults: %v", err)
	}

	results, err := rm.ListResults("date", false)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 artifacts to remain, got %d", len(results))
	}
}
