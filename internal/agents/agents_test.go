package agents

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/llm/llmtest"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/session"
)

var (
	_ session.Analyst = (*Market)(nil)
	_ session.Analyst = (*News)(nil)
	_ session.Analyst = (*Sentiment)(nil)
	_ session.Analyst = (*Fundamentals)(nil)
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

// risingFeed seeds n weekday candles ending on end, each one closing
// higher than the last.
func risingFeed(t *testing.T, symbol string, end time.Time, n int) *dataflows.StaticFeed {
	t.Helper()
	feed := dataflows.NewStaticFeed()
	date := end
	for i := 0; i < n; {
		if wd := date.Weekday(); wd != time.Saturday && wd != time.Sunday {
			price := 100 + float64(n-i)
			feed.Add(&models.Candle{
				Symbol: symbol,
				Date:   date,
				Open:   decimal.NewFromFloat(price - 0.5),
				High:   decimal.NewFromFloat(price + 1),
				Low:    decimal.NewFromFloat(price - 1),
				Close:  decimal.NewFromFloat(price),
				Volume: 1_000_000,
			})
			i++
		}
		date = date.AddDate(0, 0, -1)
	}
	return feed
}

func scripted(contents ...string) *llm.Client {
	return llm.NewClient(llmtest.Text(contents...), time.Second, 0)
}

func TestComputeIndicatorsKnownSeries(t *testing.T) {
	end := day(t, "2025-01-09")
	feed := dataflows.NewStaticFeed()
	for i := 0; i < 20; i++ {
		price := float64(i + 1)
		feed.Add(&models.Candle{
			Symbol: "CYQ",
			Date:   end.AddDate(0, 0, i-19),
			Open:   decimal.NewFromFloat(price),
			High:   decimal.NewFromFloat(price),
			Low:    decimal.NewFromFloat(price),
			Close:  decimal.NewFromFloat(price),
			Volume: 100,
		})
	}
	candles, err := feed.History("CYQ", end.AddDate(0, 0, -30), end)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	set := computeIndicators(candles)

	if set.Samples != 20 {
		t.Fatalf("samples = %d, want 20", set.Samples)
	}
	if set.Close != 20 {
		t.Errorf("close = %.2f, want 20", set.Close)
	}
	// Monotonic gains keep RSI pinned at the top.
	if set.RSI14 != 100 {
		t.Errorf("rsi = %.2f, want 100", set.RSI14)
	}
	// 20 equal-volume closes 1..20: boll mid is their mean.
	if want := 10.5; math.Abs(set.BollMid-want) > 1e-9 {
		t.Errorf("boll mid = %.4f, want %.4f", set.BollMid, want)
	}
	if math.Abs(set.VWMA20-set.BollMid) > 1e-9 {
		t.Errorf("equal-volume vwma %.4f should match sma %.4f", set.VWMA20, set.BollMid)
	}
	// Too little history for the long averages.
	if set.SMA50 != 0 || set.SMA200 != 0 {
		t.Errorf("long smas should be zero on 20 candles, got %.2f / %.2f", set.SMA50, set.SMA200)
	}
	if want := (20.0/19.0 - 1) * 100; math.Abs(set.DayChange-want) > 1e-9 {
		t.Errorf("day change = %.4f, want %.4f", set.DayChange, want)
	}
}

func TestEMASeriesSeedsWithSMA(t *testing.T) {
	series := emaSeries([]float64{1, 2, 3, 4, 5}, 3)
	if len(series) != 3 {
		t.Fatalf("len = %d, want 3", len(series))
	}
	want := []float64{2, 3, 4}
	for i := range want {
		if math.Abs(series[i]-want[i]) > 1e-9 {
			t.Errorf("series[%d] = %.4f, want %.4f", i, series[i], want[i])
		}
	}
}

func TestMarketAnalystExtractiveReading(t *testing.T) {
	end := day(t, "2025-01-09")
	feed := risingFeed(t, "CYQ", end, 60)

	m := NewMarket(feed, nil)
	if m.Name() != models.AnalystMarket {
		t.Fatalf("name = %q, want %q", m.Name(), models.AnalystMarket)
	}

	rep, err := m.Report(context.Background(), "CYQ", end)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Analyst != models.AnalystMarket || rep.Symbol != "CYQ" {
		t.Fatalf("report identity wrong: %+v", rep)
	}
	if !strings.Contains(rep.Content, "close_50_sma") {
		t.Errorf("content missing indicator table:\n%s", rep.Content)
	}
	// 60 rising closes put price above the 50-day average and pin RSI
	// high, so the extractive reading flags both.
	if !strings.Contains(rep.Content, "above its 50-day average") {
		t.Errorf("extractive reading missing trend sentence:\n%s", rep.Content)
	}
	if !strings.Contains(rep.Content, "overbought") {
		t.Errorf("extractive reading missing oscillator flag:\n%s", rep.Content)
	}
	if rep.Confidence != 0.7 {
		t.Errorf("confidence = %.2f, want 0.7 for 60 samples", rep.Confidence)
	}
}

func TestMarketAnalystUsesNarrative(t *testing.T) {
	end := day(t, "2025-01-09")
	feed := risingFeed(t, "CYQ", end, 30)

	model := llmtest.Text("The tape is drifting lower into support.")
	m := NewMarket(feed, llm.NewClient(model, time.Second, 0))

	rep, err := m.Report(context.Background(), "CYQ", end)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(rep.Content, "drifting lower into support") {
		t.Errorf("narrative missing from content:\n%s", rep.Content)
	}
	if model.Calls() != 1 {
		t.Errorf("model calls = %d, want 1", model.Calls())
	}
}

func TestMarketAnalystMissingHistory(t *testing.T) {
	m := NewMarket(dataflows.NewStaticFeed(), nil)

	_, err := m.Report(context.Background(), "CYQ", day(t, "2025-01-09"))
	if err == nil {
		t.Fatal("expected error on empty history")
	}
	var missing *models.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingDataError", err)
	}
}

type stubNews struct {
	company    []*dataflows.NewsArticle
	companyErr error
	google     []*dataflows.NewsArticle
	googleErr  error
	googled    int
}

func (s *stubNews) CompanyNews(symbol string, from, to time.Time) ([]*dataflows.NewsArticle, error) {
	return s.company, s.companyErr
}

func (s *stubNews) GoogleNews(query string, startDate, endDate time.Time, maxResults int) ([]*dataflows.NewsArticle, error) {
	s.googled++
	return s.google, s.googleErr
}

func article(title string, published time.Time) *dataflows.NewsArticle {
	return &dataflows.NewsArticle{Title: title, Source: "wire", PublishedAt: published}
}

func TestNewsAnalystDedupesAndReports(t *testing.T) {
	end := day(t, "2025-01-09")
	src := &stubNews{company: []*dataflows.NewsArticle{
		article("CYQ beats on earnings", end),
		article("CYQ beats on earnings", end.AddDate(0, 0, -1)),
		article("CYQ announces buyback", end.AddDate(0, 0, -2)),
		article("Supplier warns on CYQ volumes", end.AddDate(0, 0, -3)),
	}}

	n := NewNews(src, nil)
	rep, err := n.Report(context.Background(), "CYQ", end)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if !strings.Contains(rep.Content, "(3 articles)") {
		t.Errorf("dedupe failed:\n%s", rep.Content)
	}
	if !strings.Contains(rep.Content, "CYQ beats on earnings") {
		t.Errorf("lead headline missing:\n%s", rep.Content)
	}
	if src.googled != 0 {
		t.Errorf("should not widen with enough company coverage, googled %d times", src.googled)
	}
	if want := 0.3; math.Abs(rep.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %.2f, want %.2f", rep.Confidence, want)
	}
}

func TestNewsAnalystWidensThinCoverage(t *testing.T) {
	end := day(t, "2025-01-09")
	src := &stubNews{
		company: []*dataflows.NewsArticle{article("CYQ files 10-K", end)},
		google: []*dataflows.NewsArticle{
			article("CYQ stock pops", end),
			article("Analysts split on CYQ", end.AddDate(0, 0, -1)),
		},
	}

	n := NewNews(src, nil)
	rep, err := n.Report(context.Background(), "CYQ", end)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if src.googled != 1 {
		t.Fatalf("googled = %d, want 1", src.googled)
	}
	if !strings.Contains(rep.Content, "(3 articles)") {
		t.Errorf("widened set should carry 3 articles:\n%s", rep.Content)
	}
}

func TestNewsAnalystBothSourcesDown(t *testing.T) {
	src := &stubNews{
		companyErr: fmt.Errorf("finnhub 429"),
		googleErr:  fmt.Errorf("scrape blocked"),
	}

	n := NewNews(src, nil)
	if _, err := n.Report(context.Background(), "CYQ", day(t, "2025-01-09")); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

type stubInsiders struct {
	sentiments   []*dataflows.InsiderSentiment
	transactions []*dataflows.InsiderTransaction
	err          error
}

func (s *stubInsiders) InsiderSentiment(symbol string, from, to time.Time) ([]*dataflows.InsiderSentiment, error) {
	return s.sentiments, s.err
}

func (s *stubInsiders) InsiderTransactions(symbol string, from, to time.Time) ([]*dataflows.InsiderTransaction, error) {
	return s.transactions, s.err
}

func TestSentimentAnalystExtractiveLean(t *testing.T) {
	src := &stubInsiders{sentiments: []*dataflows.InsiderSentiment{
		{Symbol: "CYQ", Year: 2024, Month: 11, Change: 500, MSPR: decimal.NewFromFloat(0.4)},
		{Symbol: "CYQ", Year: 2024, Month: 12, Change: -200, MSPR: decimal.NewFromFloat(-0.1)},
	}}

	s := NewSentiment(src, nil, nil)
	if s.Name() != models.AnalystSentiment {
		t.Fatalf("name = %q", s.Name())
	}

	rep, err := s.Report(context.Background(), "CYQ", day(t, "2025-01-09"))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(rep.Content, "accumulating") {
		t.Errorf("net +300 shares should read as accumulating:\n%s", rep.Content)
	}
	if want := 0.6; math.Abs(rep.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %.2f, want %.2f", rep.Confidence, want)
	}
}

func TestSentimentAnalystNoEvidence(t *testing.T) {
	s := NewSentiment(&stubInsiders{}, nil, nil)

	_, err := s.Report(context.Background(), "CYQ", day(t, "2025-01-09"))
	var missing *models.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingDataError", err)
	}
}

type stubProfile struct {
	info map[string]interface{}
	err  error
}

func (s *stubProfile) CompanyInfo(symbol string) (map[string]interface{}, error) {
	return s.info, s.err
}

func TestFundamentalsAnalystReport(t *testing.T) {
	profile := &stubProfile{info: map[string]interface{}{
		"longName":   "Cyq Industries",
		"sector":     "Technology",
		"trailingPE": 24.5,
	}}
	insiders := &stubInsiders{transactions: []*dataflows.InsiderTransaction{
		{Symbol: "CYQ", PersonName: "J Doe", Change: 1000, TransactionDate: day(t, "2024-12-20"), TransactionPrice: decimal.NewFromInt(95)},
	}}

	f := NewFundamentals(profile, insiders, nil)
	if f.Name() != models.AnalystFundamentals {
		t.Fatalf("name = %q", f.Name())
	}

	rep, err := f.Report(context.Background(), "CYQ", day(t, "2025-01-09"))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(rep.Content, "longName: Cyq Industries") {
		t.Errorf("profile fields missing:\n%s", rep.Content)
	}
	if !strings.Contains(rep.Content, "operates in Technology") {
		t.Errorf("extractive sentence missing:\n%s", rep.Content)
	}
	if want := 0.5; math.Abs(rep.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %.2f, want %.2f", rep.Confidence, want)
	}
}

func TestFundamentalsAnalystProfileDown(t *testing.T) {
	f := NewFundamentals(&stubProfile{err: fmt.Errorf("quote api down")}, nil, nil)

	if _, err := f.Report(context.Background(), "CYQ", day(t, "2025-01-09")); err == nil {
		t.Fatal("expected error when the profile source fails")
	}
}

func TestNarrateWithoutClientFails(t *testing.T) {
	if _, err := narrate(context.Background(), nil, "sys", "evidence"); err == nil {
		t.Fatal("narrate should fail without a client")
	}
}

func TestScriptedNarrateRoundTrip(t *testing.T) {
	client := scripted("   A clean read.  ")
	got, err := narrate(context.Background(), client, "sys", "evidence")
	if err != nil {
		t.Fatalf("narrate: %v", err)
	}
	if got != "A clean read." {
		t.Errorf("narrate = %q", got)
	}
}
