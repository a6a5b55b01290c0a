package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
)

func testConfig() *config.Config {
	return &config.Config{
		IntradayLookbackDays: 1,
		DailyLookbackDays:    7,
		SlowLookbackDays:     30,
		SlowCycleDays:        7,
		DigestMaxChars:       2000,
		DedupSimilarity:      0.85,
		MinConfidence:        0.3,
	}
}

func testService(t *testing.T, chatModel model.BaseChatModel) *Service {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var client *llm.Client
	if chatModel != nil {
		client = llm.NewClient(chatModel, time.Second, 0)
	}
	return NewService(store, client, testConfig())
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func report(symbol, analyst, date, content string, confidence float64) *models.AnalystReport {
	return &models.AnalystReport{
		Symbol:     symbol,
		Analyst:    analyst,
		TradeDate:  day(date),
		Content:    content,
		Confidence: confidence,
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		report *models.AnalystReport
	}{
		{"unknown analyst", report("AAPL", "astrologer", "2024-03-04", "stars align", 0.5)},
		{"empty symbol", report("  ", models.AnalystMarket, "2024-03-04", "gap up", 0.5)},
		{"empty content", report("AAPL", models.AnalystMarket, "2024-03-04", "   ", 0.5)},
		{"zero trade date", &models.AnalystReport{Symbol: "AAPL", Analyst: models.AnalystMarket, Content: "gap up"}},
		{"future trade date", report("AAPL", models.AnalystMarket, "2099-01-01", "gap up", 0.5)},
		{"confidence above one", report("AAPL", models.AnalystMarket, "2024-03-04", "gap up", 1.5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Submit(ctx, tc.report)
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Submit() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestSubmitDefaults(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	r := report("aapl", models.AnalystMarket, "2024-03-04", "gap up on volume", 0)
	if err := svc.Submit(ctx, r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if r.ID == "" {
		t.Error("Submit did not assign an ID")
	}
	if r.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want normalized AAPL", r.Symbol)
	}
	if r.Stream != models.StreamIntraday {
		t.Errorf("stream = %q, want %q", r.Stream, models.StreamIntraday)
	}
	if r.Confidence != 1 {
		t.Errorf("confidence = %v, want default 1", r.Confidence)
	}
	if r.CreatedAt.IsZero() {
		t.Error("Submit did not stamp created_at")
	}

	got, err := svc.Query(ctx, "AAPL", models.AnalystMarket, day("2024-03-04"), 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Content != "gap up on volume" {
		t.Fatalf("Query returned %+v, want the submitted report", got)
	}
}

func TestQueryWindow(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	for _, d := range []string{"2024-02-20", "2024-03-01", "2024-03-04"} {
		if err := svc.Submit(ctx, report("AAPL", models.AnalystNews, d, "headline from "+d, 0.8)); err != nil {
			t.Fatalf("Submit(%s): %v", d, err)
		}
	}

	got, err := svc.Query(ctx, "AAPL", models.AnalystNews, day("2024-03-04"), 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2 inside the 7-day window", len(got))
	}
	if !got[0].TradeDate.Equal(day("2024-03-04")) || !got[1].TradeDate.Equal(day("2024-03-01")) {
		t.Errorf("reports out of order: %s then %s",
			got[0].TradeDate.Format("2006-01-02"), got[1].TradeDate.Format("2006-01-02"))
	}
}

func TestSummaryAcrossSessions(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()
	d := day("2024-03-04")

	if err := svc.Submit(ctx, report("AAPL", models.AnalystMarket, "2024-03-04", "holding above the 20-day average", 0.9)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	pre, err := svc.Summary(ctx, "AAPL", models.AnalystMarket, d, consts.SessionPreOpen)
	if err != nil {
		t.Fatalf("Summary(pre_open): %v", err)
	}
	if pre.TodaySnapshot != "holding above the 20-day average" {
		t.Errorf("today snapshot = %q", pre.TodaySnapshot)
	}
	if pre.PreSessionDigest != "" {
		t.Errorf("pre-session digest = %q, want empty before any consolidation", pre.PreSessionDigest)
	}
	if pre.PostSessionDigest != "" {
		t.Errorf("post-session digest = %q, want empty at pre_open", pre.PostSessionDigest)
	}

	if _, err := svc.Consolidate(ctx, "AAPL", models.StreamIntraday, d, consts.SessionPostClose); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	post, err := svc.Summary(ctx, "AAPL", models.AnalystMarket, d, consts.SessionPostClose)
	if err != nil {
		t.Fatalf("Summary(post_close): %v", err)
	}
	if post.PostSessionDigest == "" {
		t.Error("post-close summary missing the day's digest")
	}

	nextPre, err := svc.Summary(ctx, "AAPL", models.AnalystMarket, d.AddDate(0, 0, 1), consts.SessionPreOpen)
	if err != nil {
		t.Fatalf("Summary(next pre_open): %v", err)
	}
	if nextPre.TodaySnapshot != "" {
		t.Errorf("next-day snapshot = %q, want empty", nextPre.TodaySnapshot)
	}
	if nextPre.PreSessionDigest == "" {
		t.Error("next-day pre-open summary missing the previous digest")
	}
}

func TestSummaryNewestSnapshotWins(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	early := report("AAPL", models.AnalystMarket, "2024-03-04", "flat at the open", 0.9)
	early.CreatedAt = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	late := report("AAPL", models.AnalystMarket, "2024-03-04", "breaking out after lunch", 0.9)
	late.CreatedAt = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

	// Insert order must not matter, only created_at.
	for _, r := range []*models.AnalystReport{late, early} {
		if err := svc.Submit(ctx, r); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	sum, err := svc.Summary(ctx, "AAPL", models.AnalystMarket, day("2024-03-04"), consts.SessionPreOpen)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TodaySnapshot != "breaking out after lunch" {
		t.Errorf("today snapshot = %q, want the newest intraday report", sum.TodaySnapshot)
	}
}

func TestRecordReflection(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	err := svc.RecordReflection(ctx, &models.ReflectionNote{Symbol: "AAPL", Outcome: models.OutcomeWin})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("RecordReflection without lesson: error = %v, want ValidationError", err)
	}

	note := &models.ReflectionNote{
		Symbol:    "aapl",
		TradeDate: day("2024-03-04"),
		Outcome:   models.OutcomeLoss,
		Lesson:    "momentum entries against the weekly digest keep failing",
	}
	if err := svc.RecordReflection(ctx, note); err != nil {
		t.Fatalf("RecordReflection: %v", err)
	}

	notes, err := svc.Reflections(ctx, "AAPL", 5)
	if err != nil {
		t.Fatalf("Reflections: %v", err)
	}
	if len(notes) != 1 || notes[0].Lesson != note.Lesson {
		t.Fatalf("Reflections returned %+v, want the recorded note", notes)
	}
}
