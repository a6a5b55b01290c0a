// Package memory owns the tiered analyst memory: report ingestion,
// windowed queries, per-session summaries, and boundary-gated
// consolidation into bounded digests. The market analyst writes the
// intraday stream, news and sentiment share the daily stream, and
// fundamentals feed the slow stream.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
)

const dateLayout = "2006-01-02"

// Service mediates every access to the analyst memory tiers. Writers
// and the consolidator share a per (symbol, stream) gate, so a digest
// never consolidates an in-flight append for the same stream.
type Service struct {
	store  *sqlite.Store
	client *llm.Client // nil switches digests to the extractive path
	cfg    *config.Config

	mu    sync.Mutex
	gates map[string]*sync.Mutex
}

func NewService(store *sqlite.Store, client *llm.Client, cfg *config.Config) *Service {
	return &Service{
		store:  store,
		client: client,
		cfg:    cfg,
		gates:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) gate(symbol string, stream models.MemoryStream) *sync.Mutex {
	key := symbol + "/" + string(stream)
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[key]
	if !ok {
		g = &sync.Mutex{}
		s.gates[key] = g
	}
	return g
}

// Submit validates and appends one analyst report. The stream is
// derived from the analyst type, never trusted from the caller. A
// zero confidence means the analyst did not score the report and it
// carries full weight.
func (s *Service) Submit(ctx context.Context, r *models.AnalystReport) error {
	if r == nil {
		return &models.ValidationError{Field: "report", Reason: "is required"}
	}
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Symbol == "" {
		return &models.ValidationError{Field: "symbol", Reason: "is required"}
	}
	stream := models.StreamForAnalyst(r.Analyst)
	if stream == "" {
		return &models.ValidationError{Field: "analyst", Reason: fmt.Sprintf("unknown analyst type %q", r.Analyst)}
	}
	r.Stream = stream
	if strings.TrimSpace(r.Content) == "" {
		return &models.ValidationError{Field: "content", Reason: "is empty"}
	}
	if r.TradeDate.IsZero() {
		return &models.ValidationError{Field: "trade_date", Reason: "is required"}
	}
	if r.TradeDate.Format(dateLayout) > time.Now().Format(dateLayout) {
		return &models.ValidationError{Field: "trade_date", Reason: "is in the future"}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &models.ValidationError{Field: "confidence", Reason: "must be in [0, 1]"}
	}
	if r.Confidence == 0 {
		r.Confidence = 1
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	g := s.gate(r.Symbol, stream)
	g.Lock()
	defer g.Unlock()
	return s.store.InsertReport(ctx, r)
}

// Query returns one analyst's active reports inside the lookback
// window ending at asOf, newest first. A non-positive lookback falls
// back to the configured default for the analyst's stream.
func (s *Service) Query(ctx context.Context, symbol, analyst string, asOf time.Time, lookbackDays int) ([]*models.AnalystReport, error) {
	stream := models.StreamForAnalyst(analyst)
	if stream == "" {
		return nil, &models.ValidationError{Field: "analyst", Reason: fmt.Sprintf("unknown analyst type %q", analyst)}
	}
	if lookbackDays <= 0 {
		lookbackDays = s.lookbackDays(stream)
	}
	start := asOf.AddDate(0, 0, -(lookbackDays - 1))
	return s.store.QueryReportsByAnalyst(ctx, strings.ToUpper(symbol), analyst, start, asOf)
}

func (s *Service) lookbackDays(stream models.MemoryStream) int {
	switch stream {
	case models.StreamIntraday:
		return s.cfg.IntradayLookbackDays
	case models.StreamDaily:
		return s.cfg.DailyLookbackDays
	default:
		return s.cfg.SlowLookbackDays
	}
}

// Summary regenerates one analyst's memory view for a session. The
// today snapshot is the analyst's newest report for the date, the
// pre-session digest is the last one closed before the date, and the
// post-session digest appears only once post-close consolidation has
// run for the date itself.
func (s *Service) Summary(ctx context.Context, symbol, analyst string, date time.Time, session string) (models.MemorySummary, error) {
	symbol = strings.ToUpper(symbol)
	sum := models.MemorySummary{Analyst: analyst, Symbol: symbol}

	stream := models.StreamForAnalyst(analyst)
	if stream == "" {
		return sum, &models.ValidationError{Field: "analyst", Reason: fmt.Sprintf("unknown analyst type %q", analyst)}
	}

	rep, err := s.store.LatestReport(ctx, symbol, analyst, date)
	if err != nil {
		return sum, fmt.Errorf("load today snapshot: %w", err)
	}
	if rep != nil {
		sum.TodaySnapshot = rep.Content
	}

	pre, err := s.store.LatestDigest(ctx, symbol, stream, date.AddDate(0, 0, -1))
	if err != nil {
		return sum, fmt.Errorf("load pre-session digest: %w", err)
	}
	if pre != nil {
		sum.PreSessionDigest = pre.Content
	}

	if session == consts.SessionPostClose {
		post, err := s.store.DigestAt(ctx, symbol, stream, date)
		if err != nil {
			return sum, fmt.Errorf("load post-session digest: %w", err)
		}
		if post != nil {
			sum.PostSessionDigest = post.Content
		}
	}
	return sum, nil
}

// Reflections returns the newest reflection lessons for a symbol.
func (s *Service) Reflections(ctx context.Context, symbol string, limit int) ([]*models.ReflectionNote, error) {
	return s.store.RecentReflections(ctx, strings.ToUpper(symbol), limit)
}

// RecordReflection stores a lesson drawn from a completed cycle so
// later fusion contexts can surface it.
func (s *Service) RecordReflection(ctx context.Context, n *models.ReflectionNote) error {
	if n == nil {
		return &models.ValidationError{Field: "reflection", Reason: "is required"}
	}
	n.Symbol = strings.ToUpper(strings.TrimSpace(n.Symbol))
	if n.Symbol == "" {
		return &models.ValidationError{Field: "symbol", Reason: "is required"}
	}
	if strings.TrimSpace(n.Lesson) == "" {
		return &models.ValidationError{Field: "lesson", Reason: "is empty"}
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return s.store.InsertReflection(ctx, n)
}
