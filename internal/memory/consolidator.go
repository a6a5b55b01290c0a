package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/models"
)

// ErrBoundaryViolation rejects a consolidation invoked outside its
// timescale's session boundary. Callers treat it as a caller bug, not
// a retryable condition.
var ErrBoundaryViolation = errors.New("consolidation outside its timescale boundary")

// feederStream returns the faster stream whose digests feed this one.
// Digests are the only promotion path between streams; raw intraday
// reports never reach the slow tier directly.
func feederStream(stream models.MemoryStream) models.MemoryStream {
	switch stream {
	case models.StreamDaily:
		return models.StreamIntraday
	case models.StreamSlow:
		return models.StreamDaily
	default:
		return ""
	}
}

// IsSlowBoundary reports whether the date closes a slow cycle. Weekly
// cycles close on Fridays, longer ones on the last calendar day of
// the month.
func (s *Service) IsSlowBoundary(date time.Time) bool {
	if s.cfg.SlowCycleDays <= 7 {
		return date.Weekday() == time.Friday
	}
	return date.AddDate(0, 0, 1).Day() == 1
}

// Consolidated reports whether the stream's digest for the date has
// been written. The digest row doubles as the completion marker.
func (s *Service) Consolidated(ctx context.Context, symbol string, stream models.MemoryStream, date time.Time) (bool, error) {
	d, err := s.store.DigestAt(ctx, strings.ToUpper(symbol), stream, date)
	if err != nil {
		return false, err
	}
	return d != nil, nil
}

// sourceEntry is one unit of digest input: a surviving report or a
// feeder-stream digest.
type sourceEntry struct {
	date       time.Time
	label      string
	content    string
	confidence float64
}

// Consolidate merges a stream's lookback window into one bounded
// digest and writes it. It runs only at the post-close boundary; the
// daily stream additionally requires the same date's intraday digest
// to be closed, and the slow stream requires a cycle end plus the
// daily digest. A digest row is written even for an empty window so
// the boundary stays marked as completed.
func (s *Service) Consolidate(ctx context.Context, symbol string, stream models.MemoryStream, date time.Time, session string) (*models.MemoryDigest, error) {
	symbol = strings.ToUpper(symbol)
	switch stream {
	case models.StreamIntraday, models.StreamDaily, models.StreamSlow:
	default:
		return nil, &models.ValidationError{Field: "stream", Reason: fmt.Sprintf("unknown stream %q", stream)}
	}
	if session != consts.SessionPostClose {
		return nil, fmt.Errorf("%w: %s stream consolidates at %s, not %s", ErrBoundaryViolation, stream, consts.SessionPostClose, session)
	}
	if stream == models.StreamSlow && !s.IsSlowBoundary(date) {
		return nil, fmt.Errorf("%w: %s does not close a slow cycle", ErrBoundaryViolation, date.Format(dateLayout))
	}
	if feeder := feederStream(stream); feeder != "" {
		done, err := s.Consolidated(ctx, symbol, feeder, date)
		if err != nil {
			return nil, fmt.Errorf("check %s digest: %w", feeder, err)
		}
		if !done {
			return nil, fmt.Errorf("%w: %s digest for %s not closed yet", ErrBoundaryViolation, feeder, date.Format(dateLayout))
		}
	}

	lookback := s.lookbackDays(stream)
	start := date.AddDate(0, 0, -(lookback - 1))

	g := s.gate(symbol, stream)
	g.Lock()
	defer g.Unlock()

	reports, err := s.store.QueryReports(ctx, symbol, stream, start, date)
	if err != nil {
		return nil, fmt.Errorf("load %s reports: %w", stream, err)
	}

	var (
		entries []sourceEntry
		pruned  []string
	)
	for _, r := range reports {
		if r.Confidence < s.cfg.MinConfidence {
			pruned = append(pruned, r.ID)
			continue
		}
		entries = append(entries, sourceEntry{
			date:       r.TradeDate,
			label:      r.Analyst,
			content:    r.Content,
			confidence: r.Confidence,
		})
	}
	if feeder := feederStream(stream); feeder != "" {
		digests, err := s.store.DigestsBetween(ctx, symbol, feeder, start, date)
		if err != nil {
			return nil, fmt.Errorf("load %s digests: %w", feeder, err)
		}
		for _, d := range digests {
			if d.SourceCount == 0 {
				continue
			}
			entries = append(entries, sourceEntry{
				date:       d.PeriodEnd,
				label:      string(d.Stream) + " digest",
				content:    d.Content,
				confidence: d.Confidence,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].date.After(entries[j].date)
	})
	entries = s.dedupe(entries)

	if len(pruned) > 0 {
		if err := s.store.DeactivateReports(ctx, pruned); err != nil {
			return nil, fmt.Errorf("prune low-confidence reports: %w", err)
		}
		log.Printf("[Memory] pruned %d low-confidence %s reports for %s", len(pruned), stream, symbol)
	}

	content := truncate(s.renderDigest(ctx, symbol, stream, start, date, entries), s.cfg.DigestMaxChars)

	confidence := 0.0
	for _, e := range entries {
		confidence += e.confidence
	}
	if len(entries) > 0 {
		confidence /= float64(len(entries))
	}

	digest := &models.MemoryDigest{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		Stream:      stream,
		PeriodStart: start,
		PeriodEnd:   date,
		Content:     content,
		SourceCount: len(entries),
		Confidence:  confidence,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.UpsertDigest(ctx, digest); err != nil {
		return nil, fmt.Errorf("write %s digest: %w", stream, err)
	}
	log.Printf("[Memory] consolidated %s %s for %s from %d sources", symbol, stream, date.Format(dateLayout), len(entries))
	return digest, nil
}

// dedupe drops entries near-identical to one already kept. Entries
// arrive newest first, so the newer of two duplicates survives. The
// dropped reports stay active; only the digest ignores them.
func (s *Service) dedupe(entries []sourceEntry) []sourceEntry {
	var (
		kept   []sourceEntry
		tokens []map[string]struct{}
	)
	for _, e := range entries {
		toks := tokenSet(e.content)
		dup := false
		for _, kt := range tokens {
			if jaccard(toks, kt) >= s.cfg.DedupSimilarity {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, e)
		tokens = append(tokens, toks)
	}
	return kept
}

func (s *Service) renderDigest(ctx context.Context, symbol string, stream models.MemoryStream, start, end time.Time, entries []sourceEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No %s reports for %s between %s and %s.",
			stream, symbol, start.Format(dateLayout), end.Format(dateLayout))
	}
	if s.client != nil {
		content, err := s.summarize(ctx, symbol, stream, start, end, entries)
		if err == nil {
			return content
		}
		log.Printf("[Memory] %s digest summarizer failed, using extractive fallback: %v", stream, err)
	}
	return extractDigest(entries)
}

func (s *Service) summarize(ctx context.Context, symbol string, stream models.MemoryStream, start, end time.Time, entries []sourceEntry) (string, error) {
	var notes strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&notes, "[%s] %s: %s\n\n", e.date.Format(dateLayout), e.label, e.content)
	}
	messages := []*schema.Message{
		schema.SystemMessage("You are the memory consolidator on a trading desk. " +
			"Merge the analyst notes into a single digest. Keep concrete figures, dates and direction calls, " +
			"drop filler, and resolve contradictions in favor of the newer note."),
		schema.UserMessage(fmt.Sprintf(
			"Symbol: %s\nTimescale: %s\nWindow: %s to %s\n\nNotes, newest first:\n\n%sWrite the digest in under %d characters as plain prose, no preamble.",
			symbol, stream, start.Format(dateLayout), end.Format(dateLayout), notes.String(), s.cfg.DigestMaxChars)),
	}
	return s.client.Generate(ctx, messages)
}

// extractDigest is the no-LLM fallback: one clipped line per source,
// newest first.
func extractDigest(entries []sourceEntry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%s] %s: %s", e.date.Format(dateLayout), e.label, firstSentence(e.content))
	}
	return sb.String()
}

// firstSentence clips a report to its leading sentence, bounded so
// one verbose source cannot crowd out the rest.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "\n"); i > 0 {
		text = strings.TrimSpace(text[:i])
	}
	if i := strings.Index(text, ". "); i > 0 {
		text = text[:i+1]
	}
	return truncate(text, 240)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
