package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/tradecycle/internal/models"
)

// InsertReport appends one analyst report. Reports are immutable once
// stored; there is no update path.
func (s *Store) InsertReport(ctx context.Context, r *models.AnalystReport) error {
	if r == nil {
		return fmt.Errorf("report is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO analyst_reports (id, symbol, analyst, stream, trade_date, content, confidence, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
`, r.ID, r.Symbol, r.Analyst, string(r.Stream), formatDate(r.TradeDate), r.Content, r.Confidence, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// QueryReports returns the active reports for one stream inside
// [start, end], newest first.
func (s *Store) QueryReports(ctx context.Context, symbol string, stream models.MemoryStream, start, end time.Time) ([]*models.AnalystReport, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, analyst, stream, trade_date, content, confidence, created_at
FROM analyst_reports
WHERE symbol = ? AND stream = ? AND trade_date >= ? AND trade_date <= ? AND active = 1
ORDER BY trade_date DESC, created_at DESC
`, symbol, string(stream), formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// QueryReportsByAnalyst returns one analyst's active reports inside
// [start, end], newest first.
func (s *Store) QueryReportsByAnalyst(ctx context.Context, symbol, analyst string, start, end time.Time) ([]*models.AnalystReport, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, analyst, stream, trade_date, content, confidence, created_at
FROM analyst_reports
WHERE symbol = ? AND analyst = ? AND trade_date >= ? AND trade_date <= ? AND active = 1
ORDER BY trade_date DESC, created_at DESC
`, symbol, analyst, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("query reports by analyst: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// LatestReport returns the newest report an analyst produced on a
// trade date, or nil when none exists. The market analyst submits
// several snapshots per day; callers get the last one.
func (s *Store) LatestReport(ctx context.Context, symbol, analyst string, tradeDate time.Time) (*models.AnalystReport, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, analyst, stream, trade_date, content, confidence, created_at
FROM analyst_reports
WHERE symbol = ? AND analyst = ? AND trade_date = ? AND active = 1
ORDER BY created_at DESC
LIMIT 1
`, symbol, analyst, formatDate(tradeDate))

	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	return r, nil
}

// DeactivateReports soft-prunes reports so later queries and digests
// never reintroduce them.
func (s *Store) DeactivateReports(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE analyst_reports SET active = 0 WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("deactivate reports: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.AnalystReport, error) {
	var (
		r         models.AnalystReport
		stream    string
		tradeDate string
		createdAt string
	)
	if err := row.Scan(&r.ID, &r.Symbol, &r.Analyst, &stream, &tradeDate, &r.Content, &r.Confidence, &createdAt); err != nil {
		return nil, err
	}
	r.Stream = models.MemoryStream(stream)
	r.TradeDate = parseDate(tradeDate)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func scanReports(rows *sql.Rows) ([]*models.AnalystReport, error) {
	var reports []*models.AnalystReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report rows: %w", err)
	}
	return reports, nil
}

// UpsertDigest writes a consolidation digest. Re-consolidating the same
// (symbol, stream, period end) replaces the previous digest.
func (s *Store) UpsertDigest(ctx context.Context, d *models.MemoryDigest) error {
	if d == nil {
		return fmt.Errorf("digest is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO memory_digests (id, symbol, stream, period_start, period_end, content, source_count, confidence, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(symbol, stream, period_end) DO UPDATE SET
    content=excluded.content,
    period_start=excluded.period_start,
    source_count=excluded.source_count,
    confidence=excluded.confidence,
    created_at=excluded.created_at
`, d.ID, d.Symbol, string(d.Stream), formatDate(d.PeriodStart), formatDate(d.PeriodEnd),
		d.Content, d.SourceCount, d.Confidence, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert digest: %w", err)
	}
	return nil
}

// LatestDigest returns the newest digest for a stream with period end
// on or before the given date, or nil when none exists.
func (s *Store) LatestDigest(ctx context.Context, symbol string, stream models.MemoryStream, onOrBefore time.Time) (*models.MemoryDigest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, stream, period_start, period_end, content, source_count, confidence, created_at
FROM memory_digests
WHERE symbol = ? AND stream = ? AND period_end <= ?
ORDER BY period_end DESC
LIMIT 1
`, symbol, string(stream), formatDate(onOrBefore))

	d, err := scanDigest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest digest: %w", err)
	}
	return d, nil
}

// DigestAt returns the digest whose period ends exactly on the given
// date, or nil. Its existence marks that stream's consolidation for
// the date as completed.
func (s *Store) DigestAt(ctx context.Context, symbol string, stream models.MemoryStream, periodEnd time.Time) (*models.MemoryDigest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, stream, period_start, period_end, content, source_count, confidence, created_at
FROM memory_digests
WHERE symbol = ? AND stream = ? AND period_end = ?
LIMIT 1
`, symbol, string(stream), formatDate(periodEnd))

	d, err := scanDigest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("digest at: %w", err)
	}
	return d, nil
}

// DigestsBetween returns a stream's digests whose period ends fall
// inside [start, end], newest first. Consolidation reads the faster
// stream's window through this.
func (s *Store) DigestsBetween(ctx context.Context, symbol string, stream models.MemoryStream, start, end time.Time) ([]*models.MemoryDigest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, stream, period_start, period_end, content, source_count, confidence, created_at
FROM memory_digests
WHERE symbol = ? AND stream = ? AND period_end >= ? AND period_end <= ?
ORDER BY period_end DESC
`, symbol, string(stream), formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("digests between: %w", err)
	}
	defer rows.Close()

	var digests []*models.MemoryDigest
	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("digest rows: %w", err)
	}
	return digests, nil
}

func scanDigest(row rowScanner) (*models.MemoryDigest, error) {
	var (
		d           models.MemoryDigest
		stream      string
		periodStart string
		periodEnd   string
		createdAt   string
	)
	if err := row.Scan(&d.ID, &d.Symbol, &stream, &periodStart, &periodEnd, &d.Content, &d.SourceCount, &d.Confidence, &createdAt); err != nil {
		return nil, err
	}
	d.Stream = models.MemoryStream(stream)
	d.PeriodStart = parseDate(periodStart)
	d.PeriodEnd = parseDate(periodEnd)
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

// InsertReflection stores one lesson from the reflection pass.
func (s *Store) InsertReflection(ctx context.Context, n *models.ReflectionNote) error {
	if n == nil {
		return fmt.Errorf("reflection is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reflections (id, symbol, trade_date, outcome, lesson, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, n.ID, n.Symbol, formatDate(n.TradeDate), n.Outcome, n.Lesson, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert reflection: %w", err)
	}
	return nil
}

// RecentReflections returns the newest lessons for a symbol.
func (s *Store) RecentReflections(ctx context.Context, symbol string, limit int) ([]*models.ReflectionNote, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, trade_date, outcome, lesson, created_at
FROM reflections
WHERE symbol = ?
ORDER BY trade_date DESC, created_at DESC
LIMIT ?
`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("recent reflections: %w", err)
	}
	defer rows.Close()

	var notes []*models.ReflectionNote
	for rows.Next() {
		var (
			n         models.ReflectionNote
			tradeDate string
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.Symbol, &tradeDate, &n.Outcome, &n.Lesson, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		n.TradeDate = parseDate(tradeDate)
		n.CreatedAt = parseTime(createdAt)
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reflection rows: %w", err)
	}
	return notes, nil
}
