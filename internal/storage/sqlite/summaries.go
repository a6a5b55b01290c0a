package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dyike/tradecycle/internal/models"
)

// UpsertSummary writes the daily trading summary for one symbol-day.
// Re-running a day replaces its record.
func (s *Store) UpsertSummary(ctx context.Context, sum *models.DailyTradingSummary) error {
	if sum == nil {
		return fmt.Errorf("summary is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO daily_summaries (id, symbol, trade_date, market_regime, decision, strategy_id, expected_behavior,
    order_id, order_status, quantity, fill_price, cash_after, total_value, daily_return, max_drawdown,
    status, reason_code, reflection, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(symbol, trade_date) DO UPDATE SET
    market_regime=excluded.market_regime,
    decision=excluded.decision,
    strategy_id=excluded.strategy_id,
    expected_behavior=excluded.expected_behavior,
    order_id=excluded.order_id,
    order_status=excluded.order_status,
    quantity=excluded.quantity,
    fill_price=excluded.fill_price,
    cash_after=excluded.cash_after,
    total_value=excluded.total_value,
    daily_return=excluded.daily_return,
    max_drawdown=excluded.max_drawdown,
    status=excluded.status,
    reason_code=excluded.reason_code,
    reflection=excluded.reflection,
    created_at=excluded.created_at
`, sum.ID, sum.Symbol, formatDate(sum.Date), string(sum.MarketRegime), string(sum.Decision),
		sum.StrategyID, sum.ExpectedBehavior, sum.OrderID, string(sum.OrderStatus), sum.Quantity,
		formatDecimal(sum.FillPrice), formatDecimal(sum.CashAfter), formatDecimal(sum.TotalValue),
		sum.DailyReturn, sum.MaxDrawdown, sum.Status, sum.ReasonCode, sum.Reflection,
		formatTime(sum.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// SummaryForDay returns one symbol-day summary, or nil when absent.
func (s *Store) SummaryForDay(ctx context.Context, symbol string, date time.Time) (*models.DailyTradingSummary, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, trade_date, market_regime, decision, strategy_id, expected_behavior,
    order_id, order_status, quantity, fill_price, cash_after, total_value, daily_return, max_drawdown,
    status, reason_code, reflection, created_at
FROM daily_summaries
WHERE symbol = ? AND trade_date = ?
LIMIT 1
`, symbol, formatDate(date))

	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("summary for day: %w", err)
	}
	return sum, nil
}

// SummariesBetween returns a symbol's summaries inside [start, end],
// oldest first. The reflection pass reads a full cycle through this.
func (s *Store) SummariesBetween(ctx context.Context, symbol string, start, end time.Time) ([]*models.DailyTradingSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, trade_date, market_regime, decision, strategy_id, expected_behavior,
    order_id, order_status, quantity, fill_price, cash_after, total_value, daily_return, max_drawdown,
    status, reason_code, reflection, created_at
FROM daily_summaries
WHERE symbol = ? AND trade_date >= ? AND trade_date <= ?
ORDER BY trade_date ASC
`, symbol, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("summaries between: %w", err)
	}
	defer rows.Close()

	var sums []*models.DailyTradingSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sums = append(sums, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summary rows: %w", err)
	}
	return sums, nil
}

// SetSummaryReflection attaches the reflection text produced after the
// fact to an existing summary.
func (s *Store) SetSummaryReflection(ctx context.Context, id, reflection string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE daily_summaries SET reflection = ? WHERE id = ?
`, reflection, id)
	if err != nil {
		return fmt.Errorf("set summary reflection: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("set summary reflection: summary %s not found", id)
	}
	return nil
}

func scanSummary(row rowScanner) (*models.DailyTradingSummary, error) {
	var (
		sum         models.DailyTradingSummary
		tradeDate   string
		regime      string
		decision    string
		orderStatus string
		fillPrice   string
		cashAfter   string
		totalValue  string
		createdAt   string
	)
	if err := row.Scan(&sum.ID, &sum.Symbol, &tradeDate, &regime, &decision, &sum.StrategyID, &sum.ExpectedBehavior,
		&sum.OrderID, &orderStatus, &sum.Quantity, &fillPrice, &cashAfter, &totalValue, &sum.DailyReturn, &sum.MaxDrawdown,
		&sum.Status, &sum.ReasonCode, &sum.Reflection, &createdAt); err != nil {
		return nil, err
	}
	sum.Date = parseDate(tradeDate)
	sum.MarketRegime = models.MarketRegime(regime)
	sum.Decision = models.Decision(decision)
	sum.OrderStatus = models.OrderStatus(orderStatus)
	sum.FillPrice = parseDecimal(fillPrice)
	sum.CashAfter = parseDecimal(cashAfter)
	sum.TotalValue = parseDecimal(totalValue)
	sum.CreatedAt = parseTime(createdAt)
	return &sum, nil
}

// SaveTranscript persists every turn of a finished debate for audit.
func (s *Store) SaveTranscript(ctx context.Context, symbol string, tradeDate time.Time, t *models.DebateTranscript) error {
	if t == nil || len(t.Turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transcript tx: %w", err)
	}
	defer tx.Rollback()

	for _, turn := range t.Turns {
		abstained := 0
		if turn.Abstained {
			abstained = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO debate_turns (symbol, trade_date, debate, round, role, content, abstained, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, symbol, formatDate(tradeDate), t.Name, turn.Round, turn.Role, turn.Content, abstained, formatTime(turn.CreatedAt)); err != nil {
			return fmt.Errorf("insert debate turn: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transcript: %w", err)
	}
	return nil
}

// TranscriptTurns reloads a debate's turns in speaking order.
func (s *Store) TranscriptTurns(ctx context.Context, symbol string, tradeDate time.Time, debate string) ([]models.DebateTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT round, role, content, abstained, created_at
FROM debate_turns
WHERE symbol = ? AND trade_date = ? AND debate = ?
ORDER BY id ASC
`, symbol, formatDate(tradeDate), debate)
	if err != nil {
		return nil, fmt.Errorf("transcript turns: %w", err)
	}
	defer rows.Close()

	var turns []models.DebateTurn
	for rows.Next() {
		var (
			turn      models.DebateTurn
			abstained int
			createdAt string
		)
		if err := rows.Scan(&turn.Round, &turn.Role, &turn.Content, &abstained, &createdAt); err != nil {
			return nil, fmt.Errorf("scan debate turn: %w", err)
		}
		turn.Abstained = abstained == 1
		turn.CreatedAt = parseTime(createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("debate turn rows: %w", err)
	}
	return turns, nil
}
