package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dyike/tradecycle/internal/models"
	"github.com/shopspring/decimal"
)

// SaveOrder inserts or updates one order by id.
func (s *Store) SaveOrder(ctx context.Context, o *models.Order) error {
	if o == nil {
		return fmt.Errorf("order is required")
	}
	fillDate := ""
	if !o.FillDate.IsZero() {
		fillDate = formatDate(o.FillDate)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (id, symbol, side, order_type, quantity, notional, decide_date, fill_date, fill_price, status, reason, strategy_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    quantity=excluded.quantity,
    notional=excluded.notional,
    fill_date=excluded.fill_date,
    fill_price=excluded.fill_price,
    status=excluded.status,
    reason=excluded.reason,
    updated_at=excluded.updated_at
`, o.ID, o.Symbol, string(o.Side), string(o.Type), o.Quantity, formatDecimal(o.Notional), formatDate(o.DecideDate),
		fillDate, formatDecimal(o.FillPrice), string(o.Status), o.Reason, o.StrategyID,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// GetOrder returns one order by id, or nil when absent.
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, side, order_type, quantity, notional, decide_date, fill_date, fill_price, status, reason, strategy_id, created_at, updated_at
FROM orders
WHERE id = ?
LIMIT 1
`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// OrderForDay returns the order decided for a symbol on a trade date,
// or nil. The execution engine keeps at most one per (symbol, date).
func (s *Store) OrderForDay(ctx context.Context, symbol string, decideDate time.Time) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, symbol, side, order_type, quantity, notional, decide_date, fill_date, fill_price, status, reason, strategy_id, created_at, updated_at
FROM orders
WHERE symbol = ? AND decide_date = ?
ORDER BY created_at DESC
LIMIT 1
`, symbol, formatDate(decideDate))

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("order for day: %w", err)
	}
	return o, nil
}

// CountFilledOrders reports how many fills a symbol has on a trade
// date. The invariant checked in tests is that it never exceeds one.
func (s *Store) CountFilledOrders(ctx context.Context, symbol string, decideDate time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM orders
WHERE symbol = ? AND decide_date = ? AND status = ?
`, symbol, formatDate(decideDate), string(models.OrderFilled)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count filled orders: %w", err)
	}
	return n, nil
}

// OrdersBetween lists a symbol's orders inside [start, end], oldest
// first, for backtest reporting.
func (s *Store) OrdersBetween(ctx context.Context, symbol string, start, end time.Time) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, side, order_type, quantity, notional, decide_date, fill_date, fill_price, status, reason, strategy_id, created_at, updated_at
FROM orders
WHERE symbol = ? AND decide_date >= ? AND decide_date <= ?
ORDER BY decide_date ASC, created_at ASC
`, symbol, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("orders between: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order rows: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o          models.Order
		side       string
		orderType  string
		notional   string
		decideDate string
		fillDate   string
		fillPrice  string
		status     string
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&o.ID, &o.Symbol, &side, &orderType, &o.Quantity, &notional, &decideDate, &fillDate, &fillPrice, &status, &o.Reason, &o.StrategyID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.Side = models.Side(side)
	o.Type = models.OrderType(orderType)
	o.Notional = parseDecimal(notional)
	o.DecideDate = parseDate(decideDate)
	if fillDate != "" {
		o.FillDate = parseDate(fillDate)
	}
	o.FillPrice = parseDecimal(fillPrice)
	o.Status = models.OrderStatus(status)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}

// UpsertPosition writes one position row; a zero quantity removes it.
func (s *Store) UpsertPosition(ctx context.Context, p *models.Position) error {
	if p == nil {
		return fmt.Errorf("position is required")
	}
	if p.Quantity == 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, p.Symbol)
		if err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO positions (symbol, quantity, avg_cost, last_price, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(symbol) DO UPDATE SET
    quantity=excluded.quantity,
    avg_cost=excluded.avg_cost,
    last_price=excluded.last_price,
    updated_at=excluded.updated_at
`, p.Symbol, p.Quantity, formatDecimal(p.AvgCost), formatDecimal(p.LastPrice), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// ListPositions returns all open positions ordered by symbol.
func (s *Store) ListPositions(ctx context.Context) ([]*models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT symbol, quantity, avg_cost, last_price, updated_at
FROM positions
ORDER BY symbol ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var (
			p         models.Position
			avgCost   string
			lastPrice string
			updatedAt string
		)
		if err := rows.Scan(&p.Symbol, &p.Quantity, &avgCost, &lastPrice, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.AvgCost = parseDecimal(avgCost)
		p.LastPrice = parseDecimal(lastPrice)
		p.UpdatedAt = parseTime(updatedAt)
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("position rows: %w", err)
	}
	return positions, nil
}

// PortfolioState is the single-row cash and drawdown ledger state.
type PortfolioState struct {
	Cash        decimal.Decimal
	PeakValue   decimal.Decimal
	MaxDrawdown float64
}

// SavePortfolioState persists the ledger's cash, running peak and max
// drawdown.
func (s *Store) SavePortfolioState(ctx context.Context, st PortfolioState) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO portfolio_state (id, cash, peak_value, max_drawdown, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    cash=excluded.cash,
    peak_value=excluded.peak_value,
    max_drawdown=excluded.max_drawdown,
    updated_at=excluded.updated_at
`, formatDecimal(st.Cash), formatDecimal(st.PeakValue), st.MaxDrawdown, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save portfolio state: %w", err)
	}
	return nil
}

// GetPortfolioState loads the ledger state; found is false on first
// run before any state was written.
func (s *Store) GetPortfolioState(ctx context.Context) (st PortfolioState, found bool, err error) {
	var (
		cash string
		peak string
	)
	row := s.db.QueryRowContext(ctx, `SELECT cash, peak_value, max_drawdown FROM portfolio_state WHERE id = 1`)
	scanErr := row.Scan(&cash, &peak, &st.MaxDrawdown)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return PortfolioState{}, false, nil
	}
	if scanErr != nil {
		return PortfolioState{}, false, fmt.Errorf("get portfolio state: %w", scanErr)
	}
	st.Cash = parseDecimal(cash)
	st.PeakValue = parseDecimal(peak)
	return st, true, nil
}

// SaveSnapshot writes the end-of-day snapshot; one row per date.
func (s *Store) SaveSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is required")
	}
	positionsJSON, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("marshal snapshot positions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO portfolio_snapshots (date, cash, positions_value, total_value, positions_json, daily_return, drawdown, max_drawdown, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
    cash=excluded.cash,
    positions_value=excluded.positions_value,
    total_value=excluded.total_value,
    positions_json=excluded.positions_json,
    daily_return=excluded.daily_return,
    drawdown=excluded.drawdown,
    max_drawdown=excluded.max_drawdown,
    created_at=excluded.created_at
`, formatDate(snap.Date), formatDecimal(snap.Cash), formatDecimal(snap.PositionsValue),
		formatDecimal(snap.TotalValue), string(positionsJSON), snap.DailyReturn,
		snap.Drawdown, snap.MaxDrawdown, formatTime(snap.CreatedAt))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot on or before the date, or
// nil when the series is empty.
func (s *Store) LatestSnapshot(ctx context.Context, onOrBefore time.Time) (*models.PortfolioSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT date, cash, positions_value, total_value, positions_json, daily_return, drawdown, max_drawdown, created_at
FROM portfolio_snapshots
WHERE date <= ?
ORDER BY date DESC
LIMIT 1
`, formatDate(onOrBefore))

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

// SnapshotBefore returns the newest snapshot strictly before the date,
// the t-1 value for daily return computation, or nil.
func (s *Store) SnapshotBefore(ctx context.Context, date time.Time) (*models.PortfolioSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT date, cash, positions_value, total_value, positions_json, daily_return, drawdown, max_drawdown, created_at
FROM portfolio_snapshots
WHERE date < ?
ORDER BY date DESC
LIMIT 1
`, formatDate(date))

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot before: %w", err)
	}
	return snap, nil
}

// SnapshotsBetween returns the snapshot series inside [start, end],
// oldest first.
func (s *Store) SnapshotsBetween(ctx context.Context, start, end time.Time) ([]*models.PortfolioSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT date, cash, positions_value, total_value, positions_json, daily_return, drawdown, max_drawdown, created_at
FROM portfolio_snapshots
WHERE date >= ? AND date <= ?
ORDER BY date ASC
`, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("snapshots between: %w", err)
	}
	defer rows.Close()

	var snaps []*models.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows: %w", err)
	}
	return snaps, nil
}

func scanSnapshot(row rowScanner) (*models.PortfolioSnapshot, error) {
	var (
		snap          models.PortfolioSnapshot
		date          string
		cash          string
		positionsVal  string
		totalValue    string
		positionsJSON string
		createdAt     string
	)
	if err := row.Scan(&date, &cash, &positionsVal, &totalValue, &positionsJSON, &snap.DailyReturn, &snap.Drawdown, &snap.MaxDrawdown, &createdAt); err != nil {
		return nil, err
	}
	snap.Date = parseDate(date)
	snap.Cash = parseDecimal(cash)
	snap.PositionsValue = parseDecimal(positionsVal)
	snap.TotalValue = parseDecimal(totalValue)
	snap.CreatedAt = parseTime(createdAt)
	if positionsJSON != "" {
		if err := json.Unmarshal([]byte(positionsJSON), &snap.Positions); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot positions: %w", err)
		}
	}
	return &snap, nil
}
