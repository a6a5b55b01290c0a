// Package portfolio owns the cash and position ledger. Buys and sells
// across symbols draw on one shared cash pool, so every mutation runs
// under a single global lock; cross-symbol serialization is part of
// the contract, not an implementation detail.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
)

// ErrSymbolHalted rejects mutations on a symbol after a consistency
// failure, until an operator reconciles the book.
var ErrSymbolHalted = errors.New("symbol halted pending reconciliation")

// Ledger is the sole owner of cash, positions, valuation and drawdown
// state. Mutations persist through the store before they are
// considered committed; a failed write rolls the in-memory state back.
type Ledger struct {
	mu    sync.Mutex
	store *sqlite.Store

	cash        decimal.Decimal
	positions   map[string]*models.Position
	peak        decimal.Decimal
	maxDrawdown float64
	halted      map[string]bool
}

// NewLedger opens the ledger, restoring cash, drawdown state and open
// positions from the store. A first run seeds both cash and the
// running peak with initialCash.
func NewLedger(ctx context.Context, store *sqlite.Store, initialCash decimal.Decimal) (*Ledger, error) {
	st, found, err := store.GetPortfolioState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	if !found {
		st = sqlite.PortfolioState{Cash: initialCash, PeakValue: initialCash}
		if err := store.SavePortfolioState(ctx, st); err != nil {
			return nil, fmt.Errorf("seed ledger state: %w", err)
		}
	}

	open, err := store.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	positions := make(map[string]*models.Position, len(open))
	for _, p := range open {
		positions[p.Symbol] = p
	}

	l := &Ledger{
		store:       store,
		cash:        st.Cash,
		positions:   positions,
		peak:        st.PeakValue,
		maxDrawdown: st.MaxDrawdown,
		halted:      make(map[string]bool),
	}
	log.Printf("[Ledger] opened: cash %s, %d open positions, peak %s, max drawdown %.4f",
		l.cash.StringFixed(2), len(positions), l.peak.StringFixed(2), l.maxDrawdown)
	return l, nil
}

// ExecuteBuy debits qty*price from cash and folds the lot into the
// position at a quantity-weighted average cost. It fails without
// mutating anything when cash cannot cover the cost.
func (l *Ledger) ExecuteBuy(ctx context.Context, symbol string, qty int64, price decimal.Decimal, date time.Time) error {
	if err := validateTrade(symbol, qty, price); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted[symbol] {
		return fmt.Errorf("%s: %w", symbol, ErrSymbolHalted)
	}

	cost := price.Mul(decimal.NewFromInt(qty))
	if cost.GreaterThan(l.cash) {
		return &models.InsufficientCashError{Required: cost, Available: l.cash}
	}

	prevCash := l.cash
	prevPos := clonePosition(l.positions[symbol])

	// Mark the symbol at the fill price first so the trade itself is
	// value-neutral and the conservation check below is meaningful.
	if pos := l.positions[symbol]; pos != nil {
		pos.LastPrice = price
	}
	before := l.totalLocked()

	pos := l.positions[symbol]
	if pos == nil {
		pos = &models.Position{Symbol: symbol, AvgCost: price, LastPrice: price}
		l.positions[symbol] = pos
	} else {
		held := pos.AvgCost.Mul(decimal.NewFromInt(pos.Quantity))
		pos.AvgCost = held.Add(cost).Div(decimal.NewFromInt(pos.Quantity + qty))
	}
	l.cash = l.cash.Sub(cost)
	pos.Quantity += qty
	pos.UpdatedAt = date

	if err := l.checkConsistencyLocked(symbol, before); err != nil {
		return err
	}
	if err := l.persistLocked(ctx, pos); err != nil {
		l.cash = prevCash
		restorePosition(l.positions, symbol, prevPos)
		return fmt.Errorf("persist buy: %w", err)
	}

	log.Printf("[Ledger] BUY %d %s @ %s, cash %s", qty, symbol, price.StringFixed(2), l.cash.StringFixed(2))
	return nil
}

// ExecuteSell credits qty*price to cash, shrinks the position and
// returns the realized P&L against average cost. Selling more than the
// book holds fails without mutating anything.
func (l *Ledger) ExecuteSell(ctx context.Context, symbol string, qty int64, price decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	if err := validateTrade(symbol, qty, price); err != nil {
		return decimal.Zero, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted[symbol] {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, ErrSymbolHalted)
	}

	pos := l.positions[symbol]
	var have int64
	if pos != nil {
		have = pos.Quantity
	}
	if qty > have {
		return decimal.Zero, &models.InsufficientPositionError{Symbol: symbol, Want: qty, Have: have}
	}

	prevCash := l.cash
	prevPos := clonePosition(pos)

	pos.LastPrice = price
	before := l.totalLocked()

	proceeds := price.Mul(decimal.NewFromInt(qty))
	realized := price.Sub(pos.AvgCost).Mul(decimal.NewFromInt(qty))
	l.cash = l.cash.Add(proceeds)
	pos.Quantity -= qty
	pos.UpdatedAt = date
	if pos.Quantity == 0 {
		delete(l.positions, symbol)
	}

	if err := l.checkConsistencyLocked(symbol, before); err != nil {
		return decimal.Zero, err
	}
	if err := l.persistLocked(ctx, pos); err != nil {
		l.cash = prevCash
		restorePosition(l.positions, symbol, prevPos)
		return decimal.Zero, fmt.Errorf("persist sell: %w", err)
	}

	log.Printf("[Ledger] SELL %d %s @ %s, realized %s, cash %s",
		qty, symbol, price.StringFixed(2), realized.StringFixed(2), l.cash.StringFixed(2))
	return realized, nil
}

// MarkToMarket refreshes every open position's last price from the
// day's closes. It must run before TakeSnapshot for the same date so
// returns and drawdown are computed on current marks. Symbols missing
// from closes carry their previous mark.
func (l *Ledger) MarkToMarket(ctx context.Context, date time.Time, closes map[string]decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, symbol := range l.symbolsLocked() {
		price, ok := closes[symbol]
		if !ok || !price.IsPositive() {
			log.Printf("[Ledger] no close for %s on %s, carrying last mark", symbol, date.Format("2006-01-02"))
			continue
		}
		pos := l.positions[symbol]
		pos.LastPrice = price
		pos.UpdatedAt = date
		if err := l.store.UpsertPosition(ctx, pos); err != nil {
			return fmt.Errorf("persist mark for %s: %w", symbol, err)
		}
	}
	return nil
}

// TakeSnapshot values the book, computes the daily return against the
// previous snapshot, advances the running peak and max drawdown, and
// persists the result. One snapshot per trading day; re-taking a
// day's snapshot overwrites it.
func (l *Ledger) TakeSnapshot(ctx context.Context, date time.Time) (*models.PortfolioSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	positionsValue := l.positionsValueLocked()
	total := l.cash.Add(positionsValue)

	prev, err := l.store.SnapshotBefore(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}
	dailyReturn := 0.0
	if prev != nil && prev.TotalValue.IsPositive() {
		dailyReturn = total.Sub(prev.TotalValue).Div(prev.TotalValue).InexactFloat64()
	}

	if total.GreaterThan(l.peak) {
		l.peak = total
	}
	drawdown := 0.0
	if l.peak.IsPositive() {
		drawdown = l.peak.Sub(total).Div(l.peak).InexactFloat64()
	}
	if drawdown > l.maxDrawdown {
		l.maxDrawdown = drawdown
	}

	snap := &models.PortfolioSnapshot{
		Date:           date,
		Cash:           l.cash,
		PositionsValue: positionsValue,
		TotalValue:     total,
		Positions:      l.positionListLocked(),
		DailyReturn:    dailyReturn,
		Drawdown:       drawdown,
		MaxDrawdown:    l.maxDrawdown,
		CreatedAt:      time.Now(),
	}
	if err := l.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	if err := l.saveStateLocked(ctx); err != nil {
		return nil, err
	}

	log.Printf("[Ledger] snapshot %s: total %s, return %+.4f, drawdown %.4f (max %.4f)",
		date.Format("2006-01-02"), total.StringFixed(2), dailyReturn, drawdown, l.maxDrawdown)
	return snap, nil
}

// AvailableCash reports the uncommitted cash pool.
func (l *Ledger) AvailableCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// TotalValue is cash plus positions at their current marks.
func (l *Ledger) TotalValue() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalLocked()
}

// PositionFor returns a copy of one position; ok is false when the
// book holds none.
func (l *Ledger) PositionFor(symbol string) (models.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos := l.positions[symbol]
	if pos == nil {
		return models.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions, ordered by symbol.
func (l *Ledger) Positions() []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionListLocked()
}

// PositionCount reports how many symbols the book currently holds.
func (l *Ledger) PositionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

// Halted reports whether a symbol was frozen by a consistency failure.
func (l *Ledger) Halted(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted[symbol]
}

// MaxDrawdown reports the worst peak-to-trough fraction seen so far.
func (l *Ledger) MaxDrawdown() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxDrawdown
}

func validateTrade(symbol string, qty int64, price decimal.Decimal) error {
	if symbol == "" {
		return &models.ValidationError{Field: "symbol", Reason: "required"}
	}
	if qty <= 0 {
		return &models.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if !price.IsPositive() {
		return &models.ValidationError{Field: "price", Reason: "must be positive"}
	}
	return nil
}

// checkConsistencyLocked verifies that a trade conserved total value:
// the cash leg and the position leg of a fill cancel exactly. On
// failure the symbol is halted and the error surfaces to the caller.
func (l *Ledger) checkConsistencyLocked(symbol string, want decimal.Decimal) error {
	got := l.totalLocked()
	if got.Equal(want) {
		return nil
	}
	l.halted[symbol] = true
	log.Printf("[Ledger] consistency failure on %s: total %s, want %s; symbol halted",
		symbol, got.StringFixed(4), want.StringFixed(4))
	return &models.ConsistencyError{
		Symbol:         symbol,
		Cash:           l.cash,
		PositionsValue: l.positionsValueLocked(),
		TotalValue:     want,
	}
}

func (l *Ledger) persistLocked(ctx context.Context, pos *models.Position) error {
	if err := l.store.UpsertPosition(ctx, pos); err != nil {
		return err
	}
	return l.saveStateLocked(ctx)
}

func (l *Ledger) saveStateLocked(ctx context.Context) error {
	st := sqlite.PortfolioState{Cash: l.cash, PeakValue: l.peak, MaxDrawdown: l.maxDrawdown}
	if err := l.store.SavePortfolioState(ctx, st); err != nil {
		return fmt.Errorf("persist ledger state: %w", err)
	}
	return nil
}

func (l *Ledger) totalLocked() decimal.Decimal {
	return l.cash.Add(l.positionsValueLocked())
}

func (l *Ledger) positionsValueLocked() decimal.Decimal {
	value := decimal.Zero
	for _, pos := range l.positions {
		value = value.Add(pos.MarketValue())
	}
	return value
}

func (l *Ledger) symbolsLocked() []string {
	symbols := make([]string, 0, len(l.positions))
	for symbol := range l.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (l *Ledger) positionListLocked() []models.Position {
	out := make([]models.Position, 0, len(l.positions))
	for _, symbol := range l.symbolsLocked() {
		out = append(out, *l.positions[symbol])
	}
	return out
}

func clonePosition(pos *models.Position) *models.Position {
	if pos == nil {
		return nil
	}
	cp := *pos
	return &cp
}

func restorePosition(positions map[string]*models.Position, symbol string, prev *models.Position) {
	if prev == nil {
		delete(positions, symbol)
		return
	}
	positions[symbol] = prev
}
