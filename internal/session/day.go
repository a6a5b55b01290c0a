package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/models"
)

// sessionOrder is the market clock: decide, fill, settle.
var sessionOrder = []string{
	consts.SessionPreOpen,
	consts.SessionMarketOpen,
	consts.SessionPostClose,
}

// RunTradingDay runs all three sessions for the day's symbols. Symbols
// run concurrently within a session, but a session completes for the
// whole batch before the next one starts, so every fill sees the full
// set of decisions and the valuation sees every fill.
//
// With no symbols given, the day's universe is the selector's picks
// plus whatever the book still holds, so exits stay possible after a
// symbol drops out of the ranking.
func (r *Router) RunTradingDay(ctx context.Context, date time.Time, symbols []string) ([]*SessionResult, error) {
	if date.IsZero() {
		return nil, &models.ValidationError{Field: "date", Reason: "is required"}
	}
	if len(symbols) == 0 {
		symbols = r.dayUniverse(date)
	}
	if len(symbols) == 0 {
		return nil, &models.ValidationError{Field: "symbols", Reason: "no symbols to trade"}
	}
	if !r.isTradingDay(symbols, date) {
		log.Printf("[Session] no candles on %s for any symbol, skipping the day", date.Format(dateLayout))
		return nil, nil
	}

	var all []*SessionResult
	for _, session := range sessionOrder {
		batch, err := r.runBatch(ctx, date, session, symbols)
		for _, res := range batch {
			if res != nil {
				all = append(all, res)
			}
		}
		if err != nil {
			return all, fmt.Errorf("%s on %s: %w", session, date.Format(dateLayout), err)
		}
	}
	return all, nil
}

// runBatch fans one session out over the symbols and collects results
// in input order. The first error is reported after the whole batch
// has drained so no goroutine is left writing to a dropped channel.
func (r *Router) runBatch(ctx context.Context, date time.Time, session string, symbols []string) ([]*SessionResult, error) {
	type item struct {
		i   int
		res *SessionResult
		err error
	}
	items := make(chan item, len(symbols))
	for i, symbol := range symbols {
		go func(i int, symbol string) {
			res, err := r.RunSession(ctx, symbol, date, session)
			items <- item{i: i, res: res, err: err}
		}(i, symbol)
	}

	batch := make([]*SessionResult, len(symbols))
	var firstErr error
	for range symbols {
		it := <-items
		batch[it.i] = it.res
		if it.err != nil && firstErr == nil {
			firstErr = it.err
		}
	}
	return batch, firstErr
}

// isTradingDay reports whether any symbol has a candle for the date.
// Weekends and holidays have none, so the whole day is skipped rather
// than producing a string of missing-data failures.
func (r *Router) isTradingDay(symbols []string, date time.Time) bool {
	for _, symbol := range symbols {
		if _, err := dataflows.CandleOn(r.feed, symbol, date); err == nil {
			return true
		}
	}
	return false
}

// targetsFor returns the day's trading targets, ranked by the stock
// selector when one is wired and falling back to the configured pool.
// The result is cached per date: every symbol of the day must size
// against the same target count.
func (r *Router) targetsFor(date time.Time) []string {
	key := date.Format(dateLayout)
	r.mu.Lock()
	cached, ok := r.targetCache[key]
	r.mu.Unlock()
	if ok {
		return cached
	}

	var picked []string
	if r.targets != nil {
		selected, err := r.targets.Select(date)
		if err != nil {
			log.Printf("[Session] stock selection for %s fell back to the configured pool: %v", key, err)
		} else {
			picked = selected
		}
	}
	if picked == nil {
		picked = r.poolTargets()
	}

	r.mu.Lock()
	r.targetCache[key] = picked
	r.mu.Unlock()
	return picked
}

// targetCount is the equal-weight divisor for buy sizing, never below
// one.
func (r *Router) targetCount(date time.Time) int {
	if n := len(r.targetsFor(date)); n > 0 {
		return n
	}
	return 1
}

// dayUniverse is the union of the day's targets and the symbols still
// held, sorted for stable run order.
func (r *Router) dayUniverse(date time.Time) []string {
	seen := make(map[string]bool)
	var out []string
	for _, symbol := range r.targetsFor(date) {
		if !seen[symbol] {
			seen[symbol] = true
			out = append(out, symbol)
		}
	}
	for _, pos := range r.ledger.Positions() {
		if !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			out = append(out, pos.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

// poolTargets caps the configured pool at the configured pick count.
func (r *Router) poolTargets() []string {
	pool := r.cfg.SymbolPool
	if r.cfg.TopSymbols > 0 && r.cfg.TopSymbols < len(pool) {
		pool = pool[:r.cfg.TopSymbols]
	}
	out := make([]string, 0, len(pool))
	for _, symbol := range pool {
		out = append(out, dataflows.NormalizeSymbol(symbol))
	}
	return out
}
