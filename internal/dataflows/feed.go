package dataflows

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dyike/tradecycle/internal/models"
)

// CandleFeed serves daily candles over a date range. The range is
// inclusive on both ends; candles come back sorted ascending by date.
type CandleFeed interface {
	History(symbol string, start, end time.Time) ([]*models.Candle, error)
}

// CandleOn returns the candle for an exact trading date. A weekend,
// holiday, or unlisted date yields MissingDataError.
func CandleOn(feed CandleFeed, symbol string, date time.Time) (*models.Candle, error) {
	date = NormalizeDate(date)
	candles, err := feed.History(symbol, date.AddDate(0, 0, -5), date)
	if err != nil {
		return nil, err
	}
	for _, c := range candles {
		if NormalizeDate(c.Date).Equal(date) {
			return c, nil
		}
	}
	return nil, &models.MissingDataError{Symbol: symbol, Date: date, What: "candle"}
}

// NextOpen returns the first candle strictly after the given date,
// which is where a T+1 market order fills. Searches up to two weeks
// ahead to step over weekends and holiday runs.
func NextOpen(feed CandleFeed, symbol string, after time.Time) (*models.Candle, error) {
	after = NormalizeDate(after)
	candles, err := feed.History(symbol, after.AddDate(0, 0, 1), after.AddDate(0, 0, 14))
	if err != nil {
		return nil, err
	}
	for _, c := range candles {
		if NormalizeDate(c.Date).After(after) {
			return c, nil
		}
	}
	return nil, &models.MissingDataError{Symbol: symbol, Date: after, What: "next session candle"}
}

// FileFeed serves candles from per-symbol JSON files under the data
// directory. It is the offline-first source used in backtests.
type FileFeed struct {
	dir string

	mu     sync.RWMutex
	loaded map[string][]*models.Candle
}

// NewFileFeed creates a feed over DataDir/market_data/price_data.
func NewFileFeed(config *Config) *FileFeed {
	return &FileFeed{
		dir:    filepath.Join(config.DataDir, "market_data", "price_data"),
		loaded: make(map[string][]*models.Candle),
	}
}

func (ff *FileFeed) load(symbol string) ([]*models.Candle, error) {
	ff.mu.RLock()
	candles, ok := ff.loaded[symbol]
	ff.mu.RUnlock()
	if ok {
		return candles, nil
	}

	filePath := filepath.Join(ff.dir, fmt.Sprintf("%s.json", symbol))
	var fromFile []*models.Candle
	if err := LoadDataFromFile(filePath, &fromFile); err != nil {
		return nil, fmt.Errorf("offline data not available for %s: %w", symbol, err)
	}

	sort.Slice(fromFile, func(i, j int) bool {
		return fromFile[i].Date.Before(fromFile[j].Date)
	})

	ff.mu.Lock()
	ff.loaded[symbol] = fromFile
	ff.mu.Unlock()

	return fromFile, nil
}

func (ff *FileFeed) History(symbol string, start, end time.Time) ([]*models.Candle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	candles, err := ff.load(symbol)
	if err != nil {
		return nil, err
	}

	start, end = NormalizeDate(start), NormalizeDate(end)
	result := make([]*models.Candle, 0)
	for _, c := range candles {
		d := NormalizeDate(c.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// StaticFeed serves candles from a fixed in-memory set. Used by dry
// runs and tests where no market access is wanted.
type StaticFeed struct {
	mu      sync.RWMutex
	candles map[string][]*models.Candle
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{candles: make(map[string][]*models.Candle)}
}

// Add seeds candles for a symbol, keeping the series date-sorted.
func (sf *StaticFeed) Add(candles ...*models.Candle) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	for _, c := range candles {
		symbol := NormalizeSymbol(c.Symbol)
		sf.candles[symbol] = append(sf.candles[symbol], c)
	}
	for symbol := range sf.candles {
		sort.Slice(sf.candles[symbol], func(i, j int) bool {
			return sf.candles[symbol][i].Date.Before(sf.candles[symbol][j].Date)
		})
	}
}

func (sf *StaticFeed) History(symbol string, start, end time.Time) ([]*models.Candle, error) {
	sf.mu.RLock()
	defer sf.mu.RUnlock()

	symbol = NormalizeSymbol(symbol)
	start, end = NormalizeDate(start), NormalizeDate(end)

	result := make([]*models.Candle, 0)
	for _, c := range sf.candles[symbol] {
		d := NormalizeDate(c.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}
