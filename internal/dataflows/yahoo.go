package dataflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/models"
)

// YahooFinanceClient handles Yahoo Finance data operations
type YahooFinanceClient struct {
	cache *CacheManager
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(config *Config) *YahooFinanceClient {
	cacheDir := filepath.Join(config.DataCacheDir, "yahoo_finance")
	cache := NewCacheManager(cacheDir, 24*time.Hour, config.CacheEnabled)

	return &YahooFinanceClient{
		cache: cache,
	}
}

// GetQuote gets the current quote for a symbol as a synthetic candle
// dated today.
func (yf *YahooFinanceClient) GetQuote(symbol string) (*models.Candle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)

	var cached models.Candle
	if yf.cache.Get("yahoo", "quote", symbol, &cached) {
		return &cached, nil
	}

	var result *models.Candle
	err := WithRetry(DefaultRetryConfig(), func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}

		result = &models.Candle{
			Symbol: symbol,
			Date:   NormalizeDate(time.Now()),
			Open:   decimal.NewFromFloat(q.RegularMarketOpen),
			High:   decimal.NewFromFloat(q.RegularMarketDayHigh),
			Low:    decimal.NewFromFloat(q.RegularMarketDayLow),
			Close:  decimal.NewFromFloat(q.RegularMarketPrice),
			Volume: int64(q.RegularMarketVolume),
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	yf.cache.Set("yahoo", "quote", symbol, result)

	return result, nil
}

// GetHistoricalData gets daily candles for a symbol over a date range.
func (yf *YahooFinanceClient) GetHistoricalData(symbol string, start, end time.Time) ([]*models.Candle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}

	var cached []*models.Candle
	if yf.cache.Get("yahoo", "historical", cacheKey, &cached) {
		return cached, nil
	}

	var result []*models.Candle
	err := WithRetry(DefaultRetryConfig(), func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		result = make([]*models.Candle, 0)
		for iter.Next() {
			bar := iter.Bar()

			candle := &models.Candle{
				Symbol: symbol,
				Date:   NormalizeDate(time.Unix(int64(bar.Timestamp), 0).UTC()),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			}

			result = append(result, candle)
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	yf.cache.Set("yahoo", "historical", cacheKey, result)

	return result, nil
}

// GetHistoricalDataWindow gets candles for a rolling window ending today.
func (yf *YahooFinanceClient) GetHistoricalDataWindow(symbol string, days int) ([]*models.Candle, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	return yf.GetHistoricalData(symbol, start, end)
}

// GetCompanyInfo gets basic company information
func (yf *YahooFinanceClient) GetCompanyInfo(symbol string) (map[string]interface{}, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)

	var cached map[string]interface{}
	if yf.cache.Get("yahoo", "company_info", symbol, &cached) {
		return cached, nil
	}

	q, err := quote.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get company info for %s: %w", symbol, err)
	}

	info := map[string]interface{}{
		"symbol":               symbol,
		"company_name":         q.ShortName,
		"exchange":             q.FullExchangeName,
		"currency":             q.CurrencyID,
		"market_state":         q.MarketState,
		"regular_market_price": q.RegularMarketPrice,
		"quote_type":           q.QuoteType,
		"is_tradeable":         q.IsTradeable,
		"fetched_at":           time.Now(),
	}

	yf.cache.Set("yahoo", "company_info", symbol, info)

	return info, nil
}

// SearchSymbols searches for symbols matching a query against a list
// of liquid US names. Used by the interactive prompt for suggestions.
func (yf *YahooFinanceClient) SearchSymbols(query string) ([]string, error) {
	query = strings.TrimSpace(strings.ToUpper(query))
	if len(query) == 0 {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	commonSymbols := []string{
		"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "NFLX",
		"AMD", "INTC", "CRM", "ORCL", "ADBE", "PYPL", "DIS", "V", "MA",
		"JPM", "BAC", "WFC", "C", "GS", "MS", "BRK.B", "JNJ", "PFE",
		"KO", "PEP", "WMT", "HD", "NKE", "MCD", "SBUX", "UNH", "CVX",
	}

	var matches []string
	for _, symbol := range commonSymbols {
		if strings.Contains(symbol, query) {
			matches = append(matches, symbol)
		}
	}

	return matches, nil
}
