package dataflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyike/tradecycle/internal/models"
)

// DataFlowInterface provides high-level access to all data sources
type DataFlowInterface struct {
	yahooFinance *YahooFinanceClient
	finnhub      *FinnhubClient
	newsScraper  *NewsScraperClient
	longport     *LongportClient
	fileFeed     *FileFeed
	config       *Config
}

// NewDataFlowInterface creates a new data flow interface
func NewDataFlowInterface(config *Config) *DataFlowInterface {
	dfi := &DataFlowInterface{
		yahooFinance: NewYahooFinanceClient(config),
		finnhub:      NewFinnhubClient(config),
		newsScraper:  NewNewsScraperClient(config),
		fileFeed:     NewFileFeed(config),
		config:       config,
	}

	// Longport is optional; without credentials Yahoo carries candles alone.
	if lp, err := NewLongportClient(config); err == nil {
		dfi.longport = lp
	} else if config.Debug {
		log.Printf("[DataFlows] longport disabled: %v", err)
	}

	return dfi
}

// History implements CandleFeed: offline files first, then Yahoo,
// then Longport for symbols Yahoo cannot serve.
func (dfi *DataFlowInterface) History(symbol string, start, end time.Time) ([]*models.Candle, error) {
	if candles, err := dfi.fileFeed.History(symbol, start, end); err == nil && len(candles) > 0 {
		return candles, nil
	}

	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("offline data not available for %s and online tools disabled", symbol)
	}

	candles, yahooErr := dfi.yahooFinance.GetHistoricalData(symbol, start, end)
	if yahooErr == nil && len(candles) > 0 {
		return candles, nil
	}

	if dfi.longport != nil {
		days := int(end.Sub(start).Hours()/24) + 1
		all, err := dfi.longport.GetDailyCandles(context.Background(), symbol, days+30)
		if err == nil {
			result := make([]*models.Candle, 0, len(all))
			s, e := NormalizeDate(start), NormalizeDate(end)
			for _, c := range all {
				d := NormalizeDate(c.Date)
				if d.Before(s) || d.After(e) {
					continue
				}
				result = append(result, c)
			}
			if len(result) > 0 {
				return result, nil
			}
		}
	}

	if yahooErr != nil {
		return nil, yahooErr
	}
	return nil, &models.MissingDataError{Symbol: symbol, Date: end, What: "candles"}
}

// Quote gets the latest quote as a candle dated today.
func (dfi *DataFlowInterface) Quote(symbol string) (*models.Candle, error) {
	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("online tools are disabled")
	}
	return dfi.yahooFinance.GetQuote(symbol)
}

// CompanyInfo gets basic company information.
func (dfi *DataFlowInterface) CompanyInfo(symbol string) (map[string]interface{}, error) {
	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("online tools are disabled")
	}
	return dfi.yahooFinance.GetCompanyInfo(symbol)
}

// CompanyNews gets company news from Finnhub.
func (dfi *DataFlowInterface) CompanyNews(symbol string, from, to time.Time) ([]*NewsArticle, error) {
	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("online tools are disabled")
	}
	return dfi.finnhub.GetCompanyNews(symbol, from, to, dfi.config)
}

// GoogleNews searches Google News for articles.
func (dfi *DataFlowInterface) GoogleNews(query string, startDate, endDate time.Time, maxResults int) ([]*NewsArticle, error) {
	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("online tools are disabled")
	}

	params := GoogleNewsParams{
		Query:      query,
		StartDate:  startDate,
		EndDate:    endDate,
		MaxResults: maxResults,
	}

	return dfi.newsScraper.GetGoogleNews(params, dfi.config)
}

// NewsFromURL scrapes a specific news article URL.
func (dfi *DataFlowInterface) NewsFromURL(url string) (*NewsArticle, error) {
	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("online tools are disabled")
	}
	return dfi.newsScraper.GetNewsFromURL(url)
}

// InsiderSentiment gets insider sentiment for a company.
func (dfi *DataFlowInterface) InsiderSentiment(symbol string, from, to time.Time) ([]*InsiderSentiment, error) {
	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("online tools are disabled")
	}
	return dfi.finnhub.GetInsiderSentiment(symbol, from, to)
}

// InsiderTransactions gets insider transactions for a company.
func (dfi *DataFlowInterface) InsiderTransactions(symbol string, from, to time.Time) ([]*InsiderTransaction, error) {
	if !dfi.config.OnlineTools {
		return nil, fmt.Errorf("online tools are disabled")
	}
	return dfi.finnhub.GetInsiderTransactions(symbol, from, to)
}

// ValidateAndNormalizeSymbol validates and normalizes a stock symbol.
func (dfi *DataFlowInterface) ValidateAndNormalizeSymbol(symbol string) (string, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return "", err
	}
	return NormalizeSymbol(symbol), nil
}

// SearchSymbols searches for symbols matching a query.
func (dfi *DataFlowInterface) SearchSymbols(query string) ([]string, error) {
	return dfi.yahooFinance.SearchSymbols(query)
}

// Package-level interface instance for easy access
var DefaultInterface *DataFlowInterface

// Initialize sets up the default dataflows interface with provided config
func Initialize(config *Config) error {
	DefaultInterface = NewDataFlowInterface(config)
	return nil
}

// GetInterface returns the default dataflows interface
func GetInterface() *DataFlowInterface {
	if DefaultInterface == nil {
		panic("dataflows not initialized - call Initialize(config) first")
	}
	return DefaultInterface
}
