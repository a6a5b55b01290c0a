package dataflows

import (
	"time"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/shopspring/decimal"
)

// Config is an alias for the main application config
type Config = config.Config

// Candle is an alias for the shared daily bar type
type Candle = models.Candle

// NewsArticle represents a news article
type NewsArticle struct {
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	URL         string            `json:"url"`
	Source      string            `json:"source"`
	PublishedAt time.Time         `json:"published_at"`
	Sentiment   float64           `json:"sentiment,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InsiderTransaction represents insider trading data
type InsiderTransaction struct {
	Symbol           string          `json:"symbol"`
	PersonName       string          `json:"person_name"`
	Share            int64           `json:"share"`
	Change           int64           `json:"change"`
	FilingDate       time.Time       `json:"filing_date"`
	TransactionDate  time.Time       `json:"transaction_date"`
	TransactionCode  string          `json:"transaction_code"`
	TransactionPrice decimal.Decimal `json:"transaction_price"`
}

// InsiderSentiment represents aggregate insider sentiment
type InsiderSentiment struct {
	Symbol string          `json:"symbol"`
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Change int64           `json:"change"`
	MSPR   decimal.Decimal `json:"mspr"` // Monthly Share Purchase Ratio
}
