package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one daily OHLCV bar. Prices stay in decimal form from the
// data source all the way into the ledger so fills never pick up
// float rounding.
type Candle struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

