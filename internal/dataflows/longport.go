package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/models"
)

// LongportClient provides daily candles through the Longport OpenAPI.
// It is the fallback candle source for symbols Yahoo cannot serve.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

// NewLongportClient creates a Longport client from configured
// credentials. Returns an error when the credentials are absent.
func NewLongportClient(config *Config) (*LongportClient, error) {
	if config.LongportAppKey == "" || config.LongportAppSecret == "" || config.LongportAccessToken == "" {
		return nil, errors.New("longport credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(
		config.LongportAppKey,
		config.LongportAppSecret,
		config.LongportAccessToken,
	))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport quote context: %w", err)
	}

	return &LongportClient{
		quoteCtx: quoteContext,
	}, nil
}

// GetDailyCandles fetches the most recent count daily candles.
func (lpc *LongportClient) GetDailyCandles(ctx context.Context, symbol string, count int) ([]*models.Candle, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}

	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks for %s: %w", symbol, err)
	}

	candles := make([]*models.Candle, 0, len(sticks))
	for _, stick := range sticks {
		open, _ := stick.Open.Float64()
		high, _ := stick.High.Float64()
		low, _ := stick.Low.Float64()
		closePx, _ := stick.Close.Float64()

		candles = append(candles, &models.Candle{
			Symbol: symbol,
			Date:   NormalizeDate(time.Unix(stick.Timestamp, 0).UTC()),
			Open:   decimal.NewFromFloat(open),
			High:   decimal.NewFromFloat(high),
			Low:    decimal.NewFromFloat(low),
			Close:  decimal.NewFromFloat(closePx),
			Volume: stick.Volume,
		})
	}

	return candles, nil
}
