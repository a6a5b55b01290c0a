package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/models"
)

// Annualized volatility thresholds for the regime score.
const (
	volCalm     = 0.15
	volElevated = 0.25
	volExtreme  = 0.40
)

// minRegimeCandles is the history a regime label needs; the 60-day
// momentum term is meaningless below it.
const minRegimeCandles = 60

// Classify labels a candle window with a coarse market regime and
// returns the annualized 20-day volatility alongside it. Bull and bear
// evidence is scored from moving-average alignment, momentum, and
// volatility; extreme volatility overrides both.
func Classify(candles []*models.Candle) (models.MarketRegime, float64) {
	closes := closeSeries(candles)
	vol := annualizedVol(closes, 20)
	if len(closes) < minRegimeCandles {
		return models.RegimeUnknown, vol
	}

	price := closes[len(closes)-1]
	ma20 := sma(closes, 20)
	ma50 := sma(closes, 50)

	var bullScore, bearScore float64

	if len(closes) >= 200 {
		ma200 := sma(closes, 200)
		switch {
		case price > ma20 && ma20 > ma50 && ma50 > ma200:
			bullScore += 2
		case price < ma20 && ma20 < ma50 && ma50 < ma200:
			bearScore += 2
		case price > ma20 && ma20 > ma50:
			bullScore++
		case price < ma20 && ma20 < ma50:
			bearScore++
		}
	} else {
		switch {
		case price > ma20 && ma20 > ma50:
			bullScore++
		case price < ma20 && ma20 < ma50:
			bearScore++
		}
	}

	var returns20, returns60 float64
	if base := closes[len(closes)-20]; base != 0 {
		returns20 = price/base - 1
	}
	if base := closes[len(closes)-60]; base != 0 {
		returns60 = price/base - 1
	}
	switch {
	case returns20 > 0.02 && returns60 > 0.05:
		bullScore++
	case returns20 < -0.02 && returns60 < -0.05:
		bearScore++
	}

	switch {
	case vol > volElevated:
		bearScore += 0.5
	case vol < volCalm:
		bullScore += 0.5
	}

	switch {
	case vol > volExtreme:
		return models.RegimeVolatile, vol
	case bullScore >= 2:
		return models.RegimeBull, vol
	case bearScore >= 2:
		return models.RegimeBear, vol
	}
	return models.RegimeSideways, vol
}

// maxPositionsFor maps a regime to how many names the book should
// carry at once. Appetite shrinks as conditions worsen.
func maxPositionsFor(regime models.MarketRegime) int {
	switch regime {
	case models.RegimeBull:
		return 5
	case models.RegimeSideways:
		return 4
	case models.RegimeBear, models.RegimeVolatile:
		return 2
	default:
		return 3
	}
}

// regimeLookbackDays is the calendar span fetched per classification,
// wide enough to cover 200 trading days.
const regimeLookbackDays = 320

// Classifier derives regime constraints for a symbol from its recent
// candles. Fusion consumes it as its RegimeSource.
type Classifier struct {
	feed dataflows.CandleFeed
}

func NewClassifier(feed dataflows.CandleFeed) *Classifier {
	return &Classifier{feed: feed}
}

// Constraints classifies the symbol as of date and attaches the
// position budget for the resulting regime.
func (c *Classifier) Constraints(ctx context.Context, symbol string, date time.Time) (models.RegimeConstraints, error) {
	unknown := models.RegimeConstraints{
		Regime:       models.RegimeUnknown,
		MaxPositions: maxPositionsFor(models.RegimeUnknown),
	}
	if err := ctx.Err(); err != nil {
		return unknown, err
	}

	start := date.AddDate(0, 0, -regimeLookbackDays)
	candles, err := c.feed.History(symbol, start, date)
	if err != nil {
		return unknown, fmt.Errorf("load candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return unknown, &models.MissingDataError{Symbol: symbol, Date: date, What: "candles"}
	}

	regime, vol := Classify(candles)
	return models.RegimeConstraints{
		Regime:       regime,
		Volatility:   vol,
		MaxPositions: maxPositionsFor(regime),
	}, nil
}
