// Package strategy holds the closed registry of trading strategies, the
// regime classifier feeding fusion, and the selectors that pick which
// strategy and which symbols to trade. Every strategy signal is fully
// deterministic over its candle window; reasoning models only choose
// between them.
package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/models"
)

// Registry ids. They are stable identifiers: stored selections, orders
// and daily summaries reference them by value.
const (
	TrendFollowing   = "trend_following"
	MeanReversion    = "mean_reversion"
	MomentumBreakout = "momentum_breakout"
	Reversal         = "reversal"
	RangeTrading     = "range_trading"
	DefaultTiming    = "default_timing"
)

// Signal is one strategy's deterministic read of a candle window. Stop
// levels are advisory: execution fills market-on-open and the levels
// only inform the risk debate and the daily summary.
type Signal struct {
	Decision   models.Decision
	Confidence float64
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Reason     string
}

// Strategy is one registry entry. Evaluate never errors: with too
// little history it holds with zero confidence.
type Strategy struct {
	ID         string
	Name       string
	Hypothesis string
	Behavior   string
	MinCandles int
	Evaluate   func(candles []*models.Candle, holding bool) Signal
}

var registry = map[string]*Strategy{
	TrendFollowing: {
		ID:         TrendFollowing,
		Name:       "Trend following",
		Hypothesis: "an established trend persists",
		Behavior:   "rides moving-average confirmed trends with ATR stops; expects steady gains while the trend holds and small repeated losses in choppy tape",
		MinCandles: 50,
		Evaluate:   trendFollowing,
	},
	MeanReversion: {
		ID:         MeanReversion,
		Name:       "Mean reversion",
		Hypothesis: "stretched prices revert to their average",
		Behavior:   "buys oversold dips under the lower band and exits into strength; expects quick snap-backs and suffers when a selloff keeps trending",
		MinCandles: 20,
		Evaluate:   meanReversion,
	},
	MomentumBreakout: {
		ID:         MomentumBreakout,
		Name:       "Momentum breakout",
		Hypothesis: "a volume-confirmed breakout keeps running",
		Behavior:   "chases 20-day highs on heavy volume with a wide profit target; expects outsized wins on real breakouts and stops out fast on failures",
		MinCandles: 21,
		Evaluate:   momentumBreakout,
	},
	Reversal: {
		ID:         Reversal,
		Name:       "Reversal",
		Hypothesis: "capitulation extremes mark turning points",
		Behavior:   "buys washed-out lows on elevated volume; expects sharp rebounds from panic selling and dead money when the low keeps breaking",
		MinCandles: 20,
		Evaluate:   reversal,
	},
	RangeTrading: {
		ID:         RangeTrading,
		Name:       "Range trading",
		Hypothesis: "price oscillates inside a defined band",
		Behavior:   "buys the lower edge of a tight range and sells the upper; expects small repeatable gains and stands aside the moment the range breaks",
		MinCandles: 20,
		Evaluate:   rangeTrading,
	},
	DefaultTiming: {
		ID:         DefaultTiming,
		Name:       "Default timing",
		Hypothesis: "short-term momentum filters entry timing",
		Behavior:   "conservative moving-average timing used when no specialist hypothesis fits; trades less often and keeps stops tight",
		MinCandles: 20,
		Evaluate:   defaultTiming,
	},
}

// orderedIDs fixes iteration order for prompts, display, and the
// no-model fallback.
var orderedIDs = []string{
	TrendFollowing,
	MeanReversion,
	MomentumBreakout,
	Reversal,
	RangeTrading,
	DefaultTiming,
}

// Lookup finds a registry entry by id. Callers normalize case first.
func Lookup(id string) (*Strategy, bool) {
	s, ok := registry[id]
	return s, ok
}

// Default is the strategy every degraded selection lands on.
func Default() *Strategy {
	return registry[DefaultTiming]
}

// IDs lists the registry in fixed order.
func IDs() []string {
	out := make([]string, len(orderedIDs))
	copy(out, orderedIDs)
	return out
}

// catalog renders the registry for selection prompts.
func catalog() string {
	var b strings.Builder
	for _, id := range orderedIDs {
		s := registry[id]
		fmt.Fprintf(&b, "- %s: %s. %s.\n", s.ID, s.Hypothesis, s.Behavior)
	}
	return b.String()
}

func hold(confidence float64, reason string) Signal {
	return Signal{Decision: models.DecisionHold, Confidence: confidence, Reason: reason}
}

// percentStops derives fixed-percent stop and target levels from the
// current price.
func percentStops(price, stopPct, profitPct float64) (decimal.Decimal, decimal.Decimal) {
	stop := decimal.NewFromFloat(price * (1 - stopPct)).Round(4)
	target := decimal.NewFromFloat(price * (1 + profitPct)).Round(4)
	return stop, target
}

// atrStops derives stop and target levels from the average true range.
func atrStops(price, trueRange, stopMult, profitMult float64) (decimal.Decimal, decimal.Decimal) {
	stop := decimal.NewFromFloat(price - stopMult*trueRange).Round(4)
	target := decimal.NewFromFloat(price + profitMult*trueRange).Round(4)
	return stop, target
}

// trendFollowing trades MA20/MA50 alignment with a rising MA20 and ATR
// based exits.
func trendFollowing(candles []*models.Candle, holding bool) Signal {
	if len(candles) < 50 {
		return hold(0, "insufficient history")
	}

	closes := closeSeries(candles)
	price := closes[len(closes)-1]
	ma20 := sma(closes, 20)
	ma50 := sma(closes, 50)

	slope := 0.0
	if prev := smaAt(closes, 20, len(closes)-5); prev != 0 {
		slope = (ma20 - prev) / prev
	}

	stop, target := atrStops(price, atr(candles, 14), 2, 3)

	if holding {
		if price < ma20 || ma20 < ma50 {
			return Signal{
				Decision:   models.DecisionSell,
				Confidence: 0.7,
				StopLoss:   stop,
				TakeProfit: target,
				Reason:     fmt.Sprintf("trend break: price %.2f lost MA20 %.2f or MA20 lost MA50 %.2f", price, ma20, ma50),
			}
		}
		return Signal{
			Decision:   models.DecisionHold,
			Confidence: 0.5,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     "trend intact",
		}
	}

	if price > ma20 && ma20 > ma50 && slope > 0 {
		return Signal{
			Decision:   models.DecisionBuy,
			Confidence: math.Min(0.9, 0.5+math.Abs(slope)*10),
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     fmt.Sprintf("trend confirmed: price %.2f > MA20 %.2f > MA50 %.2f with MA20 rising", price, ma20, ma50),
		}
	}
	return hold(0.3, "no trend signal")
}

// meanReversion trades RSI extremes against 1.5-sigma bands with fixed
// 6% stop and 10% target.
func meanReversion(candles []*models.Candle, holding bool) Signal {
	if len(candles) < 20 {
		return hold(0, "insufficient history")
	}

	closes := closeSeries(candles)
	price := closes[len(closes)-1]
	strength := rsi(closes, 14)
	upper, lower := bollinger(closes, 20, 1.5)
	stop, target := percentStops(price, 0.06, 0.10)

	if holding {
		if strength > 65 || price > upper {
			return Signal{
				Decision:   models.DecisionSell,
				Confidence: 0.8,
				StopLoss:   stop,
				TakeProfit: target,
				Reason:     fmt.Sprintf("overbought: RSI %.1f or price %.2f above upper band %.2f", strength, price, upper),
			}
		}
		return Signal{
			Decision:   models.DecisionHold,
			Confidence: 0.5,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     "waiting for reversion",
		}
	}

	if strength < 35 && price < lower {
		return Signal{
			Decision:   models.DecisionBuy,
			Confidence: 0.5 + (35-strength)/35*0.4,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     fmt.Sprintf("oversold: RSI %.1f under 35 and price %.2f under lower band %.2f", strength, price, lower),
		}
	}
	return hold(0.3, "no oversold signal")
}

// momentumBreakout buys a close above the prior 20-day high when
// volume runs at least 1.2x its 20-day average, and exits a break of
// the 10-day low.
func momentumBreakout(candles []*models.Candle, holding bool) Signal {
	if len(candles) < 21 {
		return hold(0, "insufficient history")
	}

	closes := closeSeries(candles)
	volumes := volumeSeries(candles)
	price := closes[len(closes)-1]
	// Both reference windows end at the prior bar so today's own print
	// can actually cross them.
	priorHigh := maxWindow(closes, 20, len(closes)-2)
	low10 := minWindow(closes, 10, len(closes)-2)
	stop, target := percentStops(price, 0.07, 0.18)

	if holding {
		if price < low10 {
			return Signal{
				Decision:   models.DecisionSell,
				Confidence: 0.7,
				StopLoss:   stop,
				TakeProfit: target,
				Reason:     fmt.Sprintf("breakout failed: price %.2f under 10-day low %.2f", price, low10),
			}
		}
		return Signal{
			Decision:   models.DecisionHold,
			Confidence: 0.5,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     "breakout holding",
		}
	}

	volumeRatio := 1.0
	if avgVolume := smaAt(volumes, 20, len(volumes)-1); avgVolume > 0 {
		volumeRatio = volumes[len(volumes)-1] / avgVolume
	}
	if price > priorHigh && volumeRatio > 1.2 {
		return Signal{
			Decision:   models.DecisionBuy,
			Confidence: math.Min(0.9, 0.5+(volumeRatio-1.2)/1.2*0.4),
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     fmt.Sprintf("breakout: price %.2f above 20-day high %.2f on %.1fx volume", price, priorHigh, volumeRatio),
		}
	}
	return hold(0.3, "no breakout")
}

// reversal buys the bottom quarter of the 20-day range on low RSI and
// elevated volume, and sells the top quarter on high RSI.
func reversal(candles []*models.Candle, holding bool) Signal {
	if len(candles) < 20 {
		return hold(0, "insufficient history")
	}

	closes := closeSeries(candles)
	volumes := volumeSeries(candles)
	price := closes[len(closes)-1]
	low20 := minWindow(closes, 20, len(closes)-1)
	high20 := maxWindow(closes, 20, len(closes)-1)
	priceRange := high20 - low20
	strength := rsi(closes, 14)

	position := 50.0
	if priceRange > 0 {
		position = (price - low20) / priceRange * 100
	}
	stop, target := percentStops(price, 0.06, 0.12)

	if holding {
		if position > 75 && strength > 65 {
			return Signal{
				Decision:   models.DecisionSell,
				Confidence: 0.8,
				StopLoss:   stop,
				TakeProfit: target,
				Reason:     fmt.Sprintf("overbought reversal: price at %.0f%% of 20-day range, RSI %.1f", position, strength),
			}
		}
		return Signal{
			Decision:   models.DecisionHold,
			Confidence: 0.5,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     "waiting for the turn",
		}
	}

	volumeRatio := 1.0
	if avgVolume := smaAt(volumes, 20, len(volumes)-1); avgVolume > 0 {
		volumeRatio = volumes[len(volumes)-1] / avgVolume
	}
	if position < 25 && strength < 35 && volumeRatio > 1.2 {
		confidence := 0.5 +
			(35-strength)/35*0.3 +
			(25-position)/25*0.2 +
			math.Min(0.2, (volumeRatio-1.2)/1.2*0.2)
		return Signal{
			Decision:   models.DecisionBuy,
			Confidence: math.Min(0.9, confidence),
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     fmt.Sprintf("capitulation: price at %.0f%% of range, RSI %.1f, %.1fx volume", position, strength, volumeRatio),
		}
	}
	return hold(0.3, "no reversal setup")
}

// rangeTrading only acts when the 20-day range is under 18% of price,
// buying the lower quarter and selling the upper.
func rangeTrading(candles []*models.Candle, holding bool) Signal {
	if len(candles) < 20 {
		return hold(0, "insufficient history")
	}

	closes := closeSeries(candles)
	price := closes[len(closes)-1]
	low20 := minWindow(closes, 20, len(closes)-1)
	high20 := maxWindow(closes, 20, len(closes)-1)
	priceRange := high20 - low20
	strength := rsi(closes, 14)

	if price <= 0 || priceRange/price >= 0.18 {
		return hold(0.2, "not range-bound")
	}

	position := 0.5
	if priceRange > 0 {
		position = (price - low20) / priceRange
	}
	stop, target := percentStops(price, 0.05, 0.08)

	if holding {
		if position > 0.75 || strength > 65 {
			return Signal{
				Decision:   models.DecisionSell,
				Confidence: 0.7,
				StopLoss:   stop,
				TakeProfit: target,
				Reason:     fmt.Sprintf("upper edge: price at %.0f%% of range, RSI %.1f", position*100, strength),
			}
		}
		return Signal{
			Decision:   models.DecisionHold,
			Confidence: 0.5,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     "inside the range",
		}
	}

	if position < 0.25 && strength < 35 {
		return Signal{
			Decision:   models.DecisionBuy,
			Confidence: 0.5 + (35-strength)/35*0.3,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     fmt.Sprintf("lower edge: price at %.0f%% of range, RSI %.1f", position*100, strength),
		}
	}
	return hold(0.3, "not at the lower edge")
}

// defaultTiming is the conservative fallback: MA5/MA20 alignment with
// tight ATR exits. Degraded selections land here.
func defaultTiming(candles []*models.Candle, holding bool) Signal {
	if len(candles) < 20 {
		return hold(0, "insufficient history")
	}

	closes := closeSeries(candles)
	price := closes[len(closes)-1]
	ma5 := sma(closes, 5)
	ma20 := sma(closes, 20)
	stop, target := atrStops(price, atr(candles, 14), 2, 2)

	if holding {
		if price < ma5 && ma5 < ma20 {
			return Signal{
				Decision:   models.DecisionSell,
				Confidence: 0.6,
				StopLoss:   stop,
				TakeProfit: target,
				Reason:     fmt.Sprintf("timing exit: price %.2f under MA5 %.2f under MA20 %.2f", price, ma5, ma20),
			}
		}
		return Signal{
			Decision:   models.DecisionHold,
			Confidence: 0.5,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     "timing intact",
		}
	}

	if price > ma5 && ma5 > ma20 {
		return Signal{
			Decision:   models.DecisionBuy,
			Confidence: 0.55,
			StopLoss:   stop,
			TakeProfit: target,
			Reason:     fmt.Sprintf("timing entry: price %.2f over MA5 %.2f over MA20 %.2f", price, ma5, ma20),
		}
	}
	return hold(0.3, "no timing edge")
}
