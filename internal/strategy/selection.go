package strategy

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/models"
)

const (
	// selectionLookbackDays is the calendar span fetched per symbol,
	// enough for the 60-trading-day factor window plus holidays.
	selectionLookbackDays = 150
	// minRankCandles is how much history a symbol needs to be scored.
	minRankCandles = 60
)

// rankFactorOrder fixes the accumulation order so composite scores are
// reproducible run to run.
var rankFactorOrder = []string{
	"momentum_20d",
	"momentum_60d",
	"volatility",
	"rsi_score",
	"volume_ratio",
	"trend_strength",
}

// rankWeights is the factor weighting for cross-sectional ranking.
// Volatility carries a negative weight: calmer names score higher.
var rankWeights = map[string]float64{
	"momentum_20d":   0.25,
	"momentum_60d":   0.15,
	"volatility":     -0.15,
	"rsi_score":      0.15,
	"volume_ratio":   0.10,
	"trend_strength": 0.20,
}

// StockSelector ranks a symbol pool by composite factor score and
// returns the top slice as the cycle's trading targets.
type StockSelector struct {
	feed dataflows.CandleFeed
	pool []string
	topN int
}

func NewStockSelector(feed dataflows.CandleFeed, pool []string, topN int) *StockSelector {
	return &StockSelector{feed: feed, pool: pool, topN: topN}
}

type symbolScore struct {
	symbol  string
	factors map[string]float64
	score   float64
}

// Select scores the pool as of date and returns the top symbols, best
// first. Symbols with missing or short history are skipped, not fatal.
func (ss *StockSelector) Select(date time.Time) ([]string, error) {
	if len(ss.pool) == 0 {
		return nil, fmt.Errorf("empty symbol pool")
	}
	start := date.AddDate(0, 0, -selectionLookbackDays)

	var scored []*symbolScore
	for _, symbol := range ss.pool {
		candles, err := ss.feed.History(symbol, start, date)
		if err != nil {
			log.Printf("[Selection] skip %s: %v", symbol, err)
			continue
		}
		if len(candles) < minRankCandles {
			continue
		}
		scored = append(scored, &symbolScore{symbol: symbol, factors: rankFactors(candles)})
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("no symbol in the pool had %d days of history by %s", minRankCandles, date.Format("2006-01-02"))
	}

	// Cross-sectional z-scores keep one outsized raw factor from
	// dominating the composite.
	for _, name := range rankFactorOrder {
		mean, stdDev := factorStats(scored, name)
		if stdDev == 0 {
			continue
		}
		weight := rankWeights[name]
		for _, sc := range scored {
			sc.score += (sc.factors[name] - mean) / stdDev * weight
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	n := ss.topN
	if n <= 0 || n > len(scored) {
		n = len(scored)
	}
	out := make([]string, 0, n)
	for _, sc := range scored[:n] {
		out = append(out, sc.symbol)
	}
	log.Printf("[Selection] ranked %d of %d symbols for %s, picked %v", len(scored), len(ss.pool), date.Format("2006-01-02"), out)
	return out, nil
}

// rankFactors computes one symbol's raw factor values. Candles are
// oldest first.
func rankFactors(candles []*models.Candle) map[string]float64 {
	closes := closeSeries(candles)
	volumes := volumeSeries(candles)
	last := len(closes) - 1
	price := closes[last]

	factors := map[string]float64{
		"momentum_20d":   0,
		"momentum_60d":   0,
		"volume_ratio":   1,
		"trend_strength": 0,
	}

	if len(closes) >= 20 && closes[last-19] != 0 {
		factors["momentum_20d"] = price/closes[last-19] - 1
	}
	if len(closes) >= 60 && closes[last-59] != 0 {
		factors["momentum_60d"] = price/closes[last-59] - 1
	}

	factors["volatility"] = annualizedVol(closes, 20)

	// RSI near 50 scores best: neither chased nor falling apart.
	strength := rsi(closes, 14)
	factors["rsi_score"] = 1 - math.Abs(strength-50)/50

	if avg20 := smaAt(volumes, 20, len(volumes)-1); avg20 > 0 {
		factors["volume_ratio"] = smaAt(volumes, 5, len(volumes)-1) / avg20
	}

	if len(closes) >= 50 {
		ma20 := sma(closes, 20)
		ma50 := sma(closes, 50)
		if ma20 > 0 && ma50 > 0 {
			aboveMA20 := (price - ma20) / ma20
			aboveMA50 := (price - ma50) / ma50
			maTrend := (ma20 - ma50) / ma50
			factors["trend_strength"] = aboveMA20*0.4 + aboveMA50*0.3 + maTrend*0.3
		}
	}
	return factors
}

func factorStats(scored []*symbolScore, name string) (mean, stdDev float64) {
	for _, sc := range scored {
		mean += sc.factors[name]
	}
	mean /= float64(len(scored))

	var variance float64
	for _, sc := range scored {
		diff := sc.factors[name] - mean
		variance += diff * diff
	}
	variance /= float64(len(scored))
	return mean, math.Sqrt(variance)
}
