package strategy

import (
	"math"

	"github.com/dyike/tradecycle/internal/models"
)

// tradingDaysPerYear scales daily return volatility to a yearly horizon.
const tradingDaysPerYear = 252

// closeSeries extracts closes as float64 for indicator arithmetic.
// Signals are advisory; only order fills stay in decimal.
func closeSeries(candles []*models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close.InexactFloat64()
	}
	return out
}

func volumeSeries(candles []*models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = float64(c.Volume)
	}
	return out
}

// smaAt is the simple moving average of the period values ending at
// index end, inclusive. Callers guarantee end-period+1 >= 0.
func smaAt(values []float64, period, end int) float64 {
	sum := 0.0
	for j := end - period + 1; j <= end; j++ {
		sum += values[j]
	}
	return sum / float64(period)
}

func sma(values []float64, period int) float64 {
	return smaAt(values, period, len(values)-1)
}

// bollinger returns the upper and lower bands for the period window
// ending at the last value.
func bollinger(values []float64, period int, multiplier float64) (upper, lower float64) {
	end := len(values) - 1
	mid := smaAt(values, period, end)

	var variance float64
	for j := end - period + 1; j <= end; j++ {
		diff := values[j] - mid
		variance += diff * diff
	}
	variance /= float64(period)
	stdDev := math.Sqrt(variance)

	return mid + multiplier*stdDev, mid - multiplier*stdDev
}

// rsi is the smoothed relative strength index over the whole series.
// Too little history reads as neutral 50.
func rsi(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// atr is the mean true range over the trailing period. With too few
// candles it falls back to 2% of the last close so stop levels stay
// usable.
func atr(candles []*models.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < period+1 {
		return candles[len(candles)-1].Close.InexactFloat64() * 0.02
	}

	var trueRanges []float64
	for i := 1; i < len(candles); i++ {
		high := candles[i].High.InexactFloat64()
		low := candles[i].Low.InexactFloat64()
		prevClose := candles[i-1].Close.InexactFloat64()
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trueRanges = append(trueRanges, tr)
	}

	sum := 0.0
	for j := len(trueRanges) - period; j < len(trueRanges); j++ {
		sum += trueRanges[j]
	}
	return sum / float64(period)
}

// maxWindow is the highest of the period values ending at index end.
func maxWindow(values []float64, period, end int) float64 {
	m := values[end-period+1]
	for j := end - period + 2; j <= end; j++ {
		if values[j] > m {
			m = values[j]
		}
	}
	return m
}

// minWindow is the lowest of the period values ending at index end.
func minWindow(values []float64, period, end int) float64 {
	m := values[end-period+1]
	for j := end - period + 2; j <= end; j++ {
		if values[j] < m {
			m = values[j]
		}
	}
	return m
}

// annualizedVol is the standard deviation of the trailing window's
// daily returns scaled to a yearly horizon.
func annualizedVol(values []float64, window int) float64 {
	if len(values) < window+1 {
		return 0
	}

	returns := make([]float64, 0, window)
	for i := len(values) - window; i < len(values); i++ {
		if values[i-1] != 0 {
			returns = append(returns, values[i]/values[i-1]-1)
		}
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
