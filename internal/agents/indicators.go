package agents

import (
	"fmt"
	"math"
	"strings"

	"github.com/dyike/tradecycle/internal/models"
)

// indicatorSet carries the technical readings the market analyst
// reports on. A zero Samples means the series was too short to
// compute anything.
type indicatorSet struct {
	Samples int

	Close     float64
	DayChange float64 // percent vs the prior close
	Volume    int64

	EMA10  float64
	SMA50  float64
	SMA200 float64
	VWMA20 float64

	RSI14      float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	MFI14      float64

	BollMid   float64
	BollUpper float64
	BollLower float64
	ATR14     float64
}

// computeIndicators evaluates the standard indicator set at the last
// candle of the window. Indicators whose period exceeds the window
// stay zero and are dropped from the rendering.
func computeIndicators(candles []*models.Candle) indicatorSet {
	set := indicatorSet{Samples: len(candles)}
	if len(candles) == 0 {
		return set
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		volumes[i] = float64(c.Volume)
	}

	last := candles[len(candles)-1]
	set.Close = closes[len(closes)-1]
	set.Volume = last.Volume
	if len(closes) >= 2 && closes[len(closes)-2] != 0 {
		set.DayChange = (set.Close/closes[len(closes)-2] - 1) * 100
	}

	if ema := emaSeries(closes, 10); len(ema) > 0 {
		set.EMA10 = ema[len(ema)-1]
	}
	set.SMA50 = smaAt(closes, 50)
	set.SMA200 = smaAt(closes, 200)
	set.VWMA20 = vwmaAt(closes, volumes, 20)
	set.RSI14 = rsiAt(closes, 14)
	set.MACD, set.MACDSignal, set.MACDHist = macdAt(closes)
	set.MFI14 = mfiAt(highs, lows, closes, volumes, 14)
	set.BollMid, set.BollUpper, set.BollLower = bollingerAt(closes, 20, 2)
	set.ATR14 = atrAt(highs, lows, closes, 14)

	return set
}

// render lists the computable readings one per line, in the order
// traders scan them.
func (s indicatorSet) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "close: %.2f (%+.2f%% on the day), volume %d\n", s.Close, s.DayChange, s.Volume)

	line := func(name string, v float64) {
		if v != 0 {
			fmt.Fprintf(&b, "%s: %.2f\n", name, v)
		}
	}
	line("close_10_ema", s.EMA10)
	line("close_50_sma", s.SMA50)
	line("close_200_sma", s.SMA200)
	line("vwma_20", s.VWMA20)
	line("rsi_14", s.RSI14)
	if s.MACDSignal != 0 || s.MACD != 0 {
		fmt.Fprintf(&b, "macd: %.3f signal: %.3f hist: %.3f\n", s.MACD, s.MACDSignal, s.MACDHist)
	}
	line("mfi_14", s.MFI14)
	if s.BollMid != 0 {
		fmt.Fprintf(&b, "boll(20,2): mid %.2f upper %.2f lower %.2f\n", s.BollMid, s.BollUpper, s.BollLower)
	}
	line("atr_14", s.ATR14)
	return strings.TrimRight(b.String(), "\n")
}

func smaAt(vals []float64, period int) float64 {
	if len(vals) < period || period <= 0 {
		return 0
	}
	var total float64
	for _, v := range vals[len(vals)-period:] {
		total += v
	}
	return total / float64(period)
}

// emaSeries seeds with the period SMA and smooths forward, one value
// per candle from index period-1 on.
func emaSeries(vals []float64, period int) []float64 {
	if len(vals) < period || period <= 0 {
		return nil
	}
	multiplier := 2.0 / (float64(period) + 1.0)

	var seed float64
	for _, v := range vals[:period] {
		seed += v
	}
	ema := seed / float64(period)

	series := make([]float64, 0, len(vals)-period+1)
	series = append(series, ema)
	for _, v := range vals[period:] {
		ema = v*multiplier + ema*(1-multiplier)
		series = append(series, ema)
	}
	return series
}

// rsiAt is the Wilder-smoothed relative strength index.
func rsiAt(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var gain, loss float64
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

// macdAt returns the 12/26 MACD line, its 9-period signal, and the
// histogram at the last candle.
func macdAt(closes []float64) (macd, signal, hist float64) {
	ema12 := emaSeries(closes, 12)
	ema26 := emaSeries(closes, 26)
	if len(ema26) == 0 {
		return 0, 0, 0
	}

	// ema12 starts 14 candles earlier than ema26; align their tails.
	offset := len(ema12) - len(ema26)
	macdLine := make([]float64, len(ema26))
	for i := range ema26 {
		macdLine[i] = ema12[i+offset] - ema26[i]
	}

	macd = macdLine[len(macdLine)-1]
	signalSeries := emaSeries(macdLine, 9)
	if len(signalSeries) == 0 {
		return macd, 0, 0
	}
	signal = signalSeries[len(signalSeries)-1]
	return macd, signal, macd - signal
}

func bollingerAt(closes []float64, period int, multiplier float64) (mid, upper, lower float64) {
	if len(closes) < period {
		return 0, 0, 0
	}
	mid = smaAt(closes, period)

	var variance float64
	for _, v := range closes[len(closes)-period:] {
		diff := v - mid
		variance += diff * diff
	}
	variance /= float64(period)
	stdDev := math.Sqrt(variance)

	return mid, mid + multiplier*stdDev, mid - multiplier*stdDev
}

// atrAt averages the true range over the trailing period.
func atrAt(highs, lows, closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}

	trueRanges := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
		tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		trueRanges = append(trueRanges, tr)
	}

	var total float64
	for _, tr := range trueRanges[len(trueRanges)-period:] {
		total += tr
	}
	return total / float64(period)
}

func vwmaAt(closes, volumes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	var weighted, totalVolume float64
	for i := len(closes) - period; i < len(closes); i++ {
		weighted += closes[i] * volumes[i]
		totalVolume += volumes[i]
	}
	if totalVolume == 0 {
		return 0
	}
	return weighted / totalVolume
}

// mfiAt is the money flow index over typical prices.
func mfiAt(highs, lows, closes, volumes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}

	typical := func(i int) float64 { return (highs[i] + lows[i] + closes[i]) / 3 }

	var positive, negative float64
	for i := len(closes) - period; i < len(closes); i++ {
		flow := typical(i) * volumes[i]
		switch {
		case typical(i) > typical(i-1):
			positive += flow
		case typical(i) < typical(i-1):
			negative += flow
		}
	}

	if negative == 0 {
		return 100
	}
	ratio := positive / negative
	return 100 - (100 / (1 + ratio))
}
