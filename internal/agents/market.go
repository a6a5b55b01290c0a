package agents

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
)

// marketLookbackDays is the calendar window fetched per report, wide
// enough for the 200-day average on markets with holiday runs.
const marketLookbackDays = 320

const marketSystemPrompt = `You are the market analyst on an autonomous trading desk. You turn one symbol's technical readings into the report the desk trades from at the next session open.

Your responsibilities:
1. Read the trend from the moving-average stack and the MACD, and say plainly whether price action confirms it.
2. Flag stretched oscillators (RSI, MFI) and proximity to the Bollinger rails as mean-reversion risk.
3. Size the day's move against ATR so the desk knows whether it was noise or a regime change.
4. Close with one sentence on what would invalidate your reading.

Write three or four compact paragraphs of plain prose. No bullet lists, no headers, no trade recommendation; direction is the researchers' call, not yours.`

// Market reports the technical picture for a symbol-day from its
// candle history. Reports land in the intraday stream.
type Market struct {
	feed   dataflows.CandleFeed
	client *llm.Client
}

func NewMarket(feed dataflows.CandleFeed, client *llm.Client) *Market {
	return &Market{feed: feed, client: client}
}

func (m *Market) Name() string { return models.AnalystMarket }

func (m *Market) Report(ctx context.Context, symbol string, date time.Time) (*models.AnalystReport, error) {
	candles, err := m.feed.History(symbol, date.AddDate(0, 0, -marketLookbackDays), date)
	if err != nil {
		return nil, fmt.Errorf("market analyst %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, &models.MissingDataError{Symbol: symbol, Date: date, What: "candle history"}
	}

	set := computeIndicators(candles)
	evidence := fmt.Sprintf("Technical readings for %s as of %s (%d trading days of history):\n%s",
		symbol, date.Format(dateLayout), set.Samples, set.render())

	body, err := narrate(ctx, m.client, marketSystemPrompt, evidence)
	if err != nil {
		if m.client != nil {
			log.Printf("[Agents] market narrative for %s degraded to extractive: %v", symbol, err)
		}
		body = m.extractive(set)
	}

	return &models.AnalystReport{
		Symbol:     symbol,
		Analyst:    models.AnalystMarket,
		TradeDate:  date,
		Content:    clip(evidence + "\n\n" + body),
		Confidence: m.confidence(set),
	}, nil
}

// extractive is the no-model rendering: one line per reading that has
// an unambiguous interpretation.
func (m *Market) extractive(set indicatorSet) string {
	var lines []string

	if set.SMA50 != 0 && set.SMA200 != 0 {
		switch {
		case set.Close > set.SMA50 && set.SMA50 > set.SMA200:
			lines = append(lines, "Price holds above both long averages with the 50-day over the 200-day, a bullish alignment.")
		case set.Close < set.SMA50 && set.SMA50 < set.SMA200:
			lines = append(lines, "Price sits below both long averages with the 50-day under the 200-day, a bearish alignment.")
		default:
			lines = append(lines, "The moving averages are crossed against each other; the trend is unresolved.")
		}
	} else if set.SMA50 != 0 {
		if set.Close > set.SMA50 {
			lines = append(lines, "Price trades above its 50-day average.")
		} else {
			lines = append(lines, "Price trades below its 50-day average.")
		}
	}

	switch {
	case set.RSI14 >= 70:
		lines = append(lines, fmt.Sprintf("RSI at %.1f is overbought.", set.RSI14))
	case set.RSI14 > 0 && set.RSI14 <= 30:
		lines = append(lines, fmt.Sprintf("RSI at %.1f is oversold.", set.RSI14))
	}

	if set.MACDSignal != 0 {
		if set.MACDHist > 0 {
			lines = append(lines, "MACD runs above its signal line, momentum positive.")
		} else {
			lines = append(lines, "MACD runs below its signal line, momentum negative.")
		}
	}

	if set.BollUpper != 0 {
		switch {
		case set.Close >= set.BollUpper:
			lines = append(lines, "Price is pressing the upper Bollinger rail.")
		case set.Close <= set.BollLower:
			lines = append(lines, "Price is pressing the lower Bollinger rail.")
		}
	}

	if set.ATR14 != 0 && set.Close != 0 {
		if move := math.Abs(set.DayChange / 100 * set.Close); move > set.ATR14 {
			lines = append(lines, "Today's move exceeded one average true range.")
		}
	}

	if len(lines) == 0 {
		lines = append(lines, "History is too short for a trend reading; treat the tape as unclassified.")
	}
	return strings.Join(lines, " ")
}

// confidence grows with history depth: the 200-day average needs the
// full window, oscillators settle much earlier.
func (m *Market) confidence(set indicatorSet) float64 {
	switch {
	case set.Samples >= 200:
		return 0.9
	case set.Samples >= 60:
		return 0.7
	case set.Samples >= 20:
		return 0.5
	default:
		return clampConfidence(0.3)
	}
}
