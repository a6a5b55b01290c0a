package agents

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
)

// sentimentLookbackDays covers roughly three filing months of insider
// aggregates plus the week of discussion-tone headlines.
const sentimentLookbackDays = 90

const sentimentSystemPrompt = `You are the sentiment analyst on an autonomous trading desk. You read crowd and insider positioning for one company and report how the mood is leaning into the next open.

Your responsibilities:
1. Weigh insider buying against selling; insiders acting with their own money outrank commentary.
2. Read the tone of the week's discussion headlines: euphoric, fearful, or indifferent.
3. Flag divergence between insiders and the crowd explicitly; that gap is the signal.
4. State how much conviction the evidence supports, and say when it supports none.

Write two compact paragraphs of plain prose. No bullet lists, no headers, no trade recommendation.`

// Sentiment reports crowd and insider mood for a symbol. Reports land
// in the daily stream.
type Sentiment struct {
	insiders InsiderSource
	news     NewsSource
	client   *llm.Client
}

func NewSentiment(insiders InsiderSource, news NewsSource, client *llm.Client) *Sentiment {
	return &Sentiment{insiders: insiders, news: news, client: client}
}

func (s *Sentiment) Name() string { return models.AnalystSentiment }

func (s *Sentiment) Report(ctx context.Context, symbol string, date time.Time) (*models.AnalystReport, error) {
	from := date.AddDate(0, 0, -sentimentLookbackDays)

	sentiments, sentErr := s.insiders.InsiderSentiment(symbol, from, date)
	if sentErr != nil {
		log.Printf("[Agents] insider sentiment for %s unavailable: %v", symbol, sentErr)
	}

	var headlines []*dataflows.NewsArticle
	if s.news != nil {
		if arts, err := s.news.GoogleNews(symbol+" investors", date.AddDate(0, 0, -newsLookbackDays), date, 8); err == nil {
			headlines = dedupeArticles(arts)
		}
	}

	if len(sentiments) == 0 && len(headlines) == 0 {
		if sentErr != nil {
			return nil, fmt.Errorf("sentiment analyst %s: %w", symbol, sentErr)
		}
		return nil, &models.MissingDataError{Symbol: symbol, Date: date, What: "sentiment evidence"}
	}

	evidence := renderSentiment(symbol, date, sentiments, headlines)

	body, err := narrate(ctx, s.client, sentimentSystemPrompt, evidence)
	if err != nil {
		if s.client != nil {
			log.Printf("[Agents] sentiment narrative for %s degraded to extractive: %v", symbol, err)
		}
		body = extractiveSentiment(sentiments, headlines)
	}

	confidence := 0.3
	if len(sentiments) > 0 {
		confidence += 0.3
	}
	if len(headlines) >= 3 {
		confidence += 0.2
	}

	return &models.AnalystReport{
		Symbol:     symbol,
		Analyst:    models.AnalystSentiment,
		TradeDate:  date,
		Content:    clip(evidence + "\n\n" + body),
		Confidence: clampConfidence(confidence),
	}, nil
}

func renderSentiment(symbol string, date time.Time, sentiments []*dataflows.InsiderSentiment, headlines []*dataflows.NewsArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Positioning evidence for %s as of %s:\n", symbol, date.Format(dateLayout))

	if len(sentiments) == 0 {
		b.WriteString("insider sentiment: no filings in the window\n")
	} else {
		for _, ins := range sentiments {
			fmt.Fprintf(&b, "insider %04d-%02d: net change %+d shares, mspr %s\n",
				ins.Year, ins.Month, ins.Change, ins.MSPR.StringFixed(2))
		}
	}

	if len(headlines) > 0 {
		b.WriteString("discussion headlines:\n")
		for _, a := range headlines {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(a.Title))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func extractiveSentiment(sentiments []*dataflows.InsiderSentiment, headlines []*dataflows.NewsArticle) string {
	if len(sentiments) == 0 {
		return fmt.Sprintf("No insider filings in the window; %d discussion headlines with no tone model applied.", len(headlines))
	}

	var net int64
	mspr := decimal.Zero
	for _, ins := range sentiments {
		net += ins.Change
		mspr = mspr.Add(ins.MSPR)
	}
	mspr = mspr.Div(decimal.NewFromInt(int64(len(sentiments))))

	lean := "neutral"
	switch {
	case net > 0:
		lean = "accumulating"
	case net < 0:
		lean = "distributing"
	}
	return fmt.Sprintf("Insiders were net %s over the window (%+d shares, average mspr %s) across %d monthly aggregates.",
		lean, net, mspr.StringFixed(2), len(sentiments))
}
