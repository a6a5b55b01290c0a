package agents

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
)

const (
	// newsLookbackDays bounds the article window per report.
	newsLookbackDays = 7
	// maxNewsArticles caps what goes into the evidence block.
	maxNewsArticles = 12
)

const newsSystemPrompt = `You are the news analyst on an autonomous trading desk. You compress a week of headlines about one company into the report the desk reads before the next open.

Your responsibilities:
1. Lead with the single most price-relevant story and say why it matters for the name.
2. Group the rest by theme (earnings, product, legal, macro) instead of listing every headline.
3. Call out disagreement between sources rather than papering over it.
4. If the week was genuinely quiet, say so in one line instead of inflating noise.

Write two or three compact paragraphs of plain prose. No bullet lists, no headers, no trade recommendation.`

// News reports the week's headlines for a symbol. Company-scoped
// articles come first; a thin result widens to a general query.
// Reports land in the daily stream.
type News struct {
	source NewsSource
	client *llm.Client
}

func NewNews(source NewsSource, client *llm.Client) *News {
	return &News{source: source, client: client}
}

func (n *News) Name() string { return models.AnalystNews }

func (n *News) Report(ctx context.Context, symbol string, date time.Time) (*models.AnalystReport, error) {
	from := date.AddDate(0, 0, -newsLookbackDays)

	articles, err := n.source.CompanyNews(symbol, from, date)
	if err != nil {
		log.Printf("[Agents] company news for %s failed, widening to query search: %v", symbol, err)
	}
	if len(articles) < 3 {
		extra, gerr := n.source.GoogleNews(symbol+" stock", from, date, maxNewsArticles)
		if gerr == nil {
			articles = append(articles, extra...)
		} else if err != nil {
			// Both sources down is an ingestion failure, not an empty week.
			return nil, fmt.Errorf("news analyst %s: %w", symbol, err)
		}
	}

	articles = dedupeArticles(articles)
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	if len(articles) > maxNewsArticles {
		articles = articles[:maxNewsArticles]
	}

	evidence := renderArticles(symbol, date, articles)

	body, err := narrate(ctx, n.client, newsSystemPrompt, evidence)
	if err != nil {
		if n.client != nil {
			log.Printf("[Agents] news narrative for %s degraded to extractive: %v", symbol, err)
		}
		body = extractiveNews(articles)
	}

	return &models.AnalystReport{
		Symbol:     symbol,
		Analyst:    models.AnalystNews,
		TradeDate:  date,
		Content:    clip(evidence + "\n\n" + body),
		Confidence: clampConfidence(float64(len(articles)) / 10),
	}, nil
}

func renderArticles(symbol string, date time.Time, articles []*dataflows.NewsArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Headlines for %s in the week ending %s (%d articles):\n", symbol, date.Format(dateLayout), len(articles))
	if len(articles) == 0 {
		b.WriteString("(no coverage found)")
		return b.String()
	}
	for _, a := range articles {
		day := "undated"
		if !a.PublishedAt.IsZero() {
			day = a.PublishedAt.Format(dateLayout)
		}
		fmt.Fprintf(&b, "[%s] %s (%s)\n", day, strings.TrimSpace(a.Title), a.Source)
	}
	return strings.TrimRight(b.String(), "\n")
}

func extractiveNews(articles []*dataflows.NewsArticle) string {
	if len(articles) == 0 {
		return "No coverage this week; the name traded without a news catalyst."
	}
	lead := strings.TrimSpace(articles[0].Title)
	return fmt.Sprintf("%d articles this week, led by %q. Headlines only; no model summary was available.", len(articles), lead)
}

// dedupeArticles drops repeats of the same headline from syndication,
// keeping first occurrence order.
func dedupeArticles(articles []*dataflows.NewsArticle) []*dataflows.NewsArticle {
	seen := make(map[string]bool, len(articles))
	out := articles[:0]
	for _, a := range articles {
		key := strings.ToLower(strings.TrimSpace(a.Title))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
