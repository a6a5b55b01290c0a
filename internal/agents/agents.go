// Package agents ships the reference analysts. Each one turns raw
// feed data for a symbol-day into a schema-valid report for its
// memory stream: market writes intraday, news and sentiment write
// daily, fundamentals writes slow. They are ordinary collaborators
// behind the session router's Analyst interface; external systems can
// submit reports through the same ingestion path without them.
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/llm"
)

const dateLayout = "2006-01-02"

// maxReportChars caps what an analyst hands to ingestion. Overlong
// reports bloat the fusion context and the digest prompts downstream.
const maxReportChars = 4000

// NewsSource serves dated articles for a symbol or a free-form query.
// dataflows.DataFlowInterface implements it.
type NewsSource interface {
	CompanyNews(symbol string, from, to time.Time) ([]*dataflows.NewsArticle, error)
	GoogleNews(query string, startDate, endDate time.Time, maxResults int) ([]*dataflows.NewsArticle, error)
}

// InsiderSource serves insider activity aggregates for a symbol.
type InsiderSource interface {
	InsiderSentiment(symbol string, from, to time.Time) ([]*dataflows.InsiderSentiment, error)
	InsiderTransactions(symbol string, from, to time.Time) ([]*dataflows.InsiderTransaction, error)
}

// ProfileSource serves company reference data keyed by symbol.
type ProfileSource interface {
	CompanyInfo(symbol string) (map[string]interface{}, error)
}

// narrate runs one completion over the assembled evidence. When no
// client is wired or the model fails, the caller falls back to its
// extractive rendering, so a dead LLM never blocks ingestion.
func narrate(ctx context.Context, client *llm.Client, system, evidence string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("no llm client wired")
	}
	reply, err := client.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(evidence),
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("model returned an empty report")
	}
	return clip(reply), nil
}

func clip(s string) string {
	if len(s) <= maxReportChars {
		return s
	}
	return s[:maxReportChars]
}

// clampConfidence keeps heuristic scores inside the range ingestion
// accepts, with a floor that keeps thin-data reports above the fusion
// noise gate.
func clampConfidence(c float64) float64 {
	if c < 0.2 {
		return 0.2
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}
