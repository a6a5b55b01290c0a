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

// fundamentalsLookbackDays bounds the insider-transaction window the
// slow-stream report draws on.
const fundamentalsLookbackDays = 90

const fundamentalsSystemPrompt = `You are the fundamentals analyst on an autonomous trading desk. You assess one company's business quality and valuation for the slow memory tier, where your report outlives the week's price action.

Your responsibilities:
1. Judge valuation from the profile metrics relative to what the business quality justifies, not to a fixed threshold.
2. Read insider transactions as management's own verdict on that valuation.
3. Separate durable facts (market position, balance sheet) from transient ones (one quarter's move).
4. Keep the horizon in weeks and months; the desk has other analysts for the tape.

Write two or three compact paragraphs of plain prose. No bullet lists, no headers, no trade recommendation.`

// profileKeys are the reference fields worth carrying into evidence,
// in render order.
var profileKeys = []string{
	"longName", "sector", "industry", "marketCap", "trailingPE",
	"forwardPE", "priceToBook", "dividendYield", "beta",
	"fiftyTwoWeekHigh", "fiftyTwoWeekLow",
}

// Fundamentals reports company quality for a symbol. Reports land in
// the slow stream and surface through weekly digests.
type Fundamentals struct {
	profile  ProfileSource
	insiders InsiderSource
	client   *llm.Client
}

func NewFundamentals(profile ProfileSource, insiders InsiderSource, client *llm.Client) *Fundamentals {
	return &Fundamentals{profile: profile, insiders: insiders, client: client}
}

func (f *Fundamentals) Name() string { return models.AnalystFundamentals }

func (f *Fundamentals) Report(ctx context.Context, symbol string, date time.Time) (*models.AnalystReport, error) {
	info, err := f.profile.CompanyInfo(symbol)
	if err != nil {
		return nil, fmt.Errorf("fundamentals analyst %s: %w", symbol, err)
	}
	if len(info) == 0 {
		return nil, &models.MissingDataError{Symbol: symbol, Date: date, What: "company profile"}
	}

	var transactions []*dataflows.InsiderTransaction
	if f.insiders != nil {
		from := date.AddDate(0, 0, -fundamentalsLookbackDays)
		if txs, terr := f.insiders.InsiderTransactions(symbol, from, date); terr == nil {
			transactions = txs
		} else {
			log.Printf("[Agents] insider transactions for %s unavailable: %v", symbol, terr)
		}
	}

	evidence := renderProfile(symbol, date, info, transactions)

	body, err := narrate(ctx, f.client, fundamentalsSystemPrompt, evidence)
	if err != nil {
		if f.client != nil {
			log.Printf("[Agents] fundamentals narrative for %s degraded to extractive: %v", symbol, err)
		}
		body = extractiveFundamentals(info, transactions)
	}

	confidence := 0.4
	if len(info) >= 6 {
		confidence += 0.3
	}
	if len(transactions) > 0 {
		confidence += 0.1
	}

	return &models.AnalystReport{
		Symbol:     symbol,
		Analyst:    models.AnalystFundamentals,
		TradeDate:  date,
		Content:    clip(evidence + "\n\n" + body),
		Confidence: clampConfidence(confidence),
	}, nil
}

func renderProfile(symbol string, date time.Time, info map[string]interface{}, transactions []*dataflows.InsiderTransaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company profile for %s as of %s:\n", symbol, date.Format(dateLayout))

	rendered := make(map[string]bool, len(profileKeys))
	for _, key := range profileKeys {
		if v, ok := info[key]; ok && v != nil {
			fmt.Fprintf(&b, "%s: %v\n", key, v)
			rendered[key] = true
		}
	}

	// Whatever else the source returned still counts, sorted for a
	// stable evidence block.
	var rest []string
	for key, v := range info {
		if !rendered[key] && v != nil {
			rest = append(rest, fmt.Sprintf("%s: %v", key, v))
		}
	}
	sort.Strings(rest)
	for _, line := range rest {
		b.WriteString(line + "\n")
	}

	if len(transactions) > 0 {
		fmt.Fprintf(&b, "insider transactions (last %d days):\n", fundamentalsLookbackDays)
		for i, tx := range transactions {
			if i >= 8 {
				fmt.Fprintf(&b, "... and %d more\n", len(transactions)-i)
				break
			}
			fmt.Fprintf(&b, "%s %s %+d @ %s\n",
				tx.TransactionDate.Format(dateLayout), tx.PersonName, tx.Change, tx.TransactionPrice.StringFixed(2))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func extractiveFundamentals(info map[string]interface{}, transactions []*dataflows.InsiderTransaction) string {
	parts := []string{fmt.Sprintf("Profile carries %d reference fields.", len(info))}

	if name, ok := info["longName"].(string); ok && name != "" {
		sector, _ := info["sector"].(string)
		if sector != "" {
			parts[0] = fmt.Sprintf("%s operates in %s.", name, sector)
		} else {
			parts[0] = fmt.Sprintf("Profile covers %s.", name)
		}
	}

	if len(transactions) > 0 {
		var net int64
		for _, tx := range transactions {
			net += tx.Change
		}
		verb := "held flat"
		switch {
		case net > 0:
			verb = "added"
		case net < 0:
			verb = "reduced"
		}
		parts = append(parts, fmt.Sprintf("Insiders %s a net %+d shares across %d filings in the window.", verb, net, len(transactions)))
	}

	return strings.Join(parts, " ")
}
