package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/display"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/session"
)

// ResultsManager handles the session artifacts written under the
// results directory. Each session run leaves one JSON file named
// SYMBOL_DATE_SESSION.json; the sqlite store stays the source of
// truth, the artifacts exist for inspection and export.
type ResultsManager struct {
	config     *config.Config
	resultsDir string
}

// ResultSummary represents one session artifact on disk
type ResultSummary struct {
	Symbol    string    `json:"symbol"`
	Date      string    `json:"date"`
	Session   string    `json:"session"`
	Decision  string    `json:"decision"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	FilePath  string    `json:"file_path"`
	FileSize  int64     `json:"file_size"`
}

// NewResultsManager creates a new results manager
func NewResultsManager(cfg *config.Config) *ResultsManager {
	return &ResultsManager{
		config:     cfg,
		resultsDir: cfg.ResultsDir,
	}
}

// artifactName builds the on-disk name for one session result. Symbols
// never contain underscores, so the name splits back unambiguously.
func artifactName(symbol string, date time.Time, sess string) string {
	return fmt.Sprintf("%s_%s_%s.json", symbol, date.Format("2006-01-02"), sess)
}

// saveSessionArtifact writes one session result into the results
// directory and returns the path written.
func saveSessionArtifact(cfg *config.Config, res *session.SessionResult) (string, error) {
	if res == nil {
		return "", fmt.Errorf("no session result to save")
	}
	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(cfg.ResultsDir, artifactName(res.Symbol, res.Date, res.Session))
	d := display.NewSessionDisplay(res.Symbol, res.Date)
	if err := d.SaveSessionToFile(res, path); err != nil {
		return "", err
	}
	return path, nil
}

// ListResults lists all session artifacts under the results directory
func (rm *ResultsManager) ListResults(sortBy string, reverse bool) ([]ResultSummary, error) {
	var results []ResultSummary

	if err := os.MkdirAll(rm.resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	err := filepath.WalkDir(rm.resultsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		// SYMBOL_DATE_SESSION.json; session names contain underscores,
		// symbols do not.
		parts := strings.SplitN(strings.TrimSuffix(filepath.Base(path), ".json"), "_", 3)
		if len(parts) != 3 {
			return nil
		}
		symbol, dateStr, sess := parts[0], parts[1], parts[2]
		if _, perr := time.Parse("2006-01-02", dateStr); perr != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		summary := ResultSummary{
			Symbol:    symbol,
			Date:      dateStr,
			Session:   sess,
			CreatedAt: info.ModTime(),
			FilePath:  path,
			FileSize:  info.Size(),
		}

		if res, rerr := readSessionArtifact(path); rerr == nil {
			summary.Status = res.Status
			summary.Decision = artifactDecision(res)
		}

		results = append(results, summary)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan results directory: %w", err)
	}

	rm.sortResults(results, sortBy, reverse)
	return results, nil
}

// readSessionArtifact loads one artifact back into a session result.
func readSessionArtifact(path string) (*session.SessionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var res session.SessionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse result file: %w", err)
	}
	return &res, nil
}

// artifactDecision extracts the most final decision an artifact holds:
// the day record's decision when present, otherwise the routed order's
// side, otherwise the research verdict.
func artifactDecision(res *session.SessionResult) string {
	if res == nil || res.State == nil {
		return ""
	}
	st := res.State
	switch {
	case st.Summary != nil:
		return string(st.Summary.Decision)
	case st.Order != nil:
		return string(st.Order.Side)
	case st.ResearchVerdict != nil:
		return string(st.ResearchVerdict.Decision)
	default:
		return ""
	}
}

// sortResults sorts results by the specified criteria
func (rm *ResultsManager) sortResults(results []ResultSummary, sortBy string, reverse bool) {
	switch strings.ToLower(sortBy) {
	case "date", "created":
		sort.Slice(results, func(i, j int) bool {
			if reverse {
				return results[i].CreatedAt.After(results[j].CreatedAt)
			}
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		})
	case "symbol":
		sort.Slice(results, func(i, j int) bool {
			if reverse {
				return results[i].Symbol > results[j].Symbol
			}
			return results[i].Symbol < results[j].Symbol
		})
	case "session":
		sort.Slice(results, func(i, j int) bool {
			if reverse {
				return results[i].Session > results[j].Session
			}
			return results[i].Session < results[j].Session
		})
	case "decision":
		sort.Slice(results, func(i, j int) bool {
			if reverse {
				return results[i].Decision > results[j].Decision
			}
			return results[i].Decision < results[j].Decision
		})
	case "size":
		sort.Slice(results, func(i, j int) bool {
			if reverse {
				return results[i].FileSize > results[j].FileSize
			}
			return results[i].FileSize < results[j].FileSize
		})
	default:
		// Default sort by creation date (newest first)
		sort.Slice(results, func(i, j int) bool {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		})
	}
}

// ShowResult replays the saved artifacts for a symbol-day through the
// terminal renderer, in session order.
func (rm *ResultsManager) ShowResult(symbol, date string) error {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}

	var shown int
	for _, sess := range []string{consts.SessionPreOpen, consts.SessionMarketOpen, consts.SessionPostClose} {
		path := filepath.Join(rm.resultsDir, artifactName(symbol, day, sess))
		if _, serr := os.Stat(path); os.IsNotExist(serr) {
			continue
		}

		res, err := readSessionArtifact(path)
		if err != nil {
			DisplayWarning(fmt.Sprintf("Skipping %s: %v", filepath.Base(path), err))
			continue
		}

		d := display.NewSessionDisplay(symbol, day)
		d.DisplaySessionResult(res)
		shown++
	}

	if shown == 0 {
		return fmt.Errorf("no session results found for %s on %s", symbol, date)
	}

	fmt.Printf("💡 Use 'tradecycle results export %s --from %s --to %s' for the decision log\n", symbol, date, date)
	return nil
}

// DeleteResult deletes the saved artifacts for a symbol-day
func (rm *ResultsManager) DeleteResult(symbol, date string) error {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}

	var deleted int
	for _, sess := range []string{consts.SessionPreOpen, consts.SessionMarketOpen, consts.SessionPostClose} {
		path := filepath.Join(rm.resultsDir, artifactName(symbol, day, sess))
		if _, serr := os.Stat(path); os.IsNotExist(serr) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete result file: %w", err)
		}
		deleted++
	}

	if deleted == 0 {
		return fmt.Errorf("no session results found for %s on %s", symbol, date)
	}

	DisplaySuccess(fmt.Sprintf("Deleted %d session results for %s on %s", deleted, symbol, date))
	return nil
}

// ExportSummaries writes a symbol's day records to the results
// directory in the requested format and returns the path written.
// The records come from the sqlite store, not from artifacts, so the
// export covers days whose JSON files were cleaned up.
func (rm *ResultsManager) ExportSummaries(symbol string, summaries []*models.DailyTradingSummary, format string) (string, error) {
	if len(summaries) == 0 {
		return "", fmt.Errorf("no day records to export for %s", symbol)
	}
	if err := os.MkdirAll(rm.resultsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	first := summaries[0].Date.Format("2006-01-02")
	last := summaries[len(summaries)-1].Date.Format("2006-01-02")
	outputFile := filepath.Join(rm.resultsDir, fmt.Sprintf("%s_decisions_%s_%s.%s", symbol, first, last, strings.ToLower(format)))

	switch strings.ToLower(format) {
	case "json":
		prettyJSON, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to format JSON: %w", err)
		}
		return outputFile, os.WriteFile(outputFile, prettyJSON, 0o644)

	case "csv":
		return outputFile, rm.exportToCSV(summaries, outputFile)

	case "txt", "text":
		return outputFile, rm.exportToText(summaries, outputFile, symbol)

	default:
		return "", fmt.Errorf("unsupported export format: %s. Supported: json, csv, txt", format)
	}
}

// exportToCSV writes day records as one CSV row per trading day
func (rm *ResultsManager) exportToCSV(summaries []*models.DailyTradingSummary, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"date", "symbol", "regime", "decision", "strategy",
		"order_status", "quantity", "fill_price", "cash_after", "total_value",
		"daily_return_pct", "max_drawdown_pct", "status", "reason",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			s.Date.Format("2006-01-02"),
			s.Symbol,
			string(s.MarketRegime),
			string(s.Decision),
			s.StrategyID,
			string(s.OrderStatus),
			fmt.Sprintf("%d", s.Quantity),
			s.FillPrice.String(),
			s.CashAfter.StringFixed(2),
			s.TotalValue.StringFixed(2),
			fmt.Sprintf("%.4f", s.DailyReturn*100),
			fmt.Sprintf("%.4f", s.MaxDrawdown*100),
			s.Status,
			s.ReasonCode,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

// exportToText writes day records as a plain text report
func (rm *ResultsManager) exportToText(summaries []*models.DailyTradingSummary, filename, symbol string) error {
	var content strings.Builder

	content.WriteString(fmt.Sprintf("tradecycle Decision Log: %s\n", symbol))
	content.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, s := range summaries {
		content.WriteString(fmt.Sprintf("%s  %s", s.Date.Format("2006-01-02"), s.Decision))
		if s.StrategyID != "" {
			content.WriteString(fmt.Sprintf(" [%s]", s.StrategyID))
		}
		content.WriteString("\n")

		if s.Quantity > 0 {
			content.WriteString(fmt.Sprintf("  order: %s %d @ %s\n", s.OrderStatus, s.Quantity, s.FillPrice.String()))
		}
		content.WriteString(fmt.Sprintf("  book:  total %s, return %+.2f%%, drawdown %.2f%%\n",
			s.TotalValue.StringFixed(2), s.DailyReturn*100, s.MaxDrawdown*100))
		if s.Status != models.SummaryCompleted {
			content.WriteString(fmt.Sprintf("  note:  %s (%s)\n", s.Status, s.ReasonCode))
		}
		if s.Reflection != "" {
			content.WriteString(fmt.Sprintf("  lesson: %s\n", s.Reflection))
		}
		content.WriteString("\n")
	}

	return os.WriteFile(filename, []byte(content.String()), 0o644)
}

// CleanupResults removes old artifacts based on age or count
func (rm *ResultsManager) CleanupResults(maxAge time.Duration, maxCount int) error {
	results, err := rm.ListResults("date", true) // newest first
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	var deletedCount int
	now := time.Now()

	for i, result := range results {
		shouldDelete := false

		if maxAge > 0 && now.Sub(result.CreatedAt) > maxAge {
			shouldDelete = true
		}
		if maxCount > 0 && i >= maxCount {
			shouldDelete = true
		}

		if shouldDelete {
			if err := os.Remove(result.FilePath); err != nil {
				DisplayWarning(fmt.Sprintf("Failed to delete %s: %v", result.FilePath, err))
			} else {
				deletedCount++
			}
		}
	}

	if deletedCount > 0 {
		DisplaySuccess(fmt.Sprintf("Cleaned up %d old result files", deletedCount))
	} else {
		DisplayInfo("No result files needed cleanup")
	}

	return nil
}

// decisionGlyph maps a decision to its marker for table output
func decisionGlyph(decision string) string {
	switch strings.ToUpper(decision) {
	case "BUY":
		return "🟢"
	case "SELL":
		return "🔴"
	case "HOLD":
		return "🟡"
	default:
		return "⏳"
	}
}
