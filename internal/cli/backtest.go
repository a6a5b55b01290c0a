package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/internal/display"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/trading"
)

// BacktestManager replays trading days over a date range against one
// shared app, so cash, positions and memory carry forward from day to
// day exactly as they would live.
type BacktestManager struct {
	config *config.Config
	app    *trading.App
}

// BacktestProgress tracks progress of a running backtest
type BacktestProgress struct {
	TotalDays int
	DaysDone  int
	QuietDays int
	Failed    int
	Sessions  int
	Filled    int
	Results   []DayResult
	StartTime time.Time
	mutex     sync.RWMutex
}

// DayResult represents the outcome of a single replayed day
type DayResult struct {
	Date     time.Time
	Status   DayStatus
	Sessions int
	Filled   int
	Skipped  int
	Error    string
	Duration time.Duration
}

// DayStatus represents the status of one day in the backtest
type DayStatus int

const (
	DayPending DayStatus = iota
	DayRunning
	DayCompleted
	DayQuiet
	DayFailed
)

// String returns string representation of DayStatus
func (ds DayStatus) String() string {
	switch ds {
	case DayPending:
		return "⏳ Pending"
	case DayRunning:
		return "🔄 Running"
	case DayCompleted:
		return "✅ Completed"
	case DayQuiet:
		return "🌙 Quiet"
	case DayFailed:
		return "❌ Failed"
	default:
		return "❓ Unknown"
	}
}

// NewBacktestManager creates a new backtest manager
func NewBacktestManager(cfg *config.Config, app *trading.App) *BacktestManager {
	return &BacktestManager{
		config: cfg,
		app:    app,
	}
}

// RunBacktest replays every day in [first, last]. Days run
// sequentially because each day's fills and snapshots feed the next;
// concurrency lives inside the day, where symbols run in parallel per
// session. A failed day aborts the replay to keep the ledger coherent.
func (bm *BacktestManager) RunBacktest(ctx context.Context, symbols []string, first, last time.Time) error {
	if last.Before(first) {
		return fmt.Errorf("backtest range: %s is before %s", last.Format("2006-01-02"), first.Format("2006-01-02"))
	}

	totalDays := int(last.Sub(first).Hours()/24) + 1
	universe := "auto"
	if len(symbols) > 0 {
		universe = fmt.Sprintf("%d symbols", len(symbols))
	}
	DisplayInfo(fmt.Sprintf("Replaying %d calendar days (%s universe)", totalDays, universe))
	DisplayInfo(fmt.Sprintf("Estimated duration: %s", EstimateBacktestDuration(totalDays, len(symbols)).Round(time.Minute)))

	progress := &BacktestProgress{
		TotalDays: totalDays,
		StartTime: time.Now(),
	}

	stopProgress := make(chan bool)
	go bm.displayBacktestProgress(progress, stopProgress)

	var aborted error
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		start := time.Now()
		results, err := bm.app.RunDay(ctx, day, symbols)
		dayRes := DayResult{
			Date:     day,
			Duration: time.Since(start),
		}

		switch {
		case err != nil:
			dayRes.Status = DayFailed
			dayRes.Error = err.Error()
			aborted = fmt.Errorf("replay stopped on %s: %w", day.Format("2006-01-02"), err)
		case len(results) == 0:
			dayRes.Status = DayQuiet
		default:
			dayRes.Status = DayCompleted
			dayRes.Sessions = len(results)
			for _, res := range results {
				if res.Status == models.SummarySkipped {
					dayRes.Skipped++
				}
				if res.State != nil && res.State.Summary != nil && res.State.Summary.OrderStatus == models.OrderFilled {
					dayRes.Filled++
				}
			}
		}

		progress.mutex.Lock()
		progress.Results = append(progress.Results, dayRes)
		progress.DaysDone++
		progress.Sessions += dayRes.Sessions
		progress.Filled += dayRes.Filled
		if dayRes.Status == DayQuiet {
			progress.QuietDays++
		}
		if dayRes.Status == DayFailed {
			progress.Failed++
		}
		progress.mutex.Unlock()

		if aborted != nil {
			break
		}
	}

	close(stopProgress)
	bm.displayBacktestSummary(ctx, progress, last)

	return aborted
}

// displayBacktestProgress shows real-time progress of the replay
func (bm *BacktestManager) displayBacktestProgress(progress *BacktestProgress, stop chan bool) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			bm.printProgressUpdate(progress)
		}
	}
}

// printProgressUpdate prints current progress
func (bm *BacktestManager) printProgressUpdate(progress *BacktestProgress) {
	progress.mutex.RLock()
	defer progress.mutex.RUnlock()

	// Clear previous line and print update
	fmt.Print("\r\033[K")

	elapsed := time.Since(progress.StartTime)
	completionRate := float64(progress.DaysDone) / float64(progress.TotalDays)

	var eta time.Duration
	if completionRate > 0 {
		eta = time.Duration(float64(elapsed)/completionRate) - elapsed
	}

	fmt.Printf("📊 Backtest: %d/%d days, %d sessions, %d fills, %d failed | Elapsed: %s | ETA: %s",
		progress.DaysDone, progress.TotalDays, progress.Sessions, progress.Filled, progress.Failed,
		elapsed.Round(time.Second), eta.Round(time.Second))
}

// displayBacktestSummary displays the final replay summary and the
// closing book.
func (bm *BacktestManager) displayBacktestSummary(ctx context.Context, progress *BacktestProgress, last time.Time) {
	fmt.Println() // New line after progress updates
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       BACKTEST SUMMARY                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	totalDuration := time.Since(progress.StartTime)

	DisplayInfo(fmt.Sprintf("Calendar Days: %d (%d quiet)", progress.DaysDone, progress.QuietDays))
	DisplaySuccess(fmt.Sprintf("Sessions Run: %d", progress.Sessions))
	DisplayInfo(fmt.Sprintf("Orders Filled: %d", progress.Filled))
	if progress.Failed > 0 {
		DisplayError(fmt.Errorf("failed days: %d", progress.Failed))
	}
	DisplayInfo(fmt.Sprintf("Total Time: %s", totalDuration.Round(time.Second)))

	tradingDays := progress.DaysDone - progress.QuietDays - progress.Failed
	if tradingDays > 0 {
		avgDuration := totalDuration / time.Duration(tradingDays)
		DisplayInfo(fmt.Sprintf("Average Time per Trading Day: %s", avgDuration.Round(time.Second)))
	}

	fmt.Println()
	fmt.Println("📋 DAY BY DAY:")
	fmt.Println("══════════════")

	fmt.Printf("%-12s %-9s %-7s %-13s %-10s %s\n", "DATE", "SESSIONS", "FILLED", "STATUS", "DURATION", "ERROR")
	fmt.Println(strings.Repeat("─", 70))

	for _, result := range progress.Results {
		duration := "n/a"
		if result.Duration > 0 {
			duration = result.Duration.Round(time.Second).String()
		}

		errorMsg := ""
		if result.Error != "" {
			errorMsg = truncateString(result.Error, 25)
		}

		fmt.Printf("%-12s %-9d %-7d %-13s %-10s %s\n",
			result.Date.Format("2006-01-02"), result.Sessions, result.Filled,
			result.Status, duration, errorMsg)
	}

	fmt.Println()
	bm.displayClosingBook(ctx, last)
}

// displayClosingBook prints the final snapshot and the replay's
// overall return against the configured starting cash.
func (bm *BacktestManager) displayClosingBook(ctx context.Context, last time.Time) {
	snap, err := bm.app.Store().LatestSnapshot(ctx, last)
	if err != nil {
		DisplayWarning(fmt.Sprintf("Could not load closing snapshot: %v", err))
		return
	}
	if snap == nil {
		DisplayInfo("No portfolio snapshot was recorded during the replay")
		return
	}

	display.DisplayPortfolio(snap)

	initial := decimal.NewFromFloat(bm.config.InitialCash)
	if initial.IsPositive() {
		overall := snap.TotalValue.Sub(initial).Div(initial).InexactFloat64() * 100
		fmt.Printf("📈 Overall return: %+.2f%% (from %s to %s)\n",
			overall, initial.StringFixed(2), snap.TotalValue.StringFixed(2))
	}

	fmt.Println()
	DisplaySuccess(fmt.Sprintf("Artifacts saved in: %s", bm.config.ResultsDir))
	fmt.Println("💡 Use 'tradecycle history <SYMBOL>' to walk the day records")
	fmt.Println("💡 Use 'tradecycle results export <SYMBOL> --format csv' for the decision log")
}

// LoadSymbolsFromFile loads symbols from a text file (one symbol per line)
func LoadSymbolsFromFile(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	var symbols []string

	for _, line := range lines {
		symbol := strings.TrimSpace(strings.ToUpper(line))
		if symbol != "" && !strings.HasPrefix(symbol, "#") { // Skip empty lines and comments
			symbols = append(symbols, symbol)
		}
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no valid symbols found in file: %s", filename)
	}

	return symbols, nil
}

// ValidateSymbols splits a symbol list into tradable and rejected
// entries using the same rules as the interactive prompt.
func ValidateSymbols(symbols []string) ([]string, []string) {
	var valid []string
	var invalid []string

	for _, symbol := range symbols {
		symbol = strings.TrimSpace(strings.ToUpper(symbol))
		if err := validateSymbolToken(symbol); err != nil {
			invalid = append(invalid, symbol)
		} else {
			valid = append(valid, symbol)
		}
	}

	return valid, invalid
}

// EstimateBacktestDuration estimates wall time for a replay. Within a
// day the symbols run concurrently per session, so the day cost is
// dominated by the three session gates and their debates rather than
// by the universe size.
func EstimateBacktestDuration(days, symbolCount int) time.Duration {
	perDay := 90 * time.Second
	if symbolCount > 5 {
		perDay = 3 * time.Minute
	}
	return time.Duration(days) * perDay
}
