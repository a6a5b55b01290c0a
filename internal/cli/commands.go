package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/display"
	"github.com/dyike/tradecycle/internal/memory"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
	"github.com/dyike/tradecycle/internal/trading"
)

// Version is the CLI version string
const Version = "1.0.0"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	// Initialize configuration early
	cfg := config.DefaultConfig()
	cm := NewConfigManager(cfg)

	rootCmd := &cobra.Command{
		Use:   "tradecycle",
		Short: "tradecycle - Session-Gated Autonomous Trading",
		Long: `tradecycle runs an autonomous trading pipeline gated by market sessions.
Each trading day moves analyst reports through tiered memory, fuses them
into a market context, debates the bull and bear cases, picks a strategy,
reviews the risk, and routes an order that fills at the next day's open.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Ensure directories exist
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			// Overlay values persisted by 'config set'
			if err := cm.LoadConfig(); err != nil {
				return fmt.Errorf("failed to load local config: %w", err)
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Debug = true
			}
			if offline, _ := cmd.Flags().GetBool("offline"); offline {
				cfg.OnlineTools = false
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			return NewInteractiveSession(cfg).Start()
		},
	}

	// Add subcommands
	rootCmd.AddCommand(newRunCmd(cfg))
	rootCmd.AddCommand(newBacktestCmd(cfg))
	rootCmd.AddCommand(newSubmitCmd(cfg))
	rootCmd.AddCommand(newPortfolioCmd(cfg))
	rootCmd.AddCommand(newHistoryCmd(cfg))
	rootCmd.AddCommand(newOrdersCmd(cfg))
	rootCmd.AddCommand(newReflectionsCmd(cfg))
	rootCmd.AddCommand(newResultsCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg, cm))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().Bool("offline", false, "Disable online data sources (cached candle files only)")

	return rootCmd
}

// newRunCmd creates the run command
func newRunCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [SYMBOL...]",
		Short: "Run a trading day through the session pipeline",
		Long: `Run one trading day for the given symbols. pre_open ingests analyst
reports, fuses them with the portfolio into a market context, debates
the research and risk cases and routes an order through risk review.
market_open fills the approved order at the next session's open.
post_close values the book, closes the day's memory boundaries and
records the daily summary.
Without symbols the stock selector picks the day's universe.
Example: tradecycle run AAPL MSFT --date=2025-01-09`,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			sessionName, _ := cmd.Flags().GetString("session")
			return runTradingDay(cfg, args, date, sessionName)
		},
	}

	cmd.Flags().String("date", "", "Trade date in YYYY-MM-DD format")
	cmd.Flags().String("session", "", "Run a single session: pre_open, market_open or post_close")
	cmd.MarkFlagRequired("date")

	return cmd
}

// newBacktestCmd creates the backtest command
func newBacktestCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a date range through the pipeline day by day",
		Long: `Replay every day in a range through the full session pipeline against
one shared ledger, so fills and snapshots carry forward between days.
Weekends and holidays are skipped automatically.
Example: tradecycle backtest --from=2025-01-02 --to=2025-02-28 --symbols=AAPL,NVDA`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			symbolsFlag, _ := cmd.Flags().GetString("symbols")
			symbolsFile, _ := cmd.Flags().GetString("symbols-file")
			return runBacktest(cfg, fromStr, toStr, symbolsFlag, symbolsFile)
		},
	}

	cmd.Flags().String("from", "", "First trade date in YYYY-MM-DD format")
	cmd.Flags().String("to", "", "Last trade date in YYYY-MM-DD format")
	cmd.Flags().String("symbols", "", "Comma separated symbols (empty lets the selector pick each day)")
	cmd.Flags().String("symbols-file", "", "File with one symbol per line, # comments allowed")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

// newSubmitCmd creates the submit command
func newSubmitCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit SYMBOL",
		Short: "Submit an external analyst report into tiered memory",
		Long: `Submit a report produced outside the pipeline. The report is routed into
the memory stream its analyst type maps to: market reports feed the
intraday tier, news and sentiment the daily tier, and fundamentals the
slow tier. It becomes part of the next session's fusion context.
Example: tradecycle submit AAPL --analyst=news --date=2025-01-09 --file=note.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyst, _ := cmd.Flags().GetString("analyst")
			date, _ := cmd.Flags().GetString("date")
			file, _ := cmd.Flags().GetString("file")
			confidence, _ := cmd.Flags().GetFloat64("confidence")
			return runSubmitReport(cfg, args[0], analyst, date, file, confidence)
		},
	}

	cmd.Flags().String("analyst", "", "Analyst type: market, news, sentiment or fundamentals")
	cmd.Flags().String("date", "", "Trade date in YYYY-MM-DD format")
	cmd.Flags().String("file", "-", "Report text file, or - to read stdin")
	cmd.Flags().Float64("confidence", 0.6, "Report confidence between 0 and 1")
	cmd.MarkFlagRequired("analyst")
	cmd.MarkFlagRequired("date")

	return cmd
}

// newPortfolioCmd creates the portfolio command
func newPortfolioCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show the latest portfolio snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			return showPortfolio(cfg, dateStr)
		},
	}

	cmd.Flags().String("date", "", "Show the snapshot on or before this date (default today)")

	return cmd
}

// newHistoryCmd creates the history command
func newHistoryCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show a symbol's daily trading records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := rangeFromFlags(cmd)
			if err != nil {
				return err
			}
			return showHistory(cfg, strings.ToUpper(args[0]), from, to)
		},
	}

	addRangeFlags(cmd)

	return cmd
}

// newOrdersCmd creates the orders command
func newOrdersCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders SYMBOL",
		Short: "Show a symbol's order log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := rangeFromFlags(cmd)
			if err != nil {
				return err
			}
			return showOrders(cfg, strings.ToUpper(args[0]), from, to)
		},
	}

	addRangeFlags(cmd)

	return cmd
}

// newReflectionsCmd creates the reflections command
func newReflectionsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reflections SYMBOL",
		Short: "Show the lessons recorded for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return showReflections(cfg, strings.ToUpper(args[0]), limit)
		},
	}

	cmd.Flags().Int("limit", 5, "Number of reflections to show, newest first")

	return cmd
}

// newResultsCmd creates the results command group
func newResultsCmd(cfg *config.Config) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Manage saved session artifacts",
		Long:  "List, inspect, export and clean up the JSON artifacts each session run leaves in the results directory.",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved session artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			sortBy, _ := cmd.Flags().GetString("sort")
			reverse, _ := cmd.Flags().GetBool("reverse")
			return listResults(cfg, sortBy, reverse)
		},
	}
	listCmd.Flags().String("sort", "date", "Sort by: date, symbol, session, decision or size")
	listCmd.Flags().Bool("reverse", false, "Reverse the sort order")

	showCmd := &cobra.Command{
		Use:   "show SYMBOL DATE",
		Short: "Replay a symbol-day's saved sessions on the terminal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return NewResultsManager(cfg).ShowResult(strings.ToUpper(args[0]), args[1])
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export SYMBOL",
		Short: "Export a symbol's day records as a decision log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := rangeFromFlags(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			return exportResults(cfg, strings.ToUpper(args[0]), from, to, format)
		},
	}
	addRangeFlags(exportCmd)
	exportCmd.Flags().String("format", "csv", "Export format: csv, json or txt")

	deleteCmd := &cobra.Command{
		Use:   "delete SYMBOL DATE",
		Short: "Delete a symbol-day's saved artifacts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return NewResultsManager(cfg).DeleteResult(strings.ToUpper(args[0]), args[1])
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old artifacts by age or count",
		RunE: func(cmd *cobra.Command, args []string) error {
			maxAgeDays, _ := cmd.Flags().GetInt("max-age")
			maxCount, _ := cmd.Flags().GetInt("max-count")
			if maxAgeDays <= 0 && maxCount <= 0 {
				return fmt.Errorf("set --max-age or --max-count (or both)")
			}
			return NewResultsManager(cfg).CleanupResults(time.Duration(maxAgeDays)*24*time.Hour, maxCount)
		},
	}
	cleanupCmd.Flags().Int("max-age", 0, "Delete artifacts older than this many days (0 = no age limit)")
	cleanupCmd.Flags().Int("max-count", 0, "Keep at most this many artifacts (0 = no count limit)")

	resultsCmd.AddCommand(listCmd, showCmd, exportCmd, deleteCmd, cleanupCmd)

	return resultsCmd
}

// newConfigCmd creates the config command group
func newConfigCmd(cfg *config.Config, cm *ConfigManager) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Manage tradecycle configuration settings",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cfg, cm)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := cm.GetConfigValue(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s = %v\n", strings.ToLower(args[0]), val)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Update and persist one configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cm.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			if err := cm.SaveConfig(); err != nil {
				return err
			}
			DisplaySuccess(fmt.Sprintf("%s set to %s", strings.ToLower(args[0]), args[1]))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List settable configuration keys",
		Run: func(cmd *cobra.Command, args []string) {
			for _, key := range cm.ListAvailableKeys() {
				fmt.Println(key)
			}
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cm.ResetConfig(); err != nil {
				return err
			}
			return cm.SaveConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "export FILE",
		Short: "Export configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cm.ExportConfig(args[0]); err != nil {
				return err
			}
			DisplaySuccess("Configuration exported to " + args[0])
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Import configuration from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cm.ImportConfig(args[0]); err != nil {
				return err
			}
			DisplaySuccess("Configuration imported from " + args[0])
			return nil
		},
	})

	return configCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tradecycle v%s\n", Version)
			fmt.Println("Session-Gated Autonomous Trading Pipeline")
			fmt.Println("Built with Go, SQLite and Large Language Models")
		},
	}
}

// runTradingDay executes the main trading workflow for one day
func runTradingDay(cfg *config.Config, rawSymbols []string, dateStr, sessionName string) error {
	ctx := context.Background()

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}

	var symbols []string
	if len(rawSymbols) > 0 {
		valid, invalid := ValidateSymbols(rawSymbols)
		if len(invalid) > 0 {
			return fmt.Errorf("invalid symbols: %s", strings.Join(invalid, ", "))
		}
		symbols = valid
	}

	if sessionName != "" {
		switch sessionName {
		case consts.SessionPreOpen, consts.SessionMarketOpen, consts.SessionPostClose:
		default:
			return fmt.Errorf("unknown session %q (use pre_open, market_open or post_close)", sessionName)
		}
		if len(symbols) == 0 {
			return fmt.Errorf("at least one symbol is required with --session")
		}
	}

	DisplayInitializing()
	app, err := trading.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	DisplayRunHeader(symbols, date)

	if sessionName != "" {
		return runSingleSession(ctx, cfg, app, symbols, date, sessionName)
	}
	return runDayWithApp(ctx, cfg, app, symbols, date)
}

// runDayWithApp drives one full trading day on an already built app
func runDayWithApp(ctx context.Context, cfg *config.Config, app *trading.App, symbols []string, date time.Time) error {
	fmt.Printf("🚀 Starting trading day %s\n", date.Format("2006-01-02"))

	results, err := app.RunDay(ctx, date, symbols)
	if err != nil {
		return fmt.Errorf("trading day failed: %w", err)
	}
	if len(results) == 0 {
		DisplayInfo(fmt.Sprintf("No candles on %s; likely a weekend or holiday", date.Format("2006-01-02")))
		return nil
	}

	display.DisplayDayResults(date, results)

	for _, res := range results {
		if res.Session != consts.SessionPreOpen {
			d := display.NewSessionDisplay(res.Symbol, date)
			d.DisplaySessionResult(res)
		}
		if path, serr := saveSessionArtifact(cfg, res); serr != nil {
			DisplayWarning(fmt.Sprintf("Could not save %s %s artifact: %v", res.Symbol, res.Session, serr))
		} else if cfg.Debug {
			DisplayInfo("Saved " + path)
		}
	}

	if snap, serr := app.Store().LatestSnapshot(ctx, date); serr == nil && snap != nil {
		display.DisplayPortfolio(snap)
	}

	DisplayRunComplete("Trading day completed")
	return nil
}

// runSingleSession replays one session gate for each symbol
func runSingleSession(ctx context.Context, cfg *config.Config, app *trading.App, symbols []string, date time.Time, sessionName string) error {
	for _, symbol := range symbols {
		res, err := app.RunSession(ctx, symbol, date, sessionName)
		if err != nil {
			return fmt.Errorf("%s %s failed: %w", symbol, sessionName, err)
		}

		d := display.NewSessionDisplay(symbol, date)
		d.DisplaySessionResult(res)

		if _, serr := saveSessionArtifact(cfg, res); serr != nil {
			DisplayWarning(fmt.Sprintf("Could not save %s %s artifact: %v", symbol, sessionName, serr))
		}
	}

	DisplayRunComplete("Session completed")
	return nil
}

// runBacktest parses the range and universe and hands off to the
// backtest manager.
func runBacktest(cfg *config.Config, fromStr, toStr, symbolsFlag, symbolsFile string) error {
	ctx := context.Background()

	first, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return fmt.Errorf("invalid --from date, use YYYY-MM-DD: %w", err)
	}
	last, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return fmt.Errorf("invalid --to date, use YYYY-MM-DD: %w", err)
	}

	var symbols []string
	if symbolsFile != "" {
		symbols, err = LoadSymbolsFromFile(symbolsFile)
		if err != nil {
			return err
		}
	}
	if symbolsFlag != "" {
		symbols = append(symbols, parseSymbolList(symbolsFlag)...)
	}
	if len(symbols) > 0 {
		valid, invalid := ValidateSymbols(symbols)
		if len(invalid) > 0 {
			DisplayWarning(fmt.Sprintf("Dropping invalid symbols: %s", strings.Join(invalid, ", ")))
		}
		if len(valid) == 0 {
			return fmt.Errorf("no valid symbols left to backtest")
		}
		symbols = valid
	}

	DisplayInitializing()
	app, err := trading.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	DisplayRangeHeader(first, last, symbols)

	bm := NewBacktestManager(cfg, app)
	return bm.RunBacktest(ctx, symbols, first, last)
}

// runSubmitReport ingests one external report through the memory
// service. No LLM client is needed: consolidation happens later, when
// the next post_close session closes the report's timescale boundary.
func runSubmitReport(cfg *config.Config, symbol, analyst, dateStr, file string, confidence float64) error {
	ctx := context.Background()

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}
	if !contains(models.KnownAnalysts, analyst) {
		return fmt.Errorf("unknown analyst %q (use %s)", analyst, strings.Join(models.KnownAnalysts, ", "))
	}

	content, err := readReportText(file)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	mem := memory.NewService(store, nil, cfg)
	report := &models.AnalystReport{
		Symbol:     strings.ToUpper(symbol),
		Analyst:    analyst,
		TradeDate:  date,
		Content:    content,
		Confidence: confidence,
	}
	if err := mem.Submit(ctx, report); err != nil {
		return fmt.Errorf("submit report: %w", err)
	}

	DisplaySuccess(fmt.Sprintf("Report %s accepted into the %s stream for %s", report.ID, report.Stream, report.Symbol))
	return nil
}

// readReportText reads the report body from a file or stdin.
func readReportText(file string) (string, error) {
	var data []byte
	var err error

	if file == "" || file == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read report file: %w", err)
		}
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", fmt.Errorf("report text is empty")
	}
	return content, nil
}

// showPortfolio prints the latest snapshot on or before a date
func showPortfolio(cfg *config.Config, dateStr string) error {
	ctx := context.Background()

	date := time.Now()
	if dateStr != "" {
		var err error
		date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	snap, err := store.LatestSnapshot(ctx, date)
	if err != nil {
		return err
	}
	if snap == nil {
		DisplayInfo(fmt.Sprintf("No portfolio snapshot on or before %s. Run a trading day first.", date.Format("2006-01-02")))
		return nil
	}

	display.DisplayPortfolio(snap)
	return nil
}

// showHistory prints a symbol's day records in a range
func showHistory(cfg *config.Config, symbol string, from, to time.Time) error {
	ctx := context.Background()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	summaries, err := store.SummariesBetween(ctx, symbol, from, to)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		DisplayInfo(fmt.Sprintf("No day records for %s between %s and %s",
			symbol, from.Format("2006-01-02"), to.Format("2006-01-02")))
		return nil
	}

	display.DisplayTradingHistory(summaries)
	return nil
}

// showOrders prints a symbol's orders in a range
func showOrders(cfg *config.Config, symbol string, from, to time.Time) error {
	ctx := context.Background()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	orders, err := store.OrdersBetween(ctx, symbol, from, to)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		DisplayInfo(fmt.Sprintf("No orders for %s between %s and %s",
			symbol, from.Format("2006-01-02"), to.Format("2006-01-02")))
		return nil
	}

	display.DisplayOrders(orders)
	return nil
}

// showReflections prints a symbol's recent lessons
func showReflections(cfg *config.Config, symbol string, limit int) error {
	ctx := context.Background()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	notes, err := store.RecentReflections(ctx, symbol, limit)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		DisplayInfo(fmt.Sprintf("No reflections recorded for %s yet", symbol))
		return nil
	}

	display.DisplayReflections(notes)
	return nil
}

// listResults prints the artifact table
func listResults(cfg *config.Config, sortBy string, reverse bool) error {
	rm := NewResultsManager(cfg)
	results, err := rm.ListResults(sortBy, reverse)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		DisplayInfo("No saved session results. Run a trading day first.")
		return nil
	}

	fmt.Printf("%-10s %-12s %-13s %-12s %-9s %s\n", "SYMBOL", "DATE", "SESSION", "DECISION", "SIZE", "CREATED")
	fmt.Println(strings.Repeat("─", 75))

	for _, r := range results {
		decision := "-"
		if r.Decision != "" {
			decision = fmt.Sprintf("%s %s", decisionGlyph(r.Decision), r.Decision)
		}
		fmt.Printf("%-10s %-12s %-13s %-12s %-9s %s\n",
			r.Symbol, r.Date, r.Session, decision,
			fmt.Sprintf("%dB", r.FileSize),
			r.CreatedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\n%d artifacts in %s\n", len(results), cfg.ResultsDir)
	return nil
}

// exportResults writes a symbol's decision log from the store
func exportResults(cfg *config.Config, symbol string, from, to time.Time, format string) error {
	ctx := context.Background()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	summaries, err := store.SummariesBetween(ctx, symbol, from, to)
	if err != nil {
		return err
	}

	rm := NewResultsManager(cfg)
	path, err := rm.ExportSummaries(symbol, summaries, format)
	if err != nil {
		return err
	}

	DisplaySuccess("Exported decision log to " + path)
	return nil
}

// addRangeFlags attaches the --from/--to pair used by range queries
func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "Start date in YYYY-MM-DD format (default 30 days before --to)")
	cmd.Flags().String("to", "", "End date in YYYY-MM-DD format (default today)")
}

// rangeFromFlags resolves the --from/--to pair with defaults
func rangeFromFlags(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	to := time.Now()
	if toStr != "" {
		var err error
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date, use YYYY-MM-DD: %w", err)
		}
	}

	from := to.AddDate(0, 0, -30)
	if fromStr != "" {
		var err error
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date, use YYYY-MM-DD: %w", err)
		}
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("range: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	return from, to, nil
}

// showConfig displays the current configuration
func showConfig(cfg *config.Config) {
	fmt.Println("📋 Current tradecycle Configuration:")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Printf("Results Directory:    %s\n", cfg.ResultsDir)
	fmt.Printf("Data Directory:       %s\n", cfg.DataDir)
	fmt.Printf("Cache Directory:      %s\n", cfg.DataCacheDir)
	fmt.Printf("Database Path:        %s\n", cfg.DBPath)
	fmt.Println()
	fmt.Printf("LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Printf("Deep Think Model:     %s\n", cfg.DeepThinkLLM)
	fmt.Printf("Quick Think Model:    %s\n", cfg.QuickThinkLLM)
	if cfg.BackendURL != "" {
		fmt.Printf("Backend URL:          %s\n", cfg.BackendURL)
	}
	fmt.Println()
	fmt.Printf("Max Debate Rounds:    %d\n", cfg.MaxDebateRounds)
	fmt.Printf("Max Risk Rounds:      %d\n", cfg.MaxRiskDiscussRounds)
	fmt.Printf("Max Turn Retries:     %d\n", cfg.MaxTurnRetries)
	fmt.Printf("Turn Timeout:         %s\n", cfg.TurnTimeout)
	fmt.Printf("Stage Timeout:        %s\n", cfg.StageTimeout)
	fmt.Println()
	fmt.Printf("Memory Lookbacks:     %dd intraday / %dd daily / %dd slow\n",
		cfg.IntradayLookbackDays, cfg.DailyLookbackDays, cfg.SlowLookbackDays)
	fmt.Printf("Slow Cycle:           every %d days\n", cfg.SlowCycleDays)
	fmt.Printf("Digest Max Chars:     %d\n", cfg.DigestMaxChars)
	fmt.Printf("Dedup Similarity:     %.2f\n", cfg.DedupSimilarity)
	fmt.Printf("Min Confidence:       %.2f\n", cfg.MinConfidence)
	fmt.Println()
	fmt.Printf("Initial Cash:         %.2f\n", cfg.InitialCash)
	fmt.Printf("Max Position Frac:    %.2f\n", cfg.MaxPositionFraction)
	fmt.Printf("Symbol Pool:          %s\n", strings.Join(cfg.SymbolPool, ", "))
	fmt.Printf("Top Symbols:          %d\n", cfg.TopSymbols)
	fmt.Println()
	fmt.Printf("Online Tools:         %t\n", cfg.OnlineTools)
	fmt.Printf("Cache Enabled:        %t\n", cfg.CacheEnabled)
	fmt.Printf("Debug Mode:           %t\n", cfg.Debug)
	fmt.Printf("Eino Debug:           %t\n", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		fmt.Printf("Eino Debug Port:      %d\n", cfg.EinoDebugPort)
		fmt.Printf("Debug URL:            http://localhost:%d\n", cfg.EinoDebugPort)
	}
	fmt.Println()

	fmt.Println("🔌 API Configuration:")
	fmt.Println("─────────────────────")
	printKeyStatus("OpenAI API", cfg.OpenAIAPIKey != "")
	printKeyStatus("DeepSeek API", cfg.DeepSeekAPIKey != "")
	printKeyStatus("Finnhub API", cfg.FinnhubAPIKey != "")
	printKeyStatus("Longport API", cfg.LongportAppKey != "" && cfg.LongportAppSecret != "" && cfg.LongportAccessToken != "")
}

func printKeyStatus(name string, configured bool) {
	if configured {
		fmt.Printf("%-22s✅ Configured\n", name+":")
	} else {
		fmt.Printf("%-22s❌ Not configured\n", name+":")
	}
}

// validateConfig validates the configuration and dependencies
func validateConfig(cfg *config.Config, cm *ConfigManager) error {
	fmt.Println("🔍 Validating tradecycle Configuration...")
	fmt.Println("═══════════════════════════════════════")

	// Check directories
	fmt.Print("📁 Checking directories... ")
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Println("❌")
		return fmt.Errorf("directory validation failed: %w", err)
	}
	fmt.Println("✅")

	// Check credentials and value ranges
	fmt.Print("🔑 Checking credentials and ranges... ")
	warnings := cm.ValidateConfiguration()
	if len(warnings) > 0 {
		fmt.Println("⚠️")
		for _, warning := range warnings {
			fmt.Printf("  ⚠️  %s\n", warning)
		}
	} else {
		fmt.Println("✅")
	}

	// Check the database opens and migrates
	fmt.Print("🗄️  Checking database... ")
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		fmt.Println("❌")
		return fmt.Errorf("database validation failed: %w", err)
	}
	store.Close()
	fmt.Println("✅")

	fmt.Println()
	if len(warnings) == 0 {
		fmt.Println("✅ Configuration validation completed successfully!")
	} else {
		fmt.Printf("⚠️  Configuration validation completed with %d warnings.\n", len(warnings))
		fmt.Println("Some features may be limited without proper API configuration.")
	}

	fmt.Println()
	fmt.Println("💡 Tips:")
	fmt.Println("  • Set DEEPSEEK_API_KEY or OPENAI_API_KEY for the decision pipeline")
	fmt.Println("  • Set FINNHUB_API_KEY for insider sentiment and transactions")
	fmt.Println("  • Use 'tradecycle run --date <YYYY-MM-DD>' to run your first trading day")

	return nil
}
