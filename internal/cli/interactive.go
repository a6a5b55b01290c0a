package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/internal/trading"
)

// InteractiveSession handles interactive CLI sessions. The trading app
// is built lazily on the first run command so that ledger queries work
// without LLM provider keys.
type InteractiveSession struct {
	config *config.Config
	cm     *ConfigManager
	reader *bufio.Reader
	app    *trading.App
}

// NewInteractiveSession creates a new interactive session
func NewInteractiveSession(cfg *config.Config) *InteractiveSession {
	return &InteractiveSession{
		config: cfg,
		cm:     NewConfigManager(cfg),
		reader: bufio.NewReader(os.Stdin),
	}
}

// Start begins the interactive session
func (s *InteractiveSession) Start() error {
	maybeClearScreen()
	DisplayWelcomeBanner()
	s.showWelcome()
	defer s.closeApp()
	return s.runMainLoop()
}

// showWelcome displays the welcome screen
func (s *InteractiveSession) showWelcome() {
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                    🚀 tradecycle v1.0.0                        ║")
	fmt.Println("║            Session-Gated Autonomous Trading Pipeline           ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("🧭 Session Pipeline:")
	fmt.Println("   • pre_open    - ingest reports, fuse context, debate, route order")
	fmt.Println("   • market_open - fill the approved order at the next open")
	fmt.Println("   • post_close  - value the book, consolidate memory, reflect")
	fmt.Println()
	fmt.Println("💡 Commands:")
	fmt.Println("   run [SYMBOL...] [date]  - Run a trading day (no args starts the wizard)")
	fmt.Println("   portfolio [date]        - Show the latest portfolio snapshot")
	fmt.Println("   history <SYMBOL> [days] - Show daily trading records")
	fmt.Println("   orders <SYMBOL> [days]  - Show the order log")
	fmt.Println("   reflections <SYMBOL>    - Show recorded lessons")
	fmt.Println("   config                  - Show/edit configuration")
	fmt.Println("   help                    - Show detailed help")
	fmt.Println("   exit                    - Exit tradecycle")
	fmt.Println()
}

// runMainLoop runs the main interactive loop
func (s *InteractiveSession) runMainLoop() error {
	for {
		fmt.Print("📊 tradecycle> ")

		input, err := s.reader.ReadString('\n')
		if err != nil {
			fmt.Printf("❌ Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Parse command
		parts := strings.Fields(input)
		command := strings.ToLower(parts[0])

		switch command {
		case "exit", "quit", "q":
			fmt.Println("👋 Thank you for using tradecycle!")
			return nil

		case "help", "h", "?":
			s.showHelp()

		case "run", "r":
			if s.handleRun(parts[1:]) {
				fmt.Println("👋 Thank you for using tradecycle!")
				return nil
			}

		case "portfolio", "pf":
			dateStr := ""
			if len(parts) >= 2 {
				dateStr = parts[1]
			}
			if err := showPortfolio(s.config, dateStr); err != nil {
				DisplayError(err)
			}

		case "history", "hist":
			s.handleRangeQuery(parts[1:], "history", showHistory)

		case "orders", "ord":
			s.handleRangeQuery(parts[1:], "orders", showOrders)

		case "reflections", "refl":
			s.handleReflections(parts[1:])

		case "config", "cfg":
			s.handleConfigCommand(parts[1:])

		case "clear", "cls":
			s.clearScreen()

		default:
			fmt.Printf("❌ Unknown command: %s. Type 'help' for available commands.\n", command)
		}

		fmt.Println()
	}
}

// showHelp displays detailed help information
func (s *InteractiveSession) showHelp() {
	fmt.Println("📚 tradecycle Help")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println("🔍 RUN COMMANDS:")
	fmt.Println("  run                        - Guided wizard: universe, date, sessions")
	fmt.Println("  run <SYMBOL...> [date]     - Run a full day for explicit symbols")
	fmt.Println("                               Example: run AAPL NVDA 2025-01-09")
	fmt.Println("  run auto [date]            - Let the stock selector pick the universe")
	fmt.Println()
	fmt.Println("📒 LEDGER COMMANDS:")
	fmt.Println("  portfolio [date]           - Snapshot on or before a date (default today)")
	fmt.Println("  history <SYMBOL> [days]    - Daily decision and return records")
	fmt.Println("  orders <SYMBOL> [days]     - Orders with status and fill prices")
	fmt.Println("  reflections <SYMBOL>       - Lessons the pipeline wrote about past days")
	fmt.Println()
	fmt.Println("⚙️  CONFIGURATION COMMANDS:")
	fmt.Println("  config show                - Display current configuration")
	fmt.Println("  config validate            - Validate configuration and APIs")
	fmt.Println("  config set <key> <value>   - Update and persist a configuration value")
	fmt.Println("  config edit                - Interactive configuration editor")
	fmt.Println()
	fmt.Println("📊 SESSION WORKFLOW:")
	fmt.Println("  1. pre_open                - Analyst reports land in tiered memory,")
	fmt.Println("                               fusion, bull vs bear debate, strategy")
	fmt.Println("                               selection, risk review, order routing")
	fmt.Println("  2. market_open             - Approved orders fill at the next open")
	fmt.Println("  3. post_close              - Portfolio valuation, memory boundaries")
	fmt.Println("                               consolidate, daily summary, reflection")
	fmt.Println()
	fmt.Println("🔧 OTHER COMMANDS:")
	fmt.Println("  clear                      - Clear screen")
	fmt.Println("  help                       - Show this help")
	fmt.Println("  exit                       - Exit tradecycle")
	fmt.Println()
	fmt.Println("💡 Tips:")
	fmt.Println("  • Set DEEPSEEK_API_KEY or OPENAI_API_KEY before running a trading day")
	fmt.Println("  • Ledger queries work without any API keys")
	fmt.Println("  • A full day for one symbol takes a few minutes of LLM turns")
}

// handleRun dispatches the run command. Returns true when the wizard's
// closing prompt asked to exit tradecycle.
func (s *InteractiveSession) handleRun(args []string) bool {
	if len(args) == 0 {
		return s.runWizard()
	}

	// Direct form: a trailing YYYY-MM-DD token is the trade date.
	date := time.Now()
	if d, err := time.Parse("2006-01-02", args[len(args)-1]); err == nil {
		date = d
		args = args[:len(args)-1]
	}
	if len(args) == 1 && strings.EqualFold(args[0], "auto") {
		args = nil
	}

	var symbols []string
	if len(args) > 0 {
		valid, invalid := ValidateSymbols(args)
		if len(invalid) > 0 {
			fmt.Printf("❌ Invalid symbols: %s\n", strings.Join(invalid, ", "))
			return false
		}
		symbols = valid
	}

	s.executeRun(symbols, date, "")
	return false
}

// runWizard walks the survey prompts and runs until the user exits.
// Returns true when the user chose to leave tradecycle.
func (s *InteractiveSession) runWizard() bool {
	for {
		auto, err := PromptForUniverseChoice()
		if err != nil {
			return false
		}

		var symbols []string
		if !auto {
			symbols, err = PromptForSymbols()
			if err != nil {
				return false
			}
		}

		date, err := PromptForTradeDate()
		if err != nil {
			return false
		}

		// Single sessions need explicit symbols; the selector only
		// runs inside a full pre_open.
		sessionName := ""
		if len(symbols) > 0 {
			sessionName, err = PromptForSessionChoice()
			if err != nil {
				return false
			}
		}

		confirmed, err := PromptForRunConfirmation(symbols, date, sessionName, s.config)
		if err != nil {
			return false
		}
		if confirmed {
			s.executeRun(symbols, date, sessionName)
		}

		again, err := PromptForRestartOrExit()
		if err != nil {
			return false
		}
		if !again {
			return true
		}
	}
}

// executeRun runs a day or a single session on the lazy app
func (s *InteractiveSession) executeRun(symbols []string, date time.Time, sessionName string) {
	if sessionName != "" && len(symbols) == 0 {
		fmt.Println("❌ A single session needs explicit symbols")
		return
	}

	if err := s.ensureApp(); err != nil {
		DisplayError(err)
		return
	}

	ctx := context.Background()
	DisplayRunHeader(symbols, date)

	var err error
	if sessionName != "" {
		err = runSingleSession(ctx, s.config, s.app, symbols, date, sessionName)
	} else {
		err = runDayWithApp(ctx, s.config, s.app, symbols, date)
	}
	if err != nil {
		DisplayError(err)
	}
}

// handleRangeQuery serves history and orders with a shared arg shape
func (s *InteractiveSession) handleRangeQuery(args []string, name string, query func(*config.Config, string, time.Time, time.Time) error) {
	if len(args) < 1 {
		fmt.Printf("❌ Usage: %s <SYMBOL> [days]\n", name)
		return
	}

	symbol := strings.ToUpper(args[0])
	if err := validateSymbolToken(symbol); err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}

	days := 30
	if len(args) >= 2 {
		d, err := strconv.Atoi(args[1])
		if err != nil || d <= 0 {
			fmt.Printf("❌ Invalid day count: %s\n", args[1])
			return
		}
		days = d
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	if err := query(s.config, symbol, from, to); err != nil {
		DisplayError(err)
	}
}

// handleReflections shows a symbol's recorded lessons
func (s *InteractiveSession) handleReflections(args []string) {
	if len(args) < 1 {
		fmt.Println("❌ Usage: reflections <SYMBOL> [limit]")
		return
	}

	symbol := strings.ToUpper(args[0])
	limit := 5
	if len(args) >= 2 {
		l, err := strconv.Atoi(args[1])
		if err != nil || l <= 0 {
			fmt.Printf("❌ Invalid limit: %s\n", args[1])
			return
		}
		limit = l
	}

	if err := showReflections(s.config, symbol, limit); err != nil {
		DisplayError(err)
	}
}

// handleConfigCommand handles configuration subcommands
func (s *InteractiveSession) handleConfigCommand(args []string) {
	if len(args) == 0 {
		showConfig(s.config)
		return
	}

	switch strings.ToLower(args[0]) {
	case "show", "s":
		showConfig(s.config)

	case "validate", "v":
		if err := validateConfig(s.config, s.cm); err != nil {
			fmt.Printf("❌ Validation failed: %v\n", err)
		}

	case "set":
		if len(args) < 3 {
			fmt.Println("❌ Usage: config set <key> <value>")
			return
		}
		s.setConfigValue(args[1], args[2])

	case "edit", "e":
		s.interactiveConfigEdit()

	default:
		fmt.Printf("❌ Unknown config command: %s\n", args[0])
		fmt.Println("Available: show, validate, set, edit")
	}
}

// setConfigValue updates and persists a configuration value
func (s *InteractiveSession) setConfigValue(key, value string) {
	if err := s.cm.SetConfigValue(key, value); err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	if err := s.cm.SaveConfig(); err != nil {
		fmt.Printf("❌ Could not persist config: %v\n", err)
		return
	}
	fmt.Printf("✅ %s set to %s\n", strings.ToLower(key), value)
}

// interactiveConfigEdit provides interactive configuration editing
func (s *InteractiveSession) interactiveConfigEdit() {
	fmt.Println("⚙️  Interactive Configuration Editor")
	fmt.Println("───────────────────────────────────")

	// Debug mode
	fmt.Printf("Current debug mode: %t\n", s.config.Debug)
	fmt.Print("Enable debug mode? (y/n): ")
	if input, err := s.reader.ReadString('\n'); err == nil {
		input = strings.TrimSpace(strings.ToLower(input))
		if input == "y" || input == "yes" {
			s.config.Debug = true
		} else if input == "n" || input == "no" {
			s.config.Debug = false
		}
	}

	// Research debate rounds
	fmt.Printf("Current research debate rounds: %d\n", s.config.MaxDebateRounds)
	fmt.Print("Set research debate rounds (1-10, empty keeps current): ")
	if input, err := s.reader.ReadString('\n'); err == nil {
		input = strings.TrimSpace(input)
		if input != "" {
			if err := s.cm.SetConfigValue("max_debate_rounds", input); err != nil {
				fmt.Printf("❌ %v\n", err)
			}
		}
	}

	// Risk review rounds
	fmt.Printf("Current risk review rounds: %d\n", s.config.MaxRiskDiscussRounds)
	fmt.Print("Set risk review rounds (1-10, empty keeps current): ")
	if input, err := s.reader.ReadString('\n'); err == nil {
		input = strings.TrimSpace(input)
		if input != "" {
			if err := s.cm.SetConfigValue("max_risk_rounds", input); err != nil {
				fmt.Printf("❌ %v\n", err)
			}
		}
	}

	if err := s.cm.SaveConfig(); err != nil {
		fmt.Printf("❌ Could not persist config: %v\n", err)
		return
	}
	fmt.Println("✅ Configuration updated!")
}

// ensureApp builds the trading app on first use
func (s *InteractiveSession) ensureApp() error {
	if s.app != nil {
		return nil
	}

	DisplayInitializing()
	app, err := trading.NewApp(context.Background(), s.config)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	s.app = app
	return nil
}

// closeApp releases the lazy app if one was built
func (s *InteractiveSession) closeApp() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

// clearScreen clears the terminal screen
func (s *InteractiveSession) clearScreen() {
	maybeClearScreen()
	s.showWelcome()
}
