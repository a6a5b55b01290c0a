// Package trading assembles the pipeline from configuration. One App
// per process: it opens the store, funds the ledger, builds both chat
// models and hands everything to the session router. Callers drive
// whole trading days or single sessions through the App and close it
// when done.
package trading

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/internal/agents"
	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/debate"
	"github.com/dyike/tradecycle/internal/debug"
	"github.com/dyike/tradecycle/internal/execution"
	"github.com/dyike/tradecycle/internal/fusion"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/memory"
	"github.com/dyike/tradecycle/internal/portfolio"
	"github.com/dyike/tradecycle/internal/session"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
	"github.com/dyike/tradecycle/internal/strategy"
)

// App owns the assembled pipeline and its long-lived collaborators.
type App struct {
	cfg      *config.Config
	store    *sqlite.Store
	ledger   *portfolio.Ledger
	feed     *dataflows.DataFlowInterface
	memory   *memory.Service
	router   *session.Router
	debugger *debug.Server
}

// NewApp wires the full pipeline: store, ledger, market data, chat
// models, memory, fusion, debates, strategy, execution and the four
// reference analysts, all handed to one session router. The chat
// models are required; a provider that cannot be built fails the App
// rather than producing a desk that cannot debate.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Get()
	}
	if err := ValidateProviderKeys(cfg); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}
	if cfg.Debug {
		llm.InstallDebugLogging()
	}

	quickModel, err := llm.NewQuickThinkModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build quick-think model: %w", err)
	}
	deepModel, err := llm.NewDeepThinkModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build deep-think model: %w", err)
	}
	quick := llm.NewClient(quickModel, cfg.TurnTimeout, cfg.MaxTurnRetries)
	deep := llm.NewClient(deepModel, cfg.TurnTimeout, cfg.MaxTurnRetries)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app, err := assemble(ctx, cfg, store, quick, deep)
	if err != nil {
		store.Close()
		return nil, err
	}

	// Debugger startup failure is non-fatal.
	app.debugger = debug.NewServer(cfg)
	if err := app.debugger.Start(ctx); err != nil {
		log.Printf("[Trading] eino debugger unavailable: %v", err)
	}

	log.Printf("[Trading] app ready: provider=%s db=%s pool=%d symbols",
		cfg.LLMProvider, cfg.DBPath, len(cfg.SymbolPool))
	return app, nil
}

// assemble wires the collaborators around already-built chat clients.
// The quick client serves analysts and memory digests, the deep client
// serves debates, strategy selection and reflection. A nil quick
// client degrades those paths to their extractive fallbacks; the deep
// client is required by the debate engines.
func assemble(ctx context.Context, cfg *config.Config, store *sqlite.Store, quick, deep *llm.Client) (*App, error) {
	ledger, err := portfolio.NewLedger(ctx, store, decimal.NewFromFloat(cfg.InitialCash))
	if err != nil {
		return nil, fmt.Errorf("restore ledger: %w", err)
	}

	feed := dataflows.NewDataFlowInterface(cfg)
	mem := memory.NewService(store, quick, cfg)
	agg := fusion.NewAggregator(mem, store, strategy.NewClassifier(feed))

	research, err := debate.NewResearch(deep, cfg.MaxDebateRounds)
	if err != nil {
		return nil, fmt.Errorf("build research debate: %w", err)
	}
	risk, err := debate.NewRisk(deep, cfg.MaxRiskDiscussRounds)
	if err != nil {
		return nil, fmt.Errorf("build risk debate: %w", err)
	}

	router, err := session.NewRouter(session.Deps{
		Config:    cfg,
		Store:     store,
		Memory:    mem,
		Fusion:    agg,
		Research:  research,
		Risk:      risk,
		Selector:  strategy.NewSelector(deep),
		Execution: execution.NewEngine(store, ledger, feed, cfg.MaxPositionFraction),
		Ledger:    ledger,
		Feed:      feed,
		Analysts: []session.Analyst{
			agents.NewMarket(feed, quick),
			agents.NewNews(feed, quick),
			agents.NewSentiment(feed, feed, quick),
			agents.NewFundamentals(feed, feed, quick),
		},
		Targets: strategy.NewStockSelector(feed, cfg.SymbolPool, cfg.TopSymbols),
		Client:  deep,
	})
	if err != nil {
		return nil, fmt.Errorf("build session router: %w", err)
	}

	return &App{
		cfg:    cfg,
		store:  store,
		ledger: ledger,
		feed:   feed,
		memory: mem,
		router: router,
	}, nil
}

// ValidateProviderKeys checks that the configured chat provider has a
// usable API key before anything expensive is built.
func ValidateProviderKeys(cfg *config.Config) error {
	switch strings.ToLower(cfg.LLMProvider) {
	case "openai":
		if cfg.OpenAIAPIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case "deepseek":
		if cfg.DeepSeekAPIKey == "" && os.Getenv("DEEPSEEK_API_KEY") == "" {
			return fmt.Errorf("DEEPSEEK_API_KEY is required for the deepseek provider")
		}
	default:
		return fmt.Errorf("unsupported llm provider: %q", cfg.LLMProvider)
	}
	return nil
}

// RunDay drives all three sessions for one trading day. With no
// symbols it trades the selector's picks plus whatever the book holds.
func (a *App) RunDay(ctx context.Context, date time.Time, symbols []string) ([]*session.SessionResult, error) {
	return a.router.RunTradingDay(ctx, date, symbols)
}

// RunSession drives a single session of a single symbol-day.
func (a *App) RunSession(ctx context.Context, symbol string, date time.Time, sess string) (*session.SessionResult, error) {
	return a.router.RunSession(ctx, symbol, date, sess)
}

// RunRange replays trading days from first to last inclusive, feeding
// results forward through the shared ledger and memory. Non-trading
// days are skipped by the router; the replay stops on the first day
// whose sessions error out.
func (a *App) RunRange(ctx context.Context, first, last time.Time, symbols []string) ([]*session.SessionResult, error) {
	if last.Before(first) {
		return nil, fmt.Errorf("backtest range: %s is before %s",
			last.Format("2006-01-02"), first.Format("2006-01-02"))
	}
	var all []*session.SessionResult
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		results, err := a.RunDay(ctx, day, symbols)
		all = append(all, results...)
		if err != nil {
			return all, fmt.Errorf("replay stopped on %s: %w", day.Format("2006-01-02"), err)
		}
	}
	return all, nil
}

// Router exposes the session router for callers that need stage-level
// control.
func (a *App) Router() *session.Router { return a.router }

// Store exposes the backing store for history and summary queries.
func (a *App) Store() *sqlite.Store { return a.store }

// Ledger exposes the portfolio ledger for balance and position views.
func (a *App) Ledger() *portfolio.Ledger { return a.ledger }

// Memory exposes the memory service for external report submission.
func (a *App) Memory() *memory.Service { return a.memory }

// Feed exposes the market data interface.
func (a *App) Feed() *dataflows.DataFlowInterface { return a.feed }

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Close releases the debugger and the store. The App must not be used
// afterwards.
func (a *App) Close() error {
	if a.debugger != nil {
		a.debugger.Close()
	}
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
