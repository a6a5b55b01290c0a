// Package session drives the daily pipeline. Each symbol-day runs
// three sessions in order: pre_open settles a decision and puts it
// through risk review, market_open fills the surviving order at the
// next session's opening price, and post_close marks the book, closes
// the memory boundaries, and records the day. Stages inside a session
// are an explicit state machine: every stage returns a tagged result
// and a single route function picks the next stage, so any failure
// still lands on the summary record.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dyike/tradecycle/config"
	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/debate"
	"github.com/dyike/tradecycle/internal/execution"
	"github.com/dyike/tradecycle/internal/fusion"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/memory"
	"github.com/dyike/tradecycle/internal/models"
	"github.com/dyike/tradecycle/internal/portfolio"
	"github.com/dyike/tradecycle/internal/storage/sqlite"
	"github.com/dyike/tradecycle/internal/strategy"
)

const dateLayout = "2006-01-02"

// StageStatus tags a stage outcome. Skips keep the pipeline moving,
// errors divert it to the summary stage.
type StageStatus int

const (
	StageSuccess StageStatus = iota
	StageSkip
	StageError
)

func (s StageStatus) String() string {
	switch s {
	case StageSuccess:
		return "success"
	case StageSkip:
		return "skip"
	default:
		return "error"
	}
}

// StageResult is what every stage hands back to the router. Reason
// carries the reason code recorded when the stage skips or fails.
type StageResult struct {
	Status StageStatus
	Reason string
	Err    error
}

type stageFn func(ctx context.Context, st *models.SessionState) StageResult

// StageTrace records one executed stage for display and diagnostics.
type StageTrace struct {
	Stage   string
	Status  StageStatus
	Reason  string
	Elapsed time.Duration
}

// SessionResult is what RunSession returns: the terminal status of the
// symbol-day session plus the trace of stages it walked.
type SessionResult struct {
	Symbol     string
	Date       time.Time
	Session    string
	Status     string
	ReasonCode string
	Stages     []StageTrace
	State      *models.SessionState
}

// Analyst produces one report for a symbol-day. Implementations are
// external collaborators; a failing analyst degrades the day to a
// partial fusion context instead of stopping it.
type Analyst interface {
	Name() string
	Report(ctx context.Context, symbol string, date time.Time) (*models.AnalystReport, error)
}

// Deps wires the router. Config through Feed are required; Analysts,
// Targets and Client are optional and switch off ingestion, dynamic
// stock selection and LLM reflection respectively.
type Deps struct {
	Config    *config.Config
	Store     *sqlite.Store
	Memory    *memory.Service
	Fusion    *fusion.Aggregator
	Research  *debate.Engine
	Risk      *debate.Engine
	Selector  *strategy.Selector
	Execution *execution.Engine
	Ledger    *portfolio.Ledger
	Feed      dataflows.CandleFeed

	Analysts []Analyst
	Targets  *strategy.StockSelector
	Client   *llm.Client
}

func (d Deps) validate() error {
	required := []struct {
		name    string
		missing bool
	}{
		{"config", d.Config == nil},
		{"store", d.Store == nil},
		{"memory service", d.Memory == nil},
		{"fusion aggregator", d.Fusion == nil},
		{"research engine", d.Research == nil},
		{"risk engine", d.Risk == nil},
		{"strategy selector", d.Selector == nil},
		{"execution engine", d.Execution == nil},
		{"ledger", d.Ledger == nil},
		{"candle feed", d.Feed == nil},
	}
	for _, req := range required {
		if req.missing {
			return fmt.Errorf("session router: %s is required", req.name)
		}
	}
	return nil
}

// Router owns the per-session state machine and the day driver.
type Router struct {
	cfg      *config.Config
	store    *sqlite.Store
	memory   *memory.Service
	fusion   *fusion.Aggregator
	research *debate.Engine
	risk     *debate.Engine
	selector *strategy.Selector
	engine   *execution.Engine
	ledger   *portfolio.Ledger
	feed     dataflows.CandleFeed
	analysts []Analyst
	targets  *strategy.StockSelector
	client   *llm.Client

	mu          sync.Mutex
	targetCache map[string][]string
}

func NewRouter(deps Deps) (*Router, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Router{
		cfg:         deps.Config,
		store:       deps.Store,
		memory:      deps.Memory,
		fusion:      deps.Fusion,
		research:    deps.Research,
		risk:        deps.Risk,
		selector:    deps.Selector,
		engine:      deps.Execution,
		ledger:      deps.Ledger,
		feed:        deps.Feed,
		analysts:    deps.Analysts,
		targets:     deps.Targets,
		client:      deps.Client,
		targetCache: make(map[string][]string),
	}, nil
}

// RunSession executes one session of one symbol-day. It is the sole
// pipeline entry: callers never invoke stages directly. The returned
// error is reserved for invalid input and context cancellation; every
// in-pipeline failure is folded into the result and its summary row.
func (r *Router) RunSession(ctx context.Context, symbol string, date time.Time, session string) (*SessionResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &models.ValidationError{Field: "symbol", Reason: "is required"}
	}
	if date.IsZero() {
		return nil, &models.ValidationError{Field: "date", Reason: "is required"}
	}
	switch session {
	case consts.SessionPreOpen, consts.SessionMarketOpen, consts.SessionPostClose:
	default:
		return nil, &models.ValidationError{Field: "session", Reason: fmt.Sprintf("unknown session %q", session)}
	}

	st := models.NewSessionState(symbol, date, session)
	result := &SessionResult{Symbol: symbol, Date: date, Session: session}
	log.Printf("[Session] %s %s %s starting", symbol, date.Format(dateLayout), session)

	for stage := firstStage(session); stage != ""; {
		if err := ctx.Err(); err != nil {
			st.Status = models.SummarySkipped
			st.ReasonCode = models.ReasonCancelled
			result.State, result.Status, result.ReasonCode = st, st.Status, st.ReasonCode
			return result, fmt.Errorf("%s %s cancelled at %s: %w", symbol, session, stage, err)
		}
		fn := r.stageFn(session, stage)
		if fn == nil {
			return result, fmt.Errorf("session %s has no %s stage", session, stage)
		}
		start := time.Now()
		res := r.runStage(ctx, session, stage, st, fn)
		result.Stages = append(result.Stages, StageTrace{
			Stage:   stage,
			Status:  res.Status,
			Reason:  res.Reason,
			Elapsed: time.Since(start),
		})
		stage = route(session, stage, res)
	}

	result.State = st
	result.Status = st.Status
	result.ReasonCode = st.ReasonCode
	log.Printf("[Session] %s %s %s finished: %s", symbol, date.Format(dateLayout), session, result.Status)
	return result, nil
}

// runStage executes one stage under the configured stage timeout and
// folds failures into the session state, so the summary stage records
// them with their reason code.
func (r *Router) runStage(ctx context.Context, session, stage string, st *models.SessionState, fn stageFn) StageResult {
	stageCtx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()

	start := time.Now()
	res := fn(stageCtx, st)
	elapsed := time.Since(start).Round(time.Millisecond)

	switch res.Status {
	case StageError:
		if errors.Is(res.Err, context.DeadlineExceeded) {
			res.Err = &models.TimeoutError{Stage: stage, Timeout: r.cfg.StageTimeout}
			res.Reason = models.ReasonStageTimeout
		}
		if res.Reason == "" {
			res.Reason = models.ReasonStageFailed
		}
		st.Status = models.SummarySkipped
		st.ReasonCode = res.Reason
		log.Printf("[Session] %s %s %s/%s failed after %s: %v",
			st.Symbol, st.TradeDate.Format(dateLayout), session, stage, elapsed, res.Err)
	case StageSkip:
		log.Printf("[Session] %s %s %s/%s skipped: %s",
			st.Symbol, st.TradeDate.Format(dateLayout), session, stage, res.Reason)
	}
	return res
}

// firstStage is each session's state machine entry.
func firstStage(session string) string {
	switch session {
	case consts.SessionPreOpen:
		return consts.StageIngest
	case consts.SessionMarketOpen:
		return consts.StageExecution
	default:
		return consts.StageValuation
	}
}

// route is the single transition function of the session state
// machine. Errors divert straight to the summary stage so the day
// always leaves a record; skips follow the normal edge because every
// downstream stage tolerates the missing piece.
func route(session, stage string, res StageResult) string {
	if stage == consts.StageSummary {
		if session == consts.SessionPostClose && res.Status != StageError {
			return consts.StageReflection
		}
		return ""
	}
	if stage == consts.StageReflection {
		return ""
	}
	if res.Status == StageError {
		return consts.StageSummary
	}

	switch session {
	case consts.SessionPreOpen:
		switch stage {
		case consts.StageIngest:
			return consts.StageFusion
		case consts.StageFusion:
			return consts.StageResearchDebate
		case consts.StageResearchDebate:
			return consts.StageStrategy
		case consts.StageStrategy:
			return consts.StageRiskDebate
		case consts.StageRiskDebate:
			return consts.StageExecution
		}
	case consts.SessionMarketOpen:
		if stage == consts.StageExecution {
			return consts.StageSummary
		}
	case consts.SessionPostClose:
		switch stage {
		case consts.StageValuation:
			return consts.StageConsolidate
		case consts.StageConsolidate:
			return consts.StageSummary
		}
	}
	return consts.StageSummary
}

func (r *Router) stageFn(session, stage string) stageFn {
	switch stage {
	case consts.StageIngest:
		return r.ingestStage
	case consts.StageFusion:
		return r.fusionStage
	case consts.StageResearchDebate:
		return r.researchStage
	case consts.StageStrategy:
		return r.strategyStage
	case consts.StageRiskDebate:
		return r.riskStage
	case consts.StageExecution:
		if session == consts.SessionMarketOpen {
			return r.fillStage
		}
		return r.approvalStage
	case consts.StageValuation:
		return r.valuationStage
	case consts.StageConsolidate:
		return r.consolidateStage
	case consts.StageSummary:
		return r.summaryStage
	case consts.StageReflection:
		return r.reflectionStage
	}
	return nil
}
