package consts

// Pipeline stages, in execution order.
const (
	StageIngest         = "ingest"
	StageConsolidate    = "consolidate"
	StageFusion         = "fusion"
	StageResearchDebate = "research_debate"
	StageStrategy       = "strategy"
	StageRiskDebate     = "risk_debate"
	StageExecution      = "execution"
	StageValuation      = "valuation"
	StageSummary        = "summary"
	StageReflection     = "reflection"
)

// Trading sessions within a day.
const (
	SessionPreOpen    = "pre_open"
	SessionMarketOpen = "market_open"
	SessionPostClose  = "post_close"
)
