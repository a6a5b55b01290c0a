package consts

// Research debate roles.
const (
	BullResearcher  = "bull_researcher"
	BearResearcher  = "bear_researcher"
	ResearchManager = "research_manager"
)

// Risk debate roles.
const (
	AggressiveAnalyst   = "aggressive_analyst"
	ConservativeAnalyst = "conservative_analyst"
	NeutralAnalyst      = "neutral_analyst"
	RiskManager         = "risk_manager"
)
