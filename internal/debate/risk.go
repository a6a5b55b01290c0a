package debate

import (
	"fmt"
	"strings"

	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
)

const aggressiveAnalystPrompt = `You are the aggressive risk analyst reviewing a proposed order.

Your responsibilities:
1. Argue for taking the trade at full proposed size when the setup justifies it
2. Quantify the upside being left on the table by hesitating
3. Push back on the conservative analyst's worst-case framing with base rates, not bravado`

const conservativeAnalystPrompt = `You are the conservative risk analyst reviewing a proposed order.

Your responsibilities:
1. Stress the downside: drawdown already on the book, concentration, what happens if the thesis is wrong
2. Check the order against the portfolio snapshot; flag any sizing that crowds the cash buffer
3. Argue for rejecting or shrinking the trade whenever protection of capital demands it`

const neutralAnalystPrompt = `You are the neutral risk analyst reviewing a proposed order.

Your responsibilities:
1. Arbitrate between the aggressive and conservative readings of the same context
2. Point out what both sides are ignoring
3. State plainly which side has the better argument this round and why`

const riskManagerPrompt = `You are the risk manager with final authority over a proposed order.

Your responsibilities:
1. Approve the trade only when the risk debate supports the proposed direction
2. Reply with the proposed direction (BUY or SELL) to approve the order as proposed
3. Reply HOLD to reject it; rejecting a marginal trade is always acceptable, a blown risk budget is not
4. Discount any turn marked (abstained)`

// NewRisk builds the three-sided risk debate that rules on a proposed
// order before execution.
func NewRisk(client *llm.Client, rounds int) (*Engine, error) {
	return New(client, Config{
		Name:   "risk",
		Rounds: rounds,
		Roles: []Role{
			{Name: consts.AggressiveAnalyst, Prompt: aggressiveAnalystPrompt},
			{Name: consts.ConservativeAnalyst, Prompt: conservativeAnalystPrompt},
			{Name: consts.NeutralAnalyst, Prompt: neutralAnalystPrompt},
		},
		Judge: Role{Name: consts.RiskManager, Prompt: riskManagerPrompt},
	})
}

// RiskTopic renders the order under review on top of the research
// outcome so the risk debate sees what it is ruling on.
func RiskTopic(decisionContext string, verdict *models.Verdict, sel *models.StrategySelection, order *models.Order) string {
	var sb strings.Builder
	sb.WriteString(decisionContext)

	sb.WriteString("\n\n## Research verdict\n")
	fmt.Fprintf(&sb, "Decision: %s (confidence %.2f)\n", verdict.Decision, verdict.Confidence)
	fmt.Fprintf(&sb, "Rationale: %s\n", verdict.Rationale)

	if sel != nil {
		sb.WriteString("\n## Selected strategy\n")
		fmt.Fprintf(&sb, "Strategy: %s (confidence %.2f)\n", sel.StrategyID, sel.Confidence)
		if sel.ExpectedBehavior != "" {
			fmt.Fprintf(&sb, "Expected behavior: %s\n", sel.ExpectedBehavior)
		}
		if sel.Degraded {
			sb.WriteString("Note: selection degraded to the default strategy.\n")
		}
	}

	if order != nil {
		sb.WriteString("\n## Proposed order\n")
		fmt.Fprintf(&sb, "%s %d %s at next session open\n", order.Side, order.Quantity, order.Symbol)
	}
	return sb.String()
}

// Assess maps the risk verdict onto the proposed side. Only a
// non-abstained verdict confirming the proposed direction approves
// the order; everything else, including an abstention, rejects it.
func Assess(v *models.Verdict, proposed models.Decision) *models.RiskAssessment {
	approved := !v.Abstained &&
		proposed != models.DecisionHold &&
		v.Decision == proposed
	return &models.RiskAssessment{
		Approved:   approved,
		Decision:   v.Decision,
		Rationale:  v.Rationale,
		Confidence: v.Confidence,
		Abstained:  v.Abstained,
	}
}
