// Package debate runs fixed-role, fixed-round structured exchanges.
// Every run walks the full speaking rotation, hands the transcript to
// a judge, and yields exactly one verdict. Failed turns abstain after
// the client's retry budget; a failed judge abstains to HOLD.
package debate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/models"
)

// abstainPlaceholder fills a turn whose speaker could not produce an
// argument. It still advances the rotation so the debate stays bounded.
const abstainPlaceholder = "(abstained)"

// Role is one speaker in the rotation, or the judge.
type Role struct {
	Name   string
	Prompt string
}

type Config struct {
	Name   string
	Roles  []Role
	Judge  Role
	Rounds int
}

func (c Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("debate config: name is required")
	}
	if len(c.Roles) == 0 {
		return fmt.Errorf("debate config: %s needs at least one role", c.Name)
	}
	for _, r := range c.Roles {
		if r.Name == "" || r.Prompt == "" {
			return fmt.Errorf("debate config: %s has a role without name or prompt", c.Name)
		}
	}
	if c.Judge.Name == "" || c.Judge.Prompt == "" {
		return fmt.Errorf("debate config: %s needs a judge", c.Name)
	}
	if c.Rounds <= 0 {
		return fmt.Errorf("debate config: %s needs a positive round count", c.Name)
	}
	return nil
}

// Engine executes debates over one chat client. Engines are stateless
// across runs; debates for different symbols may run concurrently on
// the same engine.
type Engine struct {
	client *llm.Client
	cfg    Config
}

func New(client *llm.Client, cfg Config) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("debate config: %s needs a chat client", cfg.Name)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{client: client, cfg: cfg}, nil
}

// Run executes Rounds full rotations followed by the judge. Turns are
// strictly sequential; each speaker sees the whole transcript so far.
// The only error Run returns is context cancellation; every other
// failure degrades into abstained turns or an abstained verdict.
func (e *Engine) Run(ctx context.Context, topic string) (*models.DebateTranscript, error) {
	transcript := &models.DebateTranscript{Name: e.cfg.Name, Rounds: e.cfg.Rounds}

	for round := 1; round <= e.cfg.Rounds; round++ {
		for _, role := range e.cfg.Roles {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%s debate cancelled at round %d: %w", e.cfg.Name, round, err)
			}
			content, abstained := e.speak(ctx, role, topic, transcript)
			transcript.Turns = append(transcript.Turns, models.DebateTurn{
				Role:      role.Name,
				Round:     round,
				Content:   content,
				Abstained: abstained,
				CreatedAt: time.Now().UTC(),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s debate cancelled before judgement: %w", e.cfg.Name, err)
	}
	transcript.Verdict = e.judge(ctx, topic, transcript)
	log.Printf("[Debate] %s closed: %d turns, decision %s (abstained=%v)",
		e.cfg.Name, len(transcript.Turns), transcript.Verdict.Decision, transcript.Verdict.Abstained)
	return transcript, nil
}

func (e *Engine) speak(ctx context.Context, role Role, topic string, tr *models.DebateTranscript) (string, bool) {
	messages := []*schema.Message{
		schema.SystemMessage(role.Prompt),
		schema.UserMessage(turnInput(topic, tr, role.Name)),
	}
	content, err := e.client.Generate(ctx, messages)
	if err != nil {
		log.Printf("[Debate] %s %s turn failed, abstaining: %v", e.cfg.Name, role.Name, err)
		return abstainPlaceholder, true
	}
	return strings.TrimSpace(content), false
}

func turnInput(topic string, tr *models.DebateTranscript, roleName string) string {
	var sb strings.Builder
	sb.WriteString(topic)
	sb.WriteString("\n\n## Debate so far\n")
	if len(tr.Turns) == 0 {
		sb.WriteString("(you open the debate)\n")
	}
	for _, turn := range tr.Turns {
		fmt.Fprintf(&sb, "%s: %s\n\n", turn.Role, turn.Content)
	}
	fmt.Fprintf(&sb, "You are %s. Make your next argument. Engage the strongest point raised against your stance; do not repeat yourself.", roleName)
	return sb.String()
}

type judgeReply struct {
	Decision   string  `json:"decision"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// judge synthesizes the verdict. Any failure on the way to a
// well-formed ruling degrades to an abstained HOLD, so a malformed
// judge reply can never produce a trade.
func (e *Engine) judge(ctx context.Context, topic string, tr *models.DebateTranscript) *models.Verdict {
	messages := []*schema.Message{
		schema.SystemMessage(e.cfg.Judge.Prompt),
		schema.UserMessage(judgeInput(topic, tr)),
	}
	content, err := e.client.Generate(ctx, messages)
	if err != nil {
		log.Printf("[Debate] %s judge failed, abstaining: %v", e.cfg.Name, err)
		return &models.Verdict{
			Decision:  models.DecisionHold,
			Rationale: "judge unavailable: " + err.Error(),
			Abstained: true,
		}
	}

	var reply judgeReply
	if err := llm.DecodeJSON(content, &reply); err != nil {
		log.Printf("[Debate] %s judge reply unparseable, abstaining: %v", e.cfg.Name, err)
		return &models.Verdict{
			Decision:  models.DecisionHold,
			Rationale: "judge reply unparseable",
			Abstained: true,
		}
	}

	decision, ok := models.ParseDecision(reply.Decision)
	verdict := &models.Verdict{
		Decision:   decision,
		Rationale:  strings.TrimSpace(reply.Rationale),
		Confidence: clamp01(reply.Confidence),
	}
	if !ok {
		log.Printf("[Debate] %s judge returned unknown decision %q, abstaining", e.cfg.Name, reply.Decision)
		verdict.Abstained = true
	}
	return verdict
}

func judgeInput(topic string, tr *models.DebateTranscript) string {
	var sb strings.Builder
	sb.WriteString(topic)
	sb.WriteString("\n\n## Full transcript\n")
	for _, turn := range tr.Turns {
		fmt.Fprintf(&sb, "[round %d] %s: %s\n\n", turn.Round, turn.Role, turn.Content)
	}
	sb.WriteString(`Weigh the debate and rule. Reply with only a JSON object:
{"decision": "BUY" or "SELL" or "HOLD", "rationale": "one paragraph", "confidence": 0.0 to 1.0}`)
	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
