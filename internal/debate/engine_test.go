package debate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dyike/tradecycle/consts"
	"github.com/dyike/tradecycle/internal/llm"
	"github.com/dyike/tradecycle/internal/llm/llmtest"
	"github.com/dyike/tradecycle/internal/models"
)

func testClient(m *llmtest.ScriptedModel) *llm.Client {
	return llm.NewClient(m, time.Second, 0)
}

func TestRunSequenceAndVerdict(t *testing.T) {
	m := llmtest.Text(
		"bull opening",
		"bear opening",
		"bull rebuttal",
		"bear rebuttal",
		`{"decision": "BUY", "rationale": "bull case held up", "confidence": 0.72}`,
	)
	eng, err := NewResearch(testClient(m), 2)
	if err != nil {
		t.Fatalf("NewResearch: %v", err)
	}

	tr, err := eng.Run(context.Background(), "Symbol: AAPL")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(tr.Turns) != 4 {
		t.Fatalf("turns = %d, want 4", len(tr.Turns))
	}
	wantRoles := []string{consts.BullResearcher, consts.BearResearcher, consts.BullResearcher, consts.BearResearcher}
	wantRounds := []int{1, 1, 2, 2}
	for i, turn := range tr.Turns {
		if turn.Role != wantRoles[i] || turn.Round != wantRounds[i] {
			t.Errorf("turn %d = %s round %d, want %s round %d",
				i, turn.Role, turn.Round, wantRoles[i], wantRounds[i])
		}
	}

	if tr.Verdict == nil || tr.Verdict.Decision != models.DecisionBuy || tr.Verdict.Abstained {
		t.Fatalf("verdict = %+v, want non-abstained BUY", tr.Verdict)
	}
	if tr.Verdict.Confidence != 0.72 {
		t.Errorf("confidence = %v, want 0.72", tr.Verdict.Confidence)
	}
	if m.Calls() != 5 {
		t.Errorf("model calls = %d, want 5", m.Calls())
	}

	inputs := m.Inputs()
	judgeUser := inputs[len(inputs)-1][1].Content
	if !strings.Contains(judgeUser, "bull opening") || !strings.Contains(judgeUser, "bear rebuttal") {
		t.Error("judge input does not carry the full transcript")
	}
}

func TestTurnFailureAbstainsAndAdvances(t *testing.T) {
	m := llmtest.New(
		llmtest.Reply{Content: "bull opening"},
		llmtest.Reply{Err: errors.New("model offline")},
		llmtest.Reply{Content: `{"decision": "HOLD", "rationale": "evidence thin", "confidence": 0.4}`},
	)
	eng, err := NewResearch(testClient(m), 1)
	if err != nil {
		t.Fatalf("NewResearch: %v", err)
	}

	tr, err := eng.Run(context.Background(), "Symbol: AAPL")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tr.Turns) != 2 {
		t.Fatalf("turns = %d, want the full rotation despite the failure", len(tr.Turns))
	}
	if !tr.Turns[1].Abstained || tr.Turns[1].Content != abstainPlaceholder {
		t.Errorf("failed turn = %+v, want abstain placeholder", tr.Turns[1])
	}
	if tr.Verdict.Decision != models.DecisionHold || tr.Verdict.Abstained {
		t.Errorf("verdict = %+v, want non-abstained HOLD", tr.Verdict)
	}
}

func TestJudgeFailureAbstains(t *testing.T) {
	m := llmtest.New(
		llmtest.Reply{Content: "bull opening"},
		llmtest.Reply{Content: "bear opening"},
		llmtest.Reply{Err: errors.New("model offline")},
	)
	eng, err := NewResearch(testClient(m), 1)
	if err != nil {
		t.Fatalf("NewResearch: %v", err)
	}

	tr, err := eng.Run(context.Background(), "Symbol: AAPL")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Verdict == nil || tr.Verdict.Decision != models.DecisionHold || !tr.Verdict.Abstained {
		t.Fatalf("verdict = %+v, want abstained HOLD", tr.Verdict)
	}
}

func TestJudgeUnparseableAbstains(t *testing.T) {
	m := llmtest.Text(
		"bull opening",
		"bear opening",
		"we should probably buy some",
	)
	eng, err := NewResearch(testClient(m), 1)
	if err != nil {
		t.Fatalf("NewResearch: %v", err)
	}

	tr, err := eng.Run(context.Background(), "Symbol: AAPL")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !tr.Verdict.Abstained || tr.Verdict.Decision != models.DecisionHold {
		t.Fatalf("verdict = %+v, want abstained HOLD", tr.Verdict)
	}
}

func TestJudgeUnknownDecisionAbstains(t *testing.T) {
	m := llmtest.Text(
		"bull opening",
		"bear opening",
		`{"decision": "ACCUMULATE", "rationale": "creative", "confidence": 1.5}`,
	)
	eng, err := NewResearch(testClient(m), 1)
	if err != nil {
		t.Fatalf("NewResearch: %v", err)
	}

	tr, err := eng.Run(context.Background(), "Symbol: AAPL")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !tr.Verdict.Abstained || tr.Verdict.Decision != models.DecisionHold {
		t.Fatalf("verdict = %+v, want abstained HOLD", tr.Verdict)
	}
	if tr.Verdict.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", tr.Verdict.Confidence)
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	m := llmtest.Text("never used")
	eng, err := NewResearch(testClient(m), 1)
	if err != nil {
		t.Fatalf("NewResearch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Run(ctx, "Symbol: AAPL"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run on cancelled context: error = %v, want context.Canceled", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	client := testClient(llmtest.Text())

	cases := []struct {
		name string
		cfg  Config
	}{
		{"no roles", Config{Name: "x", Judge: Role{Name: "j", Prompt: "p"}, Rounds: 1}},
		{"no judge", Config{Name: "x", Roles: []Role{{Name: "a", Prompt: "p"}}, Rounds: 1}},
		{"zero rounds", Config{Name: "x", Roles: []Role{{Name: "a", Prompt: "p"}}, Judge: Role{Name: "j", Prompt: "p"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(client, tc.cfg); err == nil {
				t.Fatal("New accepted an invalid config")
			}
		})
	}

	if _, err := New(nil, Config{Name: "x", Roles: []Role{{Name: "a", Prompt: "p"}}, Judge: Role{Name: "j", Prompt: "p"}, Rounds: 1}); err == nil {
		t.Fatal("New accepted a nil client")
	}
}

func TestRiskRotation(t *testing.T) {
	m := llmtest.Text(
		"take the trade",
		"too much drawdown already",
		"aggressive side has the data",
		`{"decision": "BUY", "rationale": "risk acceptable at this size", "confidence": 0.6}`,
	)
	eng, err := NewRisk(testClient(m), 1)
	if err != nil {
		t.Fatalf("NewRisk: %v", err)
	}

	tr, err := eng.Run(context.Background(), "Proposed: BUY 100 AAPL")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantRoles := []string{consts.AggressiveAnalyst, consts.ConservativeAnalyst, consts.NeutralAnalyst}
	if len(tr.Turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(tr.Turns))
	}
	for i, turn := range tr.Turns {
		if turn.Role != wantRoles[i] {
			t.Errorf("turn %d role = %s, want %s", i, turn.Role, wantRoles[i])
		}
	}
	if tr.Verdict.Decision != models.DecisionBuy {
		t.Fatalf("verdict = %+v", tr.Verdict)
	}
}

func TestAssess(t *testing.T) {
	cases := []struct {
		name     string
		verdict  *models.Verdict
		proposed models.Decision
		approved bool
	}{
		{"confirmed buy", &models.Verdict{Decision: models.DecisionBuy}, models.DecisionBuy, true},
		{"confirmed sell", &models.Verdict{Decision: models.DecisionSell}, models.DecisionSell, true},
		{"hold rejects", &models.Verdict{Decision: models.DecisionHold}, models.DecisionBuy, false},
		{"direction flip rejects", &models.Verdict{Decision: models.DecisionSell}, models.DecisionBuy, false},
		{"abstained rejects", &models.Verdict{Decision: models.DecisionBuy, Abstained: true}, models.DecisionBuy, false},
		{"hold proposal never approves", &models.Verdict{Decision: models.DecisionHold}, models.DecisionHold, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Assess(tc.verdict, tc.proposed)
			if got.Approved != tc.approved {
				t.Errorf("Assess().Approved = %v, want %v", got.Approved, tc.approved)
			}
			if got.Abstained != tc.verdict.Abstained {
				t.Errorf("Assess().Abstained = %v, want %v", got.Abstained, tc.verdict.Abstained)
			}
		})
	}
}
