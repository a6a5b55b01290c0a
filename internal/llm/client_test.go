package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecycle/internal/llm/llmtest"
)

func fastClient(m *llmtest.ScriptedModel, maxRetries int) *Client {
	c := NewClient(m, time.Second, maxRetries)
	c.retryBase = time.Millisecond
	c.retryMax = 4 * time.Millisecond
	return c
}

func TestClientGenerate(t *testing.T) {
	scripted := llmtest.Text("the completion")
	c := fastClient(scripted, 2)

	out, err := c.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "the completion" {
		t.Errorf("unexpected content: %s", out)
	}
	if scripted.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", scripted.Calls())
	}
}

func TestClientGenerateRetriesTransientFailure(t *testing.T) {
	scripted := llmtest.New(
		llmtest.Reply{Err: errors.New("rate limited")},
		llmtest.Reply{Content: "recovered"},
	)
	c := fastClient(scripted, 2)

	out, err := c.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "recovered" {
		t.Errorf("unexpected content: %s", out)
	}
	if scripted.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", scripted.Calls())
	}
}

func TestClientGenerateExhaustsRetries(t *testing.T) {
	failure := errors.New("provider down")
	scripted := llmtest.New(
		llmtest.Reply{Err: failure},
		llmtest.Reply{Err: failure},
		llmtest.Reply{Err: failure},
	)
	c := fastClient(scripted, 2)

	_, err := c.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, failure) {
		t.Errorf("last error should be wrapped, got %v", err)
	}
	if scripted.Calls() != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", scripted.Calls())
	}
}

func TestClientGenerateEmptyCompletion(t *testing.T) {
	scripted := llmtest.Text("  \n ")
	c := fastClient(scripted, 0)

	_, err := c.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err == nil {
		t.Fatal("expected error for empty completion")
	}
	if !strings.Contains(err.Error(), "empty completion") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClientGenerateStopsOnCancelledContext(t *testing.T) {
	scripted := llmtest.New(
		llmtest.Reply{Err: errors.New("transient")},
		llmtest.Reply{Content: "never reached"},
	)
	c := fastClient(scripted, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, []*schema.Message{schema.UserMessage("hi")})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if scripted.Calls() > 1 {
		t.Errorf("expected at most 1 attempt on cancelled context, got %d", scripted.Calls())
	}
}
