package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 15 * time.Second
)

// Client wraps a chat model with the per-turn timeout and retry policy
// shared by every agent in the pipeline.
type Client struct {
	chatModel   model.BaseChatModel
	turnTimeout time.Duration
	maxRetries  int
	retryBase   time.Duration
	retryMax    time.Duration
}

func NewClient(chatModel model.BaseChatModel, turnTimeout time.Duration, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		chatModel:   chatModel,
		turnTimeout: turnTimeout,
		maxRetries:  maxRetries,
		retryBase:   retryBaseDelay,
		retryMax:    retryMaxDelay,
	}
}

// Generate runs one completion. Each attempt gets its own turn timeout,
// and transient failures back off before retrying. The parent context
// still bounds the whole call, so a stage deadline cuts retries short.
func (c *Client) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	var lastErr error

	delay := c.retryBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("llm generate: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.retryMax {
				delay = c.retryMax
			}
		}

		content, err := c.generateOnce(ctx, messages)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("llm generate failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, messages []*schema.Message) (string, error) {
	callCtx := ctx
	if c.turnTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.turnTimeout)
		defer cancel()
	}

	msg, err := c.chatModel.Generate(callCtx, messages)
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("model returned empty completion")
	}
	return msg.Content, nil
}
