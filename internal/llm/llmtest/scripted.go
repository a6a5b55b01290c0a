// Package llmtest provides a scripted chat model so the decision pipeline
// can run in tests without a provider.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrExhausted is returned once a scripted model runs out of replies.
var ErrExhausted = errors.New("llmtest: no scripted replies left")

// Reply is a single canned completion. Err, when set, is returned
// instead of the content.
type Reply struct {
	Content string
	Err     error
}

// ScriptedModel replays canned replies in order. It satisfies
// model.BaseChatModel so it can stand in anywhere the pipeline takes a
// chat model.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []Reply
	inputs  [][]*schema.Message
	calls   int
}

func New(replies ...Reply) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Text builds a scripted model from plain completions.
func Text(contents ...string) *ScriptedModel {
	replies := make([]Reply, 0, len(contents))
	for _, c := range contents {
		replies = append(replies, Reply{Content: c})
	}
	return New(replies...)
}

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, input)
	if m.calls >= len(m.replies) {
		m.calls++
		return nil, ErrExhausted
	}
	reply := m.replies[m.calls]
	m.calls++

	if reply.Err != nil {
		return nil, reply.Err
	}
	return schema.AssistantMessage(reply.Content, nil), nil
}

// Stream exists for interface completeness; the pipeline only generates.
func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("llmtest: streaming not supported")
}

// Calls reports how many times Generate has been invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Inputs returns the message lists Generate received, in call order.
func (m *ScriptedModel) Inputs() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.inputs))
	copy(out, m.inputs)
	return out
}
