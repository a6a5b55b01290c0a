package llm

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
)

var debugLoggingOnce sync.Once

type turnStartKey struct{}

// InstallDebugLogging registers a global eino callback handler that
// logs every chat model turn with its duration and token usage.
// Installation is idempotent; the handler stays for the process life.
func InstallDebugLogging() {
	debugLoggingOnce.Do(func() {
		callbacks.AppendGlobalHandlers(newTurnLogger())
	})
}

// newTurnLogger builds the handler. Only chat model runs are logged;
// other component callbacks pass through untouched.
func newTurnLogger() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			if !isChatModelRun(info) {
				return ctx
			}
			if in, ok := input.(*model.CallbackInput); ok && in != nil {
				log.Printf("[LLM] turn start: model=%s messages=%d", runLabel(info), len(in.Messages))
			}
			return context.WithValue(ctx, turnStartKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			if !isChatModelRun(info) {
				return ctx
			}

			elapsed := time.Duration(0)
			if start, ok := ctx.Value(turnStartKey{}).(time.Time); ok {
				elapsed = time.Since(start).Round(time.Millisecond)
			}

			out, ok := output.(*model.CallbackOutput)
			if !ok || out == nil {
				log.Printf("[LLM] turn done: model=%s dur=%s", runLabel(info), elapsed)
				return ctx
			}

			finish := ""
			if out.Message != nil && out.Message.ResponseMeta != nil {
				finish = out.Message.ResponseMeta.FinishReason
			}
			if out.TokenUsage != nil {
				log.Printf("[LLM] turn done: model=%s dur=%s finish=%s tokens=%d+%d",
					runLabel(info), elapsed, finish,
					out.TokenUsage.PromptTokens, out.TokenUsage.CompletionTokens)
			} else {
				log.Printf("[LLM] turn done: model=%s dur=%s finish=%s", runLabel(info), elapsed, finish)
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			if isChatModelRun(info) {
				log.Printf("[LLM] turn error: model=%s err=%v", runLabel(info), err)
			}
			return ctx
		}).
		Build()
}

func isChatModelRun(info *callbacks.RunInfo) bool {
	return info != nil && info.Component == components.ComponentOfChatModel
}

func runLabel(info *callbacks.RunInfo) string {
	if info == nil {
		return "unknown"
	}
	if info.Name != "" {
		return info.Name
	}
	if info.Type != "" {
		return info.Type
	}
	return string(info.Component)
}
