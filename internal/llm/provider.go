package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/dyike/tradecycle/config"
)

const defaultMaxTokens = 4096

// NewDeepThinkModel builds the model used for debates, strategy
// selection and reflection, where longer reasoning pays off.
func NewDeepThinkModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	return newChatModel(ctx, cfg, cfg.DeepThinkLLM)
}

// NewQuickThinkModel builds the model used for analyst reports and
// memory digests.
func NewQuickThinkModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	return newChatModel(ctx, cfg, cfg.QuickThinkLLM)
}

func newChatModel(ctx context.Context, cfg *config.Config, modelName string) (model.BaseChatModel, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "deepseek":
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("llm provider deepseek: DEEPSEEK_API_KEY not set")
		}
		chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.DeepSeekAPIKey,
			Model:     modelName,
			MaxTokens: defaultMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek model: %w", err)
		}
		return chatModel, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("llm provider openai: OPENAI_API_KEY not set")
		}
		maxTokens := defaultMaxTokens
		modelCfg := &openai.ChatModelConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     modelName,
			MaxTokens: &maxTokens,
		}
		if cfg.BackendURL != "" {
			modelCfg.BaseURL = cfg.BackendURL
		}
		chatModel, err := openai.NewChatModel(ctx, modelCfg)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return chatModel, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.LLMProvider)
	}
}
