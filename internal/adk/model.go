package adk

import (
	"context"
	"fmt"
	"strings"

	"github.com/run-bigpig/stockdesk/internal/adk/openai"
	"github.com/run-bigpig/stockdesk/internal/models"

	go_openai "github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// modelBuilder 按提供商创建 adk 模型
type modelBuilder func(ctx context.Context, ai models.AIConfig) (model.LLM, error)

var modelBuilders = map[models.AIProvider]modelBuilder{
	models.AIProviderOpenAI: newOpenAIModel,
	models.AIProviderGemini: newGeminiModel,
}

// NewModel 创建分析与代码识别共用的模型。
// 密钥与地址由 config.Validate / config.ValidateCredentials 预先校验，这里只负责构造。
func NewModel(ctx context.Context, ai models.AIConfig) (model.LLM, error) {
	provider := ai.Provider
	if provider == "" {
		provider = models.AIProviderOpenAI
	}
	build, ok := modelBuilders[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	llm, err := build(ctx, ai)
	if err != nil {
		return nil, fmt.Errorf("%s model %q: %w", provider, ai.ModelName, err)
	}
	return llm, nil
}

func newOpenAIModel(_ context.Context, ai models.AIConfig) (model.LLM, error) {
	cfg := go_openai.DefaultConfig(ai.APIKey)
	if ai.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(ai.BaseURL, "/")
	}
	return openai.NewOpenAIModel(ai.ModelName, cfg, ai.NoSystemRole), nil
}

func newGeminiModel(ctx context.Context, ai models.AIConfig) (model.LLM, error) {
	cc := &genai.ClientConfig{APIKey: ai.APIKey, Backend: genai.BackendGeminiAPI}
	if ai.BaseURL != "" {
		cc.HTTPOptions.BaseURL = ai.BaseURL
	}
	return gemini.NewModel(ctx, ai.ModelName, cc)
}
