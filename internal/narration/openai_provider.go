package narration

import (
	"context"
	"fmt"
	"net/http"

	openaigo "github.com/sashabaranov/go-openai"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2048
)

var _ Provider = (*OpenAIProvider)(nil)

// OpenAIProvider работает с OpenAI-совместимым API (OpenAI, OpenRouter).
type OpenAIProvider struct {
	client *openaigo.Client
	model  string
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAIProvider{
		client: openaigo.NewClientWithConfig(openaiConfig),
		model:  cfg.Model,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model: p.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyReply
	}
	if resp.Usage.TotalTokens > 0 {
		narrationTokens.WithLabelValues(p.model).Add(float64(resp.Usage.TotalTokens))
	}
	return resp.Choices[0].Message.Content, nil
}
