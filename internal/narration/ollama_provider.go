package narration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

var _ Provider = (*OllamaProvider)(nil)

// OllamaProvider работает с локальной моделью через нативный API Ollama.
type OllamaProvider struct {
	client *api.Client
	model  string
}

func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(cfg.OllamaURL, "/"), "/v1")
	parsedURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url %q: %w", base, err)
	}
	return &OllamaProvider{
		client: api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (string, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model: p.model,
		Messages: []api.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": defaultTemperature,
			"num_predict": defaultMaxTokens,
		},
	}

	var resp api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if total := resp.PromptEvalCount + resp.EvalCount; total > 0 {
		narrationTokens.WithLabelValues(p.model).Add(float64(total))
	}
	return resp.Message.Content, nil
}
