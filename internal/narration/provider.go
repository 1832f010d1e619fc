package narration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider генерирует текст по системному и пользовательскому промпту.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Config настройки провайдера модели.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	OllamaURL string
	Timeout   time.Duration
}

// HasUsableKey проверяет, что ключ похож на настоящий.
func HasUsableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && len(key) > 10
}

// NewProvider создает провайдера по конфигурации.
// Без пригодного ключа для openai возвращается офлайн-провайдер.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "openrouter":
		if !HasUsableKey(cfg.APIKey) {
			logger.Warn("Using offline narration due to missing or invalid API key")
			return NewOfflineProvider(), nil
		}
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg)
	case "offline", "":
		return NewOfflineProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
