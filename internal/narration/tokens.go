package narration

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter оценивает количество токенов в тексте.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateCounter грубая оценка: около четырех байт на токен.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter возвращает счетчик tiktoken для модели, а если словарь недоступен, то EstimateCounter.
func NewTokenCounter(model string, logger *zap.Logger) TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, falling back to estimate", zap.String("model", model), zap.Error(err))
		return EstimateCounter{}
	}
	return &tiktokenCounter{enc: enc}
}
