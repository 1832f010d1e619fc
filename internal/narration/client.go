package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Purpose тип запроса к модели.
type Purpose string

const (
	PurposeStory   Purpose = "story"
	PurposeChoices Purpose = "choices"
	PurposeHint    Purpose = "hint"
)

// Source откуда взят текст ответа.
type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceOffline  Source = "offline"
	SourceFallback Source = "fallback"
)

// HoldingLine ответ по умолчанию, когда модель недоступна и запасного текста нет.
const HoldingLine = "The path ahead is shrouded in mist. What would you like to do next?"

// DefaultCacheSize размер LRU-кэша ответов по умолчанию.
const DefaultCacheSize = 256

// ErrGenerationFailed возвращается, когда генерация вариантов выбора не удалась.
// Для сюжета и подсказок ошибка не поднимается: клиент отдает запасной текст.
var ErrGenerationFailed = errors.New("narration generation failed")

var errEmptyReply = errors.New("empty reply")

// Request запрос к модели.
type Request struct {
	Purpose      Purpose
	SystemPrompt string
	UserPrompt   string
}

// Reply ответ клиента. Degraded означает, что текст не получен от модели,
// а подставлен из запасного кэша или является дежурной фразой.
type Reply struct {
	Text     string
	Source   Source
	Degraded bool
}

type cacheKey struct {
	system string
	user   string
}

// Options настройки клиента.
type Options struct {
	CacheSize int
	Timeout   time.Duration
}

// Client обращается к модели с кэшированием ответов и деградацией при сбоях.
type Client struct {
	provider  Provider
	offline   bool
	timeout   time.Duration
	cache     *lru.Cache[cacheKey, string]
	fallbacks *lru.Cache[string, string]
	logger    *zap.Logger
}

// NewClient создает клиента. provider == nil включает офлайн-режим.
func NewClient(provider Provider, opts Options, logger *zap.Logger) (*Client, error) {
	if provider == nil {
		provider = NewOfflineProvider()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("create narration cache: %w", err)
	}
	fallbacks, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create fallback cache: %w", err)
	}
	_, offline := provider.(*OfflineProvider)

	log := logger.Named("NarrationClient")
	log.Info("Narration client created",
		zap.String("provider", provider.Name()),
		zap.Bool("offline", offline),
		zap.Int("cacheSize", size),
	)
	return &Client{
		provider:  provider,
		offline:   offline,
		timeout:   opts.Timeout,
		cache:     cache,
		fallbacks: fallbacks,
		logger:    log,
	}, nil
}

// Offline сообщает, работает ли клиент без модели.
func (c *Client) Offline() bool { return c.offline }

// SetFallback задает запасной ответ для системного промпта.
func (c *Client) SetFallback(systemPrompt, text string) {
	c.fallbacks.Add(systemPrompt, text)
}

// Complete возвращает текст для пары (SystemPrompt, UserPrompt).
// Повторный запрос с той же парой отдается из кэша без обращения к модели.
func (c *Client) Complete(ctx context.Context, req Request) (Reply, error) {
	key := cacheKey{system: req.SystemPrompt, user: req.UserPrompt}
	if text, ok := c.cache.Get(key); ok {
		narrationCacheHits.WithLabelValues(string(req.Purpose)).Inc()
		return Reply{Text: text, Source: SourceCache}, nil
	}

	if c.offline {
		text, _ := c.provider.Generate(ctx, req)
		c.cache.Add(key, text)
		narrationRequests.WithLabelValues(string(req.Purpose), string(SourceOffline)).Inc()
		return Reply{Text: text, Source: SourceOffline}, nil
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.provider.Generate(callCtx, req)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errEmptyReply
	}
	narrationDuration.WithLabelValues(c.provider.Name(), string(req.Purpose)).Observe(time.Since(start).Seconds())

	if err != nil {
		narrationRequests.WithLabelValues(string(req.Purpose), "error").Inc()
		c.logger.Warn("Narration request failed",
			zap.String("provider", c.provider.Name()),
			zap.String("purpose", string(req.Purpose)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		if req.Purpose == PurposeChoices {
			return Reply{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		return Reply{Text: c.fallbackFor(req.SystemPrompt), Source: SourceFallback, Degraded: true}, nil
	}

	c.cache.Add(key, text)
	narrationRequests.WithLabelValues(string(req.Purpose), string(SourceLive)).Inc()
	return Reply{Text: text, Source: SourceLive}, nil
}

func (c *Client) fallbackFor(systemPrompt string) string {
	if text, ok := c.fallbacks.Get(systemPrompt); ok {
		return text
	}
	c.fallbacks.Add(systemPrompt, HoldingLine)
	return HoldingLine
}
