package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quest-server/internal/quest"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultEventsExchange fanout exchange для событий квеста.
	DefaultEventsExchange = "quest_events"
	eventsExchangeType    = "fanout"
)

var _ quest.EventSink = (*RabbitMQEventPublisher)(nil)

// EventMessage тело сообщения в exchange.
type EventMessage struct {
	ID      string                 `json:"id"`
	Type    quest.EventType        `json:"type"`
	Wallet  string                 `json:"walletAddress"`
	At      time.Time              `json:"at"`
	Text    string                 `json:"text,omitempty"`
	Choices interface{}            `json:"choices,omitempty"`
	State   quest.SessionState     `json:"state,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// RabbitMQEventPublisher публикует события квеста в fanout exchange.
// Ошибки публикации логируются и не возвращаются: события не влияют на ход квеста.
type RabbitMQEventPublisher struct {
	mu           sync.Mutex
	ch           *amqp091.Channel
	logger       *zap.Logger
	exchangeName string
}

// NewRabbitMQEventPublisher открывает канал и объявляет exchange.
func NewRabbitMQEventPublisher(conn *amqp091.Connection, exchangeName string, logger *zap.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if exchangeName == "" {
		exchangeName = DefaultEventsExchange
	}
	log := logger.Named("EventPublisher")

	ch, err := conn.Channel()
	if err != nil {
		log.Error("Failed to open a channel for quest events", zap.Error(err))
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName,
		eventsExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error("Failed to declare quest events exchange", zap.String("exchange", exchangeName), zap.Error(err))
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}

	log.Info("Quest events exchange declared", zap.String("exchange", exchangeName), zap.String("type", eventsExchangeType))
	return &RabbitMQEventPublisher{
		ch:           ch,
		logger:       log,
		exchangeName: exchangeName,
	}, nil
}

// Publish отправляет событие. Всегда возвращает nil.
func (p *RabbitMQEventPublisher) Publish(ctx context.Context, ev quest.Event) error {
	msg := EventMessage{
		ID:     uuid.NewString(),
		Type:   ev.Type,
		Wallet: ev.Wallet,
		At:     ev.At,
		Text:   ev.Text,
		State:  ev.State,
		Data:   ev.Data,
	}
	if len(ev.Choices) > 0 {
		msg.Choices = ev.Choices
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("Failed to marshal quest event", zap.String("type", string(ev.Type)), zap.Error(err))
		return nil
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx,
		p.exchangeName, // exchange
		"",             // routing key (не используется для fanout)
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   msg.ID,
			Type:        string(ev.Type),
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		publishFailures.Inc()
		p.logger.Warn("Failed to publish quest event",
			zap.String("type", string(ev.Type)),
			zap.String("wallet", ev.Wallet),
			zap.Error(err),
		)
		return nil
	}

	p.logger.Debug("Quest event published", zap.String("type", string(ev.Type)), zap.String("wallet", ev.Wallet))
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *RabbitMQEventPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
