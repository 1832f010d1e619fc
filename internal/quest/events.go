package quest

import (
	"context"
	"time"

	"quest-server/internal/models"
)

// EventType тип события сессии.
type EventType string

const (
	EventNarration        EventType = "narration"
	EventChoices          EventType = "choices"
	EventNotice           EventType = "notice"
	EventWarning          EventType = "warning"
	EventTranscript       EventType = "transcript_replayed"
	EventReferralVerified EventType = "referral_verified"
	EventPuzzleTriggered  EventType = "puzzle_triggered"
	EventPuzzleSolved     EventType = "puzzle_solved"
	EventHint             EventType = "hint"
	EventTokensDeducted   EventType = "tokens_deducted"
	EventStateChanged     EventType = "state_changed"
)

// Event событие, которое движок отдает слою представления.
type Event struct {
	Type    EventType              `json:"type"`
	Wallet  string                 `json:"wallet"`
	At      time.Time              `json:"at"`
	Text    string                 `json:"text,omitempty"`
	Choices []models.Choice        `json:"choices,omitempty"`
	History []models.HistoryEntry  `json:"history,omitempty"`
	State   SessionState           `json:"state,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// EventSink получатель событий. Ошибки получателя не влияют на операцию.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc адаптер функции к EventSink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }
