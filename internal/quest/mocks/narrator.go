package mocks

import (
	"context"

	"quest-server/internal/narration"
	"quest-server/internal/quest"

	"github.com/stretchr/testify/mock"
)

// Mock quest.Narrator
type Narrator struct {
	mock.Mock
}

func (m *Narrator) Complete(ctx context.Context, req narration.Request) (narration.Reply, error) {
	args := m.Called(ctx, req)
	reply, _ := args.Get(0).(narration.Reply)
	return reply, args.Error(1)
}

// Mock quest.EventSink
type EventSink struct {
	mock.Mock
}

func (m *EventSink) Publish(ctx context.Context, ev quest.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
