package mocks

import (
	"context"

	"quest-server/internal/narration"

	"github.com/stretchr/testify/mock"
)

// Mock narration.Provider
type Provider struct {
	mock.Mock
}

func (m *Provider) Name() string {
	return "mock"
}
func (m *Provider) Generate(ctx context.Context, req narration.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
