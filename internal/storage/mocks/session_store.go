package mocks

import (
	"context"

	"quest-server/internal/models"

	"github.com/stretchr/testify/mock"
)

// Mock SessionStore
type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Load(ctx context.Context, wallet string) (*models.SessionRecord, error) {
	args := m.Called(ctx, wallet)
	rec, _ := args.Get(0).(*models.SessionRecord)
	return rec, args.Error(1)
}
func (m *SessionStore) Save(ctx context.Context, wallet string, rec *models.SessionRecord) error {
	args := m.Called(ctx, wallet, rec)
	return args.Error(0)
}
func (m *SessionStore) Delete(ctx context.Context, wallet string) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}
