package mocks

import (
	"context"

	"quest-server/internal/auth"

	"github.com/stretchr/testify/mock"
)

// Mock auth.UserRepository
type UserRepository struct {
	mock.Mock
}

var _ auth.UserRepository = (*UserRepository)(nil)

func (m *UserRepository) Upsert(ctx context.Context, wallet, token string) (*auth.WalletUser, error) {
	args := m.Called(ctx, wallet, token)
	u, _ := args.Get(0).(*auth.WalletUser)
	return u, args.Error(1)
}
func (m *UserRepository) Deactivate(ctx context.Context, wallet string) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}
