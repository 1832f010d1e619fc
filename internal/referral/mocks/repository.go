package mocks

import (
	"context"

	"quest-server/internal/referral"
	"quest-server/pkg/database"

	"github.com/stretchr/testify/mock"
)

// Mock referral.Repository
type Repository struct {
	mock.Mock
}

var _ referral.Repository = (*Repository)(nil)

func (m *Repository) HasRedeemed(ctx context.Context, querier database.DBTX, wallet string) (bool, error) {
	args := m.Called(ctx, querier, wallet)
	return args.Bool(0), args.Error(1)
}
func (m *Repository) LockUnused(ctx context.Context, querier database.DBTX, code string) (int64, error) {
	args := m.Called(ctx, querier, code)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}
func (m *Repository) MarkUsed(ctx context.Context, querier database.DBTX, id int64, wallet string) error {
	args := m.Called(ctx, querier, id, wallet)
	return args.Error(0)
}
func (m *Repository) Insert(ctx context.Context, querier database.DBTX, code string, creator *string, initial bool) error {
	args := m.Called(ctx, querier, code, creator, initial)
	return args.Error(0)
}
func (m *Repository) ListByCreator(ctx context.Context, querier database.DBTX, wallet string) ([]referral.InviteCode, error) {
	args := m.Called(ctx, querier, wallet)
	codes, _ := args.Get(0).([]referral.InviteCode)
	return codes, args.Error(1)
}
func (m *Repository) CountInitialUnused(ctx context.Context, querier database.DBTX) (int, error) {
	args := m.Called(ctx, querier)
	return args.Int(0), args.Error(1)
}
