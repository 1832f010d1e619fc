package mocks

import (
	"context"

	"quest-server/internal/settlement"

	"github.com/stretchr/testify/mock"
)

// Mock settlement.Settler
type Settler struct {
	mock.Mock
}

func (m *Settler) CheckNetwork(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
func (m *Settler) Balance(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *Settler) Deduct(ctx context.Context, amount int64) (settlement.Receipt, error) {
	args := m.Called(ctx, amount)
	receipt, _ := args.Get(0).(settlement.Receipt)
	return receipt, args.Error(1)
}
