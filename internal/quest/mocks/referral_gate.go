package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Mock quest.ReferralGate
type ReferralGate struct {
	mock.Mock
}

func (m *ReferralGate) Status(ctx context.Context, wallet string) (bool, error) {
	args := m.Called(ctx, wallet)
	return args.Bool(0), args.Error(1)
}
func (m *ReferralGate) Verify(ctx context.Context, wallet, code string) ([]string, error) {
	args := m.Called(ctx, wallet, code)
	codes, _ := args.Get(0).([]string)
	return codes, args.Error(1)
}
func (m *ReferralGate) Codes(ctx context.Context, wallet string) ([]string, error) {
	args := m.Called(ctx, wallet)
	codes, _ := args.Get(0).([]string)
	return codes, args.Error(1)
}
