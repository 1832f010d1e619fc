package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quest-server/internal/auth"
	"quest-server/internal/auth/mocks"
	"quest-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*auth.Service, *mocks.UserRepository) {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	repo := new(mocks.UserRepository)
	return auth.NewService(repo, tokens, zap.NewNop()), repo
}

func TestService_Login_NormalizesWallet(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	const lower = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

	repo.On("Upsert", ctx, lower, mock.AnythingOfType("string")).
		Return(&auth.WalletUser{ID: 1, WalletAddress: lower, IsActive: true}, nil).Once()

	res, err := svc.Login(ctx, " 0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD ")
	require.NoError(t, err)
	assert.Equal(t, lower, res.WalletAddress)

	got, err := svc.Tokens().ParseToken(res.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, lower, got)
	repo.AssertExpectations(t)
}

func TestService_Login_InvalidWallet(t *testing.T) {
	svc, repo := newService(t)

	_, err := svc.Login(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrInvalidWallet)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Login_RepositoryError(t *testing.T) {
	svc, repo := newService(t)
	boom := errors.New("db down")
	repo.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	_, err := svc.Login(context.Background(), "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	assert.ErrorIs(t, err, boom)
}
