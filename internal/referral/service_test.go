package referral_test

import (
	"context"
	"errors"
	"testing"

	"quest-server/internal/models"
	"quest-server/internal/referral"
	"quest-server/internal/referral/mocks"
	"quest-server/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	testCode   = "PEAR-TEST"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakePool struct {
	database.DBTX
	tx *fakeTx
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.tx = &fakeTx{}
	return p.tx, nil
}

func newService(repo *mocks.Repository) (*referral.Service, *fakePool) {
	pool := &fakePool{}
	return referral.NewService(pool, repo, zap.NewNop()), pool
}

func TestService_Verify_GrantsCodes(t *testing.T) {
	repo := new(mocks.Repository)
	svc, pool := newService(repo)
	ctx := context.Background()

	repo.On("HasRedeemed", ctx, mock.Anything, testWallet).Return(false, nil).Once()
	repo.On("LockUnused", ctx, mock.Anything, testCode).Return(int64(7), nil).Once()
	repo.On("MarkUsed", ctx, mock.Anything, int64(7), testWallet).Return(nil).Once()
	repo.On("Insert", ctx, mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(c *string) bool {
		return c != nil && *c == testWallet
	}), false).Return(nil).Times(referral.CodesPerRedemption)

	codes, err := svc.Verify(ctx, " pear-test ", "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Len(t, codes, referral.CodesPerRedemption)
	assert.True(t, pool.tx.committed)
	repo.AssertExpectations(t)
}

func TestService_Verify_InvalidCode(t *testing.T) {
	repo := new(mocks.Repository)
	svc, pool := newService(repo)
	ctx := context.Background()

	repo.On("HasRedeemed", ctx, mock.Anything, testWallet).Return(false, nil)
	repo.On("LockUnused", ctx, mock.Anything, testCode).Return(int64(0), models.ErrNotFound)

	_, err := svc.Verify(ctx, testCode, testWallet)
	assert.ErrorIs(t, err, models.ErrInvalidInviteCode)
	assert.Equal(t, "Invalid or already used invite code", err.Error())
	assert.True(t, pool.tx.rolledBack)
	repo.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Verify_AlreadyRedeemed(t *testing.T) {
	repo := new(mocks.Repository)
	svc, _ := newService(repo)
	ctx := context.Background()

	repo.On("HasRedeemed", ctx, mock.Anything, testWallet).Return(true, nil)

	_, err := svc.Verify(ctx, testCode, testWallet)
	assert.ErrorIs(t, err, models.ErrAlreadyRedeemed)
	repo.AssertNotCalled(t, "LockUnused", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Verify_InputValidation(t *testing.T) {
	repo := new(mocks.Repository)
	svc, _ := newService(repo)

	_, err := svc.Verify(context.Background(), "   ", testWallet)
	assert.ErrorIs(t, err, models.ErrEmptyInviteCode)

	_, err = svc.Verify(context.Background(), testCode, "not-a-wallet")
	assert.ErrorIs(t, err, models.ErrInvalidWallet)
	repo.AssertExpectations(t)
}

func TestService_Verify_RetriesDuplicateCodes(t *testing.T) {
	repo := new(mocks.Repository)
	svc, _ := newService(repo)
	ctx := context.Background()

	repo.On("HasRedeemed", ctx, mock.Anything, testWallet).Return(false, nil)
	repo.On("LockUnused", ctx, mock.Anything, testCode).Return(int64(1), nil)
	repo.On("MarkUsed", ctx, mock.Anything, int64(1), testWallet).Return(nil)
	repo.On("Insert", ctx, mock.Anything, mock.Anything, mock.Anything, false).Return(referral.ErrCodeExists).Once()
	repo.On("Insert", ctx, mock.Anything, mock.Anything, mock.Anything, false).Return(nil)

	codes, err := svc.Verify(ctx, testCode, testWallet)
	require.NoError(t, err)
	assert.Len(t, codes, referral.CodesPerRedemption)
	repo.AssertNumberOfCalls(t, "Insert", referral.CodesPerRedemption+1)
}

func TestService_GenerateInitial_TopsUp(t *testing.T) {
	repo := new(mocks.Repository)
	svc, _ := newService(repo)
	ctx := context.Background()

	repo.On("CountInitialUnused", ctx, mock.Anything).Return(97, nil)
	repo.On("Insert", ctx, mock.Anything, mock.Anything, (*string)(nil), true).Return(nil)

	created, err := svc.GenerateInitial(ctx, referral.DefaultInitialCodes)
	require.NoError(t, err)
	assert.Len(t, created, 3)
}

func TestService_GenerateInitial_NothingToDo(t *testing.T) {
	repo := new(mocks.Repository)
	svc, _ := newService(repo)
	ctx := context.Background()

	repo.On("CountInitialUnused", ctx, mock.Anything).Return(150, nil)

	created, err := svc.GenerateInitial(ctx, referral.DefaultInitialCodes)
	require.NoError(t, err)
	assert.Empty(t, created)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLocalGate_MapsRejections(t *testing.T) {
	repo := new(mocks.Repository)
	svc, _ := newService(repo)
	gate := referral.NewLocalGate(svc)
	ctx := context.Background()

	repo.On("HasRedeemed", ctx, mock.Anything, testWallet).Return(true, nil)

	_, err := gate.Verify(ctx, testWallet, testCode)
	rej, ok := referral.IsRejection(err)
	require.True(t, ok)
	assert.True(t, rej.AlreadyRedeemed)

	repo.On("ListByCreator", ctx, mock.Anything, testWallet).Return([]referral.InviteCode{{Code: "PEAR-AAAA"}, {Code: "PEAR-BBBB"}}, nil)
	codes, err := gate.Codes(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, []string{"PEAR-AAAA", "PEAR-BBBB"}, codes)
}

func TestLocalGate_PassesThroughBackendErrors(t *testing.T) {
	repo := new(mocks.Repository)
	svc, _ := newService(repo)
	gate := referral.NewLocalGate(svc)
	ctx := context.Background()

	boom := errors.New("connection reset")
	repo.On("HasRedeemed", ctx, mock.Anything, testWallet).Return(false, boom)

	_, err := gate.Verify(ctx, testWallet, testCode)
	_, isRej := referral.IsRejection(err)
	assert.False(t, isRej)
	assert.ErrorIs(t, err, boom)
}
