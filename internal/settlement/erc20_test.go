package settlement

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testToken    = "0x1111111111111111111111111111111111111111"
	testTreasury = "0x2222222222222222222222222222222222222222"
	otherWallet  = "0x3333333333333333333333333333333333333333"
)

// fakeChain отвечает на вызовы ERC-20 из памяти. Неиспользуемые методы Backend паникуют.
type fakeChain struct {
	Backend

	mu            sync.Mutex
	abi           abi.ABI
	chainID       int64
	balance       *big.Int
	allowance     *big.Int
	receiptStatus uint64
	sent          []string

	// pending: транзакция принята, но не попадает в блок
	pending          bool
	decimals         uint8
	decimalsFailures int
	onSend           func()
}

func newFakeChain(t *testing.T, tokens int64) *fakeChain {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	return &fakeChain{
		abi:           parsed,
		chainID:       137,
		balance:       tokensToUnits(tokens),
		allowance:     big.NewInt(0),
		receiptStatus: types.ReceiptStatusSuccessful,
		decimals:      18,
	}
}

func tokensToUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(f.chainID), nil }

func (f *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(new(big.Int).Set(f.balance))
	case "allowance":
		return method.Outputs.Pack(new(big.Int).Set(f.allowance))
	case "decimals":
		if f.decimalsFailures > 0 {
			f.decimalsFailures--
			return nil, errors.New("rpc unavailable")
		}
		return method.Outputs.Pack(f.decimals)
	}
	return nil, errors.New("unexpected call " + method.Name)
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 0, nil }

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 60000, nil }

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	method, err := f.abi.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return err
	}
	amount := args[len(args)-1].(*big.Int)
	if f.receiptStatus == types.ReceiptStatusSuccessful {
		f.balance.Sub(f.balance, amount)
	}
	f.sent = append(f.sent, method.Name)
	if f.onSend != nil {
		f.onSend()
	}
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.receiptStatus, TxHash: hash, BlockNumber: big.NewInt(2)}, nil
}

func newTestFactory(t *testing.T, chain *fakeChain) (*ERC20Factory, string) {
	t.Helper()
	return newTestFactoryWithTimeout(t, chain, 0)
}

func newTestFactoryWithTimeout(t *testing.T, chain *fakeChain, timeout time.Duration) (*ERC20Factory, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	f, err := NewERC20Factory(chain, ERC20Config{TokenAddress: testToken, TreasuryAddress: testTreasury, ChainID: 137, Timeout: timeout},
		hex.EncodeToString(crypto.FromECDSA(key)), zap.NewNop())
	require.NoError(t, err)
	return f, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestERC20_CheckNetwork(t *testing.T) {
	chain := newFakeChain(t, 0)
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	ok, err := c.CheckNetwork(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	chain.chainID = 1
	ok, err = c.CheckNetwork(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestERC20_BalanceInWholeTokens(t *testing.T) {
	chain := newFakeChain(t, 250)
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	bal, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(250), bal)
}

func TestERC20_DeductOwnWalletUsesTransfer(t *testing.T) {
	chain := newFakeChain(t, 250)
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	receipt, err := c.Deduct(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(150), receipt.RemainingBalance)
	assert.True(t, strings.HasPrefix(receipt.TxHash, "0x"))
	assert.Equal(t, []string{"transfer"}, chain.sent)
}

func TestERC20_DeductInsufficientBalance(t *testing.T) {
	chain := newFakeChain(t, 99)
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	_, err = c.Deduct(context.Background(), 100)
	assert.Equal(t, "Insufficient balance. You need at least 100 PEAR tokens.", Reason(err))
	assert.Empty(t, chain.sent)
}

func TestERC20_DeductDelegatedNeedsAllowance(t *testing.T) {
	chain := newFakeChain(t, 500)
	f, _ := newTestFactory(t, chain)
	c, err := f.ForWallet(otherWallet)
	require.NoError(t, err)

	_, err = c.Deduct(context.Background(), 100)
	assert.Equal(t, "Insufficient allowance. Approve at least 100 PEAR tokens for spending.", Reason(err))
	assert.Empty(t, chain.sent)

	chain.allowance = tokensToUnits(1000)
	receipt, err := c.Deduct(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(400), receipt.RemainingBalance)
	assert.Equal(t, []string{"transferFrom"}, chain.sent)
}

func TestERC20_RevertedTransfer(t *testing.T) {
	chain := newFakeChain(t, 500)
	chain.receiptStatus = types.ReceiptStatusFailed
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	_, err = c.Deduct(context.Background(), 100)
	assert.Equal(t, "Transaction reverted.", Reason(err))
}

func TestERC20_UnconfirmedTransferIsReportedAsSubmitted(t *testing.T) {
	chain := newFakeChain(t, 250)
	chain.pending = true
	f, operator := newTestFactoryWithTimeout(t, chain, 300*time.Millisecond)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	receipt, err := c.Deduct(context.Background(), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnconfirmed)

	txHash, submitted := Submitted(err)
	require.True(t, submitted)
	assert.True(t, strings.HasPrefix(txHash, "0x"))
	assert.Equal(t, txHash, receipt.TxHash)
	assert.Equal(t, int64(150), receipt.RemainingBalance)
	assert.Contains(t, Reason(err), "submitted but is not confirmed")
	assert.Equal(t, []string{"transfer"}, chain.sent)
}

func TestERC20_CallerCancelAfterBroadcastStillWaitsForReceipt(t *testing.T) {
	chain := newFakeChain(t, 250)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chain.onSend = cancel
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	receipt, err := c.Deduct(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(150), receipt.RemainingBalance)
	assert.Error(t, ctx.Err())
}

func TestERC20_CancelBeforeBroadcastSendsNothing(t *testing.T) {
	chain := newFakeChain(t, 250)
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Deduct(ctx, 100)
	require.Error(t, err)
	_, submitted := Submitted(err)
	assert.False(t, submitted)
	assert.Empty(t, chain.sent)
}

func TestERC20_DecimalsRetriedAfterFailure(t *testing.T) {
	chain := newFakeChain(t, 0)
	chain.decimals = 6
	chain.decimalsFailures = 1
	chain.balance = big.NewInt(250_000_000)
	f, operator := newTestFactory(t, chain)
	c, err := f.ForWallet(operator)
	require.NoError(t, err)

	// первый ответ decimals() потерян, масштаб по умолчанию
	bal, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	bal, err = c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(250), bal)

	bal, err = c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(250), bal)
}

func TestNewERC20Factory_Validation(t *testing.T) {
	chain := newFakeChain(t, 0)
	_, err := NewERC20Factory(chain, ERC20Config{TokenAddress: "nope", TreasuryAddress: testTreasury}, "00", zap.NewNop())
	assert.Error(t, err)

	_, err = NewERC20Factory(chain, ERC20Config{TokenAddress: testToken, TreasuryAddress: testTreasury}, "not-hex", zap.NewNop())
	assert.Error(t, err)
}
