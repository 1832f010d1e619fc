package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const erc20ABI = `[
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const defaultDecimals = 18

// Backend подмножество ethclient.Client, нужное клиенту токена.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// ERC20Config адреса контракта и казначейства, ожидаемая сеть.
type ERC20Config struct {
	TokenAddress    string
	TreasuryAddress string
	ChainID         int64
	// Timeout ограничивает отдельно подготовку транзакции и ожидание ее подтверждения; 0 без ограничения.
	Timeout time.Duration
}

// ERC20Factory создает клиентов токена для кошельков. Все транзакции подписывает оператор.
// Если адрес оператора совпадает с кошельком, используется transfer, иначе transferFrom
// по ранее выданному кошельком разрешению (approve) на адрес оператора.
type ERC20Factory struct {
	backend  Backend
	abi      abi.ABI
	token    common.Address
	treasury common.Address
	chainID  *big.Int
	timeout  time.Duration
	key      *ecdsa.PrivateKey
	operator common.Address
	logger   *zap.Logger

	decimalsMu     sync.Mutex
	decimalsLoaded bool
	decimals       uint8
}

// NewERC20Factory проверяет конфигурацию и разбирает ключ оператора (hex, с 0x или без).
func NewERC20Factory(backend Backend, cfg ERC20Config, signerKeyHex string, logger *zap.Logger) (*ERC20Factory, error) {
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("invalid token contract address %q", cfg.TokenAddress)
	}
	if !common.IsHexAddress(cfg.TreasuryAddress) {
		return nil, fmt.Errorf("invalid treasury address %q", cfg.TreasuryAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(signerKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &ERC20Factory{
		backend:  backend,
		abi:      parsed,
		token:    common.HexToAddress(cfg.TokenAddress),
		treasury: common.HexToAddress(cfg.TreasuryAddress),
		chainID:  big.NewInt(cfg.ChainID),
		timeout:  cfg.Timeout,
		key:      key,
		operator: crypto.PubkeyToAddress(key.PublicKey),
		logger:   logger.Named("ERC20Settlement"),
		decimals: defaultDecimals,
	}, nil
}

// Factory возвращает фабрику в форме settlement.Factory.
func (f *ERC20Factory) Factory() Factory {
	return func(wallet string) (Settler, error) {
		return f.ForWallet(wallet)
	}
}

func (f *ERC20Factory) ForWallet(wallet string) (*ERC20Client, error) {
	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("invalid wallet address %q", wallet)
	}
	return &ERC20Client{
		factory:  f,
		wallet:   common.HexToAddress(wallet),
		contract: bind.NewBoundContract(f.token, f.abi, f.backend, f.backend, f.backend),
	}, nil
}

// ERC20Client списывает токены одного кошелька переводом на адрес казначейства.
type ERC20Client struct {
	factory  *ERC20Factory
	wallet   common.Address
	contract *bind.BoundContract
}

var _ Settler = (*ERC20Client)(nil)

func (c *ERC20Client) CheckNetwork(ctx context.Context) (bool, error) {
	id, err := c.factory.backend.ChainID(ctx)
	if err != nil {
		return false, fmt.Errorf("query chain id: %w", err)
	}
	return id.Cmp(c.factory.chainID) == 0, nil
}

func (c *ERC20Client) Balance(ctx context.Context) (int64, error) {
	raw, err := c.balanceOf(ctx)
	if err != nil {
		return 0, err
	}
	return c.fromUnits(ctx, raw), nil
}

func (c *ERC20Client) Deduct(ctx context.Context, amount int64) (Receipt, error) {
	f := c.factory
	if amount <= 0 {
		return Receipt{}, &Error{Reason: fmt.Sprintf("Invalid deduction amount %d.", amount)}
	}
	// до отправки транзакции вызывающий может отменить списание
	sendCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	scale := c.scale(sendCtx)
	units := new(big.Int).Mul(big.NewInt(amount), scale)

	balance, err := c.balanceOf(sendCtx)
	if err != nil {
		deductionsTotal.WithLabelValues("erc20", "error").Inc()
		return Receipt{}, &Error{Reason: "Failed to process token deduction", Err: err}
	}
	if balance.Cmp(units) < 0 {
		deductionsTotal.WithLabelValues("erc20", "insufficient").Inc()
		return Receipt{}, &Error{Reason: fmt.Sprintf("Insufficient balance. You need at least %d PEAR tokens.", amount)}
	}

	opts, err := bind.NewKeyedTransactorWithChainID(f.key, f.chainID)
	if err != nil {
		return Receipt{}, &Error{Reason: "Failed to process token deduction", Err: err}
	}
	opts.Context = sendCtx

	var tx *types.Transaction
	if c.wallet == f.operator {
		tx, err = c.contract.Transact(opts, "transfer", f.treasury, units)
	} else {
		allowance, aerr := c.allowance(sendCtx)
		if aerr != nil {
			return Receipt{}, &Error{Reason: "Failed to process token deduction", Err: aerr}
		}
		if allowance.Cmp(units) < 0 {
			deductionsTotal.WithLabelValues("erc20", "allowance").Inc()
			return Receipt{}, &Error{Reason: fmt.Sprintf("Insufficient allowance. Approve at least %d PEAR tokens for spending.", amount)}
		}
		tx, err = c.contract.Transact(opts, "transferFrom", c.wallet, f.treasury, units)
	}
	if err != nil {
		deductionsTotal.WithLabelValues("erc20", "error").Inc()
		return Receipt{}, &Error{Reason: "Transfer failed: " + err.Error(), Err: err}
	}
	txHash := tx.Hash().Hex()
	f.logger.Info("Transfer submitted", zap.String("wallet", c.wallet.Hex()), zap.String("tx", txHash), zap.Int64("amount", amount))

	// Транзакция в сети: отмена вызывающего больше не прерывает ожидание.
	waitCtx := context.WithoutCancel(ctx)
	if f.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, f.timeout)
		defer cancel()
	}
	expected := new(big.Int).Quo(new(big.Int).Sub(balance, units), scale).Int64()

	receipt, err := bind.WaitMined(waitCtx, f.backend, tx)
	if err != nil {
		deductionsTotal.WithLabelValues("erc20", "unconfirmed").Inc()
		f.logger.Warn("Transfer not confirmed in time", zap.String("tx", txHash), zap.Error(err))
		return Receipt{TxHash: txHash, RemainingBalance: expected}, &Error{
			Reason: fmt.Sprintf("Transaction %s was submitted but is not confirmed yet.", txHash),
			TxHash: txHash,
			Err:    fmt.Errorf("%w: %v", ErrUnconfirmed, err),
		}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		deductionsTotal.WithLabelValues("erc20", "reverted").Inc()
		return Receipt{}, &Error{Reason: "Transaction reverted."}
	}

	deductionsTotal.WithLabelValues("erc20", "success").Inc()
	deductedTokens.WithLabelValues("erc20").Add(float64(amount))

	remaining, err := c.Balance(waitCtx)
	if err != nil {
		f.logger.Warn("Failed to read balance after transfer", zap.Error(err))
		remaining = expected
	}
	return Receipt{TxHash: receipt.TxHash.Hex(), RemainingBalance: remaining}, nil
}

func (c *ERC20Client) balanceOf(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "balanceOf", c.wallet)
}

func (c *ERC20Client) allowance(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "allowance", c.wallet, c.factory.operator)
}

func (c *ERC20Client) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s: unexpected result type %T", method, out[0])
	}
	return v, nil
}

// tokenDecimals читает decimals() до первого успешного ответа; пока его нет, используется значение по умолчанию.
func (c *ERC20Client) tokenDecimals(ctx context.Context) uint8 {
	f := c.factory
	f.decimalsMu.Lock()
	defer f.decimalsMu.Unlock()
	if f.decimalsLoaded {
		return f.decimals
	}
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil || len(out) == 0 {
		f.logger.Warn("Could not retrieve decimals, using default", zap.Error(err))
		return defaultDecimals
	}
	d, ok := out[0].(uint8)
	if !ok {
		f.logger.Warn("Unexpected decimals type, using default", zap.Any("value", out[0]))
		return defaultDecimals
	}
	f.decimals = d
	f.decimalsLoaded = true
	return d
}

func (c *ERC20Client) scale(ctx context.Context) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.tokenDecimals(ctx))), nil)
}

func (c *ERC20Client) fromUnits(ctx context.Context, units *big.Int) int64 {
	return new(big.Int).Quo(units, c.scale(ctx)).Int64()
}
