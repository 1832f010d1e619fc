package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// OpenConfig выбирает способ расчетов.
type OpenConfig struct {
	Mode           string // ledger | erc20
	InitialBalance int64
	RPCURL         string
	SignerKey      string
	ERC20          ERC20Config
}

// Open создает фабрику расчетов. Для erc20 подключается к RPC узлу сети.
func Open(ctx context.Context, cfg OpenConfig, logger *zap.Logger) (Factory, error) {
	if cfg.Mode != "erc20" {
		logger.Info("Using in-process token ledger", zap.Int64("initialBalance", cfg.InitialBalance))
		return NewLedger(cfg.InitialBalance, logger).Factory(), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	backend, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	factory, err := NewERC20Factory(backend, cfg.ERC20, cfg.SignerKey, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	logger.Info("Using ERC-20 settlement",
		zap.Int64("chainId", cfg.ERC20.ChainID),
		zap.String("token", cfg.ERC20.TokenAddress),
	)
	return factory.Factory(), nil
}
