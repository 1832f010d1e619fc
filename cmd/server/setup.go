package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"quest-server/internal/config"
	"quest-server/internal/settlement"
	"quest-server/internal/storage"

	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	connectRetries    = 50
	connectRetryDelay = 3 * time.Second
)

// setupSessionStore выбирает хранилище записей сессий по SESSION_STORE.
// Возвращаемая функция освобождает ресурсы хранилища.
func setupSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.SessionStore, func(), error) {
	switch cfg.SessionStore {
	case "redis":
		client, err := setupRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close Redis client", zap.Error(err))
			}
		}
		return storage.NewRedisStore(client, 0, logger), closeFn, nil
	case "sqlite":
		store, err := storage.OpenSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close SQLite store", zap.Error(err))
			}
		}
		return store, closeFn, nil
	default:
		logger.Warn("Using in-memory session store, records are lost on restart")
		return storage.NewMemoryStore(), func() {}, nil
	}
}

func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	zap.L().Info("Redis connection options configured", zap.String("address", opts.Addr), zap.Int("db", opts.DB))

	var lastErr error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		client := redis.NewClient(opts)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err == nil {
			zap.L().Info("Successfully connected and pinged Redis", zap.Int("attempt", attempt))
			return client, nil
		}

		client.Close()
		lastErr = err
		zap.L().Warn("Redis ping failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", connectRetries),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis connect cancelled: %w", ctx.Err())
		case <-time.After(connectRetryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", connectRetries, lastErr)
}

func setupSettlement(ctx context.Context, cfg *config.Config, logger *zap.Logger) (settlement.Factory, error) {
	return settlement.Open(ctx, settlementConfig(cfg), logger)
}

func settlementConfig(cfg *config.Config) settlement.OpenConfig {
	return settlement.OpenConfig{
		Mode:           cfg.SettlementMode,
		InitialBalance: cfg.LedgerInitialBalance,
		RPCURL:         cfg.ChainRPCURL,
		SignerKey:      cfg.SignerKey,
		ERC20: settlement.ERC20Config{
			TokenAddress:    cfg.TokenContract,
			TreasuryAddress: cfg.TreasuryAddress,
			ChainID:         cfg.ChainID,
			Timeout:         cfg.SettlementTimeout,
		},
	}
}

func connectRabbitMQ(rawURL string, logger *zap.Logger) (*amqp091.Connection, error) {
	logger.Info("Attempting to connect to RabbitMQ",
		zap.String("url", maskURL(rawURL)),
		zap.Int("max_retries", connectRetries),
		zap.Duration("retry_delay", connectRetryDelay),
	)
	var err error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		var conn *amqp091.Connection
		conn, err = amqp091.Dial(rawURL)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ", zap.Int("attempt", attempt))
			go func() {
				notifyClose := conn.NotifyClose(make(chan *amqp091.Error, 1))
				if cerr := <-notifyClose; cerr != nil {
					logger.Error("RabbitMQ connection closed unexpectedly", zap.Error(cerr))
				} else {
					logger.Info("RabbitMQ connection closed gracefully.")
				}
			}()
			return conn, nil
		}
		logger.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectRetries),
			zap.Error(err),
		)
		time.Sleep(connectRetryDelay)
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", connectRetries, err)
}

// maskURL скрывает пароль в URL перед записью в лог.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
