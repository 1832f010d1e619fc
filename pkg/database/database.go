package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX общий интерфейс для пула и транзакции, чтобы репозитории работали с обоими.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ DBTX = (*pgxpool.Pool)(nil)
	_ DBTX = (pgx.Tx)(nil)
)

// Config содержит настройки пула подключений
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
}

// Database представляет подключение к базе данных
type Database struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect создает пул подключений к PostgreSQL с повторными попытками.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Database, error) {
	log := logger.Named("Database")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	} else {
		poolConfig.MaxConns = 10
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				log.Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
				return &Database{Pool: pool, logger: log}, nil
			}
			pool.Close()
		}
		lastErr = err
		log.Warn("PostgreSQL connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("postgres connect cancelled: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}

// Close закрывает подключение к базе данных
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("PostgreSQL pool closed")
	}
}

// TxBeginner то, у чего можно начать транзакцию (пул или соединение).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx выполняет fn в транзакции, откатывая её при ошибке.
func WithTx(ctx context.Context, b TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
