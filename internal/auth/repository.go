package auth

import (
	"context"
	"fmt"
	"time"

	"quest-server/pkg/database"

	"github.com/georgysavva/scany/v2/pgxscan"
	"go.uber.org/zap"
)

const (
	upsertWalletUserQuery = `
        INSERT INTO wallet_users (wallet_address, auth_token, last_login, is_active)
        VALUES ($1, $2, NOW(), TRUE)
        ON CONFLICT (wallet_address) DO UPDATE SET
            auth_token = EXCLUDED.auth_token,
            last_login = NOW(),
            is_active = TRUE
        RETURNING id, wallet_address, created_at, last_login, is_active
    `
	deactivateWalletUserQuery = `UPDATE wallet_users SET is_active = FALSE, auth_token = NULL WHERE wallet_address = $1`
)

// WalletUser строка таблицы wallet_users.
type WalletUser struct {
	ID            int64     `db:"id"`
	WalletAddress string    `db:"wallet_address"`
	CreatedAt     time.Time `db:"created_at"`
	LastLogin     time.Time `db:"last_login"`
	IsActive      bool      `db:"is_active"`
}

// UserRepository хранит пользователей-кошельки.
type UserRepository interface {
	Upsert(ctx context.Context, wallet, token string) (*WalletUser, error)
	Deactivate(ctx context.Context, wallet string) error
}

type pgUserRepository struct {
	db     database.DBTX
	logger *zap.Logger
}

var _ UserRepository = (*pgUserRepository)(nil)

// NewPgUserRepository создает репозиторий пользователей поверх PostgreSQL.
func NewPgUserRepository(db database.DBTX, logger *zap.Logger) UserRepository {
	return &pgUserRepository{db: db, logger: logger.Named("PgWalletUserRepo")}
}

func (r *pgUserRepository) Upsert(ctx context.Context, wallet, token string) (*WalletUser, error) {
	var user WalletUser
	if err := pgxscan.Get(ctx, r.db, &user, upsertWalletUserQuery, wallet, token); err != nil {
		r.logger.Error("Error saving wallet user", zap.String("wallet", wallet), zap.Error(err))
		return nil, fmt.Errorf("failed to save wallet user: %w", err)
	}
	return &user, nil
}

func (r *pgUserRepository) Deactivate(ctx context.Context, wallet string) error {
	if _, err := r.db.Exec(ctx, deactivateWalletUserQuery, wallet); err != nil {
		r.logger.Error("Error deactivating wallet user", zap.String("wallet", wallet), zap.Error(err))
		return fmt.Errorf("failed to deactivate wallet user: %w", err)
	}
	return nil
}
