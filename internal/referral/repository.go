package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quest-server/internal/models"
	"quest-server/pkg/database"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	hasRedeemedQuery = `SELECT EXISTS (SELECT 1 FROM user_referral WHERE used_by_wallet_address = $1)`
	lockUnusedQuery  = `SELECT id FROM user_referral WHERE code = $1 AND is_used = FALSE FOR UPDATE`
	markUsedQuery    = `
        UPDATE user_referral
        SET is_used = TRUE, used_by_wallet_address = $1, used_at = NOW()
        WHERE id = $2 AND is_used = FALSE
    `
	insertCodeQuery = `
        INSERT INTO user_referral (code, creator_wallet_address, is_initial)
        VALUES ($1, $2, $3)
        ON CONFLICT (code) DO NOTHING
    `
	codesByCreatorQuery = `
        SELECT code, creator_wallet_address, is_initial, is_used, used_by_wallet_address, used_at, created_at
        FROM user_referral
        WHERE creator_wallet_address = $1
        ORDER BY id
    `
	countInitialUnusedQuery = `SELECT COUNT(*) FROM user_referral WHERE is_initial = TRUE AND is_used = FALSE`
)

// ErrCodeExists код уже есть в таблице.
var ErrCodeExists = errors.New("invite code already exists")

// InviteCode строка таблицы user_referral.
type InviteCode struct {
	Code                 string     `db:"code"`
	CreatorWalletAddress *string    `db:"creator_wallet_address"`
	IsInitial            bool       `db:"is_initial"`
	IsUsed               bool       `db:"is_used"`
	UsedByWalletAddress  *string    `db:"used_by_wallet_address"`
	UsedAt               *time.Time `db:"used_at"`
	CreatedAt            time.Time  `db:"created_at"`
}

// Repository доступ к таблице инвайт-кодов.
type Repository interface {
	HasRedeemed(ctx context.Context, querier database.DBTX, wallet string) (bool, error)
	LockUnused(ctx context.Context, querier database.DBTX, code string) (int64, error)
	MarkUsed(ctx context.Context, querier database.DBTX, id int64, wallet string) error
	Insert(ctx context.Context, querier database.DBTX, code string, creator *string, initial bool) error
	ListByCreator(ctx context.Context, querier database.DBTX, wallet string) ([]InviteCode, error)
	CountInitialUnused(ctx context.Context, querier database.DBTX) (int, error)
}

type pgRepository struct {
	logger *zap.Logger
}

var _ Repository = (*pgRepository)(nil)

// NewPgRepository создает репозиторий инвайт-кодов поверх PostgreSQL.
func NewPgRepository(logger *zap.Logger) Repository {
	return &pgRepository{logger: logger.Named("PgReferralRepo")}
}

func (r *pgRepository) HasRedeemed(ctx context.Context, querier database.DBTX, wallet string) (bool, error) {
	var exists bool
	if err := querier.QueryRow(ctx, hasRedeemedQuery, wallet).Scan(&exists); err != nil {
		r.logger.Error("Error checking referral status", zap.String("wallet", wallet), zap.Error(err))
		return false, fmt.Errorf("failed to check referral status: %w", err)
	}
	return exists, nil
}

// LockUnused блокирует неиспользованный код до конца транзакции.
func (r *pgRepository) LockUnused(ctx context.Context, querier database.DBTX, code string) (int64, error) {
	var id int64
	err := querier.QueryRow(ctx, lockUnusedQuery, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrNotFound
		}
		r.logger.Error("Error locking invite code", zap.String("code", code), zap.Error(err))
		return 0, fmt.Errorf("failed to lock invite code: %w", err)
	}
	return id, nil
}

func (r *pgRepository) MarkUsed(ctx context.Context, querier database.DBTX, id int64, wallet string) error {
	tag, err := querier.Exec(ctx, markUsedQuery, wallet, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return models.ErrAlreadyRedeemed
		}
		r.logger.Error("Error marking invite code used", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark invite code used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidInviteCode
	}
	return nil
}

func (r *pgRepository) Insert(ctx context.Context, querier database.DBTX, code string, creator *string, initial bool) error {
	tag, err := querier.Exec(ctx, insertCodeQuery, code, creator, initial)
	if err != nil {
		r.logger.Error("Error inserting invite code", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("failed to insert invite code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeExists
	}
	return nil
}

func (r *pgRepository) ListByCreator(ctx context.Context, querier database.DBTX, wallet string) ([]InviteCode, error) {
	var codes []InviteCode
	if err := pgxscan.Select(ctx, querier, &codes, codesByCreatorQuery, wallet); err != nil {
		r.logger.Error("Error listing invite codes", zap.String("wallet", wallet), zap.Error(err))
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}
	return codes, nil
}

func (r *pgRepository) CountInitialUnused(ctx context.Context, querier database.DBTX) (int, error) {
	var n int
	if err := pgxscan.Get(ctx, querier, &n, countInitialUnusedQuery); err != nil {
		return 0, fmt.Errorf("failed to count initial invite codes: %w", err)
	}
	return n, nil
}
