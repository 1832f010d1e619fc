package referral

import (
	"context"
	"errors"
	"fmt"

	"quest-server/internal/models"
	"quest-server/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const maxCodeAttempts = 5

// Pool пул подключений, поддерживающий транзакции.
type Pool interface {
	database.DBTX
	database.TxBeginner
}

// Service серверная часть реферальной системы.
type Service struct {
	pool    Pool
	repo    Repository
	newCode func() (string, error)
	logger  *zap.Logger
}

// NewService создает сервис инвайт-кодов.
func NewService(pool Pool, repo Repository, logger *zap.Logger) *Service {
	return &Service{
		pool:    pool,
		repo:    repo,
		newCode: NewCode,
		logger:  logger.Named("ReferralService"),
	}
}

// Status сообщает, активировал ли кошелек инвайт-код.
func (s *Service) Status(ctx context.Context, wallet string) (bool, error) {
	w, err := models.NormalizeWallet(wallet)
	if err != nil {
		return false, err
	}
	return s.repo.HasRedeemed(ctx, s.pool, w)
}

// Verify активирует код для кошелька и выдает ему новые коды.
func (s *Service) Verify(ctx context.Context, code, wallet string) ([]string, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, models.ErrEmptyInviteCode
	}
	w, err := models.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("wallet", w), zap.String("code", code))

	var granted []string
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		redeemed, err := s.repo.HasRedeemed(ctx, tx, w)
		if err != nil {
			return err
		}
		if redeemed {
			return models.ErrAlreadyRedeemed
		}

		id, err := s.repo.LockUnused(ctx, tx, code)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrInvalidInviteCode
			}
			return err
		}
		if err := s.repo.MarkUsed(ctx, tx, id, w); err != nil {
			return err
		}

		granted, err = s.generate(ctx, tx, &w, false, CodesPerRedemption)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidInviteCode) || errors.Is(err, models.ErrAlreadyRedeemed) {
			log.Info("Invite code rejected", zap.Error(err))
		} else {
			log.Error("Invite code verification failed", zap.Error(err))
		}
		return nil, err
	}

	log.Info("Invite code redeemed", zap.Int("granted", len(granted)))
	return granted, nil
}

// Codes возвращает коды, выданные кошельку.
func (s *Service) Codes(ctx context.Context, wallet string) ([]InviteCode, error) {
	w, err := models.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByCreator(ctx, s.pool, w)
}

// GenerateInitial дополняет пул стартовых кодов до target и возвращает созданные.
func (s *Service) GenerateInitial(ctx context.Context, target int) ([]string, error) {
	var created []string
	err := database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		existing, err := s.repo.CountInitialUnused(ctx, tx)
		if err != nil {
			return err
		}
		if existing >= target {
			return nil
		}
		created, err = s.generate(ctx, tx, nil, true, target-existing)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Initial invite codes generated", zap.Int("created", len(created)), zap.Int("target", target))
	return created, nil
}

func (s *Service) generate(ctx context.Context, tx database.DBTX, creator *string, initial bool, n int) ([]string, error) {
	codes := make([]string, 0, n)
	for len(codes) < n {
		code, err := s.insertUnique(ctx, tx, creator, initial)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *Service) insertUnique(ctx context.Context, tx database.DBTX, creator *string, initial bool) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		err = s.repo.Insert(ctx, tx, code, creator, initial)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate a unique invite code after %d attempts", maxCodeAttempts)
}
