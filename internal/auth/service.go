package auth

import (
	"context"

	"quest-server/internal/models"

	"go.uber.org/zap"
)

// LoginResult результат входа по кошельку.
type LoginResult struct {
	AuthToken     string
	WalletAddress string
}

// Service вход по адресу кошелька.
type Service struct {
	repo   UserRepository
	tokens *TokenManager
	logger *zap.Logger
}

func NewService(repo UserRepository, tokens *TokenManager, logger *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger.Named("AuthService")}
}

// Login регистрирует кошелек (или обновляет last_login) и выдает токен.
func (s *Service) Login(ctx context.Context, walletAddress string) (*LoginResult, error) {
	wallet, err := models.NormalizeWallet(walletAddress)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(wallet)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Upsert(ctx, wallet, token); err != nil {
		return nil, err
	}

	s.logger.Info("Wallet logged in", zap.String("wallet", wallet))
	return &LoginResult{AuthToken: token, WalletAddress: wallet}, nil
}

// Logout помечает кошелек неактивным.
func (s *Service) Logout(ctx context.Context, wallet string) error {
	return s.repo.Deactivate(ctx, wallet)
}

// Tokens возвращает менеджер токенов для middleware.
func (s *Service) Tokens() *TokenManager { return s.tokens }
