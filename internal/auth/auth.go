package auth

import (
	"errors"
	"fmt"
	"time"

	"quest-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "quest-server"

// Claims данные, которые хранятся в токене.
type Claims struct {
	WalletAddress string `json:"wallet_address"`
	jwt.RegisteredClaims
}

// TokenManager выпускает и проверяет HS256 токены.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создает менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not set")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// GenerateToken создает токен для кошелька.
func (m *TokenManager) GenerateToken(wallet string) (string, error) {
	now := m.now()
	claims := &Claims{
		WalletAddress: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет токен и возвращает кошелек из него.
func (m *TokenManager) ParseToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return "", models.ErrTokenInvalid
	}

	wallet, err := models.NormalizeWallet(claims.Subject)
	if err != nil || wallet != claims.WalletAddress {
		return "", fmt.Errorf("%w: wallet claim mismatch", models.ErrTokenInvalid)
	}
	return wallet, nil
}
