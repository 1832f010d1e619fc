package auth

import (
	"errors"
	"net/http"
	"strings"

	"quest-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WalletContextKey ключ gin-контекста с адресом кошелька.
const WalletContextKey = "wallet_address"

// RequireWallet проверяет Bearer токен и кладет кошелек в контекст.
func RequireWallet(tokens *TokenManager, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("RequireWallet")
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authorization header missing", Code: "unauthorized"})
			return
		}

		wallet, err := tokens.ParseToken(tokenString)
		if err != nil {
			log.Debug("Token rejected", zap.Error(err))
			msg := "Token is invalid"
			if errors.Is(err, models.ErrTokenExpired) {
				msg = "Token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: msg, Code: "unauthorized"})
			return
		}

		if param := c.Param("walletAddress"); param != "" && !strings.EqualFold(param, wallet) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "Wallet does not match token", Code: "forbidden"})
			return
		}

		c.Set(WalletContextKey, wallet)
		c.Next()
	}
}

// WalletFromContext возвращает кошелек, положенный RequireWallet.
func WalletFromContext(c *gin.Context) string {
	return c.GetString(WalletContextKey)
}

// bearerToken берет токен из заголовка или из query (для WebSocket).
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}
