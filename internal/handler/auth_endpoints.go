package handler

import (
	"errors"
	"net/http"

	"quest-server/internal/auth"
	"quest-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *QuestHandler) loginWallet(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Wallet address is required")
		return
	}

	res, err := h.login.Login(c.Request.Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, models.ErrInvalidWallet) {
			badRequest(c, "Invalid wallet address")
			return
		}
		internalError(c, "Login failed", err)
		return
	}

	loginsTotal.Inc()
	c.JSON(http.StatusOK, models.LoginResponse{
		Success:       true,
		AuthToken:     res.AuthToken,
		WalletAddress: res.WalletAddress,
	})
}

// logout выгружает сессию. Сохраненный квест удаляется только при clearOnLogout.
func (h *QuestHandler) logout(c *gin.Context) {
	wallet := auth.WalletFromContext(c)
	ctx := c.Request.Context()

	if err := h.sessions.Close(ctx, wallet, h.clearOnLogout); err != nil {
		handleQuestError(c, err)
		return
	}
	if h.hub != nil {
		h.hub.Disconnect(wallet)
	}
	if err := h.login.Logout(ctx, wallet); err != nil {
		h.logger.Warn("Failed to mark wallet inactive", zap.String("wallet", wallet), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": h.clearOnLogout})
}
