package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"quest-server/internal/models"
	"quest-server/internal/referral"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *QuestHandler) referralStatus(c *gin.Context) {
	wallet, err := models.NormalizeWallet(c.Param("walletAddress"))
	if err != nil {
		badRequest(c, "Invalid wallet address")
		return
	}
	used, err := h.referral.Status(c.Request.Context(), wallet)
	if err != nil {
		internalError(c, "Error checking referral status", err)
		return
	}
	c.JSON(http.StatusOK, models.ReferralStatusResponse{Success: true, HasUsedInviteCode: used})
}

func (h *QuestHandler) referralVerify(c *gin.Context) {
	var req models.ReferralVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ReferralVerifyResponse{Error: models.ErrEmptyInviteCode.Error()})
		return
	}
	wallet, err := models.NormalizeWallet(req.WalletAddress)
	if err != nil {
		badRequest(c, "Invalid wallet address")
		return
	}

	codes, err := h.referral.Verify(c.Request.Context(), wallet, req.Code)
	if err != nil {
		if rej, ok := referral.IsRejection(err); ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ReferralVerifyResponse{
				Error:           rej.Reason,
				AlreadyRedeemed: rej.AlreadyRedeemed,
			})
			return
		}
		internalError(c, "Error verifying code. Please try again.", err)
		return
	}
	h.logger.Info("Invite code redeemed via API", zap.String("wallet", wallet))
	c.JSON(http.StatusOK, models.ReferralVerifyResponse{Success: true, InviteCodes: codes})
}

func (h *QuestHandler) referralCodes(c *gin.Context) {
	wallet, err := models.NormalizeWallet(c.Param("walletAddress"))
	if err != nil {
		badRequest(c, "Invalid wallet address")
		return
	}
	codes, err := h.referral.Codes(c.Request.Context(), wallet)
	if err != nil {
		internalError(c, "Error loading invite codes", err)
		return
	}
	if codes == nil {
		codes = []string{}
	}
	c.JSON(http.StatusOK, models.ReferralCodesResponse{Success: true, Codes: codes})
}

// requireAdmin сверяет X-Admin-Token с настроенным токеном.
func (h *QuestHandler) requireAdmin(c *gin.Context) {
	token := c.GetHeader("X-Admin-Token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized", Code: "unauthorized"})
		return
	}
	c.Next()
}

func (h *QuestHandler) generateInitialCodes(c *gin.Context) {
	req := initialCodesRequest{Target: referral.DefaultInitialCodes}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}
	if req.Target <= 0 {
		badRequest(c, "Target must be positive")
		return
	}
	created, err := h.admin.GenerateInitial(c.Request.Context(), req.Target)
	if err != nil {
		internalError(c, "Failed to generate invite codes", err)
		return
	}
	if created == nil {
		created = []string{}
	}
	h.logger.Info("Initial invite codes generated", zap.Int("created", len(created)), zap.Int("target", req.Target))
	c.JSON(http.StatusOK, initialCodesResponse{Success: true, Created: created})
}
