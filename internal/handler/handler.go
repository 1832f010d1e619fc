package handler

import (
	"context"
	"net/http"

	"quest-server/internal/auth"
	"quest-server/internal/quest"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoginService вход и выход по кошельку.
type LoginService interface {
	Login(ctx context.Context, walletAddress string) (*auth.LoginResult, error)
	Logout(ctx context.Context, wallet string) error
}

// InitialCodeGenerator выпускает стартовые инвайт-коды.
type InitialCodeGenerator interface {
	GenerateInitial(ctx context.Context, target int) ([]string, error)
}

// Deps зависимости HTTP API.
type Deps struct {
	Login    LoginService
	Tokens   *auth.TokenManager
	Referral quest.ReferralGate
	Sessions *quest.Manager
	Hub      *Hub
	// Admin может быть nil: тогда админский маршрут не регистрируется.
	Admin         InitialCodeGenerator
	AdminToken    string
	ClearOnLogout bool
}

// QuestHandler HTTP API квеста.
type QuestHandler struct {
	login         LoginService
	tokens        *auth.TokenManager
	referral      quest.ReferralGate
	sessions      *quest.Manager
	hub           *Hub
	admin         InitialCodeGenerator
	adminToken    string
	clearOnLogout bool
	logger        *zap.Logger
}

func NewQuestHandler(deps Deps, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{
		login:         deps.Login,
		tokens:        deps.Tokens,
		referral:      deps.Referral,
		sessions:      deps.Sessions,
		hub:           deps.Hub,
		admin:         deps.Admin,
		adminToken:    deps.AdminToken,
		clearOnLogout: deps.ClearOnLogout,
		logger:        logger.Named("QuestHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *QuestHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.HEAD("/health", h.health)

	api.POST("/users/login", h.loginWallet)

	ref := api.Group("/referral")
	ref.GET("/status/:walletAddress", h.referralStatus)
	ref.POST("/verify", h.referralVerify)
	ref.GET("/codes/:walletAddress", h.referralCodes)

	if h.admin != nil && h.adminToken != "" {
		admin := api.Group("/admin", h.requireAdmin)
		admin.POST("/referral/initial", h.generateInitialCodes)
	}

	q := api.Group("/quest", auth.RequireWallet(h.tokens, h.logger))
	q.POST("/init", h.initQuest)
	q.POST("/referral", h.redeemReferral)
	q.POST("/choices/:choiceId", h.selectChoice)
	q.POST("/puzzle", h.submitPuzzle)
	q.POST("/hint", h.requestHint)
	q.GET("/state", h.questState)
	q.GET("/balance", h.balance)
	q.POST("/logout", h.logout)
	if h.hub != nil {
		q.GET("/ws", h.serveWS)
	}
}

func (h *QuestHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "liveSessions": h.sessions.Len()})
}
