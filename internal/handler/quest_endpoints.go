package handler

import (
	"net/http"

	"quest-server/internal/auth"
	"quest-server/internal/quest"

	"github.com/gin-gonic/gin"
)

// session возвращает живую сессию кошелька, поднимая ее из хранилища при необходимости.
func (h *QuestHandler) session(c *gin.Context) (*quest.Session, bool) {
	wallet := auth.WalletFromContext(c)
	if s, ok := h.sessions.Get(wallet); ok {
		return s, true
	}
	s, _, err := h.sessions.Open(c.Request.Context(), wallet)
	if err != nil {
		handleQuestError(c, err)
		return nil, false
	}
	return s, true
}

func (h *QuestHandler) initQuest(c *gin.Context) {
	_, view, err := h.sessions.Open(c.Request.Context(), auth.WalletFromContext(c))
	if err != nil {
		handleQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewResponse{Success: true, View: view})
}

func (h *QuestHandler) redeemReferral(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please enter a valid invite code")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.RedeemReferralCode(c.Request.Context(), req.Code)
	if err != nil {
		handleQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, redeemResponse{
		Success:         true,
		AlreadyVerified: res.AlreadyVerified,
		InviteCodes:     res.InviteCodes,
		Message:         res.Message,
		View:            res.View,
	})
}

func (h *QuestHandler) selectChoice(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	out, err := s.SelectChoice(c.Request.Context(), c.Param("choiceId"))
	if err != nil {
		handleQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, choiceResponse{Success: true, Outcome: out, View: s.View()})
}

func (h *QuestHandler) submitPuzzle(c *gin.Context) {
	var req puzzleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Answer is required")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.SubmitPuzzleSolution(c.Request.Context(), req.PuzzleID, req.Answer)
	if err != nil {
		handleQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, puzzleResponse{Success: true, Result: res})
}

func (h *QuestHandler) requestHint(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.RequestHint(c.Request.Context())
	if err != nil {
		handleQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, hintResponse{Success: true, Hint: res})
}

func (h *QuestHandler) questState(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewResponse{Success: true, View: s.View()})
}

func (h *QuestHandler) balance(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	bal, err := s.RefreshBalance(c.Request.Context())
	if err != nil {
		handleQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceResponse{Success: true, Balance: bal, ShadowBalance: s.Balance()})
}
