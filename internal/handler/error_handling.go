package handler

import (
	"errors"
	"net/http"

	"quest-server/internal/models"
	"quest-server/internal/quest"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleQuestError переводит ошибку движка в ответ {success:false, error}.
func handleQuestError(c *gin.Context, err error) {
	kind := quest.KindOf(err)
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, quest.ErrReferralRequired):
		status = http.StatusForbidden
	case errors.Is(err, quest.ErrChoiceInFlight):
		status = http.StatusConflict
	case errors.Is(err, quest.ErrChoiceNotFound), errors.Is(err, quest.ErrPuzzleNotFound):
		status = http.StatusNotFound
	case kind == quest.KindInput:
		status = http.StatusBadRequest
	case kind == quest.KindPrecondition:
		status = http.StatusConflict
	case kind == quest.KindSettlement:
		status = http.StatusPaymentRequired
	case kind == quest.KindNarration:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		zap.L().Error("Quest operation failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	errorsTotal.WithLabelValues(string(kind)).Inc()
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   quest.UserMessage(err),
		Code:    string(kind),
	})
}

func badRequest(c *gin.Context, msg string) {
	errorsTotal.WithLabelValues(string(quest.KindInput)).Inc()
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: msg, Code: string(quest.KindInput)})
}

func internalError(c *gin.Context, msg string, err error) {
	zap.L().Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	errorsTotal.WithLabelValues(string(quest.KindInternal)).Inc()
	c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: msg, Code: string(quest.KindInternal)})
}
