package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kickspot/internal/model"
	"kickspot/pkg/logger"
)

// Keys set by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// currentRecipient resolves the caller from the verified token claims.
func currentRecipient(c *gin.Context) (model.Recipient, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return model.Recipient{}, false
	}
	role, ok := c.Get(ContextRole)
	if !ok {
		return model.Recipient{}, false
	}
	uid, ok1 := id.(int64)
	r, ok2 := role.(string)
	if !ok1 || !ok2 {
		return model.Recipient{}, false
	}
	rec := model.Recipient{Role: model.Role(r), ID: uid}
	if rec.Validate() != nil {
		return model.Recipient{}, false
	}
	return rec, true
}

func mustRecipient(c *gin.Context) (model.Recipient, bool) {
	r, ok := currentRecipient(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
	}
	return r, ok
}

// writeError maps domain errors to status codes. Unknown errors are logged and
// reported as 500 without details.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
