package handler

import (
	"errors"
	"net/http"

	"taskboard/internal/ordering"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service and ordering errors onto HTTP statuses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, ordering.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, ordering.ErrInvalidPosition), errors.Is(err, ordering.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ordering.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Task was changed concurrently, please retry"})
	case errors.Is(err, ordering.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task store unavailable"})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
