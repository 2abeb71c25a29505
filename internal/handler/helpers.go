package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/middleware"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	_ = c.Error(err)
	var shapeErr *ai.EmbeddingShapeError
	switch {
	case errors.Is(err, appErr.ErrNoFiles):
		writeError(c, http.StatusBadRequest, "no files uploaded")
	case errors.Is(err, appErr.ErrInvalid):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, appErr.ErrTooLarge):
		writeError(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ai.ErrUnavailable):
		writeError(c, http.StatusInternalServerError, "ai provider unavailable")
	case errors.As(err, &shapeErr):
		writeError(c, http.StatusInternalServerError, shapeErr.Error())
	default:
		writeError(c, http.StatusInternalServerError, err.Error())
	}
}
