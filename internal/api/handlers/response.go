package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api/backend"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": false, "message": message})
}

// backendError 将后端错误转换为响应，401/404 原样透传
func (h *Handler) backendError(c *gin.Context, err error, message string) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, backend.ErrNotFound):
		code = http.StatusNotFound
	default:
		h.logger.Error(message,
			zap.String("request_id", c.GetString(ctxKeyRequestID)),
			zap.Error(err))
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		message = apiErr.Message
	}
	respondError(c, code, message)
}
