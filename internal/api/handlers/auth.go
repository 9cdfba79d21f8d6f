package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api/backend"
	"github.com/langchou/fleetgazer/internal/models"
)

// 登录 cookie 有效期 (秒)
const tokenMaxAge = 86400

// setTokenCookie 前端脚本需要读取令牌，因此不设置 HttpOnly
func setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, token, maxAge, "/", "", false, false)
}

func bindCredentials(c *gin.Context) (models.Credentials, bool) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		respondError(c, http.StatusBadRequest, "Email and password are required")
		return creds, false
	}
	return creds, true
}

// Login 登录并写入 auth_token cookie
func (h *Handler) Login(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}

	session, err := h.backend.Login(c.Request.Context(), creds)
	if err != nil {
		h.backendError(c, err, "Login failed")
		return
	}
	if session.Token == "" {
		respondError(c, http.StatusBadGateway, "Login failed")
		return
	}

	setTokenCookie(c, session.Token, tokenMaxAge)
	respondOK(c, session)
}

// Register 注册，后端返回令牌时直接登录
func (h *Handler) Register(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}

	session, err := h.backend.Register(c.Request.Context(), creds)
	if err != nil {
		h.backendError(c, err, "Registration failed")
		return
	}

	if session.Token != "" {
		setTokenCookie(c, session.Token, tokenMaxAge)
	}
	respondOK(c, session)
}

// Logout 注销并清除 cookie，后端失败不影响本地注销
func (h *Handler) Logout(c *gin.Context) {
	if token := tokenFromRequest(c); token != "" {
		if err := h.backend.Logout(backend.WithToken(c.Request.Context(), token)); err != nil {
			h.logger.Warn("Backend logout failed", zap.Error(err))
		}
	}

	setTokenCookie(c, "", -1)
	respondOK(c, nil)
}
