package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/langchou/fleetgazer/internal/api/backend"
)

const (
	// TokenCookie 登录令牌 cookie 名
	TokenCookie = "auth_token"
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"

	ctxKeyToken     = "token"
	ctxKeyRequestID = "request_id"
)

// 无需登录的页面
var publicPages = map[string]bool{
	"/login":    true,
	"/register": true,
}

// CORS CORS 中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID 为每个请求分配 ID，沿用客户端传入的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequireToken API 认证：Authorization: Bearer 或 auth_token cookie
func RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Set(ctxKeyToken, token)
		c.Next()
	}
}

// SurfaceGuard 页面访问控制：未登录跳转 /login，已登录访问登录页跳转 /
// API、WebSocket、运维接口和静态资源不受影响
func SurfaceGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !isPagePath(path) {
			c.Next()
			return
		}

		token, _ := c.Cookie(TokenCookie)
		switch {
		case token == "" && !publicPages[path]:
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
		case token != "" && publicPages[path]:
			c.Redirect(http.StatusFound, "/")
			c.Abort()
		default:
			c.Next()
		}
	}
}

func isPagePath(path string) bool {
	for _, prefix := range []string{"/api", "/_next", "/ws", "/health", "/metrics", "/favicon.ico"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return false
		}
	}
	// 带扩展名的视为静态资源
	last := path[strings.LastIndex(path, "/")+1:]
	return !strings.Contains(last, ".")
}

func tokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			return token
		}
	}
	if token, err := c.Cookie(TokenCookie); err == nil && token != "" {
		return token
	}
	return ""
}

// requestContext 携带用户令牌的请求 context
func requestContext(c *gin.Context) context.Context {
	return backend.WithToken(c.Request.Context(), c.GetString(ctxKeyToken))
}
