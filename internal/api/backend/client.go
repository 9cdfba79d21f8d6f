package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/langchou/fleetgazer/internal/models"
)

// 错误定义
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError 后端返回的失败响应（非 2xx 或 success=false）
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend request failed: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("backend request failed: status=%d message=%s", e.StatusCode, e.Message)
}

// Unwrap 401/404 可用 errors.Is 判断
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

type tokenKey struct{}

// WithToken 将用户令牌放入 context，请求时透传给后端
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom 从 context 取出令牌
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client 后端 REST API 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient 创建后端客户端
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL 后端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest 执行请求，context 中有令牌时附带 Bearer 认证
func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// call 执行请求并解析统一响应格式
func call[T any](ctx context.Context, c *Client, method, path string, payload interface{}) (T, error) {
	var zero T

	resp, err := c.doRequest(ctx, method, path, payload)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("read response: %w", err)
	}

	var env models.Envelope[T]
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		return zero, apiErr
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return zero, nil
	}
	if decodeErr != nil {
		return zero, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		return zero, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	return env.Data, nil
}

// ListTrailers 获取拖车列表
func (c *Client) ListTrailers(ctx context.Context) ([]models.Trailer, error) {
	trailers, err := call[[]models.Trailer](ctx, c, http.MethodGet, "/api/trailers", nil)
	if err != nil {
		return nil, fmt.Errorf("list trailers: %w", err)
	}
	return trailers, nil
}

// GetTrailer 获取拖车详情
func (c *Client) GetTrailer(ctx context.Context, id int64) (*models.TrailerDetails, error) {
	details, err := call[models.TrailerDetails](ctx, c, http.MethodGet, fmt.Sprintf("/api/trailers/%d", id), nil)
	if err != nil {
		return nil, fmt.Errorf("get trailer %d: %w", id, err)
	}
	return &details, nil
}

// ResolveAlert 将告警标记为已解决
func (c *Client) ResolveAlert(ctx context.Context, id int64) error {
	if _, err := call[json.RawMessage](ctx, c, http.MethodPatch, fmt.Sprintf("/api/alerts/%d/resolve", id), nil); err != nil {
		return fmt.Errorf("resolve alert %d: %w", id, err)
	}
	return nil
}

// ListPieces 获取零件列表
func (c *Client) ListPieces(ctx context.Context) ([]models.Piece, error) {
	pieces, err := call[[]models.Piece](ctx, c, http.MethodGet, "/api/pieces", nil)
	if err != nil {
		return nil, fmt.Errorf("list pieces: %w", err)
	}
	return pieces, nil
}

// UpdatePiece 更新零件阈值
func (c *Client) UpdatePiece(ctx context.Context, id int64, update models.PieceUpdate) error {
	if _, err := call[json.RawMessage](ctx, c, http.MethodPut, fmt.Sprintf("/api/pieces/%d", id), update); err != nil {
		return fmt.Errorf("update piece %d: %w", id, err)
	}
	return nil
}

// DashboardStats 获取仪表盘统计
func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := call[models.DashboardStats](ctx, c, http.MethodGet, "/api/dashboard/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &stats, nil
}

// AverageKmPerDay 获取每车每日平均里程
func (c *Client) AverageKmPerDay(ctx context.Context) (*models.AverageKm, error) {
	avg, err := call[models.AverageKm](ctx, c, http.MethodGet, "/api/dashboard/average-km-per-day", nil)
	if err != nil {
		return nil, fmt.Errorf("average km per day: %w", err)
	}
	return &avg, nil
}

// Login 登录，返回会话令牌
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	session, err := call[models.Session](ctx, c, http.MethodPost, "/api/auth/login", creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &session, nil
}

// Register 注册账号，部分后端注册成功即返回令牌
func (c *Client) Register(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	session, err := call[models.Session](ctx, c, http.MethodPost, "/api/auth/register", creds)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &session, nil
}

// Logout 注销当前令牌
func (c *Client) Logout(ctx context.Context) error {
	if _, err := call[json.RawMessage](ctx, c, http.MethodPost, "/api/auth/logout", nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
