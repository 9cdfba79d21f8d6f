package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/langchou/fleetgazer/internal/status"
)

var (
	// ErrRateLimited Nominatim 返回 429
	ErrRateLimited = errors.New("nominatim rate limited")
	// ErrInvalidCoordinates 坐标超出范围，不发起请求
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// dispatchMargin 限流间隔的额外余量，连接复用时请求到达服务端的间隔仍不低于 MinInterval
const dispatchMargin = 10 * time.Millisecond

// Options 解析器配置
type Options struct {
	BaseURL        string
	UserAgent      string
	Language       string
	MinInterval    time.Duration // 两次外部请求的最小间隔（全局）
	Timeout        time.Duration // 单次请求超时
	MaxRetries     int           // 失败后的重试次数，0 表示只请求一次
	RetryDelay     time.Duration // 网络错误重试基准延迟，第 n 次重试等待 n 倍，为 0 时取默认值
	RateLimitDelay time.Duration // 429 重试基准延迟，为 0 时取默认值
	Store          AddressStore  // 为空时使用进程内缓存
	HTTPClient     *http.Client
}

// DefaultOptions 默认配置，遵守 Nominatim 使用条款
func DefaultOptions() Options {
	return Options{
		BaseURL:        "https://nominatim.openstreetmap.org",
		UserAgent:      "QuadriFleet/1.0",
		Language:       "fr",
		MinInterval:    1500 * time.Millisecond,
		Timeout:        10 * time.Second,
		MaxRetries:     2,
		RetryDelay:     time.Second,
		RateLimitDelay: 2 * time.Second,
	}
}

// Resolver 逆地理编码解析器
// 相同坐标桶的并发请求合并为一次外部调用，所有外部调用共享同一个限流器
type Resolver struct {
	opts       Options
	store      AddressStore
	httpClient *http.Client
	limiter    *rate.Limiter
	group      singleflight.Group
	logger     *zap.Logger
}

// NewResolver 创建解析器
func NewResolver(opts Options, logger *zap.Logger) *Resolver {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Language == "" {
		opts.Language = def.Language
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = def.MinInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.RateLimitDelay <= 0 {
		opts.RateLimitDelay = def.RateLimitDelay
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Resolver{
		opts:       opts,
		store:      opts.Store,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(opts.MinInterval+dispatchMargin), 1),
		logger:     logger,
	}
}

// BucketKey 缓存 key（精确到小数点后4位，约11米精度）
func BucketKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

// FormatCoordinates 解析失败时的兜底显示
func FormatCoordinates(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + ", " + strconv.FormatFloat(lng, 'f', -1, 64)
}

// Resolve 逆地理编码：根据经纬度获取可读地址，失败时返回坐标字符串，从不报错
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64) string {
	addr, err := r.resolve(ctx, lat, lng)
	if err != nil {
		fallbacksTotal.Inc()
		r.logger.Warn("Reverse geocode failed, using coordinates",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.Error(err))
		if addr == "" {
			addr = FormatCoordinates(lat, lng)
		}
	}
	return addr
}

// ResolveString 接受字符串坐标，无法解析时原样拼接返回，不发起请求
func (r *Resolver) ResolveString(ctx context.Context, lat, lng string) string {
	la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	lo, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if errLat != nil || errLng != nil || !ValidCoordinates(la, lo) {
		return lat + ", " + lng
	}
	return r.Resolve(ctx, la, lo)
}

// ResolveMany 批量解析，结果顺序与输入一致
func (r *Resolver) ResolveMany(ctx context.Context, points []status.Point) []string {
	out := make([]string, len(points))
	var g errgroup.Group
	g.SetLimit(4)
	for i, p := range points {
		i, p := i, p
		g.Go(func() error {
			out[i] = r.Resolve(ctx, p.Lat, p.Lng)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) resolve(ctx context.Context, lat, lng float64) (string, error) {
	if !ValidCoordinates(lat, lng) {
		return "", fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, lat, lng)
	}
	key := BucketKey(lat, lng)

	// 检查缓存
	if addr, ok := r.cached(ctx, key); ok {
		cacheHits.Inc()
		return addr, nil
	}

	// 已有相同坐标桶的请求在进行中则直接等待其结果
	ch := r.group.DoChan(key, func() (interface{}, error) {
		// 调用方放弃等待不影响本次解析写入缓存
		flightCtx := context.WithoutCancel(ctx)

		if addr, ok := r.cached(flightCtx, key); ok {
			cacheHits.Inc()
			return addr, nil
		}

		addr, err := r.lookup(flightCtx, lat, lng)
		if err != nil {
			return FormatCoordinates(lat, lng), err
		}

		if err := r.store.Set(flightCtx, key, addr); err != nil {
			r.logger.Warn("Failed to cache address", zap.String("key", key), zap.Error(err))
		}
		return addr, nil
	})

	select {
	case res := <-ch:
		addr, _ := res.Val.(string)
		return addr, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Resolver) cached(ctx context.Context, key string) (string, bool) {
	addr, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Failed to read address cache", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return addr, ok
}

// lookup 带重试的外部查询，错误不做兜底
func (r *Resolver) lookup(ctx context.Context, lat, lng float64) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay, reason := r.opts.RetryDelay, "error"
			if errors.Is(lastErr, ErrRateLimited) {
				delay, reason = r.opts.RateLimitDelay, "rate_limited"
			}
			retriesTotal.WithLabelValues(reason).Inc()
			if err := sleep(ctx, delay*time.Duration(attempt)); err != nil {
				return "", err
			}
		}

		addr, err := r.fetch(ctx, lat, lng)
		if err == nil {
			return addr, nil
		}
		lastErr = err
		r.logger.Debug("Nominatim attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.Error(err))
	}
	return "", fmt.Errorf("reverse geocode after %d attempts: %w", r.opts.MaxRetries+1, lastErr)
}

// ============ Nominatim (OpenStreetMap) 实现 ============

// NominatimResponse Nominatim 逆地理编码响应
type NominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Address     NominatimAddress `json:"address"`
}

type NominatimAddress struct {
	Road     string `json:"road"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

func (r *Resolver) fetch(ctx context.Context, lat, lng float64) (string, error) {
	// 全局限流，重试同样计入
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait limiter: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("accept-language", r.opts.Language)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.opts.BaseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	// Nominatim 要求设置 User-Agent
	req.Header.Set("User-Agent", r.opts.UserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		requestsTotal.WithLabelValues("rate_limited").Inc()
		return "", ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		requestsTotal.WithLabelValues("http_error").Inc()
		return "", fmt.Errorf("nominatim api returned status %d", resp.StatusCode)
	}

	var result NominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("decode response: %w", err)
	}
	requestsTotal.WithLabelValues("ok").Inc()

	address := formatAddress(result, lat, lng)
	r.logger.Debug("Geocoded via Nominatim",
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("address", address))

	return address, nil
}

// formatAddress 道路 + 城市；城市字段可能在 city/town/village 中
func formatAddress(result NominatimResponse, lat, lng float64) string {
	city := result.Address.City
	if city == "" {
		city = result.Address.Town
	}
	if city == "" {
		city = result.Address.Village
	}

	parts := make([]string, 0, 2)
	if result.Address.Road != "" {
		parts = append(parts, result.Address.Road)
	}
	if city != "" {
		parts = append(parts, city)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if result.DisplayName != "" {
		return result.DisplayName
	}
	return FormatCoordinates(lat, lng)
}

// ============ 工具函数 ============

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidCoordinates 有限值且纬度在 [-90,90]、经度在 [-180,180] 内
func ValidCoordinates(lat, lng float64) bool {
	return finite(lat) && finite(lng) && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Provider 返回当前使用的服务提供商
func (r *Resolver) Provider() string {
	return "nominatim"
}

// CacheSize 获取缓存大小
func (r *Resolver) CacheSize(ctx context.Context) (int, error) {
	return r.store.Len(ctx)
}

// ClearCache 清空缓存
func (r *Resolver) ClearCache(ctx context.Context) error {
	return r.store.Clear(ctx)
}
