package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api/geocoder"
	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/service"
	"github.com/langchou/fleetgazer/pkg/ws"
)

// Backend 后端 REST API
type Backend interface {
	ListTrailers(ctx context.Context) ([]models.Trailer, error)
	GetTrailer(ctx context.Context, id int64) (*models.TrailerDetails, error)
	ResolveAlert(ctx context.Context, id int64) error
	ListPieces(ctx context.Context) ([]models.Piece, error)
	UpdatePiece(ctx context.Context, id int64, update models.PieceUpdate) error
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	AverageKmPerDay(ctx context.Context) (*models.AverageKm, error)
	Login(ctx context.Context, creds models.Credentials) (*models.Session, error)
	Register(ctx context.Context, creds models.Credentials) (*models.Session, error)
	Logout(ctx context.Context) error
}

// StateHistory 状态历史查询，未配置数据库时为空
type StateHistory interface {
	ListByTrailer(ctx context.Context, trailerID int64, limit int) ([]*models.TrailerState, error)
	Current(ctx context.Context) ([]*models.TrailerState, error)
}

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	backend  Backend
	fleet    *service.FleetService
	geocoder *geocoder.Resolver
	history  StateHistory
	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	backend Backend,
	fleet *service.FleetService,
	resolver *geocoder.Resolver,
	history StateHistory,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:   logger,
		backend:  backend,
		fleet:    fleet,
		geocoder: resolver,
		history:  history,
		wsHub:    wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// NewRouter 创建带全部中间件的路由
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(CORS())
	router.Use(SurfaceGuard())

	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// 认证
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/register", h.Register)
		auth.POST("/logout", h.Logout)
	}

	// API 路由
	api := r.Group("/api", RequireToken())
	{
		// 拖车
		api.GET("/trailers", h.ListTrailers)
		api.GET("/trailers/:id", h.GetTrailer)
		api.GET("/trailers/:id/address", h.GetTrailerAddress)
		api.GET("/trailers/:id/history", h.GetTrailerHistory)

		// 车队状态
		api.GET("/fleet/summary", h.FleetSummary)
		api.GET("/fleet/states", h.FleetStates)
		api.GET("/fleet/intervals", h.FleetIntervals)

		// 告警与事故
		api.GET("/alerts", h.ListAlerts)
		api.PATCH("/alerts/:id/resolve", h.ResolveAlert)
		api.GET("/incidents", h.ListIncidents)

		// 零件
		api.GET("/pieces", h.ListPieces)
		api.PUT("/pieces/:id", h.UpdatePiece)

		// 统计
		api.GET("/dashboard/stats", h.DashboardStats)
		api.GET("/dashboard/average-km-per-day", h.AverageKmPerDay)

		// 逆地理编码
		api.GET("/geocode", h.Geocode)
		api.DELETE("/geocode/cache", h.ClearGeocodeCache)
	}

	// WebSocket
	r.GET("/ws", RequireToken(), h.HandleWebSocket)

	// 健康检查与指标
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", h.Index)
	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Not found")
	})
}

// HandleWebSocket WebSocket 处理，连接关闭前阻塞
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	h.wsHub.Serve(conn)
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	cacheSize, err := h.geocoder.CacheSize(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to read geocode cache size", zap.Error(err))
		cacheSize = -1
	}

	engineCfg := h.fleet.Engine().Config()
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"ws_clients":         h.wsHub.ClientCount(),
		"geocoder":           h.geocoder.Provider(),
		"geocode_cache_size": cacheSize,
		"history_enabled":    h.history != nil,
		"warehouse": gin.H{
			"lat":       engineCfg.Warehouse.Lat,
			"lng":       engineCfg.Warehouse.Lng,
			"radius_km": engineCfg.WarehouseRadiusKm,
		},
	})
}

// Index 首页
func (h *Handler) Index(c *gin.Context) {
	respondOK(c, gin.H{
		"name":    "fleetgazer",
		"summary": h.fleet.Summary(),
	})
}
