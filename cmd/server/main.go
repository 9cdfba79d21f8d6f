package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/fleetgazer/internal/api/backend"
	"github.com/langchou/fleetgazer/internal/api/geocoder"
	"github.com/langchou/fleetgazer/internal/api/handlers"
	"github.com/langchou/fleetgazer/internal/config"
	"github.com/langchou/fleetgazer/internal/repository"
	"github.com/langchou/fleetgazer/internal/service"
	"github.com/langchou/fleetgazer/internal/status"
	"github.com/langchou/fleetgazer/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Fleetgazer",
		zap.String("port", cfg.ServerPort),
		zap.String("backend", cfg.BackendURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 可选数据库：状态历史与地址缓存
	var (
		recorder service.StateRecorder
		history  handlers.StateHistory
		store    geocoder.AddressStore
	)
	if cfg.DatabaseURL != "" {
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")

		stateRepo := repository.NewStateRepository(db)
		recorder = stateRepo
		history = stateRepo
		store = repository.NewAddressRepository(db)
	}

	// Redis 优先作为地址缓存
	if cfg.RedisURL != "" {
		rdb, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		store = geocoder.NewRedisStore(rdb, "")
		logger.Info("Using redis geocode cache")
	}

	// 逆地理编码
	resolver := geocoder.NewResolver(geocoder.Options{
		BaseURL:        cfg.NominatimURL,
		UserAgent:      cfg.GeocoderUserAgent,
		Language:       cfg.GeocoderLanguage,
		MinInterval:    cfg.GeocoderMinInterval,
		Timeout:        cfg.GeocoderTimeout,
		MaxRetries:     cfg.GeocoderMaxRetries,
		RetryDelay:     cfg.GeocoderRetryDelay,
		RateLimitDelay: cfg.GeocoderRateLimitDelay,
		Store:          store,
	}, logger)

	// 后端 API 客户端与状态引擎
	backendClient := backend.NewClient(cfg.BackendURL)
	engine := status.NewEngine(status.Config{
		Warehouse:         status.Point{Lat: cfg.WarehouseLat, Lng: cfg.WarehouseLng},
		WarehouseRadiusKm: cfg.WarehouseRadiusKm,
		ChargeThreshold:   cfg.ChargeThreshold,
		MinAutonomyKm:     cfg.MinAutonomyKm,
	})

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	// 创建车队服务
	fleetService := service.NewFleetService(cfg, logger, backendClient, engine, recorder, wsHub)
	wsHub.SetSnapshotProvider(fleetService.Snapshot)

	if err := fleetService.Start(ctx); err != nil {
		logger.Error("Failed to start fleet service", zap.Error(err))
	}

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := handlers.NewHandler(logger, backendClient, fleetService, resolver, history, wsHub)
	router := handlers.NewRouter(handler)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	fleetService.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// newRedisClient 连接 Redis 并检查可用性
func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
