package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort string
	Debug      bool

	// Backend REST API
	BackendURL          string
	BackendServiceToken string // 轮询使用的服务令牌，为空则不启动轮询
	PollInterval        time.Duration

	// 可选存储
	DatabaseURL string
	RedisURL    string

	// Nominatim 逆地理编码
	NominatimURL           string
	GeocoderUserAgent      string
	GeocoderLanguage       string
	GeocoderMinInterval    time.Duration
	GeocoderTimeout        time.Duration
	GeocoderMaxRetries     int
	GeocoderRetryDelay     time.Duration
	GeocoderRateLimitDelay time.Duration

	// 仓库位置与状态阈值
	WarehouseLat      float64
	WarehouseLng      float64
	WarehouseRadiusKm float64
	ChargeThreshold   float64
	MinAutonomyKm     float64
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:             getEnv("PORT", "4000"),
		Debug:                  getEnvBool("DEBUG", false),
		BackendURL:             getEnv("BACKEND_URL", "http://localhost:3001"),
		BackendServiceToken:    getEnv("BACKEND_SERVICE_TOKEN", ""),
		PollInterval:           getEnvDuration("POLL_INTERVAL", 30*time.Second),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", ""),
		NominatimURL:           getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:      getEnv("GEOCODER_USER_AGENT", "QuadriFleet/1.0"),
		GeocoderLanguage:       getEnv("GEOCODER_LANGUAGE", "fr"),
		GeocoderMinInterval:    getEnvDuration("GEOCODER_MIN_INTERVAL", 1500*time.Millisecond),
		GeocoderTimeout:        getEnvDuration("GEOCODER_TIMEOUT", 10*time.Second),
		GeocoderMaxRetries:     getEnvInt("GEOCODER_MAX_RETRIES", 2),
		GeocoderRetryDelay:     getEnvDuration("GEOCODER_RETRY_DELAY", time.Second),
		GeocoderRateLimitDelay: getEnvDuration("GEOCODER_RATE_LIMIT_DELAY", 2*time.Second),
		WarehouseLat:           getEnvFloat("WAREHOUSE_LAT", 47.2184),
		WarehouseLng:           getEnvFloat("WAREHOUSE_LNG", -1.5536),
		WarehouseRadiusKm:      getEnvFloat("WAREHOUSE_RADIUS_KM", 0.5),
		ChargeThreshold:        getEnvFloat("CHARGE_THRESHOLD", 75),
		MinAutonomyKm:          getEnvFloat("MIN_AUTONOMY_KM", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.WarehouseRadiusKm <= 0 {
		return fmt.Errorf("WAREHOUSE_RADIUS_KM must be positive, got %v", c.WarehouseRadiusKm)
	}
	if c.WarehouseLat < -90 || c.WarehouseLat > 90 || c.WarehouseLng < -180 || c.WarehouseLng > 180 {
		return fmt.Errorf("warehouse position out of range: %v,%v", c.WarehouseLat, c.WarehouseLng)
	}
	if c.ChargeThreshold < 0 || c.ChargeThreshold > 100 {
		return fmt.Errorf("CHARGE_THRESHOLD must be within [0,100], got %v", c.ChargeThreshold)
	}
	if c.GeocoderMinInterval <= 0 {
		return fmt.Errorf("GEOCODER_MIN_INTERVAL must be positive")
	}
	if c.GeocoderTimeout <= 0 {
		return fmt.Errorf("GEOCODER_TIMEOUT must be positive")
	}
	if c.GeocoderMaxRetries < 0 {
		return fmt.Errorf("GEOCODER_MAX_RETRIES must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
