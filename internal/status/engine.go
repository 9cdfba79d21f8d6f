package status

import "math"

// earthRadiusKm 地球平均半径
const earthRadiusKm = 6371.0

// maintenanceThreshold 技术可用率低于该值即视为维修
const maintenanceThreshold = 50.0

// Config 状态计算参数
type Config struct {
	Warehouse         Point
	WarehouseRadiusKm float64 // 距离仓库小于该半径视为在仓库
	ChargeThreshold   float64 // 在仓库且电量低于该值视为充电中 (%)
	MinAutonomyKm     float64 // 可用状态要求的最低续航 (km)
}

// DefaultConfig 南特仓库默认参数
func DefaultConfig() Config {
	return Config{
		Warehouse:         Point{Lat: 47.2184, Lng: -1.5536},
		WarehouseRadiusKm: 0.5,
		ChargeThreshold:   75,
		MinAutonomyKm:     50,
	}
}

// Engine 状态计算引擎，无状态、无 I/O
type Engine struct {
	cfg Config
}

// NewEngine 创建状态引擎
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config 返回引擎参数
func (e *Engine) Config() Config {
	return e.cfg
}

// Haversine 计算两点之间的大圆距离 (km)
func Haversine(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceToWarehouse 距离仓库的距离 (km)
func (e *Engine) DistanceToWarehouse(t Telemetry) float64 {
	return Haversine(t.Position, e.cfg.Warehouse)
}

// AtWarehouse 是否在仓库范围内
func (e *Engine) AtWarehouse(t Telemetry) bool {
	return e.DistanceToWarehouse(t) < e.cfg.WarehouseRadiusKm
}

// BatteryLevel 剩余电量 (%)
// 遥测自带电量时直接使用；否则按当日能耗与电池容量推算。
// 容量为 0 或无法计算时返回 ok=false，由调用方决定如何处理。
func BatteryLevel(t Telemetry) (level float64, ok bool) {
	if t.Battery != nil {
		return *t.Battery, true
	}

	consumed := t.DailyKm / 100 * t.ConsumptionPer100
	capacity := t.AutonomyKm / 100 * t.ConsumptionPer100
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return 0, false
	}

	remaining := 100 * (1 - consumed/capacity)
	return math.Max(0, math.Min(100, remaining)), true
}

// Derive 按固定优先级计算状态，先命中者生效：
// 维修 > 充电 > 可用 > 执行任务 > 兜底
func (e *Engine) Derive(t Telemetry) Status {
	if t.TechnicalAvailable < maintenanceThreshold {
		return Maintenance
	}

	atWarehouse := e.AtWarehouse(t)

	if atWarehouse {
		if battery, ok := BatteryLevel(t); ok && battery < e.cfg.ChargeThreshold {
			return Charging
		}
		if t.DailyKm == 0 && t.AutonomyKm > e.cfg.MinAutonomyKm {
			return Available
		}
	}

	if !atWarehouse && t.DailyKm > 0 {
		return OnMission
	}

	if t.DailyKm > 0 {
		return OnMission
	}
	return Available
}

// Classify 校验后计算状态
func (e *Engine) Classify(t Telemetry) (Status, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return e.Derive(t), nil
}

// Classification 状态及其判定依据，供 API 返回
type Classification struct {
	Status              Status   `json:"status"`
	AtWarehouse         bool     `json:"at_warehouse"`
	DistanceToWarehouse float64  `json:"distance_to_warehouse_km"`
	Battery             *float64 `json:"battery_remaining,omitempty"`
	Color               string   `json:"color"`
}

// Snapshot 校验并返回完整的判定结果
func (e *Engine) Snapshot(t Telemetry) (Classification, error) {
	st, err := e.Classify(t)
	if err != nil {
		return Classification{}, err
	}

	c := Classification{
		Status:              st,
		AtWarehouse:         e.AtWarehouse(t),
		DistanceToWarehouse: e.DistanceToWarehouse(t),
		Color:               st.Color(),
	}
	if battery, ok := BatteryLevel(t); ok {
		c.Battery = &battery
	}
	return c, nil
}
