package status

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTelemetry 遥测数据不满足约定（非有限值或超出范围）
var ErrInvalidTelemetry = errors.New("invalid telemetry")

// Point 经纬度坐标（十进制度）
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Telemetry 拖车遥测快照，引擎只读不写
type Telemetry struct {
	ID                 int64
	Position           Point
	DailyKm            float64  // 当日行驶里程 (km)
	TotalKm            float64  // 累计里程 (km)
	AutonomyKm         float64  // 续航能力 (km)
	ConsumptionPer100  float64  // 百公里能耗 (kWh)
	TechnicalAvailable float64  // 技术可用率 (%)
	Battery            *float64 // 电量 (%)，nil 表示需要推算
}

// ValidationError 描述具体哪个字段不合法
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid telemetry: %s=%v", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTelemetry
}

// Validate 在进入状态计算前拒绝非法输入
func (t Telemetry) Validate() error {
	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"latitude", t.Position.Lat, -90, 90},
		{"longitude", t.Position.Lng, -180, 180},
		{"daily_km", t.DailyKm, 0, math.MaxFloat64},
		{"total_km", t.TotalKm, 0, math.MaxFloat64},
		{"autonomy", t.AutonomyKm, 0, math.MaxFloat64},
		{"energy_consumption_per_100_km", t.ConsumptionPer100, 0, math.MaxFloat64},
		{"technical_disponibility", t.TechnicalAvailable, 0, 100},
	}
	if t.Battery != nil {
		checks = append(checks, struct {
			field    string
			value    float64
			min, max float64
		}{"battery_level", *t.Battery, 0, 100})
	}

	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value < c.min || c.value > c.max {
			return &ValidationError{Field: c.field, Value: c.value}
		}
	}
	return nil
}
