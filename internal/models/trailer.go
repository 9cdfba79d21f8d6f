package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/langchou/fleetgazer/internal/status"
)

// Trailer 后端返回的拖车信息
type Trailer struct {
	ID                      int64    `json:"id"`
	ManagerID               int64    `json:"manager_id"`
	DailyKmTraveled         float64  `json:"daily_km_traveled"`
	Downtime                float64  `json:"downtime"`
	Longitude               string   `json:"actual_pos_long"` // 后端以字符串返回坐标
	Latitude                string   `json:"actual_pos_lat"`
	TotalDeliveryCount      int64    `json:"total_delivery_count"`
	TechnicalDisponibility  float64  `json:"technical_disponibility"` // 技术可用率 (%)
	AverageDowntime         float64  `json:"average_downtime"`
	TotalEnergyConsumption  float64  `json:"total_energy_consumption"`
	DailyEnergyConsumption  float64  `json:"daily_energy_consumption"`
	EnergyConsumptionPer100 float64  `json:"energy_consumption_per_100_km"`
	YearlyMaintenanceCost   float64  `json:"yearly_maintenance_cost"`
	PurchasedDate           string   `json:"purchased_date"`
	Autonomy                float64  `json:"autonomy"`
	TotalKmTraveled         float64  `json:"total_km_traveled"`
	ActiveAlertsCount       string   `json:"active_alerts_count,omitempty"`
	BatteryLevel            *float64 `json:"battery_level,omitempty"`
	SerialNumber            string   `json:"serial_number,omitempty"`
}

// Position 解析字符串坐标
func (t *Trailer) Position() (status.Point, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(t.Latitude), 64)
	if err != nil {
		return status.Point{}, fmt.Errorf("%w: trailer %d latitude %q", status.ErrInvalidTelemetry, t.ID, t.Latitude)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(t.Longitude), 64)
	if err != nil {
		return status.Point{}, fmt.Errorf("%w: trailer %d longitude %q", status.ErrInvalidTelemetry, t.ID, t.Longitude)
	}
	return status.Point{Lat: lat, Lng: lng}, nil
}

// Telemetry 转换为状态引擎的输入并校验
func (t *Trailer) Telemetry() (status.Telemetry, error) {
	pos, err := t.Position()
	if err != nil {
		return status.Telemetry{}, err
	}

	tel := status.Telemetry{
		ID:                 t.ID,
		Position:           pos,
		DailyKm:            t.DailyKmTraveled,
		TotalKm:            t.TotalKmTraveled,
		AutonomyKm:         t.Autonomy,
		ConsumptionPer100:  t.EnergyConsumptionPer100,
		TechnicalAvailable: t.TechnicalDisponibility,
		Battery:            t.BatteryLevel,
	}
	if err := tel.Validate(); err != nil {
		return status.Telemetry{}, fmt.Errorf("trailer %d: %w", t.ID, err)
	}
	return tel, nil
}

// Performance 每日运营数据
type Performance struct {
	Date       string `json:"date"`
	Distance   string `json:"distance"`
	Energy     string `json:"energy"`
	Deliveries string `json:"deliveries"`
}

// TrailerDetails 拖车详情（含告警、事故和历史表现）
type TrailerDetails struct {
	Trailer         Trailer       `json:"trailer"`
	Alerts          []Alert       `json:"alerts"`
	Performance     []Performance `json:"performance"`
	RecentIncidents []Incident    `json:"recent_incidents"`
}
