package models

// Envelope 后端统一响应格式
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

// Piece 零件维护阈值配置
type Piece struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	TriggerLimit   float64 `json:"trigger_limit"`
	WarningPercent float64 `json:"warning_percent"`
}

// PieceUpdate 更新零件阈值
type PieceUpdate struct {
	Name           string  `json:"name"`
	TriggerLimit   float64 `json:"trigger_limit"`
	WarningPercent float64 `json:"warning_percent"`
}

type DailyIncident struct {
	Date          string `json:"date"`
	IncidentCount int    `json:"incident_count"`
}

type VehicleKm struct {
	VehicleID    int64   `json:"vehicle_id"`
	VehicleLabel string  `json:"vehicle_label"`
	DailyKm      float64 `json:"daily_km"`
}

type VehicleUsage struct {
	VehicleID      int64   `json:"vehicle_id"`
	VehicleLabel   string  `json:"vehicle_label"`
	UsageMinutes   float64 `json:"usage_minutes"`
	UsageFormatted string  `json:"usage_formatted"`
}

type VehicleIncident struct {
	VehicleID     int64  `json:"vehicle_id"`
	VehicleLabel  string `json:"vehicle_label"`
	IncidentCount int    `json:"incident_count"`
}

// DashboardStats 仪表盘统计
type DashboardStats struct {
	TotalVehicles  int `json:"total_vehicles"`
	ActiveVehicles int `json:"active_vehicles"`
	ActiveAlerts   int `json:"active_alerts"`
	GlobalAverage  struct {
		TotalKilometers       float64         `json:"total_kilometers"`
		DailyIncidentsAverage float64         `json:"daily_incidents_average"`
		DailyIncidentsChart   []DailyIncident `json:"daily_incidents_chart"`
	} `json:"global_average"`
	VehicleAverage struct {
		DailyKilometers           float64 `json:"daily_kilometers"`
		DailyUsageTime            string  `json:"daily_usage_time"`
		IncidentsPerVehicle       float64 `json:"incidents_per_vehicle"`
		IncidentsPerVehiclePerDay float64 `json:"incidents_per_vehicle_per_day"`
	} `json:"vehicle_average"`
	VehicleCharts struct {
		DailyKilometers []VehicleKm       `json:"daily_kilometers"`
		DailyUsage      []VehicleUsage    `json:"daily_usage"`
		Incidents       []VehicleIncident `json:"incidents"`
	} `json:"vehicle_charts"`
	PeriodDays int `json:"period_days"`
}

// AverageKm 每车每日平均里程
type AverageKm struct {
	AverageKmPerVehiclePerDay *float64 `json:"average_km_per_vehicle_per_day,omitempty"`
}

// Credentials 登录/注册请求
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Session 登录成功后后端返回的令牌
type Session struct {
	Token string `json:"token"`
}
