package status

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	warehouse = Point{Lat: 47.2184, Lng: -1.5536}
	// 南特市区，距离仓库约 2km
	downtown = Point{Lat: 47.2130, Lng: -1.5300}
)

func ptr(v float64) *float64 { return &v }

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig())
}

func TestHaversineIdenticalPointsIsZero(t *testing.T) {
	require.Zero(t, Haversine(warehouse, warehouse))
	require.Zero(t, Haversine(Point{}, Point{}))
}

func TestHaversineIsSymmetric(t *testing.T) {
	pairs := [][2]Point{
		{warehouse, downtown},
		{{Lat: 48.8566, Lng: 2.3522}, {Lat: 51.5074, Lng: -0.1278}},
		{{Lat: -33.86, Lng: 151.21}, {Lat: 40.71, Lng: -74.0}},
	}
	for _, p := range pairs {
		require.InDelta(t, Haversine(p[0], p[1]), Haversine(p[1], p[0]), 1e-9)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	london := Point{Lat: 51.5074, Lng: -0.1278}
	require.InDelta(t, 343.5, Haversine(paris, london), 1.0)
}

func TestAtWarehouseUsesConfiguredRadius(t *testing.T) {
	e := newTestEngine()
	near := Telemetry{Position: Point{Lat: 47.2200, Lng: -1.5536}} // ~180m
	require.True(t, e.AtWarehouse(near))
	require.False(t, e.AtWarehouse(Telemetry{Position: downtown}))

	cfg := DefaultConfig()
	cfg.WarehouseRadiusKm = 0.1
	require.False(t, NewEngine(cfg).AtWarehouse(near))
}

func TestBatteryLevelDerivation(t *testing.T) {
	base := Telemetry{AutonomyKm: 120, ConsumptionPer100: 15}

	full := base
	level, ok := BatteryLevel(full)
	require.True(t, ok)
	require.Equal(t, 100.0, level)

	empty := base
	empty.DailyKm = 120
	level, ok = BatteryLevel(empty)
	require.True(t, ok)
	require.InDelta(t, 0.0, level, 1e-9)

	half := base
	half.DailyKm = 60
	level, ok = BatteryLevel(half)
	require.True(t, ok)
	require.InDelta(t, 50.0, level, 1e-9)

	over := base
	over.DailyKm = 500
	level, ok = BatteryLevel(over)
	require.True(t, ok)
	require.Equal(t, 0.0, level)
}

func TestBatteryLevelPrefersTelemetry(t *testing.T) {
	level, ok := BatteryLevel(Telemetry{Battery: ptr(42), AutonomyKm: 100, ConsumptionPer100: 10})
	require.True(t, ok)
	require.Equal(t, 42.0, level)
}

func TestBatteryLevelUndefinedWithoutCapacity(t *testing.T) {
	_, ok := BatteryLevel(Telemetry{DailyKm: 10, AutonomyKm: 0, ConsumptionPer100: 12})
	require.False(t, ok)

	_, ok = BatteryLevel(Telemetry{DailyKm: 10, AutonomyKm: 100, ConsumptionPer100: 0})
	require.False(t, ok)
}

func TestMaintenanceOverridesEverything(t *testing.T) {
	e := newTestEngine()
	cases := []Telemetry{
		{Position: warehouse, TechnicalAvailable: 40, DailyKm: 5, AutonomyKm: 100, ConsumptionPer100: 10},
		{Position: warehouse, TechnicalAvailable: 49.9, Battery: ptr(10), AutonomyKm: 100},
		{Position: warehouse, TechnicalAvailable: 0, Battery: ptr(100), AutonomyKm: 200},
		{Position: downtown, TechnicalAvailable: 10, DailyKm: 80, AutonomyKm: 100},
	}
	for _, tc := range cases {
		require.Equal(t, Maintenance, e.Derive(tc))
	}
}

func TestConcreteMaintenanceScenario(t *testing.T) {
	e := newTestEngine()
	st, err := e.Classify(Telemetry{
		Position:           warehouse,
		TechnicalAvailable: 40,
		DailyKm:            5,
		AutonomyKm:         100,
		ConsumptionPer100:  10,
	})
	require.NoError(t, err)
	require.Equal(t, Maintenance, st)
}

func TestConcreteChargingScenario(t *testing.T) {
	e := newTestEngine()
	st, err := e.Classify(Telemetry{
		Position:           warehouse,
		TechnicalAvailable: 90,
		DailyKm:            0,
		AutonomyKm:         80,
		ConsumptionPer100:  12,
		Battery:            ptr(60),
	})
	require.NoError(t, err)
	require.Equal(t, Charging, st)
}

func TestChargingAtWarehouseWithLowBattery(t *testing.T) {
	e := newTestEngine()
	for _, battery := range []float64{0, 30, 74.9} {
		st := e.Derive(Telemetry{Position: warehouse, TechnicalAvailable: 50, DailyKm: 12, AutonomyKm: 100, Battery: ptr(battery)})
		require.Equal(t, Charging, st, "battery %v", battery)
	}
}

func TestChargingFromDerivedBattery(t *testing.T) {
	e := newTestEngine()
	// 100km 续航跑了 40km，剩余 60%
	st := e.Derive(Telemetry{Position: warehouse, TechnicalAvailable: 80, DailyKm: 40, AutonomyKm: 100, ConsumptionPer100: 10})
	require.Equal(t, Charging, st)
}

func TestAvailableAtWarehouse(t *testing.T) {
	e := newTestEngine()
	st := e.Derive(Telemetry{Position: warehouse, TechnicalAvailable: 50, DailyKm: 0, AutonomyKm: 120, ConsumptionPer100: 10, Battery: ptr(75)})
	require.Equal(t, Available, st)

	st = e.Derive(Telemetry{Position: warehouse, TechnicalAvailable: 95, DailyKm: 0, AutonomyKm: 60, ConsumptionPer100: 10})
	require.Equal(t, Available, st)
}

func TestOnMissionAwayFromWarehouse(t *testing.T) {
	e := newTestEngine()
	for _, battery := range []*float64{nil, ptr(5), ptr(99)} {
		st := e.Derive(Telemetry{Position: downtown, TechnicalAvailable: 70, DailyKm: 3, AutonomyKm: 100, ConsumptionPer100: 10, Battery: battery})
		require.Equal(t, OnMission, st)
	}
}

func TestFallbackBranches(t *testing.T) {
	e := newTestEngine()

	// 在仓库、电量充足、已行驶：不满足可用条件，回落为执行任务
	st := e.Derive(Telemetry{Position: warehouse, TechnicalAvailable: 90, DailyKm: 5, AutonomyKm: 100, Battery: ptr(90)})
	require.Equal(t, OnMission, st)

	// 在仓库、未行驶但续航不足
	st = e.Derive(Telemetry{Position: warehouse, TechnicalAvailable: 90, DailyKm: 0, AutonomyKm: 30, Battery: ptr(90)})
	require.Equal(t, Available, st)

	// 不在仓库且未行驶
	st = e.Derive(Telemetry{Position: downtown, TechnicalAvailable: 90, DailyKm: 0, AutonomyKm: 100})
	require.Equal(t, Available, st)
}

func TestClassifyRejectsInvalidTelemetry(t *testing.T) {
	e := newTestEngine()
	cases := map[string]Telemetry{
		"nan latitude":      {Position: Point{Lat: math.NaN()}, TechnicalAvailable: 90},
		"inf daily":         {DailyKm: math.Inf(1), TechnicalAvailable: 90},
		"latitude range":    {Position: Point{Lat: 91}, TechnicalAvailable: 90},
		"longitude range":   {Position: Point{Lng: -181}, TechnicalAvailable: 90},
		"negative daily":    {DailyKm: -1, TechnicalAvailable: 90},
		"availability":      {TechnicalAvailable: 101},
		"battery range":     {TechnicalAvailable: 90, Battery: ptr(120)},
		"negative autonomy": {TechnicalAvailable: 90, AutonomyKm: -5},
	}
	for name, tc := range cases {
		_, err := e.Classify(tc)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrInvalidTelemetry), name)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr), name)
	}
}

func TestSnapshot(t *testing.T) {
	e := newTestEngine()
	c, err := e.Snapshot(Telemetry{Position: downtown, TechnicalAvailable: 90, DailyKm: 20, AutonomyKm: 100, ConsumptionPer100: 10})
	require.NoError(t, err)
	require.Equal(t, OnMission, c.Status)
	require.False(t, c.AtWarehouse)
	require.Greater(t, c.DistanceToWarehouse, 1.0)
	require.NotNil(t, c.Battery)
	require.InDelta(t, 80.0, *c.Battery, 1e-9)
	require.Equal(t, "#ebb813", c.Color)

	c, err = e.Snapshot(Telemetry{Position: downtown, TechnicalAvailable: 90})
	require.NoError(t, err)
	require.Nil(t, c.Battery)
}
