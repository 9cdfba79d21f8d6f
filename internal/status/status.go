package status

import (
	"encoding/json"
	"fmt"
)

// Status 拖车运行状态
type Status uint8

const (
	Available Status = iota + 1
	OnMission
	Charging
	Maintenance
)

// All 按优先级从低到高列出全部状态
var All = []Status{Available, OnMission, Charging, Maintenance}

// String 返回前端使用的状态标签
func (s Status) String() string {
	switch s {
	case Available:
		return "Available"
	case OnMission:
		return "On Mission"
	case Charging:
		return "Charging"
	case Maintenance:
		return "Maintenance"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Valid 是否为已定义的状态
func (s Status) Valid() bool {
	switch s {
	case Available, OnMission, Charging, Maintenance:
		return true
	default:
		return false
	}
}

// Color 地图标记与标签颜色
func (s Status) Color() string {
	switch s {
	case Available:
		return "#22c55e"
	case OnMission:
		return "#ebb813"
	case Charging:
		return "#3b82f6"
	case Maintenance:
		return "#ef4444"
	default:
		return ""
	}
}

// Severity 标签级别
func (s Status) Severity() string {
	switch s {
	case Available:
		return "success"
	case OnMission:
		return "warning"
	case Charging:
		return "info"
	case Maintenance:
		return "danger"
	default:
		return ""
	}
}

// ParseStatus 解析状态标签，兼容 "On Mission" 与 "on_mission"
func ParseStatus(s string) (Status, error) {
	switch s {
	case "Available", "available":
		return Available, nil
	case "On Mission", "on_mission", "OnMission":
		return OnMission, nil
	case "Charging", "charging":
		return Charging, nil
	case "Maintenance", "maintenance":
		return Maintenance, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal invalid status %d", uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseStatus(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
