package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// 告警状态
const (
	AlertStatusCritic  = "critic"
	AlertStatusWarning = "warning"
	AlertStatusSolved  = "solved"
)

// Alert 零件告警
type Alert struct {
	ID                int64    `json:"id"`
	Status            string   `json:"status"` // critic, warning, solved
	PieceID           int64    `json:"piece_id"`
	TrailerID         int64    `json:"trailer_id"`
	AlertDate         string   `json:"alert_date"`
	ResolutionComment *string  `json:"resolution_comment"`
	ResolutionDate    *string  `json:"resolution_date"`
	ResolutionCost    *float64 `json:"resolution_cost"`
	PieceName         string   `json:"piece_name"`
}

// Active 是否未解决
func (a *Alert) Active() bool {
	return a.Status != AlertStatusSolved
}

// Severity 告警标签级别
func (a *Alert) Severity() string {
	switch a.Status {
	case AlertStatusCritic:
		return "danger"
	case AlertStatusWarning:
		return "warning"
	default:
		return "info"
	}
}

// Incident 事故记录
type Incident struct {
	ID          int64  `json:"id"`
	Message     string `json:"message"`
	TrailerID   int64  `json:"trailer_id"`
	CreatedAt   string `json:"created_at"`
	Seriousness string `json:"seriousness"` // 1-10
}

// Level 严重程度，无法解析时为 0
func (i *Incident) Level() int {
	level, err := strconv.Atoi(strings.TrimSpace(i.Seriousness))
	if err != nil {
		return 0
	}
	return level
}

// Severity 事故标签级别
func (i *Incident) Severity() string {
	switch level := i.Level(); {
	case level >= 7:
		return "danger"
	case level >= 4:
		return "warning"
	default:
		return "info"
	}
}

var alertPriority = map[string]int{
	AlertStatusCritic:  0,
	AlertStatusWarning: 1,
	AlertStatusSolved:  2,
}

func alertRank(status string) int {
	if p, ok := alertPriority[status]; ok {
		return p
	}
	return 999
}

// parseTime 解析后端时间，失败返回零值
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SortAlerts 按状态优先级排序（critic > warning > solved），同级按时间倒序
// 返回新切片，不修改入参
func SortAlerts(alerts []Alert) []Alert {
	sorted := make([]Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := alertRank(sorted[i].Status), alertRank(sorted[j].Status)
		if pi != pj {
			return pi < pj
		}
		return parseTime(sorted[i].AlertDate).After(parseTime(sorted[j].AlertDate))
	})
	return sorted
}

// SortIncidents 按严重程度倒序，同级按时间倒序
func SortIncidents(incidents []Incident) []Incident {
	sorted := make([]Incident, len(incidents))
	copy(sorted, incidents)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].Level(), sorted[j].Level()
		if li != lj {
			return li > lj
		}
		return parseTime(sorted[i].CreatedAt).After(parseTime(sorted[j].CreatedAt))
	})
	return sorted
}

// ActiveAlerts 过滤出未解决的告警
func ActiveAlerts(alerts []Alert) []Alert {
	active := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Active() {
			active = append(active, a)
		}
	}
	return active
}
