package models

import "time"

// TrailerState 拖车状态区间记录，EndTime 为空表示当前状态
type TrailerState struct {
	ID        int64      `json:"id" db:"id"`
	TrailerID int64      `json:"trailer_id" db:"trailer_id"`
	Status    string     `json:"status" db:"status"` // Available, On Mission, Charging, Maintenance
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
}

// Duration 状态持续时长，未结束时按 now 计算
func (s *TrailerState) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}
