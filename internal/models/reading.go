package models

import "time"

// Reading 电池电压读数
type Reading struct {
	ID        int64     `json:"id" db:"id"`
	BatteryID string    `json:"battery_id" db:"battery_id"`
	Voltage   float64   `json:"voltage" db:"voltage"`     // 伏特
	Timestamp time.Time `json:"timestamp" db:"timestamp"` // UTC
}

// ReadingInput 待写入的单条读数（尚未规范化）
type ReadingInput struct {
	Voltage   float64
	Timestamp time.Time
}

// ReadingFilter 时间范围过滤，两端均为闭区间，nil 表示该侧不限制
type ReadingFilter struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

// ReadingPage 查询结果
type ReadingPage struct {
	Items      []*Reading `json:"items"`
	TotalItems int        `json:"total_items"` // 仅为本页条数，不是全表总数
}
