// Package normalize 读数入库前的时间与数值规范化
//
// 所有入库和比较用的时间都是 UTC 墙上时间；不带时区的输入一律视为 UTC，
// 从不按本地时区解释。
package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/langchou/voltgazer/internal/apperr"
)

// 带时区偏移的格式，优先尝试
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// 不带时区的格式，按 UTC 解析
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeTimestamp 转换为 UTC 并截断到微秒，与 PostgreSQL timestamp 精度一致
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ParseTimestamp 解析 ISO-8601 时间字符串并规范化为 UTC
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperr.Validation("timestamp", "is required")
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeTimestamp(t), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NormalizeTimestamp(t), nil
		}
	}

	return time.Time{}, apperr.Validation("timestamp", "invalid ISO-8601 datetime "+quote(s))
}

// ValidateVoltage 电压必须是有限实数
func ValidateVoltage(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperr.Validation("voltage", "must be a finite number")
	}
	return nil
}

// ValidateBatteryID 电池 ID 不能为空
func ValidateBatteryID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("battery_id", "must not be empty")
	}
	return nil
}

func quote(s string) string {
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	return "\"" + s + "\""
}
