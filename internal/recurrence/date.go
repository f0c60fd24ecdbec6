// Package recurrence projects recurrence rules onto calendar dates and
// reconciles projected dates with materialized instances.
//
// All dates handled here are civil dates: a wall-clock year/month/day
// carried as a UTC midnight time.Time, so that day arithmetic never
// crosses a DST boundary.
package recurrence

import (
	"fmt"
	"time"
)

// DateLayout 是引擎唯一使用的日期文本格式
const DateLayout = "2006-01-02"

// Civil drops the time of day of t, keeping t's own wall-clock date.
func Civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today 返回 now 在 loc 下的日期，loc 为空时用 time.Local
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return Civil(now.In(loc))
}

// ParseDate 把 YYYY-MM-DD 解析为日期
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders the civil date of t.
func FormatDate(t time.Time) string {
	return Civil(t).Format(DateLayout)
}

// AddDays 把日期前后移动 n 天
func AddDays(t time.Time, n int) time.Time {
	return Civil(t).AddDate(0, 0, n)
}
