package timetable

import (
	"fmt"
	"time"
)

// Clock 一天中的时刻（自零点起的分钟数），作为网格的行键
type Clock int

// ClockFromHHMM 将 WebUntis 的 HHMM 整数转为 Clock（0 即 00:00）
func ClockFromHHMM(v int) Clock {
	return Clock(v/100*60 + v%100)
}

// Hour 小时
func (c Clock) Hour() int { return int(c) / 60 }

// Minute 分钟
func (c Clock) Minute() int { return int(c) % 60 }

// String 格式化为 HH:MM
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// DateFromYYYYMMDD 将 WebUntis 的 YYYYMMDD 整数转为日期
func DateFromYYYYMMDD(v int) time.Time {
	return time.Date(v/10000, time.Month(v/100%100), v%100, 0, 0, 0, 0, time.UTC)
}

// DateOnly 截取日期部分（UTC 零点）
// 网格中所有日期键都经过此函数，保证可作为 map 键比较
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At 组合日期与时刻，结果为不带时区语义的 UTC 时间
func At(date time.Time, c Clock) time.Time {
	return DateOnly(date).Add(time.Duration(c) * time.Minute)
}

// WeekDays 返回自 monday 起的 5 个工作日
func WeekDays(monday time.Time) []time.Time {
	start := DateOnly(monday)
	days := make([]time.Time, 5)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// TargetMonday 计算要展示的周的周一：以今天往后 2 天所在的周为准
// 周六起即展示下一周
func TargetMonday(now time.Time) time.Time {
	target := DateOnly(now).AddDate(0, 0, 2)
	offset := (int(target.Weekday()) + 6) % 7
	return target.AddDate(0, 0, -offset)
}
