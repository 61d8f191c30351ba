package timetable

import "time"

// Class 单元格分类，决定渲染时的背景色
type Class string

const (
	ClassUnset  Class = ""
	ClassNormal Class = "normal"
	ClassExam   Class = "exam"
	ClassChange Class = "change"
	ClassCancel Class = "cancel"
	ClassWarn   Class = "warn"
)

// Kind 值的种类
type Kind int

const (
	// KindCurrent 实际（替换后）的值，正常显示
	KindCurrent Kind = iota
	// KindOriginal 原计划或已取消的值，以删除线显示
	KindOriginal
)

// noDataSentinel WebUntis 用于表示“无数据”的占位名
const noDataSentinel = "---"

// DualValue 某一类别（班级/教师/科目/教室）的当前值与原始值
// 空字符串表示没有该种类的值
type DualValue struct {
	Current  string
	Original string
}

func (v *DualValue) add(kind Kind, name string) {
	if name == "" || name == noDataSentinel {
		return
	}
	target := &v.Current
	if kind == KindOriginal {
		target = &v.Original
	}
	if *target == "" {
		*target = name
	} else {
		*target += ", " + name
	}
}

// IsEmpty 当前值与原始值都不存在
func (v DualValue) IsEmpty() bool {
	return v.Current == "" && v.Original == ""
}

// HasBoth 当前值与原始值同时存在
func (v DualValue) HasBoth() bool {
	return v.Current != "" && v.Original != ""
}

// Planned 原计划值：有原始值时取原始值，否则取当前值
func (v DualValue) Planned() string {
	if v.Original != "" {
		return v.Original
	}
	return v.Current
}

// Cell 一个 (时间段, 日期) 上的聚合单元，可能由多个课时合并而来
type Cell struct {
	Date  time.Time
	Start Clock
	End   Clock // 所有课时中最晚的结束时间
	Class Class

	Group   DualValue
	Teacher DualValue
	Subject DualValue
	Room    DualValue

	InfoText string
}

// SameContent 分类与四个类别的值都相同
func (c *Cell) SameContent(o *Cell) bool {
	return c.Class == o.Class &&
		c.Group == o.Group &&
		c.Teacher == o.Teacher &&
		c.Subject == o.Subject &&
		c.Room == o.Room
}
