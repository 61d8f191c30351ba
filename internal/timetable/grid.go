package timetable

import (
	"sort"
	"time"

	"github.com/mathisdt/webuntis-fetcher/internal/model"
)

const (
	// minSeedDuration 预置时间段的最短时长（分钟），更短的课间/早读不占一行
	minSeedDuration = 45
	// maxSeededSlots 最多预置的时间段数
	maxSeededSlots = 6
)

// Options 网格构建选项
type Options struct {
	// ClassLayout 班级课表：按 Timegrid 预置时间段，渲染教师列
	// 为 false 时为个人课表：时间段完全由课时数据决定，渲染班级列
	ClassLayout bool
	Timegrid    []model.TimegridRow

	IgnoreInfoText     []string
	TeacherAsCancelled string
	RoomAsCancelled    string
	Names              NameResolver
}

// Grid 一周的课表网格：时间段 → 日期 → 单元格
// 行存在但单元格为 nil 的位置渲染为空白格
type Grid struct {
	Days []time.Time
	rows map[Clock]map[time.Time]*Cell
}

// NewGrid 创建覆盖 monday 起 5 个工作日的空网格
func NewGrid(monday time.Time) *Grid {
	return &Grid{
		Days: WeekDays(monday),
		rows: make(map[Clock]map[time.Time]*Cell),
	}
}

// Build 由课时数据构建一周网格
// periods 按数据源返回的顺序折叠，不在本周 5 个工作日内的课时被忽略
func Build(monday time.Time, periods []model.Period, elements []model.Element, opts Options) *Grid {
	g := NewGrid(monday)
	if opts.ClassLayout {
		g.Seed(opts.Timegrid)
	}

	norm := NewNormalizer(NewElementTable(elements), opts)
	for i := range periods {
		p := &periods[i]
		date := DateFromYYYYMMDD(p.Date)
		if !g.covers(date) {
			continue
		}
		start := ClockFromHHMM(p.StartTime)
		cell := g.cellAt(start, date)
		norm.Fold(cell, p)
	}
	return g
}

// Seed 按课时长度表预置时间段
// 仅保留时长不少于 45 分钟的行，最多 6 行
func (g *Grid) Seed(rows []model.TimegridRow) {
	for _, row := range rows {
		start := ClockFromHHMM(row.StartTime)
		end := ClockFromHHMM(row.EndTime)
		if int(end-start) < minSeedDuration || len(g.rows) >= maxSeededSlots {
			continue
		}
		g.ensureSlot(start)
	}
}

// Slots 返回升序排列的时间段
func (g *Grid) Slots() []Clock {
	slots := make([]Clock, 0, len(g.rows))
	for s := range g.rows {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Cell 返回指定位置的单元格，空白位置返回 nil
func (g *Grid) Cell(slot Clock, date time.Time) *Cell {
	row, ok := g.rows[slot]
	if !ok {
		return nil
	}
	return row[DateOnly(date)]
}

func (g *Grid) covers(date time.Time) bool {
	for _, d := range g.Days {
		if d.Equal(date) {
			return true
		}
	}
	return false
}

func (g *Grid) ensureSlot(slot Clock) map[time.Time]*Cell {
	row, ok := g.rows[slot]
	if !ok {
		row = make(map[time.Time]*Cell, len(g.Days))
		g.rows[slot] = row
	}
	return row
}

func (g *Grid) cellAt(slot Clock, date time.Time) *Cell {
	row := g.ensureSlot(slot)
	key := DateOnly(date)
	cell, ok := row[key]
	if !ok {
		cell = &Cell{Date: key, Start: slot}
		row[key] = cell
	}
	return cell
}
