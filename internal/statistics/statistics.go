package statistics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/mathisdt/webuntis-fetcher/internal/timetable"
)

// Entry 一节课的计划/实际记录
// Timestamp 为课表所在地的本地时间，以 UTC 存放（不做时区换算）
type Entry struct {
	Timestamp      time.Time
	PlannedTeacher string
	PlannedSubject string
	ActualTeacher  string
	ActualSubject  string
	IsCancelled    bool
	Comment        string
}

// Summary 按全部记录计算的统计数
type Summary struct {
	All            int
	ChangedTeacher int
	ChangedSubject int
	Cancelled      int
}

func ratio(n, all int) float64 {
	if all == 0 {
		return 0
	}
	return float64(n) / float64(all)
}

// RatioCancelled 取消课时占比（0..1）
func (s Summary) RatioCancelled() float64 { return ratio(s.Cancelled, s.All) }

// RatioChangedSubject 科目变更占比（0..1）
func (s Summary) RatioChangedSubject() float64 { return ratio(s.ChangedSubject, s.All) }

// RatioChangedTeacher 教师变更占比（0..1）
func (s Summary) RatioChangedTeacher() float64 { return ratio(s.ChangedTeacher, s.All) }

// Store 统计数据的持久化方式
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry, summary Summary) error
}

// Tracker 记录一个课表的课时变更，每个课表使用独立实例
type Tracker struct {
	store   Store
	data    map[time.Time]Entry
	summary Summary
}

// NewTracker 创建 Tracker
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, data: make(map[time.Time]Entry)}
}

// Open 读取已有记录
func (t *Tracker) Open(ctx context.Context) error {
	entries, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("读取统计数据失败: %w", err)
	}
	for _, e := range entries {
		t.data[e.Timestamp] = e
	}
	return nil
}

// Put 写入一条记录，同一时间覆盖旧值
// 四个教师/科目字段全部为空时忽略
func (t *Tracker) Put(e Entry) {
	if e.PlannedTeacher == "" && e.PlannedSubject == "" && e.ActualTeacher == "" && e.ActualSubject == "" {
		return
	}
	t.data[e.Timestamp] = e
}

// Entries 按时间升序返回全部记录
func (t *Tracker) Entries() []Entry {
	entries := make([]Entry, 0, len(t.data))
	for _, e := range t.data {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries
}

// Save 重新计算统计数并写回存储
func (t *Tracker) Save(ctx context.Context) error {
	entries := t.Entries()
	t.summary = count(entries)
	if err := t.store.Save(ctx, entries, t.summary); err != nil {
		return fmt.Errorf("保存统计数据失败: %w", err)
	}
	return nil
}

// Summary 最近一次 Save 或 Recount 计算的统计数
func (t *Tracker) Summary() Summary {
	return t.summary
}

// Recount 不保存，只按当前记录重新计算统计数
func (t *Tracker) Recount() Summary {
	t.summary = count(t.Entries())
	return t.summary
}

// EarliestDate 最早的记录时间；没有记录时 ok 为 false
func (t *Tracker) EarliestDate() (time.Time, bool) {
	var earliest time.Time
	for ts := range t.data {
		if earliest.IsZero() || ts.Before(earliest) {
			earliest = ts
		}
	}
	return earliest, !earliest.IsZero()
}

// FooterHTML 课表下方的统计说明行；没有记录时为空
func (t *Tracker) FooterHTML() string {
	earliest, ok := t.EarliestDate()
	if !ok {
		return ""
	}
	return fmt.Sprintf(`<span class="bleak">seit %s: Entfall = %s %% / Fach&auml;nderung = %s %% / personelle &Auml;nderung = %s %%</span>`,
		earliest.Format("02.01.2006"),
		percent(t.summary.RatioCancelled()),
		percent(t.summary.RatioChangedSubject()),
		percent(t.summary.RatioChangedTeacher()),
	)
}

// percent 0..1 的比例转为保留一位小数的百分数
func percent(r float64) string {
	return strconv.FormatFloat(math.Round(r*1000)/10, 'f', 1, 64)
}

// count 取消的课时只计入取消数，其余按计划与实际是否不同计数
func count(entries []Entry) Summary {
	s := Summary{All: len(entries)}
	for _, e := range entries {
		if e.IsCancelled {
			s.Cancelled++
			continue
		}
		if e.PlannedTeacher != e.ActualTeacher {
			s.ChangedTeacher++
		}
		if e.PlannedSubject != e.ActualSubject {
			s.ChangedSubject++
		}
	}
	return s
}

// FromCell 由（合并后生效的）单元格生成记录
func FromCell(date time.Time, slot timetable.Clock, c *timetable.Cell) Entry {
	return Entry{
		Timestamp:      timetable.At(date, slot),
		PlannedTeacher: c.Teacher.Planned(),
		PlannedSubject: c.Subject.Planned(),
		ActualTeacher:  c.Teacher.Current,
		ActualSubject:  c.Subject.Current,
		IsCancelled:    c.Class == timetable.ClassCancel,
		Comment:        c.InfoText,
	}
}

// Record 把一周课表中所有非空单元格写入 Tracker
// 被合并的单元格使用合并起点的内容
func Record(t *Tracker, g *timetable.Grid, plan *timetable.MergePlan) {
	for _, slot := range g.Slots() {
		for _, date := range g.Days {
			c := plan.Effective(g, slot, date)
			if c == nil {
				continue
			}
			t.Put(FromCell(date, slot, c))
		}
	}
}
