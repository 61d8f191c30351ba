package timetable

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ICSOptions iCalendar 导出选项
type ICSOptions struct {
	Name        string
	ClassLayout bool
	Location    *time.Location // 网格时刻所属时区，nil 时为 UTC
	Generated   time.Time
}

// ExportICS 将一周网格导出为 iCalendar
// 每个锚点单元格对应一个事件，合并的行并入同一事件；已取消的课标记为 CANCELLED
func ExportICS(g *Grid, plan *MergePlan, opts ICSOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//webuntis-fetcher//Stundenplan//DE")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, slot := range g.Slots() {
		for _, date := range g.Days {
			if plan.Absorbed(slot, date) {
				continue
			}
			cell := g.Cell(slot, date)
			if cell == nil || cell.Subject.IsEmpty() {
				continue
			}

			uid := fmt.Sprintf("%s-%s-%s@webuntis-fetcher",
				strings.ReplaceAll(opts.Name, " ", "_"), date.Format("20060102"), strings.ReplaceAll(slot.String(), ":", ""))
			event := cal.AddEvent(uid)
			event.SetDtStampTime(opts.Generated)
			event.SetStartAt(inLocation(At(date, slot), loc))
			event.SetEndAt(inLocation(At(date, plan.SpanEnd(g, slot, date)), loc))
			event.SetSummary(eventSummary(cell, opts.ClassLayout))
			if room := cell.Room.Planned(); room != "" {
				event.SetLocation(room)
			}
			if cell.InfoText != "" {
				event.SetDescription(cell.InfoText)
			}
			if cell.Class == ClassCancel {
				event.SetStatus(ics.ObjectStatusCancelled)
			} else {
				event.SetStatus(ics.ObjectStatusConfirmed)
			}
		}
	}
	return cal.Serialize()
}

// inLocation 将网格中的“本地时刻”解释为 loc 时区的时间
func inLocation(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

func eventSummary(c *Cell, classLayout bool) string {
	summary := c.Subject.Current
	if summary == "" {
		summary = c.Subject.Original
	}
	who := c.Teacher
	if !classLayout {
		who = c.Group
	}
	if name := who.Current; name != "" {
		summary += " (" + name + ")"
	} else if name := who.Original; name != "" {
		summary += " (" + name + ")"
	}
	return summary
}
