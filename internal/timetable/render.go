package timetable

import (
	"fmt"
	"html"
	"strings"
)

// RenderOptions 渲染选项
type RenderOptions struct {
	// ClassLayout 班级课表显示教师，个人课表显示班级
	ClassLayout bool
	Locale      string
}

// RenderTable 将网格渲染为 HTML 表格
// 纯函数：相同的网格与合并计划总是得到字节相同的输出
func RenderTable(g *Grid, plan *MergePlan, opts RenderOptions) string {
	var b strings.Builder

	b.WriteString("<table>\n<tr>\n<td class=\"width1\"></td>\n")
	for _, date := range g.Days {
		fmt.Fprintf(&b, "<td class=\"width2 centered\"><b>%s</b> <span class=\"smallbleak\">%s</span></td>\n",
			WeekdayAbbrev(date, opts.Locale), date.Format("02.01."))
	}
	b.WriteString("</tr>\n")

	for _, slot := range g.Slots() {
		fmt.Fprintf(&b, "<tr>\n<td class=\"height2 text_top\">%s Uhr</td>\n", slot)
		for _, date := range g.Days {
			if plan.Absorbed(slot, date) {
				continue
			}
			cell := g.Cell(slot, date)
			if cell == nil {
				b.WriteString("<td></td>\n")
				continue
			}
			renderCell(&b, cell, plan.Span(slot, date), opts)
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
	return b.String()
}

func renderCell(b *strings.Builder, c *Cell, span int, opts RenderOptions) {
	rowspan := ""
	if span > 1 {
		rowspan = fmt.Sprintf(" rowspan=\"%d\"", span)
	}
	fmt.Fprintf(b, "<td class=\"centered %s\"%s>", c.Class, rowspan)

	if !opts.ClassLayout {
		fmt.Fprintf(b, "<span class=\"spaceright\">%s</span>", esc(c.Group.Current))
		writeOriginal(b, c.Group)
	}

	b.WriteString(esc(c.Subject.Current))
	writeOriginal(b, c.Subject)

	if opts.ClassLayout {
		fmt.Fprintf(b, "<span class=\"spaceleft\">%s</span>", esc(c.Teacher.Current))
		writeOriginal(b, c.Teacher)
	}

	fmt.Fprintf(b, "<br/><small>@ %s", esc(c.Room.Current))
	writeOriginal(b, c.Room)
	b.WriteString("</small>")

	if info := strings.TrimSpace(c.InfoText); info != "" {
		b.WriteString("<br/>" + esc(info))
	}
	b.WriteString("</td>\n")
}

// writeOriginal 原始值以删除线显示；当前值也存在时加左间距
func writeOriginal(b *strings.Builder, v DualValue) {
	class := "no"
	if v.HasBoth() {
		class += " spaceleft"
	}
	fmt.Fprintf(b, "<span class=\"%s\">%s</span>", class, esc(v.Original))
}

func esc(s string) string {
	return html.EscapeString(s)
}
