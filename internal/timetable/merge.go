package timetable

import "time"

type cellKey struct {
	slot Clock
	date time.Time
}

// MergePlan 跨行合并计划
// 与网格分离计算：锚点单元格记录跨越的行数，被合并的单元格指向其锚点
type MergePlan struct {
	spans   map[cellKey]int
	anchors map[cellKey]cellKey
}

// PlanMerges 按时间段升序计算合并计划
//
// 对每个未被合并的单元格，依次检查紧随其后的时间段：
// 内容相同，或锚点结束时间晚于下一格的开始时间（跨时间段的长课），
// 则并入锚点；遇到第一个不满足的时间段即停止，不再向后查找。
func PlanMerges(g *Grid) *MergePlan {
	p := &MergePlan{
		spans:   make(map[cellKey]int),
		anchors: make(map[cellKey]cellKey),
	}

	slots := g.Slots()
	for i, slot := range slots {
		for _, date := range g.Days {
			key := cellKey{slot: slot, date: date}
			if _, absorbed := p.anchors[key]; absorbed {
				continue
			}
			anchor := g.Cell(slot, date)
			if anchor == nil {
				continue
			}

			span := 1
			for _, next := range slots[i+1:] {
				cell := g.Cell(next, date)
				if cell == nil || !mergeable(anchor, cell) {
					break
				}
				p.anchors[cellKey{slot: next, date: date}] = key
				span++
			}
			if span > 1 {
				p.spans[key] = span
			}
		}
	}
	return p
}

func mergeable(anchor, next *Cell) bool {
	return anchor.SameContent(next) || anchor.End > next.Start
}

// Span 单元格跨越的行数，未合并为 1
func (p *MergePlan) Span(slot Clock, date time.Time) int {
	if n, ok := p.spans[cellKey{slot: slot, date: DateOnly(date)}]; ok {
		return n
	}
	return 1
}

// Absorbed 单元格是否已并入上方的锚点（渲染时跳过）
func (p *MergePlan) Absorbed(slot Clock, date time.Time) bool {
	_, ok := p.anchors[cellKey{slot: slot, date: DateOnly(date)}]
	return ok
}

// Effective 返回该位置实际显示的内容：被合并的单元格返回其锚点
func (p *MergePlan) Effective(g *Grid, slot Clock, date time.Time) *Cell {
	if anchor, ok := p.anchors[cellKey{slot: slot, date: DateOnly(date)}]; ok {
		return g.Cell(anchor.slot, anchor.date)
	}
	return g.Cell(slot, date)
}

// SpanEnd 锚点及其合并单元格中最晚的结束时间
func (p *MergePlan) SpanEnd(g *Grid, slot Clock, date time.Time) Clock {
	anchor := g.Cell(slot, date)
	if anchor == nil {
		return slot
	}
	end := anchor.End
	span := p.Span(slot, date)
	if span == 1 {
		return end
	}
	slots := g.Slots()
	for i, s := range slots {
		if s != slot {
			continue
		}
		for _, next := range slots[i+1 : i+span] {
			if c := g.Cell(next, date); c != nil && c.End > end {
				end = c.End
			}
		}
		break
	}
	return end
}
