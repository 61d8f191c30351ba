package timetable

import (
	"strings"

	"github.com/mathisdt/webuntis-fetcher/internal/model"
)

// NameResolver 将教师缩写解析为全名，无映射时原样返回
type NameResolver interface {
	FullName(short string) string
}

// Normalizer 将原始课时折叠进所属单元格
type Normalizer struct {
	elements           *ElementTable
	names              NameResolver
	ignoredInfoTexts   map[string]bool
	teacherAsCancelled string
	roomAsCancelled    string
}

// NewNormalizer 创建 Normalizer
func NewNormalizer(elements *ElementTable, opts Options) *Normalizer {
	ignored := make(map[string]bool, len(opts.IgnoreInfoText))
	for _, t := range opts.IgnoreInfoText {
		ignored[t] = true
	}
	return &Normalizer{
		elements:           elements,
		names:              opts.Names,
		ignoredInfoTexts:   ignored,
		teacherAsCancelled: opts.TeacherAsCancelled,
		roomAsCancelled:    opts.RoomAsCancelled,
	}
}

// Classify 按 cellState 推进单元格分类
//
//   - EXAM 总是得到 exam
//   - 变更类状态总是得到 change
//   - CANCEL/FREE 得到 cancel，但不覆盖已有的 change
//   - STANDARD 仅在尚无分类时得到 normal
//   - 其他未知状态得到 warn
func Classify(current Class, cellState string) Class {
	switch cellState {
	case model.CellStateExam:
		return ClassExam
	case model.CellStateShift, model.CellStateSubstitution, model.CellStateRoomSubstitution,
		model.CellStateAdditional, model.CellStateSubstText:
		return ClassChange
	case model.CellStateCancel, model.CellStateFree:
		if current == ClassChange {
			return current
		}
		return ClassCancel
	case model.CellStateStandard:
		if current == ClassUnset {
			return ClassNormal
		}
		return current
	default:
		return ClassWarn
	}
}

// kindFor 已取消的课时，其当前值记为原始值以删除线显示
func kindFor(cellState string) Kind {
	if cellState == model.CellStateCancel || cellState == model.CellStateFree {
		return KindOriginal
	}
	return KindCurrent
}

// Fold 将一个课时合并到单元格
// 同一单元格的多个课时按到达顺序依次折叠，值的拼接顺序与之一致
func (n *Normalizer) Fold(cell *Cell, p *model.Period) {
	cell.Class = Classify(cell.Class, p.CellState)
	if n.markedAsCancelled(p) {
		cell.Class = ClassCancel
	}

	kind := kindFor(p.CellState)

	for _, id := range p.IDs(model.ElementGroup) {
		cell.Group.add(kind, n.name(model.ElementGroup, id))
	}
	for _, id := range p.IDs(model.ElementTeacher) {
		cell.Teacher.add(kind, n.teacherName(id))
	}
	for _, id := range p.OrgIDs(model.ElementTeacher) {
		cell.Teacher.add(KindOriginal, n.teacherName(id))
	}
	for _, id := range p.IDs(model.ElementSubject) {
		cell.Subject.add(kind, n.name(model.ElementSubject, id))
	}
	for _, id := range p.OrgIDs(model.ElementSubject) {
		cell.Subject.add(KindOriginal, n.name(model.ElementSubject, id))
	}
	for _, id := range p.IDs(model.ElementRoom) {
		cell.Room.add(kind, n.name(model.ElementRoom, id))
	}
	for _, id := range p.OrgIDs(model.ElementRoom) {
		cell.Room.add(KindOriginal, n.name(model.ElementRoom, id))
	}

	if end := ClockFromHHMM(p.EndTime); end > cell.End {
		cell.End = end
	}

	for _, text := range []string{p.LessonText, p.PeriodText, p.PeriodInfo, p.SubstText, p.StaffText} {
		n.appendInfoText(cell, text)
	}
	if cell.InfoText != "" {
		cell.InfoText = dedupWords(cell.InfoText)
	}
}

// markedAsCancelled 配置的教师或教室出现在课时上时，整格视为取消
func (n *Normalizer) markedAsCancelled(p *model.Period) bool {
	if n.teacherAsCancelled != "" {
		for _, id := range p.IDs(model.ElementTeacher) {
			if name, ok := n.elements.Name(model.ElementTeacher, id); ok && name == n.teacherAsCancelled {
				return true
			}
		}
	}
	if n.roomAsCancelled != "" {
		for _, id := range p.IDs(model.ElementRoom) {
			if name, ok := n.elements.Name(model.ElementRoom, id); ok && name == n.roomAsCancelled {
				return true
			}
		}
	}
	return false
}

// name 查找失败时返回空字符串，add 会忽略它
func (n *Normalizer) name(typ model.ElementType, id int) string {
	name, _ := n.elements.Name(typ, id)
	return name
}

func (n *Normalizer) teacherName(id int) string {
	short, ok := n.elements.Name(model.ElementTeacher, id)
	if !ok || n.names == nil {
		return short
	}
	if full := n.names.FullName(short); full != "" {
		return full
	}
	return short
}

// appendInfoText 追加附加文本，避免重复
//   - 已包含在现有文本中的跳过
//   - 包含现有文本的（更完整的版本）替换现有文本
func (n *Normalizer) appendInfoText(cell *Cell, text string) {
	if text == "" || n.ignoredInfoTexts[text] || strings.Contains(cell.InfoText, text) {
		return
	}
	if strings.Contains(text, strings.TrimSpace(cell.InfoText)) {
		cell.InfoText = text
		return
	}
	cell.InfoText += " " + text
}

// dedupWords 按空白拆分并去除重复单词，保留首次出现的顺序
// 比较为字面相等："Raum." 与 "Raum" 视为不同单词
func dedupWords(text string) string {
	words := strings.Fields(text)
	seen := make(map[string]bool, len(words))
	result := words[:0]
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		result = append(result, w)
	}
	return strings.Join(result, " ")
}
