package timetable

import "github.com/mathisdt/webuntis-fetcher/internal/model"

type elementKey struct {
	typ model.ElementType
	id  int
}

// ElementTable (类型, ID) → 元素的查找表
type ElementTable struct {
	byKey map[elementKey]model.Element
}

// NewElementTable 构建查找表，重复项以先出现者为准
func NewElementTable(elements []model.Element) *ElementTable {
	t := &ElementTable{byKey: make(map[elementKey]model.Element, len(elements))}
	for _, e := range elements {
		k := elementKey{typ: e.Type, id: e.ID}
		if _, ok := t.byKey[k]; !ok {
			t.byKey[k] = e
		}
	}
	return t
}

// Name 返回元素的显示名；教师使用 name（缩写），其余类型使用 displayname
func (t *ElementTable) Name(typ model.ElementType, id int) (string, bool) {
	e, ok := t.byKey[elementKey{typ: typ, id: id}]
	if !ok {
		return "", false
	}
	if typ == model.ElementTeacher {
		return e.Name, true
	}
	return e.DisplayName, true
}
