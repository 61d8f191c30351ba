package timetable

import (
	"time"

	"github.com/mathisdt/webuntis-fetcher/internal/model"
)

// testMonday 测试周的周一：2024-01-15
var testMonday = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

var testElements = []model.Element{
	{Type: model.ElementGroup, ID: 1, DisplayName: "5a"},
	{Type: model.ElementGroup, ID: 2, DisplayName: "5b"},
	{Type: model.ElementTeacher, ID: 1, Name: "Smith", LongName: "John Smith"},
	{Type: model.ElementTeacher, ID: 2, Name: "Jones", LongName: "Mary Jones"},
	{Type: model.ElementTeacher, ID: 3, Name: "Adams", LongName: "Ann Adams"},
	{Type: model.ElementTeacher, ID: 9, Name: "---"},
	{Type: model.ElementSubject, ID: 1, DisplayName: "Math"},
	{Type: model.ElementSubject, ID: 2, DisplayName: "English"},
	{Type: model.ElementRoom, ID: 1, DisplayName: "R101"},
	{Type: model.ElementRoom, ID: 2, DisplayName: "R202"},
	{Type: model.ElementRoom, ID: 3, DisplayName: "Turnhalle"},
}

func ref(t model.ElementType, id int) model.ElementRef {
	return model.ElementRef{Type: t, ID: id}
}

func subst(t model.ElementType, id, orgID int) model.ElementRef {
	return model.ElementRef{Type: t, ID: id, OrgID: orgID}
}

func period(date, start, end int, state string, refs ...model.ElementRef) model.Period {
	return model.Period{
		Date:      date,
		StartTime: start,
		EndTime:   end,
		CellState: state,
		Elements:  refs,
	}
}

// mathSmith 周一 Math/Smith/R101 的标准课时
func mathSmith(start, end int) model.Period {
	return period(20240115, start, end, model.CellStateStandard,
		ref(model.ElementGroup, 1), ref(model.ElementTeacher, 1),
		ref(model.ElementSubject, 1), ref(model.ElementRoom, 1))
}

func build(periods []model.Period, opts Options) (*Grid, *MergePlan) {
	g := Build(testMonday, periods, testElements, opts)
	return g, PlanMerges(g)
}
