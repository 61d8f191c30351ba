package model

import "sort"

// ElementType WebUntis 元素类型
type ElementType int

const (
	ElementGroup   ElementType = 1
	ElementTeacher ElementType = 2
	ElementSubject ElementType = 3
	ElementRoom    ElementType = 4
	ElementStudent ElementType = 5
)

// Cell state 取值（WebUntis cellState）
const (
	CellStateStandard         = "STANDARD"
	CellStateExam             = "EXAM"
	CellStateShift            = "SHIFT"
	CellStateSubstitution     = "SUBSTITUTION"
	CellStateRoomSubstitution = "ROOMSUBSTITUTION"
	CellStateAdditional       = "ADDITIONAL"
	CellStateSubstText        = "SUBST_TEXT"
	CellStateCancel           = "CANCEL"
	CellStateFree             = "FREE"
)

// ElementRef 课时中对元素的引用
// OrgID 为 0 表示没有被替换的原始元素
type ElementRef struct {
	Type  ElementType `json:"type"`
	ID    int         `json:"id"`
	OrgID int         `json:"orgId"`
}

// Element 元素查找表中的一项
type Element struct {
	Type        ElementType `json:"type"`
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	LongName    string      `json:"longName"`
	DisplayName string      `json:"displayname"`
	Forename    string      `json:"forename"`
}

// Period 一次排定的课时，获取后不再修改
type Period struct {
	ID         int          `json:"id"`
	LessonID   int          `json:"lessonId"`
	Date       int          `json:"date"`      // YYYYMMDD
	StartTime  int          `json:"startTime"` // HHMM
	EndTime    int          `json:"endTime"`   // HHMM
	CellState  string       `json:"cellState"`
	Elements   []ElementRef `json:"elements"`
	LessonText string       `json:"lessonText"`
	PeriodText string       `json:"periodText"`
	PeriodInfo string       `json:"periodInfo"`
	SubstText  string       `json:"substText"`
	StaffText  string       `json:"staffText"`
}

// IDs 返回指定类型的元素 ID（升序）
func (p *Period) IDs(t ElementType) []int {
	return p.collect(t, func(r ElementRef) int { return r.ID })
}

// OrgIDs 返回指定类型被替换前的原始元素 ID（升序）
func (p *Period) OrgIDs(t ElementType) []int {
	return p.collect(t, func(r ElementRef) int { return r.OrgID })
}

func (p *Period) collect(t ElementType, pick func(ElementRef) int) []int {
	var ids []int
	for _, ref := range p.Elements {
		if ref.Type != t {
			continue
		}
		if id := pick(ref); id != 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// TimegridRow 学校课时长度表中的一行
type TimegridRow struct {
	Period    int `json:"period"`
	StartTime int `json:"startTime"` // HHMM
	EndTime   int `json:"endTime"`   // HHMM
}

// WeeklyData 一周课表数据
type WeeklyData struct {
	ElementPeriods map[string][]Period `json:"elementPeriods"`
	Elements       []Element           `json:"elements"`
}

// WeeklyDataResponse weekly/data 接口响应
// data.result 缺失表示没有课表数据
type WeeklyDataResponse struct {
	Data *struct {
		Result *struct {
			Data WeeklyData `json:"data"`
		} `json:"result"`
	} `json:"data"`
}

// Weekly 返回课表数据，缺失时返回 nil
func (r *WeeklyDataResponse) Weekly() *WeeklyData {
	if r == nil || r.Data == nil || r.Data.Result == nil {
		return nil
	}
	return &r.Data.Result.Data
}

// PageConfigResponse weekly/pageconfig 接口响应
type PageConfigResponse struct {
	Data struct {
		Elements []Element `json:"elements"`
	} `json:"data"`
}

// TimegridResponse timegrid 接口响应
type TimegridResponse struct {
	Data struct {
		Rows []TimegridRow `json:"rows"`
	} `json:"data"`
}
