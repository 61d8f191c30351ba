package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/model"
	pkgerrors "github.com/mathisdt/webuntis-fetcher/pkg/errors"
)

// ── Mock UntisClient ──

type mockClient struct {
	loginErr   error
	persons    []model.Element
	weekly     map[int]*model.WeeklyData // 按人员 ID；缺失时返回 ErrNoResultData
	timegrid   []model.TimegridRow
	messages   model.MessageList
	details    map[int]*model.MessageDetail
	files      map[string][]byte
	confirmErr error

	confirmed    []int
	lastMonday   time.Time
	lastClassReq bool
}

func (m *mockClient) Login(context.Context) error { return m.loginErr }

func (m *mockClient) PageConfig(_ context.Context, classSchedule bool, monday time.Time) (*model.PageConfigResponse, error) {
	m.lastClassReq = classSchedule
	m.lastMonday = monday
	resp := &model.PageConfigResponse{}
	resp.Data.Elements = m.persons
	return resp, nil
}

func (m *mockClient) WeeklyData(_ context.Context, _ bool, id int, _ time.Time) (*model.WeeklyData, error) {
	w, ok := m.weekly[id]
	if !ok {
		return nil, pkgerrors.ErrNoResultData
	}
	return w, nil
}

func (m *mockClient) Timegrid(context.Context) ([]model.TimegridRow, error) { return m.timegrid, nil }

func (m *mockClient) Messages(context.Context) (*model.MessageList, error) { return &m.messages, nil }

func (m *mockClient) Message(_ context.Context, id int) (*model.MessageDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("message %d not found", id)
}

func (m *mockClient) AttachmentStorage(_ context.Context, id string) (*model.AttachmentStorage, error) {
	return &model.AttachmentStorage{DownloadURL: "mem://" + id}, nil
}

func (m *mockClient) Download(_ context.Context, s *model.AttachmentStorage) ([]byte, error) {
	data, ok := m.files[s.DownloadURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *mockClient) ConfirmRead(_ context.Context, id int) (*model.ReadConfirmation, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	m.confirmed = append(m.confirmed, id)
	return &model.ReadConfirmation{ConfirmationDate: "2024-01-15T08:00:00Z"}, nil
}

// factoryFor 按课表名返回对应的 mock
func factoryFor(clients map[string]*mockClient) ClientFactory {
	return func(sec *config.SectionConfig) (UntisClient, error) {
		c, ok := clients[sec.Name]
		if !ok {
			return nil, errors.New("no client for " + sec.Name)
		}
		return c, nil
	}
}

// ── 测试数据 ──

// testNow 周六，目标周为 2024-01-15 起
var testNow = time.Date(2024, 1, 13, 10, 0, 0, 0, time.UTC)

func testElements() []model.Element {
	return []model.Element{
		{Type: model.ElementGroup, ID: 11, Name: "5a", DisplayName: "5a"},
		{Type: model.ElementTeacher, ID: 21, Name: "SMI"},
		{Type: model.ElementTeacher, ID: 22, Name: "JON"},
		{Type: model.ElementSubject, ID: 31, DisplayName: "Math"},
		{Type: model.ElementSubject, ID: 32, DisplayName: "English"},
		{Type: model.ElementRoom, ID: 41, DisplayName: "R101"},
	}
}

func weeklyFor(id int, periods ...model.Period) map[int]*model.WeeklyData {
	return map[int]*model.WeeklyData{
		id: {
			ElementPeriods: map[string][]model.Period{strconv.Itoa(id): periods},
			Elements:       testElements(),
		},
	}
}

func lesson(date, start, end int, state string, refs ...model.ElementRef) model.Period {
	return model.Period{Date: date, StartTime: start, EndTime: end, CellState: state, Elements: refs}
}

func ref(typ model.ElementType, id int) model.ElementRef {
	return model.ElementRef{Type: typ, ID: id}
}

func classClient() *mockClient {
	return &mockClient{
		persons: []model.Element{{Type: model.ElementStudent, ID: 7, Forename: "Anna", LongName: "Schmidt"}},
		weekly: weeklyFor(7,
			lesson(20240115, 800, 845, model.CellStateStandard, ref(model.ElementSubject, 31), ref(model.ElementTeacher, 21), ref(model.ElementRoom, 41)),
			lesson(20240115, 845, 930, model.CellStateStandard, ref(model.ElementSubject, 31), ref(model.ElementTeacher, 21), ref(model.ElementRoom, 41)),
			lesson(20240116, 800, 845, model.CellStateCancel, ref(model.ElementSubject, 32), ref(model.ElementTeacher, 22), ref(model.ElementRoom, 41)),
		),
		timegrid: []model.TimegridRow{
			{Period: 1, StartTime: 800, EndTime: 845},
			{Period: 2, StartTime: 845, EndTime: 930},
		},
	}
}

func personalClient() *mockClient {
	return &mockClient{
		persons: []model.Element{{Type: model.ElementTeacher, ID: 21, Forename: "Sam", LongName: "Smith"}},
		weekly: weeklyFor(21,
			lesson(20240117, 1000, 1045, model.CellStateStandard, ref(model.ElementGroup, 11), ref(model.ElementSubject, 31), ref(model.ElementRoom, 41)),
		),
	}
}

func classSection() config.SectionConfig {
	return config.SectionConfig{
		Name:      "anna",
		Server:    "https://untis.example.org",
		School:    "demo",
		Username:  "anna",
		Firstname: "Anna",
		Lastname:  "Schmidt",
		Class:     "5a",

		StatisticsBackend:       "xlsx",
		TeacherFullnameResolver: "static",
		TeacherFullnames:        []config.TeacherName{{Short: "SMI", Name: "Smith"}},
		MessageStore:            "file",
		MailFrom:                "untis@example.org",
		MailTo:                  "parents@example.org",
	}
}

func personalSection() config.SectionConfig {
	return config.SectionConfig{
		Name:      "sam",
		Server:    "https://untis.example.org",
		School:    "demo",
		Username:  "sam",
		Firstname: "Sam",
		Lastname:  "Smith",

		StatisticsBackend:       "xlsx",
		TeacherFullnameResolver: "identity",
		MessageStore:            "file",
		MailFrom:                "untis@example.org",
		MailTo:                  "sam@example.org",
	}
}

func testConfig(sections ...config.SectionConfig) *config.Config {
	return &config.Config{
		Output:   config.OutputConfig{Locale: "de_DE", Timezone: "UTC"},
		Sections: sections,
	}
}
