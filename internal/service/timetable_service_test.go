package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
)

func newTestTimetableService(cfg *config.Config, clients map[string]*mockClient) TimetableService {
	return NewTimetableService(cfg, nil, factoryFor(clients), zap.NewNop())
}

// ════════════════════════════════════════════════════════════
// RenderPage
// ════════════════════════════════════════════════════════════

func TestRenderPage_AllSections(t *testing.T) {
	class, personal := classClient(), personalClient()
	svc := newTestTimetableService(testConfig(classSection(), personalSection()),
		map[string]*mockClient{"anna": class, "sam": personal})

	var out bytes.Buffer
	if err := svc.RenderPage(context.Background(), &out, PageOptions{Now: testNow}); err != nil {
		t.Fatalf("RenderPage 失败: %v", err)
	}
	page := out.String()

	for _, want := range []string{
		"Stand: 10:00 Uhr, 13.01.2024",
		"<h2>Anna (5a)</h2>",
		`<td class="centered normal" rowspan="2">Math`,
		`<span class="spaceleft">Smith</span>`,
		`<td class="centered cancel"><span class="no">English</span><span class="spaceleft"></span><span class="no">JON</span>`,
		"<h2>Sam</h2>",
		`<span class="spaceright">5a</span>`,
		"</html>",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("页面缺少 %q", want)
		}
	}
	if strings.Index(page, "<h2>Anna (5a)</h2>") > strings.Index(page, "<h2>Sam</h2>") {
		t.Error("课表应按配置顺序输出")
	}
	if !class.lastClassReq || personal.lastClassReq {
		t.Error("班级课表与个人课表的请求类型错误")
	}
	if got := class.lastMonday.Format("2006-01-02"); got != "2024-01-15" {
		t.Errorf("目标周一错误: %s", got)
	}
}

func TestRenderPage_SectionFailureIsIsolated(t *testing.T) {
	class, personal := classClient(), personalClient()
	class.loginErr = errors.New("connection refused")
	svc := newTestTimetableService(testConfig(classSection(), personalSection()),
		map[string]*mockClient{"anna": class, "sam": personal})

	var out bytes.Buffer
	err := svc.RenderPage(context.Background(), &out, PageOptions{Now: testNow})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("期望返回课表错误，实际 %v", err)
	}
	if strings.Contains(out.String(), "<h2>Anna") {
		t.Error("失败的课表不应输出")
	}
	if !strings.Contains(out.String(), "<h2>Sam</h2>") || !strings.Contains(out.String(), "</html>") {
		t.Error("其余课表与页面结尾应照常输出")
	}
	if errors.Is(err, ErrNothingRendered) {
		t.Error("有课表成功时不应返回 ErrNothingRendered")
	}
}

func TestRenderPage_AllSectionsFail(t *testing.T) {
	class, personal := classClient(), personalClient()
	class.loginErr = errors.New("connection refused")
	personal.loginErr = errors.New("connection refused")
	svc := newTestTimetableService(testConfig(classSection(), personalSection()),
		map[string]*mockClient{"anna": class, "sam": personal})

	var out bytes.Buffer
	err := svc.RenderPage(context.Background(), &out, PageOptions{Now: testNow})
	if !errors.Is(err, ErrNothingRendered) {
		t.Fatalf("全部失败时期望 ErrNothingRendered，实际 %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("错误中应保留各课表的原因，实际 %v", err)
	}
}

func TestRenderPage_NoResultDataDoesNotCountAsRendered(t *testing.T) {
	class, personal := classClient(), personalClient()
	class.weekly = nil
	personal.loginErr = errors.New("connection refused")
	svc := newTestTimetableService(testConfig(classSection(), personalSection()),
		map[string]*mockClient{"anna": class, "sam": personal})

	var out bytes.Buffer
	err := svc.RenderPage(context.Background(), &out, PageOptions{Now: testNow})
	if err == nil {
		t.Fatal("期望返回 sam 的错误")
	}
	if !errors.Is(err, ErrNothingRendered) {
		t.Error("没有数据的课表不算成功，sam 失败后应返回 ErrNothingRendered")
	}
}

func TestRenderPage_NoResultData(t *testing.T) {
	class := classClient()
	class.weekly = nil
	svc := newTestTimetableService(testConfig(classSection()), map[string]*mockClient{"anna": class})

	var out bytes.Buffer
	if err := svc.RenderPage(context.Background(), &out, PageOptions{Now: testNow}); err != nil {
		t.Fatalf("没有课表数据不应视为错误: %v", err)
	}
	if strings.Contains(out.String(), "<h2>") {
		t.Error("没有课表数据时不应输出标题")
	}
}

func TestRenderPage_PersonNotFound(t *testing.T) {
	class := classClient()
	class.persons = nil
	svc := newTestTimetableService(testConfig(classSection()), map[string]*mockClient{"anna": class})

	var out bytes.Buffer
	if err := svc.RenderPage(context.Background(), &out, PageOptions{Now: testNow}); err == nil {
		t.Error("找不到人员时应返回错误")
	}
}

// ════════════════════════════════════════════════════════════
// 统计 / ICS
// ════════════════════════════════════════════════════════════

func TestBuildSection_RecordsStatisticsAndICS(t *testing.T) {
	dir := t.TempDir()
	sec := classSection()
	sec.StatisticsFile = filepath.Join(dir, "anna.xlsx")
	sec.ICSFile = filepath.Join(dir, "ics", "anna.ics")
	cfg := testConfig(sec)
	svc := newTestTimetableService(cfg, map[string]*mockClient{"anna": classClient()})

	result, err := svc.BuildSection(context.Background(), &cfg.Sections[0], PageOptions{Now: testNow, RecordStatistics: true})
	if err != nil {
		t.Fatalf("BuildSection 失败: %v", err)
	}

	// 3 个非空单元格：周一两节（合并），周二一节取消
	want := `<span class="bleak">seit 15.01.2024: Entfall = 33.3 % / Fach&auml;nderung = 0.0 % / personelle &Auml;nderung = 0.0 %</span>`
	if !strings.Contains(result.HTML, want) {
		t.Errorf("统计行错误:\n%s", result.HTML)
	}

	f, err := excelize.OpenFile(sec.StatisticsFile)
	if err != nil {
		t.Fatalf("统计文件未生成: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("Anna Schmidt - 5a")
	if len(rows) != 4 {
		t.Errorf("期望 1 行表头 + 3 行数据，实际 %d 行", len(rows))
	}

	data, err := os.ReadFile(sec.ICSFile)
	if err != nil {
		t.Fatalf("ICS 文件未生成: %v", err)
	}
	if !strings.Contains(string(data), "BEGIN:VCALENDAR") || strings.Count(string(data), "BEGIN:VEVENT") != 2 {
		t.Errorf("ICS 内容错误:\n%s", data)
	}
}

func TestBuildSection_ReadOnlyStatistics(t *testing.T) {
	sec := classSection()
	sec.StatisticsFile = filepath.Join(t.TempDir(), "anna.xlsx")
	sec.ICSFile = filepath.Join(t.TempDir(), "anna.ics")
	cfg := testConfig(sec)
	svc := newTestTimetableService(cfg, map[string]*mockClient{"anna": classClient()})

	result, err := svc.BuildSection(context.Background(), &cfg.Sections[0], PageOptions{Now: testNow})
	if err != nil {
		t.Fatalf("BuildSection 失败: %v", err)
	}
	if strings.Contains(result.HTML, `class="bleak"`) {
		t.Error("没有历史记录且不记录时不应输出统计行")
	}
	if _, err := os.Stat(sec.StatisticsFile); !os.IsNotExist(err) {
		t.Error("不记录时不应写统计文件")
	}
	if _, err := os.Stat(sec.ICSFile); !os.IsNotExist(err) {
		t.Error("不记录时不应写 ICS 文件")
	}
}

func TestBuildSection_DBStatisticsWithoutDatabase(t *testing.T) {
	sec := classSection()
	sec.StatisticsBackend = "db"
	cfg := testConfig(sec)
	svc := newTestTimetableService(cfg, map[string]*mockClient{"anna": classClient()})

	_, err := svc.BuildSection(context.Background(), &cfg.Sections[0], PageOptions{Now: testNow})
	if !errors.Is(err, ErrStatisticsDBUnavailable) {
		t.Errorf("期望 ErrStatisticsDBUnavailable，实际 %v", err)
	}
}

// ════════════════════════════════════════════════════════════
// Calendar / StatisticsWorkbook
// ════════════════════════════════════════════════════════════

func TestCalendar(t *testing.T) {
	svc := newTestTimetableService(testConfig(classSection()), map[string]*mockClient{"anna": classClient()})

	data, err := svc.Calendar(context.Background(), "anna", testNow)
	if err != nil {
		t.Fatalf("Calendar 失败: %v", err)
	}
	if !strings.Contains(data, "STATUS:CANCELLED") {
		t.Errorf("取消的课应标记为 CANCELLED:\n%s", data)
	}

	if _, err := svc.Calendar(context.Background(), "nobody", testNow); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("期望 ErrSectionNotFound，实际 %v", err)
	}
}

func TestStatisticsWorkbook(t *testing.T) {
	sec := classSection()
	sec.StatisticsFile = filepath.Join(t.TempDir(), "anna.xlsx")
	cfg := testConfig(sec, personalSection())
	svc := newTestTimetableService(cfg, map[string]*mockClient{"anna": classClient()})

	if _, err := svc.BuildSection(context.Background(), &cfg.Sections[0], PageOptions{Now: testNow, RecordStatistics: true}); err != nil {
		t.Fatalf("BuildSection 失败: %v", err)
	}

	buf, filename, err := svc.StatisticsWorkbook(context.Background(), "anna")
	if err != nil {
		t.Fatalf("StatisticsWorkbook 失败: %v", err)
	}
	if filename != "anna.xlsx" || buf.Len() == 0 {
		t.Errorf("导出结果错误: %s (%d bytes)", filename, buf.Len())
	}

	if _, _, err := svc.StatisticsWorkbook(context.Background(), "sam"); !errors.Is(err, ErrStatisticsNotConfigured) {
		t.Errorf("期望 ErrStatisticsNotConfigured，实际 %v", err)
	}
}
