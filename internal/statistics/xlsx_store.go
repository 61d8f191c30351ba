package statistics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	maxSheetName    = 31
	statsSheetTitle = " - Statistics"
	timestampFormat = "yyyy-mm-dd hh:mm:ss"
	percentFormat   = `0.00" "%`
)

var dataHeader = []interface{}{
	"timestamp", "planned_teacher", "planned_subject",
	"actual_teacher", "actual_subject", "is_cancelled", "comment",
}

var statsHeader = []interface{}{
	"percentage_changed_teacher", "percentage_changed_subject", "percentage_cancelled",
}

// XLSXStore 统计数据保存在 Excel 文件中：数据表 + 统计表
type XLSXStore struct {
	Path  string
	Title string // 数据表名称，例如 "Anna Schmidt - 5a"
}

// NewXLSXStore 创建 XLSXStore
func NewXLSXStore(path, title string) *XLSXStore {
	return &XLSXStore{Path: path, Title: title}
}

// DataSheetName Excel 限制工作表名最长 31 个字符
func DataSheetName(title string) string {
	return truncateRunes(sanitizeSheetName(title), maxSheetName)
}

// StatsSheetName 统计表名称："<标题> - Statistics"，必要时截短标题
func StatsSheetName(title string) string {
	room := maxSheetName - utf8.RuneCountInString(statsSheetTitle)
	return truncateRunes(sanitizeSheetName(title), room) + statsSheetTitle
}

// Load 读取数据表，文件或工作表不存在时返回空
func (s *XLSXStore) Load(_ context.Context) ([]Entry, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("打开 %s 失败: %w", s.Path, err)
	}
	defer f.Close()

	sheet := DataSheetName(s.Title)
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("读取工作表 %q 失败: %w", sheet, err)
	}

	var entries []Entry
	for i, row := range rows {
		if i == 0 {
			continue // 表头
		}
		if len(row) == 0 || row[0] == "" {
			break
		}
		e, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("工作表 %q 第 %d 行: %w", sheet, i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseRow(row []string) (Entry, error) {
	col := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	ts, err := parseTimestamp(col(0))
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Timestamp:      ts,
		PlannedTeacher: col(1),
		PlannedSubject: col(2),
		ActualTeacher:  col(3),
		ActualSubject:  col(4),
		Comment:        col(6),
	}
	if v := col(5); v != "" {
		if e.IsCancelled, err = strconv.ParseBool(v); err != nil {
			return Entry{}, fmt.Errorf("is_cancelled 无法解析: %q", v)
		}
	}
	return e, nil
}

// parseTimestamp 原始值为 Excel 日期序列号，兼容手工输入的文本时间
func parseTimestamp(v string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("时间无法解析: %q", v)
		}
		return t.Round(time.Second), nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("时间无法解析: %q", v)
	}
	return t, nil
}

// Save 重写整个文件
func (s *XLSXStore) Save(_ context.Context, entries []Entry, summary Summary) error {
	f, err := BuildWorkbook(s.Title, entries, summary)
	if err != nil {
		return err
	}
	defer f.Close()

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	if err := f.SaveAs(s.Path); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", s.Path, err)
	}
	return nil
}

// Export 生成工作簿内容（HTTP 下载使用）
func Export(title string, entries []Entry, summary Summary) (*bytes.Buffer, error) {
	f, err := BuildWorkbook(title, entries, summary)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("生成 Excel 失败: %w", err)
	}
	return buf, nil
}

// BuildWorkbook 生成包含数据表与统计表的工作簿
func BuildWorkbook(title string, entries []Entry, summary Summary) (*excelize.File, error) {
	f := excelize.NewFile()

	dataSheet := DataSheetName(title)
	statsSheet := StatsSheetName(title)

	if err := f.SetSheetName(f.GetSheetName(0), dataSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("创建工作表 %q 失败: %w", dataSheet, err)
	}
	if _, err := f.NewSheet(statsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("创建工作表 %q 失败: %w", statsSheet, err)
	}

	if err := writeDataSheet(f, dataSheet, entries); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeStatsSheet(f, statsSheet, summary); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeDataSheet(f *excelize.File, sheet string, entries []Entry) error {
	if err := f.SetSheetRow(sheet, "A1", &dataHeader); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	widths := make([]int, len(dataHeader))
	for i, h := range dataHeader {
		widths[i] = len(h.(string))
	}
	widths[0] = len(timestampFormat)

	for i, e := range entries {
		row := []interface{}{
			e.Timestamp, e.PlannedTeacher, e.PlannedSubject,
			e.ActualTeacher, e.ActualSubject, e.IsCancelled, e.Comment,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", i+2, err)
		}
		for j, v := range []string{e.PlannedTeacher, e.PlannedSubject, e.ActualTeacher, e.ActualSubject, "", e.Comment} {
			if n := utf8.RuneCountInString(v); n > widths[j+1] {
				widths[j+1] = n
			}
		}
	}

	tsStyle, err := f.NewStyle(&excelize.Style{
		CustomNumFmt: strPtr(timestampFormat),
		Alignment:    &excelize.Alignment{Horizontal: "left"},
	})
	if err != nil {
		return fmt.Errorf("创建样式失败: %w", err)
	}
	if len(entries) > 0 {
		last, _ := excelize.CoordinatesToCellName(1, len(entries)+1)
		_ = f.SetCellStyle(sheet, "A2", last, tsStyle)
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, float64(w+1))
	}
	return nil
}

func writeStatsSheet(f *excelize.File, sheet string, summary Summary) error {
	if err := f.SetSheetRow(sheet, "A1", &statsHeader); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	values := []interface{}{
		summary.RatioChangedTeacher(),
		summary.RatioChangedSubject(),
		summary.RatioCancelled(),
	}
	if err := f.SetSheetRow(sheet, "A2", &values); err != nil {
		return fmt.Errorf("写入统计值失败: %w", err)
	}

	pctStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(percentFormat)})
	if err != nil {
		return fmt.Errorf("创建样式失败: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A2", "C2", pctStyle)

	for i, h := range statsHeader {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, float64(len(h.(string))+3))
	}
	return nil
}

// sanitizeSheetName 替换 Excel 工作表名中不允许的字符
func sanitizeSheetName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func strPtr(s string) *string { return &s }
