package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/names"
	"github.com/mathisdt/webuntis-fetcher/internal/repository"
	"github.com/mathisdt/webuntis-fetcher/internal/statistics"
	"github.com/mathisdt/webuntis-fetcher/internal/timetable"
	"github.com/mathisdt/webuntis-fetcher/internal/untis"
	pkgerrors "github.com/mathisdt/webuntis-fetcher/pkg/errors"
)

// ── 课表模块业务错误 ──

var (
	ErrSectionNotFound         = errors.New("课表不存在")
	ErrStatisticsNotConfigured = errors.New("该课表未配置统计")
	ErrStatisticsDBUnavailable = errors.New("统计数据库不可用")
	// ErrNothingRendered 所有课表都失败，页面只有头尾
	ErrNothingRendered = errors.New("没有成功生成任何课表")
)

// ── TimetableService 接口 ──────────────────────────────────
//
// 设计说明：
//   - 每次渲染都重新获取数据并重建网格，只有统计数据跨次保留。
//   - 课表之间相互独立：一个课表失败只记录日志，其余课表照常输出，
//     所有失败最后合并为一个错误返回。
//   - 响应中没有课表数据的课表不输出任何内容，不算失败。
//   - 有失败且没有任何课表成功时，错误中包含 ErrNothingRendered，
//     调用方据此保留旧页面。
// ─────────────────────────────────────────────────────────────

// PageOptions 页面渲染选项
type PageOptions struct {
	Now              time.Time // 零值时取当前时间
	RecordStatistics bool      // 写入统计数据与 ICS 文件（定时任务/命令行）
}

// SectionResult 单个课表的渲染结果
type SectionResult struct {
	Section *config.SectionConfig
	Monday  time.Time
	Grid    *timetable.Grid
	Plan    *timetable.MergePlan
	HTML    string
}

// TimetableService 课表模块业务接口
type TimetableService interface {
	// RenderPage 输出包含所有课表的完整 HTML 页面
	// 全部课表失败时返回的错误包含 ErrNothingRendered
	RenderPage(ctx context.Context, w io.Writer, opts PageOptions) error
	// BuildSection 获取并渲染单个课表
	BuildSection(ctx context.Context, sec *config.SectionConfig, opts PageOptions) (*SectionResult, error)
	// Calendar 导出单个课表本周的 iCalendar
	Calendar(ctx context.Context, section string, now time.Time) (string, error)
	// StatisticsWorkbook 导出单个课表的统计 Excel
	StatisticsWorkbook(ctx context.Context, section string) (*bytes.Buffer, string, error)
}

type timetableService struct {
	cfg       *config.Config
	repo      *repository.Repository
	newClient ClientFactory
	location  *time.Location
	logger    *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(cfg *config.Config, repo *repository.Repository, newClient ClientFactory, logger *zap.Logger) TimetableService {
	loc, err := time.LoadLocation(cfg.Output.Timezone)
	if err != nil {
		logger.Warn("无法加载时区，使用 UTC", zap.String("timezone", cfg.Output.Timezone), zap.Error(err))
		loc = time.UTC
	}
	return &timetableService{
		cfg:       cfg,
		repo:      repo,
		newClient: newClient,
		location:  loc,
		logger:    logger,
	}
}

// ════════════════════════════════════════════════════════════
// RenderPage — 输出完整页面
// ════════════════════════════════════════════════════════════

func (s *timetableService) RenderPage(ctx context.Context, w io.Writer, opts PageOptions) error {
	opts.Now = s.localNow(opts.Now)

	if err := timetable.WritePageHeader(w, opts.Now); err != nil {
		return fmt.Errorf("写入页面头部失败: %w", err)
	}

	var (
		errs     []error
		rendered int
	)
	for i := range s.cfg.Sections {
		sec := &s.cfg.Sections[i]
		result, err := s.BuildSection(ctx, sec, opts)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrNoResultData) {
				s.logger.Info("没有课表数据，跳过", zap.String("section", sec.Name))
				continue
			}
			s.logger.Error("课表生成失败", zap.String("section", sec.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sec.Name, err))
			continue
		}
		if _, err := io.WriteString(w, result.HTML); err != nil {
			return fmt.Errorf("写入课表失败: %w", err)
		}
		rendered++
	}

	if err := timetable.WritePageFooter(w); err != nil {
		return fmt.Errorf("写入页面结尾失败: %w", err)
	}
	if rendered == 0 && len(errs) > 0 {
		errs = append([]error{ErrNothingRendered}, errs...)
	}
	return errors.Join(errs...)
}

// ════════════════════════════════════════════════════════════
// BuildSection — 单个课表
// ════════════════════════════════════════════════════════════
//
// 流程：
//   1. 登录，按名字在 pageconfig 中找到人员/班级 ID
//   2. 获取一周课时（班级课表另取课时长度表）
//   3. 构建网格 → 合并计划 → HTML
//   4. 统计：读取已有记录，需要时写入本周并保存，输出统计行
//   5. 需要时写出 ICS 文件

func (s *timetableService) BuildSection(ctx context.Context, sec *config.SectionConfig, opts PageOptions) (*SectionResult, error) {
	now := s.localNow(opts.Now)
	monday := timetable.TargetMonday(now)
	log := s.logger.With(zap.String("section", sec.Name))

	g, err := s.buildGrid(ctx, sec, monday)
	if err != nil {
		return nil, err
	}
	plan := timetable.PlanMerges(g)

	var b strings.Builder
	b.WriteString(timetable.SectionHeading(sec.Firstname, sec.Class))
	b.WriteString(timetable.RenderTable(g, plan, timetable.RenderOptions{
		ClassLayout: sec.IsClassSchedule(),
		Locale:      s.cfg.Output.Locale,
	}))

	if sec.HasStatistics() {
		footer, err := s.updateStatistics(ctx, sec, g, plan, opts.RecordStatistics)
		if err != nil {
			return nil, err
		}
		if footer != "" {
			b.WriteString(footer)
			b.WriteString("\n")
		}
	}

	if opts.RecordStatistics && sec.ICSFile != "" {
		if err := s.writeICS(sec, g, plan, now); err != nil {
			return nil, err
		}
	}

	log.Info("课表已生成", zap.Time("monday", monday), zap.Int("slots", len(g.Slots())))

	return &SectionResult{
		Section: sec,
		Monday:  monday,
		Grid:    g,
		Plan:    plan,
		HTML:    b.String(),
	}, nil
}

func (s *timetableService) buildGrid(ctx context.Context, sec *config.SectionConfig, monday time.Time) (*timetable.Grid, error) {
	client, err := s.newClient(sec)
	if err != nil {
		return nil, fmt.Errorf("创建客户端失败: %w", err)
	}
	if err := client.Login(ctx); err != nil {
		return nil, err
	}

	classSchedule := sec.IsClassSchedule()
	pageCfg, err := client.PageConfig(ctx, classSchedule, monday)
	if err != nil {
		return nil, err
	}
	personID, err := untis.FindPerson(pageCfg, sec.Firstname, sec.Lastname)
	if err != nil {
		return nil, err
	}

	weekly, err := client.WeeklyData(ctx, classSchedule, personID, monday)
	if err != nil {
		return nil, err
	}

	opts := timetable.Options{
		ClassLayout:        classSchedule,
		IgnoreInfoText:     sec.IgnoredInfotexts(),
		TeacherAsCancelled: sec.TeacherAsCancelled,
		RoomAsCancelled:    sec.RoomAsCancelled,
	}
	if classSchedule {
		if opts.Timegrid, err = client.Timegrid(ctx); err != nil {
			return nil, err
		}
	}
	opts.Names, err = names.New(ctx, sec.TeacherFullnameResolver, names.Config{Static: sec.TeacherFullnameMap()})
	if err != nil {
		return nil, err
	}

	periods := weekly.ElementPeriods[strconv.Itoa(personID)]
	return timetable.Build(monday, periods, weekly.Elements, opts), nil
}

func (s *timetableService) updateStatistics(ctx context.Context, sec *config.SectionConfig, g *timetable.Grid, plan *timetable.MergePlan, record bool) (string, error) {
	store, err := s.statisticsStore(sec)
	if err != nil {
		return "", err
	}
	tracker := statistics.NewTracker(store)
	if err := tracker.Open(ctx); err != nil {
		return "", err
	}
	if record {
		statistics.Record(tracker, g, plan)
		if err := tracker.Save(ctx); err != nil {
			return "", err
		}
	} else {
		tracker.Recount()
	}
	return tracker.FooterHTML(), nil
}

func (s *timetableService) statisticsStore(sec *config.SectionConfig) (statistics.Store, error) {
	switch {
	case sec.StatisticsBackend == "db":
		if s.repo == nil {
			return nil, ErrStatisticsDBUnavailable
		}
		return statistics.NewDBStore(s.repo.Statistics, sec.Name), nil
	case sec.StatisticsFile != "":
		return statistics.NewXLSXStore(sec.StatisticsFile, sec.StatisticsTitle()), nil
	default:
		return nil, ErrStatisticsNotConfigured
	}
}

func (s *timetableService) writeICS(sec *config.SectionConfig, g *timetable.Grid, plan *timetable.MergePlan, now time.Time) error {
	data := timetable.ExportICS(g, plan, timetable.ICSOptions{
		Name:        sec.Name,
		ClassLayout: sec.IsClassSchedule(),
		Location:    s.location,
		Generated:   now,
	})
	if dir := filepath.Dir(sec.ICSFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	if err := os.WriteFile(sec.ICSFile, []byte(data), 0o644); err != nil {
		return fmt.Errorf("写入 ICS 文件失败: %w", err)
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// Calendar / StatisticsWorkbook — HTTP 导出
// ════════════════════════════════════════════════════════════

func (s *timetableService) Calendar(ctx context.Context, section string, now time.Time) (string, error) {
	sec, err := s.section(section)
	if err != nil {
		return "", err
	}
	now = s.localNow(now)
	g, err := s.buildGrid(ctx, sec, timetable.TargetMonday(now))
	if err != nil {
		return "", err
	}
	return timetable.ExportICS(g, timetable.PlanMerges(g), timetable.ICSOptions{
		Name:        sec.Name,
		ClassLayout: sec.IsClassSchedule(),
		Location:    s.location,
		Generated:   now,
	}), nil
}

func (s *timetableService) StatisticsWorkbook(ctx context.Context, section string) (*bytes.Buffer, string, error) {
	sec, err := s.section(section)
	if err != nil {
		return nil, "", err
	}
	store, err := s.statisticsStore(sec)
	if err != nil {
		return nil, "", err
	}
	tracker := statistics.NewTracker(store)
	if err := tracker.Open(ctx); err != nil {
		return nil, "", err
	}
	buf, err := statistics.Export(sec.StatisticsTitle(), tracker.Entries(), tracker.Recount())
	if err != nil {
		return nil, "", err
	}
	return buf, sec.Name + ".xlsx", nil
}

func (s *timetableService) section(name string) (*config.SectionConfig, error) {
	for i := range s.cfg.Sections {
		if s.cfg.Sections[i].Name == name {
			return &s.cfg.Sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, name)
}

// localNow 课表所在时区的当前时间
func (s *timetableService) localNow(now time.Time) time.Time {
	if now.IsZero() {
		now = time.Now()
	}
	return now.In(s.location)
}
