package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/service"
)

// jobTimeout 单次任务的最长执行时间
const jobTimeout = 4 * time.Minute

// Scheduler serve 模式下的定时任务：刷新时间表文件、转发消息
// 同一任务上一次未结束时跳过本次触发
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	svc    *service.Service
	logger *zap.Logger
}

// New 按配置注册任务；cron 表达式为空的任务不注册
func New(cfg *config.Config, svc *service.Service, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		cfg:    cfg,
		svc:    svc,
		logger: logger,
	}

	if spec := cfg.Server.TimetableCron; spec != "" && cfg.Output.TimetableFile != "" {
		if _, err := s.cron.AddFunc(spec, s.run("timetable", s.RefreshTimetable)); err != nil {
			return nil, fmt.Errorf("无效的 timetable_cron %q: %w", spec, err)
		}
	}
	if spec := cfg.Server.MessagesCron; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.run("messages", s.svc.Message.ForwardAll)); err != nil {
			return nil, fmt.Errorf("无效的 messages_cron %q: %w", spec, err)
		}
	}
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.logger.Info("定时任务已启动", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// RefreshTimetable 重新生成时间表文件并记录统计
func (s *Scheduler) RefreshTimetable(ctx context.Context) error {
	return RenderToFile(ctx, s.svc.Timetable, s.cfg.Output.TimetableFile, service.PageOptions{RecordStatistics: true})
}

func (s *Scheduler) run(name string, job func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("定时任务失败", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("定时任务完成", zap.String("job", name), zap.Duration("latency", time.Since(start)))
	}
}

// RenderToFile 生成页面并整体替换目标文件
// 部分课表失败时页面仍然写出，错误一并返回；没有任何课表成功时保留旧文件
func RenderToFile(ctx context.Context, tt service.TimetableService, path string, opts service.PageOptions) error {
	var buf bytes.Buffer
	renderErr := tt.RenderPage(ctx, &buf, opts)
	if buf.Len() == 0 || errors.Is(renderErr, service.ErrNothingRendered) {
		return renderErr
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Join(renderErr, fmt.Errorf("创建目录失败: %w", err))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return errors.Join(renderErr, fmt.Errorf("写入时间表文件失败: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(renderErr, fmt.Errorf("替换时间表文件失败: %w", err))
	}
	return renderErr
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
