package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 容器镜像中可能没有系统时区数据库

	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/api/handler"
	"github.com/mathisdt/webuntis-fetcher/internal/api/router"
	"github.com/mathisdt/webuntis-fetcher/internal/mail"
	"github.com/mathisdt/webuntis-fetcher/internal/repository"
	"github.com/mathisdt/webuntis-fetcher/internal/scheduler"
	"github.com/mathisdt/webuntis-fetcher/internal/service"
	"github.com/mathisdt/webuntis-fetcher/pkg/database"
	applogger "github.com/mathisdt/webuntis-fetcher/pkg/logger"
	"github.com/mathisdt/webuntis-fetcher/pkg/redis"
)

const usage = `用法: fetcher <mode> [config]
  mode    timetable | messages | serve
  config  配置文件路径，缺省时查找 ./config/config.yaml 或 ./config.yaml
`

// 退出码
const (
	exitOK           = 0
	exitError        = 1
	exitMessageIDCfg = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || !validMode(args[0]) {
		fmt.Fprint(stderr, usage)
		return exitError
	}
	mode := args[0]

	var path string
	if len(args) >= 2 {
		path = args[1]
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(stderr, "配置文件不存在: %s\n", path)
			return exitError
		}
	}

	// 1. 加载配置
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return exitError
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	// 3. 依赖注入: 基础设施 → Service
	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("初始化失败", zap.Error(err))
		return exitError
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "timetable":
		err = app.timetable(ctx, stdout)
	case "messages":
		err = app.svc.Message.ForwardAll(ctx)
	case "serve":
		err = app.serve(ctx)
	}
	if err != nil {
		logger.Error("运行失败", zap.String("mode", mode), zap.Error(err))
		if errors.Is(err, service.ErrMessageIDFileMissing) {
			return exitMessageIDCfg
		}
		return exitError
	}
	return exitOK
}

func validMode(mode string) bool {
	switch mode {
	case "timetable", "messages", "serve":
		return true
	}
	return false
}

// app 运行期依赖；db 与 rdb 仅在配置使用时创建
type app struct {
	cfg    *config.Config
	svc    *service.Service
	db     interface{ Close() error }
	rdb    *redis.Client
	logger *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var repo *repository.Repository
	if cfg.UsesStatisticsDB() {
		db, err := database.NewDB(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("数据库连接失败: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			a.db = sqlDB
		}
		repo = repository.NewRepository(db)
	}

	if cfg.UsesRedis() {
		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("Redis 连接失败: %w", err)
		}
		a.rdb = rdb
	}

	mailer, err := mail.New(&cfg.Mail, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.svc = service.NewService(service.Deps{
		Config: cfg,
		Repo:   repo,
		Redis:  a.rdb,
		Mailer: mailer,
		Logger: logger,
	})
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
}

// timetable 生成时间表并写入统计；未配置输出文件时写到 stdout
func (a *app) timetable(ctx context.Context, stdout io.Writer) error {
	opts := service.PageOptions{RecordStatistics: true}
	if a.cfg.Output.TimetableFile == "" {
		return a.svc.Timetable.RenderPage(ctx, stdout, opts)
	}
	return scheduler.RenderToFile(ctx, a.svc.Timetable, a.cfg.Output.TimetableFile, opts)
}

// serve 启动 HTTP 服务与定时任务，收到信号后优雅关闭
func (a *app) serve(ctx context.Context) error {
	sched, err := scheduler.New(a.cfg, a.svc, a.logger)
	if err != nil {
		return err
	}

	h := handler.NewHandler(a.cfg, a.svc)
	engine := router.Setup(h, a.rdb, a.logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	sched.Start()

	select {
	case <-ctx.Done():
		a.logger.Info("收到关闭信号，开始优雅关闭...")
	case err := <-errCh:
		if err != nil {
			sched.Stop(context.Background())
			return fmt.Errorf("HTTP 服务器异常: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("服务器关闭异常", zap.Error(err))
	}
	sched.Stop(shutdownCtx)

	a.logger.Info("服务器已关闭")
	return nil
}
