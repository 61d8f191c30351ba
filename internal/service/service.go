package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/mail"
	"github.com/mathisdt/webuntis-fetcher/internal/model"
	"github.com/mathisdt/webuntis-fetcher/internal/repository"
	"github.com/mathisdt/webuntis-fetcher/internal/untis"
	"github.com/mathisdt/webuntis-fetcher/pkg/redis"
)

// UntisClient 业务层使用的 WebUntis 操作，由 *untis.Client 实现
type UntisClient interface {
	Login(ctx context.Context) error
	PageConfig(ctx context.Context, classSchedule bool, monday time.Time) (*model.PageConfigResponse, error)
	WeeklyData(ctx context.Context, classSchedule bool, elementID int, monday time.Time) (*model.WeeklyData, error)
	Timegrid(ctx context.Context) ([]model.TimegridRow, error)

	Messages(ctx context.Context) (*model.MessageList, error)
	Message(ctx context.Context, id int) (*model.MessageDetail, error)
	AttachmentStorage(ctx context.Context, attachmentID string) (*model.AttachmentStorage, error)
	Download(ctx context.Context, storage *model.AttachmentStorage) ([]byte, error)
	ConfirmRead(ctx context.Context, id int) (*model.ReadConfirmation, error)
}

// ClientFactory 为一个课表创建 WebUntis 客户端
type ClientFactory func(sec *config.SectionConfig) (UntisClient, error)

// NewUntisClientFactory 默认工厂：每个课表一个独立会话
func NewUntisClientFactory(logger *zap.Logger) ClientFactory {
	return func(sec *config.SectionConfig) (UntisClient, error) {
		return untis.NewClient(untis.Credentials{
			Server:   sec.Server,
			School:   sec.School,
			Username: sec.Username,
			Password: sec.Password,
		}, logger.With(zap.String("section", sec.Name)))
	}
}

// Deps Service 依赖；Repo 与 Redis 仅在配置使用时非空
type Deps struct {
	Config    *config.Config
	Repo      *repository.Repository
	Redis     *redis.Client
	Mailer    mail.Mailer
	NewClient ClientFactory
	Logger    *zap.Logger
}

// Service 所有 Service 的聚合入口
type Service struct {
	Timetable TimetableService
	Message   MessageService
}

// NewService 创建 Service 聚合
func NewService(deps Deps) *Service {
	if deps.NewClient == nil {
		deps.NewClient = NewUntisClientFactory(deps.Logger)
	}
	return &Service{
		Timetable: NewTimetableService(deps.Config, deps.Repo, deps.NewClient, deps.Logger),
		Message:   NewMessageService(deps.Config, deps.Redis, deps.Mailer, deps.NewClient, deps.Logger),
	}
}
