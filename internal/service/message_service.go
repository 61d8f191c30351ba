package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/mail"
	"github.com/mathisdt/webuntis-fetcher/internal/model"
	"github.com/mathisdt/webuntis-fetcher/pkg/redis"
)

// ── 消息模块业务错误 ──

var (
	ErrMessageIDFileMissing = errors.New("未配置 message_id_file")
	ErrRedisUnavailable     = errors.New("Redis 不可用")
)

// ── MessageService 接口 ────────────────────────────────────
//
// 设计说明：
//   - 先处理需要已读确认的消息（确认后把确认时间附在正文后），再处理普通收件箱。
//   - 已转发的消息 ID 记录在文件（CSV，一行一个）或 Redis 集合中，不会重复转发。
//   - 一个课表失败时仍会保存已转发的 ID，其余课表照常处理。
// ─────────────────────────────────────────────────────────────

// MessageService 消息转发业务接口
type MessageService interface {
	// ForwardAll 处理所有课表
	ForwardAll(ctx context.Context) error
	// Forward 处理单个课表，返回转发的消息数
	Forward(ctx context.Context, sec *config.SectionConfig) (int, error)
}

type messageService struct {
	cfg       *config.Config
	redis     *redis.Client
	mailer    mail.Mailer
	newClient ClientFactory
	logger    *zap.Logger
}

// NewMessageService 创建 MessageService 实例
func NewMessageService(cfg *config.Config, rdb *redis.Client, mailer mail.Mailer, newClient ClientFactory, logger *zap.Logger) MessageService {
	return &messageService{
		cfg:       cfg,
		redis:     rdb,
		mailer:    mailer,
		newClient: newClient,
		logger:    logger,
	}
}

func (s *messageService) ForwardAll(ctx context.Context) error {
	var errs []error
	for i := range s.cfg.Sections {
		sec := &s.cfg.Sections[i]
		n, err := s.Forward(ctx, sec)
		if err != nil {
			s.logger.Error("消息转发失败", zap.String("section", sec.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sec.Name, err))
			continue
		}
		s.logger.Info("消息转发完成", zap.String("section", sec.Name), zap.Int("forwarded", n))
	}
	return errors.Join(errs...)
}

// ════════════════════════════════════════════════════════════
// Forward — 单个课表
// ════════════════════════════════════════════════════════════

func (s *messageService) Forward(ctx context.Context, sec *config.SectionConfig) (n int, err error) {
	seen, err := s.seenStore(ctx, sec)
	if err != nil {
		return 0, err
	}
	defer func() {
		if ferr := seen.Flush(ctx); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	client, err := s.newClient(sec)
	if err != nil {
		return 0, fmt.Errorf("创建客户端失败: %w", err)
	}
	if err := client.Login(ctx); err != nil {
		return 0, err
	}
	list, err := client.Messages(ctx)
	if err != nil {
		return 0, err
	}

	f := &forwarder{
		sec:    sec,
		client: client,
		mailer: s.mailer,
		seen:   seen,
		logger: s.logger.With(zap.String("section", sec.Name)),
	}
	for _, msg := range list.ReadConfirmationMessages {
		sent, err := f.handle(ctx, msg, true)
		if err != nil {
			return n, err
		}
		if sent {
			n++
		}
	}
	for _, msg := range list.IncomingMessages {
		sent, err := f.handle(ctx, msg, false)
		if err != nil {
			return n, err
		}
		if sent {
			n++
		}
	}
	return n, nil
}

func (s *messageService) seenStore(ctx context.Context, sec *config.SectionConfig) (seenStore, error) {
	if sec.MessageStore == "redis" {
		if s.redis == nil {
			return nil, ErrRedisUnavailable
		}
		return &redisSeenStore{client: s.redis, section: sec.Name}, nil
	}
	if sec.MessageIDFile == "" {
		return nil, ErrMessageIDFileMissing
	}
	return openFileSeenStore(sec.MessageIDFile)
}

// forwarder 单次运行中处理一个课表的消息
type forwarder struct {
	sec    *config.SectionConfig
	client UntisClient
	mailer mail.Mailer
	seen   seenStore
	logger *zap.Logger
}

func (f *forwarder) handle(ctx context.Context, msg model.MessageHeader, confirm bool) (bool, error) {
	seen, err := f.seen.IsSeen(ctx, msg.ID)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}
	f.logger.Info("未读消息",
		zap.Int("id", msg.ID),
		zap.String("subject", msg.Subject),
		zap.Bool("confirm", confirm),
	)

	detail, err := f.client.Message(ctx, msg.ID)
	if err != nil {
		return false, err
	}

	var attachments []mail.Attachment
	for _, att := range detail.StorageAttachments {
		storage, err := f.client.AttachmentStorage(ctx, att.ID)
		if err != nil {
			return false, err
		}
		data, err := f.client.Download(ctx, storage)
		if err != nil {
			return false, err
		}
		attachments = append(attachments, mail.Attachment{
			Filename:    att.Name,
			ContentType: mail.ContentTypeFor(att.Name),
			Data:        data,
		})
	}

	content := ""
	if detail.Content != nil {
		content = *detail.Content
	}
	if confirm {
		conf, err := f.client.ConfirmRead(ctx, msg.ID)
		if err != nil {
			f.logger.Warn("无法确认已读", zap.Int("id", msg.ID), zap.String("subject", msg.Subject), zap.Error(err))
		} else if conf.ConfirmationDate != "" {
			content += "\n\nMessage was confirmed at " + conf.ConfirmationDate
		}
	}

	err = f.mailer.Send(ctx, &mail.Message{
		From:        f.sec.MailFrom,
		To:          f.sec.MailTo,
		Subject:     fmt.Sprintf("[%s] %s", msg.Sender.DisplayName, msg.Subject),
		Body:        content,
		Attachments: attachments,
	})
	if err != nil {
		return false, err
	}
	if err := f.seen.MarkSeen(ctx, msg.ID); err != nil {
		return true, err
	}
	return true, nil
}

// ── 已转发消息记录 ──

type seenStore interface {
	IsSeen(ctx context.Context, id int) (bool, error)
	MarkSeen(ctx context.Context, id int) error
	Flush(ctx context.Context) error
}

// fileSeenStore CSV 文件，每行第一列为消息 ID，按转发顺序追加
type fileSeenStore struct {
	path  string
	ids   []int
	index map[int]bool
	dirty bool
}

func openFileSeenStore(path string) (*fileSeenStore, error) {
	s := &fileSeenStore{path: path, index: make(map[int]bool)}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	for _, rec := range records {
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s 中的消息 ID 无效: %q", path, rec[0])
		}
		if !s.index[id] {
			s.index[id] = true
			s.ids = append(s.ids, id)
		}
	}
	return s, nil
}

func (s *fileSeenStore) IsSeen(_ context.Context, id int) (bool, error) {
	return s.index[id], nil
}

func (s *fileSeenStore) MarkSeen(_ context.Context, id int) error {
	if !s.index[id] {
		s.index[id] = true
		s.ids = append(s.ids, id)
		s.dirty = true
	}
	return nil
}

func (s *fileSeenStore) Flush(context.Context) error {
	if !s.dirty {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("写入 %s 失败: %w", s.path, err)
	}
	w := csv.NewWriter(f)
	for _, id := range s.ids {
		if err := w.Write([]string{strconv.Itoa(id)}); err != nil {
			f.Close()
			return fmt.Errorf("写入 %s 失败: %w", s.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("写入 %s 失败: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", s.path, err)
	}
	s.dirty = false
	return nil
}

// redisSeenStore 每个课表一个 Redis 集合，写入即生效
type redisSeenStore struct {
	client  *redis.Client
	section string
}

func (s *redisSeenStore) IsSeen(ctx context.Context, id int) (bool, error) {
	return s.client.IsMessageSeen(ctx, s.section, id)
}

func (s *redisSeenStore) MarkSeen(ctx context.Context, id int) error {
	return s.client.MarkMessageSeen(ctx, s.section, id)
}

func (s *redisSeenStore) Flush(context.Context) error { return nil }
