package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
	"github.com/mathisdt/webuntis-fetcher/internal/mail"
	"github.com/mathisdt/webuntis-fetcher/internal/model"
)

func strPtr(s string) *string { return &s }

func inboxClient() *mockClient {
	return &mockClient{
		messages: model.MessageList{
			IncomingMessages: []model.MessageHeader{
				{ID: 11, Subject: "Ausflug", Sender: model.MessageSender{DisplayName: "Frau Schmidt"}},
				{ID: 12, Subject: "Elternabend", Sender: model.MessageSender{DisplayName: "Schulleitung"}},
				{ID: 13, Subject: "Alt", Sender: model.MessageSender{DisplayName: "Herr Meyer"}},
			},
			ReadConfirmationMessages: []model.MessageHeader{
				{ID: 12, Subject: "Elternabend", Sender: model.MessageSender{DisplayName: "Schulleitung"}},
			},
		},
		details: map[int]*model.MessageDetail{
			11: {ID: 11, Content: strPtr("Bitte Geld mitbringen"), StorageAttachments: []model.StorageAttachment{{ID: "a-1", Name: "plan.pdf"}}},
			12: {ID: 12, Content: nil},
			13: {ID: 13, Content: strPtr("schon gelesen")},
		},
		files: map[string][]byte{"mem://a-1": []byte("%PDF-1.4")},
	}
}

func messageSection(t *testing.T) config.SectionConfig {
	sec := classSection()
	sec.MessageIDFile = filepath.Join(t.TempDir(), "ids.csv")
	return sec
}

func newTestMessageService(cfg *config.Config, client *mockClient, mailer mail.Mailer) MessageService {
	return NewMessageService(cfg, nil, mailer, factoryFor(map[string]*mockClient{"anna": client}), zap.NewNop())
}

func TestForward_ConfirmationsFirstAndSkipsSeen(t *testing.T) {
	sec := messageSection(t)
	if err := os.WriteFile(sec.MessageIDFile, []byte("13\n"), 0o644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	cfg := testConfig(sec)
	client := inboxClient()
	mailer := mail.NewConsoleMailer(&strings.Builder{}, zap.NewNop())

	n, err := newTestMessageService(cfg, client, mailer).Forward(context.Background(), &cfg.Sections[0])
	if err != nil {
		t.Fatalf("Forward 失败: %v", err)
	}
	if n != 2 {
		t.Errorf("期望转发 2 封，实际 %d", n)
	}

	sent := mailer.Sent()
	if len(sent) != 2 {
		t.Fatalf("期望发送 2 封邮件，实际 %d", len(sent))
	}

	// 待确认消息先处理，正文附上确认时间
	if sent[0].Subject != "[Schulleitung] Elternabend" {
		t.Errorf("第一封应为待确认消息，实际 %q", sent[0].Subject)
	}
	if sent[0].Body != "\n\nMessage was confirmed at 2024-01-15T08:00:00Z" {
		t.Errorf("确认时间未附加: %q", sent[0].Body)
	}
	if len(client.confirmed) != 1 || client.confirmed[0] != 12 {
		t.Errorf("期望确认消息 12，实际 %v", client.confirmed)
	}

	if sent[1].Subject != "[Frau Schmidt] Ausflug" || sent[1].Body != "Bitte Geld mitbringen" {
		t.Errorf("第二封邮件错误: %+v", sent[1])
	}
	if sent[1].From != "untis@example.org" || sent[1].To != "parents@example.org" {
		t.Errorf("收发件人错误: %s → %s", sent[1].From, sent[1].To)
	}
	if len(sent[1].Attachments) != 1 || sent[1].Attachments[0].ContentType != "application/pdf" || string(sent[1].Attachments[0].Data) != "%PDF-1.4" {
		t.Errorf("附件错误: %+v", sent[1].Attachments)
	}

	data, err := os.ReadFile(sec.MessageIDFile)
	if err != nil {
		t.Fatalf("读取 ID 文件失败: %v", err)
	}
	if string(data) != "13\n12\n11\n" {
		t.Errorf("ID 文件内容错误: %q", data)
	}
}

func TestForward_SecondRunSendsNothing(t *testing.T) {
	sec := messageSection(t)
	cfg := testConfig(sec)
	mailer := mail.NewConsoleMailer(&strings.Builder{}, zap.NewNop())
	svc := newTestMessageService(cfg, inboxClient(), mailer)

	if _, err := svc.Forward(context.Background(), &cfg.Sections[0]); err != nil {
		t.Fatalf("第一次 Forward 失败: %v", err)
	}
	n, err := svc.Forward(context.Background(), &cfg.Sections[0])
	if err != nil {
		t.Fatalf("第二次 Forward 失败: %v", err)
	}
	if n != 0 || len(mailer.Sent()) != 3 {
		t.Errorf("第二次运行不应重复转发: n=%d sent=%d", n, len(mailer.Sent()))
	}
}

func TestForward_ConfirmFailureStillSends(t *testing.T) {
	sec := messageSection(t)
	cfg := testConfig(sec)
	client := inboxClient()
	client.confirmErr = errors.New("HTTP 500")
	mailer := mail.NewConsoleMailer(&strings.Builder{}, zap.NewNop())

	if _, err := newTestMessageService(cfg, client, mailer).Forward(context.Background(), &cfg.Sections[0]); err != nil {
		t.Fatalf("Forward 失败: %v", err)
	}
	sent := mailer.Sent()
	if len(sent) == 0 || sent[0].Subject != "[Schulleitung] Elternabend" || sent[0].Body != "" {
		t.Errorf("确认失败时应照常转发且不附确认时间: %+v", sent)
	}
}

func TestForward_MessageIDFileMissing(t *testing.T) {
	sec := classSection()
	cfg := testConfig(sec)
	svc := newTestMessageService(cfg, inboxClient(), mail.NewConsoleMailer(&strings.Builder{}, zap.NewNop()))

	if _, err := svc.Forward(context.Background(), &cfg.Sections[0]); !errors.Is(err, ErrMessageIDFileMissing) {
		t.Errorf("期望 ErrMessageIDFileMissing，实际 %v", err)
	}
}

func TestForward_RedisWithoutClient(t *testing.T) {
	sec := classSection()
	sec.MessageStore = "redis"
	cfg := testConfig(sec)
	svc := newTestMessageService(cfg, inboxClient(), mail.NewConsoleMailer(&strings.Builder{}, zap.NewNop()))

	if _, err := svc.Forward(context.Background(), &cfg.Sections[0]); !errors.Is(err, ErrRedisUnavailable) {
		t.Errorf("期望 ErrRedisUnavailable，实际 %v", err)
	}
}

// failingMailer 在第 n 次发送时失败
type failingMailer struct {
	calls  int
	failAt int
}

func (m *failingMailer) Send(context.Context, *mail.Message) error {
	m.calls++
	if m.calls == m.failAt {
		return errors.New("smtp down")
	}
	return nil
}

func TestForward_PersistsProgressOnFailure(t *testing.T) {
	sec := messageSection(t)
	cfg := testConfig(sec)
	mailer := &failingMailer{failAt: 2}

	_, err := newTestMessageService(cfg, inboxClient(), mailer).Forward(context.Background(), &cfg.Sections[0])
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("期望发送错误，实际 %v", err)
	}
	data, _ := os.ReadFile(sec.MessageIDFile)
	if string(data) != "12\n" {
		t.Errorf("失败前已转发的 ID 应保存，实际 %q", data)
	}
}

func TestForwardAll_ContinuesAfterFailure(t *testing.T) {
	broken := classSection()
	broken.Name = "broken"
	ok := messageSection(t)
	cfg := testConfig(broken, ok)
	mailer := mail.NewConsoleMailer(&strings.Builder{}, zap.NewNop())
	svc := NewMessageService(cfg, nil, mailer, factoryFor(map[string]*mockClient{"anna": inboxClient()}), zap.NewNop())

	err := svc.ForwardAll(context.Background())
	if !errors.Is(err, ErrMessageIDFileMissing) {
		t.Errorf("期望汇总错误包含 ErrMessageIDFileMissing，实际 %v", err)
	}
	if len(mailer.Sent()) != 3 {
		t.Errorf("其余课表应照常转发，实际 %d 封", len(mailer.Sent()))
	}
}
