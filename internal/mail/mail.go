package mail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
)

const defaultContentType = "application/octet-stream"

var ErrNoRecipients = errors.New("邮件没有收件人")

// Attachment 邮件附件
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message 纯文本邮件
type Message struct {
	From        string
	To          string // 逗号分隔的地址列表
	Subject     string
	Body        string
	Attachments []Attachment
}

// Recipients 解析收件人列表
func (m *Message) Recipients() ([]*mail.Address, error) {
	if m.To == "" {
		return nil, ErrNoRecipients
	}
	addrs, err := mail.ParseAddressList(m.To)
	if err != nil {
		return nil, fmt.Errorf("收件人地址无效 %q: %w", m.To, err)
	}
	return addrs, nil
}

// Sender 解析发件人
func (m *Message) Sender() (*mail.Address, error) {
	addr, err := mail.ParseAddress(m.From)
	if err != nil {
		return nil, fmt.Errorf("发件人地址无效 %q: %w", m.From, err)
	}
	return addr, nil
}

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// New 按配置创建 Mailer
func New(cfg *config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Transport {
	case "smtp", "":
		return NewSMTPMailer(cfg, logger), nil
	case "sendgrid":
		return NewSendgridMailer(cfg.SendgridAPIKey, logger), nil
	case "console":
		return NewConsoleMailer(nil, logger), nil
	default:
		return nil, fmt.Errorf("未知的邮件发送方式: %q", cfg.Transport)
	}
}

// ContentTypeFor 按文件扩展名猜测 MIME 类型
func ContentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return defaultContentType
}
