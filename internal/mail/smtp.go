package mail

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/mathisdt/webuntis-fetcher/config"
)

// SMTPMailer 通过 SMTP 服务器发送
type SMTPMailer struct {
	dialer *gomail.Dialer
	logger *zap.Logger
}

// NewSMTPMailer 创建 SMTPMailer，用户名为空时不做认证
func NewSMTPMailer(cfg *config.MailConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		logger: logger,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gm, err := buildGomail(msg)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("SMTP 发送失败: %w", err)
	}
	m.logger.Info("邮件已发送",
		zap.String("transport", "smtp"),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func buildGomail(msg *Message) (*gomail.Message, error) {
	from, err := msg.Sender()
	if err != nil {
		return nil, err
	}
	to, err := msg.Recipients()
	if err != nil {
		return nil, err
	}

	gm := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	gm.SetHeader("From", gm.FormatAddress(from.Address, from.Name))
	recipients := make([]string, 0, len(to))
	for _, a := range to {
		recipients = append(recipients, gm.FormatAddress(a.Address, a.Name))
	}
	gm.SetHeader("To", recipients...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	for _, a := range msg.Attachments {
		data := a.Data
		contentType := a.ContentType
		if contentType == "" {
			contentType = ContentTypeFor(a.Filename)
		}
		gm.Attach(a.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {contentType}}),
		)
	}
	return gm, nil
}
