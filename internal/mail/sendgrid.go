package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridMailer 通过 SendGrid Web API 发送
type SendgridMailer struct {
	key    string
	host   string
	logger *zap.Logger
}

// NewSendgridMailer 创建 SendgridMailer
func NewSendgridMailer(key string, logger *zap.Logger) *SendgridMailer {
	return &SendgridMailer{key: key, host: sendgridHost, logger: logger}
}

func (m *SendgridMailer) prepare(msg *Message) (*sgmail.SGMailV3, error) {
	from, err := msg.Sender()
	if err != nil {
		return nil, err
	}
	to, err := msg.Recipients()
	if err != nil {
		return nil, err
	}

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, a := range to {
		p.AddTos(sgmail.NewEmail(a.Name, a.Address))
	}

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(sgmail.NewEmail(from.Name, from.Address))
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", textOrBlank(msg.Body)))

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = ContentTypeFor(a.Filename)
		}
		v3.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			Type:        contentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return v3, nil
}

func (m *SendgridMailer) Send(ctx context.Context, msg *Message) error {
	v3, err := m.prepare(msg)
	if err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(v3)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("SendGrid 发送失败: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("SendGrid 发送失败: HTTP %d: %s", res.StatusCode, res.Body)
	}
	m.logger.Info("邮件已发送",
		zap.String("transport", "sendgrid"),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// textOrBlank SendGrid 不接受空内容
func textOrBlank(s string) string {
	if s == "" {
		return " "
	}
	return s
}
