package mail

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConsoleMailer 只把邮件打印出来（本地调试用），并保留已发送的邮件
type ConsoleMailer struct {
	out    io.Writer
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsoleMailer out 为 nil 时输出到 stderr
func NewConsoleMailer(out io.Writer, logger *zap.Logger) *ConsoleMailer {
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleMailer{out: out, logger: logger}
}

func (m *ConsoleMailer) Send(_ context.Context, msg *Message) error {
	if _, err := msg.Recipients(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", msg.Subject)
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	for _, a := range msg.Attachments {
		fmt.Fprintf(&b, "[attachment] %s (%s, %d bytes)\r\n", a.Filename, a.ContentType, len(a.Data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := io.WriteString(m.out, b.String()); err != nil {
		return err
	}
	m.sent = append(m.sent, *msg)
	m.logger.Debug("邮件已输出到控制台", zap.String("subject", msg.Subject))
	return nil
}

// Sent 已发送的邮件副本
func (m *ConsoleMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
