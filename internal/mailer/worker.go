package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

// Sender 是 *mail.Client 中发送邮件用到的部分
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Worker 消费邮件队列。无法解析的消息直接丢弃，SMTP 发送失败的消息重新入队
type Worker struct {
	sender      Sender
	fromName    string
	fromAddress string
	logger      *slog.Logger
}

func NewWorker(sender Sender, fromName, fromAddress string) *Worker {
	return &Worker{
		sender:      sender,
		fromName:    fromName,
		fromAddress: fromAddress,
		logger:      slog.Default(),
	}
}

func (w *Worker) Compose(r *Rendered) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(w.fromName, w.fromAddress); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(r.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(r.Subject)
	m.SetBodyString(mail.TypeTextPlain, r.Text)
	m.AddAlternativeString(mail.TypeTextHTML, r.HTML)
	return m, nil
}

// Handle 处理一条消息，并根据结果 ack 或 nack
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	rendered, err := Render(d.Body)
	if err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			w.logger.Error("不支持的邮件类型", slog.String("error", err.Error()))
		} else {
			w.logger.Error("邮件信息解析失败", slog.String("error", err.Error()))
		}
		_ = d.Nack(false, false)
		return
	}

	m, err := w.Compose(rendered)
	if err != nil {
		w.logger.Error("无法构建邮件", slog.String("type", rendered.Type), slog.String("error", err.Error()))
		_ = d.Nack(false, false)
		return
	}

	if err := w.sender.DialAndSendWithContext(ctx, m); err != nil {
		w.logger.Error("邮件发送失败", slog.String("type", rendered.Type), slog.String("error", err.Error()))
		_ = d.Nack(false, true) // 将消息重新入队
		return
	}

	w.logger.Info("邮件已发送", slog.String("type", rendered.Type))
	_ = d.Ack(false)
}

// Run 持续处理消息，直到 ctx 被取消或者通道被关闭
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.Handle(ctx, d)
		}
	}
}
