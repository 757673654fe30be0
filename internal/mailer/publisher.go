package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/config"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

// Channel 是 *amqp.Channel 中发布消息用到的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher 把邮件投递到消息队列，由 mail worker 负责真正发送
type Publisher struct {
	channel         Channel
	queue           string
	frontendURL     string
	resetExpiration int // 分钟
	publishTimeout  time.Duration
}

func NewPublisher(ch Channel, cfg *config.Config) *Publisher {
	return &Publisher{
		channel:         ch,
		queue:           cfg.RabbitMQ.Queue,
		frontendURL:     strings.TrimRight(cfg.Email.FrontendURL, "/"),
		resetExpiration: cfg.PasswordReset.Expiration / 60,
		publishTimeout:  time.Duration(cfg.RabbitMQ.PublishTimeout) * time.Second,
	}
}

// ResetLink 返回前端设置密码页面的链接
func (p *Publisher) ResetLink(token, email string) string {
	return fmt.Sprintf("%s/reset-password?token=%s&email=%s", p.frontendURL, url.QueryEscape(token), url.QueryEscape(email))
}

func (p *Publisher) SendCredentialEmail(ctx context.Context, email, loginID, message, firstName, resetToken string) error {
	return p.publish(ctx, domain.MailMessage{
		Type: domain.MailTypeAccountCredentials,
		To:   email,
		Data: domain.AccountCredentialsMailData{
			FirstName: firstName,
			Email:     email,
			LoginID:   loginID,
			Message:   message,
			ResetLink: p.ResetLink(resetToken, email),
		},
	})
}

func (p *Publisher) SendPasswordResetEmail(ctx context.Context, email, firstName, resetToken string) error {
	return p.publish(ctx, domain.MailMessage{
		Type: domain.MailTypePasswordReset,
		To:   email,
		Data: domain.PasswordResetMailData{
			FirstName:  firstName,
			ResetLink:  p.ResetLink(resetToken, email),
			Expiration: p.resetExpiration,
		},
	})
}

func (p *Publisher) publish(ctx context.Context, message domain.MailMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	if err := p.channel.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish %s mail: %w", message.Type, err)
	}

	return nil
}
