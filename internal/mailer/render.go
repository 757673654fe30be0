package mailer

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

var ErrUnsupportedType = errors.New("unsupported mail type")

type mailKind struct {
	subject  string
	template string
	newData  func() any
}

var kinds = map[string]mailKind{
	domain.MailTypeAccountCredentials: {
		subject:  "Welcome to WorkZen HRMS - Your Account Credentials",
		template: "account_credentials",
		newData:  func() any { return &domain.AccountCredentialsMailData{} },
	},
	domain.MailTypePasswordReset: {
		subject:  "Reset Your WorkZen HRMS Password",
		template: "password_reset",
		newData:  func() any { return &domain.PasswordResetMailData{} },
	},
}

// Rendered 是一封已经套好模板、可以直接投递的邮件
type Rendered struct {
	Type    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Render 解码队列中的消息体，并渲染对应类型的 HTML 和纯文本正文
func Render(body []byte) (*Rendered, error) {
	var envelope struct {
		Type string          `json:"type"`
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode mail message: %w", err)
	}

	kind, ok := kinds[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, envelope.Type)
	}
	if envelope.To == "" {
		return nil, errors.New("mail message has no recipient")
	}

	data := kind.newData()
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, data); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", envelope.Type, err)
		}
	}

	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, kind.template+".html", data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", envelope.Type, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, kind.template+".txt", data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", envelope.Type, err)
	}

	return &Rendered{
		Type:    envelope.Type,
		To:      envelope.To,
		Subject: kind.subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
