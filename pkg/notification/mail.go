package notification

import (
	"fmt"
	"net/smtp"
	"strings"
)

type MailConfig struct {
	Host     string
	Port     int64
	Username string
	Password string
	From     string
}

type MailNotification struct {
	cfg MailConfig
}

func NewMailNotification(cfg MailConfig) *MailNotification {
	return &MailNotification{cfg: cfg}
}

func (m *MailNotification) send(to, subject, body string) error {
	if m.cfg.Host == "" {
		return fmt.Errorf("mail host not configured")
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
}

// SendWelcomeEmail 用户档案建立后发送欢迎邮件
func (m *MailNotification) SendWelcomeEmail(to, name string) error {
	if name == "" {
		name = to
	}
	body := fmt.Sprintf("Hi %s,\n\nYour voice sample profile is ready. Pick a prompt and start recording.\n", name)
	return m.send(to, "Welcome to VoiceBank", body)
}
