package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"naftapp/internal/config"

	"github.com/sirupsen/logrus"
)

// sendMailFunc matches smtp.SendMail so tests can capture outgoing mail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Enabled  bool

	send sendMailFunc
}

func NewMailService(cfg config.Config, log *logrus.Logger) *MailService {
	enabled := cfg.SMTPEnabled()
	if !enabled {
		log.Warn("MailService disabled: Missing SMTP environment variables.")
	}

	return &MailService{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
		Enabled:  enabled,
		send:     smtp.SendMail,
	}
}

// Notify sends the rendered notification by mail. Delivery is already off the
// request path (see Dispatcher), so this call is synchronous.
func (s *MailService) Notify(_ context.Context, n Notification) error {
	if !s.Enabled || n.Recipient.Email == "" {
		return nil
	}
	subject, body, err := Render(n)
	if err != nil {
		return err
	}
	return s.sendMail([]string{n.Recipient.Email}, subject, body)
}

func (s *MailService) sendMail(to []string, subject string, body string) error {
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/plain; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: Naftapp <%s>\r\n"+
		"Subject: %s\r\n"+
		"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))

	if err := s.send(addr, auth, s.From, to, msg); err != nil {
		return fmt.Errorf("send mail to %v: %w", to, err)
	}
	return nil
}
