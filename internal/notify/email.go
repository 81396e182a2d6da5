package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// headerPattern matches common email header injection patterns.
// This catches: Bcc:, Cc:, To:, From:, Subject:, Reply-To:, X-*: headers
var headerPattern = regexp.MustCompile(`(?i)\b(bcc|cc|to|from|subject|reply-to|x-[a-z0-9-]+)\s*:`)

// EmailSender delivers one message to one recipient and returns the
// message id it was sent under.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (messageID string, err error)
}

// SMTPConfig holds SMTP relay configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the sender address.
	From string

	// SubjectPrefix is prepended to every subject, e.g. "[iamrotate]".
	SubjectPrefix string
}

// SMTPSendFunc is the function signature for sending mail via SMTP.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends notification email through a plain SMTP relay.
type SMTPSender struct {
	config SMTPConfig
	send   SMTPSendFunc
	now    func() time.Time
}

// NewSMTPSender creates an SMTP email sender.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{
		config: config,
		send:   smtp.SendMail,
		now:    time.Now,
	}
}

// Validate checks the relay configuration before any send is attempted.
func (s *SMTPSender) Validate() error {
	if s.config.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if s.config.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if s.config.From == "" {
		return fmt.Errorf("from address is required")
	}
	return nil
}

// Send delivers a plain-text message. The body may contain a secret-
// bearing URL, so it is never logged and never included in errors.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@iamrotate>", uuid.NewString())
	msg := s.buildMessage(messageID, to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.send(addr, auth, s.config.From, []string{to}, msg); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	return messageID, nil
}

func (s *SMTPSender) buildMessage(messageID, to, subject, body string) []byte {
	subject = sanitizeHeader(subject)
	if s.config.SubjectPrefix != "" {
		subject = s.config.SubjectPrefix + " " + subject
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", s.config.From))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeHeader(to)))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", s.now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// sanitizeHeader removes newlines and header injection patterns to
// prevent SMTP header injection from roster-supplied values.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = headerPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
