// services/mail_service.go
package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/pkg/logger"
)

type IMailService interface {
	SendMailToResetPassword(ctx context.Context, to, token string) error
	SendPasswordChangedNotice(ctx context.Context, to string) error
}

// MailTransport delivers one rendered message.
type MailTransport interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type MailServiceConfig struct {
	AppName       string
	AppBaseURL    string
	RetryAttempts int
	RetryBase     time.Duration
}

type mailService struct {
	cfg       MailServiceConfig
	transport MailTransport
	htmlTpl   *htmltemplate.Template
	textTpl   *texttemplate.Template
	log       *zap.Logger
	wait      func(ctx context.Context, d time.Duration) error
}

func NewMailService(cfg MailServiceConfig, transport MailTransport, log *zap.Logger) IMailService {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	return &mailService{
		cfg:       cfg,
		transport: transport,
		htmlTpl:   htmltemplate.Must(htmltemplate.New("html").Parse(baseHTMLTemplate)),
		textTpl:   texttemplate.Must(texttemplate.New("text").Parse(plainTextTemplate)),
		log:       log,
		wait:      waitContext,
	}
}

func (s *mailService) SendMailToResetPassword(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.cfg.AppBaseURL, "/"), url.QueryEscape(token))
	subject := "Reset your StudIQ password"

	return s.deliver(ctx, to, subject, EmailData{
		Title:     subject,
		Intro:     "We received a request to reset your password. The link below is valid for a short time and can be used once. If you did not ask for this, you can ignore this email.",
		ButtonURL: link,
		ButtonTxt: "Reset Password",
	})
}

func (s *mailService) SendPasswordChangedNotice(ctx context.Context, to string) error {
	subject := "Your StudIQ password was changed"

	return s.deliver(ctx, to, subject, EmailData{
		Title: subject,
		Intro: "The password for your account was just changed. If this was not you, request a new reset link right away.",
	})
}

type EmailData struct {
	Title     string
	Intro     string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
</head>
<body style="margin:0;padding:24px;background:#f4f6fb;font-family:Arial,Helvetica,sans-serif;color:#1f2937;">
  <table role="presentation" width="100%" style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:12px;">
    <tr><td style="padding:24px 28px;font-weight:bold;font-size:20px;color:#4f46e5;">{{.AppName}}</td></tr>
    <tr><td style="padding:0 28px 8px;"><h1 style="font-size:22px;margin:0 0 12px;">{{.Title}}</h1><p style="line-height:1.6;">{{.Intro}}</p></td></tr>
    {{if .ButtonURL}}
    <tr><td style="padding:8px 28px 24px;">
      <a href="{{.ButtonURL}}" style="display:inline-block;padding:12px 22px;background:#4f46e5;color:#ffffff;border-radius:8px;text-decoration:none;">{{.ButtonTxt}}</a>
      <p style="font-size:12px;color:#6b7280;margin-top:16px;">Or paste this link into your browser:<br><a href="{{.ButtonURL}}">{{.ButtonURL}}</a></p>
    </td></tr>
    {{end}}
    <tr><td style="padding:16px 28px;font-size:12px;color:#9ca3af;">&copy; {{.Year}} {{.AppName}}</td></tr>
  </table>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Intro}}
{{if .ButtonURL}}
{{.ButtonTxt}}: {{.ButtonURL}}
{{end}}
{{.AppName}} (c) {{.Year}}
`

func (s *mailService) render(data EmailData) (string, string, error) {
	data.AppName = s.cfg.AppName
	data.Year = time.Now().Year()

	var hb, tb bytes.Buffer
	if err := s.htmlTpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err := s.textTpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

// deliver renders once and retries the transport with doubling backoff.
func (s *mailService) deliver(ctx context.Context, to, subject string, data EmailData) error {
	html, text, err := s.render(data)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	backoff := s.cfg.RetryBase
	for attempt := 1; ; attempt++ {
		err = s.transport.Send(ctx, to, subject, html, text)
		if err == nil {
			return nil
		}
		if attempt >= s.cfg.RetryAttempts {
			return fmt.Errorf("send email after %d attempts: %w", attempt, err)
		}

		s.log.Warn("email send failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("backoff", backoff),
			logger.String("to", logger.MaskEmail(to)),
			logger.ErrorField(err),
		)
		if werr := s.wait(ctx, backoff); werr != nil {
			return fmt.Errorf("send email: %w (last error: %v)", werr, err)
		}
		backoff *= 2
	}
}

func waitContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	UseSSL     bool // SMTPS (465); false means STARTTLS (587)
	RequireTLS bool // fail if STARTTLS is not offered
}

type smtpTransport struct {
	cfg SMTPConfig
}

func NewSMTPTransport(cfg SMTPConfig) MailTransport {
	return &smtpTransport{cfg: cfg}
}

func (s *smtpTransport) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg := buildMIMEMessage(s.formatFromHeader(), to, subject, htmlBody, textBody, time.Now())

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.UseSSL {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}, Config: tlsCfg}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		dialer := &net.Dialer{Timeout: 10 * time.Second}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if !s.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(tlsCfg); err != nil {
				return err
			}
		} else if s.cfg.RequireTLS {
			return fmt.Errorf("server does not support STARTTLS and RequireTLS=true")
		}
	}

	if s.cfg.Username != "" {
		if err = c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err = c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *smtpTransport) formatFromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", name), s.cfg.From)
}

func buildMIMEMessage(from, to, subject, htmlBody, textBody string, now time.Time) []byte {
	boundary := fmt.Sprintf("alt_%d", now.UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&msg, format, a...) }

	write("From: %s\r\n", from)
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	write("Date: %s\r\n", now.Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 8bit\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}
