// Package email sends best-effort inquiry notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/metrics"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// NotifyAddress receives new-inquiry and user-reply notifications.
	NotifyAddress string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends inquiry notifications. Every Notify call returns at once; the
// mail is sent in the background and failures are only logged and counted.
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func NewService(config Config, log zerolog.Logger) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
		log:    log.With().Str("component", "email").Logger(),
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// Wait blocks until all queued notifications have been attempted.
func (s *Service) Wait() {
	s.wg.Wait()
}

type notificationData struct {
	Subject    string
	OwnerName  string
	OwnerEmail string
	SenderName string
	Text       string
	Status     inquiry.Status
}

// NotifyInquiryCreated tells the support inbox about a new inquiry.
func (s *Service) NotifyInquiryCreated(thread inquiry.Thread, first inquiry.Message) {
	if s.config.NotifyAddress == "" {
		return
	}
	s.dispatch(thread.ID, s.config.NotifyAddress, "New inquiry: "+thread.Subject, newInquiryTemplate, notificationData{
		Subject:    sanitizeHeader(thread.Subject),
		OwnerName:  thread.OwnerName,
		OwnerEmail: thread.OwnerEmail,
		SenderName: first.SenderName,
		Text:       first.Text,
		Status:     thread.Status,
	})
}

// NotifyReply tells the other party about a reply: the owner when an admin
// replied, the support inbox when the owner did.
func (s *Service) NotifyReply(thread inquiry.Thread, message inquiry.Message) {
	to := s.config.NotifyAddress
	if message.SenderRole == inquiry.RoleAdmin {
		to = thread.OwnerEmail
	}
	if to == "" {
		return
	}
	s.dispatch(thread.ID, to, "Re: "+thread.Subject, replyTemplate, notificationData{
		Subject:    sanitizeHeader(thread.Subject),
		OwnerName:  thread.OwnerName,
		OwnerEmail: thread.OwnerEmail,
		SenderName: message.SenderName,
		Text:       message.Text,
		Status:     thread.Status,
	})
}

func (s *Service) dispatch(threadID, to, subject, tmpl string, data notificationData) {
	if !s.IsConfigured() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		html, err := renderTemplate(tmpl, data)
		if err == nil {
			err = s.SendHTMLEmail([]string{to}, subject, html)
		}
		if err != nil {
			metrics.NotificationsFailed.Inc()
			s.log.Warn().Err(err).Str("thread_id", threadID).Msg("notification email failed")
		}
	}()
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	boundary := "boundary-inquiry"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := s.send(s.server, s.auth, s.config.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// sanitizeHeader strips line breaks so user-chosen subjects cannot inject
// extra headers.
func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

const newInquiryTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New inquiry: {{.Subject}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .quote { border-left: 3px solid #ddd; padding-left: 12px; color: #555; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>New inquiry</h1>
    </div>

    <p><strong>{{.OwnerName}}</strong> ({{.OwnerEmail}}) opened an inquiry: <strong>{{.Subject}}</strong></p>

    <p class="quote">{{.Text}}</p>

    <div class="footer">
        <p>Status: {{.Status}}</p>
    </div>
</body>
</html>`

const replyTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Re: {{.Subject}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .quote { border-left: 3px solid #ddd; padding-left: 12px; color: #555; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Subject}}</h1>
    </div>

    <p>{{.SenderName}} replied:</p>

    <p class="quote">{{.Text}}</p>

    <div class="footer">
        <p>Inquiry from {{.OwnerName}} &middot; status {{.Status}}</p>
    </div>
</body>
</html>`
