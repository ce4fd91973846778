package email

import (
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "support@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "support@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config, zerolog.Nop())
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

type sentMail struct {
	to  []string
	msg string
}

type recorder struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recorder) send(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{to: to, msg: string(msg)})
	return r.err
}

func newTestService(rec *recorder) *Service {
	svc := NewService(Config{
		Host:          "smtp.example.com",
		Port:          "587",
		From:          "support@example.com",
		FromName:      "Support",
		NotifyAddress: "inbox@example.com",
	}, zerolog.Nop())
	svc.send = rec.send
	return svc
}

var billing = inquiry.Thread{
	ID:         "thr_1",
	OwnerID:    "u1",
	OwnerName:  "Ada",
	OwnerEmail: "ada@example.com",
	Subject:    "Billing question",
	Status:     inquiry.StatusUnread,
}

func TestNotifyInquiryCreatedGoesToInbox(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(rec)

	svc.NotifyInquiryCreated(billing, inquiry.Message{SenderName: "Ada", Text: "Why was I charged twice?"})
	svc.Wait()

	if len(rec.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(rec.sent))
	}
	mail := rec.sent[0]
	if mail.to[0] != "inbox@example.com" {
		t.Errorf("unexpected recipient %v", mail.to)
	}
	if !strings.Contains(mail.msg, "Subject: New inquiry: Billing question") {
		t.Error("mail should carry the inquiry subject")
	}
	if !strings.Contains(mail.msg, "Why was I charged twice?") {
		t.Error("mail should quote the first message")
	}
	if !strings.Contains(mail.msg, "From: Support <support@example.com>") {
		t.Error("mail should use the display from header")
	}
}

func TestNotifyReplyRecipientDependsOnSender(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(rec)

	svc.NotifyReply(billing, inquiry.Message{SenderName: "Support", SenderRole: inquiry.RoleAdmin, Text: "Refund issued."})
	svc.Wait()
	svc.NotifyReply(billing, inquiry.Message{SenderName: "Ada", SenderRole: inquiry.RoleUser, Text: "Thank you!"})
	svc.Wait()

	if len(rec.sent) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(rec.sent))
	}
	if rec.sent[0].to[0] != "ada@example.com" {
		t.Errorf("admin reply should go to the owner, got %v", rec.sent[0].to)
	}
	if rec.sent[1].to[0] != "inbox@example.com" {
		t.Errorf("user reply should go to the inbox, got %v", rec.sent[1].to)
	}
}

func TestNotifyFailureIsSwallowed(t *testing.T) {
	rec := &recorder{err: errors.New("connection refused")}
	svc := newTestService(rec)

	svc.NotifyInquiryCreated(billing, inquiry.Message{Text: "hello"})
	svc.Wait()

	if len(rec.sent) != 1 {
		t.Fatalf("expected a send attempt, got %d", len(rec.sent))
	}
}

func TestNotifySkippedWhenUnconfigured(t *testing.T) {
	rec := &recorder{}
	svc := NewService(Config{NotifyAddress: "inbox@example.com"}, zerolog.Nop())
	svc.send = rec.send

	svc.NotifyInquiryCreated(billing, inquiry.Message{Text: "hello"})
	svc.Wait()

	if len(rec.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(rec.sent))
	}
}

func TestSubjectHeaderCannotInjectHeaders(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(rec)

	thread := billing
	thread.Subject = "Hi\r\nBcc: attacker@example.com"
	svc.NotifyInquiryCreated(thread, inquiry.Message{Text: "hello"})
	svc.Wait()

	if len(rec.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(rec.sent))
	}
	headers, body, ok := strings.Cut(rec.sent[0].msg, "\r\n\r\n")
	if !ok {
		t.Fatal("message has no header/body separator")
	}
	for _, line := range strings.Split(headers, "\r\n") {
		if strings.HasPrefix(line, "Bcc:") {
			t.Errorf("subject added a header line %q", line)
		}
	}
	if !strings.Contains(headers, "Subject: New inquiry: Hi  Bcc: attacker@example.com\r\n") {
		t.Errorf("subject should stay on one header line, headers:\n%s", headers)
	}
	if strings.Contains(body, "Hi\r\nBcc:") {
		t.Error("subject should be flattened in the body too")
	}
}

func TestRenderReplyTemplateEscapesHTML(t *testing.T) {
	html, err := renderTemplate(replyTemplate, notificationData{
		Subject:    "Billing question",
		SenderName: "Support",
		Text:       "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("message text should be escaped")
	}
	if !strings.Contains(html, "Support replied") {
		t.Error("template should name the sender")
	}
}
