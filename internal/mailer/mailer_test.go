package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/spec-kit/helpdesk-triage/internal/config"
)

func TestEncodeMessagePlainText(t *testing.T) {
	got := string(encodeMessage("no-reply@example.com", Message{
		To:      "mod@example.com",
		Subject: "New Ticket Assigned",
		Text:    "Hello",
	}))
	for _, want := range []string{
		"From: no-reply@example.com\r\n",
		"To: mod@example.com\r\n",
		"Subject: New Ticket Assigned\r\n",
		"Content-Type: text/plain",
		"Hello",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("message missing %q:\n%s", want, got)
		}
	}
}

func TestEncodeMessagePrefersHTML(t *testing.T) {
	got := string(encodeMessage("a@b", Message{To: "c@d", Subject: "s", Text: "plain", HTML: "<p>rich</p>"}))
	if !strings.Contains(got, "text/html") || !strings.Contains(got, "<p>rich</p>") {
		t.Errorf("expected html body:\n%s", got)
	}
}

func TestSendValidatesInput(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587, TimeoutSeconds: 1}, nil)
	if err := m.Send(context.Background(), Message{Subject: "s", Text: "t"}); err == nil {
		t.Error("expected error for missing recipient")
	}
	if err := m.Send(context.Background(), Message{To: "a@b", Subject: "s"}); err == nil {
		t.Error("expected error for empty body")
	}

	unconfigured := NewSMTPMailer(config.SMTPConfig{}, nil)
	if err := unconfigured.Send(context.Background(), Message{To: "a@b", Subject: "s", Text: "t"}); err == nil {
		t.Error("expected error without SMTP host")
	}
}
