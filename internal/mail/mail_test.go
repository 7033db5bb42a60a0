package mail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func TestDispatcherGoSwallowsErrors(t *testing.T) {
	m := &recordingMailer{err: errors.New("smtp down")}
	d := NewDispatcher(m, zap.NewNop().Sugar())

	d.Go(Welcome("Ada", "ada@example.com", "user"))
	d.Go(Welcome("Bob", "bob@example.com", "agent"))
	d.Wait()

	if len(m.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(m.sent))
	}
}

func TestDispatcherSendReturnsError(t *testing.T) {
	m := &recordingMailer{err: errors.New("rejected")}
	d := NewDispatcher(m, zap.NewNop().Sugar())

	if err := d.Send(context.Background(), PasswordReset("Ada", "ada@example.com", "http://x")); err == nil {
		t.Fatal("expected the mailer error")
	}
}

func TestTemplates(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"agent welcome mentions approval", Welcome("Ann", "a@x.io", "agent"), "pending approval"},
		{"reminder today", SubscriptionReminder("Ann", "a@x.io", 0), "expires today"},
		{"reminder tomorrow", SubscriptionReminder("Ann", "a@x.io", 1), "expires tomorrow"},
		{"reminder days", SubscriptionReminder("Ann", "a@x.io", 3), "in 3 days"},
		{"reset link", PasswordReset("Ann", "a@x.io", "http://front/reset-password/tok"), "reset-password/tok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.msg.Text, tt.want) {
				t.Errorf("text %q does not contain %q", tt.msg.Text, tt.want)
			}
			if !strings.HasPrefix(tt.msg.HTML, "<p>") {
				t.Errorf("html not wrapped: %q", tt.msg.HTML)
			}
		})
	}

	if strings.Contains(Welcome("U", "u@x.io", "user").Text, "approval") {
		t.Error("user welcome should not mention approval")
	}
}

func TestParagraphs(t *testing.T) {
	got := paragraphs("a\n\nb")
	if got != "<p>a</p><p>b</p>" {
		t.Errorf("paragraphs = %q", got)
	}
}
