package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

type sentMail struct {
	to, subject, html, text string
}

type fakeTransport struct {
	mu       sync.Mutex
	failures int
	err      error
	sent     []sentMail
	attempts int
}

func (f *fakeTransport) Send(_ context.Context, to, subject, html, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return f.err
	}
	if f.failures > 0 {
		f.failures--
		return errors.New("421 try again later")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, html: html, text: text})
	return nil
}

func (f *fakeTransport) Sent() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

func newTestMailService(transport MailTransport) (*mailService, *[]time.Duration) {
	svc := NewMailService(MailServiceConfig{
		AppName:    "StudIQ",
		AppBaseURL: "https://studiq.test/",
		RetryBase:  500 * time.Millisecond,
	}, transport, nopLogger()).(*mailService)

	var waits []time.Duration
	svc.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return svc, &waits
}

var resetLinkPattern = regexp.MustCompile(`https://studiq\.test/reset-password\?token=([0-9a-f]{64})`)

func TestSendMailToResetPassword_RendersLink(t *testing.T) {
	transport := &fakeTransport{}
	svc, waits := newTestMailService(transport)
	token := strings.Repeat("0f", 32)

	if err := svc.SendMailToResetPassword(context.Background(), "user@example.com", token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := transport.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sent))
	}
	if sent[0].to != "user@example.com" {
		t.Fatalf("unexpected recipient %q", sent[0].to)
	}
	for _, body := range []string{sent[0].html, sent[0].text} {
		m := resetLinkPattern.FindStringSubmatch(body)
		if m == nil || m[1] != token {
			t.Fatalf("expected reset link with token in body:\n%s", body)
		}
	}
	if len(*waits) != 0 {
		t.Fatalf("no backoff expected on first success")
	}
}

func TestSendMail_RetriesWithDoublingBackoff(t *testing.T) {
	transport := &fakeTransport{failures: 2}
	svc, waits := newTestMailService(transport)

	if err := svc.SendPasswordChangedNotice(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if transport.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", transport.attempts)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(*waits) != len(want) || (*waits)[0] != want[0] || (*waits)[1] != want[1] {
		t.Fatalf("expected backoff %v, got %v", want, *waits)
	}
}

func TestSendMail_GivesUpAfterThreeAttempts(t *testing.T) {
	transport := &fakeTransport{err: errors.New("connection refused")}
	svc, _ := newTestMailService(transport)

	err := svc.SendMailToResetPassword(context.Background(), "user@example.com", strings.Repeat("a", 64))
	if err == nil {
		t.Fatalf("expected error")
	}
	if transport.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", transport.attempts)
	}
}

func TestSendMail_StopsOnCancelledContext(t *testing.T) {
	transport := &fakeTransport{err: errors.New("timeout")}
	svc, _ := newTestMailService(transport)
	svc.wait = waitContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.SendMailToResetPassword(ctx, "user@example.com", strings.Repeat("a", 64))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if transport.attempts != 1 {
		t.Fatalf("expected to stop after the first attempt, got %d", transport.attempts)
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := string(buildMIMEMessage("StudIQ <no-reply@studiq.app>", "u@x.io", "Reset", "<p>hi</p>", "hi", now))

	for _, want := range []string{
		"To: u@x.io\r\n",
		"MIME-Version: 1.0\r\n",
		"multipart/alternative",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
		"<p>hi</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}
