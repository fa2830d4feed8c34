package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	authcore "github.com/cipherangel/authcore"
)

type capturedSend struct {
	addr string
	from string
	to   []string
	msg  []byte
	err  error
}

func newCapturingMailer(t *testing.T, cfg Config) (*Mailer, *capturedSend) {
	t.Helper()

	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	captured := &capturedSend{}
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = msg
		return captured.err
	}
	return m, captured
}

func testConfig() Config {
	return Config{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "noreply@example.com",
		FromName: "Example",
	}
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing host", Config{Port: 587, From: "a@b.test"}},
		{"zero port", Config{Host: "h", From: "a@b.test"}},
		{"port out of range", Config{Host: "h", Port: 70000, From: "a@b.test"}},
		{"missing from", Config{Host: "h", Port: 587}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSendEncodesMessage(t *testing.T) {
	m, captured := newCapturingMailer(t, testConfig())

	err := m.Send(context.Background(), authcore.Message{
		To:      "alice@example.com",
		Subject: "Verify your email",
		Body:    `<a href="https://app.test/verify/tok">Verify</a>`,
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if captured.addr != "smtp.example.com:587" {
		t.Fatalf("unexpected relay address %q", captured.addr)
	}
	if captured.from != "noreply@example.com" {
		t.Fatalf("unexpected envelope sender %q", captured.from)
	}
	if len(captured.to) != 1 || captured.to[0] != "alice@example.com" {
		t.Fatalf("unexpected recipients %v", captured.to)
	}

	payload := string(captured.msg)
	for _, want := range []string{
		"From: Example <noreply@example.com>\r\n",
		"To: alice@example.com\r\n",
		"Subject: Verify your email\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		"\r\n\r\n",
		`<a href="https://app.test/verify/tok">Verify</a>`,
	} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload missing %q:\n%s", want, payload)
		}
	}
}

func TestSendSanitizesSubject(t *testing.T) {
	m, captured := newCapturingMailer(t, testConfig())

	err := m.Send(context.Background(), authcore.Message{
		To:      "alice@example.com",
		Subject: "hello\r\nBcc: eve@evil.test",
		Body:    "hi",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	payload := string(captured.msg)
	if strings.Contains(payload, "\r\nBcc:") {
		t.Fatalf("subject header injection leaked through:\n%s", payload)
	}
	if !strings.Contains(payload, "Subject: helloBcc: eve@evil.test\r\n") {
		t.Fatalf("subject not flattened as expected:\n%s", payload)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	m, _ := newCapturingMailer(t, testConfig())

	if err := m.Send(context.Background(), authcore.Message{Subject: "s", Body: "b"}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestSendHonorsCancelledContext(t *testing.T) {
	m, captured := newCapturingMailer(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, authcore.Message{To: "alice@example.com"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if captured.msg != nil {
		t.Fatal("send must not run after cancellation")
	}
}

func TestSendWrapsRelayError(t *testing.T) {
	m, captured := newCapturingMailer(t, testConfig())
	captured.err = errors.New("451 try again later")

	err := m.Send(context.Background(), authcore.Message{To: "alice@example.com"})
	if err == nil || !strings.Contains(err.Error(), "alice@example.com") {
		t.Fatalf("got %v, want wrapped relay error naming the recipient", err)
	}
	if !errors.Is(err, captured.err) {
		t.Fatalf("relay error not wrapped: %v", err)
	}
}
