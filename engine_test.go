package authcore_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	authcore "github.com/cipherangel/authcore"
	"github.com/cipherangel/authcore/store/memory"
)

// mockMailer records every message and optionally fails.
type mockMailer struct {
	mu       sync.Mutex
	messages []authcore.Message
	failWith error
}

func (m *mockMailer) Send(_ context.Context, msg authcore.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockMailer) last(t *testing.T) authcore.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatal("no mail was sent")
	}
	return m.messages[len(m.messages)-1]
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// lastToken pulls the opaque token out of the link in the latest mail body.
func (m *mockMailer) lastToken(t *testing.T) string {
	t.Helper()
	body := m.last(t).Body

	start := strings.Index(body, `href="`)
	if start < 0 {
		t.Fatalf("no link in mail body: %s", body)
	}
	rest := body[start+len(`href="`):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		t.Fatalf("unterminated link in mail body: %s", body)
	}
	link := rest[:end]

	return link[strings.LastIndex(link, "/")+1:]
}

// failingLedger errors on every write.
type failingLedger struct {
	authcore.RefreshLedger
}

func (failingLedger) Issue(context.Context, authcore.RefreshTokenRecord) error {
	return errors.New("ledger down")
}

type mockProvider struct {
	name    string
	profile *authcore.FederatedIdentity
	err     error
	calls   int
}

func (p *mockProvider) Name() string { return p.name }

func (p *mockProvider) Exchange(_ context.Context, code string) (*authcore.FederatedIdentity, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if code == "" {
		return nil, errors.New("empty code")
	}
	return p.profile, nil
}

func engineTestConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.Issuer = "authcore-test"
	cfg.Mail.VerificationURL = "https://app.test/verify"
	cfg.Mail.PasswordResetURL = "https://app.test/reset"
	// Floor-cost hashing so tests stay fast.
	cfg.Password = authcore.PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	return cfg
}

type engineOption func(*authcore.Builder)

func newTestEngine(t *testing.T, opts ...engineOption) (*authcore.Engine, *memory.Store, *mockMailer) {
	t.Helper()

	st := memory.New()
	mailer := &mockMailer{}

	builder := authcore.New().
		WithConfig(engineTestConfig()).
		WithStore(st).
		WithMailer(mailer)
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, st, mailer
}

func registerTestIdentity(t *testing.T, engine *authcore.Engine) *authcore.Identity {
	t.Helper()

	identity, err := engine.Register(context.Background(), authcore.CreateIdentityInput{
		Email:     "alice@example.com",
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Tester",
		Password:  "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return identity
}
