package authcore_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	authcore "github.com/cipherangel/authcore"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, authcore.AuditEvent) {
	s.count.Add(1)
}

func TestAuditLoginEventsReachSink(t *testing.T) {
	sink := authcore.NewChannelSink(16)
	engine, _, _ := newTestEngine(t, func(b *authcore.Builder) {
		b.WithAuditSink(sink)
	})
	registerTestIdentity(t, engine)

	ctx := authcore.WithClientIP(context.Background(), "203.0.113.1")
	if _, err := engine.Login(ctx, "alice@example.com", "wrong-horse"); err == nil {
		t.Fatal("expected login failure")
	}

	deadline := time.After(time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType != "login_failure" {
				continue
			}
			if event.IP != "203.0.113.1" {
				t.Fatalf("client IP not propagated: %+v", event)
			}
			if event.Error != "invalid_credentials" {
				t.Fatalf("unexpected error code: %+v", event)
			}
			return
		case <-deadline:
			t.Fatal("login failure event never arrived")
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	engine, _, _ := newTestEngine(t, func(b *authcore.Builder) {
		b.WithConfig(cfg)
		b.WithAuditSink(sink)
	})
	registerTestIdentity(t, engine)

	_, _ = engine.Login(context.Background(), "alice@example.com", "wrong-horse")
	time.Sleep(30 * time.Millisecond)

	if sink.count.Load() != 0 {
		t.Fatalf("expected no sink calls when audit disabled, got %d", sink.count.Load())
	}
}
