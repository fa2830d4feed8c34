package authcore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	authcore "github.com/cipherangel/authcore"
)

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	registerTestIdentity(t, engine)

	result, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.VerifyAccess(context.Background(), result.Tokens.RefreshToken); !errors.Is(err, authcore.ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid, got %v", err)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if _, err := engine.VerifyAccess(context.Background(), ""); !errors.Is(err, authcore.ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing from access gate, got %v", err)
	}
	if _, err := engine.VerifyRefresh(context.Background(), ""); !errors.Is(err, authcore.ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing from refresh gate, got %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	registerTestIdentity(t, engine)

	result, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	raw := []byte(result.Tokens.AccessToken)
	raw[len(raw)-1] ^= 0x01

	if _, err := engine.VerifyAccess(context.Background(), string(raw)); !errors.Is(err, authcore.ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for tampered token, got %v", err)
	}
}

func TestVerifyRefreshFailClosedOnUnknownJTI(t *testing.T) {
	// Two engines share the signing secret but not the ledger. A refresh
	// token minted by the first must read as revoked at the second.
	issuing, _, _ := newTestEngine(t)
	verifying, _, _ := newTestEngine(t)
	registerTestIdentity(t, issuing)

	result, err := issuing.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := issuing.VerifyRefresh(context.Background(), result.Tokens.RefreshToken); err != nil {
		t.Fatalf("issuing engine rejected its own token: %v", err)
	}
	if _, err := verifying.VerifyRefresh(context.Background(), result.Tokens.RefreshToken); !errors.Is(err, authcore.ErrRefreshTokenInvalid) {
		t.Fatalf("expected fail-closed rejection, got %v", err)
	}
}

func TestVerifyExpiredAccessToken(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Token.AccessTTL = time.Nanosecond
	cfg.Token.Leeway = 0

	engine, _, _ := newTestEngine(t, func(b *authcore.Builder) {
		b.WithConfig(cfg)
	})
	registerTestIdentity(t, engine)

	result, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := engine.VerifyAccess(context.Background(), result.Tokens.AccessToken); !errors.Is(err, authcore.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyFailureMetricCountsAccessGateOnly(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	registerTestIdentity(t, engine)

	result, err := engine.Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Three access-gate failures: garbage token, refresh kind, missing.
	_, _ = engine.VerifyAccess(context.Background(), "not-a-jwt")
	_, _ = engine.VerifyAccess(context.Background(), result.Tokens.RefreshToken)
	_, _ = engine.VerifyAccess(context.Background(), "")

	// Refresh-gate failures must not count against the access metric.
	_, _ = engine.VerifyRefresh(context.Background(), "not-a-jwt")
	_, _ = engine.VerifyRefresh(context.Background(), result.Tokens.AccessToken)

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[authcore.MetricAccessVerifyFailure]; got != 3 {
		t.Fatalf("access verify failures = %d, want 3", got)
	}
}
