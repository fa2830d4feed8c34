package federation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeProvider struct {
	token    *httptest.Server
	userinfo *httptest.Server

	lastTokenForm map[string]string
	lastBearer    string
}

// newFakeProvider runs token and userinfo endpoints that answer like a
// well-behaved OAuth2 provider and record what they were sent.
func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{}

	f.token = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("token form parse failed: %v", err)
		}
		f.lastTokenForm = map[string]string{}
		for k := range r.PostForm {
			f.lastTokenForm[k] = r.PostForm.Get(k)
		}
		if r.PostForm.Get("code") == "bad-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "code expired",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "provider-access-token",
			"token_type":   "Bearer",
		})
	}))
	t.Cleanup(f.token.Close)

	f.userinfo = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastBearer = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":         "subject-123",
			"email":       "alice@example.com",
			"given_name":  "Alice",
			"family_name": "Doe",
		})
	}))
	t.Cleanup(f.userinfo.Close)

	return f
}

func (f *fakeProvider) config() Config {
	return Config{
		Name:         "fake",
		TokenURL:     f.token.URL,
		UserInfoURL:  f.userinfo.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.test/callback",
	}
}

func TestExchange(t *testing.T) {
	fake := newFakeProvider(t)
	provider, err := NewProvider(fake.config())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	profile, err := provider.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	if profile.Subject != "subject-123" {
		t.Fatalf("subject = %q, want subject-123", profile.Subject)
	}
	if profile.Email != "alice@example.com" {
		t.Fatalf("email = %q", profile.Email)
	}
	if profile.FirstName != "Alice" || profile.LastName != "Doe" {
		t.Fatalf("name = %q %q", profile.FirstName, profile.LastName)
	}

	for key, want := range map[string]string{
		"grant_type":    "authorization_code",
		"code":          "good-code",
		"client_id":     "client-id",
		"client_secret": "client-secret",
		"redirect_uri":  "https://app.test/callback",
	} {
		if got := fake.lastTokenForm[key]; got != want {
			t.Fatalf("token form %s = %q, want %q", key, got, want)
		}
	}
	if fake.lastBearer != "Bearer provider-access-token" {
		t.Fatalf("userinfo auth header = %q", fake.lastBearer)
	}
}

func TestExchangeTokenEndpointError(t *testing.T) {
	fake := newFakeProvider(t)
	provider, err := NewProvider(fake.config())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	_, err = provider.Exchange(context.Background(), "bad-code")
	if err == nil || !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("got %v, want token endpoint error naming invalid_grant", err)
	}
}

func TestExchangeMissingAccessToken(t *testing.T) {
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token_type": "Bearer"})
	}))
	defer token.Close()

	cfg := newFakeProvider(t).config()
	cfg.TokenURL = token.URL
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if _, err := provider.Exchange(context.Background(), "code"); err == nil {
		t.Fatal("expected error for response without access token")
	}
}

func TestExchangeUserInfoFailure(t *testing.T) {
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userinfo.Close()

	cfg := newFakeProvider(t).config()
	cfg.UserInfoURL = userinfo.URL
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	_, err = provider.Exchange(context.Background(), "code")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("got %v, want userinfo 401 error", err)
	}
}

func TestExchangeMissingSubject(t *testing.T) {
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"email": "alice@example.com"})
	}))
	defer userinfo.Close()

	cfg := newFakeProvider(t).config()
	cfg.UserInfoURL = userinfo.URL
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if _, err := provider.Exchange(context.Background(), "code"); err == nil {
		t.Fatal("expected error for userinfo response without sub")
	}
}

func TestNewProviderValidation(t *testing.T) {
	base := Config{
		Name:         "p",
		TokenURL:     "https://idp.test/token",
		UserInfoURL:  "https://idp.test/userinfo",
		ClientID:     "id",
		ClientSecret: "secret",
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"blank name", func(c *Config) { c.Name = "  " }},
		{"missing token url", func(c *Config) { c.TokenURL = "" }},
		{"missing userinfo url", func(c *Config) { c.UserInfoURL = "" }},
		{"missing client id", func(c *Config) { c.ClientID = "" }},
		{"missing client secret", func(c *Config) { c.ClientSecret = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if _, err := NewProvider(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if _, err := NewProvider(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestNewGoogle(t *testing.T) {
	provider, err := NewGoogle("id", "secret", "https://app.test/callback")
	if err != nil {
		t.Fatalf("NewGoogle failed: %v", err)
	}
	if provider.Name() != "google" {
		t.Fatalf("name = %q, want google", provider.Name())
	}
}
