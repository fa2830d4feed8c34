package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full engine configuration. Zero values are filled in by
// DefaultConfig; Validate runs during Build.
type Config struct {
	Token     TokenConfig
	Password  PasswordConfig
	SingleUse SingleUseConfig
	Mail      MailConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig controls the signed token codec.
type TokenConfig struct {
	// Secret is the HMAC-SHA256 signing key. Minimum 32 bytes.
	Secret []byte
	// Issuer is stamped into and required from every token when set.
	Issuer string
	// AccessTTL bounds access token lifetime. Default 5 minutes.
	AccessTTL time.Duration
	// RefreshTTL bounds refresh token lifetime. Default 7 days.
	RefreshTTL time.Duration
	// Leeway tolerates clock skew during expiry checks. Maximum 2 minutes.
	Leeway time.Duration
}

// PasswordConfig mirrors the Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SingleUseConfig controls email verification and password reset tokens.
type SingleUseConfig struct {
	// TTL bounds single-use token lifetime. Default 30 minutes.
	TTL time.Duration
}

// MailConfig holds the link templates embedded in outbound mail. Each URL
// gets the raw token appended as its final path segment.
type MailConfig struct {
	VerificationURL  string
	PasswordResetURL string
	AppName          string
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration. The token secret must
// still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Leeway:     30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		SingleUse: SingleUseConfig{
			TTL: 30 * time.Minute,
		},
		Mail: MailConfig{
			AppName: "authcore",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate rejects configurations that would weaken token or credential
// guarantees. Password hash cost floors are enforced separately when the
// hasher is constructed.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}

	if len(c.Token.Secret) < 32 {
		return fmt.Errorf("token secret must be at least 32 bytes, got %d", len(c.Token.Secret))
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("token refresh TTL must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("token access TTL must be shorter than refresh TTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("token leeway must be between 0 and 2 minutes")
	}

	if c.SingleUse.TTL <= 0 {
		return errors.New("single-use token TTL must be positive")
	}

	for name, u := range map[string]string{
		"verification URL":   c.Mail.VerificationURL,
		"password reset URL": c.Mail.PasswordResetURL,
	} {
		if u == "" {
			continue
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("mail %s must be absolute", name)
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}

	return nil
}
