// Package token implements the signed token codec used by authcore.
//
// Tokens are compact JWS strings signed with a process-wide symmetric
// secret (HS256, fixed). The payload carries an identity snapshot, an
// expiry, a random jti, and a kind flag distinguishing access from
// refresh tokens:
//
//	{"user":{"email":...,"user_uid":...,"role":...},"exp":...,"jti":...,"refresh":bool}
//
// This shape is a compatibility contract: it must stay stable across
// versions so refresh tokens minted by one deployment decode in the next.
//
// Decode verifies signature and expiry in a single step. No claim is
// readable before signature verification succeeds: the only way to obtain
// a Claims value is through Decode (or Issue), so holding one implies the
// signature checked out.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects which lifetime and kind flag a minted token carries.
type Kind int

const (
	// KindAccess mints a short-lived, self-contained bearer token.
	KindAccess Kind = iota
	// KindRefresh mints a long-lived token tracked by the revocation ledger.
	KindRefresh
)

var (
	// ErrExpired reports a token whose signature verified but whose
	// expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed reports structural corruption, a signature mismatch,
	// or an unsupported signing algorithm. The three cases are deliberately
	// indistinguishable to callers.
	ErrMalformed = errors.New("token malformed or invalid")
)

const minSecretBytes = 32

// IdentitySnapshot is the subset of an identity embedded in every token.
type IdentitySnapshot struct {
	Email string `json:"email"`
	UID   string `json:"user_uid"`
	Role  string `json:"role,omitempty"`
}

// Claims is the verified payload of a decoded token. Values of this type
// are only constructible by this package, after signature verification.
type Claims struct {
	User    IdentitySnapshot `json:"user"`
	Refresh bool             `json:"refresh"`
	jwt.RegisteredClaims
}

// JTI returns the token's unique identifier, the revocation-lookup key.
func (c *Claims) JTI() string {
	return c.ID
}

// ExpiresAtTime returns the token expiry as a time.Time in UTC.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// Config configures a Manager. Secret is required and must carry at
// least 32 bytes of entropy.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Manager encodes and decodes signed tokens. Immutable after NewManager.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a codec bound to it.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue mints a signed token of the given kind for the identity snapshot.
// The jti is a fresh random UUID, so two tokens minted from identical
// inputs are never byte-equal.
func (m *Manager) Issue(user IdentitySnapshot, kind Kind) (signed string, jti string, expiresAt time.Time, err error) {
	ttl := m.config.AccessTTL
	if kind == KindRefresh {
		ttl = m.config.RefreshTTL
	}

	jti = uuid.NewString()
	expiresAt = time.Now().UTC().Add(ttl)

	claims := Claims{
		User:    user,
		Refresh: kind == KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ID:        jti,
			Issuer:    m.config.Issuer,
		},
	}

	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, expiresAt, nil
}

// Decode verifies signature and expiry of tokenStr and returns its claims.
// It fails with ErrExpired when the signature is valid but the token has
// expired, and ErrMalformed for everything else.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		// Expiry is only reported when the signature already verified;
		// jwt/v5 checks the signature before validating claims.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}
