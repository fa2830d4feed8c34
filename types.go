package authcore

import (
	"context"
	"time"

	"github.com/cipherangel/authcore/token"
)

// Identity is an account known to the engine. PasswordHash is empty for
// identities created through a federation provider.
type Identity struct {
	UID             string
	Email           string
	Username        string
	FirstName       string
	LastName        string
	PasswordHash    string
	Role            string
	Verified        bool
	Provider        string
	ProviderSubject string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateIdentityInput carries the fields accepted at registration. The
// Password field holds the plaintext; the engine hashes it before the input
// reaches a store.
type CreateIdentityInput struct {
	Email           string
	Username        string
	FirstName       string
	LastName        string
	Password        string
	Role            string
	Verified        bool
	Provider        string
	ProviderSubject string
}

// RefreshTokenRecord is one ledger row per issued refresh token. Revoked
// moves from false to true exactly once and never back.
type RefreshTokenRecord struct {
	JTI        string
	IdentityID string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
}

// TokenPurpose scopes a single-use token to the flow it was minted for.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeResetPassword TokenPurpose = "reset-password"
)

// SingleUseTokenRecord is the server-side half of an opaque single-use token.
// Only a SHA-256 of the token material is stored; the raw token exists solely
// in the mail sent to the identity's address.
type SingleUseTokenRecord struct {
	ID         string
	SecretHash []byte
	IdentityID string
	Purpose    TokenPurpose
	Payload    string
	ExpiresAt  time.Time
	Used       bool
	CreatedAt  time.Time
}

// IdentityStore persists identities. Implementations map their uniqueness
// violations to ErrIdentityExists and their not-found results to
// ErrIdentityNotFound.
type IdentityStore interface {
	Create(ctx context.Context, identity *Identity) error
	ByEmail(ctx context.Context, email string) (*Identity, error)
	ByUID(ctx context.Context, uid string) (*Identity, error)
	ByProviderSubject(ctx context.Context, provider, subject string) (*Identity, error)
	SetVerified(ctx context.Context, uid string) error
	UpdatePasswordHash(ctx context.Context, uid, hash string) error
}

// RefreshLedger tracks every issued refresh token by jti. IsRevoked reports
// true for a jti the ledger has never seen; an absent row is treated the same
// as a revoked one. Issue fails on a jti the ledger already holds.
type RefreshLedger interface {
	Issue(ctx context.Context, rec RefreshTokenRecord) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) error
	RevokeAllForIdentity(ctx context.Context, identityID string) error
}

// SingleUseTokenStore persists single-use tokens. Consume atomically flips
// the used flag of the live record matching secretHash and purpose. Unknown,
// already used, and expired tokens all fail with the same ErrTokenInvalid so
// redemption leaks nothing about a token's state.
type SingleUseTokenStore interface {
	Save(ctx context.Context, rec SingleUseTokenRecord) error
	Consume(ctx context.Context, secretHash []byte, purpose TokenPurpose, now time.Time) (*SingleUseTokenRecord, error)
	InvalidateLive(ctx context.Context, identityID string, purpose TokenPurpose) error
}

// Store aggregates the three persistence surfaces. WithinTx runs fn against a
// Store view bound to one transaction; fn returning an error rolls everything
// back.
type Store interface {
	Identities() IdentityStore
	RefreshTokens() RefreshLedger
	SingleUseTokens() SingleUseTokenStore
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// Message is an outbound mail. Body is HTML.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Failures surface to engine callers wrapped in
// NotificationError.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// FederatedIdentity is the profile a provider returns after code exchange.
type FederatedIdentity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// FederationProvider exchanges an authorization code for a profile at an
// external identity provider.
type FederationProvider interface {
	Name() string
	Exchange(ctx context.Context, code string) (*FederatedIdentity, error)
}

// TokenPair is the product of a successful login.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult bundles the token pair with the identity snapshot embedded in
// both tokens.
type LoginResult struct {
	Tokens TokenPair
	User   token.IdentitySnapshot
}
