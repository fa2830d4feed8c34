package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/cipherangel/authcore/token"
)

// Login verifies a local identity's credentials and issues an access and
// refresh token pair. Unknown email and wrong password both come back as
// ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	identity, err := e.store.Identities().ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// Burn a hash verification so the miss costs as much as a
			// wrong password.
			e.hasher.Verify(password, e.dummyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, persistence("login", err)
	}

	if !e.hasher.Verify(password, identity.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.UID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	result, err := e.issueSession(ctx, identity)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.UID, nil, nil)

	return result, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// refresh token itself is untouched and stays valid until expiry or
// revocation.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	claims, err := e.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", err, nil)
		return "", err
	}

	access, _, _, err := e.tokens.Issue(claims.User, token.KindAccess)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.User.UID, nil, nil)

	return access, nil
}

// Logout revokes every refresh token of the identity behind the presented
// access token. The access token itself stays valid until it expires.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.VerifyAccess(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := e.ledger.RevokeAllForIdentity(ctx, claims.User.UID); err != nil {
		return persistence("logout", err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.User.UID, nil, nil)

	return nil
}

// issueSession mints the token pair for an authenticated identity and
// records the refresh jti in the ledger. A ledger write failure fails the
// whole login.
func (e *Engine) issueSession(ctx context.Context, identity *Identity) (*LoginResult, error) {
	snapshot := e.snapshotOf(identity)

	access, _, accessExp, err := e.tokens.Issue(snapshot, token.KindAccess)
	if err != nil {
		return nil, err
	}

	refresh, jti, refreshExp, err := e.tokens.Issue(snapshot, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	rec := RefreshTokenRecord{
		JTI:        jti,
		IdentityID: identity.UID,
		ExpiresAt:  refreshExp,
	}
	if err := e.ledger.Issue(ctx, rec); err != nil {
		return nil, persistence("issue-refresh", err)
	}

	return &LoginResult{
		Tokens: TokenPair{
			AccessToken:      access,
			AccessExpiresAt:  accessExp,
			RefreshToken:     refresh,
			RefreshExpiresAt: refreshExp,
		},
		User: snapshot,
	}, nil
}
