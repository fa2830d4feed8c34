package authcore

import (
	"context"
	"errors"

	"github.com/cipherangel/authcore/token"
)

// VerifyAccess runs the access-token gate: signature, expiry, and kind are
// checked in one step. A refresh token presented here fails with
// ErrAccessTokenInvalid.
func (e *Engine) VerifyAccess(ctx context.Context, tokenStr string) (*token.Claims, error) {
	return e.verify(ctx, tokenStr, token.KindAccess, ErrAccessTokenInvalid)
}

// VerifyRefresh runs the refresh-token gate. On top of the codec checks it
// consults the revocation ledger; a jti the ledger does not know is treated
// as revoked.
func (e *Engine) VerifyRefresh(ctx context.Context, tokenStr string) (*token.Claims, error) {
	return e.verify(ctx, tokenStr, token.KindRefresh, ErrRefreshTokenInvalid)
}

// verify runs the gate for one token kind. mismatchErr is returned when the
// token decodes fine but carries the other kind; CurrentUser passes its own
// value there to keep its distinct error code.
func (e *Engine) verify(ctx context.Context, tokenStr string, kind token.Kind, mismatchErr error) (*token.Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	fail := func(err error) (*token.Claims, error) {
		if kind == token.KindAccess {
			e.metricInc(MetricAccessVerifyFailure)
		}
		return nil, err
	}

	if tokenStr == "" {
		return fail(ErrTokenMissing)
	}

	claims, err := e.tokens.Decode(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return fail(ErrTokenExpired)
		}
		return fail(gateError(kind))
	}

	switch kind {
	case token.KindAccess:
		if claims.Refresh {
			return fail(mismatchErr)
		}
	case token.KindRefresh:
		if !claims.Refresh {
			return fail(ErrRefreshTokenInvalid)
		}
		revoked, err := e.ledger.IsRevoked(ctx, claims.JTI())
		if err != nil {
			return fail(persistence("verify-refresh", err))
		}
		if revoked {
			return fail(ErrRefreshTokenInvalid)
		}
	}

	return claims, nil
}

func gateError(kind token.Kind) error {
	if kind == token.KindRefresh {
		return ErrRefreshTokenInvalid
	}
	return ErrAccessTokenInvalid
}
