package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	authcore "github.com/cipherangel/authcore"
)

type refreshLedger struct {
	q DBTX
}

func (r *refreshLedger) Issue(ctx context.Context, rec authcore.RefreshTokenRecord) error {
	query := `INSERT INTO refresh_tokens (jti, identity_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	_, err := r.q.ExecContext(ctx, query, rec.JTI, rec.IdentityID, rec.ExpiresAt, rec.Revoked)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *refreshLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	query := `SELECT revoked FROM refresh_tokens WHERE jti = $1`

	var revoked bool
	err := r.q.QueryRowContext(ctx, query, jti).Scan(&revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A jti the ledger never recorded is treated as revoked.
			return true, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

func (r *refreshLedger) Revoke(ctx context.Context, jti string) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE jti = $1`

	if _, err := r.q.ExecContext(ctx, query, jti); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *refreshLedger) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE identity_id = $1 AND NOT revoked`

	if _, err := r.q.ExecContext(ctx, query, identityID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
