package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	authcore "github.com/cipherangel/authcore"
)

type singleUseStore struct {
	q DBTX
}

func (r *singleUseStore) Save(ctx context.Context, rec authcore.SingleUseTokenRecord) error {
	query := `INSERT INTO single_use_tokens
		(id, secret_hash, identity_id, purpose, payload, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.ExecContext(ctx, query,
		rec.ID, rec.SecretHash, rec.IdentityID, string(rec.Purpose),
		rec.Payload, rec.ExpiresAt, rec.Used, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume burns the live record matching secretHash and purpose in one
// statement; the WHERE clause carries the used and expiry checks so two
// concurrent redeems cannot both win. Unknown, burned, and expired tokens
// all miss the UPDATE and read as the same ErrTokenInvalid.
func (r *singleUseStore) Consume(ctx context.Context, secretHash []byte, purpose authcore.TokenPurpose, now time.Time) (*authcore.SingleUseTokenRecord, error) {
	query := `UPDATE single_use_tokens SET used = TRUE
		WHERE secret_hash = $1 AND purpose = $2 AND NOT used AND expires_at > $3
		RETURNING id, identity_id, payload, expires_at, created_at`

	rec := &authcore.SingleUseTokenRecord{
		SecretHash: secretHash,
		Purpose:    purpose,
		Used:       true,
	}
	err := r.q.QueryRowContext(ctx, query, secretHash, string(purpose), now).
		Scan(&rec.ID, &rec.IdentityID, &rec.Payload, &rec.ExpiresAt, &rec.CreatedAt)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrTokenInvalid
	}
	return nil, fmt.Errorf("db error: %w", err)
}

func (r *singleUseStore) InvalidateLive(ctx context.Context, identityID string, purpose authcore.TokenPurpose) error {
	query := `UPDATE single_use_tokens SET used = TRUE
		WHERE identity_id = $1 AND purpose = $2 AND NOT used`

	if _, err := r.q.ExecContext(ctx, query, identityID, string(purpose)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
