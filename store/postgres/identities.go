package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	authcore "github.com/cipherangel/authcore"
)

type identityStore struct {
	q DBTX
}

const identityColumns = `uid, email, username, first_name, last_name, password_hash,
	role, verified, provider, provider_subject, created_at, updated_at`

func (r *identityStore) Create(ctx context.Context, identity *authcore.Identity) error {
	query := `INSERT INTO identities
		(uid, email, username, first_name, last_name, password_hash,
		 role, verified, provider, provider_subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.q.ExecContext(ctx, query,
		identity.UID, identity.Email, identity.Username,
		identity.FirstName, identity.LastName, identity.PasswordHash,
		identity.Role, identity.Verified, identity.Provider,
		identity.ProviderSubject, identity.CreatedAt, identity.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrIdentityExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *identityStore) ByEmail(ctx context.Context, email string) (*authcore.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, email))
}

func (r *identityStore) ByUID(ctx context.Context, uid string) (*authcore.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE uid = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, uid))
}

func (r *identityStore) ByProviderSubject(ctx context.Context, provider, subject string) (*authcore.Identity, error) {
	if subject == "" {
		return nil, authcore.ErrIdentityNotFound
	}
	query := `SELECT ` + identityColumns + ` FROM identities
		WHERE provider = $1 AND provider_subject = $2`
	return r.scanOne(r.q.QueryRowContext(ctx, query, provider, subject))
}

func (r *identityStore) SetVerified(ctx context.Context, uid string) error {
	query := `UPDATE identities SET verified = TRUE, updated_at = NOW() WHERE uid = $1`
	return r.execOne(ctx, query, uid)
}

func (r *identityStore) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	query := `UPDATE identities SET password_hash = $2, updated_at = NOW() WHERE uid = $1`
	return r.execOne(ctx, query, uid, hash)
}

func (r *identityStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return authcore.ErrIdentityNotFound
	}
	return nil
}

func (r *identityStore) scanOne(row *sql.Row) (*authcore.Identity, error) {
	identity := &authcore.Identity{}
	err := row.Scan(
		&identity.UID, &identity.Email, &identity.Username,
		&identity.FirstName, &identity.LastName, &identity.PasswordHash,
		&identity.Role, &identity.Verified, &identity.Provider,
		&identity.ProviderSubject, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return identity, nil
}
