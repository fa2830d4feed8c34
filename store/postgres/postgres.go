// Package postgres implements authcore.Store on PostgreSQL through
// database/sql with the pgx stdlib driver. Schema management runs through
// goose with migrations embedded in the binary.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	authcore "github.com/cipherangel/authcore"
	"github.com/cipherangel/authcore/store/postgres/migrations"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements authcore.Store. The zero value is unusable; construct
// with New.
type Store struct {
	// db is nil on the view handed to a WithinTx callback.
	db *sql.DB
	q  DBTX
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Open connects with the pgx stdlib driver and pings the server.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close closes the underlying handle. No-op on a transactional view.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunMigrations applies the embedded goose migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	if s.db == nil {
		return errors.New("migrations cannot run inside a transaction")
	}
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *Store) Identities() authcore.IdentityStore            { return &identityStore{q: s.q} }
func (s *Store) RefreshTokens() authcore.RefreshLedger         { return &refreshLedger{q: s.q} }
func (s *Store) SingleUseTokens() authcore.SingleUseTokenStore { return &singleUseStore{q: s.q} }

// WithinTx runs fn against a Store view bound to one transaction. Commit on
// nil, rollback on error or panic; panics are rethrown. Nested calls join
// the enclosing transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(authcore.Store) error) (err error) {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(&Store{q: tx})
	return err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
