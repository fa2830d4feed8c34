// Package memory provides an in-process Store for tests and examples. All
// data lives in maps behind one mutex; WithinTx serializes the callback and
// rolls back by restoring a deep copy on error.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	authcore "github.com/cipherangel/authcore"
)

// Store implements authcore.Store in process memory.
type Store struct {
	mu         sync.Mutex
	identities map[string]*authcore.Identity
	refresh    map[string]*authcore.RefreshTokenRecord
	singleUse  map[string]*authcore.SingleUseTokenRecord

	// inTx suppresses locking for the view passed to a WithinTx callback.
	inTx bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		identities: make(map[string]*authcore.Identity),
		refresh:    make(map[string]*authcore.RefreshTokenRecord),
		singleUse:  make(map[string]*authcore.SingleUseTokenRecord),
	}
}

func (s *Store) Identities() authcore.IdentityStore          { return (*identityStore)(s) }
func (s *Store) RefreshTokens() authcore.RefreshLedger       { return (*refreshLedger)(s) }
func (s *Store) SingleUseTokens() authcore.SingleUseTokenStore { return (*singleUseStore)(s) }

// WithinTx runs fn under the store lock against a snapshot-backed view.
// When fn errors, every map is restored from the snapshot.
func (s *Store) WithinTx(ctx context.Context, fn func(authcore.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapIdentities := cloneIdentityMap(s.identities)
	snapRefresh := cloneRefreshMap(s.refresh)
	snapSingleUse := cloneSingleUseMap(s.singleUse)

	view := &Store{
		identities: s.identities,
		refresh:    s.refresh,
		singleUse:  s.singleUse,
		inTx:       true,
	}

	if err := fn(view); err != nil {
		s.identities = snapIdentities
		s.refresh = snapRefresh
		s.singleUse = snapSingleUse
		return err
	}

	return nil
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type identityStore Store

func (s *identityStore) Create(ctx context.Context, identity *authcore.Identity) error {
	defer (*Store)(s).lock()()

	for _, existing := range s.identities {
		if existing.Email == identity.Email || existing.Username == identity.Username {
			return authcore.ErrIdentityExists
		}
		if identity.ProviderSubject != "" &&
			existing.Provider == identity.Provider &&
			existing.ProviderSubject == identity.ProviderSubject {
			return authcore.ErrIdentityExists
		}
	}

	cp := *identity
	s.identities[identity.UID] = &cp
	return nil
}

func (s *identityStore) ByEmail(ctx context.Context, email string) (*authcore.Identity, error) {
	defer (*Store)(s).lock()()

	for _, identity := range s.identities {
		if strings.EqualFold(identity.Email, email) {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, authcore.ErrIdentityNotFound
}

func (s *identityStore) ByUID(ctx context.Context, uid string) (*authcore.Identity, error) {
	defer (*Store)(s).lock()()

	identity, ok := s.identities[uid]
	if !ok {
		return nil, authcore.ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

func (s *identityStore) ByProviderSubject(ctx context.Context, provider, subject string) (*authcore.Identity, error) {
	defer (*Store)(s).lock()()

	if subject == "" {
		return nil, authcore.ErrIdentityNotFound
	}
	for _, identity := range s.identities {
		if identity.Provider == provider && identity.ProviderSubject == subject {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, authcore.ErrIdentityNotFound
}

func (s *identityStore) SetVerified(ctx context.Context, uid string) error {
	defer (*Store)(s).lock()()

	identity, ok := s.identities[uid]
	if !ok {
		return authcore.ErrIdentityNotFound
	}
	identity.Verified = true
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *identityStore) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	defer (*Store)(s).lock()()

	identity, ok := s.identities[uid]
	if !ok {
		return authcore.ErrIdentityNotFound
	}
	identity.PasswordHash = hash
	identity.UpdatedAt = time.Now().UTC()
	return nil
}

type refreshLedger Store

func (s *refreshLedger) Issue(ctx context.Context, rec authcore.RefreshTokenRecord) error {
	defer (*Store)(s).lock()()

	if _, ok := s.refresh[rec.JTI]; ok {
		return fmt.Errorf("refresh jti %s already issued", rec.JTI)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := rec
	s.refresh[rec.JTI] = &cp
	return nil
}

func (s *refreshLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	defer (*Store)(s).lock()()

	rec, ok := s.refresh[jti]
	if !ok {
		return true, nil
	}
	return rec.Revoked, nil
}

func (s *refreshLedger) Revoke(ctx context.Context, jti string) error {
	defer (*Store)(s).lock()()

	if rec, ok := s.refresh[jti]; ok {
		rec.Revoked = true
	}
	return nil
}

func (s *refreshLedger) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	defer (*Store)(s).lock()()

	for _, rec := range s.refresh {
		if rec.IdentityID == identityID {
			rec.Revoked = true
		}
	}
	return nil
}

type singleUseStore Store

func (s *singleUseStore) Save(ctx context.Context, rec authcore.SingleUseTokenRecord) error {
	defer (*Store)(s).lock()()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := rec
	cp.SecretHash = append([]byte(nil), rec.SecretHash...)
	s.singleUse[rec.ID] = &cp
	return nil
}

func (s *singleUseStore) Consume(ctx context.Context, secretHash []byte, purpose authcore.TokenPurpose, now time.Time) (*authcore.SingleUseTokenRecord, error) {
	defer (*Store)(s).lock()()

	for _, rec := range s.singleUse {
		if rec.Purpose != purpose || !bytes.Equal(rec.SecretHash, secretHash) {
			continue
		}
		// Used and expired read the same as unknown, so redemption
		// leaks nothing about a token's state.
		if rec.Used || now.After(rec.ExpiresAt) {
			return nil, authcore.ErrTokenInvalid
		}
		rec.Used = true
		cp := *rec
		return &cp, nil
	}
	return nil, authcore.ErrTokenInvalid
}

func (s *singleUseStore) InvalidateLive(ctx context.Context, identityID string, purpose authcore.TokenPurpose) error {
	defer (*Store)(s).lock()()

	for _, rec := range s.singleUse {
		if rec.IdentityID == identityID && rec.Purpose == purpose && !rec.Used {
			rec.Used = true
		}
	}
	return nil
}

func cloneIdentityMap(in map[string]*authcore.Identity) map[string]*authcore.Identity {
	out := make(map[string]*authcore.Identity, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}

func cloneRefreshMap(in map[string]*authcore.RefreshTokenRecord) map[string]*authcore.RefreshTokenRecord {
	out := make(map[string]*authcore.RefreshTokenRecord, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}

func cloneSingleUseMap(in map[string]*authcore.SingleUseTokenRecord) map[string]*authcore.SingleUseTokenRecord {
	out := make(map[string]*authcore.SingleUseTokenRecord, len(in))
	for k, v := range in {
		cp := *v
		cp.SecretHash = append([]byte(nil), v.SecretHash...)
		out[k] = &cp
	}
	return out
}
