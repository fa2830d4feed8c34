// Package redis provides a Redis-backed refresh token ledger. Rows expire
// with the tokens they track, so the keyspace stays bounded by the refresh
// TTL without a reaper.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	authcore "github.com/cipherangel/authcore"
)

const (
	stateLive    = "live"
	stateRevoked = "revoked"
)

// Ledger implements authcore.RefreshLedger on a Redis client. A jti with no
// key, whether never issued or expired out, reads as revoked.
type Ledger struct {
	client *redis.Client
	prefix string
}

// NewLedger wraps client. prefix namespaces the keys; empty means
// "authcore".
func NewLedger(client *redis.Client, prefix string) *Ledger {
	if prefix == "" {
		prefix = "authcore"
	}
	return &Ledger{
		client: client,
		prefix: prefix,
	}
}

func (l *Ledger) jtiKey(jti string) string {
	return fmt.Sprintf("%s:refresh:%s", l.prefix, jti)
}

func (l *Ledger) identityKey(identityID string) string {
	return fmt.Sprintf("%s:refresh-by-identity:%s", l.prefix, identityID)
}

// Issue records a live jti until its token expires and indexes it under the
// identity for bulk revocation. A jti the ledger already holds is a
// conflict, not an overwrite.
func (l *Ledger) Issue(ctx context.Context, rec authcore.RefreshTokenRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired at %s", rec.ExpiresAt)
	}

	pipe := l.client.TxPipeline()
	set := pipe.SetNX(ctx, l.jtiKey(rec.JTI), stateLive, ttl)
	pipe.SAdd(ctx, l.identityKey(rec.IdentityID), rec.JTI)
	// The index only needs to outlive its newest member.
	pipe.PExpire(ctx, l.identityKey(rec.IdentityID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if !set.Val() {
		return fmt.Errorf("refresh jti %s already issued", rec.JTI)
	}
	return nil
}

func (l *Ledger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	state, err := l.client.Get(ctx, l.jtiKey(jti)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return state != stateLive, nil
}

// Revoke flips a jti to revoked while keeping its remaining TTL, so the key
// still disappears when the token would have expired anyway.
func (l *Ledger) Revoke(ctx context.Context, jti string) error {
	key := l.jtiKey(jti)

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		// Key already gone; absence reads as revoked.
		return nil
	}

	return l.client.Set(ctx, key, stateRevoked, ttl).Err()
}

func (l *Ledger) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	jtis, err := l.client.SMembers(ctx, l.identityKey(identityID)).Result()
	if err != nil {
		return err
	}

	for _, jti := range jtis {
		if err := l.Revoke(ctx, jti); err != nil {
			return err
		}
	}
	return nil
}
