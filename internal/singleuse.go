package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const (
	tokenIDSize     = 16
	tokenSecretSize = 32
	tokenRawSize    = tokenIDSize + tokenSecretSize
)

// ErrMalformedToken is returned for token strings that do not decode to
// exactly 48 bytes of base64url.
var ErrMalformedToken = errors.New("malformed single-use token")

// NewSingleUseToken mints a fresh opaque token. It returns the identifier
// half as a string, the full token for the outbound mail, and the SHA-256
// digest to persist.
func NewSingleUseToken() (id string, tok string, hash []byte, err error) {
	var raw [tokenRawSize]byte
	if _, err = rand.Read(raw[:]); err != nil {
		return "", "", nil, err
	}

	sum := sha256.Sum256(raw[:])

	id = base64.RawURLEncoding.EncodeToString(raw[:tokenIDSize])
	tok = base64.RawURLEncoding.EncodeToString(raw[:])
	return id, tok, sum[:], nil
}

// HashSingleUseToken recomputes the persisted digest for a presented token.
func HashSingleUseToken(tok string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return nil, ErrMalformedToken
	}
	if len(raw) != tokenRawSize {
		return nil, ErrMalformedToken
	}

	sum := sha256.Sum256(raw)
	return sum[:], nil
}
