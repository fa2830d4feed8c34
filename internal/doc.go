// Package internal holds the opaque single-use token encoding shared by the
// engine and its stores. Tokens are 48 random bytes, a 16 byte identifier
// followed by a 32 byte secret, carried as unpadded base64url. Only the
// SHA-256 of the full 48 bytes is ever persisted.
package internal
