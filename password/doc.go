// Package password implements one-way password hashing and verification
// with Argon2id.
//
// # Output format
//
// Digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The salt is randomized per call, so hashing the same plaintext twice
// yields different digests; Verify recovers the parameters from the
// digest itself.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy
// (minimum length) is enforced by the Engine. Verify never fails loudly:
// a structurally invalid digest verifies as false, the same answer a
// wrong password gets.
package password
