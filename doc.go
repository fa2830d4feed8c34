// Package authcore implements the token lifecycle and credential
// verification core of a web application's authentication subsystem.
//
// The Engine issues paired access and refresh tokens, verifies presented
// tokens through per-kind gates, keeps a server-side revocation ledger for
// refresh tokens, and runs the single-use token flows behind email
// verification and password reset. Persistence, mail delivery, and federated
// code exchange sit behind the Store, Mailer, and FederationProvider
// interfaces; reference implementations live in the store, mail, and
// federation subpackages.
//
// Construct an Engine through the Builder:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithStore(st).
//		WithMailer(mailer).
//		Build()
//
// Engines are immutable after Build and safe for concurrent use.
package authcore
