// Package auth implements user accounts and the OAuth2 token service
// used for voice assistant account linking.
//
// # Overview
//
// Accounts are identified by email address. Passwords are hashed with
// Argon2id and stored in PHC string format. A new account must confirm
// its email address (24 hour token) before it can log in.
//
// Three token kinds circulate:
//
//   - Access tokens: short-lived HS256 JWTs, validated by signature
//     with no database hit, then resolved to a user.
//   - Refresh tokens: opaque 256-bit random values. Only the SHA-256
//     hash is stored; redemption rotates the token atomically.
//   - Email tokens: opaque single-use values for email confirmation
//     (24 h) and password reset (1 h), stored hashed like refresh
//     tokens.
//
// The OAuth2 surface issues 10-minute single-use authorization codes
// from /oauth/authorize and exchanges them (or refresh tokens) for a
// Bearer token pair at /oauth/token. Clients are statically configured;
// both client_id and client_secret are checked on exchange.
//
// The Service type composes the repositories, the mailer, and the
// token settings; HTTP handlers call only the Service.
package auth
