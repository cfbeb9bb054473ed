// Package auth manages garage core accounts and API tokens.
//
// Accounts have one of two roles: user or admin. Passwords are stored as
// argon2id PHC strings. Access tokens are HS256 JWTs carrying the user id
// (sub), role and username; their lifetime comes from
// security.jwt.access_token_ttl.
//
// On first boot Bootstrap creates the configured admin account, or an
// "admin" account with a generated password that is logged once.
package auth
