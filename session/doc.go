// Package session persists revocable server-side session records and
// orchestrates their lifecycle: creation with per-user capacity
// enforcement, access-token validation, refresh rotation, revocation, and
// expiry maintenance. Tokens themselves are minted and checked by the
// token package; this package owns the binding between a token and its
// row, which is what makes revocation effective before token expiry.
package session
