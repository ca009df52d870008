// Package token issues and verifies the signed access and refresh tokens
// that bind a caller to a server-side session. The two kinds are signed
// with distinct HS256 secrets so an access token can never be replayed as
// a refresh token (or vice versa). The package is stateless; revocation
// lives in the session layer.
package token
