package otcauth

import "errors"

var (
	// ErrContactInvalid is returned when a contact value fails the phone or
	// email format check before any backend is consulted.
	ErrContactInvalid = errors.New("invalid contact value")
	// ErrRateLimited is returned when the contact has exhausted its code
	// request budget for the current window.
	ErrRateLimited = errors.New("code request rate limited")
	// ErrContactExists is returned for signup-purpose requests when the
	// contact already resolves to an identity.
	ErrContactExists = errors.New("contact already registered")
	// ErrContactNotFound is returned for login-purpose requests when the
	// contact does not resolve to an identity.
	ErrContactNotFound = errors.New("contact not registered")
	// ErrCodeNotFound is returned when no valid (unused, unexpired) code
	// exists for the contact and purpose.
	ErrCodeNotFound = errors.New("no valid code found")
	// ErrCodeInvalid is returned on a code mismatch while attempts remain.
	// The wrapped message carries the attempts-remaining count.
	ErrCodeInvalid = errors.New("invalid code")
	// ErrCodeExhausted is returned once the attempt budget is spent. The
	// record is terminal; even the correct code fails from then on.
	ErrCodeExhausted = errors.New("code attempts exhausted")
	// ErrCodeExpired is returned when the matching code exists but is past
	// its TTL.
	ErrCodeExpired = errors.New("code expired")
	// ErrUnauthorized covers bad signatures, session/token binding
	// mismatches, and inactive sessions.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is returned when the session row backing a token is
	// past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrAccountDisabled is returned when the resolved identity is
	// administratively deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrStoreUnavailable wraps database, Redis, and delivery backend
	// failures. It is deliberately opaque so infrastructure trouble is never
	// distinguishable from bad credentials by an external caller.
	ErrStoreUnavailable = errors.New("auth backend unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build
	// completed or a required dependency was not provided.
	ErrEngineNotReady = errors.New("engine not initialized")
)
