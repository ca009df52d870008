package otcauth

import (
	"context"
	"time"
)

// Purpose scopes a one-time code to the flow that requested it. The
// at-most-one-valid-code invariant holds per (contact, purpose) pair.
type Purpose string

const (
	// PurposeLogin is a code proving contact ownership for an existing identity.
	PurposeLogin Purpose = "login"
	// PurposeSignup is a code proving contact ownership before identity creation.
	PurposeSignup Purpose = "signup"
	// PurposePasswordReset is a code authorizing a credential reset flow.
	PurposePasswordReset Purpose = "password_reset"
	// PurposePhoneVerification is a code confirming a phone number on an
	// already-authenticated account.
	PurposePhoneVerification Purpose = "phone_verification"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeSignup, PurposePasswordReset, PurposePhoneVerification:
		return true
	}
	return false
}

// Identity is the minimal account view the engine needs. The full profile
// lives behind the [IdentityProvider]; the engine only reads the fields
// required for session claims and the active/disabled gate.
type Identity struct {
	ID      string
	Contact string
	Name    string
	Role    string
	Active  bool
}

// Profile is the caller-supplied data for identity creation during signup.
type Profile struct {
	Name string
	Role string
}

// CreateIdentityInput is passed to [IdentityProvider.Create] after a
// signup code has been verified.
type CreateIdentityInput struct {
	Contact string
	Name    string
	Role    string
}

// IdentityProvider is implemented by the caller's user store. The engine
// consults it to resolve contacts, create accounts on signup, and record
// login timestamps. Implementations must return [ErrContactNotFound]
// (or an error wrapping it) when a contact is unknown.
type IdentityProvider interface {
	FindByContact(ctx context.Context, contact string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, input CreateIdentityInput) (*Identity, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// DeliveryChannel carries a generated code to the contact address (SMS,
// email). Send is fire-and-forget relative to the issuing request: a
// delivery failure is logged but does not invalidate the persisted code.
type DeliveryChannel interface {
	Send(ctx context.Context, contact, message string) (deliveryID string, err error)
}

// RequestCodeResult is returned by [Engine.RequestCode].
type RequestCodeResult struct {
	// ExpiresIn is the code TTL.
	ExpiresIn time.Duration
	// RetryAt is when the rate-limit window next resets for this contact.
	RetryAt time.Time
}

// VerifyCodeResult is returned by [Engine.VerifyCode]. IdentityHint is
// populated only for login-purpose verifications.
type VerifyCodeResult struct {
	Valid        bool
	IdentityHint *Identity
}

// AuthResult is returned by [Engine.Signup] and [Engine.Login].
type AuthResult struct {
	Identity     *Identity
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    time.Duration
}

// RefreshResult is returned by [Engine.RefreshToken].
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// ValidatedToken is returned by [Engine.ValidateToken]. It pairs the
// resolved identity with the session that authenticated the request.
type ValidatedToken struct {
	Identity  *Identity
	SessionID string
	ExpiresIn time.Duration
}
