package otcauth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kasali/otcauth/session"
)

// Engine is the entry point for the auth subsystem. It owns the code
// engine and delegates session work to the session manager; identity and
// delivery concerns stay behind the caller-provided interfaces. Build one
// through [New]; an Engine is immutable after Build and safe for
// concurrent use.
type Engine struct {
	config     Config
	codes      *codeStore
	limiter    *codeLimiter
	sessions   *session.Manager
	identities IdentityProvider
	delivery   DeliveryChannel
	metrics    *Metrics
	log        *zap.Logger
}

// Signup verifies a signup-purpose code, creates the identity, and mints
// the first session for it.
func (e *Engine) Signup(ctx context.Context, contact string, profile Profile, code string) (*AuthResult, error) {
	if e == nil || e.sessions == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := e.VerifyCode(ctx, contact, code, PurposeSignup); err != nil {
		return nil, err
	}

	identity, err := e.identities.Create(ctx, CreateIdentityInput{
		Contact: NormalizeContact(contact),
		Name:    profile.Name,
		Role:    profile.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return e.openSession(ctx, identity)
}

// Login verifies a login-purpose code, resolves the identity, rejects
// administratively disabled accounts, and mints a session.
func (e *Engine) Login(ctx context.Context, contact, code string) (*AuthResult, error) {
	if e == nil || e.sessions == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	verified, err := e.VerifyCode(ctx, contact, code, PurposeLogin)
	if err != nil {
		return nil, err
	}

	identity := verified.IdentityHint
	if identity == nil {
		identity, err = e.identities.FindByContact(ctx, NormalizeContact(contact))
		if err != nil {
			if errors.Is(err, ErrContactNotFound) {
				return nil, ErrContactNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if !identity.Active {
		return nil, ErrAccountDisabled
	}

	if err := e.identities.UpdateLastLogin(ctx, identity.ID); err != nil {
		// Best effort: the login itself already succeeded.
		e.log.Warn("last-login update failed", zap.String("user_id", identity.ID), zap.Error(err))
	}

	return e.openSession(ctx, identity)
}

func (e *Engine) openSession(ctx context.Context, identity *Identity) (*AuthResult, error) {
	created, err := e.sessions.Create(ctx, identity.ID, identity.Role, session.Device{
		UserAgent:   userAgentFromContext(ctx),
		DeviceClass: deviceClassFromContext(ctx),
		IP:          clientIPFromContext(ctx),
	})
	if err != nil {
		return nil, e.mapSessionError(err)
	}

	e.metrics.Inc(MetricSessionCreated)
	if created.Evicted > 0 {
		e.metrics.Add(MetricSessionEvicted, uint64(created.Evicted))
	}
	return &AuthResult{
		Identity:     identity,
		AccessToken:  created.AccessToken,
		RefreshToken: created.RefreshToken,
		SessionID:    created.SessionID,
		ExpiresIn:    e.config.Token.AccessTTL,
	}, nil
}

// ValidateToken validates an access token against its session row and
// resolves the owning identity. This is the middleware entry point.
func (e *Engine) ValidateToken(ctx context.Context, accessToken string) (*ValidatedToken, error) {
	if e == nil || e.sessions == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	info, err := e.sessions.ValidateAccess(ctx, accessToken)
	if err != nil {
		return nil, e.mapSessionError(err)
	}

	identity, err := e.identities.FindByID(ctx, info.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !identity.Active {
		return nil, ErrAccountDisabled
	}

	return &ValidatedToken{
		Identity:  identity,
		SessionID: info.SessionID,
		ExpiresIn: info.Remaining,
	}, nil
}

// RefreshToken rotates the token pair for the session the refresh token
// belongs to. The previous refresh token stops validating immediately.
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	created, err := e.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, e.mapSessionError(err)
	}

	e.metrics.Inc(MetricSessionRefreshed)
	return &RefreshResult{
		AccessToken:  created.AccessToken,
		RefreshToken: created.RefreshToken,
		ExpiresIn:    e.config.Token.AccessTTL,
	}, nil
}

// Logout deactivates one session. Idempotent: logging out an already
// inactive session succeeds, the end state is identical.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if err := e.sessions.Logout(ctx, sessionID); err != nil {
		return e.mapSessionError(err)
	}
	e.metrics.Inc(MetricLogout)
	return nil
}

// LogoutAll deactivates every active session for the user and returns the
// count affected.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	count, err := e.sessions.LogoutAll(ctx, userID)
	if err != nil {
		return 0, e.mapSessionError(err)
	}
	e.metrics.Inc(MetricLogout)
	return count, nil
}

// CheckSessionLimit reports whether the user is at the session cap.
func (e *Engine) CheckSessionLimit(ctx context.Context, userID string) (session.Limit, error) {
	if e == nil || e.sessions == nil {
		return session.Limit{}, ErrEngineNotReady
	}
	limit, err := e.sessions.CheckLimit(ctx, userID)
	if err != nil {
		return session.Limit{}, e.mapSessionError(err)
	}
	return limit, nil
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

// mapSessionError folds session-layer outcomes into the public taxonomy.
// Lookup misses, inactive rows, and binding mismatches all collapse into
// ErrUnauthorized so callers cannot distinguish them.
func (e *Engine) mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrTokenMismatch):
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
