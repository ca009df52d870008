package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasali/otcauth/internal"
	"github.com/kasali/otcauth/token"
)

var (
	// ErrExpired is returned when the session row backing a token is past
	// its expiry, or the presented token itself is stale.
	ErrExpired = errors.New("session expired")
	// ErrTokenMismatch is returned when a token fails signature
	// verification or its embedded session id does not match the row it
	// located. Treated as invalid, never as merely expired.
	ErrTokenMismatch = errors.New("session token mismatch")
)

// Config tunes the manager.
type Config struct {
	// MaxPerUser is the active-session cap. Creating a session beyond the
	// cap deactivates the oldest active session(s), by creation order.
	MaxPerUser int
	// TTL is the session lifetime from creation.
	TTL time.Duration
	// Retention is the grace period after expiry before rows are purged.
	Retention time.Duration
}

// Created is returned by Create and Refresh. Evicted reports how many
// older sessions cap enforcement deactivated; always zero on Refresh.
type Created struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Evicted      int
}

// Info describes a validated session.
type Info struct {
	SessionID  string
	UserID     string
	Role       string
	Device     Device
	ExpiresAt  time.Time
	Remaining  time.Duration
	LastUsedAt *time.Time
}

// Limit is returned by CheckLimit.
type Limit struct {
	HasReachedLimit bool
	ActiveCount     int
	Max             int
}

// Manager ties the stateless token service to revocable session rows.
type Manager struct {
	store  *Store
	tokens *token.Service
	config Config
	log    *zap.Logger
}

// NewManager builds a Manager. log may be nil.
func NewManager(store *Store, tokens *token.Service, cfg Config, log *zap.Logger) (*Manager, error) {
	if store == nil || tokens == nil {
		return nil, errors.New("session store and token service are required")
	}
	if cfg.MaxPerUser <= 0 {
		return nil, errors.New("session cap must be positive")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, tokens: tokens, config: cfg, log: log}, nil
}

// Create mints a new session: opaque id, access+refresh pair bound to it,
// one row, then FIFO cap enforcement for the user.
func (m *Manager) Create(ctx context.Context, userID, role string, dev Device) (*Created, error) {
	sessionID := uuid.NewString()

	accessToken, err := m.tokens.IssueAccess(userID, role, sessionID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := m.tokens.IssueRefresh(userID, role, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(m.config.TTL)
	sess := &Session{
		UserID:           userID,
		SessionID:        sessionID,
		Role:             role,
		AccessTokenHash:  internal.HashToken(accessToken),
		RefreshTokenHash: internal.HashToken(refreshToken),
		UserAgent:        dev.UserAgent,
		DeviceClass:      dev.DeviceClass,
		IP:               dev.IP,
		ExpiresAt:        expiresAt,
		IsActive:         true,
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	evicted, err := m.store.EvictOldestBeyond(ctx, userID, m.config.MaxPerUser)
	if err != nil {
		return nil, err
	}
	if len(evicted) > 0 {
		m.log.Info("session cap enforced",
			zap.String("user_id", userID),
			zap.Int("evicted", len(evicted)))
	}

	return &Created{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Evicted:      len(evicted),
	}, nil
}

// ValidateAccess checks an access token against its session row: the row
// must exist, be active, and be unexpired; the signature must verify; and
// the token's embedded session id must equal the row's. Expired rows are
// deactivated on sight.
func (m *Manager) ValidateAccess(ctx context.Context, accessToken string) (*Info, error) {
	sess, err := m.store.FindByAccessHash(ctx, internal.HashToken(accessToken))
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return nil, ErrTokenMismatch
	}

	now := time.Now()
	if sess.Expired(now) {
		if _, err := m.store.Deactivate(ctx, sess.SessionID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	claims, err := m.tokens.Verify(accessToken, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMismatch, err)
	}
	if claims.SessionID != sess.SessionID {
		return nil, ErrTokenMismatch
	}

	if err := m.store.Touch(ctx, sess.SessionID, now); err != nil {
		return nil, err
	}

	return &Info{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Role:      sess.Role,
		Device: Device{
			UserAgent:   sess.UserAgent,
			DeviceClass: sess.DeviceClass,
			IP:          sess.IP,
		},
		ExpiresAt:  sess.ExpiresAt,
		Remaining:  sess.ExpiresAt.Sub(now),
		LastUsedAt: &now,
	}, nil
}

// Refresh exchanges a refresh token for a brand-new pair under the same
// session id. Both stored digests are overwritten, so the old refresh
// token stops matching any row and replaying it fails.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Created, error) {
	sess, err := m.store.FindByRefreshHash(ctx, internal.HashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return nil, ErrTokenMismatch
	}

	now := time.Now()
	if sess.Expired(now) {
		if _, err := m.store.Deactivate(ctx, sess.SessionID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	claims, err := m.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMismatch, err)
	}
	if claims.SessionID != sess.SessionID {
		return nil, ErrTokenMismatch
	}

	accessToken, err := m.tokens.IssueAccess(sess.UserID, sess.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	nextRefresh, err := m.tokens.IssueRefresh(sess.UserID, sess.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}

	err = m.store.UpdateTokens(ctx, sess.SessionID,
		internal.HashToken(accessToken), internal.HashToken(nextRefresh))
	if err != nil {
		return nil, err
	}

	return &Created{
		SessionID:    sess.SessionID,
		AccessToken:  accessToken,
		RefreshToken: nextRefresh,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Logout deactivates one session. Idempotent: an already-inactive or
// unknown session id is not an error, the end state is the same.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	_, err := m.store.Deactivate(ctx, sessionID)
	return err
}

// LogoutAll deactivates every active session for the user and returns the
// count affected.
func (m *Manager) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return m.store.DeactivateAllForUser(ctx, userID)
}

// CheckLimit is a read-only helper for callers that want to warn before
// creating another session.
func (m *Manager) CheckLimit(ctx context.Context, userID string) (Limit, error) {
	count, err := m.store.CountActiveForUser(ctx, userID)
	if err != nil {
		return Limit{}, err
	}
	return Limit{
		HasReachedLimit: count >= int64(m.config.MaxPerUser),
		ActiveCount:     int(count),
		Max:             m.config.MaxPerUser,
	}, nil
}

// CleanupExpired deactivates rows past expiry and purges rows past the
// grace retention window. Safe to run concurrently from several workers:
// both steps act only on rows already past a deterministic timestamp.
func (m *Manager) CleanupExpired(ctx context.Context) (deactivated, purged int64, err error) {
	now := time.Now()

	deactivated, err = m.store.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}

	if m.config.Retention > 0 {
		purged, err = m.store.DeleteExpired(ctx, m.config.Retention, now)
		if err != nil {
			return deactivated, 0, err
		}
	}

	if deactivated > 0 || purged > 0 {
		m.log.Info("expired sessions cleaned",
			zap.Int64("deactivated", deactivated),
			zap.Int64("purged", purged))
	}
	return deactivated, purged, nil
}
