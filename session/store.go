package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no row matches the lookup key.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps database failures so callers can keep them
	// distinct from domain outcomes.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store is the gorm-backed persistence layer for session rows. All
// mutations are single-row keyed updates except EvictOldestBeyond, which
// runs one transaction scoped to a user id.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db. Migrate must have been run before first use.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the sessions table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Session{}); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Create inserts a new session row.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FindBySessionID returns the row with the given opaque session id.
func (s *Store) FindBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	return s.findOne(ctx, "session_id = ?", sessionID)
}

// FindByAccessHash returns the row whose access token digest matches.
func (s *Store) FindByAccessHash(ctx context.Context, hash string) (*Session, error) {
	return s.findOne(ctx, "access_token_hash = ?", hash)
}

// FindByRefreshHash returns the row whose refresh token digest matches.
func (s *Store) FindByRefreshHash(ctx context.Context, hash string) (*Session, error) {
	return s.findOne(ctx, "refresh_token_hash = ?", hash)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).Where(query, arg).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &sess, nil
}

// UpdateTokens overwrites both token digests on an active row. Zero rows
// affected means the session vanished or was deactivated mid-rotation and
// surfaces as [ErrNotFound].
func (s *Store) UpdateTokens(ctx context.Context, sessionID, accessHash, refreshHash string) error {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]any{
			"access_token_hash":  accessHash,
			"refresh_token_hash": refreshHash,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch bumps last-used-at. Best-effort: a missing row is not an error.
func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Update("last_used_at", at).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Deactivate marks one session inactive and reports how many rows changed.
// Deactivating an already-inactive or absent session affects zero rows and
// is not an error.
func (s *Store) Deactivate(ctx context.Context, sessionID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}

// DeactivateAllForUser marks every active session for the user inactive.
func (s *Store) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}

// ActiveForUser lists the user's active sessions, oldest first. Creation
// order is the eviction order, so the ordering here is load-bearing.
func (s *Store) ActiveForUser(ctx context.Context, userID string) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at asc").Order("id asc").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sessions, nil
}

// CountActiveForUser returns the number of active sessions for the user.
func (s *Store) CountActiveForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// EvictOldestBeyond deactivates the oldest active sessions for the user
// until at most max remain. It runs as a single transaction scoped to the
// user id so concurrent logins for the same user cannot leave the count
// above the cap after both commit. Returns the session ids evicted.
func (s *Store) EvictOldestBeyond(ctx context.Context, userID string, max int) ([]string, error) {
	var evicted []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sessions []Session
		if err := tx.
			Where("user_id = ? AND is_active = ?", userID, true).
			Order("created_at asc").Order("id asc").
			Find(&sessions).Error; err != nil {
			return err
		}

		excess := len(sessions) - max
		if excess <= 0 {
			return nil
		}

		ids := make([]string, 0, excess)
		for _, sess := range sessions[:excess] {
			ids = append(ids, sess.SessionID)
		}

		res := tx.Model(&Session{}).
			Where("session_id IN ?", ids).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}

		evicted = ids
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return evicted, nil
}

// DeactivateExpired marks rows past their expiry inactive. Idempotent:
// only rows still flagged active are touched, so concurrent sweeps are
// safe.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpired hard-deletes rows whose expiry is older than the grace
// retention window.
func (s *Store) DeleteExpired(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-retention)
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Delete(&Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}
