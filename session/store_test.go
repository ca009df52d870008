package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, store *Store, userID string, n int, expiresAt time.Time) *Session {
	t.Helper()

	sess := &Session{
		UserID:           userID,
		SessionID:        fmt.Sprintf("%s-sess-%d", userID, n),
		AccessTokenHash:  fmt.Sprintf("%s-access-%d", userID, n),
		RefreshTokenHash: fmt.Sprintf("%s-refresh-%d", userID, n),
		ExpiresAt:        expiresAt,
		IsActive:         true,
	}
	require.NoError(t, store.Create(context.Background(), sess))
	return sess
}

func TestStoreFindNotFound(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.FindBySessionID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindByAccessHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindByRefreshHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeactivateCounts(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()
	sess := seedSession(t, store, "user-1", 0, time.Now().Add(time.Hour))

	n, err := store.Deactivate(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.Deactivate(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestStoreTouchMissingRowIsNotAnError(t *testing.T) {
	store := NewStore(newTestDB(t))
	assert.NoError(t, store.Touch(context.Background(), "missing", time.Now()))
}

func TestStoreUpdateTokensRequiresActiveRow(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()
	sess := seedSession(t, store, "user-1", 0, time.Now().Add(time.Hour))

	_, err := store.Deactivate(ctx, sess.SessionID)
	require.NoError(t, err)

	err = store.UpdateTokens(ctx, sess.SessionID, "new-access", "new-refresh")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvictOldestBeyond(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	for i := 0; i < 5; i++ {
		seedSession(t, store, "user-1", i, expiry)
		time.Sleep(5 * time.Millisecond)
	}

	evicted, err := store.EvictOldestBeyond(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1-sess-0", "user-1-sess-1"}, evicted)

	active, err := store.ActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "user-1-sess-2", active[0].SessionID)

	// Already at the cap: nothing to evict.
	evicted, err = store.EvictOldestBeyond(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.Empty(t, evicted)
}

func TestDeactivateExpired(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	seedSession(t, store, "user-1", 0, time.Now().Add(-time.Minute))
	live := seedSession(t, store, "user-1", 1, time.Now().Add(time.Hour))

	n, err := store.DeactivateExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	active, err := store.ActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, live.SessionID, active[0].SessionID)
}

func TestDeleteExpiredHonorsRetention(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	old := seedSession(t, store, "user-1", 0, time.Now().Add(-48*time.Hour))
	recent := seedSession(t, store, "user-1", 1, time.Now().Add(-time.Minute))

	n, err := store.DeleteExpired(ctx, 24*time.Hour, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.FindBySessionID(ctx, old.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindBySessionID(ctx, recent.SessionID)
	assert.NoError(t, err)
}
