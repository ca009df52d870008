package otcauth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testPhone      = "+2348012345678"
	testOtherPhone = "+14155550123"
)

type testEnv struct {
	engine   *Engine
	redis    *miniredis.Miniredis
	db       *gorm.DB
	ids      *fakeIdentities
	delivery *fakeDelivery
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Each pooled connection would otherwise get its own in-memory database.
	sqlDB.SetMaxOpenConns(1)

	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")
	for _, fn := range mutate {
		fn(&cfg)
	}

	ids := newFakeIdentities()
	delivery := &fakeDelivery{}

	engine, err := New().
		WithConfig(cfg).
		WithDB(db).
		WithRedis(client).
		WithIdentityProvider(ids).
		WithDeliveryChannel(delivery).
		Build()
	require.NoError(t, err)

	return &testEnv{engine: engine, redis: mr, db: db, ids: ids, delivery: delivery}
}

// requestCode issues a code and returns the digits that went out through
// the delivery channel.
func (e *testEnv) requestCode(t *testing.T, contact string, purpose Purpose) string {
	t.Helper()

	_, err := e.engine.RequestCode(context.Background(), contact, purpose)
	require.NoError(t, err)
	code := e.delivery.lastCode()
	require.NotEmpty(t, code)
	return code
}

// validCodeCount counts unused, unexpired code rows for the pair.
func (e *testEnv) validCodeCount(t *testing.T, contact string, purpose Purpose) int64 {
	t.Helper()

	var count int64
	err := e.db.Model(&OneTimeCode{}).
		Where("contact = ? AND purpose = ? AND is_used = ?", contact, purpose, false).
		Count(&count).Error
	require.NoError(t, err)
	return count
}

type fakeIdentities struct {
	mu        sync.Mutex
	seq       int
	byID      map[string]*Identity
	byContact map[string]string

	failFinds       bool
	lastLoginCalls  int
	failLastLogin   bool
	lastLoginUserID string
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{
		byID:      make(map[string]*Identity),
		byContact: make(map[string]string),
	}
}

func (f *fakeIdentities) add(contact string, active bool) *Identity {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	identity := &Identity{
		ID:      fmt.Sprintf("user-%d", f.seq),
		Contact: contact,
		Active:  active,
	}
	f.byID[identity.ID] = identity
	f.byContact[contact] = identity.ID
	return identity
}

func (f *fakeIdentities) FindByContact(_ context.Context, contact string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFinds {
		return nil, errors.New("identity store down")
	}
	id, ok := f.byContact[contact]
	if !ok {
		return nil, ErrContactNotFound
	}
	clone := *f.byID[id]
	return &clone, nil
}

func (f *fakeIdentities) FindByID(_ context.Context, id string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFinds {
		return nil, errors.New("identity store down")
	}
	identity, ok := f.byID[id]
	if !ok {
		return nil, ErrContactNotFound
	}
	clone := *identity
	return &clone, nil
}

func (f *fakeIdentities) Create(_ context.Context, input CreateIdentityInput) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	identity := &Identity{
		ID:      fmt.Sprintf("user-%d", f.seq),
		Contact: input.Contact,
		Name:    input.Name,
		Role:    input.Role,
		Active:  true,
	}
	f.byID[identity.ID] = identity
	f.byContact[identity.Contact] = identity.ID
	clone := *identity
	return &clone, nil
}

func (f *fakeIdentities) UpdateLastLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastLoginCalls++
	f.lastLoginUserID = id
	if f.failLastLogin {
		return errors.New("identity store down")
	}
	return nil
}

func (f *fakeIdentities) setActive(contact string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byContact[contact]; ok {
		f.byID[id].Active = active
	}
}

var codeInMessage = regexp.MustCompile(`[0-9]{4,10}`)

type fakeDelivery struct {
	mu       sync.Mutex
	messages []string
	contacts []string
	fail     bool
}

func (d *fakeDelivery) Send(_ context.Context, contact, message string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fail {
		return "", errors.New("gateway unreachable")
	}
	d.messages = append(d.messages, message)
	d.contacts = append(d.contacts, contact)
	return fmt.Sprintf("msg-%d", len(d.messages)), nil
}

func (d *fakeDelivery) lastCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.messages) == 0 {
		return ""
	}
	return codeInMessage.FindString(d.messages[len(d.messages)-1])
}

func (d *fakeDelivery) sent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}
