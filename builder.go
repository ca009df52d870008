package otcauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasali/otcauth/session"
	"github.com/kasali/otcauth/token"
)

// Builder is the single composition root. All dependencies are explicit;
// there is no package-level registry.
type Builder struct {
	config   Config
	db       *gorm.DB
	redis    redis.UniversalClient
	ids      IdentityProvider
	delivery DeliveryChannel
	log      *zap.Logger

	built bool
}

// New starts a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDB sets the gorm handle backing the code and session tables.
func (b *Builder) WithDB(db *gorm.DB) *Builder {
	b.db = db
	return b
}

// WithRedis sets the Redis client backing the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider sets the external user store.
func (b *Builder) WithIdentityProvider(ids IdentityProvider) *Builder {
	b.ids = ids
	return b
}

// WithDeliveryChannel sets the channel that carries codes to contacts.
// Optional: without one, codes are stored but never sent (useful in tests).
func (b *Builder) WithDeliveryChannel(ch DeliveryChannel) *Builder {
	b.delivery = ch
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration, migrates the tables, and assembles
// the engine. A Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.db == nil {
		return nil, errors.New("database handle required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.ids == nil {
		return nil, errors.New("identity provider required")
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	if err := migrateCodes(b.db); err != nil {
		return nil, err
	}
	if err := session.Migrate(b.db); err != nil {
		return nil, err
	}

	tokens, err := token.NewService(cfg.Token)
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(
		session.NewStore(b.db),
		tokens,
		cfg.Session,
		log.Named("session"),
	)
	if err != nil {
		return nil, err
	}

	b.built = true

	return &Engine{
		config:     cfg,
		codes:      newCodeStore(b.db),
		limiter:    newCodeLimiter(b.redis, cfg.RateLimit),
		sessions:   manager,
		identities: b.ids,
		delivery:   b.delivery,
		metrics:    NewMetrics(),
		log:        log,
	}, nil
}
