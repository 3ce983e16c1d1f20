package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synccord/authcore/internal/keylock"
	"github.com/synccord/authcore/password"
	"github.com/synccord/authcore/revocation"
	"github.com/synccord/authcore/token"
	"github.com/synccord/authcore/totp"
)

// Builder assembles an Engine. A Builder is single-use: Build returns an
// error when called twice.
type Builder struct {
	config Config
	store  UserStore
	redis  *redis.Client
	cache  revocation.Cache
	clock  Clock
	sink   AuditSink
	built  bool
}

// New returns a Builder loaded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration. The config is cloned, so
// later mutation of cfg does not affect the builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the credential store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithRedis backs the revocation cache with redis so revocations are shared
// across processes. Without it an in-memory bounded cache is used.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithRevocationCache installs a custom revocation cache. Takes precedence
// over WithRedis.
func (b *Builder) WithRevocationCache(cache revocation.Cache) *Builder {
	b.cache = cache
	return b
}

// WithClock injects a time source for deterministic expiry and TOTP tests.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithAuditSink sets the destination for audit events. NoOpSink when unset.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration, wires every component, and returns the
// ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, err
	}

	ttl := cfg.Token.TTL
	if ttl <= 0 {
		ttl = revocation.DefaultTTL
	}
	tokens, err := token.NewManager(token.Config{
		Secret: cfg.Token.Secret,
		TTL:    ttl,
		Issuer: cfg.ServiceName,
		Leeway: cfg.Token.Leeway,
		Now:    clock,
	})
	if err != nil {
		return nil, err
	}

	totpCfg := totp.DefaultConfig(cfg.ServiceName)
	if cfg.TOTP.Period > 0 {
		totpCfg.Period = cfg.TOTP.Period
	}
	if cfg.TOTP.Digits > 0 {
		totpCfg.Digits = cfg.TOTP.Digits
	}
	totpCfg.Skew = cfg.TOTP.Skew

	cache := b.cache
	if cache == nil {
		cacheTTL := cfg.Cache.TTL
		if cacheTTL <= 0 {
			cacheTTL = ttl
		}
		if b.redis != nil {
			cache = revocation.NewRedis(b.redis, cacheTTL)
		} else {
			capacity := cfg.Cache.Capacity
			if capacity <= 0 {
				capacity = revocation.DefaultCapacity
			}
			cache = revocation.NewMemory(capacity, cacheTTL, clock)
		}
	}

	sink := b.sink
	if sink == nil {
		sink = NoOpSink{}
	}
	var dispatcher *auditDispatcher
	if cfg.Audit.Enabled {
		dispatcher = newAuditDispatcher(cfg.Audit, sink)
	}

	return &Engine{
		config:    cfg,
		store:     b.store,
		hasher:    hasher,
		tokens:    tokens,
		totp:      totp.New(totpCfg),
		revoked:   cache,
		audit:     dispatcher,
		metrics:   NewMetrics(cfg.Metrics),
		clock:     clock,
		userLocks: keylock.New(),
	}, nil
}
