package logingate

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zeroharbor/logingate/auditlog"
	"github.com/zeroharbor/logingate/counter"
	"github.com/zeroharbor/logingate/credential"
)

// Builder assembles an [Engine]. All stores are explicitly injected and
// shared by reference between the controller and the reporter; there is no
// lazy global initialization.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	auditLog *auditlog.Store
	sink     AuditSink
	hasher   credential.Hasher

	built bool
}

// New returns a [Builder] seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client shared by the counter, fragment, and
// credential stores.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditLog sets the durable audit log.
func (b *Builder) WithAuditLog(log *auditlog.Store) *Builder {
	b.auditLog = log
	return b
}

// WithAuditSink sets the optional attempt mirror sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithHasher overrides the credential hash capability. The default is
// [credential.SaltedSHA256].
func (b *Builder) WithHasher(h credential.Hasher) *Builder {
	b.hasher = h
	return b
}

// Build validates the configuration and wires the engine. A Builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderReused
	}
	if b.redis == nil {
		return nil, ErrRedisRequired
	}
	if b.auditLog == nil {
		return nil, ErrAuditLogRequired
	}
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	b.built = true

	return &Engine{
		config:    b.config,
		counters:  counter.New(b.redis, counter.Config{MaxRetries: b.config.CounterMaxRetries}),
		fragments: counter.NewFragments(b.redis),
		creds:     credential.New(b.redis, b.config.CredentialPrefix, b.hasher),
		auditLog:  b.auditLog,
		audit:     newAuditDispatcher(b.config.Audit, b.sink),
	}, nil
}
