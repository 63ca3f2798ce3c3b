package seqdex

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string
	addrs    []string
	password string

	keyPrefix    string
	defaults     request.Defaults
	maxBatchSize int
	cacheSize    int
	cacheTTL     time.Duration

	logger *zap.Logger
}

// WithRedis stores events in a Redis 8+ instance (search and JSON modules).
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithMemory keeps everything in process memory. Data is lost on Close.
func WithMemory() Option {
	return func(c *clientConfig) {
		c.driver = driverMemory
	}
}

// WithKeyPrefix namespaces every backend key. Default: "seqdex:".
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = prefix
	}
}

// WithTimestampField sets the field events are ordered by, both at
// ingest and at search time. Default: "@timestamp".
func WithTimestampField(name string) Option {
	return func(c *clientConfig) {
		c.defaults.TimestampField = name
	}
}

// WithEventCategoryField sets the field event categories are read from.
// Default: "event.category".
func WithEventCategoryField(name string) Option {
	return func(c *clientConfig) {
		c.defaults.EventCategoryField = name
	}
}

// WithImplicitJoinKeyField sets the join key of sequences that declare
// none. Default: "agent.id".
func WithImplicitJoinKeyField(name string) Option {
	return func(c *clientConfig) {
		c.defaults.ImplicitJoinKeyField = name
	}
}

// WithDefaultSize sets the result size of searches that do not pass one.
// Default: 10.
func WithDefaultSize(n int) Option {
	return func(c *clientConfig) {
		c.defaults.FetchSize = n
	}
}

// WithMaxBatchSize sets the maximum number of events per bulk call.
// Default: 1000.
func WithMaxBatchSize(size int) Option {
	return func(c *clientConfig) {
		c.maxBatchSize = size
	}
}

// WithSchemaCache caches index definitions in process. A zero size
// disables the cache (default).
func WithSchemaCache(size int, ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger for search diagnostics. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
