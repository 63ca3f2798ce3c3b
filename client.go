// Package seqdex embeds the EQL search engine in a Go program. It drives
// Redis (or an in-process store) directly, with the same semantics as the
// HTTP server; use pkg/sdk to talk to a running server instead.
//
//	c, err := seqdex.New(seqdex.WithRedis("localhost:6379", ""))
//	...
//	res, err := c.Search(ctx, []string{"logs-*"},
//	    `sequence by user.name [process where true] [network where true]`, nil)
package seqdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/seqdex/internal/db/redis"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
	eventrepo "github.com/kailas-cloud/seqdex/internal/repository/event"
	indexrepo "github.com/kailas-cloud/seqdex/internal/repository/index"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
	searchrepo "github.com/kailas-cloud/seqdex/internal/repository/search"
	eventuc "github.com/kailas-cloud/seqdex/internal/usecase/event"
	healthuc "github.com/kailas-cloud/seqdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/seqdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/seqdex/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "seqdex:"

	driverRedis  = "redis"
	driverMemory = "memory"
)

// Client is the embedded seqdex entry point: it talks to the backend
// directly, without the HTTP server.
type Client struct {
	store     db.Store
	indexSvc  *indexuc.Service
	eventSvc  *eventuc.Service
	searchSvc *searchuc.Service
	healthSvc *healthuc.Service
	defaults  request.Defaults
}

// New creates a Client and waits for the backend to become ready.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix: defaultKeyPrefix,
		defaults:  request.DefaultDefaults(),
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("seqdex: database not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case driverMemory:
		return memory.NewStore(), nil
	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("seqdex: create redis store: %w", err)
		}
		return s, nil
	case "":
		return nil, errors.New("seqdex: no backend configured (use WithRedis or WithMemory)")
	default:
		return nil, fmt.Errorf("seqdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) *Client {
	keys := keyspace.New(cfg.keyPrefix)

	indices := indexrepo.New(store, keys, indexrepo.CacheConfig{
		Size: cfg.cacheSize,
		TTL:  cfg.cacheTTL,
	})
	events := eventrepo.New(store, keys)

	eventSvc := eventuc.New(events, indices, cfg.defaults.TimestampField)
	if cfg.maxBatchSize > 0 {
		eventSvc = eventSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}

	return &Client{
		store:     store,
		indexSvc:  indexuc.New(indices),
		eventSvc:  eventSvc,
		searchSvc: searchuc.New(searchrepo.New(store, keys), indices, cfg.logger),
		healthSvc: healthuc.New(store, indices),
		defaults:  cfg.defaults,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Healthy reports whether the backend answers and the index catalog is readable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.healthSvc.Check(ctx).Status == healthuc.Healthy
}
