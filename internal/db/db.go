// Package db defines the storage contract seqdex runs on. Index metadata is
// kept in hashes, events in JSON documents, and each index owns an FT
// search index over its events' _idx attributes.
package db

import (
	"context"
	"time"
)

// Store is everything a backend provides. Repositories depend on the
// narrow interfaces below.
//
//nolint:interfacebloat // facade; consumers declare the subset they use
type Store interface {
	Pinger
	MetaStore
	DocStore
	IndexManager
	EventSearcher
	Lifecycle
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lifecycle covers startup and shutdown.
type Lifecycle interface {
	// WaitForReady blocks until the backend answers or timeout expires.
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Keys are operations that work on any key regardless of its type.
type Keys interface {
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MetaStore holds index metadata records as flat string maps.
type MetaStore interface {
	Keys
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns an empty map for a missing key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	// Scan lists keys matching a glob pattern, each once.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// JSONSetItem is one document of a batched write.
type JSONSetItem struct {
	Key  string
	Path string
	Data []byte
}

// DocStore holds event documents.
type DocStore interface {
	Keys
	JSONSet(ctx context.Context, key, path string, data []byte) error
	// JSONSetMulti writes all items in one round trip and reports every
	// failed key.
	JSONSetMulti(ctx context.Context, items []JSONSetItem) error
	// JSONGet returns ErrKeyNotFound for a missing key.
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// IndexManager creates and drops the FT index behind an event index.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// EventSearcher pages through one index's events in (timestamp,
// tiebreaker) order.
type EventSearcher interface {
	SearchEvents(ctx context.Context, q *EventQuery) (*EventPage, error)
}
