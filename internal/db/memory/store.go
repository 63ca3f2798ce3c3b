// Package memory is an in-process db.Store. It evaluates event queries the
// way the Redis backend's FT.SEARCH does and is used for tests and the
// embedded SDK.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/seqdex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store keeps hashes, JSON documents and index definitions in maps.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	docs    map[string][]byte
	indexes map[string]*db.IndexDefinition
	closed  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		docs:    make(map[string][]byte),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

var errClosed = errors.New("memory store is closed")

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed; later calls to Ping fail.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// WaitForReady returns immediately for an open store.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// --- hashes ---

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[key]; ok {
		return &db.Error{Op: db.OpHSet, Key: key, Err: db.ErrWrongType}
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// HGetAll returns a copy of all fields of a hash, empty when the key is absent.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHash(s.hashes[key]), nil
}

// HGetAllMulti returns HGetAll for each key.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		out[i] = copyHash(s.hashes[key])
	}
	return out, nil
}

// Del deletes a key of any type.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
	delete(s.docs, key)
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, isHash := s.hashes[key]
	_, isDoc := s.docs[key]
	return isHash || isDoc, nil
}

// Scan returns the keys matching a glob pattern in sorted order.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	match := func(key string) error {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return &db.Error{Op: db.OpScan, Err: err}
		}
		if ok {
			keys = append(keys, key)
		}
		return nil
	}
	for key := range s.hashes {
		if err := match(key); err != nil {
			return nil, err
		}
	}
	for key := range s.docs {
		if err := match(key); err != nil {
			return nil, err
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// --- JSON ---

// JSONSet stores a JSON document. Only the root path is supported.
func (s *Store) JSONSet(_ context.Context, key, p string, data []byte) error {
	if err := checkJSON(key, p, data); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(key, data)
}

// JSONSetMulti stores several documents atomically.
func (s *Store) JSONSetMulti(_ context.Context, items []db.JSONSetItem) error {
	for _, item := range items {
		if err := checkJSON(item.Key, item.Path, item.Data); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if err := s.setLocked(item.Key, item.Data); err != nil {
			return err
		}
	}
	return nil
}

// JSONGet returns a stored document. Asking for the root JSONPath "$"
// wraps it in a result array like RedisJSON does.
func (s *Store) JSONGet(_ context.Context, key string, paths ...string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	switch {
	case len(paths) == 0 || (len(paths) == 1 && paths[0] == "."):
		return slices.Clone(data), nil
	case len(paths) == 1 && paths[0] == "$":
		out := make([]byte, 0, len(data)+2)
		out = append(out, '[')
		out = append(out, data...)
		return append(out, ']'), nil
	}
	return nil, &db.Error{Op: db.OpJSONGet, Key: key, Err: fmt.Errorf("unsupported paths %v", paths)}
}

func (s *Store) setLocked(key string, data []byte) error {
	if _, ok := s.hashes[key]; ok {
		return &db.Error{Op: db.OpJSONSet, Key: key, Err: db.ErrWrongType}
	}
	s.docs[key] = slices.Clone(data)
	return nil
}

func checkJSON(key, p string, data []byte) error {
	if p != "$" && p != "." {
		return &db.Error{Op: db.OpJSONSet, Key: key, Err: fmt.Errorf("only the root path is supported, got %q", p)}
	}
	if !json.Valid(data) {
		return &db.Error{Op: db.OpJSONSet, Key: key, Err: errors.New("invalid JSON")}
	}
	return nil
}

// --- indexes ---

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	c := *def
	c.Prefixes = slices.Clone(def.Prefixes)
	c.Fields = slices.Clone(def.Fields)
	s.indexes[def.Name] = &c
	return nil
}

// DropIndex removes an index and, with deleteDocs, the documents it covers.
func (s *Store) DropIndex(_ context.Context, name string, deleteDocs bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	if !deleteDocs {
		return nil
	}
	for key := range s.docs {
		if def.StorageType == db.StorageJSON && covers(def, key) {
			delete(s.docs, key)
		}
	}
	for key := range s.hashes {
		if def.StorageType != db.StorageJSON && covers(def, key) {
			delete(s.hashes, key)
		}
	}
	return nil
}

// IndexExists reports whether an index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

func covers(def *db.IndexDefinition, key string) bool {
	if len(def.Prefixes) == 0 {
		return true
	}
	for _, p := range def.Prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func copyHash(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
