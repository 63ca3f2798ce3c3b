package redis

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/seqdex/internal/db"
)

// scanBatch is the COUNT hint for each SCAN step over index metadata keys.
const scanBatch = 100

// HSet writes an index metadata record. Fields are sent in sorted order so
// the command is deterministic.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd := s.b().Hset().Key(key).FieldValue()
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		cmd = cmd.FieldValue(k, fields[k])
	}
	return db.Wrap(db.OpHSet, key, s.do(ctx, cmd.Build()).Error())
}

// HGetAll reads an index metadata record. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, db.Wrap(db.OpHGetAll, key, err)
	}
	return m, nil
}

// HGetAllMulti reads several metadata records in one round trip. Results
// line up with keys.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	var errs []error
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			errs = append(errs, fmt.Errorf("key %s: %w", keys[i], err))
			continue
		}
		out[i] = m
	}
	if len(errs) > 0 {
		return nil, &db.Error{Op: db.OpHGetAll, Err: errors.Join(errs...)}
	}
	return out, nil
}

// Del removes a key of any type.
func (s *Store) Del(ctx context.Context, key string) error {
	return db.Wrap(db.OpDel, key, s.do(ctx, s.b().Del().Key(key).Build()).Error())
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, db.Wrap(db.OpExists, key, err)
	}
	return n > 0, nil
}

// Scan walks the keyspace for pattern and returns each match once. SCAN
// may report a key more than once while the keyspace is being rehashed.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string

	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()
		page, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, db.Wrap(db.OpScan, pattern, err)
		}
		for _, k := range page.Elements {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}
