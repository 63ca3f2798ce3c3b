package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/seqdex/internal/db"
	"github.com/kailas-cloud/seqdex/internal/domain"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/repository/keyspace"
)

// store is the consumer interface for indices (ISP).
//
//nolint:interfacebloat // index repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// CacheConfig sizes the read-through schema cache. Size 0 disables it.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// Repo implements usecase/index.Repository.
type Repo struct {
	store store
	keys  keyspace.Keyspace
	cache *expirable.LRU[string, domidx.Index]
}

// New creates an index repository.
func New(s store, keys keyspace.Keyspace, cfg CacheConfig) *Repo {
	r := &Repo{store: s, keys: keys}
	if cfg.Size > 0 {
		r.cache = expirable.NewLRU[string, domidx.Index](cfg.Size, nil, cfg.TTL)
	}
	return r
}

// Create stores an index: HSET metadata then FT.CREATE.
// On FT.CREATE failure, rolls back the HSET via DEL.
func (r *Repo) Create(ctx context.Context, idx domidx.Index) error {
	name := idx.Name()

	metaKey := r.keys.Meta(name)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrAlreadyExists
	}

	// Prepare index definition and hash data before writes
	def, err := buildIndex(r.keys.SearchIndex(name), r.keys.Events(name), idx.Fields())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	hashData, err := indexToHash(idx)
	if err != nil {
		return err
	}

	if err := r.store.HSet(ctx, metaKey, hashData); err != nil {
		return fmt.Errorf("hset index %s: %w", name, err)
	}

	// FT.CREATE, rollback HSET on error
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			err = domain.ErrAlreadyExists
		}
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(err, cleanupErr)
	}

	r.forget(name)
	return nil
}

// Get retrieves an index by name, consulting the schema cache first.
func (r *Repo) Get(ctx context.Context, name string) (domidx.Index, error) {
	if r.cache != nil {
		if idx, ok := r.cache.Get(name); ok {
			return idx, nil
		}
	}

	m, err := r.store.HGetAll(ctx, r.keys.Meta(name))
	if err != nil {
		return domidx.Index{}, fmt.Errorf("hgetall index %s: %w", name, err)
	}
	if len(m) == 0 {
		return domidx.Index{}, domain.ErrNotFound
	}

	idx, err := indexFromHash(m)
	if err != nil {
		return domidx.Index{}, fmt.Errorf("parse index %s: %w", name, err)
	}
	if r.cache != nil {
		r.cache.Add(name, idx)
	}
	return idx, nil
}

// List returns all indices sorted by CreatedAt.
func (r *Repo) List(ctx context.Context) ([]domidx.Index, error) {
	keys, err := r.store.Scan(ctx, r.keys.MetaPattern())
	if err != nil {
		return nil, fmt.Errorf("scan indices: %w", err)
	}
	if len(keys) == 0 {
		return []domidx.Index{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi indices: %w", err)
	}

	indices := make([]domidx.Index, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		idx, err := indexFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse index %s: %w", keys[i], err)
		}
		indices = append(indices, idx)
	}

	sort.Slice(indices, func(i, j int) bool {
		if indices[i].CreatedAt() != indices[j].CreatedAt() {
			return indices[i].CreatedAt() < indices[j].CreatedAt()
		}
		return indices[i].Name() < indices[j].Name()
	})

	return indices, nil
}

// Count returns the number of registered indices.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.keys.MetaPattern())
	if err != nil {
		return 0, fmt.Errorf("scan indices: %w", err)
	}
	return len(keys), nil
}

// Delete removes an index with its events: backup metadata, DEL hash,
// FT.DROPINDEX DD (rollback HSET on error).
func (r *Repo) Delete(ctx context.Context, name string) error {
	metaKey := r.keys.Meta(name)

	metaBackup, err := r.store.HGetAll(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("hgetall index %s: %w", name, err)
	}
	if len(metaBackup) == 0 {
		return domain.ErrNotFound
	}

	idxName := r.keys.SearchIndex(name)
	idxExists, err := r.store.IndexExists(ctx, idxName)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	if !idxExists {
		return domain.ErrNotFound
	}

	if err := r.store.Del(ctx, metaKey); err != nil {
		return fmt.Errorf("del index %s: %w", name, err)
	}
	r.forget(name)

	// FT.DROPINDEX, rollback HSET on error
	if err := r.store.DropIndex(ctx, idxName, true); err != nil {
		cleanupErr := r.store.HSet(ctx, metaKey, metaBackup)
		return errors.Join(err, cleanupErr)
	}

	return nil
}

func (r *Repo) forget(name string) {
	if r.cache != nil {
		r.cache.Remove(name)
	}
}
