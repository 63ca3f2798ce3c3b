package search

import (
	"context"

	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	// SearchPage returns up to size hits strictly after the after key in
	// ascending (timestamp, tiebreaker) order and whether more may follow.
	SearchPage(
		ctx context.Context, indices []domidx.Index,
		query filter.Query, timestampField string, after cursor.Key, size int,
	) ([]result.Hit, bool, error)
}

// IndexReader resolves the indices a request targets.
type IndexReader interface {
	Get(ctx context.Context, name string) (domidx.Index, error)
	List(ctx context.Context) ([]domidx.Index, error)
}
