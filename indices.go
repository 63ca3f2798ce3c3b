package seqdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/seqdex/internal/domain"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

// FieldType is the indexing type of a field.
type FieldType string

// Field types.
const (
	FieldKeyword FieldType = FieldType(field.Keyword)
	FieldNumeric FieldType = FieldType(field.Numeric)
	FieldDate    FieldType = FieldType(field.Date)
	FieldBoolean FieldType = FieldType(field.Boolean)
)

// Field is one schema field. Dotted names address nested objects.
type Field struct {
	Name string
	Type FieldType
}

// IndexInfo describes an index.
type IndexInfo struct {
	Name      string
	Fields    []Field
	CreatedAt time.Time
}

// Errors returned by index and event calls; match with errors.Is.
var (
	ErrNotFound      = domain.ErrNotFound
	ErrAlreadyExists = domain.ErrAlreadyExists
	ErrEventNotFound = domain.ErrEventNotFound
	ErrInvalidSchema = domain.ErrInvalidSchema
	ErrInvalidEvent  = domain.ErrInvalidEvent
)

// CreateIndex creates an index with the given schema.
func (c *Client) CreateIndex(ctx context.Context, name string, fields ...Field) (IndexInfo, error) {
	internal, err := toInternalFields(fields)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("create index %q: %w", name, err)
	}
	idx, err := c.indexSvc.Create(ctx, name, internal)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("create index %q: %w", name, err)
	}
	return fromInternalIndex(idx), nil
}

// EnsureIndex creates the index unless it exists. An existing index is
// returned as is, even when its schema differs.
func (c *Client) EnsureIndex(ctx context.Context, name string, fields ...Field) (IndexInfo, error) {
	info, err := c.CreateIndex(ctx, name, fields...)
	if errors.Is(err, ErrAlreadyExists) {
		return c.GetIndex(ctx, name)
	}
	return info, err
}

// GetIndex returns an index definition.
func (c *Client) GetIndex(ctx context.Context, name string) (IndexInfo, error) {
	idx, err := c.indexSvc.Get(ctx, name)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("get index %q: %w", name, err)
	}
	return fromInternalIndex(idx), nil
}

// ListIndices returns all indices.
func (c *Client) ListIndices(ctx context.Context) ([]IndexInfo, error) {
	list, err := c.indexSvc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	out := make([]IndexInfo, len(list))
	for i, idx := range list {
		out[i] = fromInternalIndex(idx)
	}
	return out, nil
}

// DeleteIndex removes an index and its events.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	if err := c.indexSvc.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	return nil
}

func toInternalFields(fields []Field) ([]field.Field, error) {
	out := make([]field.Field, 0, len(fields))
	for _, f := range fields {
		ff, err := field.New(f.Name, field.Type(f.Type))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		out = append(out, ff)
	}
	return out, nil
}

func fromInternalIndex(idx domidx.Index) IndexInfo {
	fields := make([]Field, len(idx.Fields()))
	for i, f := range idx.Fields() {
		fields[i] = Field{Name: f.Name(), Type: FieldType(f.FieldType())}
	}
	return IndexInfo{
		Name:      idx.Name(),
		Fields:    fields,
		CreatedAt: time.UnixMilli(idx.CreatedAt()),
	}
}
