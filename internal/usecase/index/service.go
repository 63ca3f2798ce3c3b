package index

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/domain"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

// Service handles index CRUD operations.
type Service struct {
	repo Repository
}

// New creates an index service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new index.
func (s *Service) Create(ctx context.Context, name string, fields []field.Field) (domidx.Index, error) {
	idx, err := domidx.New(name, fields)
	if err != nil {
		return domidx.Index{}, fmt.Errorf("validate index: %w: %w", domain.ErrInvalidSchema, err)
	}

	if err := s.repo.Create(ctx, idx); err != nil {
		return domidx.Index{}, fmt.Errorf("create index: %w", err)
	}

	return idx, nil
}

// Get retrieves an index by name.
func (s *Service) Get(ctx context.Context, name string) (domidx.Index, error) {
	idx, err := s.repo.Get(ctx, name)
	if err != nil {
		return domidx.Index{}, fmt.Errorf("get index: %w", err)
	}
	return idx, nil
}

// List returns all indices.
func (s *Service) List(ctx context.Context) ([]domidx.Index, error) {
	indices, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	return indices, nil
}

// Delete removes an index and its events.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}
