package search

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/eql"
	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
	"github.com/kailas-cloud/seqdex/internal/domain/search/mode"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
	"github.com/kailas-cloud/seqdex/internal/domain/search/translate"
	logpkg "github.com/kailas-cloud/seqdex/internal/logger"
	"github.com/kailas-cloud/seqdex/internal/metrics"
)

// Service runs EQL searches: parse, validate, translate, execute, assemble.
type Service struct {
	repo    Repository
	indices IndexReader
	logger  *zap.Logger
}

// New creates a search service.
func New(repo Repository, indices IndexReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, indices: indices, logger: logger}
}

// plan is everything execution needs for one request.
type plan struct {
	validated *eql.Validated
	stages    []translate.StageQuery
	indices   []domidx.Index
	size      int
	from      cursor.Resume
}

// Search executes an EQL request.
func (s *Service) Search(ctx context.Context, req *request.Request) (*result.Response, error) {
	started := time.Now()
	kind := "unknown"

	resp, err := s.search(ctx, req, &kind)

	status := "ok"
	if err != nil {
		status = errorStatus(err)
	}
	metrics.QueriesTotal.WithLabelValues(kind, status).Inc()
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	logpkg.Annotate(ctx, zap.String("query_kind", kind), zap.String("query_status", status))

	if err != nil {
		s.logger.Debug("EQL search failed",
			zap.String("kind", kind),
			zap.Strings("indices", req.Indices()),
			zap.Error(err),
		)
		return nil, err
	}
	resp.Took = time.Since(started).Milliseconds()
	return resp, nil
}

func (s *Service) search(ctx context.Context, req *request.Request, kind *string) (*result.Response, error) {
	stmt, err := eql.Parse(req.Query())
	if err != nil {
		return nil, err
	}

	indices, err := s.resolve(ctx, req.Indices())
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return emptyResponse(stmt.Pipes), nil
	}
	schema, err := domidx.Merge(indices...)
	if err != nil {
		return nil, domain.NewValidationError("indices", "%s", err.Error())
	}

	v, err := eql.Validate(stmt, schema, eql.Settings{
		TimestampField:       req.TimestampField(),
		EventCategoryField:   req.EventCategoryField(),
		ImplicitJoinKeyField: req.ImplicitJoinKeyField(),
	})
	if err != nil {
		return nil, err
	}
	*kind = string(v.Mode)

	if err := checkFilter(req.Filter(), schema); err != nil {
		return nil, err
	}

	stages, err := translate.Translate(v, translate.Settings{
		TimestampField:     req.TimestampField(),
		EventCategoryField: req.EventCategoryField(),
		CaseSensitive:      req.CaseSensitive(),
		Filter:             req.Filter(),
	})
	if err != nil {
		return nil, err
	}

	from, err := resumeFrom(v.Mode, len(stages), req.SearchAfter())
	if err != nil {
		return nil, err
	}

	for _, st := range stages {
		s.logger.Debug("Stage query",
			zap.Int("stage", st.Stage),
			zap.Bool("until", st.Until),
			zap.String("query", st.String()),
		)
	}

	p := &plan{validated: v, stages: stages, indices: indices, size: req.FetchSize(), from: from}
	if v.Mode.Correlated() {
		return s.runCorrelated(ctx, p)
	}
	return s.runEvents(ctx, p)
}

// resolve expands names and patterns into indices. A missing concrete
// name is an error; a pattern may match nothing.
func (s *Service) resolve(ctx context.Context, names []string) ([]domidx.Index, error) {
	var all []domidx.Index
	listed := false
	seen := make(map[string]bool)
	out := make([]domidx.Index, 0, len(names))

	for _, name := range names {
		if !hasMeta(name) {
			if seen[name] {
				continue
			}
			idx, err := s.indices.Get(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("index %s: %w", name, err)
			}
			seen[name] = true
			out = append(out, idx)
			continue
		}

		if !listed {
			var err error
			if all, err = s.indices.List(ctx); err != nil {
				return nil, fmt.Errorf("list indices: %w", err)
			}
			listed = true
		}
		for _, idx := range all {
			ok, err := path.Match(name, idx.Name())
			if err != nil {
				return nil, domain.NewValidationError("indices", "invalid index pattern [%s]", name)
			}
			if ok && !seen[idx.Name()] {
				seen[idx.Name()] = true
				out = append(out, idx)
			}
		}
	}
	return out, nil
}

func hasMeta(name string) bool {
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// checkFilter rejects request filters that reference unknown fields.
func checkFilter(q filter.Query, schema domidx.Schema) error {
	if q == nil {
		return nil
	}
	for _, name := range filter.Fields(q) {
		if _, ok := schema.FieldType(name); !ok {
			return domain.NewValidationError("filter", "unknown field [%s] in filter", name)
		}
	}
	return nil
}

// resumeFrom decodes search_after into where every stream resumes. Event
// queries take [timestamp, tiebreaker]; sequences and joins take the single
// token they returned.
func resumeFrom(m mode.Mode, streams int, after []any) (cursor.Resume, error) {
	if len(after) == 0 {
		return cursor.Resume{}, nil
	}
	if !m.Correlated() {
		k, err := cursor.FromValues(after)
		if err != nil {
			return cursor.Resume{}, domain.NewValidationError("search_after", "%s", err.Error())
		}
		return cursor.Resume{Positions: []cursor.Key{k}}, nil
	}
	if len(after) != 1 {
		return cursor.Resume{}, domain.NewValidationError("search_after",
			"%s queries take a single search_after value, got %d", m, len(after))
	}
	token, ok := after[0].(string)
	if !ok {
		return cursor.Resume{}, domain.NewValidationError("search_after", "%s search_after must be a string token", m)
	}
	from, err := cursor.Decode(token, streams)
	if err != nil {
		return cursor.Resume{}, domain.NewValidationError("search_after", "%s", err.Error())
	}
	return from, nil
}

// stageFailure classifies an execution failure.
func stageFailure(ctx context.Context, err error) error {
	stage := 0
	var se *stageError
	if errors.As(err, &se) {
		stage = se.stage
		err = se.err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewTimeoutError(stage, err)
	}
	return domain.NewExecutionError(stage, err)
}

func errorStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrSyntax):
		return "syntax_error"
	case errors.Is(err, domain.ErrValidation):
		return "validation_error"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrExecution):
		return "execution_error"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}
