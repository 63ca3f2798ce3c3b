package request

import (
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
)

// Request limits and defaults.
const (
	// MaxQueryLength is the maximum allowed EQL query length.
	MaxQueryLength   = 16384
	DefaultFetchSize = 10
	MaxFetchSize     = 10000
	// MaxSearchAfter bounds the arity of a pagination cursor.
	MaxSearchAfter = 16

	DefaultTimestampField       = "@timestamp"
	DefaultEventCategoryField   = "event.category"
	DefaultImplicitJoinKeyField = "agent.id"
)

// Defaults are the configured values applied when a request omits a key.
type Defaults struct {
	TimestampField       string
	EventCategoryField   string
	ImplicitJoinKeyField string
	FetchSize            int
	MaxFetchSize         int
}

// DefaultDefaults returns the built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		TimestampField:       DefaultTimestampField,
		EventCategoryField:   DefaultEventCategoryField,
		ImplicitJoinKeyField: DefaultImplicitJoinKeyField,
		FetchSize:            DefaultFetchSize,
		MaxFetchSize:         MaxFetchSize,
	}
}

func (d Defaults) withFallbacks() Defaults {
	if d.FetchSize <= 0 {
		d.FetchSize = DefaultFetchSize
	}
	if d.MaxFetchSize <= 0 {
		d.MaxFetchSize = MaxFetchSize
	}
	return d
}

// Request is a validated EQL search request.
type Request struct {
	indices              []string
	query                string
	filter               filter.Query
	timestampField       string
	eventCategoryField   string
	implicitJoinKeyField string
	fetchSize            int
	searchAfter          []any
	caseSensitive        bool
}

// Option customizes a Request built with New.
type Option func(*Request)

// WithFilter sets the pre-filter ANDed into every stage.
func WithFilter(q filter.Query) Option { return func(r *Request) { r.filter = q } }

// WithTimestampField overrides the timestamp field.
func WithTimestampField(name string) Option { return func(r *Request) { r.timestampField = name } }

// WithEventCategoryField overrides the event category field.
func WithEventCategoryField(name string) Option {
	return func(r *Request) { r.eventCategoryField = name }
}

// WithImplicitJoinKeyField overrides the implicit join key field.
func WithImplicitJoinKeyField(name string) Option {
	return func(r *Request) { r.implicitJoinKeyField = name }
}

// WithSize sets the fetch size.
func WithSize(n int) Option { return func(r *Request) { r.fetchSize = n } }

// WithSearchAfter sets the pagination cursor.
func WithSearchAfter(values ...any) Option { return func(r *Request) { r.searchAfter = values } }

// WithCaseSensitive toggles case-sensitive string comparison.
func WithCaseSensitive(cs bool) Option { return func(r *Request) { r.caseSensitive = cs } }

// New validates and normalizes request parameters.
// Omitted field names and size fall back to d.
func New(indices []string, query string, d Defaults, opts ...Option) (Request, error) {
	d = d.withFallbacks()
	r := Request{
		indices:              indices,
		query:                query,
		timestampField:       d.TimestampField,
		eventCategoryField:   d.EventCategoryField,
		implicitJoinKeyField: d.ImplicitJoinKeyField,
		fetchSize:            d.FetchSize,
	}
	for _, opt := range opts {
		opt(&r)
	}
	if err := r.validate(d); err != nil {
		return Request{}, err
	}
	return r, nil
}

func (r *Request) validate(d Defaults) error {
	if len(r.indices) == 0 {
		return domain.NewValidationError("index", "at least one index is required")
	}
	for _, idx := range r.indices {
		if idx == "" {
			return domain.NewValidationError("index", "index name must not be empty")
		}
	}
	if r.query == "" {
		return domain.NewValidationError("query", "query is null or empty")
	}
	if len(r.query) > MaxQueryLength {
		return domain.NewValidationError("query", "query too long (max %d chars)", MaxQueryLength)
	}
	if r.timestampField == "" {
		return domain.NewValidationError("timestamp_field", "timestamp field is null or empty")
	}
	if r.fetchSize <= 0 {
		return domain.NewValidationError("size", "size must be greater than 0")
	}
	if r.fetchSize > d.MaxFetchSize {
		return domain.NewValidationError("size", "size must be less than or equal to %d", d.MaxFetchSize)
	}
	if r.searchAfter != nil {
		if len(r.searchAfter) == 0 {
			return domain.NewValidationError("search_after", "search_after must not be empty")
		}
		if len(r.searchAfter) > MaxSearchAfter {
			return domain.NewValidationError("search_after", "search_after has too many values (max %d)", MaxSearchAfter)
		}
		for _, v := range r.searchAfter {
			switch v.(type) {
			case string, float64, int64, int, bool:
			default:
				return domain.NewValidationError("search_after",
					"search_after values must be scalars, got %s", typeName(v))
			}
		}
	}
	return nil
}

// Indices returns the target index names or patterns.
func (r *Request) Indices() []string { return r.indices }

// Query returns the EQL query text.
func (r *Request) Query() string { return r.query }

// Filter returns the pre-filter query, nil when absent.
func (r *Request) Filter() filter.Query { return r.filter }

// TimestampField returns the field events are ordered by.
func (r *Request) TimestampField() string { return r.timestampField }

// EventCategoryField returns the field event categories are matched against.
func (r *Request) EventCategoryField() string { return r.eventCategoryField }

// ImplicitJoinKeyField returns the join key used when a sequence declares none.
func (r *Request) ImplicitJoinKeyField() string { return r.implicitJoinKeyField }

// FetchSize returns the page size and result cap.
func (r *Request) FetchSize() int { return r.fetchSize }

// SearchAfter returns the pagination cursor, nil when absent.
func (r *Request) SearchAfter() []any { return r.searchAfter }

// CaseSensitive reports whether string comparisons are case-sensitive.
func (r *Request) CaseSensitive() bool { return r.caseSensitive }

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
