package filter

import "fmt"

// MaxClausesPerGroup is the maximum number of clauses per bool group.
const MaxClausesPerGroup = 1024

// Query is a backend boolean query node.
// The variant set is closed: Bool, Term, Terms, RangeQuery, Exists, Wildcard,
// MatchAll and MatchNone.
type Query interface {
	isQuery()
	// Source returns the query DSL form of the node.
	Source() map[string]any
}

// Bool combines clauses with must/should/must_not semantics.
// A non-empty Should group requires at least one of its clauses to match.
type Bool struct {
	Must    []Query
	Should  []Query
	MustNot []Query
}

// NewBool validates and creates a Bool query.
func NewBool(must, should, mustNot []Query) (Bool, error) {
	if len(must) > MaxClausesPerGroup {
		return Bool{}, fmt.Errorf("too many must clauses (max %d)", MaxClausesPerGroup)
	}
	if len(should) > MaxClausesPerGroup {
		return Bool{}, fmt.Errorf("too many should clauses (max %d)", MaxClausesPerGroup)
	}
	if len(mustNot) > MaxClausesPerGroup {
		return Bool{}, fmt.Errorf("too many must_not clauses (max %d)", MaxClausesPerGroup)
	}
	return Bool{Must: must, Should: should, MustNot: mustNot}, nil
}

// IsEmpty reports whether the bool query has no clauses.
func (b Bool) IsEmpty() bool {
	return len(b.Must) == 0 && len(b.Should) == 0 && len(b.MustNot) == 0
}

// Term matches an exact value. Value is a string, float64 or bool.
type Term struct {
	Field           string
	Value           any
	CaseInsensitive bool
}

// Terms matches any of a set of exact values.
type Terms struct {
	Field           string
	Values          []any
	CaseInsensitive bool
}

// RangeQuery matches numeric (or epoch-millis date) values inside a range.
type RangeQuery struct {
	Field string
	Range Range
}

// Exists matches documents that carry a non-null value for Field.
type Exists struct {
	Field string
}

// Wildcard matches a pattern where * is any run of characters and ? is one character.
type Wildcard struct {
	Field           string
	Pattern         string
	CaseInsensitive bool
}

// MatchAll matches every document.
type MatchAll struct{}

// MatchNone matches no document.
type MatchNone struct{}

func (Bool) isQuery()       {}
func (Term) isQuery()       {}
func (Terms) isQuery()      {}
func (RangeQuery) isQuery() {}
func (Exists) isQuery()     {}
func (Wildcard) isQuery()   {}
func (MatchAll) isQuery()   {}
func (MatchNone) isQuery()  {}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// Equal returns the range [v, v].
func Equal(v float64) Range {
	lo, hi := v, v
	return Range{gte: &lo, lte: &hi}
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	if r.gt != nil && v <= *r.gt {
		return false
	}
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lt != nil && v >= *r.lt {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}
