// Package translate lowers a validated EQL statement into one backend
// boolean query per stage.
package translate

import (
	"strings"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/eql"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/filter"
)

// Settings are the request options that shape every stage query.
type Settings struct {
	TimestampField     string
	EventCategoryField string
	CaseSensitive      bool
	// Filter is ANDed into every stage query when set.
	Filter filter.Query
}

// StageQuery is the backend query of one stage.
type StageQuery struct {
	Stage    int
	Until    bool
	Keys     []string
	Category string
	Query    filter.Query
}

// String renders the stage query as canonical JSON.
func (s StageQuery) String() string { return filter.String(s.Query) }

// Translate builds the stage queries of v. The until stage, when present,
// comes last with index len(v.Stages).
func Translate(v *eql.Validated, s Settings) ([]StageQuery, error) {
	t := translator{v: v, s: s}
	out := make([]StageQuery, 0, len(v.Stages)+1)
	for i, st := range v.Stages {
		q, err := t.stage(st)
		if err != nil {
			return nil, err
		}
		out = append(out, StageQuery{Stage: i, Keys: st.Keys, Category: st.Category, Query: q})
	}
	if v.Until != nil {
		q, err := t.stage(*v.Until)
		if err != nil {
			return nil, err
		}
		out = append(out, StageQuery{
			Stage: len(v.Stages), Until: true, Keys: v.Until.Keys, Category: v.Until.Category, Query: q,
		})
	}
	return out, nil
}

type translator struct {
	v *eql.Validated
	s Settings
}

func (t translator) stage(st eql.ValidatedStage) (filter.Query, error) {
	parts := make([]filter.Query, 0, len(st.Keys)+4)
	if st.Category != "" {
		parts = append(parts, filter.Term{
			Field: t.s.EventCategoryField, Value: st.Category, CaseInsensitive: !t.s.CaseSensitive,
		})
	}
	parts = append(parts, filter.Exists{Field: t.s.TimestampField})
	for _, k := range st.Keys {
		parts = append(parts, filter.Exists{Field: k})
	}
	where, err := t.expr(st.Where)
	if err != nil {
		return nil, err
	}
	parts = append(parts, where, t.s.Filter)
	return filter.And(parts...), nil
}

func (t translator) expr(e eql.Expr) (filter.Query, error) {
	switch n := e.(type) {
	case *eql.AndExpr:
		qs, err := t.exprs(n.Terms)
		if err != nil {
			return nil, err
		}
		return filter.And(qs...), nil
	case *eql.OrExpr:
		qs, err := t.exprs(n.Terms)
		if err != nil {
			return nil, err
		}
		return filter.Or(qs...), nil
	case *eql.NotExpr:
		q, err := t.expr(n.Term)
		if err != nil {
			return nil, err
		}
		return filter.Not(q), nil
	case *eql.Literal:
		if n.Kind == eql.LitBool && n.Bool {
			return filter.MatchAll{}, nil
		}
		return filter.MatchNone{}, nil
	case *eql.FieldRef:
		return filter.Term{Field: n.Path, Value: true}, nil
	case *eql.Comparison:
		return t.comparison(n)
	case *eql.InExpr:
		return t.in(n)
	case *eql.FunctionCall:
		return t.call(n)
	}
	return nil, domain.NewValidationError("query", "cannot translate expression %T", e)
}

func (t translator) exprs(terms []eql.Expr) ([]filter.Query, error) {
	out := make([]filter.Query, len(terms))
	for i, term := range terms {
		q, err := t.expr(term)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func (t translator) comparison(c *eql.Comparison) (filter.Query, error) {
	f, ok := c.Left.(*eql.FieldRef)
	lit, ok2 := c.Right.(*eql.Literal)
	if !ok || !ok2 {
		return nil, domain.NewValidationError("query", "comparison is not normalized [%s]", c)
	}
	name := f.Path

	if lit.Kind == eql.LitNull {
		if c.Op == eql.OpEq {
			return filter.Not(filter.Exists{Field: name}), nil
		}
		return filter.Exists{Field: name}, nil
	}

	ft := t.v.FieldType(name)
	if ft.IsOrdered() {
		n, err := t.number(name, ft, lit)
		if err != nil {
			return nil, err
		}
		return ordered(name, c.Op, n)
	}

	var eq filter.Query
	switch {
	case ft == field.Boolean:
		eq = filter.Term{Field: name, Value: lit.Bool}
	case c.Op == eql.OpLike && strings.ContainsAny(lit.Str, "*?"):
		return filter.Wildcard{Field: name, Pattern: lit.Str, CaseInsensitive: !t.s.CaseSensitive}, nil
	default:
		eq = filter.Term{Field: name, Value: lit.Str, CaseInsensitive: !t.s.CaseSensitive}
	}
	if c.Op == eql.OpNeq {
		return filter.Not(eq), nil
	}
	return eq, nil
}

func ordered(name string, op eql.CmpOp, n float64) (filter.Query, error) {
	var (
		r   filter.Range
		err error
	)
	switch op {
	case eql.OpEq, eql.OpLike:
		r = filter.Equal(n)
	case eql.OpNeq:
		return filter.Not(filter.RangeQuery{Field: name, Range: filter.Equal(n)}), nil
	case eql.OpLt:
		r, err = filter.NewRangeFilter(nil, nil, &n, nil)
	case eql.OpLte:
		r, err = filter.NewRangeFilter(nil, nil, nil, &n)
	case eql.OpGt:
		r, err = filter.NewRangeFilter(&n, nil, nil, nil)
	case eql.OpGte:
		r, err = filter.NewRangeFilter(nil, &n, nil, nil)
	}
	if err != nil {
		return nil, domain.NewValidationError(name, "%s", err)
	}
	return filter.RangeQuery{Field: name, Range: r}, nil
}

// number converts a literal compared with a numeric or date field.
// Date strings become epoch millis.
func (t translator) number(name string, ft field.Type, lit *eql.Literal) (float64, error) {
	if lit.Kind == eql.LitNumber {
		return lit.Num, nil
	}
	if ft == field.Date && lit.Kind == eql.LitString {
		ms, err := field.ParseDate(lit.Str)
		if err != nil {
			return 0, domain.NewValidationError(name, "field [%s]: %s", name, err)
		}
		return float64(ms), nil
	}
	return 0, domain.NewValidationError(name, "field [%s] of type [%s] cannot be compared with %s", name, ft, lit.Kind)
}

// equalAny matches name against any of lits.
func (t translator) equalAny(name string, lits []*eql.Literal) (filter.Query, error) {
	ft := t.v.FieldType(name)
	if ft.IsOrdered() {
		qs := make([]filter.Query, 0, len(lits))
		for _, lit := range lits {
			n, err := t.number(name, ft, lit)
			if err != nil {
				return nil, err
			}
			qs = append(qs, filter.RangeQuery{Field: name, Range: filter.Equal(n)})
		}
		return filter.Or(qs...), nil
	}
	values := make([]any, 0, len(lits))
	for _, lit := range lits {
		values = append(values, lit.Value())
	}
	if len(values) == 1 {
		return filter.Term{Field: name, Value: values[0], CaseInsensitive: ft == field.Keyword && !t.s.CaseSensitive}, nil
	}
	return filter.Terms{Field: name, Values: values, CaseInsensitive: ft == field.Keyword && !t.s.CaseSensitive}, nil
}

func (t translator) in(e *eql.InExpr) (filter.Query, error) {
	f, ok := e.Field.(*eql.FieldRef)
	if !ok {
		return nil, domain.NewValidationError("query", "left side of [in] must be a field [%s]", e)
	}
	q, err := t.equalAny(f.Path, e.Values)
	if err != nil {
		return nil, err
	}
	if e.Negated {
		return filter.Not(q), nil
	}
	return q, nil
}

func (t translator) call(c *eql.FunctionCall) (filter.Query, error) {
	f := c.Args[0].(*eql.FieldRef)
	lits := make([]*eql.Literal, 0, len(c.Args)-1)
	for _, a := range c.Args[1:] {
		lits = append(lits, a.(*eql.Literal))
	}

	if c.Name == eql.FuncArrayContains {
		return t.equalAny(f.Path, lits)
	}

	qs := make([]filter.Query, 0, len(lits))
	for _, lit := range lits {
		var pattern string
		switch c.Name {
		case eql.FuncStartsWith:
			pattern = EscapeWildcard(lit.Str) + "*"
		case eql.FuncEndsWith:
			pattern = "*" + EscapeWildcard(lit.Str)
		case eql.FuncStringContains:
			pattern = "*" + EscapeWildcard(lit.Str) + "*"
		case eql.FuncWildcard:
			pattern = lit.Str
		default:
			return nil, domain.NewValidationError("query", "unknown function [%s]", c.Name)
		}
		qs = append(qs, filter.Wildcard{Field: f.Path, Pattern: pattern, CaseInsensitive: !t.s.CaseSensitive})
	}
	return filter.Or(qs...), nil
}

// EscapeWildcard quotes the wildcard metacharacters of s with a backslash.
func EscapeWildcard(s string) string {
	if !strings.ContainsAny(s, `*?\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for _, r := range s {
		if r == '*' || r == '?' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
