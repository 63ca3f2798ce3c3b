package eql

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
	"github.com/kailas-cloud/seqdex/internal/domain/search/mode"
)

// Schema resolves field names to their declared types.
type Schema interface {
	FieldType(name string) (field.Type, bool)
}

// Settings carries the request-level field names the query is checked against.
type Settings struct {
	TimestampField       string
	EventCategoryField   string
	ImplicitJoinKeyField string
}

// ValidatedStage is one stage with its effective join keys resolved.
type ValidatedStage struct {
	Category string // empty when the stage matches every category
	Where    Expr   // comparisons always have the field on the left
	Keys     []string
}

// Validated is a statement checked against a schema. It is immutable and
// carries everything the translator and the matcher need.
type Validated struct {
	Mode     mode.Mode
	Stages   []ValidatedStage
	Until    *ValidatedStage
	MaxSpan  time.Duration // zero when unbounded
	Pipes    []Pipe
	Settings Settings

	types map[string]field.Type
}

// FieldType returns the declared type of a field referenced by the statement.
func (v *Validated) FieldType(name string) field.Type { return v.types[name] }

// JoinKeys returns the join key names of the first stage.
func (v *Validated) JoinKeys() []string {
	if len(v.Stages) == 0 {
		return nil
	}
	return v.Stages[0].Keys
}

type validator struct {
	schema   Schema
	settings Settings
	types    map[string]field.Type
}

// Validate checks stmt against schema and returns the normalized statement.
// Failures are *domain.ValidationError.
func Validate(stmt *Statement, schema Schema, s Settings) (*Validated, error) {
	v := &validator{schema: schema, settings: s, types: make(map[string]field.Type)}
	out := &Validated{Settings: s, types: v.types}

	if err := v.checkTimestamp(); err != nil {
		return nil, err
	}

	var err error
	switch q := stmt.Query.(type) {
	case *EventQuery:
		out.Mode = mode.Event
		var st ValidatedStage
		if st, err = v.stage(q, fieldNames(q.By)); err != nil {
			return nil, err
		}
		out.Stages = []ValidatedStage{st}
	case *SequenceQuery:
		out.Mode = mode.Sequence
		if q.HasMaxSpan && q.MaxSpan <= 0 {
			return nil, domain.NewValidationError("maxspan",
				"maxspan must be positive, got [%s]", FormatDuration(q.MaxSpan))
		}
		out.MaxSpan = q.MaxSpan
		if out.Stages, out.Until, err = v.stages(q.By, q.Stages, q.Until); err != nil {
			return nil, err
		}
	case *JoinQuery:
		out.Mode = mode.Join
		if out.Stages, out.Until, err = v.stages(q.By, q.Stages, q.Until); err != nil {
			return nil, err
		}
	default:
		return nil, domain.NewValidationError("query", "unsupported query form %T", stmt.Query)
	}

	if out.Pipes, err = v.pipes(stmt.Pipes); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *validator) checkTimestamp() error {
	name := v.settings.TimestampField
	if name == "" {
		return domain.NewValidationError("timestamp_field", "timestamp field is required")
	}
	ft, ok := v.schema.FieldType(name)
	if !ok {
		return domain.NewValidationError("timestamp_field",
			"timestamp field [%s] is not declared in the index schema", name)
	}
	if !ft.IsOrdered() {
		return domain.NewValidationError("timestamp_field",
			"timestamp field [%s] must be of type [date] or [numeric], got [%s]", name, ft)
	}
	v.types[name] = ft
	return nil
}

func (v *validator) stages(by []*FieldRef, stages []*Stage, until *Stage) ([]ValidatedStage, *ValidatedStage, error) {
	if len(stages) < 2 {
		return nil, nil, domain.NewValidationError("query", "at least 2 stages are required, got %d", len(stages))
	}

	shared := fieldNames(by)
	declared := len(shared) > 0
	for _, s := range stages {
		declared = declared || len(s.By) > 0
	}
	if until != nil && len(until.By) > 0 {
		declared = true
	}
	if !declared && v.settings.ImplicitJoinKeyField != "" {
		if _, ok := v.schema.FieldType(v.settings.ImplicitJoinKeyField); ok {
			shared = []string{v.settings.ImplicitJoinKeyField}
		}
	}

	keysFor := func(s *Stage) []string {
		if len(s.By) > 0 {
			return fieldNames(s.By)
		}
		return shared
	}

	out := make([]ValidatedStage, 0, len(stages))
	for _, s := range stages {
		st, err := v.stage(s.Event, keysFor(s))
		if err != nil {
			return nil, nil, err
		}
		out = append(out, st)
	}

	var untilStage *ValidatedStage
	if until != nil {
		st, err := v.stage(until.Event, keysFor(until))
		if err != nil {
			return nil, nil, err
		}
		untilStage = &st
	}

	want := len(out[0].Keys)
	check := func(label string, st ValidatedStage) error {
		if len(st.Keys) != want {
			return domain.NewValidationError("by",
				"inconsistent join key arity: stage 0 declares %d key(s) [%s], %s declares %d key(s) [%s]",
				want, strings.Join(out[0].Keys, ", "), label, len(st.Keys), strings.Join(st.Keys, ", "))
		}
		return nil
	}
	for i, st := range out[1:] {
		if err := check(fmt.Sprintf("stage %d", i+1), st); err != nil {
			return nil, nil, err
		}
	}
	if untilStage != nil {
		if err := check("until", *untilStage); err != nil {
			return nil, nil, err
		}
	}
	return out, untilStage, nil
}

func (v *validator) stage(q *EventQuery, keys []string) (ValidatedStage, error) {
	st := ValidatedStage{Keys: keys}
	if q.Category != AnyCategory && v.settings.EventCategoryField != "" {
		ft, err := v.lookup(v.settings.EventCategoryField)
		if err != nil {
			return ValidatedStage{}, err
		}
		if ft != field.Keyword {
			return ValidatedStage{}, domain.NewValidationError("event_category_field",
				"event category field [%s] must be of type [keyword], got [%s]", v.settings.EventCategoryField, ft)
		}
		st.Category = q.Category
	}
	for _, k := range keys {
		if _, err := v.lookup(k); err != nil {
			return ValidatedStage{}, err
		}
	}
	where, err := v.predicate(q.Where)
	if err != nil {
		return ValidatedStage{}, err
	}
	st.Where = where
	return st, nil
}

func (v *validator) lookup(name string) (field.Type, error) {
	ft, ok := v.schema.FieldType(name)
	if !ok {
		return "", domain.NewValidationError(name, "field [%s] is not declared in the index schema", name)
	}
	v.types[name] = ft
	return ft, nil
}

// predicate validates an expression used as a boolean condition.
func (v *validator) predicate(e Expr) (Expr, error) {
	switch n := e.(type) {
	case *AndExpr:
		terms, err := v.predicates(n.Terms)
		if err != nil {
			return nil, err
		}
		return &AndExpr{Terms: terms}, nil
	case *OrExpr:
		terms, err := v.predicates(n.Terms)
		if err != nil {
			return nil, err
		}
		return &OrExpr{Terms: terms}, nil
	case *NotExpr:
		t, err := v.predicate(n.Term)
		if err != nil {
			return nil, err
		}
		return &NotExpr{Term: t}, nil
	case *Comparison:
		return v.comparison(n)
	case *InExpr:
		return v.in(n)
	case *FunctionCall:
		return v.call(n)
	case *Literal:
		if n.Kind != LitBool {
			return nil, domain.NewValidationError("query", "%s literal [%s] is not a condition", n.Kind, n)
		}
		return n, nil
	case *FieldRef:
		ft, err := v.lookup(n.Path)
		if err != nil {
			return nil, err
		}
		if ft != field.Boolean {
			return nil, domain.NewValidationError(n.Path,
				"field [%s] of type [%s] cannot be used as a condition", n.Path, ft)
		}
		return n, nil
	}
	return nil, domain.NewValidationError("query", "unsupported expression %T", e)
}

func (v *validator) predicates(terms []Expr) ([]Expr, error) {
	out := make([]Expr, len(terms))
	for i, t := range terms {
		e, err := v.predicate(t)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (v *validator) comparison(c *Comparison) (Expr, error) {
	lf, lIsField := c.Left.(*FieldRef)
	rf, rIsField := c.Right.(*FieldRef)
	ll, lIsLit := c.Left.(*Literal)
	rl, rIsLit := c.Right.(*Literal)

	var (
		f   *FieldRef
		lit *Literal
		op  CmpOp
	)
	switch {
	case lIsField && rIsField:
		return nil, domain.NewValidationError("query", "comparisons between fields are not supported [%s]", c)
	case lIsField && rIsLit:
		f, lit, op = lf, rl, c.Op
	case lIsLit && rIsField:
		f, lit, op = rf, ll, c.Op.Flip()
	default:
		return nil, domain.NewValidationError("query", "comparison must be between a field and a literal [%s]", c)
	}

	if err := v.checkLiteral(f.Path, op, lit); err != nil {
		return nil, err
	}
	return &Comparison{Op: op, Left: f, Right: lit}, nil
}

func (v *validator) checkLiteral(name string, op CmpOp, lit *Literal) error {
	ft, err := v.lookup(name)
	if err != nil {
		return err
	}
	mismatch := func() error {
		return domain.NewValidationError(name,
			"field [%s] of type [%s] cannot be compared with %s [%s]", name, ft, lit.Kind, lit)
	}

	if lit.Kind == LitNull {
		if op != OpEq && op != OpNeq {
			return domain.NewValidationError(name, "null can only be compared with == or != [%s %s null]", name, op)
		}
		return nil
	}
	if op == OpLike && ft != field.Keyword {
		return domain.NewValidationError(name, "operator [:] requires a keyword field, [%s] is [%s]", name, ft)
	}
	if (op == OpLt || op == OpLte || op == OpGt || op == OpGte) && !ft.IsOrdered() {
		return domain.NewValidationError(name, "operator [%s] is not supported on [%s] field [%s]", op, ft, name)
	}

	switch ft {
	case field.Keyword:
		if lit.Kind != LitString {
			return mismatch()
		}
	case field.Numeric:
		if lit.Kind != LitNumber {
			return mismatch()
		}
	case field.Boolean:
		if lit.Kind != LitBool {
			return mismatch()
		}
	case field.Date:
		switch lit.Kind {
		case LitNumber:
		case LitString:
			if _, err := field.ParseDate(lit.Str); err != nil {
				return domain.NewValidationError(name, "field [%s] of type [date] cannot be compared with %s", name, err)
			}
		default:
			return mismatch()
		}
	}
	return nil
}

func (v *validator) in(e *InExpr) (Expr, error) {
	f, ok := e.Field.(*FieldRef)
	if !ok {
		return nil, domain.NewValidationError("query", "left side of [in] must be a field [%s]", e)
	}
	for _, lit := range e.Values {
		if lit.Kind == LitNull {
			return nil, domain.NewValidationError(f.Path, "null is not allowed in [in] list [%s]", e)
		}
		if err := v.checkLiteral(f.Path, OpEq, lit); err != nil {
			return nil, err
		}
	}
	return &InExpr{Field: f, Values: e.Values, Negated: e.Negated}, nil
}

// Function names, lower-cased.
const (
	FuncStartsWith     = "startswith"
	FuncEndsWith       = "endswith"
	FuncStringContains = "stringcontains"
	FuncWildcard       = "wildcard"
	FuncArrayContains  = "arraycontains"
)

var functionArity = map[string][2]int{ // min, max (-1 unbounded)
	FuncStartsWith:     {2, -1},
	FuncEndsWith:       {2, -1},
	FuncStringContains: {2, 2},
	FuncWildcard:       {2, -1},
	FuncArrayContains:  {2, -1},
}

func (v *validator) call(c *FunctionCall) (Expr, error) {
	name := strings.ToLower(c.Name)
	arity, ok := functionArity[name]
	if !ok {
		return nil, domain.NewValidationError("query", "unknown function [%s]", c.Name)
	}
	if len(c.Args) < arity[0] || (arity[1] >= 0 && len(c.Args) > arity[1]) {
		return nil, domain.NewValidationError("query",
			"function [%s] called with %d argument(s) [%s]", c.Name, len(c.Args), c)
	}
	f, ok := c.Args[0].(*FieldRef)
	if !ok {
		return nil, domain.NewValidationError("query", "first argument of [%s] must be a field [%s]", c.Name, c)
	}
	ft, err := v.lookup(f.Path)
	if err != nil {
		return nil, err
	}
	if name != FuncArrayContains && ft != field.Keyword {
		return nil, domain.NewValidationError(f.Path,
			"function [%s] requires a keyword field, [%s] is [%s]", c.Name, f.Path, ft)
	}
	for _, a := range c.Args[1:] {
		lit, ok := a.(*Literal)
		if !ok {
			return nil, domain.NewValidationError("query", "arguments of [%s] after the field must be literals [%s]", c.Name, c)
		}
		if name == FuncArrayContains {
			if err := v.checkLiteral(f.Path, OpEq, lit); err != nil {
				return nil, err
			}
			continue
		}
		if lit.Kind != LitString {
			return nil, domain.NewValidationError(f.Path,
				"function [%s] expects string arguments, got %s [%s]", c.Name, lit.Kind, lit)
		}
	}
	return &FunctionCall{Name: name, Args: c.Args, Pos: c.Pos}, nil
}

func (v *validator) pipes(pipes []Pipe) ([]Pipe, error) {
	for i, p := range pipes {
		if i > 0 {
			if _, ok := pipes[i-1].(*CountPipe); ok {
				return nil, domain.NewValidationError("query", "pipe [%s] cannot follow [count]", p)
			}
		}
		switch pp := p.(type) {
		case *HeadPipe:
			if pp.N <= 0 {
				return nil, domain.NewValidationError("head", "head count must be positive, got [%d]", pp.N)
			}
		case *TailPipe:
			if pp.N <= 0 {
				return nil, domain.NewValidationError("tail", "tail count must be positive, got [%d]", pp.N)
			}
		case *UniquePipe:
			for _, f := range pp.Fields {
				if _, err := v.lookup(f.Path); err != nil {
					return nil, err
				}
			}
		case *CountPipe:
		default:
			return nil, domain.NewValidationError("query", "unsupported pipe %T", p)
		}
	}
	return pipes, nil
}

func fieldNames(refs []*FieldRef) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Path
	}
	return out
}
