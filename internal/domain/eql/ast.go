// Package eql parses and validates event query language statements.
//
// The package turns query text into a sealed AST and checks it against a
// field schema. It does not build backend queries, fetch events or match
// sequences.
package eql

import (
	"strconv"
	"strings"
	"time"
)

// Expr is a filter expression node.
// The marker method prevents external types from implementing Expr.
type Expr interface {
	expr()
	// String returns the expression in EQL syntax.
	String() string
}

// LiteralKind identifies the type of a literal.
type LiteralKind int

// Literal kinds.
const (
	LitString LiteralKind = iota
	LitNumber
	LitBool
	LitNull
)

func (k LiteralKind) String() string {
	switch k {
	case LitString:
		return "string"
	case LitNumber:
		return "number"
	case LitBool:
		return "boolean"
	default:
		return "null"
	}
}

// Literal is a string, number, boolean or null constant.
type Literal struct {
	Kind LiteralKind
	Str  string
	Num  float64
	Bool bool
}

func (*Literal) expr() {}

// Value returns the literal as a Go value (string, float64, bool or nil).
func (l *Literal) Value() any {
	switch l.Kind {
	case LitString:
		return l.Str
	case LitNumber:
		return l.Num
	case LitBool:
		return l.Bool
	}
	return nil
}

func (l *Literal) String() string {
	switch l.Kind {
	case LitString:
		return strconv.Quote(l.Str)
	case LitNumber:
		return strconv.FormatFloat(l.Num, 'g', -1, 64)
	case LitBool:
		return strconv.FormatBool(l.Bool)
	}
	return "null"
}

// FieldRef references a (possibly dotted) document field.
type FieldRef struct {
	Path string
}

func (*FieldRef) expr() {}

func (f *FieldRef) String() string { return f.Path }

// CmpOp is a comparison operator.
type CmpOp int

// Comparison operators.
const (
	OpEq CmpOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpLike // ':' wildcard / containment
)

func (op CmpOp) String() string {
	return [...]string{"==", "!=", "<", "<=", ">", ">=", ":"}[op]
}

// Flip returns the operator with its operands swapped (5 < x is x > 5).
func (op CmpOp) Flip() CmpOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLte:
		return OpGte
	case OpGt:
		return OpLt
	case OpGte:
		return OpLte
	}
	return op
}

// Comparison compares two operands.
type Comparison struct {
	Op    CmpOp
	Left  Expr
	Right Expr
}

func (*Comparison) expr() {}

func (c *Comparison) String() string {
	return c.Left.String() + " " + c.Op.String() + " " + c.Right.String()
}

// InExpr tests set membership: field [not] in (v1, v2, ...).
type InExpr struct {
	Field   Expr
	Values  []*Literal
	Negated bool
}

func (*InExpr) expr() {}

func (e *InExpr) String() string {
	vals := make([]string, len(e.Values))
	for i, v := range e.Values {
		vals[i] = v.String()
	}
	op := " in "
	if e.Negated {
		op = " not in "
	}
	return e.Field.String() + op + "(" + strings.Join(vals, ", ") + ")"
}

// AndExpr is a logical AND.
// Invariant: len(Terms) >= 2
type AndExpr struct {
	Terms []Expr
}

func (*AndExpr) expr() {}

func (a *AndExpr) String() string { return joinTerms(a.Terms, " and ") }

// OrExpr is a logical OR.
// Invariant: len(Terms) >= 2
type OrExpr struct {
	Terms []Expr
}

func (*OrExpr) expr() {}

func (o *OrExpr) String() string { return joinTerms(o.Terms, " or ") }

// NotExpr is a logical negation.
type NotExpr struct {
	Term Expr
}

func (*NotExpr) expr() {}

func (n *NotExpr) String() string { return "not " + n.Term.String() }

// FunctionCall invokes a built-in string or array helper.
type FunctionCall struct {
	Name string
	Args []Expr
	Pos  int
}

func (*FunctionCall) expr() {}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

func joinTerms(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// flattenAnd combines two expressions into an AndExpr, flattening nested ANDs.
func flattenAnd(left, right Expr) Expr {
	var terms []Expr
	if a, ok := left.(*AndExpr); ok {
		terms = append(terms, a.Terms...)
	} else {
		terms = append(terms, left)
	}
	if a, ok := right.(*AndExpr); ok {
		terms = append(terms, a.Terms...)
	} else {
		terms = append(terms, right)
	}
	return &AndExpr{Terms: terms}
}

// flattenOr combines two expressions into an OrExpr, flattening nested ORs.
func flattenOr(left, right Expr) Expr {
	var terms []Expr
	if o, ok := left.(*OrExpr); ok {
		terms = append(terms, o.Terms...)
	} else {
		terms = append(terms, left)
	}
	if o, ok := right.(*OrExpr); ok {
		terms = append(terms, o.Terms...)
	} else {
		terms = append(terms, right)
	}
	return &OrExpr{Terms: terms}
}

// Query is a query form: EventQuery, SequenceQuery or JoinQuery.
type Query interface {
	query()
	String() string
}

// AnyCategory matches events of every category.
const AnyCategory = "any"

// EventQuery filters events of one category.
type EventQuery struct {
	Category string // AnyCategory matches all
	Where    Expr
	By       []*FieldRef
}

func (*EventQuery) query() {}

func (q *EventQuery) String() string {
	s := categoryString(q.Category) + " where " + q.Where.String()
	if len(q.By) > 0 {
		s += " by " + joinFields(q.By)
	}
	return s
}

// Stage is one bracketed event query inside a sequence or join.
// By overrides the enclosing query's join keys when non-empty.
type Stage struct {
	Event *EventQuery
	By    []*FieldRef
}

func (s *Stage) String() string {
	out := "[" + s.Event.String() + "]"
	if len(s.By) > 0 {
		out += " by " + joinFields(s.By)
	}
	return out
}

// SequenceQuery matches events in stage order, correlated by join keys.
// Invariant: len(Stages) >= 2
type SequenceQuery struct {
	By         []*FieldRef
	MaxSpan    time.Duration
	HasMaxSpan bool
	Stages     []*Stage
	Until      *Stage
}

func (*SequenceQuery) query() {}

func (q *SequenceQuery) String() string {
	var sb strings.Builder
	sb.WriteString("sequence")
	if len(q.By) > 0 {
		sb.WriteString(" by " + joinFields(q.By))
	}
	if q.HasMaxSpan {
		sb.WriteString(" with maxspan=" + FormatDuration(q.MaxSpan))
	}
	writeStages(&sb, q.Stages, q.Until)
	return sb.String()
}

// JoinQuery matches one event per stage sharing join keys, in any order.
// Invariant: len(Stages) >= 2
type JoinQuery struct {
	By     []*FieldRef
	Stages []*Stage
	Until  *Stage
}

func (*JoinQuery) query() {}

func (q *JoinQuery) String() string {
	var sb strings.Builder
	sb.WriteString("join")
	if len(q.By) > 0 {
		sb.WriteString(" by " + joinFields(q.By))
	}
	writeStages(&sb, q.Stages, q.Until)
	return sb.String()
}

func writeStages(sb *strings.Builder, stages []*Stage, until *Stage) {
	for _, s := range stages {
		sb.WriteString(" " + s.String())
	}
	if until != nil {
		sb.WriteString(" until " + until.String())
	}
}

func categoryString(c string) string {
	if c == "" {
		return strconv.Quote(c)
	}
	for i := 0; i < len(c); i++ {
		if !isIdentChar(c[i]) || (i == 0 && !isIdentStart(c[i])) {
			return strconv.Quote(c)
		}
	}
	return c
}

func joinFields(fields []*FieldRef) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Path
	}
	return strings.Join(names, ", ")
}

// Pipe is a post-processing step applied to query results.
type Pipe interface {
	pipe()
	String() string
}

// DefaultPipeCount is used by head and tail without an explicit count.
const DefaultPipeCount = 10

// HeadPipe keeps the first N results.
type HeadPipe struct{ N int }

// TailPipe keeps the last N results.
type TailPipe struct{ N int }

// CountPipe replaces results with their count.
type CountPipe struct{}

// UniquePipe keeps the first result per distinct projection of Fields.
type UniquePipe struct{ Fields []*FieldRef }

func (*HeadPipe) pipe()   {}
func (*TailPipe) pipe()   {}
func (*CountPipe) pipe()  {}
func (*UniquePipe) pipe() {}

func (p *HeadPipe) String() string   { return "head " + strconv.Itoa(p.N) }
func (p *TailPipe) String() string   { return "tail " + strconv.Itoa(p.N) }
func (*CountPipe) String() string    { return "count" }
func (p *UniquePipe) String() string { return "unique " + joinFields(p.Fields) }

// Statement is a parsed query with its trailing pipes.
type Statement struct {
	Query Query
	Pipes []Pipe
}

func (s *Statement) String() string {
	parts := []string{s.Query.String()}
	for _, p := range s.Pipes {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " | ")
}
