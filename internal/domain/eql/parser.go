package eql

import (
	"math"
	"strconv"
	"strings"
)

// Parser parses EQL text into a Statement. Single pass, recursive descent,
// one token of lookahead.
//
// Grammar (EBNF):
//
//	statement   = query { "|" pipe } EOF
//	query       = event_query | sequence | join
//	event_query = category "where" expr [ by_clause ]
//	category    = IDENT | STRING | "any"
//	sequence    = "sequence" { by_clause | [ "with" ] "maxspan" "=" DURATION }
//	              stage stage { stage } [ "until" stage ]
//	join        = "join" [ by_clause ] stage stage { stage } [ "until" stage ]
//	stage       = "[" event_query "]" [ by_clause ]
//	by_clause   = "by" field { "," field }
//	expr        = and_expr { "or" and_expr }
//	and_expr    = not_expr { "and" not_expr }
//	not_expr    = "not" not_expr | cmp_expr
//	cmp_expr    = operand [ cmp_op operand | [ "not" ] "in" "(" literal { "," literal } ")" ]
//	operand     = literal | field | call | "(" expr ")"
//	call        = IDENT "(" [ expr { "," expr } ] ")"
//	pipe        = ( "head" | "tail" ) [ NUMBER ] | "count" | "unique" field { "," field }
//
// Precedence (highest to lowest):
//  1. Parentheses
//  2. Comparison
//  3. NOT (prefix, right-associative)
//  4. AND
//  5. OR
type parser struct {
	lex    *Lexer
	cur    Token
	peeked *Token
}

// reserved words cannot be used as bare field names; quote them with backquotes.
var reserved = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "where": true, "by": true,
	"until": true, "with": true, "sequence": true, "join": true,
	"true": true, "false": true, "null": true,
}

// Parse parses EQL text into a Statement.
func Parse(input string) (*Statement, error) {
	p := &parser{lex: NewLexer(input)}

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind == TokEOF {
		return nil, newSyntaxError(0, ErrEmptyQuery, "empty query")
	}

	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}

	stmt := &Statement{Query: q}
	for p.cur.Kind == TokPipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		pipe, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		stmt.Pipes = append(stmt.Pipes, pipe)
	}

	if p.cur.Kind != TokEOF {
		return nil, p.unexpected("end of query")
	}
	return stmt, nil
}

// ParseExpression parses a standalone filter expression.
func ParseExpression(input string) (Expr, error) {
	p := &parser{lex: NewLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind == TokEOF {
		return nil, newSyntaxError(0, ErrEmptyQuery, "empty expression")
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, p.unexpected("end of expression")
	}
	return e, nil
}

func (p *parser) advance() error {
	if p.peeked != nil {
		p.cur = *p.peeked
		p.peeked = nil
		return nil
	}
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) peek() (Token, error) {
	if p.peeked == nil {
		tok, err := p.lex.Next()
		if err != nil {
			return Token{}, err
		}
		p.peeked = &tok
	}
	return *p.peeked, nil
}

func (p *parser) unexpected(want string) error {
	if p.cur.Kind == TokEOF {
		return newSyntaxError(p.cur.Pos, ErrUnexpectedEOF, "expected %s, got end of query", want)
	}
	return newSyntaxError(p.cur.Pos, ErrUnexpectedToken, "expected %s, got %s", want, describe(p.cur))
}

func describe(t Token) string {
	switch t.Kind {
	case TokIdent, TokNumber:
		return "'" + t.Lit + "'"
	case TokString:
		return strconv.Quote(t.Lit)
	}
	return "'" + t.Kind.String() + "'"
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	if p.cur.Kind != kind {
		return Token{}, p.unexpected("'" + kind.String() + "'")
	}
	tok := p.cur
	return tok, p.advance()
}

func (p *parser) expectKeyword(kw string) error {
	if !p.cur.Is(kw) {
		return p.unexpected("'" + kw + "'")
	}
	return p.advance()
}

func (p *parser) parseQuery() (Query, error) {
	switch {
	case p.cur.Is("sequence"):
		return p.parseSequence()
	case p.cur.Is("join"):
		return p.parseJoin()
	}
	return p.parseEventQuery()
}

// parseEventQuery parses: category "where" expr [ by_clause ]
func (p *parser) parseEventQuery() (*EventQuery, error) {
	var category string
	switch {
	case p.cur.Kind == TokString:
		category = p.cur.Lit
	case p.cur.Kind == TokIdent && (p.cur.Quoted || !reserved[strings.ToLower(p.cur.Lit)]):
		category = p.cur.Lit
		if p.cur.Is(AnyCategory) {
			category = AnyCategory
		}
	default:
		return nil, p.unexpected("event category")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("where"); err != nil {
		return nil, err
	}
	where, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	q := &EventQuery{Category: category, Where: where}
	if p.cur.Is("by") {
		if q.By, err = p.parseBy(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// parseSequence parses the sequence header, its stages and the optional until.
func (p *parser) parseSequence() (*SequenceQuery, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	q := &SequenceQuery{}
	for {
		switch {
		case p.cur.Is("by"):
			if q.By != nil {
				return nil, newSyntaxError(p.cur.Pos, ErrUnexpectedToken, "duplicate 'by' in sequence header")
			}
			by, err := p.parseBy()
			if err != nil {
				return nil, err
			}
			q.By = by
			continue
		case p.cur.Is("with") || p.cur.Is("maxspan"):
			if q.HasMaxSpan {
				return nil, newSyntaxError(p.cur.Pos, ErrUnexpectedToken, "duplicate 'maxspan' in sequence header")
			}
			if err := p.parseMaxSpan(q); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	stages, until, err := p.parseStages("sequence")
	if err != nil {
		return nil, err
	}
	q.Stages, q.Until = stages, until
	return q, nil
}

// parseMaxSpan parses: [ "with" ] "maxspan" "=" DURATION
func (p *parser) parseMaxSpan(q *SequenceQuery) error {
	if p.cur.Is("with") {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if err := p.expectKeyword("maxspan"); err != nil {
		return err
	}
	if _, err := p.expect(TokAssign); err != nil {
		return err
	}
	if p.cur.Kind != TokNumber {
		return p.unexpected("duration")
	}
	d, err := ParseDuration(p.cur.Lit)
	if err != nil {
		return newSyntaxError(p.cur.Pos, ErrInvalidDuration, "%s", err.Error())
	}
	q.MaxSpan, q.HasMaxSpan = d, true
	return p.advance()
}

func (p *parser) parseJoin() (*JoinQuery, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	q := &JoinQuery{}
	if p.cur.Is("by") {
		by, err := p.parseBy()
		if err != nil {
			return nil, err
		}
		q.By = by
	}
	if p.cur.Is("with") || p.cur.Is("maxspan") {
		return nil, newSyntaxError(p.cur.Pos, ErrUnexpectedToken, "maxspan is only supported by sequence")
	}
	stages, until, err := p.parseStages("join")
	if err != nil {
		return nil, err
	}
	q.Stages, q.Until = stages, until
	return q, nil
}

func (p *parser) parseStages(form string) ([]*Stage, *Stage, error) {
	var stages []*Stage
	for p.cur.Kind == TokLBracket {
		s, err := p.parseStage()
		if err != nil {
			return nil, nil, err
		}
		stages = append(stages, s)
	}
	if len(stages) < 2 {
		if p.cur.Kind != TokLBracket && len(stages) == 0 {
			return nil, nil, p.unexpected("'['")
		}
		return nil, nil, newSyntaxError(p.cur.Pos, ErrUnexpectedToken, "%s requires at least 2 stages, got %d", form, len(stages))
	}
	if !p.cur.Is("until") {
		return stages, nil, nil
	}
	if err := p.advance(); err != nil {
		return nil, nil, err
	}
	if p.cur.Kind != TokLBracket {
		return nil, nil, p.unexpected("'[' after until")
	}
	until, err := p.parseStage()
	if err != nil {
		return nil, nil, err
	}
	return stages, until, nil
}

// parseStage parses: "[" event_query "]" [ by_clause ]
func (p *parser) parseStage() (*Stage, error) {
	if _, err := p.expect(TokLBracket); err != nil {
		return nil, err
	}
	ev, err := p.parseEventQuery()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRBracket); err != nil {
		return nil, err
	}
	s := &Stage{Event: ev, By: ev.By}
	if p.cur.Is("by") {
		if len(ev.By) > 0 {
			return nil, newSyntaxError(p.cur.Pos, ErrUnexpectedToken, "stage declares 'by' both inside and after brackets")
		}
		if s.By, err = p.parseBy(); err != nil {
			return nil, err
		}
	}
	ev.By = nil
	return s, nil
}

// parseBy parses: "by" field { "," field }
func (p *parser) parseBy() ([]*FieldRef, error) {
	if err := p.expectKeyword("by"); err != nil {
		return nil, err
	}
	return p.parseFieldList()
}

func (p *parser) parseFieldList() ([]*FieldRef, error) {
	var fields []*FieldRef
	for {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if p.cur.Kind != TokComma {
			return fields, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseField() (*FieldRef, error) {
	if p.cur.Kind != TokIdent || (!p.cur.Quoted && reserved[strings.ToLower(p.cur.Lit)]) {
		return nil, p.unexpected("field name")
	}
	f := &FieldRef{Path: p.cur.Lit}
	return f, p.advance()
}

// parseExpr parses: expr = and_expr { "or" and_expr }
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.cur.Is("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = flattenOr(left, right)
	}
	return left, nil
}

// parseAndExpr parses: and_expr = not_expr { "and" not_expr }
func (p *parser) parseAndExpr() (Expr, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}
	for p.cur.Is("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = flattenAnd(left, right)
	}
	return left, nil
}

// parseNotExpr parses: not_expr = "not" not_expr | cmp_expr
func (p *parser) parseNotExpr() (Expr, error) {
	if p.cur.Is("not") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		term, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Term: term}, nil
	}
	return p.parseCmpExpr()
}

var cmpOps = map[TokenKind]CmpOp{
	TokEq: OpEq, TokNeq: OpNeq, TokLt: OpLt, TokLte: OpLte,
	TokGt: OpGt, TokGte: OpGte, TokColon: OpLike,
}

// parseCmpExpr parses: operand [ cmp_op operand | [ "not" ] "in" "(" literals ")" ]
func (p *parser) parseCmpExpr() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if op, ok := cmpOps[p.cur.Kind]; ok {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Left: left, Right: right}, nil
	}

	if p.cur.Kind == TokAssign {
		return nil, newSyntaxError(p.cur.Pos, ErrInvalidOperator, "invalid operator '=', did you mean '=='?")
	}

	negated := false
	if p.cur.Is("not") {
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if !next.Is("in") {
			return left, nil
		}
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if !p.cur.Is("in") {
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	values, err := p.parseLiteralList()
	if err != nil {
		return nil, err
	}
	return &InExpr{Field: left, Values: values, Negated: negated}, nil
}

func (p *parser) parseLiteralList() ([]*Literal, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	var values []*Literal
	for {
		lit, ok, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, p.unexpected("literal")
		}
		values = append(values, lit)
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	return values, nil
}

// parseOperand parses: operand = literal | field | call | "(" expr ")"
func (p *parser) parseOperand() (Expr, error) {
	lit, ok, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if ok {
		return lit, nil
	}

	switch p.cur.Kind {
	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return e, nil
	case TokIdent:
		if !p.cur.Quoted {
			next, err := p.peek()
			if err != nil {
				return nil, err
			}
			if next.Kind == TokLParen {
				return p.parseCall()
			}
		}
		return p.parseField()
	}
	return nil, p.unexpected("expression")
}

// parseLiteral parses a literal if the current token starts one.
func (p *parser) parseLiteral() (*Literal, bool, error) {
	var lit *Literal
	switch {
	case p.cur.Kind == TokString:
		lit = &Literal{Kind: LitString, Str: p.cur.Lit}
	case p.cur.Kind == TokNumber:
		n, err := strconv.ParseFloat(p.cur.Lit, 64)
		if err != nil || math.IsInf(n, 0) {
			return nil, false, newSyntaxError(p.cur.Pos, ErrInvalidNumber, "invalid number '%s'", p.cur.Lit)
		}
		lit = &Literal{Kind: LitNumber, Num: n}
	case p.cur.Is("true"), p.cur.Is("false"):
		lit = &Literal{Kind: LitBool, Bool: p.cur.Is("true")}
	case p.cur.Is("null"):
		lit = &Literal{Kind: LitNull}
	default:
		return nil, false, nil
	}
	return lit, true, p.advance()
}

// parseCall parses: call = IDENT "(" [ expr { "," expr } ] ")"
func (p *parser) parseCall() (Expr, error) {
	call := &FunctionCall{Name: p.cur.Lit, Pos: p.cur.Pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	if p.cur.Kind == TokRParen {
		return call, p.advance()
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.cur.Kind != TokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) parsePipe() (Pipe, error) {
	if p.cur.Kind != TokIdent || p.cur.Quoted {
		return nil, p.unexpected("pipe name")
	}
	name := strings.ToLower(p.cur.Lit)
	pos := p.cur.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch name {
	case "head", "tail":
		n := DefaultPipeCount
		if p.cur.Kind == TokNumber {
			v, err := strconv.Atoi(p.cur.Lit)
			if err != nil {
				return nil, newSyntaxError(p.cur.Pos, ErrInvalidNumber, "%s expects an integer, got '%s'", name, p.cur.Lit)
			}
			n = v
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if name == "head" {
			return &HeadPipe{N: n}, nil
		}
		return &TailPipe{N: n}, nil
	case "count":
		return &CountPipe{}, nil
	case "unique":
		fields, err := p.parseFieldList()
		if err != nil {
			return nil, err
		}
		return &UniquePipe{Fields: fields}, nil
	}
	return nil, newSyntaxError(pos, ErrUnknownPipe, "unknown pipe '%s'", name)
}
