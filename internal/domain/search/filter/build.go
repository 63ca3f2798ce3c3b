package filter

// And intersects queries. MatchAll operands are dropped, a MatchNone operand
// wins, and nested pure-must bools are flattened.
func And(qs ...Query) Query {
	var must []Query
	for _, q := range qs {
		switch v := q.(type) {
		case nil, MatchAll:
		case MatchNone:
			return MatchNone{}
		case Bool:
			if len(v.Should) == 0 && len(v.MustNot) == 0 {
				must = append(must, v.Must...)
				continue
			}
			must = append(must, v)
		default:
			must = append(must, q)
		}
	}
	switch len(must) {
	case 0:
		return MatchAll{}
	case 1:
		return must[0]
	}
	return Bool{Must: must}
}

// Or unions queries. MatchNone operands are dropped, a MatchAll operand wins,
// and nested pure-should bools are flattened.
func Or(qs ...Query) Query {
	var should []Query
	for _, q := range qs {
		switch v := q.(type) {
		case nil, MatchNone:
		case MatchAll:
			return MatchAll{}
		case Bool:
			if len(v.Must) == 0 && len(v.MustNot) == 0 && len(v.Should) > 0 {
				should = append(should, v.Should...)
				continue
			}
			should = append(should, v)
		default:
			should = append(should, q)
		}
	}
	switch len(should) {
	case 0:
		return MatchNone{}
	case 1:
		return should[0]
	}
	return Bool{Should: should}
}

// Not negates a query.
func Not(q Query) Query {
	switch v := q.(type) {
	case MatchAll:
		return MatchNone{}
	case MatchNone:
		return MatchAll{}
	case Bool:
		if len(v.Must) == 0 && len(v.Should) == 0 && len(v.MustNot) == 1 {
			return v.MustNot[0]
		}
	}
	return Bool{MustNot: []Query{q}}
}

// Walk calls fn for q and every nested clause, depth first.
func Walk(q Query, fn func(Query)) {
	fn(q)
	b, ok := q.(Bool)
	if !ok {
		return
	}
	for _, group := range [][]Query{b.Must, b.Should, b.MustNot} {
		for _, c := range group {
			Walk(c, fn)
		}
	}
}

// Fields returns the field names referenced by q in first-seen order.
func Fields(q Query) []string {
	var out []string
	seen := make(map[string]bool)
	Walk(q, func(n Query) {
		f := FieldOf(n)
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	})
	return out
}

// FieldOf returns the field a leaf query targets, or "" for bool and match nodes.
func FieldOf(q Query) string {
	switch v := q.(type) {
	case Term:
		return v.Field
	case Terms:
		return v.Field
	case RangeQuery:
		return v.Field
	case Exists:
		return v.Field
	case Wildcard:
		return v.Field
	}
	return ""
}

// Simplify folds constant subtrees so that MatchAll and MatchNone only
// survive as the whole query, never as a nested clause.
func Simplify(q Query) Query {
	b, ok := q.(Bool)
	if !ok {
		return q
	}
	parts := make([]Query, 0, len(b.Must)+len(b.MustNot)+1)
	for _, c := range b.Must {
		parts = append(parts, Simplify(c))
	}
	if len(b.Should) > 0 {
		should := make([]Query, len(b.Should))
		for i, c := range b.Should {
			should[i] = Simplify(c)
		}
		parts = append(parts, Or(should...))
	}
	for _, c := range b.MustNot {
		parts = append(parts, Not(Simplify(c)))
	}
	return And(parts...)
}
