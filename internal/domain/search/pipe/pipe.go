// Package pipe applies EQL pipes to a stream of results.
package pipe

import (
	"encoding/json"

	"github.com/kailas-cloud/seqdex/internal/domain/eql"
)

// Projector returns the value of field for a result, nil when absent.
type Projector[T any] func(v T, field string) any

type stage[T any] interface {
	// push consumes v and reports whether more input is useful.
	push(v T) bool
	finish()
}

// Chain is a sequence of streaming sinks built from pipes.
type Chain[T any] struct {
	first    stage[T]
	out      *collect[T]
	counter  *count[T]
	finished bool
}

// New builds the chain for pipes. Unless the pipes end in count, an implicit
// head limit is appended; limit <= 0 disables it.
func New[T any](pipes []eql.Pipe, limit int, project Projector[T]) *Chain[T] {
	c := &Chain[T]{out: &collect[T]{}}

	var next stage[T] = c.out
	counted := false
	if n := len(pipes); n > 0 {
		if _, ok := pipes[n-1].(*eql.CountPipe); ok {
			c.counter = &count[T]{}
			next = c.counter
			pipes = pipes[:n-1]
			counted = true
		}
	}
	if !counted && limit > 0 {
		next = &head[T]{n: limit, next: next}
	}
	for i := len(pipes) - 1; i >= 0; i-- {
		switch p := pipes[i].(type) {
		case *eql.HeadPipe:
			next = &head[T]{n: p.N, next: next}
		case *eql.TailPipe:
			next = &tail[T]{n: p.N, next: next}
		case *eql.UniquePipe:
			fields := make([]string, len(p.Fields))
			for j, f := range p.Fields {
				fields[j] = f.Path
			}
			next = &unique[T]{fields: fields, project: project, seen: make(map[string]bool), next: next}
		}
	}
	c.first = next
	return c
}

// Push feeds one result. It returns false once the chain needs no more input.
func (c *Chain[T]) Push(v T) bool { return c.first.push(v) }

// Finish flushes buffering sinks. It is safe to call more than once.
func (c *Chain[T]) Finish() {
	if c.finished {
		return
	}
	c.finished = true
	c.first.finish()
}

// Results returns the collected results after Finish.
func (c *Chain[T]) Results() []T { return c.out.items }

// Count returns the count pipe total and whether the chain counts.
func (c *Chain[T]) Count() (int64, bool) {
	if c.counter == nil {
		return 0, false
	}
	return c.counter.n, true
}

type collect[T any] struct{ items []T }

func (c *collect[T]) push(v T) bool {
	c.items = append(c.items, v)
	return true
}
func (c *collect[T]) finish() {}

type count[T any] struct{ n int64 }

func (c *count[T]) push(T) bool { c.n++; return true }
func (c *count[T]) finish()     {}

type head[T any] struct {
	n    int
	seen int
	next stage[T]
}

func (h *head[T]) push(v T) bool {
	if h.seen >= h.n {
		return false
	}
	h.seen++
	more := h.next.push(v)
	return more && h.seen < h.n
}
func (h *head[T]) finish() { h.next.finish() }

// tail keeps the last n results in a ring and releases them on finish.
type tail[T any] struct {
	n     int
	ring  []T
	start int
	next  stage[T]
}

func (t *tail[T]) push(v T) bool {
	if len(t.ring) < t.n {
		t.ring = append(t.ring, v)
		return true
	}
	t.ring[t.start] = v
	t.start = (t.start + 1) % t.n
	return true
}

func (t *tail[T]) finish() {
	for i := range t.ring {
		if !t.next.push(t.ring[(t.start+i)%len(t.ring)]) {
			break
		}
	}
	t.next.finish()
}

// unique keeps the first result of each projected key.
type unique[T any] struct {
	fields  []string
	project Projector[T]
	seen    map[string]bool
	next    stage[T]
}

func (u *unique[T]) push(v T) bool {
	key := make([]any, len(u.fields))
	for i, f := range u.fields {
		key[i] = u.project(v, f)
	}
	data, err := json.Marshal(key)
	if err != nil {
		// Unencodable keys never collapse.
		return u.next.push(v)
	}
	if u.seen[string(data)] {
		return true
	}
	u.seen[string(data)] = true
	return u.next.push(v)
}
func (u *unique[T]) finish() { u.next.finish() }
