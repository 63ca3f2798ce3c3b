package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
)

// Emit receives each completed match in discovery order. Returning false
// stops the run.
type Emit func(Match) bool

// candidate is a partially matched sequence for one partition.
type candidate struct {
	keys []any
	hits []*result.Hit
	born int
}

func (c *candidate) first() int64 { return c.hits[0].Timestamp }
func (c *candidate) last() int64  { return c.hits[len(c.hits)-1].Timestamp }

// Matcher runs the sequence state machine. Per partition it keeps at most
// one open candidate per slot; slot i holds a candidate that matched stages
// 0..i and awaits stage i+1.
type Matcher struct {
	stages  int
	maxSpan int64 // millis, 0 when unbounded
	open    map[string][]*candidate
	stats   Stats
}

// NewMatcher creates a matcher for a sequence of stages (at least 2).
// A zero maxSpan means unbounded.
func NewMatcher(stages int, maxSpan time.Duration) (*Matcher, error) {
	if stages < 2 {
		return nil, fmt.Errorf("sequence requires at least 2 stages, got %d", stages)
	}
	if maxSpan < 0 {
		return nil, fmt.Errorf("maxspan must not be negative")
	}
	return &Matcher{
		stages:  stages,
		maxSpan: maxSpan.Milliseconds(),
		open:    make(map[string][]*candidate),
	}, nil
}

// Run merges streams (one per stage) and the optional until stream by
// timestamp and feeds every hit through the state machine. from is where a
// previous page left off and is zero for a first page.
//
// On equal timestamps later stages go first, so a hit that qualifies for
// several stages extends an open candidate before it starts a new one.
// The until stream goes last.
func (m *Matcher) Run(ctx context.Context, streams []Stream, until Stream, from cursor.Resume, emit Emit) (Outcome, error) {
	if len(streams) != m.stages {
		return Outcome{}, fmt.Errorf("matcher has %d stages, got %d streams", m.stages, len(streams))
	}
	all := streams
	rank := make([]int, len(streams), len(streams)+1)
	for i := range rank {
		rank[i] = m.stages - 1 - i
	}
	if until != nil {
		all = append(append(make([]Stream, 0, len(streams)+1), streams...), until)
		rank = append(rank, m.stages)
	}

	mg, err := newMerger(ctx, all, rank, from)
	if err != nil {
		return Outcome{}, err
	}
	r := newReplay()
	for {
		hit, stream, err := mg.next(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if hit == nil {
			break
		}
		if stream == m.stages {
			m.terminate(hit)
			continue
		}
		match, ok := m.step(mg, r, stream, hit)
		if !ok || mg.replayed(stream, hit) {
			continue
		}
		m.stats.Matched++
		mg.mark(stream, hit)
		if !emit(match) {
			break
		}
	}
	return mg.outcome(r, m.births(), m.stats), nil
}

func (m *Matcher) slots(partition string) []*candidate {
	s, ok := m.open[partition]
	if !ok {
		s = make([]*candidate, m.stages-1)
		m.open[partition] = s
	}
	return s
}

// step applies a stage hit and returns the match it completes, if any.
func (m *Matcher) step(mg *merger, r *replay, stage int, hit *result.Hit) (Match, bool) {
	if stage == 0 {
		s := m.slots(hit.Partition)
		if s[0] != nil {
			m.stats.Replaced++
		}
		s[0] = &candidate{keys: hit.Keys, hits: []*result.Hit{hit}, born: r.begin(mg, stage)}
		return Match{}, false
	}

	s, ok := m.open[hit.Partition]
	if !ok {
		return Match{}, false
	}
	c := s[stage-1]
	if c == nil || hit.Timestamp <= c.last() {
		return Match{}, false
	}
	s[stage-1] = nil
	if m.maxSpan > 0 && hit.Timestamp-c.first() > m.maxSpan {
		m.stats.DiscardedMaxSpan++
		return Match{}, false
	}

	hits := make([]*result.Hit, len(c.hits), len(c.hits)+1)
	copy(hits, c.hits)
	next := &candidate{keys: c.keys, hits: append(hits, hit), born: c.born}
	if stage == m.stages-1 {
		return Match{Keys: next.keys, Hits: next.hits}, true
	}
	if old := s[stage]; old != nil {
		m.stats.Replaced++
		r.forbid(c.born, old.born)
	}
	s[stage] = next
	return Match{}, false
}

// terminate discards every open candidate of the until hit's partition.
func (m *Matcher) terminate(hit *result.Hit) {
	s, ok := m.open[hit.Partition]
	if !ok {
		return
	}
	for _, c := range s {
		if c != nil {
			m.stats.DiscardedUntil++
		}
	}
	delete(m.open, hit.Partition)
}

// Open returns the number of open candidates across all partitions.
func (m *Matcher) Open() int {
	n := 0
	for _, s := range m.open {
		for _, c := range s {
			if c != nil {
				n++
			}
		}
	}
	return n
}

// births lists the opening merge sequence of every open candidate.
func (m *Matcher) births() []int {
	var out []int
	for _, s := range m.open {
		for _, c := range s {
			if c != nil {
				out = append(out, c.born)
			}
		}
	}
	return out
}
