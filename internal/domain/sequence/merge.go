// Package sequence correlates per-stage hit streams into sequence and join
// matches.
package sequence

import (
	"container/heap"
	"context"

	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
)

// Stream yields the hits of one stage in ascending (timestamp, tiebreaker)
// order. Peek returns nil at the end of the stream and may block to fetch
// the next page; Advance consumes the peeked hit.
type Stream interface {
	Peek(ctx context.Context) (*result.Hit, error)
	Advance()
}

// Match is a completed sequence or join: one hit per stage.
type Match struct {
	Keys []any
	Hits []*result.Hit
}

// Span returns the time between the first and the last hit.
func (m Match) Span() int64 {
	if len(m.Hits) == 0 {
		return 0
	}
	return m.Hits[len(m.Hits)-1].Timestamp - m.Hits[0].Timestamp
}

// Outcome describes how far a run consumed its streams.
type Outcome struct {
	// Resume is where the next page continues. It is only meaningful when
	// the run stopped early.
	Resume cursor.Resume
	// Exhausted reports that every stream ran to its end.
	Exhausted bool
	Stats     Stats
}

// Stats counts what happened to candidates during a run.
type Stats struct {
	Matched          int
	Replaced         int
	DiscardedMaxSpan int
	DiscardedUntil   int
}

type entry struct {
	hit    *result.Hit
	stream int
	rank   int
}

// mergeHeap orders stream heads by timestamp, then by stream rank. Each
// stream holds at most one entry, so hits of one stream keep backend order.
type mergeHeap []entry

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].hit.Timestamp != h[j].hit.Timestamp {
		return h[i].hit.Timestamp < h[j].hit.Timestamp
	}
	return h[i].rank < h[j].rank
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// merger is a k-way merge over streams. rank breaks timestamp ties between
// streams, lowest first.
type merger struct {
	streams   []Stream
	rank      []int
	heads     mergeHeap
	positions []cursor.Key

	// seq numbers popped hits; prev is the position the last popped
	// stream had before it.
	seq  int
	prev cursor.Key

	// from is where this run resumes; last locates the final hit of the
	// latest match returned by this run.
	from       cursor.Resume
	emitted    bool
	lastStream int
	last       cursor.Key
}

func newMerger(ctx context.Context, streams []Stream, rank []int, from cursor.Resume) (*merger, error) {
	m := &merger{
		streams:   streams,
		rank:      rank,
		positions: make([]cursor.Key, len(streams)),
		seq:       -1,
		from:      from,
	}
	copy(m.positions, from.Positions)
	for i := range streams {
		if err := m.fill(ctx, i); err != nil {
			return nil, err
		}
	}
	heap.Init(&m.heads)
	return m, nil
}

func (m *merger) fill(ctx context.Context, i int) error {
	hit, err := m.streams[i].Peek(ctx)
	if err != nil {
		return err
	}
	if hit != nil {
		heap.Push(&m.heads, entry{hit: hit, stream: i, rank: m.rank[i]})
	}
	return nil
}

// next pops the globally smallest hit, or nil when all streams are done.
func (m *merger) next(ctx context.Context) (*result.Hit, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if m.heads.Len() == 0 {
		return nil, 0, nil
	}
	e := heap.Pop(&m.heads).(entry)
	m.streams[e.stream].Advance()
	m.seq++
	m.prev = m.positions[e.stream]
	m.positions[e.stream] = e.hit.Sort
	if err := m.fill(ctx, e.stream); err != nil {
		return nil, 0, err
	}
	return e.hit, e.stream, nil
}

func (m *merger) done() bool { return m.heads.Len() == 0 }

// snapshot returns the positions as they were before the last popped hit,
// so a run resumed from them starts with that hit.
func (m *merger) snapshot(stream int) []cursor.Key {
	out := make([]cursor.Key, len(m.positions))
	copy(out, m.positions)
	out[stream] = m.prev
	return out
}

// before reports whether hit a of stream sa comes before hit b of stream sb
// in merge order.
func (m *merger) before(sa int, a cursor.Key, sb int, b cursor.Key) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if m.rank[sa] != m.rank[sb] {
		return m.rank[sa] < m.rank[sb]
	}
	return a.Tiebreaker < b.Tiebreaker
}

// replayed reports whether a match completed by hit was already returned
// by a previous page.
func (m *merger) replayed(stream int, hit *result.Hit) bool {
	return !m.from.Emitted.IsZero() && !m.before(m.from.Stream, m.from.Emitted, stream, hit.Sort)
}

// mark remembers hit as the final hit of the latest returned match.
func (m *merger) mark(stream int, hit *result.Hit) {
	m.emitted = true
	m.lastStream, m.last = stream, hit.Sort
}

// outcome builds the result of a run; open lists the chains still in
// progress.
func (m *merger) outcome(r *replay, open []int, stats Stats) Outcome {
	res := cursor.Resume{Positions: r.resume(m.positions, open)}
	if m.emitted {
		res.Stream, res.Emitted = m.lastStream, m.last
	} else {
		res.Stream, res.Emitted = m.from.Stream, m.from.Emitted
	}
	return Outcome{Resume: res, Exhausted: m.done(), Stats: stats}
}
