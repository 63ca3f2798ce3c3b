package sequence

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
)

// JoinMatcher correlates stages by join key without ordering constraints.
// Per partition it keeps the first hit of each stage; once every stage has
// a hit the join is emitted and the partition starts over. An event never
// fills two stages of the same join.
type JoinMatcher struct {
	stages int
	open   map[string]*joinChain
	stats  Stats
}

// joinChain is the pending join of one partition. touched is the merge
// sequence of the last hit the chain saw, kept or not.
type joinChain struct {
	hits    []*result.Hit
	born    int
	touched int
}

// NewJoinMatcher creates a join matcher for at least 2 stages.
func NewJoinMatcher(stages int) (*JoinMatcher, error) {
	if stages < 2 {
		return nil, fmt.Errorf("join requires at least 2 stages, got %d", stages)
	}
	return &JoinMatcher{stages: stages, open: make(map[string]*joinChain)}, nil
}

// Run merges the streams by timestamp and emits completed joins. Timestamp
// ties go to the earlier stage. The until stream, when set, resets the
// partitions it hits.
func (j *JoinMatcher) Run(ctx context.Context, streams []Stream, until Stream, from cursor.Resume, emit Emit) (Outcome, error) {
	if len(streams) != j.stages {
		return Outcome{}, fmt.Errorf("join matcher has %d stages, got %d streams", j.stages, len(streams))
	}
	all := streams
	rank := make([]int, len(streams), len(streams)+1)
	for i := range rank {
		rank[i] = i
	}
	if until != nil {
		all = append(append(make([]Stream, 0, len(streams)+1), streams...), until)
		rank = append(rank, j.stages)
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
		if stream == j.stages {
			if c, ok := j.open[hit.Partition]; ok {
				j.stats.DiscardedUntil++
				r.forbid(c.born, c.touched)
				delete(j.open, hit.Partition)
			}
			continue
		}

		c, ok := j.open[hit.Partition]
		if !ok {
			c = &joinChain{hits: make([]*result.Hit, j.stages), born: r.begin(mg, stream)}
			j.open[hit.Partition] = c
		}
		c.touched = mg.seq
		if c.hits[stream] != nil || holds(c.hits, hit) {
			continue
		}
		c.hits[stream] = hit
		if !complete(c.hits) {
			continue
		}
		delete(j.open, hit.Partition)
		r.forbid(c.born, c.touched)
		if mg.replayed(stream, hit) {
			continue
		}
		j.stats.Matched++
		mg.mark(stream, hit)
		if !emit(Match{Keys: hit.Keys, Hits: c.hits}) {
			break
		}
	}

	births := make([]int, 0, len(j.open))
	for _, c := range j.open {
		births = append(births, c.born)
	}
	return mg.outcome(r, births, j.stats), nil
}

func complete(slots []*result.Hit) bool {
	for _, h := range slots {
		if h == nil {
			return false
		}
	}
	return true
}

// holds reports whether hit's event already fills a slot.
func holds(slots []*result.Hit, hit *result.Hit) bool {
	for _, h := range slots {
		if h != nil && h.Index == hit.Index && h.ID == hit.ID {
			return true
		}
	}
	return false
}
