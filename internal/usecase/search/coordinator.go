package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/seqdex/internal/domain/eql"
	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/seqdex/internal/domain/search/mode"
	"github.com/kailas-cloud/seqdex/internal/domain/search/pipe"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
	"github.com/kailas-cloud/seqdex/internal/domain/sequence"
	"github.com/kailas-cloud/seqdex/internal/metrics"
)

// matcher is the common surface of sequence.Matcher and sequence.JoinMatcher.
type matcher interface {
	Run(ctx context.Context, streams []sequence.Stream, until sequence.Stream,
		from cursor.Resume, emit sequence.Emit) (sequence.Outcome, error)
}

func (s *Service) streams(p *plan) []*pagedStream {
	out := make([]*pagedStream, len(p.stages))
	for i, st := range p.stages {
		role := "stage"
		switch {
		case st.Until:
			role = "until"
		case p.validated.Mode == mode.Event:
			role = "event"
		}
		ps := &pagedStream{
			repo:    s.repo,
			indices: p.indices,
			query:   st.Query,
			tsField: p.validated.Settings.TimestampField,
			keys:    st.Keys,
			stage:   st.Stage,
			role:    role,
			size:    p.size,
		}
		if i < len(p.from.Positions) {
			ps.after = p.from.Positions[i]
		}
		out[i] = ps
	}
	return out
}

// runEvents streams the single stage through the pipes.
func (s *Service) runEvents(ctx context.Context, p *plan) (*result.Response, error) {
	streams := s.streams(p)
	st := streams[0]
	chain := pipe.New(p.validated.Pipes, p.size, projectHit)

	var last cursor.Key
	for {
		hit, err := st.Peek(ctx)
		if err != nil {
			return nil, stageFailure(ctx, err)
		}
		if hit == nil {
			break
		}
		st.Advance()
		last = hit.Sort
		if !chain.Push(hit) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, stageFailure(ctx, err)
		}
	}
	chain.Finish()

	resp := &result.Response{}
	if n, ok := chain.Count(); ok {
		resp.Hits.Total = &result.Total{Value: n, Relation: "eq"}
	} else {
		resp.Hits.Events = events(chain.Results())
	}
	if !st.drained() && !last.IsZero() {
		resp.SearchAfter = last.Values()
	}
	return resp, nil
}

// runCorrelated feeds the stage streams through the sequence or join
// matcher and the matches through the pipes.
func (s *Service) runCorrelated(ctx context.Context, p *plan) (*result.Response, error) {
	v := p.validated
	m, err := newMatcher(v)
	if err != nil {
		return nil, err
	}

	all := s.streams(p)
	if err := prime(ctx, all); err != nil {
		return nil, stageFailure(ctx, err)
	}

	stages := make([]sequence.Stream, len(v.Stages))
	for i := range stages {
		stages[i] = all[i]
	}
	var until sequence.Stream
	if v.Until != nil {
		until = all[len(v.Stages)]
	}

	chain := pipe.New(v.Pipes, p.size, projectMatch)
	outcome, err := m.Run(ctx, stages, until, p.from, chain.Push)
	if err != nil {
		return nil, stageFailure(ctx, err)
	}
	chain.Finish()
	record(v.Mode, outcome.Stats)

	resp := &result.Response{}
	if n, ok := chain.Count(); ok {
		resp.Hits.Total = &result.Total{Value: n, Relation: "eq"}
	} else {
		resp.Hits.Sequences = sequences(chain.Results())
	}
	if !outcome.Exhausted {
		token, err := cursor.Encode(outcome.Resume)
		if err != nil {
			return nil, fmt.Errorf("encode search_after: %w", err)
		}
		resp.SearchAfter = []any{token}
	}
	return resp, nil
}

func newMatcher(v *eql.Validated) (matcher, error) {
	if v.Mode == mode.Join {
		return sequence.NewJoinMatcher(len(v.Stages))
	}
	return sequence.NewMatcher(len(v.Stages), v.MaxSpan)
}

func record(m mode.Mode, st sequence.Stats) {
	metrics.SequencesMatchedTotal.WithLabelValues(string(m)).Add(float64(st.Matched))
	metrics.CandidatesDiscardedTotal.WithLabelValues("replaced").Add(float64(st.Replaced))
	metrics.CandidatesDiscardedTotal.WithLabelValues("maxspan").Add(float64(st.DiscardedMaxSpan))
	metrics.CandidatesDiscardedTotal.WithLabelValues("until").Add(float64(st.DiscardedUntil))
}
