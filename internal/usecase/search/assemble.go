package search

import (
	"github.com/kailas-cloud/seqdex/internal/domain/eql"
	"github.com/kailas-cloud/seqdex/internal/domain/event"
	"github.com/kailas-cloud/seqdex/internal/domain/search/pipe"
	"github.com/kailas-cloud/seqdex/internal/domain/search/result"
	"github.com/kailas-cloud/seqdex/internal/domain/sequence"
)

var (
	_ pipe.Projector[*result.Hit]    = projectHit
	_ pipe.Projector[sequence.Match] = projectMatch
)

func projectHit(h *result.Hit, field string) any {
	v, _ := event.Lookup(h.Source, field)
	return v
}

// projectMatch reads field from the first event of the match that has it.
func projectMatch(m sequence.Match, field string) any {
	for _, h := range m.Hits {
		if v, ok := event.Lookup(h.Source, field); ok {
			return v
		}
	}
	return nil
}

func events(hits []*result.Hit) []result.Event {
	out := make([]result.Event, len(hits))
	for i, h := range hits {
		e := h.Event()
		e.Sort = h.Sort.Values()
		out[i] = e
	}
	return out
}

func sequences(matches []sequence.Match) []result.Sequence {
	out := make([]result.Sequence, len(matches))
	for i, m := range matches {
		evs := make([]result.Event, len(m.Hits))
		for j, h := range m.Hits {
			evs[j] = h.Event()
		}
		out[i] = result.Sequence{JoinKeys: m.Keys, Events: evs}
	}
	return out
}

// emptyResponse answers a request whose index patterns matched nothing.
func emptyResponse(pipes []eql.Pipe) *result.Response {
	resp := &result.Response{}
	if n := len(pipes); n > 0 {
		if _, ok := pipes[n-1].(*eql.CountPipe); ok {
			resp.Hits.Total = &result.Total{Value: 0, Relation: "eq"}
		}
	}
	return resp
}
