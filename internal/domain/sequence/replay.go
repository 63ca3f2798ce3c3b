package sequence

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/seqdex/internal/domain/search/cursor"
)

// replay records what a run needs to choose where the next page restarts.
//
// A chain is the life of one candidate, from the hit that opened it to its
// completion or discard. Restarting at the first hit of a chain with an
// empty state reproduces this run's state at its end when no chain opened
// earlier is still open, and no conflict spans the restart point.
type replay struct {
	starts    map[int][]cursor.Key
	conflicts []conflict
}

// conflict rules out restarting after the chain opened at from and at or
// before merge sequence to: such a restart would miss the chain and see
// different state at to.
type conflict struct{ from, to int }

func newReplay() *replay {
	return &replay{starts: make(map[int][]cursor.Key)}
}

// begin records that the hit just popped from stream opens a chain and
// returns the chain's id, its merge sequence.
func (r *replay) begin(m *merger, stream int) int {
	r.starts[m.seq] = m.snapshot(stream)
	return m.seq
}

func (r *replay) forbid(from, to int) {
	if from < to {
		r.conflicts = append(r.conflicts, conflict{from: from, to: to})
	}
}

// resume returns the positions the next page starts from: the opening hit
// of the earliest open chain, moved back past every conflict covering it.
// With nothing open the next page continues from current.
func (r *replay) resume(current []cursor.Key, open []int) []cursor.Key {
	if len(open) == 0 {
		return slices.Clone(current)
	}
	at := slices.Min(open)

	// Descending by to: once at drops below a conflict's to, no later
	// conflict can move it back above.
	cs := slices.Clone(r.conflicts)
	slices.SortFunc(cs, func(a, b conflict) int { return cmp.Compare(b.to, a.to) })
	for _, c := range cs {
		if c.from < at && at <= c.to {
			at = c.from
		}
	}
	return slices.Clone(r.starts[at])
}
