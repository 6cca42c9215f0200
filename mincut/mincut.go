package mincut

import (
	"math"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
)

// pseudoSource and pseudoSink are reserved sentinel ids for the
// super-terminals (spec.md §4.5.4.2). Real node ids are packed with a
// nonzero layer field in their high bits (chunkid.Pack), so the two
// top uint64 values are never produced by the identifier algebra.
const (
	pseudoSource uint64 = math.MaxUint64
	pseudoSink   uint64 = math.MaxUint64 - 1
)

// Result is the outcome of Mincut: either the local graph was already
// separated (Empty) or CutEdges lists the original edges to toggle
// inactive to separate sources from sinks.
type Result struct {
	Empty    bool
	CutEdges []Edge
}

// Mincut computes the minimum cut separating sources from sinks in the
// weighted undirected graph edges, following spec.md §4.5.4 exactly:
// collapse inseparable edges, wire super-terminals, prune unrelated
// components, run Dinic max-flow, expand the cut back to original
// edges, and self-check the result.
func Mincut(edges []Edge, sources, sinks []uint64) (Result, error) {
	if len(sources) == 0 || len(sinks) == 0 {
		return Result{}, chunkederr.New(chunkederr.InvalidInput, "mincut: sources and sinks must both be non-empty")
	}

	all := append(append([]uint64{}, sources...), sinks...)
	coll := collapseInseparable(edges, all...)

	sourceReprs := uniqueReprs(coll.dsu, sources)
	sinkReprs := uniqueReprs(coll.dsu, sinks)
	for r := range sourceReprs {
		if sinkReprs[r] {
			return Result{}, chunkederr.New(chunkederr.PreconditionViolated, "mincut: sources and sinks are inseparable (joined by a cross-chunk fuse)")
		}
	}

	// Weak connectivity over the contracted finite graph decides
	// whether there is anything to cut at all (spec.md §4.5.4.3).
	conn := NewDSU()
	for _, e := range coll.finite {
		conn.Union(e.U, e.V)
	}
	for r := range sourceReprs {
		conn.Find(r)
	}
	for r := range sinkReprs {
		conn.Find(r)
	}

	relevant := make(map[uint64]bool) // connectivity-component ids that hold >=1 source and >=1 sink
	sourceComponents := make(map[uint64]bool)
	for r := range sourceReprs {
		sourceComponents[conn.Find(r)] = true
	}
	for r := range sinkReprs {
		if sourceComponents[conn.Find(r)] {
			relevant[conn.Find(r)] = true
		}
	}
	if len(relevant) == 0 {
		return Result{Empty: true}, nil
	}

	cap_ := newCapMap()
	for _, e := range coll.finite {
		if !relevant[conn.Find(e.U)] {
			continue
		}
		cap_.addUndirected(e.U, e.V, e.Affinity)
	}
	for r := range sourceReprs {
		if relevant[conn.Find(r)] {
			cap_.addArc(pseudoSource, r, math.Inf(1))
		}
	}
	for r := range sinkReprs {
		if relevant[conn.Find(r)] {
			cap_.addArc(r, pseudoSink, math.Inf(1))
		}
	}

	dinicMaxFlow(cap_, pseudoSource, pseudoSink)
	sSide := reachableFromSource(cap_, pseudoSource)

	cutRepr := make(map[[2]uint64]bool)
	for _, e := range coll.finite {
		if !relevant[conn.Find(e.U)] {
			continue
		}
		if sSide[e.U] != sSide[e.V] {
			cutRepr[reprPair(e.U, e.V)] = true
		}
	}

	var cut []Edge
	for _, e := range edges {
		if IsInseparable(e.Affinity) {
			continue
		}
		ru, rv := coll.dsu.Find(e.U), coll.dsu.Find(e.V)
		if ru == rv {
			continue
		}
		if cutRepr[reprPair(ru, rv)] {
			cut = append(cut, e)
		}
	}

	if err := selfCheck(edges, cut, sources, sinks); err != nil {
		return Result{}, err
	}

	return Result{CutEdges: cut}, nil
}

func reprPair(a, b uint64) [2]uint64 {
	if a <= b {
		return [2]uint64{a, b}
	}
	return [2]uint64{b, a}
}

func uniqueReprs(dsu *DSU, ids []uint64) map[uint64]bool {
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		out[dsu.Find(id)] = true
	}
	return out
}

// selfCheck verifies that removing cut from the original active-edge
// graph leaves every source in a component disjoint from every sink
// (spec.md §4.5.4.6). A violation is an internal-invariant failure:
// the max-flow computation itself is broken, not a bad caller input.
func selfCheck(original, cut []Edge, sources, sinks []uint64) error {
	removed := make(map[[2]uint64]bool, len(cut))
	for _, e := range cut {
		removed[reprPair(e.U, e.V)] = true
	}

	remaining := NewDSU()
	for _, e := range original {
		if removed[reprPair(e.U, e.V)] {
			continue
		}
		remaining.Union(e.U, e.V)
	}

	sourceComp := make(map[uint64]bool, len(sources))
	for _, s := range sources {
		sourceComp[remaining.Find(s)] = true
	}
	for _, s := range sinks {
		if sourceComp[remaining.Find(s)] {
			return chunkederr.New(chunkederr.InternalInvariant, "mincut: self-check failed — a source and a sink remain connected after the computed cut")
		}
	}
	return nil
}
