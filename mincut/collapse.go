package mincut

// Edge is one weighted undirected edge in the local subgraph handed to
// Mincut — a supervoxel pair with its affinity (spec.md §3, §4.5.4).
type Edge struct {
	U, V     uint64
	Affinity float64
}

// collapsed holds the result of contracting every inseparable
// (infinite-affinity) edge: the union-find over original vertices, and
// the finite-weight edge list with endpoints rewritten to their
// component representative (spec.md §4.5.4.1). Expansion back to
// original edges (§4.5.4.5) re-consults dsu directly against the
// original edge list rather than keeping a separate membership index.
type collapsed struct {
	dsu    *DSU
	finite []Edge // endpoints are representatives; self-loops dropped
}

// collapseInseparable unions every pair joined by an infinite-affinity
// edge, then rewrites the remaining finite edges onto representatives.
// extraVertices registers isolated terminals (sources/sinks with no
// incident edge of their own) so dsu.Find still reports a stable
// representative for them.
func collapseInseparable(edges []Edge, extraVertices ...uint64) collapsed {
	dsu := NewDSU()
	for _, e := range edges {
		if IsInseparable(e.Affinity) {
			dsu.Union(e.U, e.V)
		}
	}
	for _, v := range extraVertices {
		dsu.Find(v)
	}

	var finite []Edge
	for _, e := range edges {
		if IsInseparable(e.Affinity) {
			continue
		}
		ru, rv := dsu.Find(e.U), dsu.Find(e.V)
		if ru == rv {
			continue // now an intra-component edge, not crossable
		}
		finite = append(finite, Edge{U: ru, V: rv, Affinity: e.Affinity})
	}

	return collapsed{dsu: dsu, finite: finite}
}
