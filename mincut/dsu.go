// Package mincut implements the interactive split algorithm's local
// mincut (spec.md §4.5.4): inseparable-edge collapse via union-find,
// super-terminal wiring, component pruning, Dinic max-flow, cut
// expansion, and the mandatory self-check.
package mincut

import "math"

// DSU is a union-find over uint64 vertex ids with path compression and
// union-by-minimum-id — the representative of any component is always
// its smallest member, matching spec.md §4.5.4.1 "represent each
// component by the minimum id in it." Grounded on the find/union
// closures in prim_kruskal's Kruskal, generalized from string keys to
// uint64 and from a local closure to a reusable type.
type DSU struct {
	parent map[uint64]uint64
}

// NewDSU returns an empty union-find. Vertices are added implicitly on
// first Find/Union.
func NewDSU() *DSU {
	return &DSU{parent: make(map[uint64]uint64)}
}

// Find returns x's representative, path-compressing along the way.
// An unseen x is its own representative.
func (d *DSU) Find(x uint64) uint64 {
	p, ok := d.parent[x]
	if !ok {
		d.parent[x] = x
		return x
	}
	if p == x {
		return x
	}
	root := d.Find(p)
	d.parent[x] = root
	return root
}

// Union merges the components of a and b, keeping the smaller id as
// the new representative.
func (d *DSU) Union(a, b uint64) {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		d.parent[rb] = ra
	} else {
		d.parent[ra] = rb
	}
}

// IsInseparable reports whether an edge's affinity marks it as a
// cross-chunk fuse that must never be cut (spec.md §3, §4.5.4.1).
func IsInseparable(affinity float64) bool {
	return math.IsInf(affinity, 1)
}
