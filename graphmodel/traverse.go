package graphmodel

import (
	"context"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
)

// GetRoot walks Parents from id until it reaches a node with no
// parent record (spec.md §4.1, §8: "walking Parents from n at t
// terminates at a root in <= layer_count steps"). maxSteps bounds the
// walk so a broken Parents cycle surfaces as an internal-invariant
// error instead of looping forever.
func (s *Store) GetRoot(ctx context.Context, id uint64, at time.Time, maxSteps int) (uint64, error) {
	cur := id
	for i := 0; i < maxSteps; i++ {
		parent, _, err := s.GetParentAt(ctx, cur, at)
		if err != nil {
			if chunkederr.OfKind(err, chunkederr.NotFound) {
				return cur, nil
			}
			return 0, err
		}
		cur = parent
	}
	return 0, chunkederr.Newf(chunkederr.InternalInvariant, "graphmodel: Parents walk from %d did not terminate within %d steps", id, maxSteps)
}

// GetParent returns the single current (or as-of) parent of id.
func (s *Store) GetParent(ctx context.Context, id uint64, at time.Time) (uint64, error) {
	parent, _, err := s.GetParentAt(ctx, id, at)
	return parent, err
}

// GetFutureRootIDs walks NewRoots forward from root and returns every
// currently-live terminal descendant (a root with no NewRoots entry of
// its own) — spec.md §4.1's get_future_root_ids time-travel query.
// root itself is never included: callers ask this precisely because
// root has since been superseded by one or more later edits.
func (s *Store) GetFutureRootIDs(ctx context.Context, root uint64) ([]uint64, error) {
	visited := map[uint64]bool{root: true}
	var out []uint64
	var walk func(id uint64) error
	walk = func(id uint64) error {
		news, err := s.GetNewRoots(ctx, id)
		if err != nil {
			return err
		}
		if len(news) == 0 {
			if id != root {
				out = append(out, id)
			}
			return nil
		}
		for _, n := range news {
			if visited[n] {
				continue
			}
			visited[n] = true
			if err := walk(n); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	sortUint64(out)
	return out, nil
}

// GetPastRootIDs walks FormerRoots backward from root and returns every
// ancestor root that already existed at timestamp at — spec.md §4.1's
// get_past_root_ids. A former root whose own creation timestamp is
// still after at did not yet exist then, so the walk instead descends
// into ITS FormerRoots looking for what existed in its place.
func (s *Store) GetPastRootIDs(ctx context.Context, root uint64, at time.Time) ([]uint64, error) {
	visited := map[uint64]bool{root: true}
	var out []uint64
	var walk func(id uint64) error
	walk = func(id uint64) error {
		formers, err := s.GetFormerRoots(ctx, id)
		if err != nil {
			return err
		}
		for _, f := range formers {
			if visited[f] {
				continue
			}
			visited[f] = true
			ts, err := s.GetNodeTimestamp(ctx, f)
			if err != nil {
				return err
			}
			if !ts.After(at) {
				out = append(out, f)
				continue
			}
			if err := walk(f); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	sortUint64(out)
	return out, nil
}

// DescendToLayer2 walks the hierarchy from root down to layer 2,
// pruning any subtree whose chunk bounding box does not intersect
// bbox (spec.md §4.3 step 1). Returns the surviving layer-2 node ids.
func (s *Store) DescendToLayer2(ctx context.Context, lay chunkid.Layout, root uint64, bbox chunkid.Box) ([]uint64, error) {
	var layer2 []uint64
	var walk func(id uint64) error
	walk = func(id uint64) error {
		chunkID := lay.ChunkID(id)
		if !lay.ChunkIntersects(chunkID, bbox) {
			return nil
		}
		if lay.Layer(id) == 2 {
			layer2 = append(layer2, id)
			return nil
		}
		children, err := s.GetChildren(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	sortUint64(layer2)
	return layer2, nil
}

// SupervoxelsUnder collects every layer-1 id reachable from the given
// layer-2 node ids (spec.md §4.3 step 2).
func (s *Store) SupervoxelsUnder(ctx context.Context, layer2 []uint64) ([]uint64, error) {
	var out []uint64
	for _, node := range layer2 {
		children, err := s.GetChildren(ctx, node)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	sortUint64(out)
	return out, nil
}

// EdgeCategory classifies a candidate edge against a supervoxel set
// (spec.md §4.3: in/out/cross).
type EdgeCategory int

const (
	EdgeIn EdgeCategory = iota
	EdgeOut
	EdgeCross
)

// CategorizeEdge classifies edge (u,v) against set S, where inS
// reports membership and crossChunkLayer computes the edge's
// cross-chunk layer (1 means same chunk). Uses the current-parent map
// implicitly via the caller-supplied predicates — spec.md §4.3 calls
// for this to use "the current-parent map, not the slower
// per-endpoint containment test"; callers build inS from a parent-map
// snapshot rather than re-querying storage per edge.
func CategorizeEdge(uInS, vInS bool, crossChunkLayer int) (EdgeCategory, bool) {
	switch {
	case uInS && vInS:
		return EdgeIn, true
	case uInS != vInS && crossChunkLayer <= 1:
		return EdgeOut, true
	case uInS != vInS:
		return EdgeCross, true
	default:
		return 0, false // neither endpoint in S
	}
}

// SubgraphEdge is one deduplicated in-category edge returned by
// GetSubgraph (spec.md §4.3).
type SubgraphEdge struct {
	U, V      uint64
	Affinity  float64
	Area      int32
	Category  EdgeCategory
}

// GetSubgraph implements spec.md §4.3's get_subgraph: descend to layer
// 2 under root pruning by bbox, collect supervoxels, read their
// adjacency, classify each candidate edge against the set with
// CategorizeEdge, keep only the in-category edges (both endpoints in
// the set) it names, and deduplicate by unordered pair.
func (s *Store) GetSubgraph(ctx context.Context, lay chunkid.Layout, root uint64, bbox chunkid.Box) ([]SubgraphEdge, error) {
	layer2, err := s.DescendToLayer2(ctx, lay, root, bbox)
	if err != nil {
		return nil, err
	}
	supervoxels, err := s.SupervoxelsUnder(ctx, layer2)
	if err != nil {
		return nil, err
	}
	inSet := make(map[uint64]bool, len(supervoxels))
	for _, sv := range supervoxels {
		inSet[sv] = true
	}

	seen := make(map[[2]uint64]bool)
	var edges []SubgraphEdge
	for _, sv := range supervoxels {
		adj, err := s.GetAdjacency(ctx, sv)
		if err != nil {
			return nil, err
		}
		for i, partner := range adj.Partners {
			pair := orderedPair(sv, partner)
			if seen[pair] {
				continue
			}
			cu, cv := lay.ChunkCoord(sv), lay.ChunkCoord(partner)
			crossChunkLayer := 1 // same chunk
			if cu != cv {
				crossChunkLayer = lay.CrossChunkLayer(cu, cv)
			}
			category, ok := CategorizeEdge(true, inSet[partner], crossChunkLayer)
			if !ok || category != EdgeIn {
				continue
			}
			seen[pair] = true
			edges = append(edges, SubgraphEdge{
				U:        pair[0],
				V:        pair[1],
				Affinity: adj.Affinities[i],
				Area:     adj.Areas[i],
				Category: category,
			})
		}
	}
	return edges, nil
}

func orderedPair(a, b uint64) [2]uint64 {
	if a <= b {
		return [2]uint64{a, b}
	}
	return [2]uint64{b, a}
}
