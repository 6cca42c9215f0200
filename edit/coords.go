package edit

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
)

// Point3D is a point in nanometer physical space, the coordinate unit
// every public edit/query operation accepts (spec.md §4.1).
type Point3D struct {
	X, Y, Z float64
}

// SegmentationIndex resolves a physical point to the supervoxel id(s)
// whose segmentation volume contains it within maxDistNM. The
// chunked-graph store holds no voxel data of its own (spec.md Non-goal:
// "no full-text or spatial indexing beyond chunk coordinates"), so this
// is an external dependency every Engine must be given — production
// callers back it with the segmentation volume's own index; tests use
// FakeSegmentationIndex.
type SegmentationIndex interface {
	SupervoxelsNear(ctx context.Context, p Point3D, maxDistNM float64) ([]uint64, error)
}

// resolutionThresholdsNM are the increasing search radii spec.md §4.5.2
// step 1 specifies for resolving an operator-supplied point to a
// supervoxel: try tight first, widen only on a clean miss.
var resolutionThresholdsNM = []float64{75, 150, 250, 500}

// GetAtomicIDsFromCoords implements spec.md §4.1's get_atomic_ids_from_coords:
// map each point to the supervoxel under parentID, widening the search
// radius through resolutionThresholdsNM on a miss. A point resolving to
// more than one candidate at a given radius fails immediately as
// ambiguous rather than widening further.
func (e *Engine) GetAtomicIDsFromCoords(ctx context.Context, coords []Point3D, parentID uint64, at time.Time) ([]uint64, error) {
	out := make([]uint64, len(coords))
	for i, c := range coords {
		id, err := e.resolveCoord(ctx, c, parentID, at)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// resolveCoord resolves a single point. parentID == 0 means "no
// ancestry constraint" — used internally by merge/split, which resolve
// two independent coordinates that by definition do not yet share an
// ancestor.
func (e *Engine) resolveCoord(ctx context.Context, p Point3D, parentID uint64, at time.Time) (uint64, error) {
	for _, maxDist := range resolutionThresholdsNM {
		candidates, err := e.Index.SupervoxelsNear(ctx, p, maxDist)
		if err != nil {
			return 0, chunkederr.Wrap(chunkederr.StorageTransient, "edit: segmentation index lookup", err)
		}
		if len(candidates) == 0 {
			continue
		}
		if len(candidates) > 1 {
			return 0, chunkederr.Newf(chunkederr.InvalidInput, "edit: coordinate resolves to %d ambiguous supervoxels within %.0fnm", len(candidates), maxDist)
		}
		sv := candidates[0]
		if parentID != 0 {
			under, err := e.isUnder(ctx, sv, parentID, at)
			if err != nil {
				return 0, err
			}
			if !under {
				return 0, chunkederr.Newf(chunkederr.InvalidInput, "edit: resolved supervoxel %d is not a descendant of %d", sv, parentID)
			}
		}
		return sv, nil
	}
	return 0, chunkederr.New(chunkederr.InvalidInput, "edit: coordinate did not resolve to any supervoxel within 500nm")
}

// isUnder walks Parents from id looking for ancestor, bounded by
// LayerCount steps (the longest possible chain).
func (e *Engine) isUnder(ctx context.Context, id, ancestor uint64, at time.Time) (bool, error) {
	cur := id
	for i := 0; i < e.Meta.LayerCount; i++ {
		if cur == ancestor {
			return true, nil
		}
		parent, err := e.Store.GetParent(ctx, cur, at)
		if err != nil {
			if chunkederr.OfKind(err, chunkederr.NotFound) {
				return cur == ancestor, nil
			}
			return false, err
		}
		cur = parent
	}
	return cur == ancestor, nil
}

// pointToChunkCoord converts a physical point to the layer-1 chunk
// coordinate containing it, via the graph's voxel resolution.
func (e *Engine) pointToChunkCoord(p Point3D) chunkid.Coord {
	res := e.Meta.VoxelResolutionNM
	voxel := [3]int64{
		int64(p.X / res[0]),
		int64(p.Y / res[1]),
		int64(p.Z / res[2]),
	}
	return e.Lay.VoxelToChunkCoord(voxel)
}

// FakeSegmentationIndex is an in-memory SegmentationIndex for tests,
// mirroring ingest.MemorySource's role as a hand-built stand-in for a
// production data source (spec.md Non-goals keep the real segmentation
// volume out of scope for this module).
type FakeSegmentationIndex struct {
	points map[uint64]Point3D
}

// NewFakeSegmentationIndex returns an empty index.
func NewFakeSegmentationIndex() *FakeSegmentationIndex {
	return &FakeSegmentationIndex{points: make(map[uint64]Point3D)}
}

// Place records where supervoxel sv is located.
func (f *FakeSegmentationIndex) Place(sv uint64, p Point3D) {
	f.points[sv] = p
}

// SupervoxelsNear returns every placed supervoxel within maxDistNM of
// p, sorted for deterministic test assertions.
func (f *FakeSegmentationIndex) SupervoxelsNear(_ context.Context, p Point3D, maxDistNM float64) ([]uint64, error) {
	var out []uint64
	for sv, q := range f.points {
		dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dist <= maxDistNM {
			out = append(out, sv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var _ SegmentationIndex = (*FakeSegmentationIndex)(nil)
