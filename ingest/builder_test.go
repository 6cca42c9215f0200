package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/ingest"
	"github.com/jakobtroidl/chunkedgraph/storage/memstore"
	"github.com/stretchr/testify/require"
)

func testMeta(t *testing.T) config.ChunkedGraphMeta {
	t.Helper()
	m, err := config.NewMeta("test-graph", 4, 2, [3]int64{64, 64, 64}, [3]int64{8, 8, 8}, 8, 26, 30)
	require.NoError(t, err)
	return m
}

// allocatedSupervoxelIDs returns the packed ids the builder must have
// assigned to chunk's n local ids 1..n: allocateChunk hands out a
// chunk's freshly incremented counter block in ascending local-id
// order starting at segment 1, so for locals numbered 1..n the segment
// assignment is the identity.
func allocatedSupervoxelIDs(lay chunkid.Layout, chunk chunkid.Coord, n int) []uint64 {
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		ids[i] = lay.Pack(1, chunk, uint64(i+1))
	}
	return ids
}

// TestBuildSingleChunkProducesOneRootChain reproduces spec.md §8
// scenario 1 in miniature: three supervoxels in one chunk, all joined
// by active in-chunk edges, must collapse to a single layer-2 node and
// then chain, as a sole child at every level, up to one root.
func TestBuildSingleChunkProducesOneRootChain(t *testing.T) {
	meta := testMeta(t)
	lay := meta.Layout()
	store := memstore.New()

	src := ingest.NewMemorySource()
	chunk := chunkid.Coord{X: 0, Y: 0, Z: 0}
	src.SetAgglomeration(chunk, 1, 42)
	src.SetAgglomeration(chunk, 2, 42)
	src.SetAgglomeration(chunk, 3, 42)
	src.AddInChunkEdge(chunk, 1, 2, 0.8, 10)
	src.AddInChunkEdge(chunk, 2, 3, 0.9, 12)

	b := ingest.NewBuilder(src, graphmodel.NewStore(store), meta)
	ctx := context.Background()
	require.NoError(t, b.Build(ctx))

	// Walk from a supervoxel id up to the root and check the chain.
	svIDs := allocatedSupervoxelIDs(lay, chunk, 3)
	root, err := graphmodel.NewStore(store).GetParents(ctx, svIDs[0])
	require.NoError(t, err)
	require.Len(t, root, 1) // exactly one layer-2 parent

	g := graphmodel.NewStore(store)
	current := root[0].ParentID
	for lay.Layer(current) < meta.LayerCount {
		next, err := g.GetParents(ctx, current)
		require.NoError(t, err)
		require.Lenf(t, next, 1, "node %d at layer %d should have exactly one parent", current, lay.Layer(current))
		current = next[0].ParentID
	}
	require.Equal(t, meta.LayerCount, lay.Layer(current))

	// Every supervoxel must reach the very same root.
	for _, sv := range svIDs {
		r, err := g.GetRoot(ctx, sv, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		require.Equal(t, current, r)
	}
}

// TestBuildBetweenChunkEdgeMergesAtLayerTwo verifies that two
// supervoxels in sibling layer-1 chunks sharing a layer-2 parent, and
// joined by an active between-chunk edge, land in the same layer-2
// node.
func TestBuildBetweenChunkEdgeMergesAtLayerTwo(t *testing.T) {
	meta := testMeta(t)
	store := memstore.New()

	src := ingest.NewMemorySource()
	chunkA := chunkid.Coord{X: 0, Y: 0, Z: 0}
	chunkB := chunkid.Coord{X: 1, Y: 0, Z: 0} // shares layer-2 parent (0,0,0) with chunkA under fanout 2
	src.SetAgglomeration(chunkA, 1, 7)
	src.SetAgglomeration(chunkB, 1, 7)
	src.AddBetweenChunkEdge(chunkA, 1, chunkB, 1, 0.5, 4)

	b := ingest.NewBuilder(src, graphmodel.NewStore(store), meta)
	ctx := context.Background()
	require.NoError(t, b.Build(ctx))

	lay := meta.Layout()
	g := graphmodel.NewStore(store)
	svA := allocatedSupervoxelIDs(lay, chunkA, 1)[0]
	svB := allocatedSupervoxelIDs(lay, chunkB, 1)[0]

	parentsA, err := g.GetParents(ctx, svA)
	require.NoError(t, err)
	parentsB, err := g.GetParents(ctx, svB)
	require.NoError(t, err)
	require.Len(t, parentsA, 1)
	require.Len(t, parentsB, 1)
	require.Equal(t, parentsA[0].ParentID, parentsB[0].ParentID)
}

// TestBuildInactiveInChunkEdgeStaysSeparate checks that an in-chunk
// edge whose endpoints disagree in the agglomeration map never merges
// their layer-2 components (spec.md §4.4 "mark active iff both
// endpoints map to the same component").
func TestBuildInactiveInChunkEdgeStaysSeparate(t *testing.T) {
	meta := testMeta(t)
	store := memstore.New()

	src := ingest.NewMemorySource()
	chunk := chunkid.Coord{X: 0, Y: 0, Z: 0}
	src.SetAgglomeration(chunk, 1, 1)
	src.SetAgglomeration(chunk, 2, 2)
	src.AddInChunkEdge(chunk, 1, 2, 0.3, 5)

	b := ingest.NewBuilder(src, graphmodel.NewStore(store), meta)
	ctx := context.Background()
	require.NoError(t, b.Build(ctx))

	lay := meta.Layout()
	g := graphmodel.NewStore(store)
	ids := allocatedSupervoxelIDs(lay, chunk, 2)

	p1, err := g.GetParents(ctx, ids[0])
	require.NoError(t, err)
	p2, err := g.GetParents(ctx, ids[1])
	require.NoError(t, err)
	require.NotEqual(t, p1[0].ParentID, p2[0].ParentID)
}
