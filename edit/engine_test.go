package edit_test

import (
	"context"
	"testing"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/jakobtroidl/chunkedgraph/edit"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/ingest"
	"github.com/jakobtroidl/chunkedgraph/storage/memstore"
	"github.com/stretchr/testify/require"
)

func testMeta(t *testing.T) config.ChunkedGraphMeta {
	t.Helper()
	m, err := config.NewMeta("test-graph", 4, 2, [3]int64{64, 64, 64}, [3]int64{8, 8, 8}, 8, 26, 30, config.WithVoxelResolution(1, 1, 1))
	require.NoError(t, err)
	return m
}

// allocatedSupervoxelIDs mirrors ingest_test's helper of the same name:
// the builder hands out a chunk's freshly incremented counter block in
// ascending local-id order starting at segment 1.
func allocatedSupervoxelIDs(lay chunkid.Layout, chunk chunkid.Coord, n int) []uint64 {
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		ids[i] = lay.Pack(1, chunk, uint64(i+1))
	}
	return ids
}

// TestMergeThenSplitRestoresPartition reproduces spec.md §8 scenarios
// 1-3: a toy graph with two components {100,101,102} and {200,201},
// merge(102,200) joins them under one new root, and split({100},{201})
// finds (102,200) as the unique min cut and restores the original
// two-component partition.
func TestMergeThenSplitRestoresPartition(t *testing.T) {
	meta := testMeta(t)
	lay := meta.Layout()
	store := graphmodel.NewStore(memstore.New())

	src := ingest.NewMemorySource()
	chunk := chunkid.Coord{X: 0, Y: 0, Z: 0}
	src.SetAgglomeration(chunk, 1, 1)
	src.SetAgglomeration(chunk, 2, 1)
	src.SetAgglomeration(chunk, 3, 1)
	src.SetAgglomeration(chunk, 4, 2)
	src.SetAgglomeration(chunk, 5, 2)
	src.AddInChunkEdge(chunk, 1, 2, 1.0, 10)
	src.AddInChunkEdge(chunk, 2, 3, 0.5, 10)
	src.AddInChunkEdge(chunk, 4, 5, 0.9, 10)

	ctx := context.Background()
	b := ingest.NewBuilder(src, store, meta)
	require.NoError(t, b.Build(ctx))

	ids := allocatedSupervoxelIDs(lay, chunk, 5)
	sv100, sv101, sv102, sv200, sv201 := ids[0], ids[1], ids[2], ids[3], ids[4]

	rootBefore102, err := store.GetRoot(ctx, sv102, time.Time{}, meta.LayerCount)
	require.NoError(t, err)
	rootBefore200, err := store.GetRoot(ctx, sv200, time.Time{}, meta.LayerCount)
	require.NoError(t, err)
	require.NotEqual(t, rootBefore102, rootBefore200)

	index := edit.NewFakeSegmentationIndex()
	index.Place(sv100, edit.Point3D{X: 0, Y: 0, Z: 0})
	index.Place(sv101, edit.Point3D{X: 100, Y: 0, Z: 0})
	index.Place(sv102, edit.Point3D{X: 200, Y: 0, Z: 0})
	index.Place(sv200, edit.Point3D{X: 300, Y: 0, Z: 0})
	index.Place(sv201, edit.Point3D{X: 400, Y: 0, Z: 0})

	eng := edit.NewEngine(store, meta, index)

	newRoot, err := eng.AddEdge(ctx, edit.Point3D{X: 200, Y: 0, Z: 0}, edit.Point3D{X: 300, Y: 0, Z: 0}, "tester", 0.1, 8)
	require.NoError(t, err)

	formerRoots, err := store.GetFormerRoots(ctx, newRoot)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{rootBefore102, rootBefore200}, formerRoots)

	newRootsOf102, err := store.GetNewRoots(ctx, rootBefore102)
	require.NoError(t, err)
	require.Equal(t, []uint64{newRoot}, newRootsOf102)

	rootAfterMerge100, err := eng.GetRoot(ctx, sv100, time.Time{})
	require.NoError(t, err)
	require.Equal(t, newRoot, rootAfterMerge100)
	rootAfterMerge201, err := eng.GetRoot(ctx, sv201, time.Time{})
	require.NoError(t, err)
	require.Equal(t, newRoot, rootAfterMerge201)

	newRoots, err := eng.RemoveEdges(ctx, []edit.Point3D{{X: 0, Y: 0, Z: 0}}, []edit.Point3D{{X: 400, Y: 0, Z: 0}}, "tester")
	require.NoError(t, err)
	require.Len(t, newRoots, 2)

	rootAfterSplit100, err := eng.GetRoot(ctx, sv100, time.Time{})
	require.NoError(t, err)
	rootAfterSplit102, err := eng.GetRoot(ctx, sv102, time.Time{})
	require.NoError(t, err)
	rootAfterSplit200, err := eng.GetRoot(ctx, sv200, time.Time{})
	require.NoError(t, err)
	rootAfterSplit201, err := eng.GetRoot(ctx, sv201, time.Time{})
	require.NoError(t, err)

	require.Equal(t, rootAfterSplit100, rootAfterSplit102)
	require.Equal(t, rootAfterSplit200, rootAfterSplit201)
	require.NotEqual(t, rootAfterSplit100, rootAfterSplit200)
}

// TestMergeSameRootRejected reproduces spec.md §8 scenario 4: merging
// two supervoxels that already share a root fails with a precondition
// error and writes nothing.
func TestMergeSameRootRejected(t *testing.T) {
	meta := testMeta(t)
	lay := meta.Layout()
	store := graphmodel.NewStore(memstore.New())

	src := ingest.NewMemorySource()
	chunk := chunkid.Coord{X: 0, Y: 0, Z: 0}
	src.SetAgglomeration(chunk, 1, 1)
	src.SetAgglomeration(chunk, 2, 1)
	src.AddInChunkEdge(chunk, 1, 2, 0.8, 10)

	ctx := context.Background()
	b := ingest.NewBuilder(src, store, meta)
	require.NoError(t, b.Build(ctx))

	ids := allocatedSupervoxelIDs(lay, chunk, 2)
	index := edit.NewFakeSegmentationIndex()
	index.Place(ids[0], edit.Point3D{X: 0, Y: 0, Z: 0})
	index.Place(ids[1], edit.Point3D{X: 100, Y: 0, Z: 0})

	eng := edit.NewEngine(store, meta, index)

	opLogBefore, err := store.GetNewRoots(ctx, ids[0])
	require.NoError(t, err)
	require.Empty(t, opLogBefore)

	_, mergeErr := eng.AddEdge(ctx, edit.Point3D{X: 0, Y: 0, Z: 0}, edit.Point3D{X: 100, Y: 0, Z: 0}, "tester", 0.5, 5)
	require.Error(t, mergeErr)
	require.True(t, chunkederr.OfKind(mergeErr, chunkederr.PreconditionViolated))

	afterNewRoots, err := store.GetNewRoots(ctx, ids[0])
	require.NoError(t, err)
	require.Empty(t, afterNewRoots)
}

// TestGetAtomicIDsFromCoordsAmbiguous covers the "ambiguous matches
// fail" clause of spec.md §4.5.2 step 1: two candidates at the same
// coordinate must not silently pick one.
func TestGetAtomicIDsFromCoordsAmbiguous(t *testing.T) {
	meta := testMeta(t)
	store := graphmodel.NewStore(memstore.New())
	index := edit.NewFakeSegmentationIndex()
	index.Place(1001, edit.Point3D{X: 10, Y: 10, Z: 10})
	index.Place(1002, edit.Point3D{X: 10, Y: 10, Z: 10})
	eng := edit.NewEngine(store, meta, index)

	_, err := eng.GetAtomicIDsFromCoords(context.Background(), []edit.Point3D{{X: 10, Y: 10, Z: 10}}, 1001, time.Time{})
	require.Error(t, err)
	require.True(t, chunkederr.OfKind(err, chunkederr.InvalidInput))
}

// TestGetAtomicIDsFromCoordsWidensSearchRadius covers the increasing
// 75/150/250/500nm threshold loop resolving a point that misses the
// tightest radius.
func TestGetAtomicIDsFromCoordsWidensSearchRadius(t *testing.T) {
	meta := testMeta(t)
	lay := meta.Layout()
	store := graphmodel.NewStore(memstore.New())

	src := ingest.NewMemorySource()
	chunk := chunkid.Coord{X: 0, Y: 0, Z: 0}
	src.SetAgglomeration(chunk, 1, 1)

	ctx := context.Background()
	b := ingest.NewBuilder(src, store, meta)
	require.NoError(t, b.Build(ctx))

	ids := allocatedSupervoxelIDs(lay, chunk, 1)
	index := edit.NewFakeSegmentationIndex()
	index.Place(ids[0], edit.Point3D{X: 0, Y: 0, Z: 0})

	eng := edit.NewEngine(store, meta, index)
	resolved, err := eng.GetAtomicIDsFromCoords(ctx, []edit.Point3D{{X: 100, Y: 0, Z: 0}}, ids[0], time.Time{})
	require.NoError(t, err)
	require.Equal(t, []uint64{ids[0]}, resolved)
}
