package graphmodel_test

import (
	"context"
	"testing"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/storage"
	"github.com/jakobtroidl/chunkedgraph/storage/memstore"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) chunkid.Layout {
	t.Helper()
	lay, err := chunkid.NewLayout(4, 2, [3]int64{64, 64, 64}, [3]int64{8, 8, 8}, 8, 30, 26)
	require.NoError(t, err)
	return lay
}

func writeParent(t *testing.T, ctx context.Context, store *graphmodel.Store, child, parent uint64) {
	t.Helper()
	err := store.Client.BulkMutate(ctx, storage.ToBulkMutateMap([]storage.RowMutations{
		{Key: graphmodel.RowKey(child), Mutations: []storage.Mutation{graphmodel.MutationAppendParent(parent)}},
	}))
	require.NoError(t, err)
}

func TestGetRootWalksToTerminalNode(t *testing.T) {
	ctx := context.Background()
	store := graphmodel.NewStore(memstore.New())

	writeParent(t, ctx, store, 100, 200)
	writeParent(t, ctx, store, 200, 300)
	// 300 has no parent: it is the root.

	root, err := store.GetRoot(ctx, 100, time.Time{}, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(300), root)
}

func TestGetRootDetectsNonTerminatingWalk(t *testing.T) {
	ctx := context.Background()
	store := graphmodel.NewStore(memstore.New())

	writeParent(t, ctx, store, 1, 2)
	writeParent(t, ctx, store, 2, 1) // cycle

	_, err := store.GetRoot(ctx, 1, time.Time{}, 4)
	require.Error(t, err)
}

func TestGetSubgraphDedupesAndFilters(t *testing.T) {
	ctx := context.Background()
	store := graphmodel.NewStore(memstore.New())
	lay := testLayout(t)

	sv1 := lay.Pack(1, chunkid.Coord{}, 1)
	sv2 := lay.Pack(1, chunkid.Coord{}, 2)
	sv3 := lay.Pack(1, chunkid.Coord{}, 3) // not under root
	l2 := lay.Pack(2, chunkid.Coord{}, 1)

	require.NoError(t, store.Client.BulkMutate(ctx, storage.ToBulkMutateMap([]storage.RowMutations{
		{Key: graphmodel.RowKey(l2), Mutations: []storage.Mutation{graphmodel.MutationSetChildren([]uint64{sv1, sv2})}},
		{Key: graphmodel.RowKey(sv1), Mutations: []storage.Mutation{
			graphmodel.MutationSetAtomicPartners([]uint64{sv2, sv3}),
			graphmodel.MutationSetAffinities([]float64{1.0, 2.0}),
			graphmodel.MutationSetAreas([]int32{1, 2}),
			graphmodel.MutationAppendConnected([]int32{0, 1}),
		}},
		{Key: graphmodel.RowKey(sv2), Mutations: []storage.Mutation{
			graphmodel.MutationSetAtomicPartners([]uint64{sv1}),
			graphmodel.MutationSetAffinities([]float64{1.0}),
			graphmodel.MutationSetAreas([]int32{1}),
			graphmodel.MutationAppendConnected([]int32{0}),
		}},
	})))

	bbox := chunkid.Box{Min: chunkid.Coord{X: -1, Y: -1, Z: -1}, Max: chunkid.Coord{X: 8, Y: 8, Z: 8}}
	edges, err := store.GetSubgraph(ctx, lay, l2, bbox)
	require.NoError(t, err)
	require.Len(t, edges, 1, "sv3 is outside the set and (sv1,sv2)/(sv2,sv1) must dedupe to one edge")
	require.Equal(t, sv1, edges[0].U)
	require.Equal(t, sv2, edges[0].V)
}
