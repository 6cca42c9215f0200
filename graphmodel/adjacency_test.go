package graphmodel_test

import (
	"context"
	"testing"

	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/storage"
	"github.com/jakobtroidl/chunkedgraph/storage/memstore"
	"github.com/stretchr/testify/require"
)

func TestActivePartnerIndicesParity(t *testing.T) {
	cells := []storage.Cell{
		{Value: storage.EncodeInt32Slice([]int32{0, 1, 2})}, // initial actives: 0,1,2
		{Value: storage.EncodeInt32Slice([]int32{1})},       // toggle 1 off
		{Value: storage.EncodeInt32Slice([]int32{2})},       // toggle 2 off
		{Value: storage.EncodeInt32Slice([]int32{2})},       // toggle 2 back on
	}
	active, err := graphmodel.ActivePartnerIndices(cells)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 2}, active)
}

func TestIsActiveSingleIndex(t *testing.T) {
	cells := []storage.Cell{
		{Value: storage.EncodeInt32Slice([]int32{5})},
		{Value: storage.EncodeInt32Slice([]int32{5})},
	}
	active, err := graphmodel.IsActive(cells, 5)
	require.NoError(t, err)
	require.False(t, active, "even toggle count must be inactive")
}

func TestGetAdjacencyMaterializesActiveOnly(t *testing.T) {
	ctx := context.Background()
	store := graphmodel.NewStore(memstore.New())

	const id uint64 = 100
	muts := []storage.Mutation{
		graphmodel.MutationSetAtomicPartners([]uint64{101, 102}),
		graphmodel.MutationSetAffinities([]float64{1.0, 0.5}),
		graphmodel.MutationSetAreas([]int32{10, 20}),
		graphmodel.MutationAppendConnected([]int32{0}), // only partner 0 (101) active
	}
	require.NoError(t, store.Client.BulkMutate(ctx, storage.ToBulkMutateMap([]storage.RowMutations{
		{Key: graphmodel.RowKey(id), Mutations: muts},
	})))

	adj, err := store.GetAdjacency(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []uint64{101}, adj.Partners)
	require.Equal(t, []float64{1.0}, adj.Affinities)
	require.Equal(t, []int32{10}, adj.Areas)
}
