package edit

import (
	"context"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/mincut"
	"github.com/jakobtroidl/chunkedgraph/storage"
)

// toggleEndpoint flips u's Connected parity for partner v, appending a
// new AtomicPartners/Affinities/Areas slot only if u has never recorded
// v before (spec.md §4.5.2 step 4: "append, not rewrite"). An
// already-recorded partner keeps its original affinity/area — the
// arguments here are only used for a genuinely new slot.
func (e *Engine) toggleEndpoint(ctx context.Context, u, v uint64, affinity float64, area int32) ([]storage.Mutation, error) {
	partners, affinities, areas, err := e.Store.RawPartners(ctx, u)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, p := range partners {
		if p == v {
			idx = i
			break
		}
	}

	var muts []storage.Mutation
	if idx == -1 {
		idx = len(partners)
		partners = append(partners, v)
		affinities = append(affinities, affinity)
		areas = append(areas, area)
		muts = append(muts,
			graphmodel.MutationSetAtomicPartners(partners),
			graphmodel.MutationSetAffinities(affinities),
			graphmodel.MutationSetAreas(areas),
		)
	}
	muts = append(muts, graphmodel.MutationAppendConnected([]int32{int32(idx)}))
	return muts, nil
}

// activateEdge records (u, v) as active on both endpoints, returning
// one RowMutations set per endpoint ready for a single BulkMutate.
func (e *Engine) activateEdge(ctx context.Context, u, v uint64, affinity float64, area int32) (storage.RowMutations, storage.RowMutations, error) {
	um, err := e.toggleEndpoint(ctx, u, v, affinity, area)
	if err != nil {
		return storage.RowMutations{}, storage.RowMutations{}, err
	}
	vm, err := e.toggleEndpoint(ctx, v, u, affinity, area)
	if err != nil {
		return storage.RowMutations{}, storage.RowMutations{}, err
	}
	return storage.RowMutations{Key: graphmodel.RowKey(u), Mutations: um},
		storage.RowMutations{Key: graphmodel.RowKey(v), Mutations: vm}, nil
}

// toggleEndpointExisting flips u's Connected parity for an
// already-recorded partner v — used by split, which only ever
// deactivates edges the graph already declared.
func (e *Engine) toggleEndpointExisting(ctx context.Context, u, v uint64) ([]storage.Mutation, error) {
	partners, _, _, err := e.Store.RawPartners(ctx, u)
	if err != nil {
		return nil, err
	}
	for i, p := range partners {
		if p == v {
			return []storage.Mutation{graphmodel.MutationAppendConnected([]int32{int32(i)})}, nil
		}
	}
	return nil, chunkederr.Newf(chunkederr.InternalInvariant, "edit: %d has no recorded partner slot for %d", u, v)
}

// deactivateCutEdges toggles every mincut-reported edge inactive on
// both endpoints in one BulkMutate (spec.md §4.5.3 step 4).
func (e *Engine) deactivateCutEdges(ctx context.Context, cut []mincut.Edge) error {
	var muts []storage.RowMutations
	for _, edge := range cut {
		um, err := e.toggleEndpointExisting(ctx, edge.U, edge.V)
		if err != nil {
			return err
		}
		vm, err := e.toggleEndpointExisting(ctx, edge.V, edge.U)
		if err != nil {
			return err
		}
		muts = append(muts, storage.RowMutations{Key: graphmodel.RowKey(edge.U), Mutations: um})
		muts = append(muts, storage.RowMutations{Key: graphmodel.RowKey(edge.V), Mutations: vm})
	}
	if len(muts) == 0 {
		return nil
	}
	if err := e.Store.Client.BulkMutate(ctx, storage.ToBulkMutateMap(muts)); err != nil {
		return chunkederr.Wrap(chunkederr.StorageFatal, "edit: deactivate cut edges", err)
	}
	return nil
}
