package edit

import (
	"context"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/storage"
	"go.uber.org/zap"
)

// AddEdge merges the components containing sourceCoord and sinkCoord
// (spec.md §4.5.2). affinity/area are recorded only if this exact
// supervoxel pair has never been declared as partners before — an
// already-declared edge keeps its original weight and is simply
// reactivated. Returns the merged component's new root.
func (e *Engine) AddEdge(ctx context.Context, sourceCoord, sinkCoord Point3D, userID string, affinity float64, area int32) (uint64, error) {
	u, err := e.resolveCoord(ctx, sourceCoord, 0, time.Time{})
	if err != nil {
		return 0, err
	}
	v, err := e.resolveCoord(ctx, sinkCoord, 0, time.Time{})
	if err != nil {
		return 0, err
	}
	if u == v {
		return 0, chunkederr.New(chunkederr.InvalidInput, "edit: merge source and sink resolve to the same supervoxel")
	}

	rootU, err := e.Store.GetRoot(ctx, u, time.Time{}, e.Meta.LayerCount)
	if err != nil {
		return 0, err
	}
	rootV, err := e.Store.GetRoot(ctx, v, time.Time{}, e.Meta.LayerCount)
	if err != nil {
		return 0, err
	}
	if rootU == rootV {
		return 0, chunkederr.New(chunkederr.PreconditionViolated, "edit: merge endpoints already share a root")
	}

	opID, err := e.allocateOperationID(ctx)
	if err != nil {
		return 0, err
	}
	log := e.log.WithOperation(opID)

	held, lease, err := e.lockRoots(ctx, []uint64{rootU, rootV}, opID)
	if err != nil {
		return 0, withOp(err, opID)
	}
	defer e.releaseAll(ctx, held, lease)

	if len(held) == 1 {
		return 0, withOp(chunkederr.New(chunkederr.PreconditionViolated, "edit: merge endpoints already share a root"), opID)
	}
	if len(held) != 2 {
		return 0, withOp(chunkederr.Newf(chunkederr.InternalInvariant, "edit: expected 2 locked roots for a merge, got %d", len(held)), opID)
	}

	rowU, rowV, err := e.activateEdge(ctx, u, v, affinity, area)
	if err != nil {
		return 0, withOp(err, opID)
	}
	if err := e.Store.Client.BulkMutate(ctx, storage.ToBulkMutateMap([]storage.RowMutations{rowU, rowV})); err != nil {
		return 0, withOp(chunkederr.Wrap(chunkederr.StorageFatal, "edit: activate edge", err), opID)
	}

	newRoot, formerRoots, err := e.mergeRebuild(ctx, u, v)
	if err != nil {
		return 0, withOp(err, opID)
	}

	if err := e.writeMergeHistory(ctx, newRoot, formerRoots, userID, u, v, opID); err != nil {
		return 0, withOp(err, opID)
	}

	log.Info("edit: merge committed", zap.Uint64("new_root", newRoot), zap.Uint64("source", u), zap.Uint64("sink", v))
	return newRoot, nil
}

func (e *Engine) allocateOperationID(ctx context.Context) (uint64, error) {
	id, err := e.Store.Client.Increment(ctx, graphmodel.OpCounterKey, storage.AttrCounter.Column, 1)
	if err != nil {
		return 0, chunkederr.Wrap(chunkederr.StorageFatal, "edit: allocate operation id", err)
	}
	return uint64(id), nil
}

func (e *Engine) writeMergeHistory(ctx context.Context, newRoot uint64, formerRoots []uint64, userID string, u, v, opID uint64) error {
	var muts []storage.RowMutations
	muts = append(muts, storage.RowMutations{Key: graphmodel.RowKey(newRoot), Mutations: []storage.Mutation{graphmodel.MutationAppendFormerRoots(formerRoots)}})
	for _, old := range formerRoots {
		muts = append(muts, storage.RowMutations{Key: graphmodel.RowKey(old), Mutations: []storage.Mutation{graphmodel.MutationAppendNewRoots([]uint64{newRoot})}})
	}
	muts = append(muts, storage.RowMutations{
		Key: graphmodel.OperationKey(opID),
		Mutations: []storage.Mutation{graphmodel.MutationOperationLog(graphmodel.OperationLogEntry{
			UserID:    userID,
			Kind:      "merge",
			SourceIDs: []uint64{u},
			SinkIDs:   []uint64{v},
			RootIDs:   []uint64{newRoot},
			Timestamp: time.Now(),
		})},
	})
	if err := e.Store.Client.BulkMutate(ctx, storage.ToBulkMutateMap(muts)); err != nil {
		return chunkederr.Wrap(chunkederr.StorageFatal, "edit: write merge history", err)
	}
	return nil
}
